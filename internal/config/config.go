// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport modes for talking to the media center.
const (
	TransportAuto      = "auto"
	TransportWebSocket = "websocket"
	TransportHTTP      = "http"
)

// EnvPrefix prefixes every environment override, e.g. REMOTE_MEDIACENTER_HOST.
const EnvPrefix = "REMOTE"

// Config represents the application configuration
type Config struct {
	// Environment is the current running environment (development, production)
	Environment string `mapstructure:"environment"`

	Server      Server      `mapstructure:"server"`
	MediaCenter MediaCenter `mapstructure:"mediacenter"`
	Remote      Remote      `mapstructure:"remote"`
	WebSocket   WebSocket   `mapstructure:"websocket"`
	Logging     Logging     `mapstructure:"logging"`
	Discovery   Discovery   `mapstructure:"discovery"`
	Health      Health      `mapstructure:"health"`
}

// Server configures the HTTP server that serves the remote page.
type Server struct {
	// Port is the HTTP server port
	Port int `mapstructure:"port"`
	// Host is the HTTP server host
	Host string `mapstructure:"host"`
	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// AllowedOrigins is the list of allowed CORS origins
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MediaCenter describes how to reach the Kodi/OSMC JSON-RPC API.
type MediaCenter struct {
	// Host is the media center host name or address. Empty means discover it.
	Host string `mapstructure:"host"`
	// HTTPPort is the port of the web server serving POST /jsonrpc
	HTTPPort int `mapstructure:"http_port"`
	// WSPort is the port of the JSON-RPC WebSocket
	WSPort int `mapstructure:"ws_port"`
	// Path is the JSON-RPC endpoint path on both transports
	Path string `mapstructure:"path"`
	// Username and Password enable HTTP basic auth against the web server
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Transport is one of auto, websocket or http
	Transport string `mapstructure:"transport"`
	// HTTPTimeout bounds every HTTP POST call
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	// DialTimeout bounds the WebSocket handshake
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// FailureThreshold is the number of consecutive failures that raise the error overlay
	FailureThreshold int `mapstructure:"failure_threshold"`
}

// HTTPURL returns the URL JSON-RPC POST requests are sent to.
func (m MediaCenter) HTTPURL() string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(m.Host, strconv.Itoa(m.HTTPPort)),
		Path:   m.Path,
	}
	return u.String()
}

// WebSocketURL returns the URL of the JSON-RPC WebSocket.
func (m MediaCenter) WebSocketURL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(m.Host, strconv.Itoa(m.WSPort)),
		Path:   m.Path,
	}
	return u.String()
}

// Remote holds the behaviour of the remote control itself.
type Remote struct {
	// VolumeStep is how far one volume up/down press moves the volume
	VolumeStep int `mapstructure:"volume_step"`
	// VolumeMin and VolumeMax bound the volume slider
	VolumeMin int `mapstructure:"volume_min"`
	VolumeMax int `mapstructure:"volume_max"`
	// TitleMaxLength is the number of characters of the now-playing title shown before the ellipsis
	TitleMaxLength int `mapstructure:"title_max_length"`
	// DefaultTitle is shown when nothing is playing
	DefaultTitle string `mapstructure:"default_title"`
	// ErrorMessage is shown in the error overlay
	ErrorMessage string `mapstructure:"error_message"`
	// ExitFullscreenOnBlur leaves fullscreen when the page loses focus
	ExitFullscreenOnBlur bool `mapstructure:"exit_fullscreen_on_blur"`
	// SyncOnConnect asks for active players and volume whenever the transport comes up
	SyncOnConnect bool `mapstructure:"sync_on_connect"`
}

// WebSocket configures the sockets between the service and remote pages.
type WebSocket struct {
	// MaxMessageSize is the maximum message size
	MaxMessageSize int64 `mapstructure:"max_message_size"`
	// WriteWait is the time allowed to write a message to the peer
	WriteWait time.Duration `mapstructure:"write_wait"`
	// PongWait is the time allowed to read the next pong message from the peer
	PongWait time.Duration `mapstructure:"pong_wait"`
	// PingPeriod is the time between ping messages
	PingPeriod time.Duration `mapstructure:"ping_period"`
	// MaxConnections is the maximum number of concurrent remote pages
	MaxConnections int `mapstructure:"max_connections"`
}

// Logging configuration
type Logging struct {
	// Level is the logging level
	Level string `mapstructure:"level"`
	// Format is the logging format (json or console)
	Format string `mapstructure:"format"`
	// OutputPaths is the list of output paths for logs
	OutputPaths []string `mapstructure:"output_paths"`
	// ErrorOutputPaths is the list of output paths for error logs
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Discovery configures mDNS lookup of the media center.
type Discovery struct {
	// Enabled turns on discovery when no media center host is configured
	Enabled bool `mapstructure:"enabled"`
	// Service is the DNS-SD service type to browse for
	Service string `mapstructure:"service"`
	// Domain is the DNS-SD domain
	Domain string `mapstructure:"domain"`
	// Timeout bounds the browse
	Timeout time.Duration `mapstructure:"timeout"`
}

// Health configures the periodic health check.
type Health struct {
	// CheckInterval is the time between health checks
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// LoadConfig loads the configuration from file and environment variables.
// It looks for a configuration file in the following locations:
// 1. Path specified in the CONFIG_FILE environment variable
// 2. ./configs directory
// 3. ../configs directory
// 4. /etc/osmcremote directory
func LoadConfig() (*Config, error) {
	return Load(viper.New())
}

// Load reads the configuration into v, which may already carry bound
// command line flags, and decodes it.
func Load(v *viper.Viper) (*Config, error) {
	// Set default values
	setDefaults(v)

	// Configuration file name and type
	v.SetConfigName("app")
	v.SetConfigType("yaml")

	// Add configuration paths
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/osmcremote")
	}

	// Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		// If the configuration file is not found, use environment variables and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Check for environment-specific configuration file
	env := os.Getenv(EnvPrefix + "_ENV")
	if env == "" {
		env = "development"
	}

	if configFile == "" {
		v.SetConfigName(fmt.Sprintf("app.%s", env))
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to merge environment config file: %w", err)
			}
		}
	}

	// Override with environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Environment = env

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets the default values for the configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Media center defaults
	v.SetDefault("mediacenter.host", "")
	v.SetDefault("mediacenter.http_port", 8080)
	v.SetDefault("mediacenter.ws_port", 9090)
	v.SetDefault("mediacenter.path", "/jsonrpc")
	v.SetDefault("mediacenter.username", "")
	v.SetDefault("mediacenter.password", "")
	v.SetDefault("mediacenter.transport", TransportAuto)
	v.SetDefault("mediacenter.http_timeout", "2s")
	v.SetDefault("mediacenter.dial_timeout", "5s")
	v.SetDefault("mediacenter.failure_threshold", 3)

	// Remote defaults
	v.SetDefault("remote.volume_step", 5)
	v.SetDefault("remote.volume_min", 0)
	v.SetDefault("remote.volume_max", 100)
	v.SetDefault("remote.title_max_length", 21)
	v.SetDefault("remote.default_title", "OSMC")
	v.SetDefault("remote.error_message", "Unable to reach the server.")
	v.SetDefault("remote.exit_fullscreen_on_blur", true)
	v.SetDefault("remote.sync_on_connect", true)

	// WebSocket defaults
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_period", "54s")
	v.SetDefault("websocket.max_connections", 64)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	// Discovery defaults
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.service", "_xbmc-jsonrpc-h._tcp")
	v.SetDefault("discovery.domain", "local.")
	v.SetDefault("discovery.timeout", "5s")

	// Health defaults
	v.SetDefault("health.check_interval", "30s")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return errors.New("server port must be between 1 and 65535")
	}

	mc := config.MediaCenter
	if mc.Host == "" && !config.Discovery.Enabled {
		return errors.New("media center host must be set when discovery is disabled")
	}

	if mc.HTTPPort <= 0 || mc.HTTPPort > 65535 {
		return errors.New("media center http port must be between 1 and 65535")
	}

	if mc.WSPort <= 0 || mc.WSPort > 65535 {
		return errors.New("media center websocket port must be between 1 and 65535")
	}

	switch mc.Transport {
	case TransportAuto, TransportWebSocket, TransportHTTP:
	default:
		return fmt.Errorf("unknown media center transport %q", mc.Transport)
	}

	if mc.FailureThreshold < 1 {
		return errors.New("failure threshold must be at least 1")
	}

	r := config.Remote
	if r.VolumeMin < 0 || r.VolumeMax > 100 || r.VolumeMin >= r.VolumeMax {
		return errors.New("volume bounds must satisfy 0 <= min < max <= 100")
	}

	if r.VolumeStep <= 0 || r.VolumeStep > r.VolumeMax-r.VolumeMin {
		return errors.New("volume step must be positive and fit within the volume bounds")
	}

	if r.TitleMaxLength <= 0 {
		return errors.New("title max length must be positive")
	}

	if config.WebSocket.PingPeriod >= config.WebSocket.PongWait {
		return errors.New("websocket ping period must be shorter than pong wait")
	}

	return nil
}

// GetConfigString returns a formatted string with the current configuration
func GetConfigString(config *Config) string {
	var sb strings.Builder

	host := config.MediaCenter.Host
	if host == "" {
		host = "(discover " + config.Discovery.Service + ")"
	}

	sb.WriteString(fmt.Sprintf("Environment: %s\n", config.Environment))
	sb.WriteString(fmt.Sprintf("Server: %s:%d\n", config.Server.Host, config.Server.Port))
	sb.WriteString(fmt.Sprintf("Media center: %s (transport %s)\n", host, config.MediaCenter.Transport))
	sb.WriteString(fmt.Sprintf("  HTTP port: %d, WebSocket port: %d, path: %s\n", config.MediaCenter.HTTPPort, config.MediaCenter.WSPort, config.MediaCenter.Path))
	sb.WriteString(fmt.Sprintf("  Basic auth: %t\n", config.MediaCenter.Username != ""))
	sb.WriteString(fmt.Sprintf("Volume step: %d\n", config.Remote.VolumeStep))
	sb.WriteString(fmt.Sprintf("Exit fullscreen on blur: %t\n", config.Remote.ExitFullscreenOnBlur))

	return sb.String()
}

// EnsureConfigDirs ensures that all necessary directories for configuration exist
func EnsureConfigDirs(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteDefaultConfig writes the default configuration files into dir,
// leaving existing files alone.
func WriteDefaultConfig(dir string) error {
	if err := EnsureConfigDirs(dir); err != nil {
		return err
	}

	files := map[string]string{
		"app.yaml":             defaultConfig,
		"app.development.yaml": developmentConfig,
		"app.production.yaml":  productionConfig,
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	return nil
}

const defaultConfig = `# OSMC remote configuration

# Server configuration
server:
  port: 8000
  host: "0.0.0.0"
  read_timeout: "15s"
  write_timeout: "15s"
  idle_timeout: "60s"
  allowed_origins: ["*"]

# Media center (Kodi JSON-RPC)
mediacenter:
  host: "" # empty: discover via mDNS
  http_port: 8080
  ws_port: 9090
  path: "/jsonrpc"
  username: ""
  password: "" # set REMOTE_MEDIACENTER_PASSWORD instead
  transport: "auto" # auto | websocket | http
  http_timeout: "2s"
  dial_timeout: "5s"
  failure_threshold: 3

# Remote behaviour
remote:
  volume_step: 5
  volume_min: 0
  volume_max: 100
  title_max_length: 21
  default_title: "OSMC"
  error_message: "Unable to reach the server."
  exit_fullscreen_on_blur: true
  sync_on_connect: true

# Remote page sockets
websocket:
  max_message_size: 4096
  write_wait: "10s"
  pong_wait: "60s"
  ping_period: "54s"
  max_connections: 64

# Logging configuration
logging:
  level: "info"
  format: "json"
  output_paths: ["stdout"]
  error_output_paths: ["stderr"]

# Media center discovery
discovery:
  enabled: true
  service: "_xbmc-jsonrpc-h._tcp"
  domain: "local."
  timeout: "5s"

health:
  check_interval: "30s"
`

const developmentConfig = `# Development environment configuration
# This file overrides the values in app.yaml for the development environment

server:
  host: "localhost"

logging:
  level: "debug"
  format: "console"
`

const productionConfig = `# Production environment configuration
# This file overrides the values in app.yaml for the production environment

logging:
  level: "info"
  format: "json"
`
