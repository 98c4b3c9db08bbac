// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// ValidateAndFixConfig validates the configuration and fixes any issues
func ValidateAndFixConfig(config *Config) []string {
	var warnings []string

	// Check server timeouts
	minTimeout := 1 * time.Second
	maxTimeout := 5 * time.Minute

	if config.Server.ReadTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too short (%v), setting to %v", config.Server.ReadTimeout, minTimeout))
		config.Server.ReadTimeout = minTimeout
	} else if config.Server.ReadTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too long (%v), setting to %v", config.Server.ReadTimeout, maxTimeout))
		config.Server.ReadTimeout = maxTimeout
	}

	if config.Server.WriteTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too short (%v), setting to %v", config.Server.WriteTimeout, minTimeout))
		config.Server.WriteTimeout = minTimeout
	} else if config.Server.WriteTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too long (%v), setting to %v", config.Server.WriteTimeout, maxTimeout))
		config.Server.WriteTimeout = maxTimeout
	}

	if config.Server.IdleTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server idle timeout is too short (%v), setting to %v", config.Server.IdleTimeout, minTimeout))
		config.Server.IdleTimeout = minTimeout
	}

	// The remote has to stay responsive; a call that hangs longer than this is a failure
	if config.MediaCenter.HTTPTimeout <= 0 {
		warnings = append(warnings, "Media center HTTP timeout is not set, setting to 2s")
		config.MediaCenter.HTTPTimeout = 2 * time.Second
	} else if config.MediaCenter.HTTPTimeout > 30*time.Second {
		warnings = append(warnings, fmt.Sprintf("Media center HTTP timeout is very long (%v)", config.MediaCenter.HTTPTimeout))
	}

	if config.MediaCenter.DialTimeout <= 0 {
		warnings = append(warnings, "Media center dial timeout is not set, setting to 5s")
		config.MediaCenter.DialTimeout = 5 * time.Second
	}

	if !strings.HasPrefix(config.MediaCenter.Path, "/") {
		warnings = append(warnings, fmt.Sprintf("Media center path %q does not start with '/', fixing", config.MediaCenter.Path))
		config.MediaCenter.Path = "/" + config.MediaCenter.Path
	}

	if config.MediaCenter.Username == "" && config.MediaCenter.Password != "" {
		warnings = append(warnings, "Media center password is set without a username and will be ignored")
	}

	if config.Remote.DefaultTitle == "" {
		warnings = append(warnings, "Default title is empty, setting to 'OSMC'")
		config.Remote.DefaultTitle = "OSMC"
	}

	if config.Remote.ErrorMessage == "" {
		config.Remote.ErrorMessage = "Unable to reach the server."
	}

	// Check logging configuration
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	if !validLevels[strings.ToLower(config.Logging.Level)] {
		warnings = append(warnings, fmt.Sprintf("Invalid logging level: %s, setting to 'info'", config.Logging.Level))
		config.Logging.Level = "info"
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[strings.ToLower(config.Logging.Format)] {
		warnings = append(warnings, fmt.Sprintf("Invalid logging format: %s, setting to 'json'", config.Logging.Format))
		config.Logging.Format = "json"
	}

	// Check if output paths exist
	for _, path := range config.Logging.OutputPaths {
		if path != "stdout" && path != "stderr" {
			dir := filepath.Dir(path)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("Log output directory does not exist: %s", dir))
			}
		}
	}

	return warnings
}

// GetLogLevel converts a string log level to a zap log level
func GetLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// CreateDefaultConfig creates the default configuration
func CreateDefaultConfig() *Config {
	config := &Config{}

	config.Environment = "development"

	config.Server.Port = 8000
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 15 * time.Second
	config.Server.WriteTimeout = 15 * time.Second
	config.Server.IdleTimeout = 60 * time.Second
	config.Server.AllowedOrigins = []string{"*"}

	config.MediaCenter.HTTPPort = 8080
	config.MediaCenter.WSPort = 9090
	config.MediaCenter.Path = "/jsonrpc"
	config.MediaCenter.Transport = TransportAuto
	config.MediaCenter.HTTPTimeout = 2 * time.Second
	config.MediaCenter.DialTimeout = 5 * time.Second
	config.MediaCenter.FailureThreshold = 3

	config.Remote.VolumeStep = 5
	config.Remote.VolumeMin = 0
	config.Remote.VolumeMax = 100
	config.Remote.TitleMaxLength = 21
	config.Remote.DefaultTitle = "OSMC"
	config.Remote.ErrorMessage = "Unable to reach the server."
	config.Remote.ExitFullscreenOnBlur = true
	config.Remote.SyncOnConnect = true

	config.WebSocket.MaxMessageSize = 4096
	config.WebSocket.WriteWait = 10 * time.Second
	config.WebSocket.PongWait = 60 * time.Second
	config.WebSocket.PingPeriod = 54 * time.Second
	config.WebSocket.MaxConnections = 64

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.OutputPaths = []string{"stdout"}
	config.Logging.ErrorOutputPaths = []string{"stderr"}

	config.Discovery.Enabled = true
	config.Discovery.Service = "_xbmc-jsonrpc-h._tcp"
	config.Discovery.Domain = "local."
	config.Discovery.Timeout = 5 * time.Second

	config.Health.CheckInterval = 30 * time.Second

	return config
}
