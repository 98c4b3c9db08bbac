// Command server runs the OSMC remote: it serves the remote page and
// relays gestures to the media center over JSON-RPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"norelock.dev/osmcremote/internal/api"
	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/discovery"
	"norelock.dev/osmcremote/internal/live"
	"norelock.dev/osmcremote/internal/mediacenter"
	"norelock.dev/osmcremote/internal/remote"
	"norelock.dev/osmcremote/internal/services/system"
	"norelock.dev/osmcremote/internal/utils"
	"norelock.dev/osmcremote/web"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "osmcremote",
	Short: "Web remote control for OSMC and Kodi",
	Long: `osmcremote serves a remote control page for phones and tablets and
relays every button press to a Kodi/OSMC media center over JSON-RPC.

Examples:
  # Discover the media center over mDNS
  osmcremote

  # Point at a media center explicitly
  osmcremote --mediacenter-host 192.168.1.20

  # Only use HTTP POST, e.g. when the JSON-RPC WebSocket is disabled in Kodi
  osmcremote --mediacenter-host osmc.local --transport http`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
	SilenceUsage: true,
	RunE:         runServer,
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write the default configuration files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "./configs"
		if len(args) == 1 {
			dir = args[0]
		}
		if err := config.WriteDefaultConfig(dir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", dir)
		return nil
	},
}

// flag binds a command line flag to a configuration key.
type flag struct {
	name, key, description string
	defaultValue           any
}

var flags = []flag{
	{"host", "server.host", "Address to listen on", "0.0.0.0"},
	{"port", "server.port", "Port to listen on", 8000},
	{"mediacenter-host", "mediacenter.host", "Media center host; empty discovers it over mDNS", ""},
	{"mediacenter-user", "mediacenter.username", "Media center web server user", ""},
	{"transport", "mediacenter.transport", "Transport to the media center: auto, websocket or http", config.TransportAuto},
	{"log-level", "logging.level", "Log level: debug, info, warn or error", "info"},
	{"log-format", "logging.format", "Log format: json or console", "json"},
	{"discovery", "discovery.enabled", "Discover the media center when no host is set", true},
}

func init() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd.Flags().String("config", "", "Configuration file (default: ./configs/app.yaml)")

	for _, f := range flags {
		switch d := f.defaultValue.(type) {
		case string:
			rootCmd.Flags().String(f.name, d, f.description)
		case int:
			rootCmd.Flags().Int(f.name, d, f.description)
		case bool:
			rootCmd.Flags().Bool(f.name, d, f.description)
		}
		_ = v.BindPFlag(f.key, rootCmd.Flags().Lookup(f.name))
	}

	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		os.Setenv("CONFIG_FILE", path)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	warnings := config.ValidateAndFixConfig(cfg)

	logger := utils.NewLogger(utils.LoggerOptions{
		Development:      cfg.Environment == "development",
		Format:           cfg.Logging.Format,
		Level:            config.GetLogLevel(cfg.Logging.Level),
		OutputPaths:      cfg.Logging.OutputPaths,
		ErrorOutputPaths: cfg.Logging.ErrorOutputPaths,
	})
	utils.SetGlobalLogger(logger)
	defer logger.Sync()

	for _, warning := range warnings {
		logger.Warn("Configuration adjusted", "warning", warning)
	}

	logger.Info("Starting OSMC remote", "version", Version, "environment", cfg.Environment)
	logger.Debug("Configuration\n" + config.GetConfigString(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MediaCenter.Host == "" {
		service, err := discovery.NewDiscoverer(cfg.Discovery, logger).Discover(ctx)
		if err != nil {
			return fmt.Errorf("no media center host configured and discovery failed: %w", err)
		}
		discovery.Apply(&cfg.MediaCenter, service)
	}

	metrics := system.NewMetricsService(logger)
	healthService := system.NewHealthService(logger, system.HealthServiceConfig{
		Version:       Version,
		Environment:   cfg.Environment,
		CheckInterval: cfg.Health.CheckInterval,
	})

	ctrl := remote.NewController(cfg, remote.WithLogger(logger), remote.WithMetrics(metrics))
	mc := mediacenter.NewClient(cfg.MediaCenter, ctrl.Handlers(),
		mediacenter.WithLogger(logger),
		mediacenter.WithRecorder(metrics),
	)
	pages := live.NewServer(ctrl, cfg, live.WithLogger(logger), live.WithRecorder(metrics))

	healthService.Register("mediacenter", mediaCenterCheck(ctrl, mc, cfg.MediaCenter.FailureThreshold))
	healthService.Register("pages", func(ctx context.Context) (system.HealthStatus, string, map[string]any) {
		return system.StatusUp, "remote page sockets", map[string]any{"connected": pages.ClientCount()}
	})

	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		if err := ctrl.Run(ctx, mc); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Remote controller stopped", err)
		}
	}()
	go pages.Run(ctx)
	healthService.Start(ctx)

	api.Version = Version
	router := api.NewRouter(ctrl, pages, api.Site{Files: web.Static(), Assets: web.Assets},
		healthService, metrics, cfg, logger)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", addr, "mediacenter", mc.Endpoints())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("HTTP server error", err)
		stop()
	}

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", err)
	}

	<-ctrlDone
	if err := mc.Close(); err != nil {
		logger.Error("Media center client close error", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}

// mediaCenterCheck reports the link as seen by the remote: up when the last
// call went through, degraded while failures accumulate, down once the
// error overlay is raised.
func mediaCenterCheck(ctrl *remote.Controller, mc *mediacenter.Client, threshold int) system.Check {
	return func(ctx context.Context) (system.HealthStatus, string, map[string]any) {
		state := ctrl.Snapshot().State
		details := map[string]any{
			"connected": state.Connected,
			"failures":  state.FailureCount,
			"transport": mc.Mode(),
			"endpoints": mc.Endpoints(),
		}

		switch {
		case state.FailureCount >= threshold:
			return system.StatusDown, "media center unreachable", details
		case state.FailureCount > 0 || !state.Connected:
			return system.StatusDegraded, "media center not confirmed", details
		default:
			return system.StatusUp, "media center reachable", details
		}
	}
}
