package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lensgate/lensgate/internal/ailink"
	"github.com/lensgate/lensgate/internal/ailink/prompt"
	"github.com/lensgate/lensgate/internal/config"
	"github.com/lensgate/lensgate/internal/dispatch"
	errwrap "github.com/lensgate/lensgate/internal/errors"
	"github.com/lensgate/lensgate/internal/observability"
	"github.com/lensgate/lensgate/internal/server"
	"github.com/lensgate/lensgate/internal/server/handlers"
	"github.com/lensgate/lensgate/internal/store"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker implements HealthChecker for signal system
type signalHealthChecker struct{}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil // Signal handlers are registered and ready
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// noUpstream stands in for the real invoker when no provider credentials are
// configured. The arbiter is forced degraded in that case, so this only fires
// if routing is somehow bypassed.
type noUpstream struct{}

func (noUpstream) Invoke(context.Context, string, *dispatch.Request) (*dispatch.Result, error) {
	return nil, errwrap.NewConfigInvalidError("no upstream provider configured")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP dispatch server",
	Long: `Start the HTTP dispatch server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

The server will cleanly shut down the HTTP server, close the audit store and
flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get app identity for telemetry namespace
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		// Initialize server logger with namespace
		logLevel := viper.GetString("logging.level")
		observability.InitServerLogger(identity.BinaryName, logLevel, namespace)

		metricsPort := viper.GetInt("metrics.port")
		if metricsPort == 0 {
			metricsPort = 9090
		}

		// Initialize metrics with namespace
		if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics",
				zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		// Load layered configuration (defaults, user config, env overrides)
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration load failed")
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", serverHost),
			zap.Int("port", serverPort),
			zap.Int("metrics_port", metricsPort))

		// Build the dispatch pipeline from configuration
		dispatcher, err := buildDispatcher(cfg)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "dispatcher initialization failed")
		}
		dispatcher.Logger = observability.ServerLogger

		// Open the audit store; dispatch works without it, so a failure here
		// degrades persistence rather than aborting startup.
		audit, err := store.Open(cmd.Context(), cfg.Store)
		if err != nil {
			observability.ServerLogger.Warn("Audit store unavailable, outcomes will not be persisted",
				zap.Error(err))
			audit = nil
		} else if err := audit.Migrate(cmd.Context()); err != nil {
			observability.ServerLogger.Warn("Audit store migration failed, outcomes will not be persisted",
				zap.Error(err))
			_ = audit.Close()
			audit = nil
		}

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
		if audit != nil {
			auditStore := audit
			hm.RegisterChecker("audit_store", handlers.HealthCheckerFunc(func(ctx context.Context) error {
				return auditStore.DB.PingContext(ctx)
			}))
		}
		hm.RegisterChecker("dispatch", handlers.HealthCheckerFunc(func(ctx context.Context) error {
			if dispatcher.Ring().AllExhausted() && !dispatcher.Arbiter().AllowFallback() {
				return errwrap.NewUpstreamExhaustedError("all credentials exhausted and fallback disabled")
			}
			return nil
		}))

		// Create server
		srv := server.New(serverHost, serverPort, dispatcher, audit, observability.ServerLogger)

		// Set app identity for handlers
		handlers.SetAppIdentity(identity)

		// Get shutdown timeout from config
		shutdownTimeout := viper.GetDuration("server.shutdown_timeout")
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close audit store
		if audit != nil {
			auditStore := audit
			signals.OnShutdown(func(ctx context.Context) error {
				observability.ServerLogger.Info("Closing audit store...")
				return auditStore.Close()
			})
		}

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			// Attempt to reload configuration
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))

			// Mode prefs, credentials and rate ceilings are wired at startup;
			// a restart is required for them to take effect.

			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", serverHost),
				zap.Int("port", serverPort))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// buildDispatcher assembles the ring, gate, arbiter and providers from the
// loaded configuration. When the default provider is disabled or carries no
// enabled credentials, the arbiter is forced degraded so every request is
// served by the demo provider.
func buildDispatcher(cfg *config.Config) (*dispatch.Dispatcher, error) {
	if err := cfg.AILink.Validate(); err != nil {
		return nil, err
	}

	prefs := dispatch.ModePrefs{
		ForceReal:     cfg.Dispatch.ForceReal,
		ForceDegraded: cfg.Dispatch.ForceDegraded,
		AllowFallback: cfg.Dispatch.AllowFallback,
	}

	providerName := cfg.AILink.DefaultProvider
	inst := cfg.AILink.Providers[providerName]
	secrets := cfg.AILink.EnabledSecrets(providerName)

	var (
		invoker dispatch.Invoker
		ring    *dispatch.Ring
		err     error
	)

	if inst.Enabled && len(secrets) > 0 {
		reg, err := promptRegistry(cfg.AILink.PromptsDir)
		if err != nil {
			return nil, err
		}
		p, err := reg.Get("image-analysis")
		if err != nil {
			return nil, err
		}

		upstream, err := ailink.NewUpstream(cfg.AILink, p)
		if err != nil {
			return nil, err
		}
		invoker = upstream

		ring, err = dispatch.NewRing(secrets)
		if err != nil {
			return nil, err
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("Upstream provider configured",
				zap.String("provider", upstream.Provider()),
				zap.String("model", upstream.Model()),
				zap.Int("credentials", ring.Size()))
		}
	} else {
		if prefs.ForceReal {
			return nil, fmt.Errorf("dispatch.force_real is set but provider %q has no enabled credentials", providerName)
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("No upstream credentials configured, serving degraded results only",
				zap.String("provider", providerName))
		}

		prefs.ForceDegraded = true
		invoker = noUpstream{}
		ring, err = dispatch.NewRing([]string{"unconfigured"})
		if err != nil {
			return nil, err
		}
	}

	gate := dispatch.NewGate(cfg.Dispatch.RequestsPerMinute, cfg.Dispatch.RequestsPerHour)
	arbiter := dispatch.NewArbiter(prefs)

	return dispatch.New(ring, gate, arbiter, invoker, ailink.NewDemoProvider())
}

// promptRegistry loads the embedded prompts, optionally overlaid with
// operator-supplied prompt files from ailink.prompts_dir.
func promptRegistry(dir string) (prompt.Registry, error) {
	reg, err := prompt.DefaultRegistry()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return reg, nil
	}
	overrides, err := prompt.LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	return reg.Merge(overrides), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
