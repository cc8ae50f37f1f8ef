// Package cli assembles the voltlock command tree: a root command with
// shared flags plus serve and version subcommands.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voltlock/voltlock/pkg/cache"
	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/device"
	"github.com/voltlock/voltlock/pkg/health"
	"github.com/voltlock/voltlock/pkg/locking"
	"github.com/voltlock/voltlock/pkg/observability/logger"
	"github.com/voltlock/voltlock/pkg/observability/metrics"
	"github.com/voltlock/voltlock/pkg/publish"
	"github.com/voltlock/voltlock/pkg/server"
	"github.com/voltlock/voltlock/pkg/status"
	"github.com/voltlock/voltlock/pkg/version"
)

// TransportFactory builds the inverter transport for serve. Deployments
// talking to real hardware inject their own; the default is the simulator.
type TransportFactory func(cfg config.DeviceConfig, log logger.Logger) (device.Transport, error)

// Options customizes the command tree.
type Options struct {
	Name        string
	Description string
	// ConfigPath is the default value of --config-file.
	ConfigPath string
	// EnvPrefix namespaces environment variable overrides, VOLTLOCK by default.
	EnvPrefix    string
	NewTransport TransportFactory
}

func (o *Options) normalize() {
	if o.Name == "" {
		o.Name = "voltlock"
	}
	if o.Description == "" {
		o.Description = "Coordination layer for home-energy inverter access"
	}
	if o.EnvPrefix == "" {
		o.EnvPrefix = "VOLTLOCK"
	}
	if o.NewTransport == nil {
		o.NewTransport = func(cfg config.DeviceConfig, log logger.Logger) (device.Transport, error) {
			log.Warn("no transport factory configured, using the simulator", "serial", cfg.Serial)
			return device.NewSimulatedTransport(cfg.Serial), nil
		}
	}
}

// NewRootCommand builds the command tree.
//
// Cosa fa: costruisce il comando radice con i sottocomandi serve e version,
// flag --config-file condiviso e override da variabili d'ambiente.
// Cosa NON fa: non esegue nulla; chiamare Execute sul comando restituito.
// Esempio minimo:
//
//	root := cli.NewRootCommand(cli.Options{})
//	if err := root.Execute(); err != nil { os.Exit(1) }
func NewRootCommand(opts Options) *cobra.Command {
	opts.normalize()

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath string
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")

	rootCmd.AddCommand(newServeCommand(opts, &cfgPath))
	rootCmd.AddCommand(newVersionCommand(opts.Name))

	return rootCmd
}

func newVersionCommand(serviceName string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Current(serviceName).String())
			return err
		},
	}
}

func newServeCommand(opts Options, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poller, command worker and management server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewViperLoader(*cfgPath, opts.EnvPrefix)
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if err := loader.Validate(cfg); err != nil {
				return fmt.Errorf("validate configuration: %w", err)
			}

			log, err := logger.NewZapLogger(logger.Config{
				Level:  logger.LogLevel(cfg.Observability.LogLevel),
				Format: logger.LogFormat(cfg.Observability.LogFormat),
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, log, opts.NewTransport)
		},
	}
}

// runServe wires the coordination components and blocks until the context
// is cancelled or one of them fails.
func runServe(ctx context.Context, cfg *config.Config, log logger.Logger, newTransport TransportFactory) error {
	log.Info("starting service",
		"service", cfg.Service.Name,
		"environment", cfg.Service.Environment,
		"locks_backend", cfg.Locks.Backend,
		"cache_backend", cfg.Cache.Backend,
		"publisher", cfg.Publisher.Type,
	)

	locks, err := locking.NewManager(cfg.Locks, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("initialize lock manager: %w", err)
	}
	defer locks.Close()

	repo, err := cache.NewRepository(cfg.Cache, cfg.Redis, locks, log)
	if err != nil {
		return fmt.Errorf("initialize cache repository: %w", err)
	}
	defer repo.Close()

	history, err := cache.NewHistoryStack(repo, locks, cache.KeyReadingHistory, cache.DefaultHistoryDepth)
	if err != nil {
		return fmt.Errorf("initialize history stack: %w", err)
	}

	flags, err := status.NewStore(cfg.Flags, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("initialize flag store: %w", err)
	}
	defer flags.Close()

	// Flags left behind by a crashed run must never block the first command.
	if err := flags.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear stale status flags: %w", err)
	}

	publisher, err := publish.NewPublisher(cfg.Publisher, log)
	if err != nil {
		return fmt.Errorf("initialize publisher: %w", err)
	}
	defer publisher.Close()

	transport, err := newTransport(cfg.Device, log)
	if err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}
	defer transport.Close()

	poller, err := device.NewPoller(transport, locks, repo, history, publisher, log, device.PollerConfig{
		Interval:         cfg.Device.PollInterval,
		AcquireTimeout:   cfg.Locks.AcquireTimeout,
		FullRefreshEvery: cfg.Device.FullRefreshEvery,
		Topic:            cfg.Publisher.Topic,
	})
	if err != nil {
		return fmt.Errorf("initialize poller: %w", err)
	}

	runner, err := device.NewCommandRunner(transport, locks, flags, repo, log, device.CommandRunnerConfig{
		AcquireTimeout: cfg.Locks.AcquireTimeout,
		FlagTTL:        cfg.Flags.DefaultTTL,
	})
	if err != nil {
		return fmt.Errorf("initialize command runner: %w", err)
	}

	worker, err := device.NewWorker(runner, cfg.Device.CommandQueueSize)
	if err != nil {
		return fmt.Errorf("initialize command worker: %w", err)
	}

	healthReg := health.NewRegistry()
	healthReg.Register(health.NewLockChecker(locks))
	healthReg.Register(health.NewCacheChecker(repo))
	healthReg.Register(health.NewFlagChecker(flags))
	healthReg.Register(health.NewPublisherChecker(publisher))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := worker.Start(runCtx); err != nil {
		return fmt.Errorf("start command worker: %w", err)
	}
	defer worker.Stop(context.Background())

	errChan := make(chan error, 2)
	components := 1
	go func() {
		errChan <- poller.Start(runCtx)
	}()

	if cfg.Management.Enabled {
		components++
		srv, err := server.NewManagementServer(cfg.Management, server.Dependencies{
			Readings: repo,
			History:  history,
			Commands: worker,
			Health:   healthReg,
			Metrics:  metrics.NewRegistry(),
		}, log)
		if err != nil {
			cancel()
			<-errChan
			return fmt.Errorf("initialize management server: %w", err)
		}
		go func() {
			errChan <- srv.Start(runCtx)
		}()
	} else {
		log.Warn("management server disabled, readings are only available via the publisher")
	}

	var firstErr error
	consumed := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case firstErr = <-errChan:
		consumed++
		if firstErr != nil {
			log.Error("component failed, shutting down", "error", firstErr)
		}
	}

	cancel()
	// Each component sends exactly one result; drain the rest.
	for ; consumed < components; consumed++ {
		if err := <-errChan; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	log.Info("service stopped")
	return firstErr
}
