package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"audio-transcriber/internal/api/server"
	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/app/metrics"
	"audio-transcriber/internal/app/session"
	"audio-transcriber/internal/app/workflow"
	"audio-transcriber/internal/config"
)

var (
	host string
	port int
)

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload page and HTTP API",
	RunE:  run,
}

func init() {
	Cmd.Flags().StringVar(&host, "host", "", "listen host (overrides TRANSCRIBER_HOST)")
	Cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides TRANSCRIBER_PORT)")
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}

	logger, err := logging.NewLogger(cfg.Server.IsDevelopment() || verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	transcriber, err := provider.New(cfg.Provider, logger)
	if err != nil {
		return err
	}
	info, err := provider.GetProviderInfo(cfg.Provider.Name)
	if err != nil {
		return err
	}

	m := metrics.New()
	policy := intake.DefaultPolicy()
	newController := func() *workflow.Controller {
		return workflow.NewController(transcriber,
			workflow.WithLogger(logger),
			workflow.WithMetrics(m),
			workflow.WithPolicy(policy),
			workflow.WithTimeout(cfg.Provider.RequestTimeout),
			workflow.WithEventHistory(cfg.Session.EventHistory),
		)
	}
	store := session.NewStore(newController, cfg.Session.TTL, logger, m)

	srv := server.NewServer(server.Config{
		Addr:              cfg.Server.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		Environment:       cfg.Server.Env,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
	}, server.Dependencies{
		Sessions:      store,
		NewController: newController,
		Policy:        policy,
		Provider:      info,
		Metrics:       m,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		store.Run(sweepCtx, cfg.Session.SweepInterval)
	}()

	if err := srv.Start(); err != nil {
		stopSweep()
		<-sweepDone
		return fmt.Errorf("failed to start server: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Closing the sessions ends open event streams so Shutdown does not wait on them.
	stopSweep()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}
