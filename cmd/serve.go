package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/sajjad-MoBe/txlog/internal/api"
	"github.com/sajjad-MoBe/txlog/internal/grpcserver"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/metrics"
	"github.com/sajjad-MoBe/txlog/internal/tracing"
)

const (
	healthInterval  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Open the transaction log and serve it over HTTP and gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), s)
		},
	}
}

func runServe(parent context.Context, s *settings) error {
	log := s.log.Module("serve")

	provider, err := tracing.Setup(s.cfg.TracingSetup())
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	readerOpts, _ := s.readerOptions(logentry.WithObserver(collector))
	manager, err := logfile.NewManager(s.cfg.WAL.Dir, s.cfg.LogFile(), s.factory(),
		logfile.WithLogger(s.log.Module("logfile").Logger),
		logfile.WithObserver(collector),
		logfile.WithReaderOptions(readerOpts...),
	)
	if err != nil {
		return err
	}
	defer manager.Close()

	service := api.NewService(manager, collector, s.log.Module("api").Logger)
	healthManager := api.NewHealthManager()
	healthManager.RegisterChecker("log", api.NewLogHealthChecker(manager))
	handler := api.NewHandler(service, healthManager, s.log.Module("api").Logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	httpServer := &http.Server{
		Addr:    s.cfg.Server.HTTPAddr,
		Handler: api.Router(handler, collector, registry, s.log.Module("http").Logger),
	}
	grpcServer := grpcserver.New(s.log.Module("grpc").Logger)
	lis, err := net.Listen("tcp", s.cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	// Not ready until the existing log has been replayed once.
	var recovered atomic.Bool
	go func() {
		report, err := service.Recover(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Startup recovery failed")
			cancel()
			return
		}
		log.Info().Int64("last_tx", report.Result.LastCommittedTxID).Msg("Startup recovery finished")
		recovered.Store(true)
	}()

	go grpcServer.Watch(ctx, func(ctx context.Context) bool {
		return recovered.Load() && healthManager.RunHealthChecks(ctx)
	}, healthInterval)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
			cancel()
		}
	}()

	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("dir", s.cfg.WAL.Dir).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, initiating shutdown")
	case <-ctx.Done():
		log.Warn().Msg("Shutting down due to error")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	grpcServer.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}
	return nil
}
