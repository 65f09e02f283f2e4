package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/certscope/internal/api"
	"github.com/khanhnv2901/certscope/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run certscope as a REST API service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		applyServeFlags(cmd.Flags(), &cfg.Server)

		m := metrics.New()
		analyzer := newAnalyzer(cfg, m)

		// Background jobs outlive the request that started them but not the process.
		jobCtx, cancelJobs := context.WithCancel(context.Background())
		defer cancelJobs()
		jobManager := api.NewJobManager(jobCtx, analyzer, logger.Named("jobs"))
		jobManager.SetMaxJobs(cfg.Server.MaxJobs)
		defer jobManager.Close()

		server := api.NewServer(api.Config{
			Analyzer:    analyzer,
			Jobs:        jobManager,
			Metrics:     m.Handler(),
			Logger:      logger,
			Version:     Version,
			CORSOrigins: cfg.Server.CORSOrigins,
			RateLimit:   cfg.Server.RateLimit,
			RateBurst:   cfg.Server.RateBurst,
		})
		defer server.Close()

		// WriteTimeout must outlast the analysis deadline; the event stream
		// route is long lived and relies on the client disconnecting.
		httpServer := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("%s API server listening on %s\n", colorInfo("→"), cfg.Server.Addr)
			fmt.Printf("%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			logger.Info("server started",
				zap.String("addr", cfg.Server.Addr),
				zap.Duration("analysis_deadline", cfg.Analysis.Deadline),
				zap.Int("rate_limit", cfg.Server.RateLimit),
			)
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Printf("\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)
			logger.Info("shutdown requested", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			cancelJobs()
			jobManager.Wait()
			fmt.Printf("%s Server shutdown complete\n", colorInfo("✓"))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", ":9000", "Address for the API server")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("rate-burst", 20, "Rate limit burst size")
	serveCmd.Flags().Int("max-jobs", 1000, "Maximum number of background jobs kept in memory")
}
