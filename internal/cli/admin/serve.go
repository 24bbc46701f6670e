package admin

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/kbchat/internal/api/handlers"
	"github.com/cloo-solutions/kbchat/internal/api/middleware"
	"github.com/cloo-solutions/kbchat/internal/database"
	"github.com/cloo-solutions/kbchat/internal/repository"
	"github.com/cloo-solutions/kbchat/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the kbchat API server, applying pending database migrations first",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides KBCHAT_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	source, _ := cmd.Flags().GetString("migrations")

	rt, err := newRuntime(ctx, runtimeOptions{migrate: !noMigrate, migrationSource: source})
	if err != nil {
		return err
	}
	defer rt.close()

	port := rt.cfg.Port
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	var limiter *middleware.IPRateLimiter
	if rt.cfg.HasRateLimit() {
		limiter = middleware.NewIPRateLimiter(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
		rt.log.Info("rate limiting enabled", zap.Float64("rps", rt.cfg.RateLimitRPS), zap.Int("burst", rt.cfg.RateLimitBurst))
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:         rt.log,
		ChatHandler:    handlers.NewChatHandler(rt.chatService(), repository.NewChatLogRepository(rt.pool)),
		IngestHandler:  handlers.NewIngestHandler(rt.ingestService()),
		RateLimiter:    limiter,
		HealthCheck:    rt.pool.Ping,
		MetricsHandler: promhttp.Handler(),
		MaxBodyBytes:   rt.cfg.MaxBodyBytes,
		TrustProxy:     rt.cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	rt.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	rt.log.Info("server exited")
	return nil
}
