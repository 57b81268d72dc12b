package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursetrack/coursetrack/internal/config"
	"github.com/coursetrack/coursetrack/internal/database"
	"github.com/coursetrack/coursetrack/internal/ratelimit"
	"github.com/coursetrack/coursetrack/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	slog.Info("database migrations applied")

	srv := server.New(server.Config{
		DB:             db.Pool,
		Pinger:         db,
		JWTSecret:      cfg.JWTSecret,
		BaseURL:        cfg.BaseURL,
		MetricsEnabled: cfg.MetricsEnabled,
		APIDocsEnabled: cfg.APIDocsEnabled,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		WebhookURL:     cfg.WebhookURL,
		WebhookSecret:  cfg.WebhookSecret,
	})

	httpServer := newHTTPServer(cfg.Port, srv)
	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		log.Fatalf("listen on %s: %v", httpServer.Addr, err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("coursetrack listening", "addr", httpServer.Addr)
	if err := serve(runCtx, httpServer, ln, srv.Limiter()); err != nil {
		log.Fatalf("server: %v", err)
	}
	srv.Drain()
	slog.Info("shutdown complete")
}

func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// serve runs the HTTP server and the limiter cleanup until ctx is done or
// the server fails, then shuts down gracefully.
func serve(ctx context.Context, httpServer *http.Server, ln net.Listener, limiter *ratelimit.Limiter) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if limiter != nil {
		g.Go(func() error {
			limiter.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
