package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"smartimmo/internal/ratelimit"
	"smartimmo/internal/util"
	"smartimmo/pkg/events"
	"smartimmo/pkg/storage"
	"smartimmo/services/catalog/internal/config"
	"smartimmo/services/catalog/internal/security"
	"smartimmo/services/catalog/internal/server"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.FileConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}
	signupLimiter, err := newLimiter(cfg, "signup", cfg.SignupRateLimitPerMinute)
	if err != nil {
		return err
	}
	loginLimiter, err := newLimiter(cfg, "login", cfg.LoginRateLimitPerMinute)
	if err != nil {
		return err
	}
	alerter := security.NewAlerter(cfg.RedisAddr, cfg.RedisPassword, "")
	defer alerter.Close()
	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		_ = publisher.Close()
		return err
	}

	appCore, err := newApp(cfg, publisher, images)
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("init app: %w", err)
	}
	defer appCore.Close()

	httpServer := server.New(server.Config{
		App:                appCore,
		APIPrefix:          cfg.APIPrefix,
		Environment:        cfg.Environment,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     trusted,
		Alerter:            alerter,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		SignupLimiter:      signupLimiter,
		LoginLimiter:       loginLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("catalog server listening", "addr", addr, "environment", cfg.Environment, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("catalog server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLimiter returns nil, meaning unlimited, when limit is zero.
func newLimiter(cfg config.FileConfig, name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
	if limit <= 0 {
		return nil, nil
	}
	var (
		limiter *ratelimit.FixedWindowLimiter
		err     error
	)
	if cfg.RedisAddr != "" {
		prefix := ratelimit.DefaultPrefix + ":" + name
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
	} else {
		limiter, err = ratelimit.NewMemoryFixedWindowLimiter(limit, time.Minute)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s limiter: %w", name, err)
	}
	return limiter, nil
}

// newPublisher prefers RabbitMQ, then a Redis stream, then no events.
func newPublisher(cfg config.FileConfig) (events.Publisher, error) {
	switch {
	case cfg.AMQPURL != "":
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("init amqp publisher: %w", err)
		}
		return pub, nil
	case cfg.EventStream != "" && cfg.RedisAddr != "":
		pub, err := events.NewRedisStreamPublisher(events.RedisStreamConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.EventStream,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis stream publisher: %w", err)
		}
		return pub, nil
	default:
		return events.NopPublisher{}, nil
	}
}

// newImageStore returns nil when no MinIO endpoint is configured.
func newImageStore(ctx context.Context, cfg config.FileConfig) (storage.ObjectStore, error) {
	if cfg.MinioEndpoint == "" {
		slog.Info("image uploads disabled: minioEndpoint not set")
		return nil, nil
	}
	images, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.MinioBucket,
		UseSSL:        cfg.MinioUseSSL,
		PublicBaseURL: cfg.MinioPublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init image store: %w", err)
	}
	return images, nil
}
