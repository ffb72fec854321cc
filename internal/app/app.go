// Package app wires the configured adapters together and runs the HTTP server
// until the context is canceled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/tinylink/internal/adapter/events/kafka"
	"github.com/vadimbarashkov/tinylink/internal/adapter/provider/tinyurl"
	"github.com/vadimbarashkov/tinylink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/tinylink/internal/config"
	"github.com/vadimbarashkov/tinylink/internal/usecase"
	"github.com/vadimbarashkov/tinylink/pkg/postgres"
	"github.com/vadimbarashkov/tinylink/pkg/ratelimit"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/tinylink/internal/adapter/delivery/http"
	pgrepo "github.com/vadimbarashkov/tinylink/internal/adapter/repository/postgres"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *config.Config) *httplog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	return httplog.NewLogger("tinylink", httplog.Options{
		LogLevel:       level,
		JSON:           cfg.Env != config.EnvDev,
		Concise:        cfg.Env == config.EnvDev,
		RequestHeaders: cfg.Env != config.EnvProd,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

func newCodeGenerator(cfg *config.Config) (usecase.CodeGenerator, error) {
	switch cfg.ShortCode.Generator {
	case config.GeneratorShortID:
		return usecase.NewShortIDGenerator(1, uint64(time.Now().UnixNano()))
	default:
		return usecase.NewNanoIDGenerator(cfg.ShortCode.Length), nil
	}
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)

	genCode, err := newCodeGenerator(cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to create url code generator: %w", op, err)
	}

	shortener := tinyurl.New(
		cfg.Provider.APIKey,
		tinyurl.WithBaseURL(cfg.Provider.BaseURL),
		tinyurl.WithDomain(cfg.Provider.Domain),
		tinyurl.WithTimeout(cfg.Provider.Timeout),
	)

	opts := []usecase.Option{
		usecase.WithCodeGenerator(genCode),
		usecase.WithLogger(logger.Logger),
	}

	if cfg.Kafka.Enabled() {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("failed to close event publisher", slog.Any("err", err))
			}
		}()

		opts = append(opts, usecase.WithEventPublisher(publisher))
		logger.Info("publishing url events", slog.String("topic", cfg.Kafka.Topic))
	}

	var urlUseCase *usecase.URLUseCase

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage, records are lost on restart")
		urlUseCase = usecase.New(memory.NewURLRepository(), shortener, opts...)
	default:
		db, err := postgres.Open(ctx, cfg.Postgres.DSN(), postgres.Pool{
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer db.Close()

		if err := postgres.Migrate(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN(), logger.Logger); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		urlUseCase = usecase.New(pgrepo.NewURLRepository(db), shortener, opts...)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.RPS > 0 {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TTL)
	}

	router := delivery.NewRouter(logger, urlUseCase, delivery.Options{
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
		RateLimiter:    limiter,
		QRSize:         cfg.QR.Size,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
