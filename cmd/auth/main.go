package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/blog_auth/internal/config"
	"github.com/Skotchmaster/blog_auth/internal/db"
	"github.com/Skotchmaster/blog_auth/internal/hash"
	"github.com/Skotchmaster/blog_auth/internal/httpserver"
	"github.com/Skotchmaster/blog_auth/internal/logging"
	"github.com/Skotchmaster/blog_auth/internal/metrics"
	"github.com/Skotchmaster/blog_auth/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/blog_auth/internal/middleware/logging"
	"github.com/Skotchmaster/blog_auth/internal/mykafka"
	"github.com/Skotchmaster/blog_auth/internal/repo"
	"github.com/Skotchmaster/blog_auth/internal/service"
	"github.com/Skotchmaster/blog_auth/internal/tokens"
)

func main() {
	cfg := config.Load()
	cfg.Validate()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(loggingmw.RequestLogger(logger))

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err == nil {
		err = db.Migrate(initCtx, gdb)
	}
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}
	defer sqlDB.Close()

	gormRepo := repo.NewGormRepo(gdb)
	checks := []func(ctx context.Context) error{sqlDB.PingContext}

	var refreshStore service.RefreshStore = gormRepo
	if cfg.RefreshStore == config.RefreshStoreRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		refreshStore = repo.NewRedisRefreshRepo(rdb, cfg.ServiceName, cfg.RefreshTTL)
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	signer, err := tokens.NewSigner(tokens.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}

	m := metrics.New()
	svc := &service.AuthService{
		Users:              gormRepo,
		RefreshTokens:      refreshStore,
		Hasher:             hash.NewHasher(cfg.BcryptCost),
		Tokens:             signer,
		Metrics:            m,
		UniformLoginErrors: cfg.UniformLoginErrors,
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaUserTopic)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer producer.Close()
		svc.Events = producer
	} else {
		logger.Info("kafka disabled, auth events are not published")
	}

	deps := &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, CookieSecure: cfg.CookieSecure},
		Verifier:    signer,
		Metrics:     m,
		Ready: func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	if cfg.CSRFEnabled {
		deps.CSRF = csrf.Middleware(csrf.Config{
			Secure:            cfg.CookieSecure,
			EnforceSameOrigin: true,
			SkipBearer:        true,
		})
	}
	httpserver.Register(e, deps)

	go func() {
		if err := e.Start(cfg.AuthAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()
	logger.Info("auth service started", "addr", cfg.AuthAddr, "refresh_store", cfg.RefreshStore)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
}
