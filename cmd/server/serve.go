package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/chat"
	"github.com/iliyamo/podcast-live/internal/config"
	"github.com/iliyamo/podcast-live/internal/database"
	"github.com/iliyamo/podcast-live/internal/handler"
	"github.com/iliyamo/podcast-live/internal/logger"
	"github.com/iliyamo/podcast-live/internal/middleware"
	"github.com/iliyamo/podcast-live/internal/queue"
	"github.com/iliyamo/podcast-live/internal/repository"
	"github.com/iliyamo/podcast-live/internal/router"
	"github.com/iliyamo/podcast-live/internal/rtc"
	"github.com/iliyamo/podcast-live/internal/service"
	"github.com/iliyamo/podcast-live/internal/storage"
)

func runServe(parent context.Context, autoMigrate bool) error {
	cfg := config.Load()
	log, err := logger.New(cfg.IsDev())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if autoMigrate {
		applied, err := database.MigrateUp(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
		if err != nil {
			return err
		}
		log.Info("migrations checked", zap.Bool("applied", applied))
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unreachable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	uploads, err := storage.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	categories := repository.NewCategoryRepo(db)
	podcasts := repository.NewPodcastRepo(db)
	sessions := repository.NewLiveSessionRepo(db)

	hub := chat.NewHub(cfg.ChatMaxMessageBytes, log)
	issuer := rtc.NewIssuer(cfg.RTC.AppID, cfg.RTC.Certificate, cfg.RTC.TokenTTL)
	if cfg.RTC.Certificate == "" {
		log.Warn("RTC_APP_CERTIFICATE not set; participants get no transport token")
	}

	direct := service.NewDirectArchiver(podcasts, log)
	var archiver service.Archiver = direct
	if cfg.Archive.Mode == "queue" {
		archiver = service.NewQueueArchiver(queue.NewPublisher(cfg.RabbitURL, log))
		go func() {
			err := queue.StartArchiveConsumer(ctx, cfg.RabbitURL, log, direct.HandleLiveEnded)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("archive consumer stopped", zap.Error(err))
			}
		}()
	}
	log.Info("archive mode", zap.String("mode", cfg.Archive.Mode))

	live := service.NewLiveService(service.LiveDeps{
		Store:       sessions,
		Categories:  categories,
		Rooms:       hub,
		Issuer:      issuer,
		Archiver:    archiver,
		Audio:       uploads,
		Placeholder: cfg.Archive.PlaceholderAudioURL,
		Log:         log,
	})

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Chat: hub})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterLive(e,
		handler.NewLiveHandler(live, hub, cache),
		handler.NewChatHandler(hub, cfg.AllowedOrigins, log),
		router.LiveOptions{JWTSecret: cfg.JWTSecret, RateLimit: limit, Cache: cache.Middleware()},
	)
	router.RegisterCatalog(e, handler.NewCatalogHandler(podcasts, categories))
	router.RegisterUploads(e, cfg.UploadDir)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
