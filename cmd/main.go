package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strangerchat/backend/internal/api/handler"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/messaging"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
	"strangerchat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := setupStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	localizer, err := localization.NewLocalizer()
	if err != nil {
		return fmt.Errorf("failed to create localizer: %w", err)
	}

	var (
		bot       *tgbotapi.BotAPI
		transport chathub.Transport
		channels  complaint.FanOut
	)
	if cfg.Telegram.Token != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("failed to start telegram bot: %w", err)
		}
		logger.Info("authorized on telegram", zap.String("account", bot.Self.UserName))
		transport = telegram.NewClient(bot, logger.Named("telegram"))
		if cfg.Telegram.AdminGroupID != 0 {
			channels = append(channels, telegram.NewAdminGroup(bot, cfg.Telegram.AdminGroupID, localizer, cfg.Language, logger.Named("admin_group")))
		}
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, serving WebSocket participants only")
	}

	var bus *messaging.AdminBus
	if cfg.NATS.URL != "" {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		nc, err := messaging.NewNATSClient(natsCfg, logger.Named("nats"))
		if err != nil {
			return err
		}
		defer nc.Close()
		bus = messaging.NewAdminBus(nc, logger.Named("nats"))
		channels = append(channels, bus)
	}

	opts := chathub.Options{
		Storage:   store,
		Transport: transport,
		Renderer:  localizer,
		Language:  cfg.Language,
		OwnerID:   cfg.Telegram.OwnerID,
		Logger:    logger,
	}
	if len(channels) > 0 {
		opts.AdminChannel = channels
	}
	hub := chathub.NewManagerService(opts)
	if err := hub.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore pairings: %w", err)
	}

	if bus != nil {
		err := bus.Listen(func(ctx context.Context, adminID int64, cmd models.ModerationCommand) error {
			_, err := hub.ResolveReport(ctx, adminID, cmd)
			return err
		})
		if err != nil {
			return err
		}
	}

	if bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := bot.GetUpdatesChan(u)
		botService := telegram.NewBotService(bot, hub, logger.Named("bot"))
		go botService.Run(ctx, updates)
		defer bot.StopReceivingUpdates()
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(hub, handler.Options{
		JWTSecret: cfg.HTTP.JWTSecret,
		TokenTTL:  cfg.HTTP.TokenTTL,
		Logger:    logger.Named("http"),
	})
	server := &http.Server{
		Addr:           cfg.HTTP.Addr,
		Handler:        h.Routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

// setupStorage opens the configured store. For PostgreSQL it runs the
// migrations first and attaches the Redis ban cache when configured.
func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, func(), error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage, state is lost on restart")
		return storage.NewMemoryStorage(), func() {}, nil
	}

	if err := storage.Migrate(cfg.Storage.DSN, logger.Named("migrate")); err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(postgres.Open(cfg.Storage.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, ban cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			rdb.Close()
			rdb = nil
		}
	}

	closeFn := func() {
		if rdb != nil {
			rdb.Close()
		}
		sqlDB.Close()
	}
	logger.Info("database connections established")
	return storage.NewStorageService(db, rdb, logger.Named("storage"), cfg.Storage.BanCacheTTL), closeFn, nil
}
