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

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/umsys/user-management/internal/command"
	"github.com/umsys/user-management/internal/config"
	"github.com/umsys/user-management/internal/handler"
	"github.com/umsys/user-management/internal/notify"
	"github.com/umsys/user-management/internal/query"
	"github.com/umsys/user-management/internal/repository"
	"github.com/umsys/user-management/shared/events"
	"github.com/umsys/user-management/shared/middleware"
	"github.com/umsys/user-management/shared/observability"
	redisClient "github.com/umsys/user-management/shared/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	middleware.InitJWTSecret(cfg.JWTSecret)

	sentryEnv := cfg.SentryEnvironment
	if sentryEnv == "" {
		sentryEnv = cfg.Env
	}
	reporter := observability.NewSentry(cfg.SentryDSN, sentryEnv, logger)
	defer reporter.Close()
	defer reporter.Recover()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "user-management", cfg.Version, cfg.Env, cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	// Database connection (write store)
	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis connection (read model, notification store, event streaming)
	redis, err := redisClient.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redis.Close()

	publisher := events.NewPublisher(redis.Client)

	userWriteRepo := repository.NewUserWriteRepository(db)
	userReadRepo := repository.NewUserReadRepository(db, redis.Client, cfg.UserCacheTTL, logger)
	addressRepo := repository.NewAddressRepository(db)
	passwordChangeRepo := repository.NewPasswordChangeRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	notificationRepo := repository.NewNotificationRepository(redis.Client, logger)

	// --- notification transports ---
	registry := notify.Registry{}
	registry.Register(notify.NewEmailTransport(notify.SMTPSettings{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, cfg.AdminEmail, logger))
	registry.Register(notify.NewInAppTransport(publisher))
	if cfg.FirebaseCredentialsFile != "" {
		push, err := notify.NewPushTransport(ctx, cfg.FirebaseCredentialsFile, deviceRepo, logger)
		if err != nil {
			return err
		}
		registry.Register(push)
	}
	channels, err := cfg.Notify.ChannelList()
	if err != nil {
		return err
	}
	transports, err := registry.Select(channels)
	if err != nil {
		return err
	}

	opts := notify.Options{
		MaxAttempts:    cfg.Notify.MaxAttempts,
		RetryBase:      cfg.Notify.RetryBase,
		BroadcastRate:  cfg.Notify.BroadcastRate,
		BroadcastBurst: cfg.Notify.BroadcastBurst,
	}
	if cfg.Notify.Delivery == config.DeliveryOutbox {
		opts.Outbox = notify.NewOutbox(publisher)
	}
	dispatcher := notify.NewDispatcher(notificationRepo, userWriteRepo, transports, opts, logger, reporter)

	// --- CQRS wiring ---
	userCommands := command.NewUserCommandService(userWriteRepo, userReadRepo, publisher, dispatcher, logger)
	addressCommands := command.NewAddressCommandService(addressRepo, userWriteRepo, publisher, logger)
	passwordCommands := command.NewPasswordChangeCommandService(passwordChangeRepo, userWriteRepo, publisher, dispatcher, logger)
	notificationCommands := command.NewNotificationCommandService(notificationRepo, userWriteRepo, deviceRepo, dispatcher, logger)

	respond := handler.NewResponder(logger, reporter)
	userHandler := handler.NewUserHandler(userCommands, query.NewUserQueryService(userReadRepo), respond)
	addressHandler := handler.NewAddressHandler(addressCommands, query.NewAddressQueryService(addressRepo), respond)
	passwordHandler := handler.NewPasswordChangeHandler(passwordCommands, query.NewPasswordChangeQueryService(passwordChangeRepo), respond)
	notificationHandler := handler.NewNotificationHandler(notificationCommands, query.NewNotificationQueryService(notificationRepo), respond)

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))

	admin := middleware.AdminOnly()
	v1 := router.Group("/v1", middleware.AuthMiddleware())

	users := v1.Group("/users")
	{
		users.POST("", admin, userHandler.CreateUser)
		users.GET("", admin, userHandler.ListUsers)
		users.GET("/email/:email", admin, userHandler.GetUserByEmail)
		users.GET("/password-change-requests/pending", admin, passwordHandler.ListPending)
		users.PUT("/password-change-requests/:requestId/approve", admin, passwordHandler.ResolveChange)
		users.GET("/:userId", userHandler.GetUser)
		users.PATCH("/:userId", userHandler.UpdateUser)
		users.DELETE("/:userId", userHandler.DeleteUser)
		users.PUT("/:userId/password", admin, userHandler.ResetPassword)
		users.POST("/:userId/change-password", passwordHandler.RequestChange)
		users.PUT("/:userId/approve-password-change", admin, passwordHandler.ResolveChangeForUser)
		users.POST("/:userId/devices", notificationHandler.RegisterDevice)
		users.GET("/:userId/addresses", addressHandler.ListUserAddresses)
		users.GET("/:userId/notifications", notificationHandler.ListUserNotifications)
	}

	addresses := v1.Group("/addresses")
	{
		addresses.POST("", addressHandler.CreateAddress)
		addresses.GET("", admin, addressHandler.ListAddresses)
		addresses.GET("/:addressId", addressHandler.GetAddress)
		addresses.PUT("/:addressId", addressHandler.UpdateAddress)
		addresses.DELETE("/:addressId", addressHandler.DeleteAddress)
		addresses.PUT("/:addressId/primary", addressHandler.SetPrimaryAddress)
	}

	notifications := v1.Group("/notifications")
	{
		notifications.POST("", admin, notificationHandler.CreateNotification)
		notifications.GET("", admin, notificationHandler.ListNotifications)
		notifications.POST("/broadcast", admin, notificationHandler.Broadcast)
		notifications.GET("/:id", notificationHandler.GetNotification)
		notifications.PATCH("/:id/read", notificationHandler.MarkNotificationRead)
		notifications.DELETE("/:id", notificationHandler.DeleteNotification)
	}

	router.GET("/health", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
		code := http.StatusOK
		if err := db.PingContext(checkCtx); err != nil {
			status["database"], status["status"], code = err.Error(), "degraded", http.StatusServiceUnavailable
		}
		if err := redis.Healthy(checkCtx); err != nil {
			status["redis"], status["status"], code = err.Error(), "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	// Outbox delivery worker
	if cfg.Notify.Delivery == config.DeliveryOutbox {
		worker := notify.NewOutboxWorker(dispatcher, notificationRepo, logger)
		go func() {
			subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
				Group:            "notification-delivery-group",
				Consumer:         cfg.Notify.Consumer,
				Stream:           events.NotificationDeliveryStream,
				Handler:          worker.HandleDeliveryEvent,
				ReclaimIdle:      cfg.Notify.ReclaimIdle,
				MaxDeliveries:    cfg.Notify.MaxDeliveries,
				DeadLetterStream: events.NotificationDeadStream,
				Logger:           logger,
			})
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox subscriber stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("user management service starting", "port", cfg.Port, "channels", channels, "delivery", cfg.Notify.Delivery)
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

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	reporter.Flush(2 * time.Second)
	return nil
}
