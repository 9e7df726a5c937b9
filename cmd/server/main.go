package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/assistmate/assistmate-backend/internal/config"
	"github.com/assistmate/assistmate-backend/internal/db"
	httpHandlers "github.com/assistmate/assistmate-backend/internal/http/handlers"
	httpRouter "github.com/assistmate/assistmate-backend/internal/http/router"
	"github.com/assistmate/assistmate-backend/internal/logger"
	"github.com/assistmate/assistmate-backend/internal/push"
	"github.com/assistmate/assistmate-backend/internal/repository"
	"github.com/assistmate/assistmate-backend/internal/service"
	"github.com/assistmate/assistmate-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Внешние коллабораторы: проверка токенов и push-шлюз.
	verifier := service.NewTokenVerifier(cfg.IdentitySecret, cfg.IdentityIssuer)
	pushClient := push.NewClient(cfg.PushBaseURL, cfg.PushAPIKey, cfg.PushTimeout)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	requestRepo := repository.NewRequestRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	chatRepo := repository.NewChatRepository(dbConn)

	// Сервисы.
	userService := service.NewUserService(userRepo, logger.Log)
	notificationService := service.NewNotificationService(notificationRepo, pushClient, logger.Log)
	requestService := service.NewRequestService(requestRepo, userRepo, notificationService, logger.Log)
	chatService := service.NewChatService(chatRepo, requestRepo, userRepo, requestRepo, notificationService, logger.Log)

	// Вебсокеты: комнаты переписки по заявкам.
	hub := ws.NewHub()
	go hub.Run()

	// HTTP хэндлеры.
	requestHandler := httpHandlers.NewRequestHandler(requestService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	userHandler := httpHandlers.NewUserHandler(userService)
	chatHandler := httpHandlers.NewChatHandler(chatService)
	wsHandler := httpHandlers.NewWSHandler(hub, chatService, logger.Log)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		verifier,
		userService,
		requestService,
		requestHandler,
		notificationHandler,
		userHandler,
		chatHandler,
		wsHandler,
		healthHandler,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
