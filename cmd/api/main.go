package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/arena-api/internal/config"
	"github.com/yourusername/arena-api/internal/handler"
	"github.com/yourusername/arena-api/internal/middleware"
	pgRepo "github.com/yourusername/arena-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/arena-api/internal/repository/redis"
	"github.com/yourusername/arena-api/internal/service"
	"github.com/yourusername/arena-api/internal/service/scoring"
	ws "github.com/yourusername/arena-api/internal/websocket"
	"github.com/yourusername/arena-api/pkg/auth"
	"github.com/yourusername/arena-api/pkg/database"
	"github.com/yourusername/arena-api/pkg/reward"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	participantRepo := pgRepo.NewParticipantRepo(db)
	sessionRepo := pgRepo.NewSessionRepo(db)
	psRepo := pgRepo.NewParticipantSessionRepo(db)
	rewardRepo := pgRepo.NewRewardRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем JWT сервис
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Создаем контекст с отменой для корректного завершения фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация WebSocket
	wsHub := ws.NewHub()
	go wsHub.Run()
	wsManager := ws.NewManager(wsHub)

	// Транспорт выплат. В проде сюда встает клиент реальной сети,
	// devnet генерирует фиктивные квитанции.
	rewardTransport := reward.NewDevnetTransport()

	// Инициализируем сервисы
	rewardService := service.NewRewardService(
		rewardRepo, participantRepo, cacheRepo,
		rewardTransport, wsManager,
		cfg.Reward.TokenAmount, cfg.Reward.MaxRetries,
	)
	sessionService := service.NewSessionService(
		sessionRepo, psRepo, participantRepo, cacheRepo,
		rewardService, wsManager, scoring.NewEngine(),
		cfg.Session, db,
	)
	authService := service.NewAuthService(participantRepo, jwtService)
	participantService := service.NewParticipantService(participantRepo, rewardRepo)

	// Оборванные соединения должны выводить участника из его сессий
	wsHub.SetDisconnectHandler(sessionService.HandleDisconnect)

	// Фоновая сверка: автозавершение сессий с истекшим дедлайном
	reconciler := service.NewReconciler(sessionRepo, sessionService,
		time.Duration(cfg.Session.ReconcileIntervalSec)*time.Second)
	go reconciler.Run(ctx)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService)
	sessionHandler := handler.NewSessionHandler(sessionService, rewardService)
	participantHandler := handler.NewParticipantHandler(participantService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, sessionService, jwtService)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		// Production: не доверять прокси-заголовкам
		// При деплое за балансировщиком замените nil на его IP
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:8000", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Аутентификация
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", rateLimiter.LimitByIP(middleware.StrictAuthRateLimitConfig()), authHandler.Register)
			authGroup.POST("/login", rateLimiter.LimitByIP(middleware.DefaultAuthRateLimitConfig()), authHandler.Login)

			authedAuth := authGroup.Group("/")
			authedAuth.Use(authMiddleware.RequireAuth())
			{
				authedAuth.POST("/ws-ticket", authHandler.GenerateWsTicket)
			}
		}

		// Участники
		participants := api.Group("/participants")
		participants.Use(authMiddleware.RequireAuth())
		{
			participants.GET("/me", participantHandler.GetMe)
			participants.GET("/me/rewards", participantHandler.GetMyRewards)
		}

		// Глобальный лидерборд (публичный маршрут)
		api.GET("/leaderboard", participantHandler.GetGlobalLeaderboard)

		// Сессии
		sessions := api.Group("/sessions")
		{
			sessions.GET("", sessionHandler.ListSessions)

			// Группа маршрутов, требующих sessionID
			sessionWithID := sessions.Group("/:id")
			sessionWithID.Use(middleware.ExtractUintParam("id", "sessionID"))
			{
				sessionWithID.GET("", sessionHandler.GetSession)
				sessionWithID.GET("/leaderboard", sessionHandler.GetLeaderboard)
				sessionWithID.GET("/leaderboard/export", sessionHandler.ExportLeaderboard)
				sessionWithID.GET("/reward", sessionHandler.GetReward)

				// Маршруты для аутентифицированных участников
				authedSessions := sessionWithID.Group("")
				authedSessions.Use(authMiddleware.RequireAuth())
				{
					authedSessions.POST("/join", sessionHandler.JoinSession)
					authedSessions.POST("/leave", sessionHandler.LeaveSession)
					authedSessions.POST("/score", sessionHandler.UpdateScore)
					authedSessions.POST("/end", sessionHandler.EndSession)
					authedSessions.POST("/cancel", sessionHandler.CancelSession)
					authedSessions.POST("/reward/retry", sessionHandler.RetryReward)
				}
			}

			// Создание сессии
			authedCreate := sessions.Group("")
			authedCreate.Use(authMiddleware.RequireAuth())
			{
				authedCreate.POST("", sessionHandler.CreateSession)
			}
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// После получения сигнала SIGINT или SIGTERM завершаем фоновые горутины
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()
	wsHub.Close()

	// Контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
