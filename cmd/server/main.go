package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/yaso2000/dinebuddies-sub000/internal/config"
	"github.com/yaso2000/dinebuddies-sub000/internal/handler"
	"github.com/yaso2000/dinebuddies-sub000/internal/middleware"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"github.com/yaso2000/dinebuddies-sub000/internal/service"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
	"github.com/yaso2000/dinebuddies-sub000/internal/ws"
	"github.com/yaso2000/dinebuddies-sub000/migrations"
	"github.com/yaso2000/dinebuddies-sub000/pkg/auth"
	"github.com/yaso2000/dinebuddies-sub000/pkg/mailer"
	"github.com/yaso2000/dinebuddies-sub000/pkg/notification"
	"github.com/yaso2000/dinebuddies-sub000/pkg/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           DineBuddies Chat API
// @version         1.0
// @description     Conversation sync engine for the DineBuddies dining app: direct, group, and community chat with real-time delivery over WebSocket and Redis Pub/Sub.

// @contact.name   API Support
// @contact.email  support@dinebuddies.local

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting DineBuddies Chat API [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := db.AutoMigrate(
			&model.User{},
			&model.UserDevice{},
			&model.Conversation{},
			&model.ConversationMember{},
			&model.Message{},
			&model.MessageReaction{},
		); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Email (SMTP / Mailpit) ====================
	mailClient := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	log.Printf("📧 SMTP configured: %s:%s", cfg.SMTP.Host, cfg.SMTP.Port)

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	// Message store with Redis-signalled snapshot subscriptions
	msgStore := store.NewDBStore(convRepo, msgRepo, rdb)

	// Push notifications (FCM)
	pusher, err := notification.NewFCMPusher(cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Printf("⚠️  FCM init failed: %v", err)
	}
	var dispatcher *service.NotificationDispatcher
	if pusher != nil {
		dispatcher = service.NewNotificationDispatcher(userRepo, pusher)
	}

	// Services
	authService := service.NewAuthService(userRepo, jwtManager, rdb)
	chatService := service.NewChatService(convRepo, msgRepo, userRepo, msgStore, dispatcher, mailClient)

	// WebSocket Hub (with Redis Pub/Sub for horizontal scaling)
	hub := ws.NewHub(rdb, func(userID uuid.UUID, online bool) {
		_ = userRepo.UpdateOnlineStatus(userID, online)
		log.Printf("👤 User %s is now %s", userID, map[bool]string{true: "ONLINE", false: "OFFLINE"}[online])
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go hub.Run(runCtx)

	// Hourly group expiry sweep
	lifecycle := service.NewLifecycleService(convRepo, msgStore, hub, cfg.Sweep.Interval)
	go lifecycle.Run(runCtx)

	// MinIO Storage
	minioStorage, err := storage.NewMinIO(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		log.Printf("⚠️  MinIO not available: %v (file upload disabled)", err)
	}
	if minioStorage != nil {
		log.Println("✅ Connected to MinIO")
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService, hub)
	wsHandler := handler.NewWSHandler(hub, chatService, msgStore, jwtManager)
	uploadHandler := handler.NewUploadHandler(minioStorage)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Serve swagger.json outside the /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "dinebuddies-chat",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager, rdb))
		{
			// Account
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.GetProfile)
			protected.GET("/users/search", authHandler.SearchUsers)
			protected.PUT("/users/preferences", authHandler.UpdatePreferences)
			protected.POST("/users/devices", authHandler.RegisterDevice)

			// Conversations
			protected.GET("/conversations", chatHandler.GetConversations)
			protected.GET("/conversations/direct/:userId", chatHandler.ResolveDirect)
			protected.POST("/conversations/direct", chatHandler.SendDirect)
			protected.POST("/conversations/group", chatHandler.CreateGroup)
			protected.POST("/conversations/community", chatHandler.CreateCommunity)
			protected.POST("/conversations/:id/join", chatHandler.JoinCommunity)
			protected.GET("/conversations/:id", chatHandler.GetConversation)

			// Messages
			protected.GET("/conversations/:id/messages", chatHandler.GetMessages)
			protected.POST("/conversations/:id/messages", chatHandler.SendMessage)
			protected.POST("/conversations/:id/messages/:messageId/react", chatHandler.React)
			protected.POST("/conversations/:id/read", chatHandler.MarkAsRead)

			// Upload
			protected.POST("/upload", uploadHandler.UploadFile)
		}
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 DineBuddies Chat API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("🔌 WebSocket: ws://0.0.0.0:%s/ws?token=<jwt>", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	runCancel()
	log.Println("✅ Server exited gracefully")
}
