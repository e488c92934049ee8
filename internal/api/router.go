package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mailhaven/core/internal/api/handlers"
	"github.com/mailhaven/core/internal/api/middleware"
	"github.com/mailhaven/core/internal/classifier"
	"github.com/mailhaven/core/internal/config"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/notify"
	"github.com/mailhaven/core/internal/services"
	"gorm.io/gorm"
)

// SetupRouter initializes the Gin router with all routes, services and the
// background sync scheduler. The returned scheduler is not started; callers
// start it and stop it on shutdown.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *middleware.AuthManager, *services.Scheduler, error) {
	router := gin.Default()

	origins := []string{"*"}
	if cfg.CORSOrigins != "" && cfg.CORSOrigins != "*" {
		origins = strings.Split(cfg.CORSOrigins, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authManager, err := middleware.NewAuthManager(cfg.DataDir, cfg.JWTSecret, middleware.DefaultTokenExpiry)
	if err != nil {
		return nil, nil, nil, err
	}

	// Services
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService := services.NewUserService(db)
	credentialService := services.NewCredentialService(db, cfg.GetEncryptionKey())
	messageService := services.NewMessageService(db, credentialService)

	classifierClient := classifier.NewClient()
	classifierClient.ConfigureWithBaseURL(cfg.ClassifierProvider, cfg.ClassifierAPIKey, cfg.ClassifierModel, cfg.ClassifierBaseURL)

	ingestService := services.NewIngestService(db, credentialService, classifierClient, cfg.DataDir)

	notifier := notify.NewSlackNotifier(db, cfg.SlackClientID, cfg.SlackClientSecret, cfg.SlackRedirectURL)
	notifier.SetLogger(func(userID uint, action, msg string, details map[string]interface{}) {
		logService.LogWarn(userID, models.LogModuleNotify, action, msg, details)
	})
	ingestService.SetNotifier(notifier)

	syncService := services.NewSyncService(db, credentialService, ingestService)
	scheduler := services.NewScheduler(syncService, 10*time.Minute)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, authManager.JWTManager, logService)
	credentialHandler := handlers.NewCredentialHandler(credentialService, syncService, logService)
	messageHandler := handlers.NewMessageHandler(messageService, ingestService, logService)
	notifyHandler := handlers.NewNotifyHandler(notifier, authManager.JWTManager, logService)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Slack redirects the browser here; no API key on that request
		api.GET("/slack/callback", notifyHandler.Callback)

		keyed := api.Group("")
		keyed.Use(middleware.APIKeyMiddleware(authManager.APIKeyManager))

		auth := keyed.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		protected := keyed.Group("")
		protected.Use(middleware.JWTMiddleware(authManager.JWTManager))
		{
			protected.POST("/auth/refresh", authHandler.RefreshToken)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.PUT("/auth/password", authHandler.ChangePassword)

			credentials := protected.Group("/credentials")
			{
				credentials.GET("", credentialHandler.ListCredentials)
				credentials.POST("", credentialHandler.CreateCredential)
				credentials.GET("/:id", credentialHandler.GetCredential)
				credentials.PUT("/:id", credentialHandler.UpdateCredential)
				credentials.DELETE("/:id", credentialHandler.DeleteCredential)
				credentials.POST("/:id/test", credentialHandler.TestCredential)
				credentials.POST("/:id/sync", credentialHandler.SyncCredential)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("", messageHandler.ListMessages)
				messages.GET("/counts", messageHandler.GetCounts)
				messages.POST("/send", messageHandler.SendMessage)
				messages.POST("/bulk-move", messageHandler.BulkMove)
				messages.GET("/:id", messageHandler.GetMessage)
				messages.PATCH("/:id/action", messageHandler.ApplyAction)
			}

			slack := protected.Group("/slack")
			{
				slack.GET("/config", notifyHandler.GetConfig)
				slack.GET("/install", notifyHandler.GetInstallURL)
				slack.GET("/status", notifyHandler.GetStatus)
			}
		}
	}

	return router, authManager, scheduler, nil
}
