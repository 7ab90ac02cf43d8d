package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/api/handlers"
	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/config"
	"github.com/kritiqo/core/internal/services"
	"github.com/kritiqo/core/internal/user"
)

// SetupRouter initializes the Gin router with all routes configured. It also
// wires the services and starts the background triage scheduler.
func SetupRouter(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) (*gin.Engine, *middleware.AuthManager, error) {
	router := gin.Default()

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSOrigins == "" || cfg.CORSOrigins == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.CORSOrigins, ",")
	}
	router.Use(cors.New(corsConfig))

	authManager, err := middleware.NewAuthManager(cfg.DataDir, cfg.JWTSecret, middleware.DefaultTokenExpiry)
	if err != nil {
		return nil, nil, err
	}

	userManager := user.NewManager(cfg.DataDir)
	storage := user.NewStorage(userManager)

	userService := services.NewUserService(db, userManager)
	logService := services.NewLogService(db)
	accountService := services.NewAccountService(db, cfg.GetEncryptionKey())
	ingestService := services.NewIngestService(db, accountService, storage, logger)
	triageService := services.NewTriageService(db, userService, logger)

	// Background import + triage every 2 minutes
	scheduler := services.NewTriageScheduler(db, ingestService, triageService, accountService, logger, 2*time.Minute)
	scheduler.Start()

	authHandler := handlers.NewAuthHandler(userService, authManager.JWTManager, logService)
	accountHandler := handlers.NewAccountHandler(accountService, ingestService, triageService, scheduler)
	messageHandler := handlers.NewMessageHandler(ingestService)
	triageHandler := handlers.NewTriageHandler(triageService)
	settingsHandler := handlers.NewSettingsHandler(userService)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.Use(middleware.APIKeyMiddleware(authManager.APIKeyManager))

		// Auth routes (API key required, no JWT yet)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes (API key + JWT required)
		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(authManager.JWTManager))
		{
			protected.POST("/auth/refresh", authHandler.RefreshToken)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			accounts := protected.Group("/accounts")
			{
				accounts.GET("", accountHandler.ListAccounts)
				accounts.POST("", accountHandler.ConnectOAuthAccount)
				accounts.POST("/imap", accountHandler.ConnectIMAPAccount)
				accounts.DELETE("/:id", accountHandler.DeleteAccount)
				accounts.PUT("/:id/enable", accountHandler.SetAccountEnabled(true))
				accounts.PUT("/:id/disable", accountHandler.SetAccountEnabled(false))
				accounts.POST("/:id/import", accountHandler.ImportAccount)
				accounts.POST("/:id/triage", accountHandler.TriageAccount)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("", messageHandler.ListMessages)
				messages.GET("/:id", messageHandler.GetMessage)
			}

			protected.POST("/triage", triageHandler.Triage)

			settings := protected.Group("/settings")
			{
				settings.GET("", settingsHandler.GetSettings)
				settings.PUT("", settingsHandler.UpdateSettings)
			}
		}
	}

	return router, authManager, nil
}
