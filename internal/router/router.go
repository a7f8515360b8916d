package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zenfocus/backend/internal/handler"
	"zenfocus/backend/internal/middleware"
	"zenfocus/backend/internal/service"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Auth     *handler.AuthHandler
	Timer    *handler.TimerHandler
	Settings *handler.SettingsHandler
	History  *handler.HistoryHandler
	Insight  *handler.InsightHandler
}

// New builds the route table. Uploaded assets are served read-only from
// assetsDir under /assets when assetsDir is non-empty.
func New(
	authService *service.AuthService,
	handlers Handlers,
	corsOrigins []string,
	assetsDir string,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(middleware.RequestLogger(logger), middleware.Recovery(logger), middleware.CORS(corsOrigins))
	engine.MaxMultipartMemory = 8 << 20

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if assetsDir != "" {
		engine.Static("/assets", assetsDir)
	}

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(authService))
	protected.GET("/me", handlers.Auth.Me)

	timer := protected.Group("/timer")
	timer.GET("", handlers.Timer.GetState)
	timer.POST("/start", handlers.Timer.Start)
	timer.POST("/pause", handlers.Timer.Pause)
	timer.POST("/stop", handlers.Timer.Stop)
	timer.POST("/next", handlers.Timer.Next)
	timer.POST("/mode", handlers.Timer.SwitchMode)
	timer.PUT("/note", handlers.Timer.SetNote)
	timer.GET("/events", handlers.Timer.Events)

	settings := protected.Group("/settings")
	settings.GET("", handlers.Settings.Get)
	settings.PUT("", handlers.Settings.Update)
	settings.GET("/presets", handlers.Settings.Presets)
	settings.POST("/background", handlers.Settings.UploadBackground)
	settings.DELETE("/background", handlers.Settings.RemoveBackground)

	history := protected.Group("/history")
	history.GET("", handlers.History.List)
	history.GET("/days", handlers.History.Days)
	history.GET("/export.pdf", handlers.History.ExportPDF)

	protected.GET("/insight", handlers.Insight.Get)

	return engine
}
