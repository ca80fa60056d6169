package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/dirt2meme/internal/api/handler"
	"github.com/timmy/dirt2meme/internal/api/middleware"
	"github.com/timmy/dirt2meme/internal/logger"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	Mode           string
	MaxUploadBytes int64
	CORS           middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(memeHandler *handler.MemeHandler, cfg RouterConfig, log *logger.Logger) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	cors := cfg.CORS
	cors.ExposeHeaders = append(cors.ExposeHeaders, handler.HeaderMemeData, handler.HeaderMemeID, middleware.HeaderRequestID)

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cors))

	healthHandler := handler.NewHealthHandler()

	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)

	r.POST("/upload", memeHandler.Upload)
	r.GET("/static/:name", memeHandler.Static)
	r.HEAD("/static/:name", memeHandler.Static)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/memes", memeHandler.ListMemes)
		v1.GET("/memes/:id", memeHandler.GetMeme)
		v1.POST("/memes/from-url", memeHandler.FromURL)
	}

	return r
}
