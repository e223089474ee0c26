package api

import (
	"github.com/agrilens/leafsight/internal/api/handler"
	"github.com/agrilens/leafsight/internal/api/middleware"
	"github.com/agrilens/leafsight/internal/config"
	"github.com/agrilens/leafsight/internal/logger"
	"github.com/agrilens/leafsight/internal/service"
	"github.com/gin-gonic/gin"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Uploads   *service.UploadService
	Knowledge *service.KnowledgeService
	Summaries *service.SummaryService
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(services Services, cfg *config.Config, log *logger.Logger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = int64(cfg.Uploads.MaxSizeMB) << 20

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	uploadHandler := handler.NewUploadHandler(services.Uploads, cfg.Uploads.TempDir)
	diseaseHandler := handler.NewDiseaseHandler(services.Knowledge)
	historyHandler := handler.NewHistoryHandler(services.Summaries)
	summaryHandler := handler.NewSummaryHandler(services.Summaries)

	r.GET("/health", healthHandler.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/upload", uploadHandler.Upload)
		apiGroup.GET("/disease-info", diseaseHandler.DiseaseInfo)
		apiGroup.GET("/history", historyHandler.History)
		apiGroup.GET("/summary", summaryHandler.Summary)
	}

	return r
}
