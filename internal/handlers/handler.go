package handlers

import (
	"robot_control/internal/logger"
	"robot_control/internal/metrics"
	"robot_control/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. m and log may be nil.
func NewHandler(services *service.Service, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{services: services, metrics: m, log: log}
}

// InitRoutes builds the robot router: the command endpoint on "/" and the
// help page for everything else.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// "/x/" and "/X" must reach the help page, not a redirect.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	// Every method on "/" dispatches; any other path gets the help page.
	router.Any("/", h.dispatch)
	router.NoRoute(h.notFound)

	return router
}

// InitAdminRoutes builds the admin router served on its own listener.
func (h *Handler) InitAdminRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	h.registerAPIRoutes(router)

	// State stream over WebSocket
	router.GET("/ws", h.wsConnect)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/state", h.getState)
		api.GET("/events", h.getEvents)
	}
}
