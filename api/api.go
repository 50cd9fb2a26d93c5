package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"gitlab.com/gfxd/gpu-mode-service/internal/tracing"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

// GfxService is the mode controller as seen by the handlers. *gfx.Controller implements it.
type GfxService interface {
	Mode() models.GpuMode
	SetMode(ctx context.Context, target models.GpuMode) (models.RequiredAction, error)
	PowerStatus() (models.PowerState, error)
	Status() models.GfxStatus
	SetVfioEnabled(ctx context.Context, enabled bool) error
}

// DeviceDescriber lists the graphics devices found on the bus.
type DeviceDescriber interface {
	Describe() []models.GraphicsDeviceInfo
}

// HistoryReader reads the transition history.
type HistoryReader interface {
	Latest(ctx context.Context, limit int) ([]models.Transition, error)
}

// RouterDeps are the services behind the REST API. Devices, History and Metrics are
// optional; their routes answer 404 when unset.
type RouterDeps struct {
	Gfx     GfxService
	Devices DeviceDescriber
	History HistoryReader
	Metrics http.Handler
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	if _, debug := os.LookupEnv("GFXD_DEBUG"); !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(getCustomCorsConfig()))
	router.Use(otelgin.Middleware(tracing.ServiceName))

	h := &handlers{deps: deps}

	v1 := router.Group("/api/v1")
	v1.GET("/version", h.HandleVersion)

	gfx := v1.Group("/gfx")
	{
		gfx.GET("/mode", h.HandleGetMode)
		gfx.POST("/mode", h.HandleSetMode)
		gfx.GET("/power", h.HandleGetPower)
		gfx.GET("/status", h.HandleGetStatus)
		gfx.POST("/vfio", h.HandleSetVfio)
		if deps.Devices != nil {
			gfx.GET("/devices", h.HandleListDevices)
		}
		if deps.History != nil {
			gfx.GET("/transitions", h.HandleListTransitions)
		}
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	return router
}

type handlers struct {
	deps RouterDeps
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zlog.Sugar().Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func getCustomCorsConfig() cors.Config {
	config := DefaultConfig()
	config.AllowOrigins = []string{"http://localhost", "http://127.0.0.1"}
	return config
}

// DefaultConfig returns a generic default configuration mapped to localhost.
func DefaultConfig() cors.Config {
	return cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
}
