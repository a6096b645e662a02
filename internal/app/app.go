package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"gueststay/internal/config"
	"gueststay/internal/eventstore"
	"gueststay/internal/middleware"
	"gueststay/internal/modules/feed"
	"gueststay/internal/modules/gueststay"
	"gueststay/internal/pkg/metrics"
	"gueststay/internal/repository"
)

// App holds the wired service graph behind the HTTP router.
type App struct {
	Config  *config.Config
	Service *gueststay.Service
	Hub     *feed.Hub
	Metrics *metrics.MetricsCollector
	Router  *gin.Engine
}

// New wires the command service, read model, live feed and routes. db may
// be nil only when cfg selects the memory event store; queries then fold
// streams directly.
func New(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.NewMetricsCollector(logger)
	hub := feed.NewHub(logger)
	hub.OnClientsChanged(m.SetFeedClients)

	var (
		store   eventstore.Store
		details gueststay.DetailsRepository
	)
	if cfg.EventStore == config.EventStoreMemory || db == nil {
		store = eventstore.NewMemoryStore()
	} else {
		store = eventstore.NewSQLStore(db)
		details = repository.NewStayDetailsRepository(db)
	}

	svc := gueststay.NewService(store, details, hub, m, logger, gueststay.Options{
		MaxAttempts:  cfg.CommandMaxAttempts,
		RetryBackoff: cfg.CommandRetryBackoff,
	})

	a := &App{Config: cfg, Service: svc, Hub: hub, Metrics: m}
	a.Router = a.routes(logger)
	return a
}

func (a *App) routes(logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorLogger(logger), middleware.CORS(a.Config.WSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "event_store": a.Config.EventStore})
	})
	r.GET("/metrics", gin.WrapH(a.Metrics.GetHandler()))

	v1 := r.Group("/api/v1")
	{
		gueststay.NewHandler(a.Service).RegisterRoutes(v1)
		feed.NewWSHandler(a.Hub, middleware.AllowedOrigins(a.Config.WSAllowedOrigins), logger).RegisterRoutes(v1)
	}

	return r
}
