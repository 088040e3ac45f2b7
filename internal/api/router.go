package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"campus-access-backend/config"
	"campus-access-backend/internal/mw"
	"campus-access-backend/internal/notification"
	"campus-access-backend/internal/scanner"
	"campus-access-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, sc *scanner.Client, webpushOptions *webpush.Options, notifier *notification.WorkerPool, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	db := s.DB()

	registry := prometheus.NewRegistry()
	metrics := mw.NewScanMetrics(registry)
	handler := NewHandler(s, sc, webpushOptions, notifier, metrics, cfg)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst, cfg.Server.RequestIPHeader)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.Use(mw.RequestCounter(registry))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/healthz/scanner", func(c *gin.Context) {
		if err := sc.Status(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unreachable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Device-facing scan endpoints.
		api.POST("/scan", handler.PostScan)
		api.POST("/library/scan", handler.PostLibraryScan)
		api.POST("/events/:event_id/scan", handler.PostEventScan)
		api.POST("/transport/:bus_id/scan", handler.PostTransportScan)

		// Dashboards and read models.
		api.GET("/entry_logs", GetEntryLogs(db))
		api.GET("/analytics/attendance", caching, handler.GetAttendanceAnalytics)
		api.GET("/library/dashboard", caching, GetLibraryDashboard(db))
		api.GET("/library/borrows", handler.GetBorrows)
		api.GET("/library/overdue", handler.GetOverdueBorrows)
		api.GET("/books", handler.GetBooks)
		api.GET("/book_categories", handler.GetBookCategories)
		api.GET("/events", handler.GetEvents)
		api.GET("/events/:event_id/attendance", handler.GetEventAttendance)
		api.GET("/buses", handler.GetBuses)
		api.GET("/transport/:bus_id/logs", handler.GetTransportLogs)
		api.GET("/students", handler.GetStudents)
		api.GET("/students/:student_id", handler.GetStudent)
		api.GET("/fines", handler.GetFines)

		// Push subscriptions.
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		// Management surface, bearer-protected when auth is enabled.
		admin := api.Group("")
		if cfg.Auth.Enabled {
			admin.Use(mw.BearerAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer))
		}
		{
			admin.POST("/students", handler.PostStudent)
			admin.PATCH("/students/:student_id", handler.PatchStudent)
			admin.POST("/students/:student_id/assign_card", handler.PostAssignCard)
			admin.DELETE("/students/:student_id/card", handler.DeleteCard)
			admin.POST("/books", handler.PostBook)
			admin.POST("/book_categories", handler.PostBookCategory)
			admin.POST("/events", handler.PostEvent)
			admin.POST("/events/:event_id/registrations", handler.PostEventRegistration)
			admin.POST("/buses", handler.PostBus)
			admin.POST("/fines", handler.PostFine)
			admin.POST("/fines/:fine_id/pay", handler.PostFinePayment)
		}
	}

	return r
}
