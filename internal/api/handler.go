package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"campus-access-backend/config"
	"campus-access-backend/internal/mw"
	"campus-access-backend/internal/notification"
	"campus-access-backend/internal/presence"
	"campus-access-backend/internal/scanner"
	"campus-access-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	scanner  *scanner.Client
	webpush  *webpush.Options
	notifier *notification.WorkerPool
	metrics  *mw.ScanMetrics
	cfg      *config.Config
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, sc *scanner.Client, webpushOptions *webpush.Options, notifier *notification.WorkerPool, metrics *mw.ScanMetrics, cfg *config.Config) *Handler {
	return &Handler{
		store:    s,
		scanner:  sc,
		webpush:  webpushOptions,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// notify queues a push notice when a worker pool is attached.
func (h *Handler) notify(studentID int64, message string) {
	if h.notifier == nil {
		return
	}
	h.notifier.Dispatch(notification.Notice{StudentID: studentID, Message: message})
}

// scanTime picks the device-supplied timestamp when present, otherwise the
// server clock.
func scanTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

// abortScanError maps a scan failure to a JSON error payload for the device
// bridge and records the outcome metric.
func (h *Handler) abortScanError(c *gin.Context, domain string, err error) {
	status := http.StatusInternalServerError
	result := "error"
	switch {
	case errors.Is(err, presence.ErrUnknownTag):
		status, result = http.StatusNotFound, "unknown_tag"
	case errors.Is(err, presence.ErrTargetNotFound):
		status, result = http.StatusNotFound, "not_found"
	case errors.Is(err, presence.ErrInactiveIdentity):
		status, result = http.StatusForbidden, "inactive"
	case errors.Is(err, presence.ErrNotRegistered):
		status, result = http.StatusForbidden, "not_registered"
	case errors.Is(err, presence.ErrDuplicateScan):
		status, result = http.StatusConflict, "duplicate"
	case errors.Is(err, presence.ErrScanConflict):
		status, result = http.StatusConflict, "conflict"
	case errors.Is(err, presence.ErrBorrowLimit):
		status, result = http.StatusUnprocessableEntity, "borrow_limit"
	}

	h.metrics.Observe(domain, result)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
}
