package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campus-access-backend/internal/model"
)

type busRequest struct {
	Number        string `json:"number" binding:"required"`
	DriverName    string `json:"driver_name"`
	DriverContact string `json:"driver_contact"`
	Route         string `json:"route"`
	Capacity      int    `json:"capacity"`
}

// PostBus registers a shuttle.
func (h *Handler) PostBus(c *gin.Context) {
	var req busRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bus := model.Bus{
		Number:        req.Number,
		DriverName:    req.DriverName,
		DriverContact: req.DriverContact,
		Route:         req.Route,
		Capacity:      req.Capacity,
		Active:        true,
	}
	if err := h.store.DB().Create(&bus).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "bus number already registered"})
		return
	}
	c.JSON(http.StatusCreated, bus)
}

// GetBuses lists active shuttles with their current passenger count.
func (h *Handler) GetBuses(c *gin.Context) {
	var buses []model.Bus
	if err := h.store.DB().Where("active = ?", true).Order("number").Find(&buses).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve buses"})
		return
	}

	type busRow struct {
		model.Bus
		Aboard int64 `json:"aboard"`
	}
	rows := make([]busRow, 0, len(buses))
	for _, b := range buses {
		var aboard int64
		h.store.DB().Model(&model.TransportLog{}).
			Where("bus_id = ? AND alighted_at IS NULL", b.ID).
			Count(&aboard)
		rows = append(rows, busRow{Bus: b, Aboard: aboard})
	}
	c.JSON(http.StatusOK, rows)
}

type transportScanRequest struct {
	CardID    string `json:"card_id" binding:"required"`
	Location  string `json:"location"`
	Timestamp string `json:"timestamp"`
}

// PostTransportScan boards or alights a passenger.
// POST /api/transport/:bus_id/scan {card_id, location?, timestamp?}
func (h *Handler) PostTransportScan(c *gin.Context) {
	busID, err := strconv.ParseInt(c.Param("bus_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bus id"})
		return
	}

	var req transportScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "card_id is required"})
		return
	}
	at, err := scanTime(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid timestamp, use RFC3339"})
		return
	}

	res, err := h.store.RecordTransportScan(c.Request.Context(), busID, req.CardID, req.Location, at)
	if err != nil {
		h.abortScanError(c, "transport", err)
		return
	}

	h.metrics.Observe("transport", res.Action)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"action":     res.Action,
		"bus_id":     res.BusID,
		"student_id": res.StudentID,
		"message":    res.Message,
	})
}

// GetTransportLogs lists boarding history for a bus, newest first.
func (h *Handler) GetTransportLogs(c *gin.Context) {
	busID, err := strconv.ParseInt(c.Param("bus_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bus id"})
		return
	}

	query := h.store.DB().Where("bus_id = ?", busID)
	if c.Query("aboard") == "true" {
		query = query.Where("alighted_at IS NULL")
	}

	var logs []model.TransportLog
	if err := query.Order("boarded_at DESC").Limit(500).Find(&logs).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve transport logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}
