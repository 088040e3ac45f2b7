package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"campus-access-backend/internal/model"
)

type scanRequest struct {
	CardID    string `json:"card_id" binding:"required"`
	Timestamp string `json:"timestamp"`
}

// PostScan handles a gate badge tap from an NFC bridge.
// POST /api/scan {card_id, timestamp?}
func (h *Handler) PostScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "card_id is required"})
		return
	}

	at, err := scanTime(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid timestamp, use RFC3339"})
		return
	}

	res, err := h.store.RecordGateScan(c.Request.Context(), req.CardID, at)
	if err != nil {
		h.abortScanError(c, "gate", err)
		return
	}

	h.metrics.Observe("gate", res.Action)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"action":    res.Action,
		"message":   res.Message,
		"timestamp": res.Timestamp.Format(time.RFC3339),
	})
}

// GetEntryLogs lists gate logs with optional filters.
// GET /api/entry_logs?student_id=&date=&q=
func GetEntryLogs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&model.EntryLog{}).
			Joins("JOIN students ON students.id = entry_logs.student_id")

		if q := c.Query("q"); q != "" {
			like := "%" + q + "%"
			query = query.Where("students.name LIKE ? OR students.roll_number LIKE ?", like, like)
		}
		if studentID := c.Query("student_id"); studentID != "" {
			query = query.Where("entry_logs.student_id = ?", studentID)
		}
		if date := c.Query("date"); date != "" {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
				return
			}
			query = query.Where("entry_logs.timestamp >= ? AND entry_logs.timestamp < ?", day, day.AddDate(0, 0, 1))
		}

		type logRow struct {
			ID            int64     `json:"id"`
			StudentID     int64     `json:"student_id"`
			Name          string    `json:"name"`
			RollNumber    string    `json:"roll_number"`
			Timestamp     time.Time `json:"timestamp"`
			Action        string    `json:"action"`
			AutoGenerated bool      `json:"auto_generated"`
		}
		var rows []logRow
		if err := query.
			Select("entry_logs.id, entry_logs.student_id, students.name, students.roll_number, entry_logs.timestamp, entry_logs.action, entry_logs.auto_generated").
			Order("entry_logs.timestamp DESC").
			Limit(500).
			Scan(&rows).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve logs"})
			return
		}

		c.JSON(http.StatusOK, rows)
	}
}

// GetAttendanceAnalytics aggregates the last 30 days of check-ins per day,
// split into on-time and late by the configured hour.
// GET /api/analytics/attendance
func (h *Handler) GetAttendanceAnalytics(c *gin.Context) {
	db := h.store.DB()
	since := time.Now().UTC().AddDate(0, 0, -30)
	lateHour := h.cfg.Scan.LateHour

	var entries []model.EntryLog
	if err := db.Where("action = ? AND timestamp >= ?", "in", since).
		Order("timestamp ASC").
		Find(&entries).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate attendance"})
		return
	}

	type dayStats struct {
		Date   string `json:"date"`
		Count  int    `json:"count"`
		OnTime int    `json:"on_time"`
		Late   int    `json:"late"`
	}
	byDay := make(map[string]*dayStats)
	var order []string
	for _, e := range entries {
		day := e.Timestamp.UTC().Format("2006-01-02")
		st, ok := byDay[day]
		if !ok {
			st = &dayStats{Date: day}
			byDay[day] = st
			order = append(order, day)
		}
		st.Count++
		if e.Timestamp.UTC().Hour() < lateHour {
			st.OnTime++
		} else {
			st.Late++
		}
	}

	daily := make([]dayStats, 0, len(order))
	for _, day := range order {
		daily = append(daily, *byDay[day])
	}

	var onCampus int64
	db.Model(&model.Student{}).Where("on_campus = ?", true).Count(&onCampus)

	c.JSON(http.StatusOK, gin.H{
		"daily":      daily,
		"on_campus":  onCampus,
		"date_range": since.Format("2006-01-02") + " to " + time.Now().UTC().Format("2006-01-02"),
	})
}
