package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campus-access-backend/internal/model"
)

type eventRequest struct {
	Title                string `json:"title" binding:"required"`
	Description          string `json:"description"`
	OrganizerName        string `json:"organizer_name"`
	Venue                string `json:"venue"`
	StartAt              string `json:"start_at" binding:"required"`
	EndAt                string `json:"end_at" binding:"required"`
	RegistrationDeadline string `json:"registration_deadline"`
	MaxCapacity          int    `json:"max_capacity"`
	RequiresNFC          *bool  `json:"requires_nfc"`
}

// PostEvent creates an event.
func (h *Handler) PostEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_at, use RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_at, use RFC3339"})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_at must be after start_at"})
		return
	}

	event := model.Event{
		Title:         req.Title,
		Description:   req.Description,
		OrganizerName: req.OrganizerName,
		Venue:         req.Venue,
		StartAt:       start.UTC(),
		EndAt:         end.UTC(),
		MaxCapacity:   req.MaxCapacity,
		Status:        model.EventUpcoming,
		RequiresNFC:   true,
		Active:        true,
	}
	if req.RegistrationDeadline != "" {
		deadline, err := time.Parse(time.RFC3339, req.RegistrationDeadline)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration_deadline, use RFC3339"})
			return
		}
		event.RegistrationDeadline = deadline.UTC()
	} else {
		event.RegistrationDeadline = event.StartAt
	}
	if req.RequiresNFC != nil {
		event.RequiresNFC = *req.RequiresNFC
	}

	if err := h.store.DB().Create(&event).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to create event"})
		return
	}
	c.JSON(http.StatusCreated, event)
}

// GetEvents lists events, optionally filtered by status.
func (h *Handler) GetEvents(c *gin.Context) {
	query := h.store.DB().Model(&model.Event{}).Where("active = ?", true)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var events []model.Event
	if err := query.Order("start_at DESC").Find(&events).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// PostEventRegistration registers a student for an event. Registrations are
// confirmed immediately while capacity remains, waitlisted after.
// POST /api/events/:event_id/registrations {student_id}
func (h *Handler) PostEventRegistration(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req struct {
		StudentID int64 `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id is required"})
		return
	}

	db := h.store.DB()

	var event model.Event
	if err := db.First(&event, eventID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	now := time.Now().UTC()
	if !event.Active || event.Status == model.EventCancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "event is not open for registration"})
		return
	}
	if now.After(event.RegistrationDeadline) {
		c.JSON(http.StatusConflict, gin.H{"error": "registration deadline has passed"})
		return
	}

	var student model.Student
	if err := db.First(&student, req.StudentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	status := model.RegistrationConfirmed
	if event.MaxCapacity > 0 {
		var confirmed int64
		db.Model(&model.EventRegistration{}).
			Where("event_id = ? AND status = ?", event.ID, model.RegistrationConfirmed).
			Count(&confirmed)
		if confirmed >= int64(event.MaxCapacity) {
			status = model.RegistrationWaitlist
		}
	}

	reg := model.EventRegistration{
		EventID:      event.ID,
		StudentID:    student.ID,
		Status:       status,
		RegisteredAt: now,
	}
	if err := db.Create(&reg).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "student already registered for this event"})
		return
	}
	c.JSON(http.StatusCreated, reg)
}

// PostEventScan checks a registered student in or out of an event.
// POST /api/events/:event_id/scan {card_id, timestamp?}
func (h *Handler) PostEventScan(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

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

	res, err := h.store.RecordEventScan(c.Request.Context(), eventID, req.CardID, at)
	if err != nil {
		h.abortScanError(c, "event", err)
		return
	}

	h.metrics.Observe("event", res.Action)
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"action":           res.Action,
		"event_id":         res.EventID,
		"student_id":       res.StudentID,
		"duration_minutes": res.DurationMin,
		"message":          res.Message,
	})
}

// GetEventAttendance lists attendance rows for an event.
func (h *Handler) GetEventAttendance(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var rows []model.EventAttendance
	if err := h.store.DB().Where("event_id = ?", eventID).
		Order("checkin_at").Find(&rows).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve attendance"})
		return
	}

	inside := 0
	for _, r := range rows {
		if r.CheckoutAt == nil {
			inside++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"event_id":       eventID,
		"total_checkins": len(rows),
		"still_inside":   inside,
		"attendance":     rows,
	})
}
