package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"campus-access-backend/internal/model"
	"campus-access-backend/internal/parse"
	"campus-access-backend/internal/scanner"
	"campus-access-backend/internal/store"
)

type studentRequest struct {
	Name        string `json:"name" binding:"required"`
	RollNumber  string `json:"roll_number" binding:"required"`
	BorrowLimit int    `json:"borrow_limit"`
}

// PostStudent creates a student.
func (h *Handler) PostStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := parse.ParseRollNumber(req.RollNumber); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BorrowLimit <= 0 {
		req.BorrowLimit = 10
	}

	student := model.Student{
		Name:        req.Name,
		RollNumber:  req.RollNumber,
		BorrowLimit: req.BorrowLimit,
		Active:      true,
	}
	if err := h.store.DB().Create(&student).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "roll number already exists"})
		return
	}
	c.JSON(http.StatusCreated, student)
}

// GetStudents lists students, optionally filtered by presence.
func (h *Handler) GetStudents(c *gin.Context) {
	query := h.store.DB().Model(&model.Student{})
	if v := c.Query("on_campus"); v != "" {
		query = query.Where("on_campus = ?", v == "true")
	}

	var students []model.Student
	if err := query.Order("roll_number").Find(&students).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve students"})
		return
	}
	c.JSON(http.StatusOK, students)
}

// GetStudent returns a single student.
func (h *Handler) GetStudent(c *gin.Context) {
	student, ok := h.findStudent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, student)
}

// PatchStudent updates profile fields. The presence flag is owned by the scan
// path and cannot be set here.
func (h *Handler) PatchStudent(c *gin.Context) {
	student, ok := h.findStudent(c)
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		BorrowLimit *int    `json:"borrow_limit"`
		Active      *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.BorrowLimit != nil {
		updates["borrow_limit"] = *req.BorrowLimit
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	if err := h.store.DB().Model(&student).Updates(updates).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to update student"})
		return
	}
	c.JSON(http.StatusOK, student)
}

// PostAssignCard drives the scanner bridge to read a blank card and binds the
// scanned UID to the student.
// POST /api/students/:student_id/assign_card
func (h *Handler) PostAssignCard(c *gin.Context) {
	student, ok := h.findStudent(c)
	if !ok {
		return
	}
	if student.NFCUID != nil {
		c.JSON(http.StatusConflict, gin.H{"error": store.ErrCardAlreadyAssigned.Error()})
		return
	}

	cardID, err := h.scanner.AssignCard(c.Request.Context(), student.RollNumber)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, scanner.ErrScannerTimeout) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.AssignCard(c.Request.Context(), student.ID, cardID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrCardInUse) || errors.Is(err, store.ErrCardAlreadyAssigned) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.notify(student.ID, "A new campus card was assigned to your account")
	c.JSON(http.StatusOK, gin.H{"success": true, "card_id": cardID})
}

// DeleteCard removes a student's card binding.
// DELETE /api/students/:student_id/card
func (h *Handler) DeleteCard(c *gin.Context) {
	student, ok := h.findStudent(c)
	if !ok {
		return
	}

	if err := h.store.RemoveCard(c.Request.Context(), student.ID); err != nil {
		if errors.Is(err, store.ErrNoCardAssigned) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to remove card"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) findStudent(c *gin.Context) (model.Student, bool) {
	id, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid student ID"})
		return model.Student{}, false
	}

	var student model.Student
	if err := h.store.DB().First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "student not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
		return model.Student{}, false
	}
	return student, true
}
