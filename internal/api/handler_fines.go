package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campus-access-backend/internal/model"
)

// PostFine issues a manual fine.
// POST /api/fines {student_id, amount, description?}
func (h *Handler) PostFine(c *gin.Context) {
	var req struct {
		StudentID   int64   `json:"student_id" binding:"required"`
		Amount      float64 `json:"amount" binding:"required,gt=0"`
		Description string  `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id and a positive amount are required"})
		return
	}

	db := h.store.DB()
	var student model.Student
	if err := db.First(&student, req.StudentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	fine := model.Fine{
		StudentID:   student.ID,
		Amount:      req.Amount,
		Description: req.Description,
		IssuedAt:    time.Now().UTC(),
	}
	if err := db.Create(&fine).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to create fine"})
		return
	}
	c.JSON(http.StatusCreated, fine)
}

// GetFines lists fines, filterable by student and payment state.
// GET /api/fines?student_id=&paid=
func (h *Handler) GetFines(c *gin.Context) {
	query := h.store.DB().Model(&model.Fine{})
	if sid := c.Query("student_id"); sid != "" {
		id, err := strconv.ParseInt(sid, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student_id"})
			return
		}
		query = query.Where("student_id = ?", id)
	}
	if paid := c.Query("paid"); paid != "" {
		query = query.Where("paid = ?", paid == "true")
	}

	var fines []model.Fine
	if err := query.Order("issued_at DESC").Find(&fines).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve fines"})
		return
	}

	var outstanding float64
	for _, f := range fines {
		if !f.Paid {
			outstanding += f.Amount
		}
	}
	c.JSON(http.StatusOK, gin.H{"outstanding": outstanding, "fines": fines})
}

// PostFinePayment marks a fine as paid.
// POST /api/fines/:fine_id/pay
func (h *Handler) PostFinePayment(c *gin.Context) {
	fineID, err := strconv.ParseInt(c.Param("fine_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fine id"})
		return
	}

	db := h.store.DB()
	var fine model.Fine
	if err := db.First(&fine, fineID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "fine not found"})
		return
	}
	if fine.Paid {
		c.JSON(http.StatusConflict, gin.H{"error": "fine already paid"})
		return
	}

	if err := db.Model(&fine).Update("paid", true).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to update fine"})
		return
	}
	fine.Paid = true
	c.JSON(http.StatusOK, fine)
}
