package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"campus-access-backend/internal/model"
	"campus-access-backend/internal/parse"
)

type libraryScanRequest struct {
	BookUID   string `json:"book_uid" binding:"required"`
	CardID    string `json:"card_id" binding:"required"`
	Timestamp string `json:"timestamp"`
}

// PostLibraryScan toggles a book between checkout and return.
// POST /api/library/scan {book_uid, card_id, timestamp?}
func (h *Handler) PostLibraryScan(c *gin.Context) {
	var req libraryScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "book_uid and card_id are required"})
		return
	}

	at, err := scanTime(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid timestamp, use RFC3339"})
		return
	}

	res, err := h.store.RecordLibraryScan(c.Request.Context(), req.BookUID, req.CardID, at)
	if err != nil {
		h.abortScanError(c, "library", err)
		return
	}

	h.metrics.Observe("library", res.Action)
	payload := gin.H{
		"success":   true,
		"action":    res.Action,
		"reference": res.Reference,
		"message":   res.Message,
	}
	if res.DueDate != nil {
		payload["due_date"] = res.DueDate.Format(time.RFC3339)
	}
	if res.Fine > 0 {
		payload["fine"] = res.Fine
	}
	c.JSON(http.StatusOK, payload)
}

type bookRequest struct {
	ISBN       string  `json:"isbn" binding:"required"`
	Title      string  `json:"title" binding:"required"`
	Author     string  `json:"author" binding:"required"`
	CategoryID int64   `json:"category_id"`
	CopyNumber int     `json:"copy_number"`
	NFCTagUID  *string `json:"nfc_tag_uid"`
}

// PostBook adds a book copy.
func (h *Handler) PostBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !parse.ValidISBN13(req.ISBN) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ISBN-13"})
		return
	}
	if req.NFCTagUID != nil {
		uid, err := parse.NormalizeUID(*req.NFCTagUID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.NFCTagUID = &uid
	}
	if req.CopyNumber <= 0 {
		req.CopyNumber = 1
	}

	book := model.Book{
		ISBN:       req.ISBN,
		Title:      req.Title,
		Author:     req.Author,
		CategoryID: req.CategoryID,
		CopyNumber: req.CopyNumber,
		Status:     model.BookAvailable,
		NFCTagUID:  req.NFCTagUID,
		Active:     true,
	}
	if err := h.store.DB().Create(&book).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "book tag already registered"})
		return
	}
	c.JSON(http.StatusCreated, book)
}

// GetBooks lists books with optional status and search filters.
func (h *Handler) GetBooks(c *gin.Context) {
	query := h.store.DB().Model(&model.Book{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", like, like, like)
	}

	var books []model.Book
	if err := query.Order("title").Find(&books).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve books"})
		return
	}
	c.JSON(http.StatusOK, books)
}

// PostBookCategory creates a category.
func (h *Handler) PostBookCategory(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cat := model.BookCategory{Name: req.Name, Description: req.Description}
	if req.Color != "" {
		cat.Color = req.Color
	}
	if err := h.store.DB().Create(&cat).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "category already exists"})
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// GetBookCategories lists all categories.
func (h *Handler) GetBookCategories(c *gin.Context) {
	var cats []model.BookCategory
	if err := h.store.DB().Order("name").Find(&cats).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve categories"})
		return
	}
	c.JSON(http.StatusOK, cats)
}

// GetLibraryDashboard reports circulation counts.
// GET /api/library/dashboard
func GetLibraryDashboard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var total, available, borrowed int64
		if err := db.Model(&model.Book{}).Count(&total).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to count books"})
			return
		}
		db.Model(&model.Book{}).Where("status = ?", model.BookAvailable).Count(&available)
		db.Model(&model.BookBorrow{}).Where("return_date IS NULL AND status IN ?",
			[]string{model.BorrowActive, model.BorrowOverdue}).Count(&borrowed)

		c.JSON(http.StatusOK, gin.H{
			"total_books":     total,
			"available_books": available,
			"borrowed_books":  borrowed,
		})
	}
}

// GetBorrows lists borrow records, filterable by student and status.
// GET /api/library/borrows?student_id=&status=
func (h *Handler) GetBorrows(c *gin.Context) {
	query := h.store.DB().Model(&model.BookBorrow{})
	if sid := c.Query("student_id"); sid != "" {
		query = query.Where("student_id = ?", sid)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var borrows []model.BookBorrow
	if err := query.Order("borrow_date DESC").Limit(500).Find(&borrows).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve borrows"})
		return
	}
	c.JSON(http.StatusOK, borrows)
}

// GetOverdueBorrows lists outstanding borrows past their due date with the
// fine accrued so far.
// GET /api/library/overdue
func (h *Handler) GetOverdueBorrows(c *gin.Context) {
	now := time.Now().UTC()

	var borrows []model.BookBorrow
	if err := h.store.DB().
		Where("return_date IS NULL AND status IN ? AND due_date < ?",
			[]string{model.BorrowActive, model.BorrowOverdue}, now).
		Order("due_date ASC").
		Find(&borrows).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve overdue borrows"})
		return
	}

	type overdueRow struct {
		model.BookBorrow
		DaysOverdue int     `json:"days_overdue"`
		AccruedFine float64 `json:"accrued_fine"`
	}
	rows := make([]overdueRow, 0, len(borrows))
	for _, b := range borrows {
		rows = append(rows, overdueRow{
			BookBorrow:  b,
			DaysOverdue: b.DaysOverdue(now),
			AccruedFine: b.CalculateFine(now, h.cfg.Scan.FinePerDay),
		})
	}

	c.JSON(http.StatusOK, gin.H{"total_overdue": len(rows), "borrows": rows})
}
