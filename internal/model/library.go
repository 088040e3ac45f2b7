package model

import "time"

// Book statuses.
const (
	BookAvailable   = "available"
	BookBorrowed    = "borrowed"
	BookLost        = "lost"
	BookMaintenance = "maintenance"
)

// Borrow record statuses.
const (
	BorrowActive   = "active"
	BorrowReturned = "returned"
	BorrowOverdue  = "overdue"
	BorrowLost     = "lost"
)

// BookCategory groups books for display.
type BookCategory struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string `json:"description"`
	Color       string `gorm:"size:7;default:'#6c757d'" json:"color"`
}

// Book represents a single physical copy in the library.
type Book struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	ISBN       string    `gorm:"size:13;index;not null" json:"isbn"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Author     string    `gorm:"size:200;not null" json:"author"`
	CategoryID int64     `gorm:"index" json:"category_id"`
	CopyNumber int       `gorm:"not null;default:1" json:"copy_number"`
	Status     string    `gorm:"size:15;not null;default:'available';index" json:"status"`
	NFCTagUID  *string   `gorm:"column:nfc_tag_uid;uniqueIndex;size:50" json:"nfc_tag_uid"`
	Active     bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Category BookCategory `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BookBorrow is one checkout/return cycle for a (student, book) pair. The
// outstanding active row, not the raw log, decides whether the next NFC scan
// of the book is a checkout or a return.
type BookBorrow struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Reference string `gorm:"uniqueIndex;size:36;not null" json:"reference"`

	BookID    int64  `gorm:"not null;index:idx_borrows_book_status,priority:1" json:"book_id"`
	StudentID int64  `gorm:"not null;index:idx_borrows_student_status,priority:1" json:"student_id"`
	Status    string `gorm:"size:10;not null;default:'active';index:idx_borrows_book_status,priority:2;index:idx_borrows_student_status,priority:2" json:"status"`

	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	DueDate    time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`

	NFCCheckout bool    `gorm:"not null;default:false" json:"nfc_checkout"`
	NFCReturn   bool    `gorm:"not null;default:false" json:"nfc_return"`
	FineAmount  float64 `gorm:"not null;default:0" json:"fine_amount"`

	Book    Book    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Student Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsOverdue reports whether the borrow has passed its due date without being
// returned.
func (b *BookBorrow) IsOverdue(now time.Time) bool {
	if b.Status == BorrowReturned || b.Status == BorrowLost {
		return false
	}
	return now.After(b.DueDate)
}

// DaysOverdue returns the number of whole days past the due date.
func (b *BookBorrow) DaysOverdue(now time.Time) int {
	if !b.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(b.DueDate).Hours() / 24)
}

// CalculateFine computes the accrued fine at the given daily rate.
func (b *BookBorrow) CalculateFine(now time.Time, perDay float64) float64 {
	return float64(b.DaysOverdue(now)) * perDay
}
