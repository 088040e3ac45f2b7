package model

import "time"

// Fine is a monetary penalty issued to a student, e.g. for an overdue book.
type Fine struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	StudentID   int64     `gorm:"not null;index" json:"student_id"`
	Amount      float64   `gorm:"not null" json:"amount"`
	Description string    `json:"description"`
	IssuedAt    time.Time `gorm:"not null" json:"issued_at"`
	Paid        bool      `gorm:"not null;default:false" json:"paid"`

	Student Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
