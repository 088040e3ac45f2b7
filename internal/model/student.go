package model

import "time"

// Student represents an enrolled student and the denormalized presence state
// maintained by the gate scan toggle.
type Student struct {
	ID         int64   `gorm:"primaryKey" json:"id"`
	Name       string  `gorm:"size:100;not null" json:"name"`
	RollNumber string  `gorm:"uniqueIndex;size:20;not null" json:"roll_number"`
	NFCUID     *string `gorm:"column:nfc_uid;uniqueIndex;size:50" json:"nfc_uid"`

	// OnCampus mirrors the action of the student's most recent entry log row.
	// Mutated only inside the scan transaction, never by profile CRUD.
	OnCampus bool `gorm:"not null;default:false" json:"on_campus"`

	// ScanVersion guards the read-decide-write scan sequence. Every accepted
	// scan increments it; a stale update means a concurrent scan won.
	ScanVersion int64 `gorm:"not null;default:0" json:"-"`

	BorrowLimit int       `gorm:"not null;default:10" json:"borrow_limit"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntryLog is one immutable gate scan event. Rows are created once and never
// mutated or deleted.
type EntryLog struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	StudentID int64     `gorm:"not null;index:idx_entry_logs_student_ts,priority:1" json:"student_id"`
	Timestamp time.Time `gorm:"not null;index;index:idx_entry_logs_student_ts,priority:2" json:"timestamp"`
	Action    string    `gorm:"size:3;not null" json:"action"`

	// AutoGenerated marks events synthesized by the end-of-day batch rather
	// than a genuine badge tap.
	AutoGenerated bool `gorm:"not null;default:false" json:"auto_generated"`

	Student Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
