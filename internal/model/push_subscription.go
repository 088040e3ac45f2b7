package model

import "time"

// PushSubscription holds a browser push subscription tied to a student, used
// for auto-checkout and availability notices.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	StudentID int64     `gorm:"not null;index" json:"student_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Student Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
