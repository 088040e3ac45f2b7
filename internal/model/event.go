package model

import "time"

// Event statuses.
const (
	EventUpcoming  = "upcoming"
	EventOngoing   = "ongoing"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

// Registration statuses.
const (
	RegistrationPending   = "pending"
	RegistrationConfirmed = "confirmed"
	RegistrationCancelled = "cancelled"
	RegistrationWaitlist  = "waitlist"
)

// Event is a campus event with optional NFC check-in.
type Event struct {
	ID                   int64     `gorm:"primaryKey" json:"id"`
	Title                string    `gorm:"size:200;not null" json:"title"`
	Description          string    `json:"description"`
	OrganizerName        string    `gorm:"size:100" json:"organizer_name"`
	Venue                string    `gorm:"size:200" json:"venue"`
	StartAt              time.Time `gorm:"not null;index" json:"start_at"`
	EndAt                time.Time `gorm:"not null" json:"end_at"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
	MaxCapacity          int       `gorm:"not null;default:0" json:"max_capacity"`
	Status               string    `gorm:"size:10;not null;default:'upcoming';index" json:"status"`
	RequiresNFC          bool      `gorm:"not null;default:true" json:"requires_nfc"`
	Active               bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EventRegistration records a student's registration for an event. Only a
// confirmed registration admits a check-in scan.
type EventRegistration struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	EventID      int64     `gorm:"not null;uniqueIndex:idx_event_student_reg,priority:1" json:"event_id"`
	StudentID    int64     `gorm:"not null;uniqueIndex:idx_event_student_reg,priority:2" json:"student_id"`
	Status       string    `gorm:"size:10;not null;default:'pending';index" json:"status"`
	RegisteredAt time.Time `gorm:"not null" json:"registered_at"`

	Event   Event   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Student Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// EventAttendance is one check-in/check-out cycle at an event. At most one row
// per (event, student); a nil CheckoutAt means the attendee is still inside.
type EventAttendance struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	EventID        int64      `gorm:"not null;uniqueIndex:idx_event_student_att,priority:1" json:"event_id"`
	StudentID      int64      `gorm:"not null;uniqueIndex:idx_event_student_att,priority:2" json:"student_id"`
	RegistrationID int64      `gorm:"not null" json:"registration_id"`
	CheckinAt      time.Time  `gorm:"not null;index" json:"checkin_at"`
	CheckoutAt     *time.Time `json:"checkout_at"`
	Method         string     `gorm:"size:10;not null;default:'nfc'" json:"method"`
	DurationMin    int        `gorm:"not null;default:0" json:"duration_minutes"`

	Event   Event   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Student Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
