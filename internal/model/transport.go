package model

import "time"

// Boarding statuses.
const (
	TransportBoarded  = "boarded"
	TransportAlighted = "alighted"
)

// Bus is a campus shuttle.
type Bus struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Number        string    `gorm:"uniqueIndex;size:20;not null" json:"number"`
	DriverName    string    `gorm:"size:100" json:"driver_name"`
	DriverContact string    `gorm:"size:15" json:"driver_contact"`
	Route         string    `gorm:"size:200" json:"route"`
	Capacity      int       `gorm:"not null;default:0" json:"capacity"`
	Active        bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransportLog is one boarding/alighting cycle for a (student, bus) pair. A
// nil AlightedAt marks the passenger as still aboard. The partial unique
// index admits at most one open row per pair.
type TransportLog struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	StudentID int64  `gorm:"not null;index:idx_transport_student_ts,priority:1;uniqueIndex:idx_transport_open_row,priority:1,where:alighted_at IS NULL" json:"student_id"`
	BusID     int64  `gorm:"not null;index:idx_transport_bus_ts,priority:1;uniqueIndex:idx_transport_open_row,priority:2,where:alighted_at IS NULL" json:"bus_id"`
	NFCUID    string `gorm:"column:nfc_uid;size:50;index" json:"nfc_uid"`

	BoardedAt  time.Time  `gorm:"not null;index:idx_transport_student_ts,priority:2;index:idx_transport_bus_ts,priority:2" json:"boarded_at"`
	AlightedAt *time.Time `json:"alighted_at"`
	Location   string     `gorm:"size:200" json:"location"`
	Status     string     `gorm:"size:20;not null" json:"status"`

	Student Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Bus     Bus     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
