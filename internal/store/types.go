package store

import "time"

// ScanResult is the outcome of an accepted gate scan, returned to the device
// bridge for display.
type ScanResult struct {
	StudentID int64     `json:"student_id"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AutoCheckoutSummary reports what the end-of-day batch did.
type AutoCheckoutSummary struct {
	Processed  int     `json:"processed"`
	Failed     int     `json:"failed"`
	StudentIDs []int64 `json:"student_ids"`
}

// BorrowResult is the outcome of an accepted library scan.
type BorrowResult struct {
	Action    string     `json:"action"`
	Reference string     `json:"reference"`
	BookID    int64      `json:"book_id"`
	StudentID int64      `json:"student_id"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Fine      float64    `json:"fine,omitempty"`
	Message   string     `json:"message"`
}

// EventScanResult is the outcome of an accepted event scan.
type EventScanResult struct {
	Action      string `json:"action"`
	EventID     int64  `json:"event_id"`
	StudentID   int64  `json:"student_id"`
	DurationMin int    `json:"duration_minutes,omitempty"`
	Message     string `json:"message"`
}

// TransportResult is the outcome of an accepted bus scan.
type TransportResult struct {
	Action    string `json:"action"`
	BusID     int64  `json:"bus_id"`
	StudentID int64  `json:"student_id"`
	Message   string `json:"message"`
}
