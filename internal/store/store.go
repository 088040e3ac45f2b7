package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Card assignment errors, surfaced by the management endpoints.
var (
	ErrCardAlreadyAssigned = errors.New("student already has an assigned card")
	ErrCardInUse           = errors.New("card already assigned to another student")
	ErrNoCardAssigned      = errors.New("student has no assigned card")
)

// Store defines the transactional scan operations. Plain CRUD goes through
// DB() directly.
type Store interface {
	DB() *gorm.DB

	// RecordGateScan applies one campus gate badge tap: resolves the card,
	// decides in/out, appends the entry log row and flips the presence flag
	// atomically.
	RecordGateScan(ctx context.Context, cardUID string, at time.Time) (*ScanResult, error)

	// AutoCheckout synthesizes an "out" event at the cutoff for every student
	// whose latest entry log is an unterminated "in". Best effort per row.
	AutoCheckout(ctx context.Context, cutoff time.Time) (AutoCheckoutSummary, error)

	// RecordLibraryScan toggles a book between checkout and return based on
	// its outstanding borrow record.
	RecordLibraryScan(ctx context.Context, bookUID, cardUID string, at time.Time) (*BorrowResult, error)

	// RecordEventScan checks a registered student in or out of an event.
	RecordEventScan(ctx context.Context, eventID int64, cardUID string, at time.Time) (*EventScanResult, error)

	// RecordTransportScan boards or alights a passenger on a bus.
	RecordTransportScan(ctx context.Context, busID int64, cardUID, location string, at time.Time) (*TransportResult, error)

	// AssignCard binds a scanned card UID to a student; RemoveCard clears it.
	AssignCard(ctx context.Context, studentID int64, uid string) error
	RemoveCard(ctx context.Context, studentID int64) error
}

// Rules carries the tunable scan policy, derived from config.
type Rules struct {
	Cooldown     time.Duration
	BorrowPeriod time.Duration
	FinePerDay   float64
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	rules Rules
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, rules Rules) Store {
	if rules.Cooldown <= 0 {
		rules.Cooldown = 30 * time.Second
	}
	if rules.BorrowPeriod <= 0 {
		rules.BorrowPeriod = 14 * 24 * time.Hour
	}
	if rules.FinePerDay <= 0 {
		rules.FinePerDay = 5.0
	}
	return &gormStore{db: db, rules: rules}
}

// DB exposes the underlying connection for CRUD handlers and workers.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}
