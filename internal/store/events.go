package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"campus-access-backend/internal/model"
	"campus-access-backend/internal/parse"
	"campus-access-backend/internal/presence"
)

// RecordEventScan checks a registered student in or out of an event. Each
// student gets a single check-in/check-out cycle per event; a third scan is
// rejected as a duplicate.
func (s *gormStore) RecordEventScan(ctx context.Context, eventID int64, cardUID string, at time.Time) (*EventScanResult, error) {
	uid, err := parse.NormalizeUID(cardUID)
	if err != nil {
		return nil, presence.ErrUnknownTag
	}

	var result *EventScanResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event model.Event
		if err := tx.First(&event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return presence.ErrTargetNotFound
			}
			return err
		}
		if !event.Active || event.Status == model.EventCancelled {
			return presence.ErrInactiveIdentity
		}

		var student model.Student
		if err := tx.Where("nfc_uid = ?", uid).First(&student).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return presence.ErrUnknownTag
			}
			return err
		}
		if !student.Active {
			return presence.ErrInactiveIdentity
		}

		var reg model.EventRegistration
		err := tx.Where("event_id = ? AND student_id = ? AND status = ?",
			event.ID, student.ID, model.RegistrationConfirmed).
			First(&reg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return presence.ErrNotRegistered
		}
		if err != nil {
			return err
		}

		var att model.EventAttendance
		err = tx.Where("event_id = ? AND student_id = ?", event.ID, student.ID).First(&att).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			att = model.EventAttendance{
				EventID:        event.ID,
				StudentID:      student.ID,
				RegistrationID: reg.ID,
				CheckinAt:      at,
				Method:         "nfc",
			}
			if err := tx.Create(&att).Error; err != nil {
				return fmt.Errorf("failed to create event attendance: %w", err)
			}
			result = &EventScanResult{
				Action:    presence.AttendanceActions.Entry,
				EventID:   event.ID,
				StudentID: student.ID,
				Message:   fmt.Sprintf("%s checked in to %q", student.Name, event.Title),
			}
			return nil

		case err != nil:
			return err

		case att.CheckoutAt != nil:
			// Already completed a full cycle for this event.
			return presence.ErrDuplicateScan

		default:
			if at.Sub(att.CheckinAt) < s.rules.Cooldown {
				return presence.ErrDuplicateScan
			}
			duration := int(at.Sub(att.CheckinAt).Minutes())
			updates := map[string]any{
				"checkout_at":  at,
				"duration_min": duration,
			}
			if err := tx.Model(&att).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to close event attendance: %w", err)
			}
			result = &EventScanResult{
				Action:      presence.AttendanceActions.Exit,
				EventID:     event.ID,
				StudentID:   student.ID,
				DurationMin: duration,
				Message:     fmt.Sprintf("%s checked out of %q", student.Name, event.Title),
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
