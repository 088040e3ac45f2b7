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

// RecordTransportScan boards or alights a passenger. An open log row for the
// (student, bus) pair means the passenger is aboard and the scan is an
// alighting.
func (s *gormStore) RecordTransportScan(ctx context.Context, busID int64, cardUID, location string, at time.Time) (*TransportResult, error) {
	uid, err := parse.NormalizeUID(cardUID)
	if err != nil {
		return nil, presence.ErrUnknownTag
	}

	var result *TransportResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bus model.Bus
		if err := tx.First(&bus, busID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return presence.ErrTargetNotFound
			}
			return err
		}
		if !bus.Active {
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

		var open model.TransportLog
		err := tx.Where("student_id = ? AND bus_id = ? AND alighted_at IS NULL", student.ID, bus.ID).
			Order("boarded_at DESC").
			First(&open).Error
		switch {
		case err == nil:
			if at.Sub(open.BoardedAt) < s.rules.Cooldown {
				return presence.ErrDuplicateScan
			}
			updates := map[string]any{
				"alighted_at": at,
				"status":      model.TransportAlighted,
			}
			res := tx.Model(&open).Where("alighted_at IS NULL").Updates(updates)
			if res.Error != nil {
				return fmt.Errorf("failed to close transport log %d: %w", open.ID, res.Error)
			}
			// A concurrent scan already closed this row.
			if res.RowsAffected == 0 {
				return presence.ErrScanConflict
			}
			result = &TransportResult{
				Action:    presence.BoardingActions.Exit,
				BusID:     bus.ID,
				StudentID: student.ID,
				Message:   fmt.Sprintf("%s alighted from bus %s", student.Name, bus.Number),
			}
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			// No open row; guard against a bounced alight tap re-boarding.
			var lastLog model.TransportLog
			lerr := tx.Where("student_id = ? AND bus_id = ?", student.ID, bus.ID).
				Order("boarded_at DESC").
				First(&lastLog).Error
			if lerr == nil {
				lastAt := lastLog.BoardedAt
				if lastLog.AlightedAt != nil && lastLog.AlightedAt.After(lastAt) {
					lastAt = *lastLog.AlightedAt
				}
				if at.Sub(lastAt) < s.rules.Cooldown {
					return presence.ErrDuplicateScan
				}
			} else if !errors.Is(lerr, gorm.ErrRecordNotFound) {
				return lerr
			}

			entry := model.TransportLog{
				StudentID: student.ID,
				BusID:     bus.ID,
				NFCUID:    uid,
				BoardedAt: at,
				Location:  location,
				Status:    model.TransportBoarded,
			}
			// At most one open row per (student, bus) exists, enforced by a
			// partial unique index; an insert failure here means a concurrent
			// boarding already won.
			if err := tx.Create(&entry).Error; err != nil {
				return presence.ErrScanConflict
			}
			result = &TransportResult{
				Action:    presence.BoardingActions.Entry,
				BusID:     bus.ID,
				StudentID: student.ID,
				Message:   fmt.Sprintf("%s boarded bus %s", student.Name, bus.Number),
			}
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
