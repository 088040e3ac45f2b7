package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"campus-access-backend/internal/model"
	"campus-access-backend/internal/parse"
	"campus-access-backend/internal/presence"
)

// RecordGateScan applies one badge tap at the campus gate. The read-decide-
// write sequence runs inside a single transaction and the presence flag is
// updated with a version check, so two near-simultaneous taps for the same
// student cannot both be recorded as entries.
func (s *gormStore) RecordGateScan(ctx context.Context, cardUID string, at time.Time) (*ScanResult, error) {
	uid, err := parse.NormalizeUID(cardUID)
	if err != nil {
		return nil, presence.ErrUnknownTag
	}

	var result *ScanResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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

		last, hasLast, err := latestEntryLog(tx, student.ID)
		if err != nil {
			return err
		}

		d, err := presence.Decide(last.Action, last.Timestamp, hasLast, at, s.rules.Cooldown, presence.GateActions)
		if err != nil {
			return err
		}

		entry := model.EntryLog{
			StudentID: student.ID,
			Timestamp: at,
			Action:    d.Action,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append entry log for student %d: %w", student.ID, err)
		}

		if err := s.updatePresence(tx, &student, d.Entering); err != nil {
			return err
		}

		verb := "checked out"
		if d.Entering {
			verb = "checked in"
		}
		result = &ScanResult{
			StudentID: student.ID,
			Name:      student.Name,
			Action:    d.Action,
			Message:   fmt.Sprintf("%s %s", student.Name, verb),
			Timestamp: at,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AutoCheckout terminates every unterminated "in" as of the cutoff with a
// machine-generated "out" event. The cooldown does not apply; these are not
// live scans. Failures on individual students are logged and skipped.
func (s *gormStore) AutoCheckout(ctx context.Context, cutoff time.Time) (AutoCheckoutSummary, error) {
	var summary AutoCheckoutSummary

	var students []model.Student
	if err := s.db.WithContext(ctx).Where("on_campus = ?", true).Find(&students).Error; err != nil {
		return summary, fmt.Errorf("failed to list on-campus students: %w", err)
	}

	for _, student := range students {
		checkedOut := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			last, hasLast, err := latestEntryLog(tx, student.ID)
			if err != nil {
				return err
			}
			// The flag said on-campus but the log disagrees, or the entry is
			// after the cutoff; leave this student alone.
			if !hasLast || last.Action != presence.GateActions.Entry || !last.Timestamp.Before(cutoff) {
				return nil
			}

			entry := model.EntryLog{
				StudentID:     student.ID,
				Timestamp:     cutoff,
				Action:        presence.GateActions.Exit,
				AutoGenerated: true,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			if err := s.updatePresence(tx, &student, false); err != nil {
				return err
			}
			checkedOut = true
			return nil
		})
		if err != nil {
			log.Printf("auto-checkout: skipping student %d: %v", student.ID, err)
			summary.Failed++
			continue
		}
		if checkedOut {
			summary.StudentIDs = append(summary.StudentIDs, student.ID)
		}
	}

	summary.Processed = len(summary.StudentIDs)
	return summary, nil
}

// latestEntryLog fetches the most recent log row for a student. Served by the
// (student_id, timestamp) index.
func latestEntryLog(tx *gorm.DB, studentID int64) (model.EntryLog, bool, error) {
	var last model.EntryLog
	err := tx.Where("student_id = ?", studentID).
		Order("timestamp DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.EntryLog{}, false, nil
	}
	if err != nil {
		return model.EntryLog{}, false, err
	}
	return last, true, nil
}

// updatePresence flips the denormalized flag with a compare-and-swap on the
// scan version. A stale version means a concurrent scan already won; the
// surrounding transaction rolls back so the log and flag stay in agreement.
func (s *gormStore) updatePresence(tx *gorm.DB, student *model.Student, entering bool) error {
	res := tx.Model(&model.Student{}).
		Where("id = ? AND scan_version = ?", student.ID, student.ScanVersion).
		Updates(map[string]any{
			"on_campus":    entering,
			"scan_version": student.ScanVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update presence for student %d: %w", student.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return presence.ErrScanConflict
	}
	return nil
}
