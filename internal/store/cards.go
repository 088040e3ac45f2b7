package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"campus-access-backend/internal/model"
	"campus-access-backend/internal/parse"
	"campus-access-backend/internal/presence"
)

// AssignCard binds a scanned card UID to a student. The UID must not already
// belong to another student, and the student must not already hold a card.
func (s *gormStore) AssignCard(ctx context.Context, studentID int64, rawUID string) error {
	uid, err := parse.NormalizeUID(rawUID)
	if err != nil {
		return fmt.Errorf("rejecting card assignment: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student model.Student
		if err := tx.First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return presence.ErrUnknownTag
			}
			return err
		}
		if student.NFCUID != nil {
			return ErrCardAlreadyAssigned
		}

		var existing model.Student
		err := tx.Where("nfc_uid = ?", uid).First(&existing).Error
		if err == nil {
			return ErrCardInUse
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Model(&student).Update("nfc_uid", uid).Error
	})
}

// RemoveCard clears a student's card binding.
func (s *gormStore) RemoveCard(ctx context.Context, studentID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student model.Student
		if err := tx.First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return presence.ErrUnknownTag
			}
			return err
		}
		if student.NFCUID == nil {
			return ErrNoCardAssigned
		}
		return tx.Model(&student).Update("nfc_uid", nil).Error
	})
}
