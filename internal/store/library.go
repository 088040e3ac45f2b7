package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campus-access-backend/internal/model"
	"campus-access-backend/internal/parse"
	"campus-access-backend/internal/presence"
)

// RecordLibraryScan toggles a book between checkout and return. Unlike the
// gate, the decision is driven by the outstanding borrow record for the book,
// not by the raw log; a checkout additionally enforces the student's
// borrowing limit.
func (s *gormStore) RecordLibraryScan(ctx context.Context, bookUID, cardUID string, at time.Time) (*BorrowResult, error) {
	bookTag, err := parse.NormalizeUID(bookUID)
	if err != nil {
		return nil, presence.ErrUnknownTag
	}

	var result *BorrowResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book model.Book
		if err := tx.Where("nfc_tag_uid = ?", bookTag).First(&book).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return presence.ErrUnknownTag
			}
			return err
		}
		if !book.Active || book.Status == model.BookLost || book.Status == model.BookMaintenance {
			return presence.ErrInactiveIdentity
		}

		var open model.BookBorrow
		err := tx.Where("book_id = ? AND status IN ?", book.ID, []string{model.BorrowActive, model.BorrowOverdue}).
			Order("borrow_date DESC").
			First(&open).Error
		switch {
		case err == nil:
			result, err = s.returnBook(tx, &book, &open, at)
			return err
		case errors.Is(err, gorm.ErrRecordNotFound):
			result, err = s.checkoutBook(tx, &book, cardUID, at)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *gormStore) returnBook(tx *gorm.DB, book *model.Book, borrow *model.BookBorrow, at time.Time) (*BorrowResult, error) {
	// Guard against the checkout tap bouncing straight into a return.
	if at.Sub(borrow.BorrowDate) < s.rules.Cooldown {
		return nil, presence.ErrDuplicateScan
	}

	fine := borrow.CalculateFine(at, s.rules.FinePerDay)

	updates := map[string]any{
		"status":      model.BorrowReturned,
		"return_date": at,
		"nfc_return":  true,
		"fine_amount": fine,
	}
	res := tx.Model(borrow).Where("return_date IS NULL").Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to close borrow %s: %w", borrow.Reference, res.Error)
	}
	// Zero rows means a concurrent return already closed this borrow.
	if res.RowsAffected == 0 {
		return nil, presence.ErrScanConflict
	}
	if err := tx.Model(book).Update("status", model.BookAvailable).Error; err != nil {
		return nil, fmt.Errorf("failed to mark book %d available: %w", book.ID, err)
	}

	if fine > 0 {
		f := model.Fine{
			StudentID:   borrow.StudentID,
			Amount:      fine,
			Description: fmt.Sprintf("Overdue return of %q (ref %s)", book.Title, borrow.Reference),
			IssuedAt:    at,
		}
		if err := tx.Create(&f).Error; err != nil {
			return nil, fmt.Errorf("failed to issue overdue fine: %w", err)
		}
	}

	return &BorrowResult{
		Action:    presence.CirculationActions.Exit,
		Reference: borrow.Reference,
		BookID:    book.ID,
		StudentID: borrow.StudentID,
		Fine:      fine,
		Message:   fmt.Sprintf("%q returned", book.Title),
	}, nil
}

func (s *gormStore) checkoutBook(tx *gorm.DB, book *model.Book, cardUID string, at time.Time) (*BorrowResult, error) {
	uid, err := parse.NormalizeUID(cardUID)
	if err != nil {
		return nil, presence.ErrUnknownTag
	}

	var student model.Student
	if err := tx.Where("nfc_uid = ?", uid).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, presence.ErrUnknownTag
		}
		return nil, err
	}
	if !student.Active {
		return nil, presence.ErrInactiveIdentity
	}

	// Cooldown against the book's most recent circulation activity, so a
	// bounced return tap cannot immediately re-check the book out.
	var lastBorrow model.BookBorrow
	err = tx.Where("book_id = ?", book.ID).Order("borrow_date DESC").First(&lastBorrow).Error
	if err == nil {
		lastAt := lastBorrow.BorrowDate
		if lastBorrow.ReturnDate != nil && lastBorrow.ReturnDate.After(lastAt) {
			lastAt = *lastBorrow.ReturnDate
		}
		if at.Sub(lastAt) < s.rules.Cooldown {
			return nil, presence.ErrDuplicateScan
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var activeCount int64
	if err := tx.Model(&model.BookBorrow{}).
		Where("student_id = ? AND status IN ?", student.ID, []string{model.BorrowActive, model.BorrowOverdue}).
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	if activeCount >= int64(student.BorrowLimit) {
		return nil, presence.ErrBorrowLimit
	}

	// Flip the book with a status check, not a bare id match: two concurrent
	// checkouts both read no active borrow, and only the one that moves the
	// book from available wins. The loser's borrow row never commits.
	flip := tx.Model(&model.Book{}).
		Where("id = ? AND status = ?", book.ID, model.BookAvailable).
		Update("status", model.BookBorrowed)
	if flip.Error != nil {
		return nil, fmt.Errorf("failed to mark book %d borrowed: %w", book.ID, flip.Error)
	}
	if flip.RowsAffected == 0 {
		return nil, presence.ErrScanConflict
	}

	borrow := model.BookBorrow{
		Reference:   uuid.NewString(),
		BookID:      book.ID,
		StudentID:   student.ID,
		Status:      model.BorrowActive,
		BorrowDate:  at,
		DueDate:     at.Add(s.rules.BorrowPeriod),
		NFCCheckout: true,
	}
	if err := tx.Create(&borrow).Error; err != nil {
		return nil, fmt.Errorf("failed to create borrow record: %w", err)
	}

	due := borrow.DueDate
	return &BorrowResult{
		Action:    presence.CirculationActions.Entry,
		Reference: borrow.Reference,
		BookID:    book.ID,
		StudentID: student.ID,
		DueDate:   &due,
		Message:   fmt.Sprintf("%q checked out to %s", book.Title, student.Name),
	}, nil
}
