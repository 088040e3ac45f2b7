package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"campus-access-backend/internal/db"
	"campus-access-backend/internal/model"
	"campus-access-backend/internal/presence"
)

// newTestDB opens an isolated in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func newTestStore(t *testing.T) (*gormStore, *gorm.DB) {
	gormDB := newTestDB(t)
	s := NewGormStore(gormDB, Rules{
		Cooldown:     30 * time.Second,
		BorrowPeriod: 14 * 24 * time.Hour,
		FinePerDay:   5.0,
	}).(*gormStore)
	return s, gormDB
}

func createStudent(t *testing.T, gormDB *gorm.DB, name, roll, uid string) model.Student {
	t.Helper()
	student := model.Student{
		Name:        name,
		RollNumber:  roll,
		NFCUID:      &uid,
		BorrowLimit: 10,
		Active:      true,
	}
	require.NoError(t, gormDB.Create(&student).Error)
	return student
}

func createBook(t *testing.T, gormDB *gorm.DB, title, tag string) model.Book {
	t.Helper()
	book := model.Book{
		ISBN:      "9780134685991",
		Title:     title,
		Author:    "Test Author",
		Status:    model.BookAvailable,
		NFCTagUID: &tag,
		Active:    true,
	}
	require.NoError(t, gormDB.Create(&book).Error)
	return book
}

func TestRecordGateScan_FirstScanIsCheckIn(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	t0 := time.Now().UTC()

	res, err := s.RecordGateScan(context.Background(), "04:a2:5f:1b", t0)
	require.NoError(t, err)
	assert.Equal(t, "in", res.Action)
	assert.Equal(t, "Alice checked in", res.Message)

	var fresh model.Student
	require.NoError(t, gormDB.First(&fresh, student.ID).Error)
	assert.True(t, fresh.OnCampus)

	var logs []model.EntryLog
	require.NoError(t, gormDB.Where("student_id = ?", student.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "in", logs[0].Action)
	assert.False(t, logs[0].AutoGenerated)
}

func TestRecordGateScan_TogglesToCheckOut(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	t0 := time.Now().UTC()

	_, err := s.RecordGateScan(context.Background(), "04A25F1B", t0)
	require.NoError(t, err)

	res, err := s.RecordGateScan(context.Background(), "04A25F1B", t0.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "out", res.Action)
	assert.Equal(t, "Alice checked out", res.Message)

	var fresh model.Student
	require.NoError(t, gormDB.First(&fresh, student.ID).Error)
	assert.False(t, fresh.OnCampus)
}

func TestRecordGateScan_CooldownLeavesStateUnchanged(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	t0 := time.Now().UTC()

	_, err := s.RecordGateScan(context.Background(), "04A25F1B", t0)
	require.NoError(t, err)

	_, err = s.RecordGateScan(context.Background(), "04A25F1B", t0.Add(10*time.Second))
	assert.ErrorIs(t, err, presence.ErrDuplicateScan)

	var fresh model.Student
	require.NoError(t, gormDB.First(&fresh, student.ID).Error)
	assert.True(t, fresh.OnCampus, "rejected scan must not flip the flag")

	var count int64
	gormDB.Model(&model.EntryLog{}).Where("student_id = ?", student.ID).Count(&count)
	assert.Equal(t, int64(1), count, "rejected scan must not append a log row")
}

func TestRecordGateScan_AlternationInvariant(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	at := time.Now().UTC()

	for i := 0; i < 6; i++ {
		_, err := s.RecordGateScan(context.Background(), "04A25F1B", at)
		require.NoError(t, err)
		at = at.Add(time.Minute)
	}

	var logs []model.EntryLog
	require.NoError(t, gormDB.Where("student_id = ?", student.ID).Order("timestamp ASC").Find(&logs).Error)
	require.Len(t, logs, 6)
	for i := 1; i < len(logs); i++ {
		assert.NotEqual(t, logs[i-1].Action, logs[i].Action)
	}

	var fresh model.Student
	require.NoError(t, gormDB.First(&fresh, student.ID).Error)
	assert.Equal(t, logs[len(logs)-1].Action == "in", fresh.OnCampus,
		"presence flag must equal (last log action is entry)")
}

func TestRecordGateScan_UnknownTag(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.RecordGateScan(context.Background(), "DEADBEEF", time.Now())
	assert.ErrorIs(t, err, presence.ErrUnknownTag)

	_, err = s.RecordGateScan(context.Background(), "not-hex!", time.Now())
	assert.ErrorIs(t, err, presence.ErrUnknownTag)
}

func TestRecordGateScan_InactiveStudent(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Bob", "CS-2020-002", "AA112233")
	require.NoError(t, gormDB.Model(&student).Update("active", false).Error)

	_, err := s.RecordGateScan(context.Background(), "AA112233", time.Now())
	assert.ErrorIs(t, err, presence.ErrInactiveIdentity)
}

func TestUpdatePresence_StaleVersionConflicts(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")

	// A concurrent scan bumps the version between our read and our write.
	require.NoError(t, gormDB.Model(&model.Student{}).
		Where("id = ?", student.ID).
		Update("scan_version", student.ScanVersion+1).Error)

	err := s.updatePresence(gormDB, &student, true)
	assert.ErrorIs(t, err, presence.ErrScanConflict)
}

func TestCheckoutBook_StaleStatusConflicts(t *testing.T) {
	s, gormDB := newTestStore(t)
	createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	book := createBook(t, gormDB, "Contested Copy", "B0000009")

	// A concurrent checkout flips the book between our read and our write.
	require.NoError(t, gormDB.Model(&model.Book{}).
		Where("id = ?", book.ID).
		Update("status", model.BookBorrowed).Error)

	_, err := s.checkoutBook(gormDB, &book, "04A25F1B", time.Now().UTC())
	assert.ErrorIs(t, err, presence.ErrScanConflict)

	var count int64
	gormDB.Model(&model.BookBorrow{}).Where("book_id = ?", book.ID).Count(&count)
	assert.Zero(t, count, "the losing checkout must not leave a borrow record")
}

func TestReturnBook_AlreadyClosedConflicts(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	book := createBook(t, gormDB, "Contested Return", "B0000010")
	t0 := time.Now().UTC()

	borrow := model.BookBorrow{
		Reference:  "ref-contested",
		BookID:     book.ID,
		StudentID:  student.ID,
		Status:     model.BorrowActive,
		BorrowDate: t0.Add(-48 * time.Hour),
		DueDate:    t0.Add(12 * 24 * time.Hour),
	}
	require.NoError(t, gormDB.Create(&borrow).Error)

	// A concurrent return closes the borrow between our read and our write.
	require.NoError(t, gormDB.Model(&model.BookBorrow{}).
		Where("id = ?", borrow.ID).
		Updates(map[string]any{"status": model.BorrowReturned, "return_date": t0}).Error)

	_, err := s.returnBook(gormDB, &book, &borrow, t0)
	assert.ErrorIs(t, err, presence.ErrScanConflict)
}

func TestTransportLog_SingleOpenRowPerPassenger(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	t0 := time.Now().UTC()

	bus := model.Bus{Number: "B-12", Route: "North Gate Loop", Capacity: 40, Active: true}
	require.NoError(t, gormDB.Create(&bus).Error)

	_, err := s.RecordTransportScan(context.Background(), bus.ID, "04A25F1B", "Main Gate", t0)
	require.NoError(t, err)

	// A second open row for the same pair violates the open-row index.
	dup := model.TransportLog{
		StudentID: student.ID,
		BusID:     bus.ID,
		BoardedAt: t0.Add(time.Minute),
		Status:    model.TransportBoarded,
	}
	assert.Error(t, gormDB.Create(&dup).Error)

	// Closed rows do not block later boardings.
	_, err = s.RecordTransportScan(context.Background(), bus.ID, "04A25F1B", "", t0.Add(25*time.Minute))
	require.NoError(t, err)
	_, err = s.RecordTransportScan(context.Background(), bus.ID, "04A25F1B", "Main Gate", t0.Add(time.Hour))
	require.NoError(t, err)
}

func TestAutoCheckout(t *testing.T) {
	s, gormDB := newTestStore(t)
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	inside := createStudent(t, gormDB, "Inside", "CS-2021-001", "AA000001")
	left := createStudent(t, gormDB, "Left", "CS-2021-002", "AA000002")
	lateEntry := createStudent(t, gormDB, "Late", "CS-2021-003", "AA000003")

	_, err := s.RecordGateScan(context.Background(), "AA000001", base)
	require.NoError(t, err)

	_, err = s.RecordGateScan(context.Background(), "AA000002", base)
	require.NoError(t, err)
	_, err = s.RecordGateScan(context.Background(), "AA000002", base.Add(time.Hour))
	require.NoError(t, err)

	// Entered after the cutoff; must not be touched.
	_, err = s.RecordGateScan(context.Background(), "AA000003", cutoff.Add(time.Hour))
	require.NoError(t, err)

	summary, err := s.AutoCheckout(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []int64{inside.ID}, summary.StudentIDs)

	var fresh model.Student
	require.NoError(t, gormDB.First(&fresh, inside.ID).Error)
	assert.False(t, fresh.OnCampus)

	var last model.EntryLog
	require.NoError(t, gormDB.Where("student_id = ?", inside.ID).Order("timestamp DESC").First(&last).Error)
	assert.Equal(t, "out", last.Action)
	assert.True(t, last.AutoGenerated)
	assert.True(t, last.Timestamp.Equal(cutoff))

	// No identity keeps an unterminated entry from before the cutoff.
	for _, id := range []int64{inside.ID, left.ID} {
		var l model.EntryLog
		require.NoError(t, gormDB.Where("student_id = ?", id).Order("timestamp DESC").First(&l).Error)
		assert.Equal(t, "out", l.Action)
	}

	var freshLate model.Student
	require.NoError(t, gormDB.First(&freshLate, lateEntry.ID).Error)
	assert.True(t, freshLate.OnCampus)
}

func TestRecordLibraryScan_CheckoutAndReturn(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	book := createBook(t, gormDB, "Compilers", "B0000001")
	t0 := time.Now().UTC()

	res, err := s.RecordLibraryScan(context.Background(), "B0000001", "04A25F1B", t0)
	require.NoError(t, err)
	assert.Equal(t, "checkout", res.Action)
	assert.NotEmpty(t, res.Reference)
	require.NotNil(t, res.DueDate)
	assert.True(t, res.DueDate.Equal(t0.Add(14*24*time.Hour)))

	var freshBook model.Book
	require.NoError(t, gormDB.First(&freshBook, book.ID).Error)
	assert.Equal(t, model.BookBorrowed, freshBook.Status)

	// Second tap within the cooldown is a bounce, not a return.
	_, err = s.RecordLibraryScan(context.Background(), "B0000001", "04A25F1B", t0.Add(5*time.Second))
	assert.ErrorIs(t, err, presence.ErrDuplicateScan)

	res, err = s.RecordLibraryScan(context.Background(), "B0000001", "04A25F1B", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "return", res.Action)
	assert.Equal(t, student.ID, res.StudentID)
	assert.Zero(t, res.Fine)

	require.NoError(t, gormDB.First(&freshBook, book.ID).Error)
	assert.Equal(t, model.BookAvailable, freshBook.Status)

	var borrow model.BookBorrow
	require.NoError(t, gormDB.Where("book_id = ?", book.ID).First(&borrow).Error)
	assert.Equal(t, model.BorrowReturned, borrow.Status)
	assert.True(t, borrow.NFCCheckout)
	assert.True(t, borrow.NFCReturn)
	require.NotNil(t, borrow.ReturnDate)
}

func TestRecordLibraryScan_BorrowLimit(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Hoarder", "CS-2021-009", "04A25F1B")
	t0 := time.Now().UTC()

	// Ten active borrows against a cap of ten.
	for i := 0; i < 10; i++ {
		other := createBook(t, gormDB, "Filler", string(rune('C'+i))+"0000000")
		borrow := model.BookBorrow{
			Reference:  "ref-" + string(rune('a'+i)),
			BookID:     other.ID,
			StudentID:  student.ID,
			Status:     model.BorrowActive,
			BorrowDate: t0.Add(-48 * time.Hour),
			DueDate:    t0.Add(12 * 24 * time.Hour),
		}
		require.NoError(t, gormDB.Create(&borrow).Error)
	}

	book := createBook(t, gormDB, "One Too Many", "B0000002")

	_, err := s.RecordLibraryScan(context.Background(), "B0000002", "04A25F1B", t0)
	assert.ErrorIs(t, err, presence.ErrBorrowLimit)

	var freshBook model.Book
	require.NoError(t, gormDB.First(&freshBook, book.ID).Error)
	assert.Equal(t, model.BookAvailable, freshBook.Status, "rejected checkout must leave the book untouched")

	var count int64
	gormDB.Model(&model.BookBorrow{}).Where("book_id = ?", book.ID).Count(&count)
	assert.Zero(t, count)
}

func TestRecordLibraryScan_OverdueReturnIssuesFine(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	book := createBook(t, gormDB, "Slow Read", "B0000003")
	t0 := time.Now().UTC()

	borrow := model.BookBorrow{
		Reference:  "ref-overdue",
		BookID:     book.ID,
		StudentID:  student.ID,
		Status:     model.BorrowActive,
		BorrowDate: t0.Add(-20 * 24 * time.Hour),
		DueDate:    t0.Add(-3 * 24 * time.Hour),
	}
	require.NoError(t, gormDB.Create(&borrow).Error)
	require.NoError(t, gormDB.Model(&book).Update("status", model.BookBorrowed).Error)

	res, err := s.RecordLibraryScan(context.Background(), "B0000003", "04A25F1B", t0)
	require.NoError(t, err)
	assert.Equal(t, "return", res.Action)
	assert.Equal(t, 15.0, res.Fine) // 3 days x 5.00

	var fine model.Fine
	require.NoError(t, gormDB.Where("student_id = ?", student.ID).First(&fine).Error)
	assert.Equal(t, 15.0, fine.Amount)
	assert.False(t, fine.Paid)
}

func TestRecordEventScan(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	outsider := createStudent(t, gormDB, "Mallory", "CS-2021-666", "FF000000")
	t0 := time.Now().UTC()

	event := model.Event{
		Title:   "Tech Talk",
		StartAt: t0,
		EndAt:   t0.Add(2 * time.Hour),
		Status:  model.EventOngoing,
		Active:  true,
	}
	require.NoError(t, gormDB.Create(&event).Error)

	reg := model.EventRegistration{
		EventID:      event.ID,
		StudentID:    student.ID,
		Status:       model.RegistrationConfirmed,
		RegisteredAt: t0.Add(-24 * time.Hour),
	}
	require.NoError(t, gormDB.Create(&reg).Error)

	// Unregistered student is turned away.
	_, err := s.RecordEventScan(context.Background(), event.ID, "FF000000", t0)
	assert.ErrorIs(t, err, presence.ErrNotRegistered)
	_ = outsider

	res, err := s.RecordEventScan(context.Background(), event.ID, "04A25F1B", t0)
	require.NoError(t, err)
	assert.Equal(t, "checkin", res.Action)

	_, err = s.RecordEventScan(context.Background(), event.ID, "04A25F1B", t0.Add(10*time.Second))
	assert.ErrorIs(t, err, presence.ErrDuplicateScan)

	res, err = s.RecordEventScan(context.Background(), event.ID, "04A25F1B", t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "checkout", res.Action)
	assert.Equal(t, 90, res.DurationMin)

	// The cycle is complete; a later tap is rejected.
	_, err = s.RecordEventScan(context.Background(), event.ID, "04A25F1B", t0.Add(100*time.Minute))
	assert.ErrorIs(t, err, presence.ErrDuplicateScan)
}

func TestRecordEventScan_UnknownEvent(t *testing.T) {
	s, gormDB := newTestStore(t)
	createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")

	_, err := s.RecordEventScan(context.Background(), 9999, "04A25F1B", time.Now().UTC())
	assert.ErrorIs(t, err, presence.ErrTargetNotFound)
}

func TestRecordTransportScan_UnknownBus(t *testing.T) {
	s, gormDB := newTestStore(t)
	createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")

	_, err := s.RecordTransportScan(context.Background(), 9999, "04A25F1B", "", time.Now().UTC())
	assert.ErrorIs(t, err, presence.ErrTargetNotFound)
}

func TestRecordTransportScan(t *testing.T) {
	s, gormDB := newTestStore(t)
	student := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")
	t0 := time.Now().UTC()

	bus := model.Bus{Number: "B-12", Route: "North Gate Loop", Capacity: 40, Active: true}
	require.NoError(t, gormDB.Create(&bus).Error)

	res, err := s.RecordTransportScan(context.Background(), bus.ID, "04A25F1B", "Main Gate", t0)
	require.NoError(t, err)
	assert.Equal(t, "board", res.Action)

	_, err = s.RecordTransportScan(context.Background(), bus.ID, "04A25F1B", "", t0.Add(10*time.Second))
	assert.ErrorIs(t, err, presence.ErrDuplicateScan)

	res, err = s.RecordTransportScan(context.Background(), bus.ID, "04A25F1B", "", t0.Add(25*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "alight", res.Action)

	var logRow model.TransportLog
	require.NoError(t, gormDB.Where("student_id = ?", student.ID).First(&logRow).Error)
	assert.Equal(t, model.TransportAlighted, logRow.Status)
	require.NotNil(t, logRow.AlightedAt)
}

func TestAssignAndRemoveCard(t *testing.T) {
	s, gormDB := newTestStore(t)
	alice := createStudent(t, gormDB, "Alice", "CS-2021-001", "04A25F1B")

	bob := model.Student{Name: "Bob", RollNumber: "CS-2021-002", Active: true, BorrowLimit: 10}
	require.NoError(t, gormDB.Create(&bob).Error)

	// Alice's UID cannot be reused.
	err := s.AssignCard(context.Background(), bob.ID, "04:A2:5F:1B")
	assert.ErrorIs(t, err, ErrCardInUse)

	require.NoError(t, s.AssignCard(context.Background(), bob.ID, "bb:cc:dd:ee"))

	var fresh model.Student
	require.NoError(t, gormDB.First(&fresh, bob.ID).Error)
	require.NotNil(t, fresh.NFCUID)
	assert.Equal(t, "BBCCDDEE", *fresh.NFCUID)

	err = s.AssignCard(context.Background(), bob.ID, "11223344")
	assert.ErrorIs(t, err, ErrCardAlreadyAssigned)

	require.NoError(t, s.RemoveCard(context.Background(), bob.ID))
	err = s.RemoveCard(context.Background(), bob.ID)
	assert.ErrorIs(t, err, ErrNoCardAssigned)

	_ = alice
}
