package services

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okulov/libraria/internal/database"
	"github.com/okulov/libraria/internal/database/books"
	"github.com/okulov/libraria/internal/database/loans"
	"github.com/okulov/libraria/internal/entities"
)

func setupServiceTestDB(t *testing.T) (*database.Database, func()) {
	t.Helper()

	dbPath := "./test_services_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	// Single connection serializes transactions so concurrent borrow tests
	// exercise the WHERE guard instead of SQLite busy errors
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, cleanup
}

func createTestBook(t *testing.T, db *database.Database, copies int) *entities.Book {
	t.Helper()
	book := &entities.Book{
		Title:       "Concurrency in Go",
		Author:      "Katherine Cox-Buday",
		ISBN:        "978-1491941195",
		Category:    "Technology",
		TotalCopies: copies,
	}
	require.NoError(t, books.NewRepository(db.DB).Create(book))
	return book
}

var (
	patron      = Actor{ID: 1, Role: entities.UserRolePatron}
	otherPatron = Actor{ID: 2, Role: entities.UserRolePatron}
	admin       = Actor{ID: 9, Role: entities.UserRoleAdmin}
)

func TestLoanService_Borrow(t *testing.T) {
	t.Run("creates an active loan and takes a copy", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 2)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		loan, err := service.Borrow(book.ID, patron, "")
		require.NoError(t, err)

		assert.Equal(t, entities.LoanStatusActive, loan.Status)
		assert.Equal(t, patron.ID, loan.UserID)
		assert.Equal(t, book.ID, loan.BookID)
		assert.Equal(t, loan.BorrowDate.AddDate(0, 0, 14), loan.DueDate)

		saved, err := books.NewRepository(db.DB).GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, saved.AvailableCopies)
	})

	t.Run("fails when no copies remain and leaves no loan row", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 1)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		_, err := service.Borrow(book.ID, patron, "")
		require.NoError(t, err)

		_, err = service.Borrow(book.ID, otherPatron, "")
		assert.ErrorIs(t, err, books.ErrNoCopiesAvailable)

		count, err := loans.NewRepository(db.DB, loans.DefaultPolicy).CountActiveByBook(book.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("replays the idempotency key instead of borrowing twice", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 3)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		first, err := service.Borrow(book.ID, patron, "req-1")
		require.NoError(t, err)

		replay, err := service.Borrow(book.ID, patron, "req-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, replay.ID)

		saved, err := books.NewRepository(db.DB).GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, saved.AvailableCopies)
	})

	t.Run("rejects a replayed key from a different user", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 3)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		_, err := service.Borrow(book.ID, patron, "req-1")
		require.NoError(t, err)

		_, err = service.Borrow(book.ID, otherPatron, "req-1")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("concurrent borrows never oversell the last copy", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 1)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		const attempts = 10
		var wg sync.WaitGroup
		errs := make([]error, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				actor := Actor{ID: uint(n + 1), Role: entities.UserRolePatron}
				_, errs[n] = service.Borrow(book.ID, actor, "")
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, books.ErrNoCopiesAvailable)
			}
		}
		assert.Equal(t, 1, succeeded)

		saved, err := books.NewRepository(db.DB).GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, saved.AvailableCopies)

		count, err := loans.NewRepository(db.DB, loans.DefaultPolicy).CountActiveByBook(book.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestLoanService_Return(t *testing.T) {
	t.Run("closes the loan and frees the copy", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 1)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		loan, err := service.Borrow(book.ID, patron, "")
		require.NoError(t, err)

		returned, err := service.Return(loan.ID, patron)
		require.NoError(t, err)
		assert.Equal(t, entities.LoanStatusReturned, returned.Status)
		assert.NotNil(t, returned.ReturnDate)

		saved, err := books.NewRepository(db.DB).GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, saved.AvailableCopies)
	})

	t.Run("admin may return on a patron's behalf", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 1)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		loan, err := service.Borrow(book.ID, patron, "")
		require.NoError(t, err)

		_, err = service.Return(loan.ID, admin)
		assert.NoError(t, err)
	})

	t.Run("another patron may not return the loan", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 1)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		loan, err := service.Borrow(book.ID, patron, "")
		require.NoError(t, err)

		_, err = service.Return(loan.ID, otherPatron)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("double return is rejected and the copy counted once", func(t *testing.T) {
		db, cleanup := setupServiceTestDB(t)
		defer cleanup()

		book := createTestBook(t, db, 1)
		service := NewLoanService(db.DB, loans.DefaultPolicy)

		loan, err := service.Borrow(book.ID, patron, "")
		require.NoError(t, err)

		_, err = service.Return(loan.ID, patron)
		require.NoError(t, err)

		_, err = service.Return(loan.ID, patron)
		assert.ErrorIs(t, err, loans.ErrLoanAlreadyReturned)

		saved, err := books.NewRepository(db.DB).GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, saved.AvailableCopies)
	})
}

func TestLoanService_BorrowReturnCycle(t *testing.T) {
	// Two copies: two borrows succeed, a third fails, a return frees a
	// copy and the next borrow succeeds again.
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	book := createTestBook(t, db, 2)
	service := NewLoanService(db.DB, loans.DefaultPolicy)

	first, err := service.Borrow(book.ID, patron, "")
	require.NoError(t, err)
	_, err = service.Borrow(book.ID, otherPatron, "")
	require.NoError(t, err)

	third := Actor{ID: 3, Role: entities.UserRolePatron}
	_, err = service.Borrow(book.ID, third, "")
	assert.ErrorIs(t, err, books.ErrNoCopiesAvailable)

	_, err = service.Return(first.ID, patron)
	require.NoError(t, err)

	_, err = service.Borrow(book.ID, third, "")
	assert.NoError(t, err)

	// Active loans always equal borrowed copies
	saved, err := books.NewRepository(db.DB).GetByID(book.ID)
	require.NoError(t, err)
	count, err := loans.NewRepository(db.DB, loans.DefaultPolicy).CountActiveByBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(saved.TotalCopies-saved.AvailableCopies), count)
}

func TestLoanService_Listings(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	book := createTestBook(t, db, 3)
	service := NewLoanService(db.DB, loans.DefaultPolicy)

	mine, err := service.Borrow(book.ID, patron, "")
	require.NoError(t, err)
	_, err = service.Borrow(book.ID, otherPatron, "")
	require.NoError(t, err)

	t.Run("patron lists own loans", func(t *testing.T) {
		listed, err := service.ListForUser(patron.ID, patron)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, mine.ID, listed[0].ID)
	})

	t.Run("patron may not list another user's loans", func(t *testing.T) {
		_, err := service.ListForUser(otherPatron.ID, patron)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin lists anyone's loans", func(t *testing.T) {
		listed, err := service.ListForUser(patron.ID, admin)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("full listing is admin only", func(t *testing.T) {
		_, err := service.ListAll(patron)
		assert.ErrorIs(t, err, ErrForbidden)

		listed, err := service.ListAll(admin)
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})

	t.Run("overdue listing is admin only", func(t *testing.T) {
		_, err := service.ListOverdue(patron)
		assert.ErrorIs(t, err, ErrForbidden)

		overdue, err := service.ListOverdue(admin)
		require.NoError(t, err)
		assert.Empty(t, overdue)

		// Backdate one loan past its due date
		past := time.Now().UTC().AddDate(0, 0, -1)
		require.NoError(t, db.DB.Model(&entities.Loan{}).Where("id = ?", mine.ID).Update("due_date", past).Error)

		overdue, err = service.ListOverdue(admin)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, mine.ID, overdue[0].ID)
	})
}
