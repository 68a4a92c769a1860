package books

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okulov/libraria/internal/database"
	"github.com/okulov/libraria/internal/entities"
)

func setupBooksTestDB(t *testing.T) (*database.Database, func()) {
	t.Helper()

	dbPath := "./test_books_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, cleanup
}

func testBook(isbn string, copies int) *entities.Book {
	return &entities.Book{
		Title:         "The Go Programming Language",
		Author:        "Donovan and Kernighan",
		ISBN:          isbn,
		PublishedYear: 2015,
		Category:      "Technology",
		TotalCopies:   copies,
	}
}

func TestRepository_Create(t *testing.T) {
	t.Run("initializes available copies from total", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-0134190440", 3)
		book.AvailableCopies = 99 // Must be ignored

		require.NoError(t, repo.Create(book))

		saved, err := repo.GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, saved.TotalCopies)
		assert.Equal(t, 3, saved.AvailableCopies)
	})

	t.Run("rejects duplicate ISBN", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		require.NoError(t, repo.Create(testBook("978-0134190440", 1)))

		err := repo.Create(testBook("978-0134190440", 2))
		assert.ErrorIs(t, err, ErrDuplicateISBN)
	})

	t.Run("rejects invalid fields", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)

		short := testBook("978-1", 1)
		short.Title = "x"
		assert.ErrorIs(t, repo.Create(short), ErrValidation)

		badISBN := testBook("not an isbn", 1)
		assert.ErrorIs(t, repo.Create(badISBN), ErrValidation)

		negative := testBook("978-2", -1)
		assert.ErrorIs(t, repo.Create(negative), ErrValidation)

		badCategory := testBook("978-3", 1)
		badCategory.Category = "Cooking"
		assert.ErrorIs(t, repo.Create(badCategory), ErrValidation)
	})

	t.Run("defaults empty category to Other", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-0134190440", 1)
		book.Category = ""
		require.NoError(t, repo.Create(book))

		saved, err := repo.GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, "Other", saved.Category)
	})
}

func TestRepository_List(t *testing.T) {
	db, cleanup := setupBooksTestDB(t)
	defer cleanup()

	repo := NewRepository(db.DB)

	alpha := testBook("978-1", 1)
	alpha.Title = "Alpha Centauri"
	alpha.Author = "Ann Writer"
	alpha.Category = "Science"
	require.NoError(t, repo.Create(alpha))

	zebra := testBook("978-2", 1)
	zebra.Title = "Zebra Crossing"
	zebra.Author = "Bob Author"
	zebra.Category = "Fiction"
	require.NoError(t, repo.Create(zebra))

	t.Run("filters by category", func(t *testing.T) {
		result, err := repo.List(ListOptions{Category: "Science"})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "Alpha Centauri", result[0].Title)
	})

	t.Run("searches across title and author", func(t *testing.T) {
		result, err := repo.List(ListOptions{Search: "zebra"})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "Zebra Crossing", result[0].Title)

		result, err = repo.List(ListOptions{Search: "ann"})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "Alpha Centauri", result[0].Title)
	})

	t.Run("sorts by title", func(t *testing.T) {
		result, err := repo.List(ListOptions{Sort: "title-asc"})
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "Alpha Centauri", result[0].Title)

		result, err = repo.List(ListOptions{Sort: "title-desc"})
		require.NoError(t, err)
		assert.Equal(t, "Zebra Crossing", result[0].Title)
	})
}

func TestRepository_UpdateCopyCount(t *testing.T) {
	t.Run("clamps available down when total shrinks", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 5)
		require.NoError(t, repo.Create(book))

		updated, err := repo.UpdateCopyCount(book.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.TotalCopies)
		assert.Equal(t, 2, updated.AvailableCopies)
	})

	t.Run("leaves available alone when total grows", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 2)
		require.NoError(t, repo.Create(book))

		_, err := repo.DecrementAvailable(book.ID)
		require.NoError(t, err)

		updated, err := repo.UpdateCopyCount(book.ID, 10)
		require.NoError(t, err)
		assert.Equal(t, 10, updated.TotalCopies)
		assert.Equal(t, 1, updated.AvailableCopies)
	})

	t.Run("rejects negative total", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 1)
		require.NoError(t, repo.Create(book))

		_, err := repo.UpdateCopyCount(book.ID, -1)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRepository_DecrementAvailable(t *testing.T) {
	t.Run("takes one copy at a time", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 2)
		require.NoError(t, repo.Create(book))

		remaining, err := repo.DecrementAvailable(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)

		remaining, err = repo.DecrementAvailable(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("fails at zero without going negative", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 1)
		require.NoError(t, repo.Create(book))

		_, err := repo.DecrementAvailable(book.ID)
		require.NoError(t, err)

		_, err = repo.DecrementAvailable(book.ID)
		assert.ErrorIs(t, err, ErrNoCopiesAvailable)

		saved, err := repo.GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, saved.AvailableCopies)
	})

	t.Run("distinguishes a missing book", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		_, err := repo.DecrementAvailable(12345)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})
}

func TestRepository_IncrementAvailable(t *testing.T) {
	t.Run("returns a copy to the shelf", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 2)
		require.NoError(t, repo.Create(book))

		_, err := repo.DecrementAvailable(book.ID)
		require.NoError(t, err)

		available, err := repo.IncrementAvailable(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, available)
	})

	t.Run("never exceeds total copies", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 2)
		require.NoError(t, repo.Create(book))

		available, err := repo.IncrementAvailable(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, available)
	})
}

func TestRepository_Delete(t *testing.T) {
	t.Run("deletes a book without loans", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 1)
		require.NoError(t, repo.Create(book))

		require.NoError(t, repo.Delete(book.ID))

		_, err := repo.GetByID(book.ID)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})

	t.Run("refuses while active loans exist", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := NewRepository(db.DB)
		book := testBook("978-1", 1)
		require.NoError(t, repo.Create(book))

		loan := &entities.Loan{
			Reference: "ref-1",
			UserID:    1,
			BookID:    book.ID,
			Status:    entities.LoanStatusActive,
		}
		require.NoError(t, db.DB.Create(loan).Error)

		assert.ErrorIs(t, repo.Delete(book.ID), ErrActiveLoans)

		// Returned loans do not block deletion
		require.NoError(t, db.DB.Model(loan).Update("status", entities.LoanStatusReturned).Error)
		assert.NoError(t, repo.Delete(book.ID))
	})
}

func TestRepository_GetSummary(t *testing.T) {
	db, cleanup := setupBooksTestDB(t)
	defer cleanup()

	repo := NewRepository(db.DB)

	first := testBook("978-1", 3)
	first.PublishedYear = 2000
	require.NoError(t, repo.Create(first))

	second := testBook("978-2", 2)
	second.PublishedYear = 2010
	require.NoError(t, repo.Create(second))

	_, err := repo.DecrementAvailable(first.ID)
	require.NoError(t, err)

	summary, err := repo.GetSummary()
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalBooks)
	assert.Equal(t, int64(5), summary.TotalCopies)
	assert.Equal(t, int64(4), summary.AvailableCopies)
	assert.Equal(t, int64(1), summary.BorrowedCopies)
	assert.Equal(t, 2005, summary.AverageYear)
	assert.InDelta(t, 0.8, summary.Availability, 0.001)
}
