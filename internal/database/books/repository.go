// Package books provides database operations for the book inventory.
//
// The inventory owns each title's copy counts. AvailableCopies is only
// ever changed through DecrementAvailable / IncrementAvailable (both
// conditional single-statement updates) or clamped by UpdateCopyCount,
// which keeps 0 <= available_copies <= total_copies under concurrent use.
package books

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/okulov/libraria/internal/entities"
)

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrDuplicateISBN     = errors.New("a book with this ISBN already exists")
	ErrNoCopiesAvailable = errors.New("no copies available")
	ErrActiveLoans       = errors.New("book has active loans")
	ErrValidation        = errors.New("invalid book")
)

var isbnPattern = regexp.MustCompile(`^[0-9-]+$`)

// ListOptions narrows and orders List results.
type ListOptions struct {
	Search   string // Matches title, author, ISBN or description
	Category string
	Author   string
	Sort     string // "title-asc", "title-desc", "newest", "oldest", "available"
}

// Repository handles all book inventory database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new book inventory repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create validates and registers a new book. AvailableCopies is always
// initialized to TotalCopies, regardless of what the caller set.
func (r *Repository) Create(book *entities.Book) error {
	if err := validate(book); err != nil {
		return err
	}

	var count int64
	if err := r.db.Model(&entities.Book{}).Where("isbn = ?", book.ISBN).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check ISBN: %w", err)
	}
	if count > 0 {
		return ErrDuplicateISBN
	}

	book.AvailableCopies = book.TotalCopies
	if err := r.db.Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetByID retrieves a book by ID.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// List retrieves books matching the given filters.
func (r *Repository) List(opts ListOptions) ([]entities.Book, error) {
	query := r.db.Model(&entities.Book{})

	if opts.Category != "" {
		query = query.Where("category = ?", opts.Category)
	}
	if opts.Author != "" {
		query = query.Where("LOWER(author) LIKE LOWER(?)", "%"+opts.Author+"%")
	}
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		query = query.Where(
			"LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR isbn LIKE ? OR LOWER(description) LIKE LOWER(?)",
			pattern, pattern, pattern, pattern,
		)
	}

	switch opts.Sort {
	case "title-asc":
		query = query.Order("title ASC")
	case "title-desc":
		query = query.Order("title DESC")
	case "oldest":
		query = query.Order("created_at ASC")
	case "available":
		query = query.Order("available_copies DESC")
	default: // "newest" and unknown values
		query = query.Order("created_at DESC")
	}

	var books []entities.Book
	err := query.Find(&books).Error
	return books, err
}

// Update replaces a book's catalog metadata. Copy counts are managed
// separately via UpdateCopyCount.
func (r *Repository) Update(id uint, book *entities.Book) (*entities.Book, error) {
	existing, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := validate(book); err != nil {
		return nil, err
	}

	if book.ISBN != existing.ISBN {
		var count int64
		if err := r.db.Model(&entities.Book{}).Where("isbn = ? AND id <> ?", book.ISBN, id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check ISBN: %w", err)
		}
		if count > 0 {
			return nil, ErrDuplicateISBN
		}
	}

	updates := map[string]any{
		"title":          book.Title,
		"author":         book.Author,
		"isbn":           book.ISBN,
		"published_year": book.PublishedYear,
		"category":       book.Category,
		"description":    book.Description,
	}
	if err := r.db.Model(existing).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return r.GetByID(id)
}

// UpdateCopyCount sets a book's total copy count. When the new total is
// lower than the current available count, available is clamped down to
// the new total; otherwise it is left unchanged.
func (r *Repository) UpdateCopyCount(id uint, newTotal int) (*entities.Book, error) {
	if newTotal < 0 {
		return nil, fmt.Errorf("%w: total copies cannot be negative", ErrValidation)
	}

	result := r.db.Model(&entities.Book{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"total_copies":     newTotal,
		"available_copies": gorm.Expr("MIN(available_copies, ?)", newTotal),
		"updated_at":       time.Now(),
	})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update copy count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrBookNotFound
	}
	return r.GetByID(id)
}

// DecrementAvailable atomically takes one copy, failing when none are
// left. The WHERE guard is what serializes concurrent borrows of the
// last copy: only one of them can match the row.
func (r *Repository) DecrementAvailable(id uint) (int, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies > 0", id).
		UpdateColumns(map[string]any{
			"available_copies": gorm.Expr("available_copies - 1"),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to decrement available copies: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the book is gone or the last copy is out
		if _, err := r.GetByID(id); err != nil {
			return 0, err
		}
		return 0, ErrNoCopiesAvailable
	}

	book, err := r.GetByID(id)
	if err != nil {
		return 0, err
	}
	return book.AvailableCopies, nil
}

// IncrementAvailable atomically returns one copy, capped at the total
// count. Incrementing a fully stocked book is a no-op rather than an
// error so a stray call can never push available above total.
func (r *Repository) IncrementAvailable(id uint) (int, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumns(map[string]any{
			"available_copies": gorm.Expr("available_copies + 1"),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to increment available copies: %w", result.Error)
	}

	book, err := r.GetByID(id)
	if err != nil {
		return 0, err
	}
	return book.AvailableCopies, nil
}

// Delete removes a book from the catalog. Deletion is refused while
// active loans still reference the book; orphaned loan rows would make
// the copy-count bookkeeping unverifiable.
func (r *Repository) Delete(id uint) error {
	if _, err := r.GetByID(id); err != nil {
		return err
	}

	var active int64
	err := r.db.Model(&entities.Loan{}).
		Where("book_id = ? AND status = ?", id, entities.LoanStatusActive).
		Count(&active).Error
	if err != nil {
		return fmt.Errorf("failed to check active loans: %w", err)
	}
	if active > 0 {
		return ErrActiveLoans
	}

	return r.db.Delete(&entities.Book{}, id).Error
}

// Summary aggregates catalog-wide statistics.
type Summary struct {
	TotalBooks      int64   `json:"total_books"`
	TotalCopies     int64   `json:"total_copies"`
	AvailableCopies int64   `json:"available_copies"`
	BorrowedCopies  int64   `json:"borrowed_copies"`
	AverageYear     int     `json:"average_year"`
	Availability    float64 `json:"availability"`
}

// GetSummary computes catalog statistics in a single aggregate query.
func (r *Repository) GetSummary() (*Summary, error) {
	var row struct {
		TotalBooks      int64
		TotalCopies     int64
		AvailableCopies int64
		AverageYear     float64
	}
	err := r.db.Model(&entities.Book{}).
		Select("COUNT(*) AS total_books, " +
			"COALESCE(SUM(total_copies), 0) AS total_copies, " +
			"COALESCE(SUM(available_copies), 0) AS available_copies, " +
			"COALESCE(AVG(published_year), 0) AS average_year").
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute summary: %w", err)
	}

	summary := &Summary{
		TotalBooks:      row.TotalBooks,
		TotalCopies:     row.TotalCopies,
		AvailableCopies: row.AvailableCopies,
		BorrowedCopies:  row.TotalCopies - row.AvailableCopies,
		AverageYear:     int(row.AverageYear + 0.5),
	}
	if row.TotalCopies > 0 {
		summary.Availability = float64(row.AvailableCopies) / float64(row.TotalCopies)
	}
	return summary, nil
}

func validate(book *entities.Book) error {
	title := strings.TrimSpace(book.Title)
	author := strings.TrimSpace(book.Author)
	isbn := strings.TrimSpace(book.ISBN)

	switch {
	case len(title) < 2 || len(title) > 200:
		return fmt.Errorf("%w: title must be 2-200 characters", ErrValidation)
	case len(author) < 2 || len(author) > 100:
		return fmt.Errorf("%w: author must be 2-100 characters", ErrValidation)
	case isbn == "" || !isbnPattern.MatchString(isbn):
		return fmt.Errorf("%w: isbn must contain only digits and dashes", ErrValidation)
	case book.TotalCopies < 0:
		return fmt.Errorf("%w: total copies cannot be negative", ErrValidation)
	case len(book.Description) > 1000:
		return fmt.Errorf("%w: description cannot exceed 1000 characters", ErrValidation)
	}

	if book.PublishedYear != 0 {
		if book.PublishedYear < 1000 || book.PublishedYear > time.Now().Year()+1 {
			return fmt.Errorf("%w: published year must be a valid year", ErrValidation)
		}
	}

	if book.Category == "" {
		book.Category = "Other"
	} else {
		valid := false
		for _, c := range entities.BookCategories {
			if book.Category == c {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: unknown category %q", ErrValidation, book.Category)
		}
	}

	book.Title = title
	book.Author = author
	book.ISBN = isbn
	return nil
}
