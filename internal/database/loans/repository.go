// Package loans provides database operations for the loan ledger.
//
// The ledger records borrow/return events and owns due-date and fine
// computation. It performs no availability checks; callers must settle
// those against the book inventory before creating a loan.
package loans

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okulov/libraria/internal/entities"
)

var (
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAlreadyReturned = errors.New("loan has already been returned")
)

// Policy holds the circulation parameters applied to every loan.
type Policy struct {
	PeriodDays    int // Due date = borrow date + PeriodDays
	DailyFineRate int // Fine per whole day overdue, flat currency units
}

// DefaultPolicy matches the library's standing rules: two-week loans,
// 5 per day overdue.
var DefaultPolicy = Policy{PeriodDays: 14, DailyFineRate: 5}

// Fine computes the fine for a loan due at dueDate and returned at
// returnedAt: whole days overdue (calendar-day truncation, never
// fractional) times the daily rate. Zero when returned on time.
func (p Policy) Fine(dueDate, returnedAt time.Time) int {
	if !returnedAt.After(dueDate) {
		return 0
	}
	daysOverdue := int(returnedAt.Sub(dueDate).Hours() / 24)
	return daysOverdue * p.DailyFineRate
}

// Repository handles all loan ledger database operations.
type Repository struct {
	db     *gorm.DB
	policy Policy
}

// NewRepository creates a new loan ledger repository.
func NewRepository(db *gorm.DB, policy Policy) *Repository {
	if policy.PeriodDays <= 0 {
		policy.PeriodDays = DefaultPolicy.PeriodDays
	}
	if policy.DailyFineRate <= 0 {
		policy.DailyFineRate = DefaultPolicy.DailyFineRate
	}
	return &Repository{db: db, policy: policy}
}

// Policy returns the circulation policy this ledger applies.
func (r *Repository) Policy() Policy {
	return r.policy
}

// Create records a new active loan for the given user and book. The
// idempotency key is optional; pass "" when the caller supplied none.
func (r *Repository) Create(userID, bookID uint, idempotencyKey string) (*entities.Loan, error) {
	now := time.Now().UTC()
	loan := &entities.Loan{
		Reference:  uuid.NewString(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.AddDate(0, 0, r.policy.PeriodDays),
		Status:     entities.LoanStatusActive,
	}
	if idempotencyKey != "" {
		loan.IdempotencyKey = &idempotencyKey
	}

	if err := r.db.Create(loan).Error; err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	return loan, nil
}

// GetByID retrieves a loan with its book and user joined.
func (r *Repository) GetByID(id uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Preload("Book").Preload("User").First(&loan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// GetByIdempotencyKey retrieves the loan created under a borrow dedupe
// key, if any.
func (r *Repository) GetByIdempotencyKey(key string) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Preload("Book").Preload("User").Where("idempotency_key = ?", key).First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// Close marks a loan as returned at the given instant and computes the
// fine. Returned is a terminal state: closing an already-returned loan
// fails and leaves the original return date and fine untouched.
func (r *Repository) Close(id uint, returnedAt time.Time) (*entities.Loan, error) {
	loan, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if loan.Status == entities.LoanStatusReturned {
		return nil, ErrLoanAlreadyReturned
	}

	fine := r.policy.Fine(loan.DueDate, returnedAt)

	// Guard on status so a concurrent close can't win twice
	result := r.db.Model(&entities.Loan{}).
		Where("id = ? AND status = ?", id, entities.LoanStatusActive).
		Updates(map[string]any{
			"status":      entities.LoanStatusReturned,
			"return_date": returnedAt,
			"fine_amount": fine,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to close loan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrLoanAlreadyReturned
	}

	return r.GetByID(id)
}

// ListByUser retrieves all of a user's loans, newest first, with book
// and user joined for display.
func (r *Repository) ListByUser(userID uint) ([]entities.Loan, error) {
	var loans []entities.Loan
	err := r.db.Preload("Book").Preload("User").
		Where("user_id = ?", userID).
		Order("borrow_date DESC").
		Find(&loans).Error
	return loans, err
}

// ListAll retrieves every loan, newest first, with book and user joined.
func (r *Repository) ListAll() ([]entities.Loan, error) {
	var loans []entities.Loan
	err := r.db.Preload("Book").Preload("User").
		Order("borrow_date DESC").
		Find(&loans).Error
	return loans, err
}

// ListOverdue retrieves active loans whose due date has passed as of the
// given instant, most overdue first.
func (r *Repository) ListOverdue(asOf time.Time) ([]entities.Loan, error) {
	var loans []entities.Loan
	err := r.db.Preload("Book").Preload("User").
		Where("status = ? AND due_date < ?", entities.LoanStatusActive, asOf).
		Order("due_date ASC").
		Find(&loans).Error
	return loans, err
}

// CountActiveByBook returns the number of outstanding loans for a book.
// For a consistent inventory this always equals totalCopies minus
// availableCopies.
func (r *Repository) CountActiveByBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("book_id = ? AND status = ?", bookID, entities.LoanStatusActive).
		Count(&count).Error
	return count, err
}

// DeleteReturnedBefore purges returned loans whose return date is older
// than the cutoff. Used by the retention cleanup task.
func (r *Repository) DeleteReturnedBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("status = ? AND return_date < ?", entities.LoanStatusReturned, cutoff).
		Delete(&entities.Loan{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
