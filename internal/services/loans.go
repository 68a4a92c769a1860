// Package services composes the book inventory and loan ledger into the
// borrow/return workflows, enforcing authorization on the way in.
package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/okulov/libraria/internal/database/books"
	"github.com/okulov/libraria/internal/database/loans"
	"github.com/okulov/libraria/internal/entities"
)

// ErrForbidden is returned when the acting user may not touch the
// requested loan or listing.
var ErrForbidden = errors.New("not allowed to access this resource")

// Actor is the verified identity attached to each request by the auth
// middleware.
type Actor struct {
	ID   uint
	Role entities.UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == entities.UserRoleAdmin
}

// LoanService orchestrates borrow and return operations. Each operation
// runs the ledger write and the inventory counter update inside a single
// transaction, so no caller ever observes a loan without its matching
// copy decrement (or the reverse).
type LoanService struct {
	db     *gorm.DB
	policy loans.Policy
}

// NewLoanService creates a loan service over the given database handle.
func NewLoanService(db *gorm.DB, policy loans.Policy) *LoanService {
	return &LoanService{db: db, policy: policy}
}

// Borrow takes one available copy of a book for the acting user and
// records the loan. The idempotency key is optional ("" disables it); a
// replayed key returns the loan created by the first attempt instead of
// borrowing a second copy.
func (s *LoanService) Borrow(bookID uint, actor Actor, idempotencyKey string) (*entities.Loan, error) {
	ledger := loans.NewRepository(s.db, s.policy)

	if idempotencyKey != "" {
		existing, err := ledger.GetByIdempotencyKey(idempotencyKey)
		if err == nil {
			if existing.UserID != actor.ID {
				return nil, ErrForbidden
			}
			return existing, nil
		}
		if !errors.Is(err, loans.ErrLoanNotFound) {
			return nil, err
		}
	}

	var created *entities.Loan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// The conditional decrement settles the race for the last copy:
		// the loser fails here and the transaction rolls back with no
		// loan row created.
		if _, err := books.NewRepository(tx).DecrementAvailable(bookID); err != nil {
			return err
		}

		loan, err := loans.NewRepository(tx, s.policy).Create(actor.ID, bookID, idempotencyKey)
		if err != nil {
			return err
		}
		created = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ledger.GetByID(created.ID)
}

// Return closes a loan and puts the copy back on the shelf. Only the
// borrowing user or an admin may return a loan; closing an already
// returned loan is rejected without touching its recorded fine.
func (s *LoanService) Return(loanID uint, actor Actor) (*entities.Loan, error) {
	ledger := loans.NewRepository(s.db, s.policy)

	loan, err := ledger.GetByID(loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != actor.ID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		closed, err := loans.NewRepository(tx, s.policy).Close(loanID, time.Now().UTC())
		if err != nil {
			return err
		}
		if _, err := books.NewRepository(tx).IncrementAvailable(closed.BookID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ledger.GetByID(loanID)
}

// ListForUser returns a user's loans. Patrons may only list their own.
func (s *LoanService) ListForUser(userID uint, actor Actor) ([]entities.Loan, error) {
	if userID != actor.ID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return loans.NewRepository(s.db, s.policy).ListByUser(userID)
}

// ListAll returns every loan. Admin only.
func (s *LoanService) ListAll(actor Actor) ([]entities.Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return loans.NewRepository(s.db, s.policy).ListAll()
}

// ListOverdue returns active loans past their due date. Admin only.
func (s *LoanService) ListOverdue(actor Actor) ([]entities.Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return loans.NewRepository(s.db, s.policy).ListOverdue(time.Now().UTC())
}
