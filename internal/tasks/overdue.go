package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/okulov/libraria/internal/database/loans"
	"github.com/okulov/libraria/internal/entities"
)

// OverdueLister provides the overdue slice of the loan ledger.
type OverdueLister interface {
	ListOverdue(asOf time.Time) ([]entities.Loan, error)
	Policy() loans.Policy
}

// OverdueScanTask reports every active loan past its due date along with
// the fine accrued so far. The scan never mutates the ledger; fines are
// only persisted when a loan is actually returned.
type OverdueScanTask struct {
	RequestedAt time.Time `json:"requested_at"`
}

// Config returns the queue configuration for overdue scan tasks.
func (t OverdueScanTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_scan",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// OverdueScanProcessor creates a processor function for OverdueScanTask.
func OverdueScanProcessor(lister OverdueLister) backlite.QueueProcessor[OverdueScanTask] {
	return func(ctx context.Context, task OverdueScanTask) error {
		if lister == nil {
			return fmt.Errorf("overdue lister not configured")
		}

		asOf := task.RequestedAt
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}

		overdue, err := lister.ListOverdue(asOf)
		if err != nil {
			return fmt.Errorf("list overdue loans: %w", err)
		}

		policy := lister.Policy()
		for _, loan := range overdue {
			accrued := policy.Fine(loan.DueDate, asOf)
			log.Printf("[TASK] Overdue loan %s: book %d, user %d, due %s, accrued fine %d",
				loan.Reference, loan.BookID, loan.UserID,
				loan.DueDate.Format(time.DateOnly), accrued)
		}

		log.Printf("[TASK] Overdue scan complete: %d loans overdue as of %s",
			len(overdue), asOf.Format(time.RFC3339))
		return nil
	}
}

// NewOverdueScanQueue creates a backlite queue for overdue scan tasks.
func NewOverdueScanQueue(lister OverdueLister) backlite.Queue {
	return backlite.NewQueue(OverdueScanProcessor(lister))
}
