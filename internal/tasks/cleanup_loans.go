package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// ReturnedLoanCleaner provides the ability to purge old returned loans.
type ReturnedLoanCleaner interface {
	DeleteReturnedBefore(cutoff time.Time) (int64, error)
}

// CleanupReturnedLoansTask removes returned loans older than the
// configured retention period. Active loans are never touched.
type CleanupReturnedLoansTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for loan cleanup tasks.
func (t CleanupReturnedLoansTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_returned_loans",
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

// CleanupReturnedLoansProcessor creates a processor function for
// CleanupReturnedLoansTask.
func CleanupReturnedLoansProcessor(cleaner ReturnedLoanCleaner) backlite.QueueProcessor[CleanupReturnedLoansTask] {
	return func(ctx context.Context, task CleanupReturnedLoansTask) error {
		if cleaner == nil {
			return fmt.Errorf("returned loan cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 365
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

		deleted, err := cleaner.DeleteReturnedBefore(cutoff)
		if err != nil {
			return fmt.Errorf("cleanup returned loans: %w", err)
		}

		log.Printf("[TASK] Purged %d returned loans older than %d days", deleted, retentionDays)
		return nil
	}
}

// NewCleanupReturnedLoansQueue creates a backlite queue for loan cleanup tasks.
func NewCleanupReturnedLoansQueue(cleaner ReturnedLoanCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupReturnedLoansProcessor(cleaner))
}
