package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type collectionPoller interface {
	ListNonTerminal(ctx context.Context, limit int) ([]models.CollectionSession, error)
	Query(ctx context.Context, sessionID uuid.UUID) (*models.CollectionSession, error)
}

type disbursementPoller interface {
	ListStuck(ctx context.Context, before time.Time, limit int) ([]models.DisbursementSession, error)
	RecordAttempt(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error)
}

type payoutResumer interface {
	ResumeApproved(ctx context.Context) (int, error)
}

const pollBatchSize = 100

// CollectionsPollJob reconciles in-flight collection sessions against the
// provider. One bad session does not stop the sweep; errors are aggregated.
type CollectionsPollJob struct {
	collections collectionPoller
	logger      *logger.Logger
}

// NewCollectionsPollJob builds the collection reconciliation job.
func NewCollectionsPollJob(collections collectionPoller, logg *logger.Logger) (*CollectionsPollJob, error) {
	if collections == nil {
		return nil, fmt.Errorf("collection service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &CollectionsPollJob{collections: collections, logger: logg}, nil
}

func (j *CollectionsPollJob) Name() string { return "collections-poll" }

func (j *CollectionsPollJob) Run(ctx context.Context) error {
	sessions, err := j.collections.ListNonTerminal(ctx, pollBatchSize)
	if err != nil {
		return fmt.Errorf("list collection sessions: %w", err)
	}

	var errs error
	for _, session := range sessions {
		if _, err := j.collections.Query(ctx, session.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", session.ID, err))
		}
	}
	return errs
}

// DisbursementsPollJob nudges disbursements that have waited too long for a
// provider outcome. Each sweep counts one attempt against the budget.
type DisbursementsPollJob struct {
	disbursements disbursementPoller
	stuckAfter    time.Duration
	logger        *logger.Logger
}

// NewDisbursementsPollJob builds the disbursement reconciliation job.
func NewDisbursementsPollJob(disbursements disbursementPoller, stuckAfter time.Duration, logg *logger.Logger) (*DisbursementsPollJob, error) {
	if disbursements == nil {
		return nil, fmt.Errorf("disbursement service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if stuckAfter <= 0 {
		stuckAfter = 2 * time.Minute
	}
	return &DisbursementsPollJob{disbursements: disbursements, stuckAfter: stuckAfter, logger: logg}, nil
}

func (j *DisbursementsPollJob) Name() string { return "disbursements-poll" }

func (j *DisbursementsPollJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.stuckAfter)
	sessions, err := j.disbursements.ListStuck(ctx, cutoff, pollBatchSize)
	if err != nil {
		return fmt.Errorf("list stuck disbursements: %w", err)
	}

	var errs error
	for _, session := range sessions {
		if _, err := j.disbursements.RecordAttempt(ctx, session.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", session.ID, err))
		}
	}
	return errs
}

// PayoutResumeJob recovers approved payout requests whose disbursement was
// lost to a crash between approval and session creation.
type PayoutResumeJob struct {
	payouts payoutResumer
	logger  *logger.Logger
}

// NewPayoutResumeJob builds the payout recovery job.
func NewPayoutResumeJob(payouts payoutResumer, logg *logger.Logger) (*PayoutResumeJob, error) {
	if payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PayoutResumeJob{payouts: payouts, logger: logg}, nil
}

func (j *PayoutResumeJob) Name() string { return "payout-resume" }

func (j *PayoutResumeJob) Run(ctx context.Context) error {
	resumed, err := j.payouts.ResumeApproved(ctx)
	if err != nil {
		return fmt.Errorf("resume approved payouts: %w", err)
	}
	if resumed > 0 {
		j.logger.Info(ctx, fmt.Sprintf("resumed %d approved payout requests", resumed))
	}
	return nil
}
