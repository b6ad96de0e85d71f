package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type fakeCollectionPoller struct {
	sessions []models.CollectionSession
	queried  []uuid.UUID
	queryErr map[uuid.UUID]error
}

func (f *fakeCollectionPoller) ListNonTerminal(ctx context.Context, limit int) ([]models.CollectionSession, error) {
	return f.sessions, nil
}

func (f *fakeCollectionPoller) Query(ctx context.Context, sessionID uuid.UUID) (*models.CollectionSession, error) {
	f.queried = append(f.queried, sessionID)
	if err := f.queryErr[sessionID]; err != nil {
		return nil, err
	}
	return &models.CollectionSession{ID: sessionID}, nil
}

type fakeDisbursementPoller struct {
	sessions []models.DisbursementSession
	attempts []uuid.UUID
}

func (f *fakeDisbursementPoller) ListStuck(ctx context.Context, before time.Time, limit int) ([]models.DisbursementSession, error) {
	return f.sessions, nil
}

func (f *fakeDisbursementPoller) RecordAttempt(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error) {
	f.attempts = append(f.attempts, sessionID)
	return &models.DisbursementSession{ID: sessionID}, nil
}

type fakeResumer struct {
	resumed int
	err     error
}

func (f *fakeResumer) ResumeApproved(ctx context.Context) (int, error) {
	return f.resumed, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func TestCollectionsPollSweepsAllSessions(t *testing.T) {
	bad := uuid.New()
	poller := &fakeCollectionPoller{
		sessions: []models.CollectionSession{
			{ID: bad}, {ID: uuid.New()}, {ID: uuid.New()},
		},
		queryErr: map[uuid.UUID]error{bad: errors.New("provider hiccup")},
	}
	job, err := NewCollectionsPollJob(poller, testLogger())
	if err != nil {
		t.Fatalf("NewCollectionsPollJob: %v", err)
	}
	if job.Name() != "collections-poll" {
		t.Fatalf("unexpected job name %q", job.Name())
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected aggregated error")
	}
	if len(poller.queried) != 3 {
		t.Fatalf("one failure must not stop the sweep, queried %d", len(poller.queried))
	}
}

func TestDisbursementsPollRecordsAttempts(t *testing.T) {
	poller := &fakeDisbursementPoller{
		sessions: []models.DisbursementSession{{ID: uuid.New()}, {ID: uuid.New()}},
	}
	job, err := NewDisbursementsPollJob(poller, 2*time.Minute, testLogger())
	if err != nil {
		t.Fatalf("NewDisbursementsPollJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(poller.attempts) != 2 {
		t.Fatalf("expected two attempts, got %d", len(poller.attempts))
	}
}

func TestPayoutResumeJob(t *testing.T) {
	job, err := NewPayoutResumeJob(&fakeResumer{resumed: 2}, testLogger())
	if err != nil {
		t.Fatalf("NewPayoutResumeJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	failing, err := NewPayoutResumeJob(&fakeResumer{err: errors.New("db down")}, testLogger())
	if err != nil {
		t.Fatalf("NewPayoutResumeJob: %v", err)
	}
	if err := failing.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}
