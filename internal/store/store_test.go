package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestJob() *Job {
	return &Job{
		ID:       uuid.NewString(),
		Query:    "Analyze this financial document for investment insights",
		FileName: "report.pdf",
		FilePath: "/tmp/financial_document_x.pdf",
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %s, want PENDING", got.Status)
	}
	if got.Query != job.Query || got.FileName != job.FileName || got.FilePath != job.FilePath {
		t.Errorf("job fields not persisted: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestClaimProcessing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	claimed, err := s.ClaimProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("ClaimProcessing() error = %v", err)
	}
	if !claimed {
		t.Fatal("first claim returned false")
	}

	// A second delivery of the same job must not claim it again.
	claimed, err = s.ClaimProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("ClaimProcessing() error = %v", err)
	}
	if claimed {
		t.Error("duplicate claim succeeded")
	}

	got, _ := s.Get(ctx, job.ID)
	if got.Status != StatusProcessing {
		t.Errorf("Status = %s, want PROCESSING", got.Status)
	}
}

func TestCompleteLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	s.Create(ctx, job)
	s.ClaimProcessing(ctx, job.ID)

	if err := s.Complete(ctx, job.ID, "the analysis"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got, _ := s.Get(ctx, job.ID)
	if got.Status != StatusCompleted {
		t.Errorf("Status = %s, want COMPLETED", got.Status)
	}
	if got.Result != "the analysis" {
		t.Errorf("Result = %q", got.Result)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty on success", got.Error)
	}

	// Terminal states are absorbing.
	if err := s.Fail(ctx, job.ID, "late failure"); err == nil {
		t.Error("Fail() on COMPLETED job succeeded")
	}
	got, _ = s.Get(ctx, job.ID)
	if got.Status != StatusCompleted || got.Result != "the analysis" {
		t.Errorf("terminal job mutated: %+v", got)
	}
}

func TestCompleteRequiresProcessing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	s.Create(ctx, job)

	if err := s.Complete(ctx, job.ID, "result"); err == nil {
		t.Error("Complete() on PENDING job succeeded")
	}

	if err := s.Complete(ctx, "missing", "result"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Complete() on missing job error = %v, want ErrNotFound", err)
	}
}

func TestFailFromPendingAndProcessing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Queue publish failures mark a still-PENDING job as FAILED.
	pending := newTestJob()
	s.Create(ctx, pending)
	if err := s.Fail(ctx, pending.ID, "queue unavailable"); err != nil {
		t.Fatalf("Fail() from PENDING error = %v", err)
	}
	got, _ := s.Get(ctx, pending.ID)
	if got.Status != StatusFailed || got.Error != "queue unavailable" {
		t.Errorf("job = %+v", got)
	}
	if got.Result != "" {
		t.Errorf("failed job has result %q", got.Result)
	}

	processing := newTestJob()
	s.Create(ctx, processing)
	s.ClaimProcessing(ctx, processing.ID)
	if err := s.Fail(ctx, processing.ID, "engine error"); err != nil {
		t.Fatalf("Fail() from PROCESSING error = %v", err)
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Create(ctx, newTestJob())
	}
	failed := newTestJob()
	s.Create(ctx, failed)
	s.Fail(ctx, failed.ID, "boom")

	jobs, err := s.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 4 {
		t.Errorf("len(jobs) = %d, want 4", len(jobs))
	}

	jobs, err = s.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}

	jobs, err = s.List(ctx, StatusFailed, 10)
	if err != nil {
		t.Fatalf("List(FAILED) error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != failed.ID {
		t.Errorf("List(FAILED) = %+v, want only %s", jobs, failed.ID)
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Error("non-terminal status reported terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("terminal status not reported terminal")
	}
}
