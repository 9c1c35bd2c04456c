// Package analyzer drives analysis jobs from claim to completion.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/finalyzer/finalyzer/internal/engine"
	"github.com/finalyzer/finalyzer/internal/extract"
	"github.com/finalyzer/finalyzer/internal/store"
)

// Processor executes analysis jobs against the job store and engine.
type Processor struct {
	store            *store.Store
	engine           engine.Engine
	maxDocumentChars int
	logger           *slog.Logger
}

// Config configures a Processor.
type Config struct {
	Store            *store.Store
	Engine           engine.Engine
	MaxDocumentChars int
	Logger           *slog.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(cfg Config) *Processor {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		store:            cfg.Store,
		engine:           cfg.Engine,
		maxDocumentChars: cfg.MaxDocumentChars,
		logger:           log,
	}
}

// Process handles one queue delivery for the given job id. A nil return
// means the delivery was consumed; job-level failures are recorded on
// the job, not returned, so the queue never redelivers a decided job.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	log := p.logger.With("job_id", jobID)

	job, err := p.store.Get(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("dropping delivery for unknown job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	// Duplicate deliveries short-circuit: the job is already being
	// worked or already decided.
	if job.Status != store.StatusPending {
		log.Debug("skipping delivery", "status", job.Status)
		return nil
	}

	claimed, err := p.store.ClaimProcessing(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		log.Debug("job claimed by another worker")
		return nil
	}

	// The claiming worker owns the upload from here on. The file is
	// removed on every exit path, success or failure.
	defer p.removeUpload(job.FilePath, log)

	log.Info("processing job", "file", job.FileName)

	document, err := extract.Text(ctx, job.FilePath)
	if errors.Is(err, extract.ErrNotFound) {
		return p.fail(ctx, jobID, fmt.Sprintf("File not found: %s", job.FilePath), log)
	}
	if err != nil {
		return p.fail(ctx, jobID, fmt.Sprintf("Failed to read document: %v", err), log)
	}

	result, err := p.run(ctx, job.Query, document)
	if err != nil {
		return p.fail(ctx, jobID, err.Error(), log)
	}

	if err := p.store.Complete(ctx, jobID, result); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	log.Info("job completed")
	return nil
}

// RunInline analyzes a document without a job record, for the blocking
// endpoint. The document file is removed before returning.
func (p *Processor) RunInline(ctx context.Context, query, filePath string) (string, error) {
	defer p.removeUpload(filePath, p.logger)

	document, err := extract.Text(ctx, filePath)
	if err != nil {
		return "", err
	}
	return p.run(ctx, query, document)
}

// run verifies the document and produces the analysis.
func (p *Processor) run(ctx context.Context, query, document string) (string, error) {
	document = extract.Truncate(document, p.maxDocumentChars)

	verification, err := p.engine.Verify(ctx, document)
	if err != nil {
		return "", err
	}
	if !verification.IsFinancialDocument {
		kind := verification.DocumentType
		if kind == "" {
			kind = "unknown"
		}
		return "", fmt.Errorf("document does not appear to be a financial document (looks like: %s)", kind)
	}

	analysis, err := p.engine.Analyze(ctx, query, document)
	if err != nil {
		return "", err
	}
	return analysis.Text, nil
}

// fail records a job failure. Errors writing the failure are returned
// so the caller can log them; the job may be stuck in PROCESSING.
func (p *Processor) fail(ctx context.Context, jobID, msg string, log *slog.Logger) error {
	log.Warn("job failed", "error", msg)
	if err := p.store.Fail(ctx, jobID, msg); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

func (p *Processor) removeUpload(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove upload", "path", path, "error", err)
	}
}
