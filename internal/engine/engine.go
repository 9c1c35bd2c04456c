// Package engine runs LLM-backed analysis of financial documents.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no engine has been configured
// (typically a missing API key).
var ErrNotConfigured = errors.New("analysis engine not configured")

// Verification is the verifier's judgment of an uploaded document.
type Verification struct {
	IsFinancialDocument bool   `json:"is_financial_document"`
	DocumentType        string `json:"document_type"`
	Company             string `json:"company,omitempty"`
	Period              string `json:"period,omitempty"`
	Note                string `json:"note,omitempty"`
}

// Analysis is the analyst's report for one document and query.
type Analysis struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Engine produces document verifications and analyses.
type Engine interface {
	// Verify checks whether the document is a financial document worth
	// analyzing, returning its type and identifiers when visible.
	Verify(ctx context.Context, document string) (*Verification, error)

	// Analyze answers the query against the document content.
	Analyze(ctx context.Context, query, document string) (*Analysis, error)
}

// Failure wraps engine errors with the stage that produced them, so job
// error messages state whether verification or analysis broke.
type Failure struct {
	Stage string // "verify" or "analyze"
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
