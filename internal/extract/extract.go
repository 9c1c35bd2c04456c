// Package extract pulls plain text out of uploaded PDF documents.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNotFound is returned when the document file does not exist.
var ErrNotFound = errors.New("document file not found")

// EmptyDocumentText stands in for documents that yield no text, so the
// analysis engine always receives non-empty content.
const EmptyDocumentText = "(no text extracted from document)"

// Text extracts the text content of the PDF at path. Extraction
// problems short of a missing file degrade to EmptyDocumentText rather
// than failing the job.
func Text(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to open document: %w", err)
	}

	// Confirm the file is a readable PDF before shelling out.
	_, pageErr := api.PageCount(f, nil)
	f.Close()
	if pageErr != nil {
		return EmptyDocumentText, nil
	}

	text, err := runPdftotext(ctx, path)
	if err != nil {
		return EmptyDocumentText, nil
	}

	text = Normalize(text)
	if text == "" {
		return EmptyDocumentText, nil
	}
	return text, nil
}

// runPdftotext extracts text using pdftotext (poppler-utils).
func runPdftotext(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "finalyzer-text-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "out.txt")

	// -layout preserves the column layout of financial tables
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", path, outPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text: %w", err)
	}
	return string(data), nil
}

// Normalize trims page text and collapses runs of blank lines so the
// engine prompt stays compact.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(trimmed) == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Truncate caps document text at maxChars, appending a marker when
// content was dropped. maxChars <= 0 disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "\n\n[document truncated]"
}
