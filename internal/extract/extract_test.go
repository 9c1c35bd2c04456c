package extract

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestTextMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.pdf")

	_, err := Text(context.Background(), path)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Text() error = %v, want ErrNotFound", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "collapses blank runs",
			input: "Revenue: $10M\n\n\n\nNet income: $2M",
			want:  "Revenue: $10M\n\nNet income: $2M",
		},
		{
			name:  "strips trailing whitespace",
			input: "line one   \nline two\t\r\n",
			want:  "line one\nline two",
		},
		{
			name:  "drops leading and trailing blanks",
			input: "\n\n\nbalance sheet\n\n\n",
			want:  "balance sheet",
		},
		{
			name:  "whitespace only",
			input: "  \n\t\n   ",
			want:  "",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)

	if got := Truncate(long, 0); got != long {
		t.Error("Truncate with maxChars=0 modified text")
	}
	if got := Truncate(long, 200); got != long {
		t.Error("Truncate below limit modified text")
	}

	got := Truncate(long, 10)
	if !strings.HasPrefix(got, "xxxxxxxxxx") || !strings.Contains(got, "[document truncated]") {
		t.Errorf("Truncate() = %q", got)
	}
}
