package home

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirPaths(t *testing.T) {
	d, err := New("/tmp/finalyzer-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if d.Path() != "/tmp/finalyzer-test" {
		t.Errorf("Path() = %s", d.Path())
	}
	if d.UploadsPath() != "/tmp/finalyzer-test/uploads" {
		t.Errorf("UploadsPath() = %s", d.UploadsPath())
	}
	if d.DatabasePath() != "/tmp/finalyzer-test/finalyzer.db" {
		t.Errorf("DatabasePath() = %s", d.DatabasePath())
	}
	if d.ConfigPath() != "/tmp/finalyzer-test/config.yaml" {
		t.Errorf("ConfigPath() = %s", d.ConfigPath())
	}
}

func TestUploadPath(t *testing.T) {
	d, _ := New("/tmp/finalyzer-test")

	p := d.UploadPath("abc-123")
	if filepath.Dir(p) != d.UploadsPath() {
		t.Errorf("upload path not under uploads dir: %s", p)
	}
	base := filepath.Base(p)
	if !strings.HasPrefix(base, "financial_document_") || !strings.HasSuffix(base, ".pdf") {
		t.Errorf("unexpected artifact name: %s", base)
	}
	if !strings.Contains(base, "abc-123") {
		t.Errorf("artifact name missing job id: %s", base)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "home")
	d, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if d.Exists() {
		t.Error("Exists() = true before creation")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !d.Exists() {
		t.Error("Exists() = false after creation")
	}

	info, err := os.Stat(d.UploadsPath())
	if err != nil || !info.IsDir() {
		t.Errorf("uploads dir not created: %v", err)
	}
}

func TestNewDefaultsToUserHome(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") error = %v", err)
	}
	if filepath.Base(d.Path()) != DefaultDirName {
		t.Errorf("default path = %s, want basename %s", d.Path(), DefaultDirName)
	}
}
