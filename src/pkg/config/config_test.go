package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSectionDecodesItsOwnPiece(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"ocr": {"remote_url": "http://localhost:9000/ocr", "contrast_factor": 1.5},
		"storage": {"path": "/tmp/images.db"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	sections = map[string]json.RawMessage{}
	InitializeConfig(path)

	var ocrSection struct {
		RemoteURL      string  `json:"remote_url"`
		ContrastFactor float64 `json:"contrast_factor"`
	}
	if !Section("ocr", &ocrSection) {
		t.Fatal("Section(ocr) = false for a present section")
	}
	if ocrSection.RemoteURL != "http://localhost:9000/ocr" || ocrSection.ContrastFactor != 1.5 {
		t.Fatalf("decoded section = %+v", ocrSection)
	}

	var unused struct{}
	if Section("email", &unused) {
		t.Fatal("Section(email) = true for an absent section")
	}
}

func TestMissingConfigFileKeepsDefaults(t *testing.T) {
	sections = map[string]json.RawMessage{}
	InitializeConfig(filepath.Join(t.TempDir(), "nope.json"))

	var unused struct{}
	if Section("ocr", &unused) {
		t.Fatal("Section() = true after a missing config file")
	}
}

func TestGetPackageName(t *testing.T) {
	if got := GetPackageName(); got != "config" {
		t.Fatalf("GetPackageName() = %q, want config", got)
	}
}
