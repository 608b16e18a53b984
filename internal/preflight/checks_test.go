package preflight

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinariesFindsAndMisses(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-a-real-binary-xyz"},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Available {
		t.Errorf("expected present binary to be available: %+v", results[0])
	}
	if results[1].Available {
		t.Errorf("expected missing binary to be unavailable: %+v", results[1])
	}
	if results[1].Detail == "" {
		t.Error("expected a detail message for the missing binary")
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Unset", Command: ""}})
	if results[0].Available {
		t.Error("expected an empty command to be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Errorf("unexpected detail: %q", results[0].Detail)
	}
}

func TestValidateToolNotFound(t *testing.T) {
	status := ValidateTool("clearly-not-a-real-binary-xyz")
	if status.Available {
		t.Error("expected not found")
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	status := CheckDirectoryAccess("staging", dir)
	if !status.Available {
		t.Errorf("expected writable temp dir to be available: %+v", status)
	}

	missing := CheckDirectoryAccess("staging", filepath.Join(dir, "does-not-exist"))
	if missing.Available {
		t.Error("expected missing directory to be unavailable")
	}
}
