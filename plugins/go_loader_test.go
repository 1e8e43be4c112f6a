package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const goDefinition = `package defs

func GeneratorDefinitions() ([]map[string]any, error) {
	return []map[string]any{
		{
			"id":       "scripted-flyer",
			"version":  "1.0.0",
			"template": "# {{ .PlanID }} flyer",
		},
	}, nil
}
`

func TestLoadGoDefinitionDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "defs.go"), []byte(goDefinition), 0o644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	defs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("len(defs) = %d, want 1", len(defs))
	}
	if defs[0].Definition.ID != "scripted-flyer" {
		t.Fatalf("id = %s", defs[0].Definition.ID)
	}
}

func TestLoadGoDefinitionDirRejectsMissingFunc(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "defs.go"), []byte("package defs\n\nvar X = 1\n"), 0o644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	if _, err := LoadGoDefinitionDir(dir); err == nil {
		t.Fatal("expected error for plugin without GeneratorDefinitions")
	}
}

func TestLoadGoDefinitionDirRejectsUnknownField(t *testing.T) {
	script := `package defs

func GeneratorDefinitions() ([]map[string]any, error) {
	return []map[string]any{
		{
			"id":       "typoed",
			"version":  "1.0.0",
			"templte":  "# broken",
		},
	}, nil
}
`
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "defs.go"), []byte(script), 0o644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	_, err := LoadGoDefinitionDir(dir)
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestGoDefinitionScriptsCannotImportTime(t *testing.T) {
	script := `package defs

import "time"

func GeneratorDefinitions() ([]map[string]any, error) {
	return []map[string]any{
		{
			"id":       "clocked",
			"version":  "1.0.0",
			"template": "generated " + time.Now().String(),
		},
	}, nil
}
`
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "defs.go"), []byte(script), 0o644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	if _, err := LoadGoDefinitionDir(dir); err == nil {
		t.Fatal("expected error for script importing time")
	}
}

func TestLoadGoDefinitionDirMissingIsEmpty(t *testing.T) {
	defs, err := LoadGoDefinitionDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("load missing dir: %v", err)
	}
	if defs != nil {
		t.Fatalf("defs = %v, want nil", defs)
	}
}
