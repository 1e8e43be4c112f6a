// Package artifact persists generated plan outputs and verifies their
// presence after a run. Every artifact is owned by exactly one plan and
// lives under artifacts/<plan_id>/<filename>; re-running a plan overwrites
// in place, which is safe because generation is deterministic.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Store manages artifact IO rooted at an artifacts directory.
type Store struct {
	root string
}

// NewStore builds a store rooted at the given artifacts directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the artifacts directory this store writes under.
func (s *Store) Root() string {
	return s.root
}

// PlanDir returns the output directory for one plan.
func (s *Store) PlanDir(planID string) string {
	return filepath.Join(s.root, planID)
}

// Written describes one persisted artifact.
type Written struct {
	Path        string
	ContentHash string
}

// Write persists content as UTF-8 text under the plan's directory,
// creating it if absent, then hashes the bytes re-read from disk. The
// returned hash therefore reflects what is actually persisted at the
// moment of the call, so a corrupted write cannot go undetected.
func (s *Store) Write(planID, filename string, content []byte) (Written, error) {
	if planID == "" {
		return Written{}, fmt.Errorf("artifact: plan id is required")
	}
	if filename == "" || filename != filepath.Base(filename) {
		return Written{}, fmt.Errorf("artifact: invalid filename %q for plan %s", filename, planID)
	}
	dir := s.PlanDir(planID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Written{}, fmt.Errorf("artifact: ensure %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return Written{}, fmt.Errorf("artifact: write %s: %w", path, err)
	}
	persisted, err := os.ReadFile(path)
	if err != nil {
		return Written{}, fmt.Errorf("artifact: read back %s: %w", path, err)
	}
	sum := sha256.Sum256(persisted)
	return Written{Path: path, ContentHash: hex.EncodeToString(sum[:])}, nil
}

// Report is the result of an integrity sweep over a plan's outputs.
type Report struct {
	OK      bool
	Missing []string
}

// CheckAll probes for every required filename under the plan's directory.
// It is a pure read-only check: a missing file is reported, never raised.
func (s *Store) CheckAll(planID string, required []string) Report {
	report := Report{OK: true}
	for _, name := range required {
		path := filepath.Join(s.PlanDir(planID), name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			report.OK = false
			report.Missing = append(report.Missing, name)
		}
	}
	return report
}

// Plans lists plan ids that have an artifact directory, sorted.
func (s *Store) Plans() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: read %s: %w", s.root, err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
