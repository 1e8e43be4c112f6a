package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/planseal/planseal/internal/artifact"
	"github.com/planseal/planseal/internal/attest"
	"github.com/planseal/planseal/internal/audit"
	"github.com/planseal/planseal/internal/generator"
	"github.com/planseal/planseal/internal/plan"
)

var scenarioSteps = []plan.Step{
	{ID: "s1", Generator: "business-brief", Filename: "brief.md"},
	{ID: "s2", Generator: "landing-page", Filename: "landing.md"},
	{ID: "s3", Generator: "email-sequence", Filename: "emails.md"},
	{ID: "s4", Generator: "social-posts", Filename: "social.md"},
	{ID: "s5", Generator: "faq", Filename: "faq.md"},
	{ID: "s6", Generator: "press-blurb", Filename: "press.md"},
	{ID: "s7", Generator: "launch-checklist", Filename: "checklist.md"},
}

func scenarioPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p := &plan.Plan{
		PlanID:       "P1",
		SkillID:      "s",
		SkillVersion: "1",
		Inputs:       map[string]any{"business_name": "Acme", "city_region": "X"},
		Constraints:  map[string]any{},
		Steps:        append([]plan.Step(nil), scenarioSteps...),
	}
	if _, err := attest.Stamp(p); err != nil {
		t.Fatalf("stamp: %v", err)
	}
	return p
}

func newTestRunner(t *testing.T, log audit.Log) (*Runner, *artifact.Store) {
	t.Helper()
	store := artifact.NewStore(filepath.Join(t.TempDir(), "artifacts"))
	reg := generator.NewRegistry()
	generator.RegisterBuiltins(reg)
	runner, err := NewRunner(store, reg, log)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner, store
}

func eventsOf(entries []audit.Entry) []audit.Event {
	events := make([]audit.Event, len(entries))
	for i, e := range entries {
		events[i] = e.Event
	}
	return events
}

func TestRunCompletesScenarioPlan(t *testing.T) {
	log := &audit.MemoryLog{}
	runner, store := newTestRunner(t, log)
	p := scenarioPlan(t)

	run, err := runner.Run(p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.State != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", run.State)
	}
	if len(run.Outputs) != 7 {
		t.Fatalf("outputs = %d, want 7", len(run.Outputs))
	}
	if !run.Integrity.OK || len(run.Integrity.Missing) != 0 {
		t.Fatalf("integrity = %+v", run.Integrity)
	}
	for _, step := range scenarioSteps {
		path := filepath.Join(store.PlanDir("P1"), step.Filename)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("artifact %s missing: %v", step.Filename, err)
		}
	}
	if _, err := os.Stat(run.SummaryPath); err != nil {
		t.Fatalf("summary missing: %v", err)
	}

	// One audit line per lifecycle transition, in chronological order.
	events := eventsOf(log.Entries())
	want := []audit.Event{audit.EventStart, audit.EventAttestOK,
		audit.EventStep, audit.EventStep, audit.EventStep, audit.EventStep,
		audit.EventStep, audit.EventStep, audit.EventStep, audit.EventEnd}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestRunSummaryReferencesDigestAndOutputs(t *testing.T) {
	runner, _ := newTestRunner(t, &audit.MemoryLog{})
	p := scenarioPlan(t)
	run, err := runner.Run(p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	content, err := os.ReadFile(run.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	meta, _, err := artifact.ParseFrontMatter(content)
	if err != nil {
		t.Fatalf("parse summary: %v", err)
	}
	if meta.PlanHash != run.Digest {
		t.Fatalf("summary digest %s != run digest %s", meta.PlanHash, run.Digest)
	}
	if len(meta.Outputs) != 7 || !meta.IntegrityOK {
		t.Fatalf("summary meta = %+v", meta)
	}
}

func TestRunAbortsAtGateOnTamperedHash(t *testing.T) {
	log := &audit.MemoryLog{}
	runner, store := newTestRunner(t, log)
	p := scenarioPlan(t)

	// Flip one hex character of the stored digest.
	digest := []byte(p.Attestation.PlanHash)
	if digest[0] == 'a' {
		digest[0] = 'b'
	} else {
		digest[0] = 'a'
	}
	p.Attestation.PlanHash = string(digest)

	run, err := runner.Run(p)
	var mismatch *attest.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want MismatchError", err)
	}
	if run.State != StateFailed {
		t.Fatalf("state = %s, want FAILED", run.State)
	}
	if entries, readErr := os.ReadDir(store.PlanDir("P1")); readErr == nil && len(entries) > 0 {
		t.Fatalf("artifacts written despite gate failure: %d", len(entries))
	}

	failLines := 0
	for _, entry := range log.Entries() {
		if entry.Event == audit.EventAttestErr {
			failLines++
			if entry.Detail == "" {
				t.Fatal("ATTEST fail line carries no digests")
			}
		}
	}
	if failLines != 1 {
		t.Fatalf("ATTEST fail lines = %d, want 1", failLines)
	}
}

func TestRunFailsOnMissingAttestation(t *testing.T) {
	runner, _ := newTestRunner(t, &audit.MemoryLog{})
	p := scenarioPlan(t)
	p.Attestation = nil
	run, err := runner.Run(p)
	if !errors.Is(err, attest.ErrMissingAttestation) {
		t.Fatalf("err = %v, want ErrMissingAttestation", err)
	}
	if run.State != StateFailed {
		t.Fatalf("state = %s", run.State)
	}
}

func TestRunIsIdempotentAcrossReruns(t *testing.T) {
	log := &audit.MemoryLog{}
	runner, _ := newTestRunner(t, log)

	first, err := runner.Run(scenarioPlan(t))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	countAfterFirst := len(log.Entries())
	second, err := runner.Run(scenarioPlan(t))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(first.Outputs) != len(second.Outputs) {
		t.Fatalf("output counts differ: %d vs %d", len(first.Outputs), len(second.Outputs))
	}
	for i := range first.Outputs {
		if first.Outputs[i].ContentHash != second.Outputs[i].ContentHash {
			t.Fatalf("output %s hash changed across reruns", first.Outputs[i].Filename)
		}
	}
	// Two independent, non-overlapping line sets in the shared log.
	if len(log.Entries()) != 2*countAfterFirst {
		t.Fatalf("log entries = %d, want %d", len(log.Entries()), 2*countAfterFirst)
	}
}

func TestRunStepFailureIsFatalAndKeepsPartialOutputs(t *testing.T) {
	log := &audit.MemoryLog{}
	store := artifact.NewStore(filepath.Join(t.TempDir(), "artifacts"))
	reg := generator.NewRegistry()
	generator.RegisterBuiltins(reg)
	reg.MustRegister("boom", func(generator.Config) (generator.Generator, error) {
		return failingGenerator{}, nil
	})
	runner, err := NewRunner(store, reg, log)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	p := &plan.Plan{
		PlanID:       "P2",
		SkillID:      "s",
		SkillVersion: "1",
		Steps: []plan.Step{
			{ID: "ok", Generator: "faq", Filename: "faq.md"},
			{ID: "bad", Generator: "boom", Filename: "never.md"},
			{ID: "unreached", Generator: "faq", Filename: "late.md"},
		},
	}
	if _, err := attest.Stamp(p); err != nil {
		t.Fatalf("stamp: %v", err)
	}

	run, err := runner.Run(p)
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("err = %v, want StepError", err)
	}
	if stepErr.Index != 1 || stepErr.StepID != "bad" {
		t.Fatalf("step error = %+v", stepErr)
	}
	if run.State != StateFailed {
		t.Fatalf("state = %s", run.State)
	}
	// The first step's artifact stays on disk as forensic evidence.
	if _, err := os.Stat(filepath.Join(store.PlanDir("P2"), "faq.md")); err != nil {
		t.Fatalf("first artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.PlanDir("P2"), "late.md")); err == nil {
		t.Fatal("step after the failure was executed")
	}
}

func TestRunUnknownGeneratorFailsStep(t *testing.T) {
	runner, _ := newTestRunner(t, &audit.MemoryLog{})
	p := &plan.Plan{
		PlanID:       "P3",
		SkillID:      "s",
		SkillVersion: "1",
		Steps:        []plan.Step{{ID: "s1", Generator: "does-not-exist", Filename: "a.md"}},
	}
	if _, err := attest.Stamp(p); err != nil {
		t.Fatalf("stamp: %v", err)
	}
	var stepErr *StepError
	if _, err := runner.Run(p); !errors.As(err, &stepErr) {
		t.Fatalf("err = %v, want StepError", err)
	}
}

func TestRunFileErrorsProduceNoAuditLines(t *testing.T) {
	log := &audit.MemoryLog{}
	runner, _ := newTestRunner(t, log)

	if _, err := runner.RunFile(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, plan.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := runner.RunFile(path); !errors.Is(err, plan.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}

	if len(log.Entries()) != 0 {
		t.Fatalf("load failures logged %d lines, want 0", len(log.Entries()))
	}
}

func TestRunFileExecutesStampedPlan(t *testing.T) {
	runner, _ := newTestRunner(t, &audit.MemoryLog{})
	p := scenarioPlan(t)
	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	run, err := runner.RunFile(path)
	if err != nil {
		t.Fatalf("run file: %v", err)
	}
	if run.State != StateCompleted {
		t.Fatalf("state = %s", run.State)
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{StateLoaded, StateAttested, true},
		{StateAttested, StateRunning, true},
		{StateRunning, StateIntegrityChecked, true},
		{StateIntegrityChecked, StateCompleted, true},
		{StateLoaded, StateFailed, true},
		{StateAttested, StateFailed, true},
		{StateRunning, StateFailed, true},
		{StateLoaded, StateRunning, false},
		{StateCompleted, StateFailed, false},
		{StateFailed, StateAttested, false},
	}
	for _, tt := range tests {
		if got := isAllowedTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("transition %s -> %s = %t, want %t", tt.from, tt.to, got, tt.allowed)
		}
	}
}

type failingGenerator struct{}

func (failingGenerator) Info() generator.Info {
	return generator.Info{ID: "boom", Version: "1.0.0"}
}

func (failingGenerator) Generate(generator.Request) ([]byte, error) {
	return nil, fmt.Errorf("synthetic generation failure")
}
