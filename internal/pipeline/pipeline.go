// Package pipeline orchestrates one attested plan run: verify the
// attestation (hard gate), execute steps in declared order, persist each
// output before the next step starts, sweep for missing artifacts, and
// write a human-readable summary. Every lifecycle transition produces
// exactly one audit line before the run proceeds, so a partial log from a
// crashed run still reads as a timeline.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/planseal/planseal/internal/artifact"
	"github.com/planseal/planseal/internal/attest"
	"github.com/planseal/planseal/internal/audit"
	"github.com/planseal/planseal/internal/generator"
	"github.com/planseal/planseal/internal/plan"
)

// SummaryFilename is the name of the run summary artifact.
const SummaryFilename = "SUMMARY.md"

// StepError reports a failed generation step. The run aborts on the first
// one; earlier outputs stay on disk as forensic evidence.
type StepError struct {
	PlanID string
	Index  int
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline: plan %s step %d (%s): %v", e.PlanID, e.Index, e.StepID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Output records one produced artifact within a run.
type Output struct {
	Filename    string
	Path        string
	ContentHash string
}

// Run captures the observable result of one pipeline invocation.
type Run struct {
	PlanID      string
	State       State
	Digest      string
	Outputs     []Output
	Integrity   artifact.Report
	SummaryPath string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Runner wires the attestation gate, generators, artifact store and audit
// log into one sequential executor.
type Runner struct {
	store    *artifact.Store
	registry *generator.Registry
	log      audit.Log
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock injects a deterministic clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewRunner builds a pipeline runner. All three collaborators are
// required; the audit log is an interface so tests can capture lines
// in memory.
func NewRunner(store *artifact.Store, registry *generator.Registry, log audit.Log, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("pipeline: artifact store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("pipeline: generator registry is required")
	}
	if log == nil {
		return nil, fmt.Errorf("pipeline: audit log is required")
	}
	runner := &Runner{
		store:    store,
		registry: registry,
		log:      log,
		now:      time.Now,
		locks:    map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// RunFile loads, validates and executes the plan at path. Load and
// validation failures happen before the run exists, so they produce no
// audit lines; everything after START is on the record.
func (r *Runner) RunFile(path string) (*Run, error) {
	p, err := plan.Load(path)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrParse, err)
	}
	return r.Run(p)
}

// Run executes a loaded plan. Concurrent runs of the same plan id are
// serialized; different plan ids do not contend.
func (r *Runner) Run(p *plan.Plan) (*Run, error) {
	lock := r.planLock(p.PlanID)
	lock.Lock()
	defer lock.Unlock()

	run := &Run{PlanID: p.PlanID, State: StateLoaded, StartedAt: r.now()}
	r.record(audit.EventStart, p.PlanID, fmt.Sprintf("skill=%s@%s steps=%d", p.SkillID, p.SkillVersion, len(p.Steps)))

	digest, err := attest.Verify(p)
	if err != nil {
		var mismatch *attest.MismatchError
		switch {
		case errors.As(err, &mismatch):
			r.record(audit.EventAttestErr, p.PlanID, fmt.Sprintf("expected=%s stored=%s", mismatch.Expected, mismatch.Stored))
		case errors.Is(err, attest.ErrMissingAttestation):
			r.record(audit.EventAttestErr, p.PlanID, "missing attestation")
		default:
			r.record(audit.EventAttestErr, p.PlanID, err.Error())
		}
		return r.fail(run, err)
	}
	run.Digest = digest
	if err := run.transition(StateAttested); err != nil {
		return r.fail(run, err)
	}
	r.record(audit.EventAttestOK, p.PlanID, digest)

	if err := run.transition(StateRunning); err != nil {
		return r.fail(run, err)
	}
	for i, step := range p.Steps {
		output, err := r.runStep(p, i, step)
		if err != nil {
			stepErr := &StepError{PlanID: p.PlanID, Index: i, StepID: step.ID, Err: err}
			r.record(audit.EventStep, p.PlanID, fmt.Sprintf("%d %s error=%v", i, step.Filename, err))
			return r.fail(run, stepErr)
		}
		run.Outputs = append(run.Outputs, output)
		r.record(audit.EventStep, p.PlanID, fmt.Sprintf("%d %s hash=%s path=%s", i, step.Filename, output.ContentHash, output.Path))
	}

	run.Integrity = r.store.CheckAll(p.PlanID, p.Filenames())
	if err := run.transition(StateIntegrityChecked); err != nil {
		return r.fail(run, err)
	}
	if !run.Integrity.OK {
		// Advisory, not fatal: the miss is recorded here and in the summary.
		r.record(audit.EventWarn, p.PlanID, fmt.Sprintf("integrity missing=%v", run.Integrity.Missing))
	}

	summary, err := r.writeSummary(p, run)
	if err != nil {
		return r.fail(run, err)
	}
	run.SummaryPath = summary
	run.FinishedAt = r.now()
	if err := run.transition(StateCompleted); err != nil {
		return r.fail(run, err)
	}
	r.record(audit.EventEnd, p.PlanID, fmt.Sprintf("completed outputs=%d integrity_ok=%t", len(run.Outputs), run.Integrity.OK))
	return run, nil
}

func (r *Runner) runStep(p *plan.Plan, index int, step plan.Step) (Output, error) {
	gen, err := r.registry.Resolve(step.Generator, generator.Config(step.Params))
	if err != nil {
		return Output{}, err
	}
	content, err := gen.Generate(generator.Request{Plan: p, Step: step})
	if err != nil {
		return Output{}, err
	}
	written, err := r.store.Write(p.PlanID, step.Filename, content)
	if err != nil {
		return Output{}, err
	}
	return Output{Filename: step.Filename, Path: written.Path, ContentHash: written.ContentHash}, nil
}

func (r *Runner) writeSummary(p *plan.Plan, run *Run) (string, error) {
	meta := artifact.Summary{
		PlanID:       p.PlanID,
		SkillID:      p.SkillID,
		SkillVersion: p.SkillVersion,
		PlanHash:     run.Digest,
		StartedAt:    run.StartedAt.UTC(),
		FinishedAt:   r.now().UTC(),
		IntegrityOK:  run.Integrity.OK,
		Missing:      run.Integrity.Missing,
	}
	for _, out := range run.Outputs {
		meta.Outputs = append(meta.Outputs, artifact.SummaryEntry{Filename: out.Filename, ContentHash: out.ContentHash})
	}
	body := renderSummaryBody(p, run)
	content, err := artifact.WriteFrontMatter(meta, body)
	if err != nil {
		return "", err
	}
	written, err := r.store.Write(p.PlanID, SummaryFilename, content)
	if err != nil {
		return "", err
	}
	return written.Path, nil
}

func renderSummaryBody(p *plan.Plan, run *Run) []byte {
	var b []byte
	b = append(b, fmt.Sprintf("# Run Summary: %s\n\n", p.PlanID)...)
	b = append(b, fmt.Sprintf("Attested digest `%s` verified; %d step(s) executed.\n\n## Outputs\n\n", run.Digest, len(run.Outputs))...)
	for _, out := range run.Outputs {
		b = append(b, fmt.Sprintf("- %s (`%s`)\n", out.Filename, out.ContentHash)...)
	}
	if run.Integrity.OK {
		b = append(b, "\nIntegrity check: all declared outputs present.\n"...)
	} else {
		b = append(b, fmt.Sprintf("\nIntegrity check: MISSING %v\n", run.Integrity.Missing)...)
	}
	return b
}

// fail moves the run to FAILED, records the END line, and returns err.
func (r *Runner) fail(run *Run, err error) (*Run, error) {
	if !IsTerminal(run.State) {
		run.State = StateFailed
	}
	run.FinishedAt = r.now()
	r.record(audit.EventEnd, run.PlanID, fmt.Sprintf("failed: %v", err))
	return run, err
}

// record appends one audit line; audit failures must not mask the run's
// own outcome, so they are deliberately dropped here.
func (r *Runner) record(event audit.Event, planID, detail string) {
	_ = r.log.Append(audit.Entry{Event: event, PlanID: planID, Detail: detail})
}

func (r *Runner) planLock(planID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[planID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[planID] = lock
	}
	return lock
}
