// Package plan models the declarative, attested unit of work and its
// on-disk JSON form. A plan is created by an approval process outside this
// tool, read exactly once per execution run, and never mutated by the
// pipeline; the only sanctioned write is the attestation stamp applied by
// the standalone hash utility before a plan is considered runnable.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

var (
	// ErrNotFound indicates the plan file does not exist at the given path.
	ErrNotFound = errors.New("plan: file not found")
	// ErrParse indicates the plan file exists but is not valid JSON.
	ErrParse = errors.New("plan: malformed document")
)

// Step declares one unit of content generation within a plan. Steps
// execute strictly in declaration order.
type Step struct {
	ID        string         `json:"id" yaml:"id"`
	Generator string         `json:"generator" yaml:"generator"`
	Filename  string         `json:"filename" yaml:"filename"`
	Title     string         `json:"title,omitempty" yaml:"title,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Attestation is the detached integrity claim embedded in a plan: the
// lowercase hex SHA-256 digest of the plan's hash-relevant fields.
type Attestation struct {
	PlanHash string `json:"plan_hash"`
}

// Plan is the unit of work consumed by the execution pipeline.
type Plan struct {
	PlanID       string         `json:"plan_id"`
	SkillID      string         `json:"skill_id"`
	SkillVersion string         `json:"skill_version"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	Constraints  map[string]any `json:"constraints,omitempty"`
	Steps        []Step         `json:"steps"`
	Attestation  *Attestation   `json:"attestation,omitempty"`

	// Extra holds top-level fields outside the attested schema (auxiliary
	// metadata added after approval). They are preserved on rewrite and
	// deliberately excluded from digest computation.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the top-level keys decoded into typed Plan fields.
var knownFields = map[string]bool{
	"plan_id":       true,
	"skill_id":      true,
	"skill_version": true,
	"inputs":        true,
	"constraints":   true,
	"steps":         true,
	"attestation":   true,
}

// Load reads and parses a plan file. A missing file maps to ErrNotFound
// and malformed JSON maps to ErrParse so callers can tell the two fatal
// conditions apart without string matching.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a plan document from raw JSON. Numbers are decoded with
// their literal representation preserved so digest computation is stable
// across load/stamp/verify round trips.
func Parse(data []byte) (*Plan, error) {
	var raw map[string]json.RawMessage
	if err := decodeStrict(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	p := &Plan{}
	for key, value := range raw {
		var err error
		switch key {
		case "plan_id":
			err = decodeStrict(value, &p.PlanID)
		case "skill_id":
			err = decodeStrict(value, &p.SkillID)
		case "skill_version":
			err = decodeStrict(value, &p.SkillVersion)
		case "inputs":
			err = decodeStrict(value, &p.Inputs)
		case "constraints":
			err = decodeStrict(value, &p.Constraints)
		case "steps":
			err = decodeStrict(value, &p.Steps)
		case "attestation":
			err = decodeStrict(value, &p.Attestation)
		default:
			if p.Extra == nil {
				p.Extra = map[string]json.RawMessage{}
			}
			p.Extra[key] = value
		}
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrParse, key, err)
		}
	}
	return p, nil
}

// decodeStrict unmarshals with number literals preserved as json.Number
// and rejects input that continues past the decoded value.
func decodeStrict(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("unexpected data after document")
	}
	return nil
}

// Validate ensures the plan is structurally runnable: identity fields are
// present, at least one step is declared, and output filenames are unique
// and stay inside the plan's artifact directory.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.PlanID) == "" {
		return fmt.Errorf("plan: plan_id is required")
	}
	if strings.TrimSpace(p.SkillID) == "" {
		return fmt.Errorf("plan %s: skill_id is required", p.PlanID)
	}
	if strings.TrimSpace(p.SkillVersion) == "" {
		return fmt.Errorf("plan %s: skill_version is required", p.PlanID)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %s: at least one step is required", p.PlanID)
	}
	seen := make(map[string]int, len(p.Steps))
	for i, step := range p.Steps {
		if strings.TrimSpace(step.Generator) == "" {
			return fmt.Errorf("plan %s: step %d: generator is required", p.PlanID, i)
		}
		name := strings.TrimSpace(step.Filename)
		if name == "" {
			return fmt.Errorf("plan %s: step %d: filename is required", p.PlanID, i)
		}
		if strings.Contains(name, "/") || strings.Contains(name, "\\") || name == "." || name == ".." {
			return fmt.Errorf("plan %s: step %d: filename %q must be a bare name", p.PlanID, i, name)
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("plan %s: steps %d and %d both write %s", p.PlanID, prev, i, name)
		}
		seen[name] = i
	}
	return nil
}

// Filenames returns the declared output filenames in step order.
func (p *Plan) Filenames() []string {
	names := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		names = append(names, step.Filename)
	}
	return names
}

// Encode renders the plan back to indented JSON, restoring any preserved
// extra top-level fields. Used by the attestation stamping utility.
func (p *Plan) Encode() ([]byte, error) {
	doc := map[string]any{
		"plan_id":       p.PlanID,
		"skill_id":      p.SkillID,
		"skill_version": p.SkillVersion,
		"steps":         p.Steps,
	}
	if p.Inputs != nil {
		doc["inputs"] = p.Inputs
	}
	if p.Constraints != nil {
		doc["constraints"] = p.Constraints
	}
	if p.Attestation != nil {
		doc["attestation"] = p.Attestation
	}
	for key, value := range p.Extra {
		if !knownFields[key] {
			doc[key] = value
		}
	}
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("plan: encode %s: %w", p.PlanID, err)
	}
	return append(encoded, '\n'), nil
}
