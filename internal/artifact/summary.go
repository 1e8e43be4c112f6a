package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

// SummaryEntry records one produced output inside a run summary.
type SummaryEntry struct {
	Filename    string `yaml:"filename"`
	ContentHash string `yaml:"content_hash"`
}

// Summary is the metadata block of the human-readable run summary
// artifact. It references the attested digest and everything the run
// produced, so the summary alone is enough to audit a completed run.
type Summary struct {
	PlanID       string         `yaml:"plan_id"`
	SkillID      string         `yaml:"skill_id"`
	SkillVersion string         `yaml:"skill_version"`
	PlanHash     string         `yaml:"plan_hash"`
	StartedAt    time.Time      `yaml:"started_at"`
	FinishedAt   time.Time      `yaml:"finished_at"`
	Outputs      []SummaryEntry `yaml:"outputs"`
	IntegrityOK  bool           `yaml:"integrity_ok"`
	Missing      []string       `yaml:"missing,omitempty"`
}

type summaryEnvelope struct {
	Planseal Summary `yaml:"planseal"`
}

// WriteFrontMatter renders the summary metadata and body with YAML fences.
func WriteFrontMatter(meta Summary, body []byte) ([]byte, error) {
	if meta.PlanID == "" {
		return nil, fmt.Errorf("artifact: summary missing plan id")
	}
	data, err := yaml.Marshal(summaryEnvelope{Planseal: meta})
	if err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// ParseFrontMatter extracts the summary metadata and body from a document
// that starts with `---` YAML fences.
func ParseFrontMatter(content []byte) (Summary, []byte, error) {
	if len(content) == 0 {
		return Summary{}, nil, ErrMissingFrontMatter
	}
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Summary{}, nil, ErrMissingFrontMatter
	}
	rest := normalized[4:]
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Summary{}, nil, ErrMalformedFrontMatter
	}
	var envelope summaryEnvelope
	if err := yaml.Unmarshal(parts[0], &envelope); err != nil {
		return Summary{}, nil, fmt.Errorf("artifact: parse frontmatter: %w", err)
	}
	if envelope.Planseal.PlanID == "" {
		return Summary{}, nil, ErrMalformedFrontMatter
	}
	body := bytes.TrimPrefix(parts[1], []byte("\n"))
	return envelope.Planseal, body, nil
}
