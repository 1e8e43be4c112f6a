package artifact

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleSummary() Summary {
	return Summary{
		PlanID:       "P1",
		SkillID:      "local-presence",
		SkillVersion: "1",
		PlanHash:     "deadbeef",
		StartedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2024, 5, 1, 12, 0, 3, 0, time.UTC),
		Outputs: []SummaryEntry{
			{Filename: "brief.md", ContentHash: "aa"},
			{Filename: "faq.md", ContentHash: "bb"},
		},
		IntegrityOK: true,
	}
}

func TestFrontMatterRoundTrip(t *testing.T) {
	body := []byte("# Run Summary\n\nAll good.\n")
	content, err := WriteFrontMatter(sampleSummary(), body)
	if err != nil {
		t.Fatalf("write frontmatter: %v", err)
	}
	if !strings.HasPrefix(string(content), "---\n") {
		t.Fatalf("content does not start with fence: %q", content[:8])
	}
	meta, gotBody, err := ParseFrontMatter(content)
	if err != nil {
		t.Fatalf("parse frontmatter: %v", err)
	}
	if meta.PlanID != "P1" || meta.PlanHash != "deadbeef" || !meta.IntegrityOK {
		t.Fatalf("meta = %+v", meta)
	}
	if len(meta.Outputs) != 2 || meta.Outputs[1].Filename != "faq.md" {
		t.Fatalf("outputs = %+v", meta.Outputs)
	}
	if string(gotBody) != string(body) {
		t.Fatalf("body = %q, want %q", gotBody, body)
	}
}

func TestWriteFrontMatterRequiresPlanID(t *testing.T) {
	meta := sampleSummary()
	meta.PlanID = ""
	if _, err := WriteFrontMatter(meta, nil); err == nil {
		t.Fatal("expected error for missing plan id")
	}
}

func TestParseFrontMatterErrors(t *testing.T) {
	if _, _, err := ParseFrontMatter(nil); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("err = %v, want ErrMissingFrontMatter", err)
	}
	if _, _, err := ParseFrontMatter([]byte("# no fences\n")); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("err = %v, want ErrMissingFrontMatter", err)
	}
	if _, _, err := ParseFrontMatter([]byte("---\nplanseal:\n  plan_id: P1\n")); !errors.Is(err, ErrMalformedFrontMatter) {
		t.Fatalf("err = %v, want ErrMalformedFrontMatter for unterminated fence", err)
	}
}
