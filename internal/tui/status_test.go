package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/planseal/planseal/internal/artifact"
	"github.com/planseal/planseal/internal/audit"
	"github.com/planseal/planseal/internal/config"
	"github.com/planseal/planseal/internal/pipeline"
)

func seededApp(t *testing.T) *App {
	t.Helper()
	project := t.TempDir()
	if err := config.InitWorkspace(project); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	cfg, err := config.NewConfig(project)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	store := artifact.NewStore(cfg.ArtifactsDir())
	if _, err := store.Write("P1", "brief.md", []byte("# Brief\n")); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	summary := artifact.Summary{
		PlanID:       "P1",
		SkillID:      "s",
		SkillVersion: "1",
		PlanHash:     strings.Repeat("ab", 32),
		StartedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2024, 5, 1, 12, 0, 2, 0, time.UTC),
		Outputs: []artifact.SummaryEntry{
			{Filename: "brief.md", ContentHash: "aa"},
			{Filename: "missing.md", ContentHash: "bb"},
		},
		IntegrityOK: false,
		Missing:     []string{"missing.md"},
	}
	content, err := artifact.WriteFrontMatter(summary, []byte("body\n"))
	if err != nil {
		t.Fatalf("render summary: %v", err)
	}
	if _, err := store.Write("P1", pipeline.SummaryFilename, content); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	log, err := audit.NewFileLog(cfg.AuditLogPath())
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	if err := log.Append(audit.Entry{Event: audit.EventStart, PlanID: "P1", Detail: "skill=s@1 steps=2"}); err != nil {
		t.Fatalf("append audit: %v", err)
	}
	if err := log.Append(audit.Entry{Event: audit.EventStart, PlanID: "P12", Detail: "other plan"}); err != nil {
		t.Fatalf("append audit: %v", err)
	}
	app, err := NewApp(project)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

func TestNewAppListsPlans(t *testing.T) {
	app := seededApp(t)
	items := app.list.Items()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item, ok := items[0].(planItem)
	if !ok || item.id != "P1" {
		t.Fatalf("item = %+v", items[0])
	}
	if item.integrityOK {
		t.Fatal("integrity should be reported as failed")
	}
	if !strings.Contains(item.Description(), "missing 1") {
		t.Fatalf("description = %q", item.Description())
	}
}

func TestDetailViewShowsOutputsAndFiltersAuditLines(t *testing.T) {
	app := seededApp(t)
	item := app.list.Items()[0].(planItem)
	view := app.detailView(item)
	if !strings.Contains(view, "brief.md") || !strings.Contains(view, "MISSING") {
		t.Fatalf("view missing output rows:\n%s", view)
	}
	if !strings.Contains(view, "skill=s@1 steps=2") {
		t.Fatalf("view missing P1 audit line:\n%s", view)
	}
	// The P12 line must not leak into P1's detail through substring matching.
	if strings.Contains(view, "other plan") {
		t.Fatalf("view leaked audit line from another plan:\n%s", view)
	}
}
