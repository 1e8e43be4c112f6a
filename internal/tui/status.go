// Package tui renders a read-only status view over a planseal workspace:
// every executed plan, its integrity state, and the tail of the audit log.
// It follows The Elm Architecture via bubbletea: model, update, view.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/planseal/planseal/internal/artifact"
	"github.com/planseal/planseal/internal/audit"
	"github.com/planseal/planseal/internal/config"
	"github.com/planseal/planseal/internal/pipeline"
)

const auditTailLines = 12

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	detailStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// planItem is one executed plan in the picker list.
type planItem struct {
	id          string
	summary     *artifact.Summary
	summaryErr  error
	integrityOK bool
	missing     []string
}

func (i planItem) FilterValue() string { return i.id }

func (i planItem) Title() string { return i.id }

func (i planItem) Description() string {
	if i.summary == nil {
		return "no run summary"
	}
	if i.integrityOK {
		return fmt.Sprintf("ok | %d outputs | %s", len(i.summary.Outputs), shortDigest(i.summary.PlanHash))
	}
	return fmt.Sprintf("missing %d | %s", len(i.missing), shortDigest(i.summary.PlanHash))
}

// App is the status application model.
type App struct {
	cfg      *config.Config
	store    *artifact.Store
	auditLog *audit.FileLog

	list     list.Model
	selected *planItem
	width    int
	height   int
	err      error
}

// NewApp builds the status view for a project directory.
func NewApp(projectDir string) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	store := artifact.NewStore(cfg.ArtifactsDir())
	auditLog, err := audit.NewFileLog(cfg.AuditLogPath())
	if err != nil {
		return nil, err
	}
	items, err := loadPlanItems(store)
	if err != nil {
		return nil, err
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Executed Plans"
	l.SetShowStatusBar(false)
	return &App{cfg: cfg, store: store, auditLog: auditLog, list: l}, nil
}

func loadPlanItems(store *artifact.Store) ([]list.Item, error) {
	ids, err := store.Plans()
	if err != nil {
		return nil, err
	}
	items := make([]list.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, loadPlanItem(store, id))
	}
	return items, nil
}

func loadPlanItem(store *artifact.Store, id string) planItem {
	item := planItem{id: id}
	content, err := os.ReadFile(filepath.Join(store.PlanDir(id), pipeline.SummaryFilename))
	if err != nil {
		item.summaryErr = err
		return item
	}
	summary, _, err := artifact.ParseFrontMatter(content)
	if err != nil {
		item.summaryErr = err
		return item
	}
	item.summary = &summary
	required := make([]string, 0, len(summary.Outputs))
	for _, out := range summary.Outputs {
		required = append(required, out.Filename)
	}
	report := store.CheckAll(id, required)
	item.integrityOK = report.OK
	item.missing = report.Missing
	return item
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.list.SetSize(msg.Width, msg.Height-2)
		return a, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if a.selected != nil && msg.String() == "q" {
				a.selected = nil
				return a, nil
			}
			return a, tea.Quit
		case "esc":
			a.selected = nil
			return a, nil
		case "enter":
			if a.selected == nil {
				if item, ok := a.list.SelectedItem().(planItem); ok {
					a.selected = &item
				}
				return a, nil
			}
		}
	}
	var cmd tea.Cmd
	a.list, cmd = a.list.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.err != nil {
		return badStyle.Render(fmt.Sprintf("error: %v", a.err))
	}
	if a.selected != nil {
		return a.detailView(*a.selected)
	}
	return a.list.View()
}

func (a *App) detailView(item planItem) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Plan "+item.id) + "\n\n")
	if item.summary == nil {
		b.WriteString(badStyle.Render("no readable run summary") + "\n")
		if item.summaryErr != nil {
			b.WriteString(dimStyle.Render(item.summaryErr.Error()) + "\n")
		}
	} else {
		s := item.summary
		b.WriteString(detailStyle.Render(fmt.Sprintf("skill      %s@%s", s.SkillID, s.SkillVersion)) + "\n")
		b.WriteString(detailStyle.Render(fmt.Sprintf("plan hash  %s", s.PlanHash)) + "\n")
		b.WriteString(detailStyle.Render(fmt.Sprintf("finished   %s", s.FinishedAt.Format("2006-01-02 15:04:05 MST"))) + "\n\n")
		b.WriteString(titleStyle.Render("Outputs") + "\n")
		for _, out := range s.Outputs {
			marker := okStyle.Render("present")
			for _, miss := range item.missing {
				if miss == out.Filename {
					marker = badStyle.Render("MISSING")
				}
			}
			b.WriteString(detailStyle.Render(fmt.Sprintf("%-28s %s  %s", out.Filename, shortDigest(out.ContentHash), marker)) + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(titleStyle.Render("Audit Log") + "\n")
	lines, total := a.auditLog.Tail(200)
	shown := 0
	for _, line := range lines {
		parts := strings.Split(line, " | ")
		if len(parts) < 3 || parts[2] != item.id {
			continue
		}
		b.WriteString(detailStyle.Render(line) + "\n")
		shown++
		if shown >= auditTailLines {
			break
		}
	}
	if shown == 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  no audit lines for this plan (%d total)", total)) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("esc/q back  ·  ctrl+c quit"))
	return b.String()
}

func shortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
