package plugins

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/planseal/planseal/internal/generator"
)

// templateGenerator renders a parsed text/template against the plan and
// step, producing deterministic content for a fixed plan.
type templateGenerator struct {
	def  GeneratorDefinition
	tmpl *template.Template
}

// templateContext is the data shape exposed to plugin templates.
type templateContext struct {
	PlanID       string
	SkillID      string
	SkillVersion string
	StepID       string
	Title        string
	Filename     string
	Inputs       map[string]any
	Constraints  map[string]any
	Params       map[string]any
}

func newTemplateGenerator(def GeneratorDefinition) (generator.Generator, error) {
	normalized := def.Normalized()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := template.New(normalized.ID).Option("missingkey=zero").Parse(normalized.Template)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: parse template: %w", normalized.ID, err)
	}
	return &templateGenerator{def: normalized, tmpl: tmpl}, nil
}

func (g *templateGenerator) Info() generator.Info {
	return generator.Info{
		ID:          g.def.ID,
		Name:        g.def.Name,
		Description: g.def.Description,
		Version:     g.def.Version,
	}
}

func (g *templateGenerator) Generate(req generator.Request) ([]byte, error) {
	ctx := templateContext{
		StepID:   req.Step.ID,
		Title:    req.Step.Title,
		Filename: req.Step.Filename,
		Params:   req.Step.Params,
	}
	if req.Plan != nil {
		ctx.PlanID = req.Plan.PlanID
		ctx.SkillID = req.Plan.SkillID
		ctx.SkillVersion = req.Plan.SkillVersion
		ctx.Inputs = req.Plan.Inputs
		ctx.Constraints = req.Plan.Constraints
	}
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("plugin %s: render: %w", g.def.ID, err)
	}
	return buf.Bytes(), nil
}
