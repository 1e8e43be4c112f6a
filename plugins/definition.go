// Package plugins loads generator definitions from a workspace's
// generators directory. Two on-disk forms are supported: YAML files
// declaring a template-backed generator, and Go files interpreted with
// yaegi that return the same definition schema programmatically. Both
// resolve to template generators registered alongside the builtins.
package plugins

import (
	"fmt"
	"strings"
	"text/template"
)

// GeneratorDefinition describes a template-backed plugin generator.
//
// The struct mirrors the on-disk schema under .planseal/generators/ and is
// intentionally narrow so definitions can be validated before they are
// wired into the pipeline runtime.
type GeneratorDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
	Template    string `json:"template" yaml:"template"`
}

// Normalized returns a trimmed copy of the definition. The template body
// is kept verbatim apart from surrounding whitespace so rendered output
// stays deterministic.
func (def GeneratorDefinition) Normalized() GeneratorDefinition {
	return GeneratorDefinition{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Version:     strings.TrimSpace(def.Version),
		Template:    strings.TrimSpace(def.Template),
	}
}

// Validate ensures the definition is well-formed and its template parses.
func (def GeneratorDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("plugin %s: version is required", normalized.ID)
	}
	if normalized.Template == "" {
		return fmt.Errorf("plugin %s: template is required", normalized.ID)
	}
	if _, err := template.New(normalized.ID).Option("missingkey=zero").Parse(normalized.Template); err != nil {
		return fmt.Errorf("plugin %s: parse template: %w", normalized.ID, err)
	}
	return nil
}

// DefinitionFile pairs a parsed definition with its on-disk source.
type DefinitionFile struct {
	Definition GeneratorDefinition
	Path       string
}
