package plugins

import (
	"fmt"

	"github.com/planseal/planseal/internal/config"
	"github.com/planseal/planseal/internal/generator"
)

// RegisterGeneratorPlugins discovers YAML and Go generator definitions
// under the workspace's generators directory and registers them.
func RegisterGeneratorPlugins(reg *generator.Registry, cfg *config.Config) error {
	if reg == nil || cfg == nil {
		return nil
	}
	defs, err := loadAllDefinitionFiles(cfg.GeneratorsDir())
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}
	seen := make(map[string]string)
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.ID]; ok {
			return fmt.Errorf("plugin: duplicate generator id %s (%s and %s)", def.ID, existing, file.Path)
		}
		seen[def.ID] = file.Path
		defCopy := def
		if err := reg.Register(defCopy.ID, func(generator.Config) (generator.Generator, error) {
			return newTemplateGenerator(defCopy)
		}); err != nil {
			return fmt.Errorf("plugin: register %s from %s: %w", def.ID, file.Path, err)
		}
	}
	return nil
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
