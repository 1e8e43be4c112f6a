package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseDefinitionYAML decodes one definition document. Decoding is
// strict: keys outside the definition schema are errors, the same way
// script-declared definitions are checked field by field.
func ParseDefinitionYAML(data []byte) (GeneratorDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return GeneratorDefinition{}, fmt.Errorf("plugin: definition payload is empty")
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var def GeneratorDefinition
	if err := decoder.Decode(&def); err != nil {
		return GeneratorDefinition{}, fmt.Errorf("plugin: decode definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return GeneratorDefinition{}, err
	}
	return def.Normalized(), nil
}

// LoadDefinitionFile reads one YAML definition from disk.
func LoadDefinitionFile(path string) (DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	def, err := ParseDefinitionYAML(data)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return DefinitionFile{Definition: def, Path: filepath.Clean(path)}, nil
}

// LoadDefinitionDir loads every *.yaml and *.yml definition in dir,
// sorted by path. A missing directory means "no plugins", not an error,
// so a freshly initialized workspace starts clean.
func LoadDefinitionDir(dir string) ([]DefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	if _, err := os.Stat(trimmed); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(trimmed, pattern))
		if err != nil {
			return nil, fmt.Errorf("plugin: scan %s: %w", trimmed, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, nil
	}
	sort.Strings(paths)
	defs := make([]DefinitionFile, 0, len(paths))
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			continue
		}
		def, err := LoadDefinitionFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	return defs, nil
}
