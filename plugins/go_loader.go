package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// goDefinitionFuncName is the entry point a Go definition script must
// declare: func GeneratorDefinitions() ([]map[string]any, error).
const goDefinitionFuncName = "GeneratorDefinitions"

// scriptPackages is the slice of the interpreter's stdlib a definition
// script may import. Generator output must be reproducible run over run,
// so the clock, the filesystem, the network and randomness sources stay
// out of the table.
var scriptPackages = map[string]bool{
	"errors/errors": true,
	"fmt/fmt":       true,
	// math/bits must ride along: yaegi's Use compiles source fixups for
	// fmt/fmt that import it, and Use fails without its symbol set.
	"math/bits/bits":  true,
	"sort/sort":       true,
	"strconv/strconv": true,
	"strings/strings": true,
	"unicode/unicode": true,
}

func scriptSymbols() interp.Exports {
	exports := make(interp.Exports, len(scriptPackages))
	for key, symbols := range stdlib.Symbols {
		if scriptPackages[key] {
			exports[key] = symbols
		}
	}
	return exports
}

// LoadGoDefinitionDir interprets every .go file in dir and collects the
// generator definitions returned by its GeneratorDefinitions function.
// Missing directories are treated as "no plugins".
func LoadGoDefinitionDir(dir string) ([]DefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var files []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		path := filepath.Join(trimmed, entry.Name())
		defs, err := evalDefinitionScript(path)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
		for idx, def := range defs {
			files = append(files, DefinitionFile{Definition: def, Path: fmt.Sprintf("%s#%d", path, idx+1)})
		}
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func evalDefinitionScript(path string) ([]GeneratorDefinition, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(scriptSymbols()); err != nil {
		return nil, fmt.Errorf("prepare interpreter: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("interpret: %w", err)
	}
	fn, err := i.Eval(goDefinitionFuncName)
	if err != nil {
		return nil, fmt.Errorf("%s() ([]map[string]any, error) is required: %w", goDefinitionFuncName, err)
	}
	raws, err := callDefinitionFunc(fn)
	if err != nil {
		return nil, err
	}
	defs := make([]GeneratorDefinition, 0, len(raws))
	for idx, raw := range raws {
		def, err := definitionFromScript(raw)
		if err != nil {
			return nil, fmt.Errorf("definition[%d]: %w", idx+1, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// definitionFromScript maps one returned value onto the definition
// schema, field by field. Keys outside the schema are errors rather than
// silently dropped, so a typo in a script surfaces at load time instead
// of as a defaulted generator.
func definitionFromScript(raw map[string]any) (GeneratorDefinition, error) {
	var def GeneratorDefinition
	for key, value := range raw {
		text, ok := value.(string)
		if !ok {
			return GeneratorDefinition{}, fmt.Errorf("field %s must be a string, got %T", key, value)
		}
		switch key {
		case "id":
			def.ID = text
		case "name":
			def.Name = text
		case "description":
			def.Description = text
		case "version":
			def.Version = text
		case "template":
			def.Template = text
		default:
			return GeneratorDefinition{}, fmt.Errorf("unknown field %q", key)
		}
	}
	if err := def.Validate(); err != nil {
		return GeneratorDefinition{}, err
	}
	return def.Normalized(), nil
}

func callDefinitionFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDefinitionFuncName)
	}
	t := value.Type()
	if t.NumIn() != 0 || t.NumOut() < 1 || t.NumOut() > 2 {
		return nil, fmt.Errorf("%s must be func() ([]map[string]any, error)", goDefinitionFuncName)
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if t.NumOut() == 2 && !t.Out(1).Implements(errType) {
		return nil, fmt.Errorf("%s second return value must be an error", goDefinitionFuncName)
	}
	results := value.Call(nil)
	if len(results) == 2 && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	head := results[0]
	if defs, ok := head.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if head.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goDefinitionFuncName)
	}
	defs := make([]map[string]any, head.Len())
	for i := range defs {
		m, ok := head.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s result %d is not map[string]any", goDefinitionFuncName, i+1)
		}
		defs[i] = m
	}
	return defs, nil
}
