package menu

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// LoadFile reads a menu definition from a YAML (.yaml/.yml) or JSON file.
func LoadFile(path string) (*Menu, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("menu: read %s: %w", path, err)
	}

	var data map[string]any
	if isYAMLPath(path) {
		var v any
		if err := yaml.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("menu: parse %s: %w", path, err)
		}
		m, ok := yamlToJSONValue(v).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: top level must be a mapping", ErrValidation, path)
		}
		data = m
	} else {
		if err := json.Unmarshal(b, &data); err != nil {
			return nil, fmt.Errorf("menu: parse %s: %w", path, err)
		}
	}
	return Deserialize(data)
}

// SaveFile writes the menu to path, as YAML or JSON depending on extension.
// The written file loads back via LoadFile into an equal menu (same id).
func SaveFile(m *Menu, path string) error {
	data := m.Serialize()

	var (
		b   []byte
		err error
	)
	if isYAMLPath(path) {
		b, err = yaml.Marshal(data)
	} else {
		b, err = json.MarshalIndent(data, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("menu: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("menu: write %s: %w", path, err)
	}
	return nil
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSONValue rewrites a decoded YAML tree into the shape the JSON
// decoder would have produced, converting any-keyed maps to string keys
// so Deserialize sees one representation for both formats.
func yamlToJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = yamlToJSONValue(e)
		}
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = yamlToJSONValue(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = yamlToJSONValue(e)
		}
	}
	return v
}
