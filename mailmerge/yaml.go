package mailmerge

import (
	"fmt"
	"io"

	"github.com/flosch/pongo2/v6"
	"gopkg.in/yaml.v3"
)

// MainKeyField is the reserved binding name under which each record's
// own top-level key is injected before rendering, so templates can
// reference the key they were rendered for.
const MainKeyField = "yaml_file_main_key"

// RenderFromYAML merges a template against a structured-text source: a
// YAML mapping of top-level keys to sub-mappings of template bindings.
// Top-level keys may be any scalar (commonly integers); each result key
// is the scalar's literal text, and record order follows the document.
func RenderFromYAML(template, data io.Reader) (*Result, error) {
	tpl, err := loadTemplate(template)
	if err != nil {
		return nil, err
	}

	src, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read structured source: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parse structured source: %w", err)
	}
	if len(doc.Content) == 0 {
		return &Result{vals: map[string]string{}}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse structured source: top level is not a mapping")
	}

	result := &Result{vals: make(map[string]string, len(root.Content)/2)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]

		var bindings map[string]any
		if err := valueNode.Decode(&bindings); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", keyNode.Value, err)
		}
		if bindings == nil {
			bindings = make(map[string]any, 1)
		}

		// The key keeps its scalar type for template use; the result
		// key is its literal text.
		var keyValue any
		if err := keyNode.Decode(&keyValue); err != nil {
			return nil, fmt.Errorf("decode record key %q: %w", keyNode.Value, err)
		}
		bindings[MainKeyField] = keyValue

		rendered, err := tpl.Execute(pongo2.Context(bindings))
		if err != nil {
			return nil, fmt.Errorf("render record %q: %w", keyNode.Value, err)
		}
		result.Set(keyNode.Value, rendered)
	}
	return result, nil
}
