package mod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

type applicationAlias Application
type packageAlias Package

type applicationFile struct {
	Type string `json:"type"`
	*applicationAlias
}

type packageFile struct {
	Type string `json:"type"`
	*packageAlias
}

// Format formats a Project as elm.json content, indented with four spaces like the elm tool.
func Format(p *Project) ([]byte, error) {
	var v interface{}
	switch {
	case p.Application != nil:
		v = applicationFile{Type: TypeApplication, applicationAlias: (*applicationAlias)(p.Application)}
	case p.Package != nil:
		v = packageFile{Type: TypePackage, packageAlias: (*packageAlias)(p.Package)}
	default:
		return nil, fmt.Errorf("empty project")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Constraints contain "<", which must stay readable.
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes a Project to the given path.
func WriteFile(path string, p *Project) error {
	content, err := Format(p)
	if err != nil {
		return fmt.Errorf("failed to format elm.json: %w", err)
	}
	return os.WriteFile(path, content, 0644)
}
