package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/Gurpartap/taskloop/tooling"
)

// ErrManifestInvalid is returned for a manifest that cannot be turned into tools.
var ErrManifestInvalid = errors.New("tool manifest is invalid")

// ManifestTool declares one tool in a YAML manifest. Response and Error are
// text/template sources rendered with the call arguments; a non-empty Error
// rendering makes the call fail with that message.
type ManifestTool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
	Response    string         `yaml:"response"`
	Error       string         `yaml:"error"`
}

// ManifestFile is the document layout of a tool manifest.
type ManifestFile struct {
	Tools []ManifestTool `yaml:"tools"`
}

// ManifestProvider registers tools declared in a YAML manifest.
type ManifestProvider struct {
	path string
}

// Manifest returns a provider reading the manifest at path on each load.
func Manifest(path string) *ManifestProvider {
	return &ManifestProvider{path: path}
}

var _ tooling.Provider = (*ManifestProvider)(nil)

func (p *ManifestProvider) LoadTools(ctx context.Context, registrar tooling.Registrar) error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read tool manifest %s: %w", p.path, err)
	}
	tools, err := ParseManifest(raw)
	if err != nil {
		return fmt.Errorf("parse tool manifest %s: %w", p.path, err)
	}
	return Static(tools...).LoadTools(ctx, registrar)
}

// ParseManifest decodes a manifest document into tools.
func ParseManifest(raw []byte) ([]tooling.Tool, error) {
	var file ManifestFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrManifestInvalid, err)
	}

	seen := make(map[string]struct{}, len(file.Tools))
	tools := make([]tooling.Tool, 0, len(file.Tools))
	for i, decl := range file.Tools {
		if decl.Name == "" {
			return nil, fmt.Errorf("%w: field=tools[%d].name reason=empty", ErrManifestInvalid, i)
		}
		if _, dup := seen[decl.Name]; dup {
			return nil, fmt.Errorf("%w: field=tools[%d].name reason=duplicate value=%q", ErrManifestInvalid, i, decl.Name)
		}
		seen[decl.Name] = struct{}{}

		tool, err := manifestTool(decl)
		if err != nil {
			return nil, fmt.Errorf("%w: field=tools[%d] name=%q: %w", ErrManifestInvalid, i, decl.Name, err)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func manifestTool(decl ManifestTool) (tooling.Tool, error) {
	response, err := template.New(decl.Name).Option("missingkey=error").Parse(decl.Response)
	if err != nil {
		return nil, fmt.Errorf("parse response template: %w", err)
	}
	var failure *template.Template
	if decl.Error != "" {
		failure, err = template.New(decl.Name + ".error").Option("missingkey=error").Parse(decl.Error)
		if err != nil {
			return nil, fmt.Errorf("parse error template: %w", err)
		}
	}

	parameters := decl.Parameters
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return tooling.NewFunc(decl.Name, decl.Description, parameters,
		func(_ context.Context, arguments map[string]any) (any, error) {
			if failure != nil {
				message, err := render(failure, arguments)
				if err != nil {
					return nil, err
				}
				if message != "" {
					return nil, errors.New(message)
				}
			}
			return render(response, arguments)
		},
	), nil
}

func render(tmpl *template.Template, arguments map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, arguments); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
