// Package tooling defines the tool capability consumed by the registry and
// the external-tool-provider boundary.
package tooling

import (
	"context"

	"github.com/Gurpartap/taskloop/agent"
)

// Tool is a named, schema-described unit of work. Invoke receives arguments
// already validated against Parameters and returns either a value or a
// domain error whose message is shown to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Invoke(ctx context.Context, arguments map[string]any) (any, error)
}

// InvokeFunc is the invocation half of a Tool.
type InvokeFunc func(ctx context.Context, arguments map[string]any) (any, error)

// Func adapts a plain function into a Tool.
type Func struct {
	name        string
	description string
	parameters  map[string]any
	invoke      InvokeFunc
}

func NewFunc(name, description string, parameters map[string]any, invoke InvokeFunc) *Func {
	return &Func{
		name:        name,
		description: description,
		parameters:  agent.CloneArguments(parameters),
		invoke:      invoke,
	}
}

var _ Tool = (*Func)(nil)

func (f *Func) Name() string        { return f.name }
func (f *Func) Description() string { return f.description }

func (f *Func) Parameters() map[string]any {
	return agent.CloneArguments(f.parameters)
}

func (f *Func) Invoke(ctx context.Context, arguments map[string]any) (any, error) {
	return f.invoke(ctx, arguments)
}

// Definition renders a tool's catalog entry.
func Definition(tool Tool) agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  tool.Parameters(),
	}
}

// Registrar is the registration surface handed to providers.
type Registrar interface {
	Register(tool Tool) error
}

// Provider loads externally discovered tools before a task begins.
type Provider interface {
	LoadTools(ctx context.Context, registrar Registrar) error
}

// ProviderFunc adapts a function into a Provider.
type ProviderFunc func(ctx context.Context, registrar Registrar) error

func (f ProviderFunc) LoadTools(ctx context.Context, registrar Registrar) error {
	return f(ctx, registrar)
}
