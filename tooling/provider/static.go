// Package provider implements tool providers that populate a registry before
// a task begins.
package provider

import (
	"context"
	"fmt"

	"github.com/Gurpartap/taskloop/tooling"
)

// StaticProvider registers a fixed set of in-process tools.
type StaticProvider struct {
	tools []tooling.Tool
}

// Static returns a provider for tools.
func Static(tools ...tooling.Tool) *StaticProvider {
	cloned := make([]tooling.Tool, len(tools))
	copy(cloned, tools)
	return &StaticProvider{tools: cloned}
}

var _ tooling.Provider = (*StaticProvider)(nil)

func (p *StaticProvider) LoadTools(ctx context.Context, registrar tooling.Registrar) error {
	for _, tool := range p.tools {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := registrar.Register(tool); err != nil {
			return fmt.Errorf("static provider: %w", err)
		}
	}
	return nil
}

// LoadAll runs providers in order, stopping at the first failure.
func LoadAll(ctx context.Context, registrar tooling.Registrar, providers ...tooling.Provider) error {
	for i, p := range providers {
		if err := p.LoadTools(ctx, registrar); err != nil {
			return fmt.Errorf("load tools from provider %d: %w", i, err)
		}
	}
	return nil
}
