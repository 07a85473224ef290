package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/tooling"
)

var (
	ErrDuplicateTool = errors.New("tool is already registered")
	ErrNilTool       = errors.New("tool is nil")
	ErrToolNameEmpty = errors.New("tool name is empty")
)

// Registry maps tool names to tools in registration order and executes tool
// calls with every failure contained in the result.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]tooling.Tool
	order  []string
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for contained failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		tools:  make(map[string]tooling.Tool),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ agent.ToolRegistry = (*Registry)(nil)
	_ tooling.Registrar  = (*Registry)(nil)
)

// Register adds tool under its name. A second tool with the same name is
// rejected with ErrDuplicateTool.
func (r *Registry) Register(tool tooling.Tool) error {
	name, err := toolName(tool)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q (use Replace to override)", ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Replace registers tool, overwriting any tool with the same name in place.
func (r *Registry) Replace(tool tooling.Tool) error {
	name, err := toolName(tool)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	return nil
}

// Unregister removes name if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	r.order = slices.DeleteFunc(r.order, func(candidate string) bool {
		return candidate == name
	})
}

func (r *Registry) Get(name string) (tooling.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns the registered tools in registration order.
func (r *Registry) List() []tooling.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tooling.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ListForModel returns the catalog in registration order.
func (r *Registry) ListForModel() []agent.ToolDefinition {
	tools := r.List()
	out := make([]agent.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		out = append(out, tooling.Definition(tool))
	}
	return out
}

// Execute resolves and invokes call. It never returns an error: unknown
// tools, schema mismatches, tool errors, panics, and a done context all
// produce a result with IsError set.
func (r *Registry) Execute(ctx context.Context, call agent.ToolCall) agent.ToolCallResult {
	tool, ok := r.Get(call.Name)
	if !ok {
		return r.fail(call, fmt.Sprintf("Tool '%s' not found", call.Name))
	}
	if ctx != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.fail(call, ctxErr.Error())
		}
	} else {
		ctx = context.Background()
	}

	arguments := agent.CloneArguments(call.Arguments)
	if arguments == nil {
		arguments = map[string]any{}
	}
	if err := tooling.ValidateArguments(tool.Parameters(), arguments); err != nil {
		return r.fail(call, err.Error())
	}

	value, err := invoke(ctx, tool, arguments)
	if err != nil {
		return r.fail(call, err.Error())
	}
	return agent.ToolSuccess(call, value)
}

func (r *Registry) fail(call agent.ToolCall, message string) agent.ToolCallResult {
	r.logger.Debug("tool call contained failure",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
		slog.String("error", message),
	)
	return agent.ToolFailure(call, message)
}

func invoke(ctx context.Context, tool tooling.Tool, arguments map[string]any) (value any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			value = nil
			err = fmt.Errorf("tool %q panicked: %v", tool.Name(), recovered)
		}
	}()
	return tool.Invoke(ctx, arguments)
}

func toolName(tool tooling.Tool) (string, error) {
	if tool == nil {
		return "", ErrNilTool
	}
	name := tool.Name()
	if name == "" {
		return "", ErrToolNameEmpty
	}
	return name, nil
}
