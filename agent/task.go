package agent

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultMaxSteps bounds a task whose MaxSteps is left at zero.
	DefaultMaxSteps = 10
	// DefaultMaxFailures is the consecutive tool failure threshold.
	DefaultMaxFailures = 3
	// DefaultSystemPrompt opens every conversation.
	DefaultSystemPrompt = "You are a helpful AI agent. Use the available tools to complete tasks."
)

// Task is an immutable execution request.
type Task struct {
	ID          string         `json:"id" yaml:"id" validate:"required"`
	Instruction string         `json:"instruction" yaml:"instruction"`
	Context     map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
	MaxSteps    int            `json:"max_steps" yaml:"max_steps" validate:"gte=0"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewTask builds a task with the default step budget.
func NewTask(id, instruction string) Task {
	return Task{
		ID:          id,
		Instruction: instruction,
		Context:     map[string]any{},
		MaxSteps:    DefaultMaxSteps,
		Metadata:    map[string]any{},
	}
}

var taskValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural constraints of a task.
func (t Task) Validate() error {
	err := taskValidate.Struct(t)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Join(ErrTaskInvalid, err)
	}
	details := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		details = append(details, fmt.Sprintf(
			"field=%s reason=%s value=%v",
			fieldErr.Field(),
			fieldErr.Tag(),
			fieldErr.Value(),
		))
	}
	return fmt.Errorf("%w: %s", ErrTaskInvalid, strings.Join(details, "; "))
}

func (t Task) withDefaults() Task {
	out := t
	if out.MaxSteps == 0 {
		out.MaxSteps = DefaultMaxSteps
	}
	out.Context = maps.Clone(t.Context)
	if out.Context == nil {
		out.Context = map[string]any{}
	}
	out.Metadata = maps.Clone(t.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return out
}
