// Package otel mirrors task lifecycle telemetry as OpenTelemetry spans.
package otel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/telemetry"
)

// TracerName identifies spans produced by SpanHandler.
const TracerName = "github.com/Gurpartap/taskloop"

type openSpan struct {
	ctx  context.Context
	span trace.Span
}

// SpanHandler builds a task > step > tool_call span tree from telemetry
// events. Span timestamps come from the events, not from the handler's clock.
type SpanHandler struct {
	tracer trace.Tracer

	mu    sync.Mutex
	tasks map[string]openSpan
	steps map[string]openSpan
	tools map[string]openSpan
}

func NewSpanHandler(provider trace.TracerProvider) *SpanHandler {
	return &SpanHandler{
		tracer: provider.Tracer(TracerName),
		tasks:  make(map[string]openSpan),
		steps:  make(map[string]openSpan),
		tools:  make(map[string]openSpan),
	}
}

// Handler returns the telemetry handler feeding this span builder.
func (h *SpanHandler) Handler() telemetry.Handler {
	return h.Observe
}

// Observe records one event.
func (h *SpanHandler) Observe(event telemetry.Event) {
	taskID := fmt.Sprint(event.Data["task_id"])
	stepKey := taskID + "/" + fmt.Sprint(event.Data["step"])
	toolKey := stepKey + "/" + fmt.Sprint(event.Data["call_id"])

	h.mu.Lock()
	defer h.mu.Unlock()

	switch event.Type {
	case agent.EventTaskStart:
		ctx, span := h.tracer.Start(context.Background(), "task",
			trace.WithTimestamp(event.Timestamp),
			trace.WithAttributes(attribute.String("task.id", taskID)),
		)
		h.tasks[taskID] = openSpan{ctx: ctx, span: span}

	case agent.EventStepStart:
		parent := h.parentContext(h.tasks, taskID)
		ctx, span := h.tracer.Start(parent, "step",
			trace.WithTimestamp(event.Timestamp),
			trace.WithAttributes(
				attribute.String("task.id", taskID),
				attribute.String("step.index", fmt.Sprint(event.Data["step"])),
			),
		)
		h.steps[stepKey] = openSpan{ctx: ctx, span: span}

	case agent.EventToolCallStart:
		parent := h.parentContext(h.steps, stepKey)
		ctx, span := h.tracer.Start(parent, "tool_call "+fmt.Sprint(event.Data["tool"]),
			trace.WithTimestamp(event.Timestamp),
			trace.WithAttributes(
				attribute.String("tool.name", fmt.Sprint(event.Data["tool"])),
				attribute.String("tool.call_id", fmt.Sprint(event.Data["call_id"])),
			),
		)
		h.tools[toolKey] = openSpan{ctx: ctx, span: span}

	case agent.EventToolCallEnd:
		open, ok := h.tools[toolKey]
		if !ok {
			return
		}
		delete(h.tools, toolKey)
		success, _ := event.Data["success"].(bool)
		open.span.SetAttributes(attribute.Bool("tool.success", success))
		if !success {
			open.span.SetStatus(codes.Error, "tool call failed")
		}
		open.span.End(trace.WithTimestamp(event.Timestamp))

	case agent.EventStepEnd:
		if open, ok := h.steps[stepKey]; ok {
			delete(h.steps, stepKey)
			open.span.End(trace.WithTimestamp(event.Timestamp))
		}

	case agent.EventTaskEnd:
		status := fmt.Sprint(event.Data["status"])
		h.endChildren(taskID+"/", event)
		open, ok := h.tasks[taskID]
		if !ok {
			return
		}
		delete(h.tasks, taskID)
		open.span.SetAttributes(attribute.String("task.status", status))
		if status == string(agent.TrajectoryStatusCompleted) {
			open.span.SetStatus(codes.Ok, "")
		} else {
			open.span.SetStatus(codes.Error, status)
		}
		open.span.End(trace.WithTimestamp(event.Timestamp))
	}
}

func (h *SpanHandler) parentContext(spans map[string]openSpan, key string) context.Context {
	if open, ok := spans[key]; ok {
		return open.ctx
	}
	return context.Background()
}

// endChildren closes spans left open by a task that stopped mid-step.
func (h *SpanHandler) endChildren(prefix string, event telemetry.Event) {
	for key, open := range h.tools {
		if strings.HasPrefix(key, prefix) {
			open.span.End(trace.WithTimestamp(event.Timestamp))
			delete(h.tools, key)
		}
	}
	for key, open := range h.steps {
		if strings.HasPrefix(key, prefix) {
			open.span.End(trace.WithTimestamp(event.Timestamp))
			delete(h.steps, key)
		}
	}
}

// NewStdoutProvider returns a tracer provider that writes finished spans to w
// as JSON.
func NewStdoutProvider(w io.Writer, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}
	resource := sdkresource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource),
	), nil
}
