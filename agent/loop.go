package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	finalResultMaxSteps = "Max steps reached"
)

// run carries the state owned by one Run call.
type run struct {
	agent      *Agent
	task       Task
	trajectory *Trajectory
	messages   []Message
	failures   int
	logger     *slog.Logger
}

// Run executes task to a terminal status. Tool failures, the consecutive
// failure threshold, and the step budget are reported through the returned
// Result's status, never as an error. An error is returned only for an
// invalid task, a model backend failure, cancellation, or a store failure;
// in the last three cases the Result is still well formed.
func (a *Agent) Run(ctx context.Context, task Task) (Result, error) {
	if ctx == nil {
		return Result{}, ErrContextNil
	}
	if err := task.Validate(); err != nil {
		return Result{}, err
	}
	task = task.withDefaults()

	r := &run{
		agent:      a,
		task:       task,
		trajectory: NewTrajectory(task.ID),
		messages: []Message{
			{Role: RoleSystem, Content: a.systemPrompt},
			{Role: RoleUser, Content: task.Instruction},
		},
		logger: a.logger.With(slog.String("task_id", task.ID)),
	}

	r.logger.Info("task started", slog.Int("max_steps", task.MaxSteps))
	a.telemetry.Emit(EventTaskStart, map[string]any{"task_id": task.ID})

	for stepIndex := 0; stepIndex < task.MaxSteps; stepIndex++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.finish(ctx, fmt.Sprintf("cancelled: %v", ctxErr), TrajectoryStatusFailed, "",
				errors.Join(ErrRunCancelled, ctxErr))
		}

		result, done, err := r.step(ctx, stepIndex)
		if done {
			return result, err
		}
	}

	return r.finish(ctx, finalResultMaxSteps, TrajectoryStatusMaxStepsReached, "", nil)
}

// step performs one decide/act iteration. done reports that the task reached
// a terminal status inside the step.
func (r *run) step(ctx context.Context, stepIndex int) (Result, bool, error) {
	a := r.agent
	start := time.Now()
	logger := r.logger.With(slog.Int("step", stepIndex))
	logger.Debug("step started")
	a.telemetry.Emit(EventStepStart, map[string]any{"step": stepIndex, "task_id": r.task.ID})

	response, err := a.model.Generate(ctx, ModelRequest{
		Messages: CloneMessages(r.messages),
		Tools:    cloneToolDefinitions(a.tools.ListForModel()),
	})

	step := TrajectoryStep{
		StepIndex:   stepIndex,
		Timestamp:   start,
		ToolCalls:   make([]ToolCall, 0, len(response.ToolCalls)),
		ToolResults: make([]ToolCallResult, 0, len(response.ToolCalls)),
		Metadata:    map[string]any{},
	}

	if err != nil {
		step.Metadata["error"] = err.Error()
		r.appendStep(step, start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			result, finishErr := r.finish(ctx, fmt.Sprintf("cancelled: %v", ctxErr), TrajectoryStatusFailed, "",
				errors.Join(ErrRunCancelled, ctxErr))
			return result, true, finishErr
		}
		logger.Error("model generate failed", slog.Any("error", err))
		result, finishErr := r.finish(ctx, fmt.Sprintf("model error: %v", err), TrajectoryStatusFailed, "",
			fmt.Errorf("%w: task_id=%q step=%d: %w", ErrModelGenerate, r.task.ID, stepIndex, err))
		return result, true, finishErr
	}

	step.LLMResponse = response.Content
	if finish := response.FinishReason; finish != "" {
		step.Metadata["finish_reason"] = finish
	}

	if len(response.ToolCalls) > 0 {
		for _, requested := range response.ToolCalls {
			call := CloneToolCall(requested)
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d", stepIndex)
			}
			if call.Arguments == nil {
				call.Arguments = map[string]any{}
			}
			step.ToolCalls = append(step.ToolCalls, call)

			result := r.dispatch(ctx, logger, stepIndex, call)
			step.ToolResults = append(step.ToolResults, result)
			r.messages = append(r.messages, ToolResultMessage(result))

			if result.IsError {
				r.failures++
			} else {
				r.failures = 0
			}
		}

		if r.failures >= a.maxFailures {
			r.appendStep(step, start)
			logger.Warn("consecutive tool failure threshold reached", slog.Int("failures", r.failures))
			result, finishErr := r.finish(ctx,
				fmt.Sprintf("Stopped due to %d consecutive failures", r.failures),
				TrajectoryStatusFailed, "", nil)
			return result, true, finishErr
		}
	}

	if response.Content != "" {
		r.messages = append(r.messages, Message{Role: RoleAssistant, Content: response.Content})
	}

	r.appendStep(step, start)
	a.telemetry.Emit(EventStepEnd, map[string]any{"step": stepIndex, "task_id": r.task.ID})
	logger.Debug("step finished", slog.Int("tool_calls", len(step.ToolCalls)))

	if response.FinishReason == FinishReasonStop && response.Content != "" {
		result, finishErr := r.finish(ctx, response.Content, TrajectoryStatusCompleted, response.Content, nil)
		return result, true, finishErr
	}
	return Result{}, false, nil
}

func (r *run) dispatch(ctx context.Context, logger *slog.Logger, stepIndex int, call ToolCall) ToolCallResult {
	a := r.agent
	a.telemetry.Emit(EventToolCallStart, map[string]any{
		"tool":    call.Name,
		"step":    stepIndex,
		"task_id": r.task.ID,
		"call_id": call.ID,
	})

	result := a.tools.Execute(ctx, call)
	if result.ToolCallID == "" {
		result.ToolCallID = call.ID
	}
	if result.ToolName == "" {
		result.ToolName = call.Name
	}
	if result.IsError && result.Error == "" {
		result = ToolFailure(call, "")
	}

	a.telemetry.Emit(EventToolCallEnd, map[string]any{
		"tool":    call.Name,
		"success": !result.IsError,
		"step":    stepIndex,
		"task_id": r.task.ID,
		"call_id": call.ID,
	})

	if result.IsError {
		logger.Warn("tool call failed",
			slog.String("tool", call.Name),
			slog.String("call_id", call.ID),
			slog.String("error", result.Error),
		)
	} else {
		logger.Debug("tool call succeeded", slog.String("tool", call.Name), slog.String("call_id", call.ID))
	}
	return result
}

func (r *run) appendStep(step TrajectoryStep, start time.Time) {
	step.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	if err := r.trajectory.AddStep(step); err != nil {
		r.logger.Error("append step", slog.Any("error", err))
	}
}

// finish completes the trajectory, emits task_end, and persists the record
// when a store is configured. runErr is returned alongside the Result.
func (r *run) finish(
	ctx context.Context,
	finalResult string,
	status TrajectoryStatus,
	finalAnswer string,
	runErr error,
) (Result, error) {
	a := r.agent
	if err := r.trajectory.Complete(finalResult, status); err != nil {
		runErr = errors.Join(runErr, err)
	}
	a.telemetry.Emit(EventTaskEnd, map[string]any{"task_id": r.task.ID, "status": string(status)})
	r.logger.Info("task finished",
		slog.String("status", string(status)),
		slog.Int("steps", len(r.trajectory.Steps)),
	)

	result := Result{
		TaskID:      r.task.ID,
		Trajectory:  CloneTrajectory(*r.trajectory),
		FinalAnswer: finalAnswer,
		Status:      status,
	}

	if a.store != nil {
		// Saved even after cancellation.
		saveCtx := context.WithoutCancel(ctx)
		if err := a.store.Save(saveCtx, CloneTrajectory(*r.trajectory)); err != nil {
			r.logger.Error("save trajectory", slog.Any("error", err))
			runErr = errors.Join(runErr, fmt.Errorf("%w: task_id=%q: %w", ErrTrajectorySave, r.task.ID, err))
		}
	}
	return result, runErr
}
