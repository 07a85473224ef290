package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type taskRunRequest struct {
	ID          string         `json:"id"`
	Instruction string         `json:"instruction"`
	MaxSteps    int            `json:"max_steps" binding:"gte=0"`
	Context     map[string]any `json:"context"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *handlers) handleToolList(c *gin.Context) {
	c.JSON(http.StatusOK, toolListResponse{Tools: h.runtime.Tools.ListForModel()})
}

func (h *handlers) handleTaskRun(c *gin.Context) {
	var request taskRunRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		if errors.Is(err, io.EOF) {
			writeInvalidRequest(c, "request body is required")
			return
		}
		writeInvalidRequest(c, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	task := h.runtime.NewTask(request.ID, request.Instruction, request.MaxSteps)
	for key, value := range request.Context {
		task.Context[key] = value
	}
	for key, value := range request.Metadata {
		task.Metadata[key] = value
	}

	result, err := h.runtime.Agent.Run(c.Request.Context(), task)
	if err != nil {
		h.runtime.Logger.Warn("task run failed",
			slog.String("task_id", task.ID),
			slog.Any("error", err),
		)
		writeMappedError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) handleTrajectoryList(c *gin.Context) {
	ids, err := h.runtime.Store.List(c.Request.Context())
	if err != nil {
		writeMappedError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, trajectoryListResponse{TaskIDs: ids})
}

func (h *handlers) handleTrajectoryQuery(c *gin.Context) {
	trajectory, err := h.runtime.Store.Load(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeMappedError(c, err)
		return
	}
	c.JSON(http.StatusOK, trajectory)
}
