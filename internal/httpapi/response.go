package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gurpartap/taskloop/agent"
)

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeNotFound       = "not_found"
	errorCodeModel          = "model_error"
	errorCodeRuntime        = "runtime_error"
)

var errInvalidRequest = errors.New("invalid request")

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type toolListResponse struct {
	Tools []agent.ToolDefinition `json:"tools"`
}

type trajectoryListResponse struct {
	TaskIDs []string `json:"task_ids"`
}

func writeMappedError(c *gin.Context, err error) {
	status, code := mapRuntimeError(err)
	writeError(c, status, code, err.Error())
}

func writeInvalidRequest(c *gin.Context, message string) {
	writeMappedError(c, invalidRequestError(message))
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

func mapRuntimeError(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, agent.ErrTaskInvalid),
		errors.Is(err, agent.ErrContextNil):
		return http.StatusBadRequest, errorCodeInvalidRequest
	case errors.Is(err, agent.ErrTrajectoryNotFound):
		return http.StatusNotFound, errorCodeNotFound
	case errors.Is(err, agent.ErrModelGenerate):
		return http.StatusBadGateway, errorCodeModel
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, errorCodeRuntime
	default:
		return http.StatusInternalServerError, errorCodeRuntime
	}
}

func invalidRequestError(message string) error {
	return fmt.Errorf("%w: %s", errInvalidRequest, message)
}
