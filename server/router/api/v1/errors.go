package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/skillgate/plugin/ai/agent"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[agent.ErrorCode]int{
	agent.ErrCodeInvalidArgument:     http.StatusBadRequest,
	agent.ErrCodeSessionNotFound:     http.StatusNotFound,
	agent.ErrCodeLLMUnavailable:      http.StatusServiceUnavailable,
	agent.ErrCodeToolExecutionFailed: http.StatusBadGateway,
	agent.ErrCodeToolBudgetExhausted: http.StatusUnprocessableEntity,
	agent.ErrCodeTimeout:             http.StatusGatewayTimeout,
	agent.ErrCodeContextCanceled:     http.StatusRequestTimeout,
	agent.ErrCodeInternal:            http.StatusInternalServerError,
}

// httpStatus maps an error to its HTTP status.
func httpStatus(code agent.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Code:    string(agent.GetCodeFromError(err, agent.ErrCodeInternal)),
		Message: agent.UserMessage(err),
	}
}

// writeError answers with the user-facing message for err. Internal details
// only reach the log.
func writeError(c echo.Context, err error) error {
	body := newErrorResponse(err)
	status := httpStatus(agent.ErrorCode(body.Code))
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"code", body.Code,
			"error", err)
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    string(agent.ErrCodeInvalidArgument),
		Message: message,
	})
}
