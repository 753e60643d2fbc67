package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/agent"
)

// ChatRequest is the body of a chat call. An empty session ID starts a new
// conversation.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Format    string `json:"format"`
}

// ChatResponse is an agent answer, with the content rendered when HTML was
// requested.
type ChatResponse struct {
	*agent.Response
	Format     string `json:"format"`
	HTML       string `json:"html,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// SessionResponse is a session with its transcript.
type SessionResponse struct {
	agent.SessionInfo
	Messages []ai.Message `json:"messages"`
}

// bindChat reads the request and resolves its answer format. The format may
// also be given as a query parameter.
func bindChat(c echo.Context) (*ChatRequest, string, error) {
	req := &ChatRequest{}
	if err := c.Bind(req); err != nil {
		return nil, "", errors.New("invalid request body")
	}
	if f := c.QueryParam("format"); f != "" && req.Format == "" {
		req.Format = f
	}
	format, err := parseFormat(req.Format)
	if err != nil {
		return nil, "", err
	}
	return req, format, nil
}

func (s *APIV1Service) toChatResponse(resp *agent.Response, format string) (*ChatResponse, error) {
	out := &ChatResponse{
		Response:   resp,
		Format:     format,
		DurationMs: resp.Duration.Milliseconds(),
	}
	if format == FormatHTML {
		rendered, err := s.renderHTML(resp.Content)
		if err != nil {
			return nil, err
		}
		out.HTML = rendered
	}
	return out, nil
}

// Chat answers one message.
// POST /api/v1/chat
func (s *APIV1Service) Chat(c echo.Context) error {
	req, format, err := bindChat(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := s.Agent.Chat(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	out, err := s.toChatResponse(resp, format)
	if err != nil {
		return writeError(c, agent.Wrap(err, agent.ErrCodeInternal, "render failed"))
	}
	return c.JSON(http.StatusOK, out)
}

// ChatStream answers one message as server-sent events: routed, tool_use,
// tool_result and cache_hit while the turn runs, then answer or error.
// POST /api/v1/chat/stream
func (s *APIV1Service) ChatStream(c echo.Context) error {
	req, format, err := bindChat(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "message cannot be empty")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	errorSent := false
	send := func(eventType string, data any) error {
		switch v := data.(type) {
		case *agent.AIError:
			data = newErrorResponse(v)
			errorSent = true
		case *agent.Response:
			out, err := s.toChatResponse(v, format)
			if err != nil {
				return err
			}
			data = out
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	if _, err := s.Agent.ChatWithCallback(c.Request().Context(), req.SessionID, req.Message, send); err != nil && !errorSent {
		_ = send(agent.EventTypeError, newErrorResponse(err))
	}
	return nil
}

// ListSessions lists live conversations, most recent first.
// GET /api/v1/sessions
func (s *APIV1Service) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"sessions": s.Agent.Sessions(),
	})
}

// GetSession returns one conversation with its transcript.
// GET /api/v1/sessions/:id
func (s *APIV1Service) GetSession(c echo.Context) error {
	id := c.Param("id")
	sess, ok := s.Agent.Session(id)
	if !ok {
		return writeError(c, agent.SessionNotFound(id))
	}
	return c.JSON(http.StatusOK, SessionResponse{SessionInfo: sess.Info(), Messages: sess.Messages()})
}

// ResetSession discards a conversation.
// DELETE /api/v1/sessions/:id
func (s *APIV1Service) ResetSession(c echo.Context) error {
	if err := s.Agent.Reset(c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
