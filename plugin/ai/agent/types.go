package agent

import (
	"time"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/cache"
)

// EventCallback is the callback function type for agent events.
//
// Parameters:
//   - eventType: The type of event (e.g., "routed", "tool_use", "tool_result", "answer")
//   - eventData: The event payload, one of the *Event types below
//
// A callback error aborts the turn.
type EventCallback func(eventType string, eventData any) error

// Event types.
const (
	EventTypeCacheHit   = "cache_hit"   // Answer served from a cache level
	EventTypeRouted     = "routed"      // Skill selected for the turn
	EventTypeToolUse    = "tool_use"    // Model requested a tool
	EventTypeToolResult = "tool_result" // Tool execution result
	EventTypeAnswer     = "answer"      // Final answer from agent
	EventTypeError      = "error"       // Error occurred
)

// RoutedEvent is sent once the turn has a skill.
type RoutedEvent struct {
	Skill          string  `json:"skill"`
	Confidence     float64 `json:"confidence"`
	MatchedPattern string  `json:"matched_pattern,omitempty"`
	Tools          int     `json:"tools"`
}

// ToolUseEvent is sent before a tool runs.
type ToolUseEvent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolTrace records one executed tool call.
type ToolTrace struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Success   bool          `json:"success"`
	Fallback  bool          `json:"fallback,omitempty"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	Output    string        `json:"-"`
}

// Response is the outcome of one chat turn.
type Response struct {
	SessionID      string        `json:"session_id"`
	Content        string        `json:"content"`
	Skill          string        `json:"skill"`
	Confidence     float64       `json:"confidence"`
	MatchedPattern string        `json:"matched_pattern,omitempty"`
	Cache          cache.Source  `json:"cache,omitempty"`
	Similarity     float64       `json:"similarity,omitempty"`
	ToolCalls      []ToolTrace   `json:"tool_calls,omitempty"`
	Rounds         int           `json:"rounds"`
	BudgetExceeded bool          `json:"budget_exceeded,omitempty"`
	Usage          ai.Usage      `json:"usage"`
	Duration       time.Duration `json:"duration"`
}

// Cached reports whether the answer came from a cache level.
func (r *Response) Cached() bool {
	return r.Cache != cache.SourceNone
}
