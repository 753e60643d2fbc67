package history

import (
	"log/slog"
	"strings"

	"github.com/hrygo/skillgate/plugin/ai/truncate"
)

const (
	// CharsPerToken is the rough size of one token.
	CharsPerToken = 4

	// DefaultMaxMessages is the retained transcript length used by Prune
	// when no positive limit is given.
	DefaultMaxMessages = 50

	userTokenCap          = 200
	assistantTokenCap     = 300
	toolCallTextTokenCap  = 100
	summaryQuestionLength = 100
	summaryAnswerLength   = 80
	summaryExtracts       = 3

	summaryPlaceholder = "Earlier conversation about sales, inventory and product analytics"
)

// Config bounds the transcript sent to the model.
type Config struct {
	MaxTurns             int  // User turns sent in full before older ones are folded (default: 10)
	SummarizeAfter       int  // Recent user turns kept once folding starts (default: 5)
	MaxToolResultTokens  int  // Per tool message budget in tokens (default: 500)
	PreserveSystemPrompt bool // Keep system messages verbatim (default: true)
}

// DefaultConfig returns the default history limits.
func DefaultConfig() Config {
	return Config{
		MaxTurns:             10,
		SummarizeAfter:       5,
		MaxToolResultTokens:  500,
		PreserveSystemPrompt: true,
	}
}

// Stats describes a transcript.
type Stats struct {
	MessageCount     int `json:"message_count"`
	TurnCount        int `json:"turn_count"`
	EstimatedTokens  int `json:"estimated_tokens"`
	ToolResultCount  int `json:"tool_result_count"`
	ToolResultTokens int `json:"tool_result_tokens"`
}

// Manager derives size-bounded copies of a conversation. It never modifies
// the transcript it is given.
type Manager struct {
	cfg Config
}

// NewManager creates a history manager. Non-positive limits use defaults.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if cfg.SummarizeAfter <= 0 {
		cfg.SummarizeAfter = def.SummarizeAfter
	}
	if cfg.MaxToolResultTokens <= 0 {
		cfg.MaxToolResultTokens = def.MaxToolResultTokens
	}
	return &Manager{cfg: cfg}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Optimize returns the projection of msgs to send to the model.
//
// Up to MaxTurns user turns only tool results are shortened. Beyond that the
// last SummarizeAfter turns are kept with role caps and everything older is
// folded into one assistant summary placed after the leading system message.
func (m *Manager) Optimize(msgs []Message) []Message {
	if len(msgs) == 0 {
		return []Message{}
	}

	turns := CountTurns(msgs)
	if turns <= m.cfg.MaxTurns {
		out := make([]Message, len(msgs))
		for i, msg := range msgs {
			if msg.Role == RoleTool {
				out[i] = m.shortenTool(msg)
			} else {
				out[i] = msg.clone()
			}
		}
		return out
	}

	boundary := m.recentStart(msgs)
	slog.Info("optimizing conversation history",
		"turns", turns,
		"max_turns", m.cfg.MaxTurns,
		"folded_messages", boundary)

	out := make([]Message, 0, len(msgs)-boundary+2)
	var older []Message
	for i, msg := range msgs {
		switch {
		case msg.Role == RoleSystem && m.cfg.PreserveSystemPrompt:
			out = append(out, msg.clone())
		case i < boundary:
			older = append(older, msg)
		default:
			out = append(out, m.shorten(msg))
		}
	}

	if len(older) == 0 {
		return out
	}

	summary := Assistant("[Previous conversation summary: " + Summarize(older) + "]")
	at := 0
	if len(out) > 0 && out[0].Role == RoleSystem {
		at = 1
	}
	out = append(out, Message{})
	copy(out[at+1:], out[at:])
	out[at] = summary
	return out
}

// Prune bounds the retained transcript to maxMessages, keeping a leading
// system message and the most recent entries.
func (m *Manager) Prune(msgs []Message, maxMessages int) []Message {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if len(msgs) <= maxMessages {
		return cloneAll(msgs)
	}

	if msgs[0].Role == RoleSystem {
		out := make([]Message, 0, maxMessages)
		out = append(out, msgs[0].clone())
		out = append(out, cloneAll(msgs[len(msgs)-(maxMessages-1):])...)
		slog.Debug("pruned conversation history", "from", len(msgs), "to", len(out))
		return out
	}

	out := cloneAll(msgs[len(msgs)-maxMessages:])
	slog.Debug("pruned conversation history", "from", len(msgs), "to", len(out))
	return out
}

// Stats measures a transcript.
func (m *Manager) Stats(msgs []Message) Stats {
	s := Stats{MessageCount: len(msgs), TurnCount: CountTurns(msgs)}
	totalChars, toolChars := 0, 0
	for _, msg := range msgs {
		totalChars += len(msg.Content)
		if msg.Role == RoleTool {
			s.ToolResultCount++
			toolChars += len(msg.Content)
		}
	}
	s.EstimatedTokens = totalChars / CharsPerToken
	s.ToolResultTokens = toolChars / CharsPerToken
	return s
}

// recentStart walks back to the SummarizeAfter-th user message from the end.
// Messages from that index on are recent.
func (m *Manager) recentStart(msgs []Message) int {
	seen := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != RoleUser {
			continue
		}
		seen++
		if seen == m.cfg.SummarizeAfter {
			return i
		}
	}
	return 0
}

func (m *Manager) shorten(msg Message) Message {
	switch {
	case msg.Role == RoleTool:
		return m.shortenTool(msg)
	case msg.Role == RoleAssistant && msg.HasToolCalls():
		out := msg.clone()
		out.Content = truncateTokens(msg.Content, toolCallTextTokenCap)
		return out
	case msg.Role == RoleUser:
		return Message{Role: RoleUser, Content: truncateTokens(msg.Content, userTokenCap)}
	case msg.Role == RoleAssistant:
		return Message{Role: RoleAssistant, Content: truncateTokens(msg.Content, assistantTokenCap)}
	default:
		return msg.clone()
	}
}

func (m *Manager) shortenTool(msg Message) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: msg.ToolCallID,
		Content:    truncateTokens(msg.Content, m.cfg.MaxToolResultTokens),
	}
}

// Summarize renders folded messages as a pipe-joined list of the last few
// questions and answers.
func Summarize(msgs []Message) string {
	var topics []string
	for _, msg := range msgs {
		switch {
		case msg.Role == RoleUser && msg.Content != "":
			topic := strings.TrimSpace(headRunes(msg.Content, summaryQuestionLength))
			if len([]rune(msg.Content)) > summaryQuestionLength {
				topic += "..."
			}
			topics = append(topics, "User asked: "+topic)
		case msg.Role == RoleAssistant && msg.Content != "" && !msg.HasToolCalls():
			firstLine, _, _ := strings.Cut(msg.Content, "\n")
			topics = append(topics, "Answered: "+headRunes(firstLine, summaryAnswerLength))
		}
	}

	if len(topics) == 0 {
		return summaryPlaceholder
	}
	if len(topics) > summaryExtracts {
		topics = topics[len(topics)-summaryExtracts:]
	}
	return strings.Join(topics, " | ")
}

// CountTurns counts user messages.
func CountTurns(msgs []Message) int {
	n := 0
	for _, msg := range msgs {
		if msg.Role == RoleUser {
			n++
		}
	}
	return n
}

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	return len(s) / CharsPerToken
}

func truncateTokens(s string, maxTokens int) string {
	return truncate.Text(s, maxTokens*CharsPerToken)
}

func headRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func cloneAll(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.clone()
	}
	return out
}
