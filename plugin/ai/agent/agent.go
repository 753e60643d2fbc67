// Package agent runs chat turns through skill routing, the response caches,
// history budgeting and the tool-calling loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/skillgate/internal/observability"
	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/agent/tools"
	"github.com/hrygo/skillgate/plugin/ai/cache"
	"github.com/hrygo/skillgate/plugin/ai/history"
	"github.com/hrygo/skillgate/plugin/ai/metrics"
	"github.com/hrygo/skillgate/plugin/ai/router"
	"github.com/hrygo/skillgate/plugin/ai/skill"
	"github.com/hrygo/skillgate/plugin/ai/truncate"
)

// BudgetExhaustedMessage is returned when a turn used every completion round
// without a final answer.
const BudgetExhaustedMessage = "I've reached the maximum number of tool calls. Please try a more specific question."

const (
	// DefaultMaxToolCalls is the completion round budget per turn.
	DefaultMaxToolCalls = 5
	// DefaultMaxHistoryMessages is the retained transcript length.
	DefaultMaxHistoryMessages = 50
	// DefaultMinSkillTools is the smallest filtered tool set offered to the model.
	DefaultMinSkillTools = 2
	// DefaultMaxParallelTools bounds concurrent tool calls of one completion.
	DefaultMaxParallelTools = 4

	maxLogQueryLen = 50
)

// Config bounds one chat turn.
type Config struct {
	MaxToolCalls       int    // Completion rounds per turn (default: 5)
	MaxHistoryMessages int    // Canonical transcript length kept after a turn (default: 50)
	MaxResultChars     int    // Tool output budget (default: truncate.DefaultMaxChars)
	MinSkillTools      int    // Below this many skill tools every tool is offered (default: 2)
	MaxParallelTools   int    // Concurrent tool calls per completion (default: 4)
	SystemPrompt       string // Base prompt every skill prompt extends
}

// DefaultConfig returns the default turn limits.
func DefaultConfig() Config {
	return Config{
		MaxToolCalls:       DefaultMaxToolCalls,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
		MaxResultChars:     truncate.DefaultMaxChars,
		MinSkillTools:      DefaultMinSkillTools,
		MaxParallelTools:   DefaultMaxParallelTools,
		SystemPrompt:       DefaultPromptConfig().GetTemplate(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxToolCalls <= 0 {
		c.MaxToolCalls = def.MaxToolCalls
	}
	if c.MaxHistoryMessages <= 0 {
		c.MaxHistoryMessages = def.MaxHistoryMessages
	}
	if c.MaxResultChars <= 0 {
		c.MaxResultChars = def.MaxResultChars
	}
	if c.MinSkillTools <= 0 {
		c.MinSkillTools = def.MinSkillTools
	}
	if c.MaxParallelTools <= 0 {
		c.MaxParallelTools = def.MaxParallelTools
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = def.SystemPrompt
	}
	return c
}

// Option configures optional Agent collaborators.
type Option func(*Agent)

// WithEmbedder enables the semantic cache level.
func WithEmbedder(e ai.EmbeddingService) Option {
	return func(a *Agent) { a.embedder = e }
}

// WithCache shares a cache service. The agent does not close it.
func WithCache(c *cache.Service) Option {
	return func(a *Agent) { a.cache = c }
}

// WithHistory sets the history manager.
func WithHistory(m *history.Manager) Option {
	return func(a *Agent) { a.history = m }
}

// WithExecutor sets the tool executor.
func WithExecutor(e *tools.ResilientToolExecutor) Option {
	return func(a *Agent) { a.executor = e }
}

// WithMetrics shares a metrics service. The agent does not close it.
func WithMetrics(m metrics.MetricsService) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithLogger sets the logger request contexts derive from.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// Agent serves chat turns for many concurrent sessions.
type Agent struct {
	cfg Config

	llm       ai.LLMService
	embedder  ai.EmbeddingService
	router    *router.Router
	tools     *tools.Registry
	cache     *cache.Service
	history   *history.Manager
	executor  *tools.ResilientToolExecutor
	metrics   metrics.MetricsService
	truncator *truncate.Truncator
	logger    *slog.Logger

	sessions *sessionStore
	stats    *AgentMetrics
	closers  []func()
}

// New creates an agent. Collaborators not given as options get defaults:
// a private cache service (semantic level on when an embedder is set), the
// default history manager, an in-memory metrics service and a resilient
// executor reporting to it.
func New(cfg Config, llm ai.LLMService, r *router.Router, registry *tools.Registry, opts ...Option) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm cannot be nil")
	}
	if r == nil {
		return nil, errors.New("router cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("tool registry cannot be nil")
	}

	cfg = cfg.withDefaults()
	a := &Agent{
		cfg:       cfg,
		llm:       llm,
		router:    r,
		tools:     registry,
		truncator: truncate.New(cfg.MaxResultChars),
		sessions:  newSessionStore(),
		stats:     NewAgentMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.cache == nil {
		cc := cache.DefaultServiceConfig()
		cc.SemanticEnabled = a.embedder != nil
		a.cache = cache.NewService(cc)
		a.closers = append(a.closers, a.cache.Close)
	}
	if a.history == nil {
		a.history = history.NewManager(history.DefaultConfig())
	}
	if a.metrics == nil {
		svc := metrics.NewService(nil, metrics.DefaultPersisterConfig())
		a.metrics = svc
		a.closers = append(a.closers, svc.Close)
	}
	if a.executor == nil {
		a.executor = tools.NewResilientToolExecutor(a.metrics)
	}

	for _, s := range r.Skills() {
		for _, name := range s.Tools() {
			if _, ok := registry.Get(name); !ok {
				slog.Warn("skill references unregistered tool", "skill", s.Name(), "tool", name)
			}
		}
	}
	return a, nil
}

// Close releases collaborators the agent created itself.
func (a *Agent) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Chat answers message within the session, creating it when sessionID is
// new. An empty sessionID starts a fresh session; its ID is in the response.
func (a *Agent) Chat(ctx context.Context, sessionID, message string) (*Response, error) {
	return a.ChatWithCallback(ctx, sessionID, message, nil)
}

// ChatWithCallback is Chat with progress events delivered to callback.
func (a *Agent) ChatWithCallback(ctx context.Context, sessionID, message string, callback EventCallback) (*Response, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, InvalidArgument("message cannot be empty")
	}

	sess := a.sessions.getOrCreate(sessionID, a.cfg.SystemPrompt)
	sess.turn.Lock()
	defer sess.turn.Unlock()

	t := &turn{
		agent:    a,
		ctx:      ctx,
		req:      observability.NewRequestContext(a.logger, sess.ID),
		session:  sess,
		message:  message,
		callback: callback,
		resp:     &Response{SessionID: sess.ID},
	}
	t.req.Info("chat turn started", slog.String("query", truncate.Runes(message, maxLogQueryLen)))

	if err := ctx.Err(); err != nil {
		return t.fail(err)
	}

	// Skills that change warehouse state always reach the model.
	match := a.router.RouteWithFallback(message)
	t.cacheable = a.cacheableSkill(match)
	if t.cacheable && t.answerFromCache() {
		if err := t.emit(EventTypeAnswer, t.resp); err != nil {
			return nil, err
		}
		return t.resp, nil
	}
	return t.run(match)
}

// turn carries the state of one Chat call.
type turn struct {
	agent    *Agent
	ctx      context.Context
	req      *observability.RequestContext
	session  *Session
	message  string
	callback EventCallback
	resp     *Response

	embedding []float32
	// cacheable is false for skills whose tools change state.
	cacheable bool
}

func (t *turn) emit(eventType string, data any) error {
	if t.callback == nil {
		return nil
	}
	if err := t.callback(eventType, data); err != nil {
		return Wrap(err, ErrCodeInternal, "event callback failed")
	}
	return nil
}

// answerFromCache probes the exact level, then the semantic level. The query
// embedding is kept for populating the semantic level after a miss.
func (t *turn) answerFromCache() bool {
	a := t.agent

	lookup := cache.Lookup{}
	if entry, ok := a.cache.Exact(t.ctx, t.message); ok {
		lookup = cache.Lookup{Entry: entry, Source: cache.SourceExact, Similarity: 1}
	} else {
		t.embedding = a.embed(t.ctx, t.req, t.message)
		if len(t.embedding) > 0 {
			if entry, sim, ok := a.cache.Semantic(t.ctx, t.message, t.embedding); ok {
				lookup = cache.Lookup{Entry: entry, Source: cache.SourceSemantic, Similarity: sim}
			}
		}
	}
	a.stats.RecordCacheLookup(lookup.Source)
	if !lookup.Hit() {
		return false
	}

	entry := lookup.Entry
	t.req.SetSkill(entry.SkillName)
	t.resp.Content = entry.Response
	t.resp.Skill = entry.SkillName
	t.resp.Cache = lookup.Source
	t.resp.Similarity = lookup.Similarity
	t.resp.Duration = t.req.Duration()

	transcript := append(t.session.Messages(), history.User(t.message), history.Assistant(entry.Response))
	t.session.commit(a.history.Prune(transcript, a.cfg.MaxHistoryMessages), entry.SkillName)

	a.metrics.RecordCacheHit(t.ctx, entry.SkillName)
	a.metrics.RecordRequest(t.ctx, entry.SkillName, t.resp.Duration, true)
	a.stats.RecordTurn(t.resp.Duration, 0, true)
	t.req.Info("chat turn served from cache",
		slog.String(observability.LogFieldCache, string(lookup.Source)),
		slog.Float64("similarity", lookup.Similarity),
		slog.Int64(observability.LogFieldDuration, t.req.DurationMs()))
	_ = t.emit(EventTypeCacheHit, t.resp)
	return true
}

// run drives the completion loop for the routed skill.
func (t *turn) run(match *skill.Match) (*Response, error) {
	a := t.agent

	t.req.SetSkill(match.SkillName)
	t.resp.Skill = match.SkillName
	t.resp.Confidence = match.Confidence
	t.resp.MatchedPattern = match.MatchedPattern

	defs := a.toolDefinitions(match)
	t.req.Info("query routed",
		slog.Float64("confidence", match.Confidence),
		slog.String("pattern", match.MatchedPattern),
		slog.Int("tools", len(defs)))
	if err := t.emit(EventTypeRouted, &RoutedEvent{
		Skill:          match.SkillName,
		Confidence:     match.Confidence,
		MatchedPattern: match.MatchedPattern,
		Tools:          len(defs),
	}); err != nil {
		return t.fail(err)
	}

	transcript := withSystemPrompt(t.session.Messages(), a.router.PromptFor(match.SkillName, a.cfg.SystemPrompt))
	transcript = append(transcript, history.User(t.message))

	final := false
	for round := 1; round <= a.cfg.MaxToolCalls; round++ {
		if err := t.ctx.Err(); err != nil {
			return t.fail(err)
		}
		t.resp.Rounds = round

		completion, err := a.llm.Complete(t.ctx, a.history.Optimize(transcript), defs)
		if err != nil {
			return t.fail(err)
		}
		t.resp.Usage.PromptTokens += completion.Usage.PromptTokens
		t.resp.Usage.CompletionTokens += completion.Usage.CompletionTokens
		t.resp.Usage.TotalTokens += completion.Usage.TotalTokens

		reply := completion.Message
		reply.Role = history.RoleAssistant
		transcript = append(transcript, reply)

		if !reply.HasToolCalls() {
			t.resp.Content = reply.Content
			final = true
			break
		}

		t.req.Debug("tool calls requested",
			slog.Int(observability.LogFieldIteration, round),
			slog.Int("count", len(reply.ToolCalls)))
		for _, call := range reply.ToolCalls {
			if err := t.emit(EventTypeToolUse, &ToolUseEvent{ID: call.ID, Name: call.Function.Name, Arguments: call.Function.Arguments}); err != nil {
				return t.fail(err)
			}
		}
		traces := a.runTools(t.ctx, t.req, reply.ToolCalls)
		for _, trace := range traces {
			transcript = append(transcript, history.ToolResult(trace.ID, trace.Output))
			t.resp.ToolCalls = append(t.resp.ToolCalls, trace)
			if err := t.emit(EventTypeToolResult, trace); err != nil {
				return t.fail(err)
			}
		}
	}

	if !final {
		t.resp.Content = BudgetExhaustedMessage
		t.resp.BudgetExceeded = true
		a.stats.RecordError(ErrCodeToolBudgetExhausted)
		a.metrics.RecordError(t.ctx, match.SkillName, string(ErrCodeToolBudgetExhausted))
		t.req.Warn("tool call budget exhausted", slog.Int("rounds", a.cfg.MaxToolCalls))
	} else if t.resp.Content != "" && t.cacheable && a.cacheableTraces(t.resp.ToolCalls) {
		a.cache.Set(t.ctx, t.message, t.resp.Content, match.SkillName, t.embedding)
	} else if t.resp.Content != "" {
		t.req.Debug("answer not cached", slog.Int("tool_calls", len(t.resp.ToolCalls)))
	}

	t.session.commit(a.history.Prune(transcript, a.cfg.MaxHistoryMessages), match.SkillName)

	t.resp.Duration = t.req.Duration()
	a.metrics.RecordRequest(t.ctx, match.SkillName, t.resp.Duration, final)
	a.stats.RecordTurn(t.resp.Duration, t.resp.Rounds, final)
	t.req.Info("chat turn completed",
		slog.Int("rounds", t.resp.Rounds),
		slog.Int("tool_calls", len(t.resp.ToolCalls)),
		slog.Int("total_tokens", t.resp.Usage.TotalTokens),
		slog.Int64(observability.LogFieldDuration, t.req.DurationMs()))

	if err := t.emit(EventTypeAnswer, t.resp); err != nil {
		return nil, err
	}
	return t.resp, nil
}

// fail classifies err, records it and leaves the session transcript as it
// was before the turn.
func (t *turn) fail(err error) (*Response, error) {
	a := t.agent

	aiErr := FromContext(err)
	if aiErr == nil && !errors.As(err, &aiErr) {
		aiErr = LLMUnavailable("completion failed", err)
	}

	skillName := t.req.Skill()
	duration := t.req.Duration()
	a.stats.RecordError(aiErr.Code)
	a.stats.RecordTurn(duration, t.resp.Rounds, false)
	a.metrics.RecordError(t.ctx, skillName, string(aiErr.Code))
	a.metrics.RecordRequest(t.ctx, skillName, duration, false)
	t.req.Error("chat turn failed", err,
		slog.String(observability.LogFieldErrorCode, string(aiErr.Code)),
		slog.Int64(observability.LogFieldDuration, t.req.DurationMs()))

	_ = t.emit(EventTypeError, aiErr)
	return nil, aiErr
}

// embed returns the query embedding, or nil when the semantic level is off
// or the embedding service fails.
func (a *Agent) embed(ctx context.Context, req *observability.RequestContext, text string) []float32 {
	if a.embedder == nil || !a.cache.SemanticEnabled() {
		return nil
	}
	vec, err := a.embedder.Embed(ctx, text)
	if err != nil {
		req.Warn("embedding failed, skipping semantic cache", slog.String("error", err.Error()))
		return nil
	}
	return vec
}

// cacheableSkill reports whether answers for the skill may be shared through
// the cache. A skill offering a state-changing tool is never cached.
func (a *Agent) cacheableSkill(match *skill.Match) bool {
	for _, name := range match.Tools {
		if t, ok := a.tools.Get(name); ok && tools.Mutates(t) {
			return false
		}
	}
	return true
}

// cacheableTraces reports whether an answer built on traces may be cached:
// every call succeeded without a fallback and none changed state.
func (a *Agent) cacheableTraces(traces []ToolTrace) bool {
	for _, trace := range traces {
		if !trace.Success || trace.Fallback {
			return false
		}
		if t, ok := a.tools.Get(trace.Name); ok && tools.Mutates(t) {
			return false
		}
	}
	return true
}

// toolDefinitions returns the skill's tools, or every tool when the skill
// leaves fewer than MinSkillTools.
func (a *Agent) toolDefinitions(match *skill.Match) []ai.ToolDefinition {
	if match != nil && len(match.Tools) > 0 {
		if defs := a.tools.Definitions(match.Tools...); len(defs) >= a.cfg.MinSkillTools {
			return defs
		}
	}
	return a.tools.Definitions()
}

// runTools executes calls concurrently and returns their traces in call order.
func (a *Agent) runTools(ctx context.Context, req *observability.RequestContext, calls []ai.ToolCall) []ToolTrace {
	traces := make([]ToolTrace, len(calls))

	var g errgroup.Group
	g.SetLimit(a.cfg.MaxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			traces[i] = a.runTool(ctx, req, call)
			return nil
		})
	}
	_ = g.Wait()
	return traces
}

// runTool never fails: errors become {"error": ...} payloads the model reads.
func (a *Agent) runTool(ctx context.Context, req *observability.RequestContext, call ai.ToolCall) ToolTrace {
	start := time.Now()
	trace := ToolTrace{
		ID:        call.ID,
		Name:      call.Function.Name,
		Arguments: call.Function.Arguments,
	}

	var output string
	rows := false
	tool, ok := a.tools.Get(call.Function.Name)
	if !ok {
		req.Warn("unknown tool requested", slog.String(observability.LogFieldTool, call.Function.Name))
		output = tools.ErrorResult(fmt.Sprintf("Unknown function: %s", call.Function.Name)).Output
	} else {
		res := a.executor.ExecuteDetailed(ctx, tool, call.Function.Arguments)
		trace.Attempts = res.Attempts
		trace.Fallback = res.UsedFallback
		switch {
		case res.Result != nil:
			output = res.Result.Output
			trace.Success = res.Error == nil && res.Result.Success
			rows = trace.Success && tools.ReportsRows(tool)
		case res.Error != nil:
			output = tools.ErrorResult(res.Error.Error()).Output
		}
		if res.Error != nil {
			req.Warn("tool execution failed",
				slog.String(observability.LogFieldTool, call.Function.Name),
				slog.Int("attempts", res.Attempts),
				slog.Bool("fallback", res.UsedFallback),
				slog.String("error", res.Error.Error()))
		}
	}

	if rows {
		trace.Output = truncate.SummarizeSQLResult(output)
	} else {
		trace.Output = a.truncator.Truncate(output)
	}
	trace.Duration = time.Since(start)
	a.stats.RecordToolCall(trace.Name, trace.Duration, trace.Success)
	return trace
}

// withSystemPrompt sets the leading system message of msgs to prompt.
func withSystemPrompt(msgs []ai.Message, prompt string) []ai.Message {
	if len(msgs) > 0 && msgs[0].Role == history.RoleSystem {
		msgs[0].Content = prompt
		return msgs
	}
	return append([]ai.Message{history.System(prompt)}, msgs...)
}

// Reset discards the session's conversation.
func (a *Agent) Reset(sessionID string) error {
	if !a.sessions.delete(sessionID) {
		return SessionNotFound(sessionID)
	}
	slog.Info("conversation reset", observability.LogFieldSessionID, sessionID)
	return nil
}

// Session returns a live session.
func (a *Agent) Session(sessionID string) (*Session, bool) {
	return a.sessions.get(sessionID)
}

// Sessions lists live sessions, most recently active first.
func (a *Agent) Sessions() []SessionInfo {
	return a.sessions.list()
}

// ExpireSessions drops sessions idle for longer than maxIdle.
func (a *Agent) ExpireSessions(maxIdle time.Duration) int {
	n := a.sessions.expire(time.Now().Add(-maxIdle))
	if n > 0 {
		slog.Debug("idle sessions expired", "count", n)
	}
	return n
}

// Route returns the skill a query would be routed to.
func (a *Agent) Route(query string) *skill.Match {
	return a.router.RouteWithFallback(query)
}

// ExplainRouting describes how a query would be routed.
func (a *Agent) ExplainRouting(query string) string {
	return a.router.Explain(query)
}

// ListSkills describes every registered skill.
func (a *Agent) ListSkills() []router.Info {
	return a.router.List()
}

// CacheStats returns both cache levels' statistics.
func (a *Agent) CacheStats(ctx context.Context) cache.ServiceStats {
	return a.cache.Stats(ctx)
}

// ClearCache empties both cache levels.
func (a *Agent) ClearCache(ctx context.Context) {
	a.cache.Clear(ctx)
}

// Stats returns in-process turn statistics.
func (a *Agent) Stats() MetricsSummary {
	return a.stats.GetSummary()
}

// LogStats logs the in-process turn statistics.
func (a *Agent) LogStats() {
	a.stats.LogSummary()
}

// MetricsOverview returns the aggregated skill and tool metrics for tr.
func (a *Agent) MetricsOverview(ctx context.Context, tr metrics.TimeRange) (*metrics.Overview, error) {
	return a.metrics.GetStats(ctx, tr)
}
