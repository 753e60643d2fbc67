package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/agent/tools"
	"github.com/hrygo/skillgate/plugin/ai/cache"
	"github.com/hrygo/skillgate/plugin/ai/history"
	"github.com/hrygo/skillgate/plugin/ai/metrics"
	"github.com/hrygo/skillgate/plugin/ai/router"
	"github.com/hrygo/skillgate/plugin/ai/skill"
	"github.com/hrygo/skillgate/plugin/ai/truncate"
	storetest "github.com/hrygo/skillgate/store/test"
)

// fakeTool echoes its arguments, or fails with err.
type fakeTool struct {
	name    string
	err     error
	delay   time.Duration
	mutates bool
	runs    atomic.Int32
}

func (f *fakeTool) Mutates() bool { return f.mutates }

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake " + f.name }
func (f *fakeTool) InputType() map[string]any { return map[string]any{"type": "object"} }

func (f *fakeTool) Run(ctx context.Context, input string) (*tools.Result, error) {
	f.runs.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &tools.Result{Output: fmt.Sprintf(`{"tool":%q,"input":%s}`, f.name, input), Success: true}, nil
}

func fakeRegistry(t *testing.T, names ...string) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, n := range names {
		require.NoError(t, r.Register(&fakeTool{name: n}))
	}
	return r
}

func call(id, name, args string) ai.ToolCall {
	return ai.ToolCall{ID: id, Function: history.FunctionCall{Name: name, Arguments: args}}
}

type testAgent struct {
	*Agent
	llm     *ai.MockLLMService
	metrics *metrics.MockMetricsService
}

func newTestAgent(t *testing.T, registry *tools.Registry, responses []*ai.Completion, opts ...Option) *testAgent {
	t.Helper()
	llm := ai.NewMockLLMService(responses...)
	m := metrics.NewMockMetricsService()
	opts = append([]Option{
		WithMetrics(m),
		WithExecutor(tools.NewResilientToolExecutor(m, tools.WithMaxRetries(0))),
	}, opts...)
	a, err := New(DefaultConfig(), llm, router.NewDefault(), registry, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return &testAgent{Agent: a, llm: llm, metrics: m}
}

func builtinNames() []string {
	return tools.NewDefaultRegistry(nil, tools.Options{}).Names()
}

func toolNames(defs []ai.ToolDefinition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

func TestNew_RequiresCollaborators(t *testing.T) {
	r := router.NewDefault()
	reg := tools.NewRegistry()
	llm := ai.NewMockLLMService()

	_, err := New(DefaultConfig(), nil, r, reg)
	assert.Error(t, err)
	_, err = New(DefaultConfig(), llm, nil, reg)
	assert.Error(t, err)
	_, err = New(DefaultConfig(), llm, r, nil)
	assert.Error(t, err)

	a, err := New(Config{}, llm, r, reg)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, DefaultMaxToolCalls, a.cfg.MaxToolCalls)
	assert.Equal(t, BaseSystemPrompt, a.cfg.SystemPrompt)
}

func TestAgent_Chat_DirectAnswer(t *testing.T) {
	ctx := context.Background()
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), []*ai.Completion{ai.MockText("Chainsaws lead the catalog.")})

	query := "What chainsaw is best for professionals?"
	resp, err := ta.Chat(ctx, "", query)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Chainsaws lead the catalog.", resp.Content)
	assert.Equal(t, skill.ProductExpert, resp.Skill)
	assert.NotEmpty(t, resp.MatchedPattern)
	assert.Equal(t, 1, resp.Rounds)
	assert.False(t, resp.Cached())

	calls := ta.llm.Calls()
	require.Len(t, calls, 1)

	// The system prompt is the skill-enhanced prompt.
	msgs := calls[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, history.RoleSystem, msgs[0].Role)
	assert.Equal(t, ta.router.PromptFor(skill.ProductExpert, BaseSystemPrompt), msgs[0].Content)
	assert.Equal(t, history.User(query), msgs[1])

	// Only the skill's tools are offered.
	assert.ElementsMatch(t, ta.router.ToolsFor(skill.ProductExpert), toolNames(calls[0].Tools))

	sess, ok := ta.Session(resp.SessionID)
	require.True(t, ok)
	assert.Len(t, sess.Messages(), 3)
	assert.Equal(t, skill.ProductExpert, sess.LastSkill())
}

func TestAgent_Chat_FallbackOffersAllTools(t *testing.T) {
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), nil)

	resp, err := ta.Chat(context.Background(), "s1", "qwerty xyzzy")
	require.NoError(t, err)
	assert.Equal(t, skill.SalesAnalyst, resp.Skill)
	assert.Empty(t, resp.MatchedPattern)

	// The fallback skill has a single tool, below the minimum.
	calls := ta.llm.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Tools, len(builtinNames()))
}

func TestAgent_Chat_ToolLoop(t *testing.T) {
	ctx := context.Background()
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), []*ai.Completion{
		ai.MockToolCalls(call("c1", tools.QuerySalesDataName, `{"query_type":"summary"}`)),
		ai.MockText("Revenue was $1.2M."),
	})

	resp, err := ta.Chat(ctx, "s1", "What were total sales last month?")
	require.NoError(t, err)
	assert.Equal(t, "Revenue was $1.2M.", resp.Content)
	assert.Equal(t, 2, resp.Rounds)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, tools.QuerySalesDataName, resp.ToolCalls[0].Name)
	assert.True(t, resp.ToolCalls[0].Success)
	assert.Equal(t, 1, resp.ToolCalls[0].Attempts)

	calls := ta.llm.Calls()
	require.Len(t, calls, 2)
	second := calls[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, history.RoleAssistant, second[2].Role)
	assert.True(t, second[2].HasToolCalls())
	assert.Equal(t, history.RoleTool, second[3].Role)
	assert.Equal(t, "c1", second[3].ToolCallID)
	assert.JSONEq(t, `{"tool":"query_sales_data","input":{"query_type":"summary"}}`, second[3].Content)

	records := ta.metrics.ToolCalls()
	require.Len(t, records, 1)
	assert.Equal(t, tools.QuerySalesDataName, records[0].ToolName)
}

func TestAgent_Chat_ParallelToolCallsKeepCallOrder(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "slow", delay: 50 * time.Millisecond}))
	require.NoError(t, reg.Register(&fakeTool{name: "fast"}))
	require.NoError(t, reg.Register(&fakeTool{name: "broken", err: errors.New("warehouse offline")}))

	ta := newTestAgent(t, reg, []*ai.Completion{
		ai.MockToolCalls(
			call("a", "slow", `{}`),
			call("b", "fast", `{}`),
			call("c", "missing", `{}`),
			call("d", "broken", `{}`),
		),
		ai.MockText("ok"),
	})

	resp, err := ta.Chat(context.Background(), "s1", "qwerty xyzzy")
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 4)

	msgs := ta.llm.Calls()[1].Messages
	tail := msgs[len(msgs)-4:]
	for i, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, history.RoleTool, tail[i].Role)
		assert.Equal(t, id, tail[i].ToolCallID)
	}

	assert.True(t, resp.ToolCalls[0].Success)
	assert.False(t, resp.ToolCalls[2].Success)
	assert.Contains(t, tail[2].Content, "Unknown function: missing")

	var failed map[string]any
	require.NoError(t, json.Unmarshal([]byte(tail[3].Content), &failed))
	assert.Contains(t, failed, "error")
	assert.False(t, resp.ToolCalls[3].Success)
}

func TestAgent_Chat_TruncatesToolOutput(t *testing.T) {
	big := strings.Repeat("x", 10_000)
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "dump"}))

	ta := newTestAgent(t, reg, []*ai.Completion{
		ai.MockToolCalls(call("c1", "dump", fmt.Sprintf(`{"blob":%q}`, big))),
		ai.MockText("ok"),
	})

	_, err := ta.Chat(context.Background(), "s1", "qwerty xyzzy")
	require.NoError(t, err)

	msgs := ta.llm.Calls()[1].Messages
	toolMsg := msgs[len(msgs)-1]
	require.Equal(t, history.RoleTool, toolMsg.Role)
	assert.LessOrEqual(t, len(toolMsg.Content), ta.truncator.MaxChars())
}

func TestAgent_Chat_BudgetExhausted(t *testing.T) {
	var script []*ai.Completion
	for i := 0; i < DefaultMaxToolCalls+1; i++ {
		script = append(script, ai.MockToolCalls(call(fmt.Sprintf("c%d", i), tools.QuerySalesDataName, `{}`)))
	}
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), script)

	query := "What were total sales last month?"
	resp, err := ta.Chat(context.Background(), "s1", query)
	require.NoError(t, err)
	assert.Equal(t, BudgetExhaustedMessage, resp.Content)
	assert.True(t, resp.BudgetExceeded)
	assert.Equal(t, DefaultMaxToolCalls, resp.Rounds)
	assert.Len(t, ta.llm.Calls(), DefaultMaxToolCalls)
	assert.Equal(t, int64(1), ta.Stats().BudgetExhausted)

	// The apology is never cached.
	_, ok := ta.cache.Exact(context.Background(), query)
	assert.False(t, ok)
}

func TestAgent_Chat_ExactCacheHit(t *testing.T) {
	ctx := context.Background()
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), []*ai.Completion{ai.MockText("First answer.")})

	first, err := ta.Chat(ctx, "s1", "What were total sales last month?")
	require.NoError(t, err)
	assert.False(t, first.Cached())

	second, err := ta.Chat(ctx, "s2", "  what were TOTAL sales last month?  ")
	require.NoError(t, err)
	assert.Equal(t, cache.SourceExact, second.Cache)
	assert.Equal(t, "First answer.", second.Content)
	assert.Equal(t, first.Skill, second.Skill)
	assert.Len(t, ta.llm.Calls(), 1)

	// The cached turn still lands in the transcript.
	sess, _ := ta.Session("s2")
	msgs := sess.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "First answer.", msgs[2].Content)

	summary := ta.Stats()
	assert.Equal(t, int64(1), summary.ExactHits)
	assert.Equal(t, int64(1), summary.CacheMisses)
}

func TestAgent_Chat_StateChangingSkillBypassesCache(t *testing.T) {
	ctx := context.Background()
	reg := tools.NewRegistry()
	var create *fakeTool
	for _, name := range builtinNames() {
		ft := &fakeTool{name: name, mutates: name == tools.CreateShipmentRequestName}
		if ft.mutates {
			create = ft
		}
		require.NoError(t, reg.Register(ft))
	}
	ta := newTestAgent(t, reg, []*ai.Completion{
		ai.MockToolCalls(call("c1", tools.CreateShipmentRequestName, `{"product_name":"FS 111 R"}`)),
		ai.MockText("Created shipment request SR-1."),
		ai.MockToolCalls(call("c2", tools.CreateShipmentRequestName, `{"product_name":"FS 111 R"}`)),
		ai.MockText("Created shipment request SR-2."),
	})

	query := "replenish FS 111 R for Northeast"
	first, err := ta.Chat(ctx, "a", query)
	require.NoError(t, err)
	assert.Equal(t, "replenishment_coordinator", first.Skill)

	second, err := ta.Chat(ctx, "b", "  Replenish FS 111 R for Northeast ")
	require.NoError(t, err)
	assert.False(t, second.Cached())
	assert.Equal(t, "Created shipment request SR-2.", second.Content)
	assert.Equal(t, int32(2), create.runs.Load())
	assert.Len(t, ta.llm.Calls(), 4)

	stats := ta.CacheStats(ctx)
	assert.Zero(t, stats.Exact.Size)
	assert.Zero(t, stats.Exact.Hits+stats.Exact.Misses, "state-changing skills skip the lookup")
}

func TestAgent_Chat_ToolFailureAnswerNotCached(t *testing.T) {
	ctx := context.Background()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: tools.QuerySalesDataName, err: errors.New("warehouse offline")}))
	ta := newTestAgent(t, reg, []*ai.Completion{
		ai.MockToolCalls(call("c1", tools.QuerySalesDataName, `{"query_type":"summary"}`)),
		ai.MockText("Sales data is temporarily unavailable."),
		ai.MockText("Revenue was $1.2M."),
	})

	query := "What were total sales last month?"
	first, err := ta.Chat(ctx, "s1", query)
	require.NoError(t, err)
	require.Len(t, first.ToolCalls, 1)
	assert.True(t, first.ToolCalls[0].Fallback)

	second, err := ta.Chat(ctx, "s2", query)
	require.NoError(t, err)
	assert.False(t, second.Cached())
	assert.Equal(t, "Revenue was $1.2M.", second.Content)

	// A clean answer is cached as usual.
	third, err := ta.Chat(ctx, "s3", query)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceExact, third.Cache)
	assert.Equal(t, "Revenue was $1.2M.", third.Content)
}

func TestAgent_Chat_SemanticCacheHit(t *testing.T) {
	ctx := context.Background()
	embedder := ai.NewMockEmbeddingService(64)
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...),
		[]*ai.Completion{ai.MockText("Sales were up.")},
		WithEmbedder(embedder))

	_, err := ta.Chat(ctx, "s1", "total sales last month")
	require.NoError(t, err)

	resp, err := ta.Chat(ctx, "s1", "last month total sales")
	require.NoError(t, err)
	assert.Equal(t, cache.SourceSemantic, resp.Cache)
	assert.InDelta(t, 1.0, resp.Similarity, 1e-6)
	assert.Equal(t, "Sales were up.", resp.Content)
	assert.Len(t, ta.llm.Calls(), 1)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestAgent_Chat_EmbeddingFailureSkipsSemanticCache(t *testing.T) {
	ctx := context.Background()
	embedder := ai.NewMockEmbeddingService(64)
	embedder.SetError(errors.New("embedding quota exceeded"))
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...),
		[]*ai.Completion{ai.MockText("one"), ai.MockText("two")},
		WithEmbedder(embedder))

	resp, err := ta.Chat(ctx, "s1", "total sales last month")
	require.NoError(t, err)
	assert.Equal(t, "one", resp.Content)

	// Exact caching still applies; the reordered query reaches the model.
	resp, err = ta.Chat(ctx, "s1", "last month total sales")
	require.NoError(t, err)
	assert.Equal(t, "two", resp.Content)
	assert.Equal(t, 0, ta.CacheStats(ctx).Semantic.Size)

	resp, err = ta.Chat(ctx, "s1", "total sales last month")
	require.NoError(t, err)
	assert.Equal(t, cache.SourceExact, resp.Cache)
}

func TestAgent_Chat_LLMFailureKeepsTranscript(t *testing.T) {
	ctx := context.Background()
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), []*ai.Completion{ai.MockText("hello")})

	_, err := ta.Chat(ctx, "s1", "What were total sales last month?")
	require.NoError(t, err)
	before, _ := ta.Session("s1")
	want := before.Messages()

	ta.llm.SetError(errors.New("503 service unavailable"))
	_, err = ta.Chat(ctx, "s1", "Which dealers are underperforming?")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeLLMUnavailable))
	assert.Equal(t, "The AI service is temporarily unavailable. Please try again in a moment.", UserMessage(err))

	after, _ := ta.Session("s1")
	assert.Equal(t, want, after.Messages())
	assert.Equal(t, int64(1), ta.Stats().Errors[ErrCodeLLMUnavailable])
}

func TestAgent_Chat_InvalidInputAndCancellation(t *testing.T) {
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), nil)

	_, err := ta.Chat(context.Background(), "s1", "   ")
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ta.Chat(ctx, "s1", "What were total sales last month?")
	assert.True(t, IsCode(err, ErrCodeContextCanceled))
	assert.Empty(t, ta.llm.Calls())
}

func TestAgent_Chat_Callback(t *testing.T) {
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), []*ai.Completion{
		ai.MockToolCalls(call("c1", tools.QuerySalesDataName, `{}`)),
		ai.MockText("done"),
	})

	var events []string
	_, err := ta.ChatWithCallback(context.Background(), "s1", "What were total sales last month?",
		func(eventType string, _ any) error {
			events = append(events, eventType)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{EventTypeRouted, EventTypeToolUse, EventTypeToolResult, EventTypeAnswer}, events)

	_, err = ta.ChatWithCallback(context.Background(), "s2", "qwerty xyzzy",
		func(string, any) error { return errors.New("client went away") })
	assert.True(t, IsCode(err, ErrCodeInternal))
}

func TestAgent_Chat_OptimizesAndPrunesHistory(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxHistoryMessages = 7
	llm := ai.NewMockLLMService()
	a, err := New(cfg, llm, router.NewDefault(), fakeRegistry(t, builtinNames()...),
		WithHistory(history.NewManager(history.Config{MaxTurns: 2, SummarizeAfter: 1, PreserveSystemPrompt: true})))
	require.NoError(t, err)
	defer a.Close()

	for i := 0; i < 6; i++ {
		_, err := a.Chat(ctx, "s1", fmt.Sprintf("question number %d about dealers", i))
		require.NoError(t, err)
	}

	sess, _ := a.Session("s1")
	msgs := sess.Messages()
	assert.Len(t, msgs, 7)
	assert.Equal(t, history.RoleSystem, msgs[0].Role)

	// Older turns are folded before the model sees them.
	calls := llm.Calls()
	last := calls[len(calls)-1].Messages
	assert.Less(t, len(last), len(msgs)+1)
	assert.Equal(t, history.RoleSystem, last[0].Role)
	assert.Equal(t, "question number 5 about dealers", last[len(last)-1].Content)
}

func TestAgent_ResetAndSessions(t *testing.T) {
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), nil)

	assert.True(t, IsCode(ta.Reset("nope"), ErrCodeSessionNotFound))

	_, err := ta.Chat(context.Background(), "s1", "hello")
	require.NoError(t, err)
	require.Len(t, ta.Sessions(), 1)
	assert.Equal(t, 1, ta.Sessions()[0].TurnCount)

	require.NoError(t, ta.Reset("s1"))
	_, ok := ta.Session("s1")
	assert.False(t, ok)

	_, err = ta.Chat(context.Background(), "s2", "hello again")
	require.NoError(t, err)
	assert.Equal(t, 0, ta.ExpireSessions(time.Hour))
	assert.Equal(t, 1, ta.ExpireSessions(-time.Second))
	assert.Empty(t, ta.Sessions())
}

func TestAgent_ConcurrentSessions(t *testing.T) {
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s%d", i%3)
			_, err := ta.Chat(context.Background(), sessionID, fmt.Sprintf("inventory question %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	total := 0
	for _, info := range ta.Sessions() {
		total += info.TurnCount
	}
	assert.Equal(t, 8, total)
}

func TestAgent_RoutingHelpers(t *testing.T) {
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), nil)

	assert.Len(t, ta.ListSkills(), len(skill.Builtins()))
	assert.Equal(t, skill.ReplenishmentCoordinator, ta.Route("replenish FS 111 R for Northeast").SkillName)
	assert.Contains(t, ta.ExplainRouting("replenish FS 111 R for Northeast"), skill.ReplenishmentCoordinator)
}

func TestAgent_ClearCache(t *testing.T) {
	ctx := context.Background()
	ta := newTestAgent(t, fakeRegistry(t, builtinNames()...), []*ai.Completion{ai.MockText("a"), ai.MockText("b")})

	_, err := ta.Chat(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, ta.CacheStats(ctx).Exact.Size)

	ta.ClearCache(ctx)
	assert.Equal(t, 0, ta.CacheStats(ctx).Exact.Size)

	resp, err := ta.Chat(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "b", resp.Content)
}

func TestAgent_SemanticCacheWarmStart(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewTestingStore(ctx, t)
	embedder := ai.NewMockEmbeddingService(32)

	first := newTestAgent(t, fakeRegistry(t, builtinNames()...), []*ai.Completion{ai.MockText("Sales were up.")}, WithEmbedder(embedder))
	_, err := first.Chat(ctx, "s1", "total sales last month")
	require.NoError(t, err)
	n, err := first.SaveSemanticCache(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second := newTestAgent(t, fakeRegistry(t, builtinNames()...), nil, WithEmbedder(embedder))
	n, err = second.LoadSemanticCache(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp, err := second.Chat(ctx, "s1", "last month total sales")
	require.NoError(t, err)
	assert.Equal(t, cache.SourceSemantic, resp.Cache)
	assert.Equal(t, "Sales were up.", resp.Content)
	assert.Empty(t, second.llm.Calls())

	// Without an embedder the semantic level is off and nothing is restored.
	third := newTestAgent(t, fakeRegistry(t, builtinNames()...), nil)
	n, err = third.LoadSemanticCache(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAgent_Chat_WithWarehouseTools(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewTestingStore(ctx, t)
	clock := tools.FixedClock(time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC))
	registry := tools.NewDefaultRegistry(s, tools.Options{Clock: clock})

	ta := newTestAgent(t, registry, []*ai.Completion{
		ai.MockToolCalls(call("c1", tools.QuerySalesDataName, `{"query_type":"summary","time_period":"last_month"}`)),
		ai.MockText("June revenue is in."),
	})

	resp, err := ta.Chat(ctx, "s1", "What were total sales last month?")
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.True(t, resp.ToolCalls[0].Success)

	msgs := ta.llm.Calls()[1].Messages
	var summary truncate.SQLSummary
	require.NoError(t, json.Unmarshal([]byte(msgs[len(msgs)-1].Content), &summary))
	assert.True(t, strings.HasPrefix(summary.Summary, "Revenue: $"), summary.Summary)
	assert.Contains(t, summary.Summary, "1 items returned")

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(summary.Data), &out))
	assert.Equal(t, "2025-06", out["time_period"])
}
