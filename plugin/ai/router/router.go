package router

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/plugin/ai/skill"
	"github.com/hrygo/skillgate/plugin/ai/truncate"
)

const (
	// DefaultFallbackSkill handles queries no trigger claims.
	DefaultFallbackSkill = skill.SalesAnalyst
	// FallbackConfidence is reported for fallback matches.
	FallbackConfidence = 0.3
)

// ErrInvalidSkill is returned by Register for unusable skill definitions.
var ErrInvalidSkill = errors.New("invalid skill")

// Router is a registry of skills that routes queries by trigger matching.
// It is not safe for concurrent mutation; register skills before serving.
type Router struct {
	skills   []skill.Skill
	fallback string
}

// Option configures a Router.
type Option func(*Router)

// WithFallbackSkill sets the skill used by RouteWithFallback.
func WithFallbackSkill(name string) Option {
	return func(r *Router) {
		if name != "" {
			r.fallback = name
		}
	}
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{fallback: DefaultFallbackSkill}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefault creates a router with the built-in skills registered.
func NewDefault(opts ...Option) *Router {
	r := New(opts...)
	for _, s := range skill.Builtins() {
		r.MustRegister(s)
	}
	return r
}

// Register adds a skill. Skills without a name, without triggers, with an
// uncompiled trigger, or with a name already registered are rejected.
func (r *Router) Register(s skill.Skill) error {
	if s == nil {
		return errors.Wrap(ErrInvalidSkill, "nil skill")
	}
	name := s.Name()
	if strings.TrimSpace(name) == "" {
		return errors.Wrap(ErrInvalidSkill, "empty skill name")
	}
	if r.index(name) >= 0 {
		return errors.Wrapf(ErrInvalidSkill, "skill %s already registered", name)
	}
	triggers := s.Triggers()
	if len(triggers) == 0 {
		return errors.Wrapf(ErrInvalidSkill, "skill %s has no triggers", name)
	}
	for i, t := range triggers {
		if !t.Compiled() {
			return errors.Wrapf(ErrInvalidSkill, "skill %s trigger %d is not compiled", name, i)
		}
	}

	r.skills = append(r.skills, s)
	slog.Debug("registered skill", "skill", name, "priority", s.Priority(), "triggers", len(triggers))
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Router) MustRegister(s skill.Skill) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Unregister removes a skill by name and reports whether it was present.
func (r *Router) Unregister(name string) bool {
	i := r.index(name)
	if i < 0 {
		return false
	}
	r.skills = append(r.skills[:i], r.skills[i+1:]...)
	slog.Debug("unregistered skill", "skill", name)
	return true
}

// Get returns a registered skill.
func (r *Router) Get(name string) (skill.Skill, bool) {
	i := r.index(name)
	if i < 0 {
		return nil, false
	}
	return r.skills[i], true
}

// Skills returns registered skills by descending priority, ties in
// registration order.
func (r *Router) Skills() []skill.Skill {
	out := append([]skill.Skill(nil), r.skills...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}

// Route returns the best matching skill or nil.
func (r *Router) Route(query string) *skill.Match {
	matches := r.candidates(query)
	if len(matches) == 0 {
		slog.Debug("no skill matched", "query", truncate.Runes(query, 50))
		return nil
	}

	best := SelectBest(matches, r.priorityOf)
	slog.Debug("query routed",
		"query", truncate.Runes(query, 50),
		"skill", best.SkillName,
		"confidence", best.Confidence,
		"candidates", len(matches))
	return best
}

// RouteWithFallback is Route with a guaranteed result.
func (r *Router) RouteWithFallback(query string) *skill.Match {
	if m := r.Route(query); m != nil {
		return m
	}
	return &skill.Match{
		SkillName:  r.fallback,
		Confidence: FallbackConfidence,
		Tools:      r.ToolsFor(r.fallback),
	}
}

// FallbackSkill returns the name used for unmatched queries.
func (r *Router) FallbackSkill() string {
	return r.fallback
}

// ToolsFor returns the tools of a skill.
func (r *Router) ToolsFor(name string) []string {
	s, ok := r.Get(name)
	if !ok {
		return []string{}
	}
	return s.Tools()
}

// PromptFor returns base enhanced with the skill's prompt and tool list.
func (r *Router) PromptFor(name, base string) string {
	s, ok := r.Get(name)
	if !ok {
		return base
	}
	return skill.EnhancedPrompt(s, base)
}

// List describes the registered skills.
func (r *Router) List() []Info {
	skills := r.Skills()
	out := make([]Info, 0, len(skills))
	for _, s := range skills {
		out = append(out, Info{
			Name:         s.Name(),
			Description:  s.Description(),
			Priority:     s.Priority(),
			Tools:        s.Tools(),
			TriggerCount: len(s.Triggers()),
		})
	}
	return out
}

// candidates evaluates every skill, highest priority first.
func (r *Router) candidates(query string) []*skill.Match {
	var matches []*skill.Match
	for _, s := range r.Skills() {
		if m := MatchSkill(s, query); m != nil {
			matches = append(matches, m)
		}
	}
	return matches
}

func (r *Router) index(name string) int {
	for i, s := range r.skills {
		if s.Name() == name {
			return i
		}
	}
	return -1
}

func (r *Router) priorityOf(name string) int {
	if s, ok := r.Get(name); ok {
		return s.Priority()
	}
	return 0
}

// truncate shortens a string for log output.
// Ensure Router implements RouterService
var _ RouterService = (*Router)(nil)
