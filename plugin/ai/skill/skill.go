// Package skill defines routable skills and the built-in analytics skill set.
package skill

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// BaseConfidence is the score of any firing trigger before boosts.
	BaseConfidence = 0.7
	// LongPatternLength is the pattern length above which a trigger counts as specific.
	LongPatternLength = 30
	boostStep         = 0.1
)

// Skill is a named capability with triggers, a tool subset and a prompt fragment.
// Implementations must be immutable after construction.
type Skill interface {
	Name() string
	Description() string
	Triggers() []*Trigger
	Tools() []string
	Prompt() string
	Priority() int
	// Confidence scores a trigger that fired for the lower-cased query.
	Confidence(trigger *Trigger, query string) float64
}

// Match is the outcome of routing a query to a skill.
// MatchedPattern is empty for fallback matches.
type Match struct {
	SkillName      string   `json:"skill_name"`
	Confidence     float64  `json:"confidence"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
	Tools          []string `json:"tools"`
}

// Definition describes a skill declaratively.
type Definition struct {
	Name        string
	Description string
	Prompt      string
	Priority    int
	Patterns    []string
	Tools       []string
}

// Base implements Skill from a Definition using the default confidence rule.
// Skills with custom scoring embed *Base and override Confidence.
type Base struct {
	name        string
	description string
	prompt      string
	priority    int
	triggers    []*Trigger
	tools       []string
}

// New compiles a definition into a skill.
func New(def Definition) (*Base, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, errors.New("skill name is required")
	}
	triggers := make([]*Trigger, 0, len(def.Patterns))
	for _, p := range def.Patterns {
		t, err := NewTrigger(p)
		if err != nil {
			return nil, errors.Wrapf(err, "skill %s", def.Name)
		}
		triggers = append(triggers, t)
	}
	return &Base{
		name:        def.Name,
		description: def.Description,
		prompt:      def.Prompt,
		priority:    def.Priority,
		triggers:    triggers,
		tools:       append([]string(nil), def.Tools...),
	}, nil
}

// MustNew is like New but panics on error. Used for the built-in set.
func MustNew(def Definition) *Base {
	b, err := New(def)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Description() string { return b.description }
func (b *Base) Prompt() string      { return b.prompt }
func (b *Base) Priority() int       { return b.priority }

// Triggers returns the triggers in evaluation order.
func (b *Base) Triggers() []*Trigger {
	return append([]*Trigger(nil), b.triggers...)
}

// Tools returns a copy of the tool list.
func (b *Base) Tools() []string {
	return append([]string(nil), b.tools...)
}

// Confidence applies DefaultConfidence.
func (b *Base) Confidence(trigger *Trigger, query string) float64 {
	return DefaultConfidence(trigger, query)
}

func (b *Base) String() string {
	return fmt.Sprintf("<Skill: %s (%d triggers, %d tools)>", b.name, len(b.triggers), len(b.tools))
}

// DefaultConfidence scores a firing trigger: 0.7 base, +0.1 for a pattern
// longer than 30 characters, +0.1 when at least two pattern keywords occur
// in the query and another +0.1 at three, capped at 1.0.
func DefaultConfidence(trigger *Trigger, query string) float64 {
	confidence := BaseConfidence
	if len(trigger.Pattern()) > LongPatternLength {
		confidence += boostStep
	}
	overlap := trigger.Overlap(Words(query))
	if overlap >= 2 {
		confidence += boostStep
	}
	if overlap >= 3 {
		confidence += boostStep
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// EnhancedPrompt appends the skill's prompt and tool list to a base system prompt.
func EnhancedPrompt(s Skill, base string) string {
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n## Active Skill: ")
	sb.WriteString(s.Name())
	sb.WriteString("\n")
	sb.WriteString(s.Prompt())
	sb.WriteString("\n\nAvailable tools for this query: ")
	sb.WriteString(strings.Join(s.Tools(), ", "))
	sb.WriteString("\n")
	return sb.String()
}
