package router

import (
	"strings"

	"github.com/hrygo/skillgate/plugin/ai/skill"
)

// MatchSkill evaluates a skill's triggers in order against query.
// The first firing trigger decides the match; later triggers are not
// consulted even if they would score higher.
func MatchSkill(s skill.Skill, query string) *skill.Match {
	lower := strings.ToLower(query)
	for _, t := range s.Triggers() {
		if !t.Fires(lower) {
			continue
		}
		return &skill.Match{
			SkillName:      s.Name(),
			Confidence:     s.Confidence(t, lower),
			MatchedPattern: t.Pattern(),
			Tools:          s.Tools(),
		}
	}
	return nil
}

// SelectBest picks the match with the highest confidence, breaking ties by
// skill priority. Remaining ties keep the earliest candidate.
func SelectBest(matches []*skill.Match, priorityOf func(name string) int) *skill.Match {
	var best *skill.Match
	bestPriority := 0
	for _, m := range matches {
		if m == nil {
			continue
		}
		p := priorityOf(m.SkillName)
		if best == nil || m.Confidence > best.Confidence ||
			(m.Confidence == best.Confidence && p > bestPriority) {
			best, bestPriority = m, p
		}
	}
	return best
}
