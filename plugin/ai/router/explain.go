package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/skillgate/plugin/ai/skill"
)

// Explain lists every firing skill with its score, pattern and tools, and
// names the skill Route would select.
func (r *Router) Explain(query string) string {
	lines := []string{"Query: " + query, ""}

	matches := r.candidates(query)
	if len(matches) == 0 {
		lines = append(lines,
			"No skill matched this query",
			fmt.Sprintf("  -> falls back to %s at %.2f confidence", r.fallback, FallbackConfidence))
		return strings.Join(lines, "\n")
	}

	byConfidence := append([]*skill.Match(nil), matches...)
	sort.SliceStable(byConfidence, func(i, j int) bool {
		return byConfidence[i].Confidence > byConfidence[j].Confidence
	})

	lines = append(lines, "Matches found:")
	for _, m := range byConfidence {
		lines = append(lines,
			fmt.Sprintf("  * %s: %.2f confidence (priority: %d)", m.SkillName, m.Confidence, r.priorityOf(m.SkillName)),
			"    Pattern: "+m.MatchedPattern,
			"    Tools: "+strings.Join(m.Tools, ", "))
	}

	best := SelectBest(matches, r.priorityOf)
	lines = append(lines, "", "Selected: "+best.SkillName)
	return strings.Join(lines, "\n")
}
