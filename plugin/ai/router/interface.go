// Package router selects the skill and tool subset that handles a query.
package router

import "github.com/hrygo/skillgate/plugin/ai/skill"

// RouterService routes free-text queries to registered skills.
type RouterService interface {
	// Route returns the best match, or nil when no trigger fires.
	Route(query string) *skill.Match

	// RouteWithFallback never returns nil. Unmatched queries get the
	// fallback skill at FallbackConfidence.
	RouteWithFallback(query string) *skill.Match

	// Explain renders a human-readable routing trace.
	Explain(query string) string

	// PromptFor returns base enhanced with the named skill, or base when
	// the skill is unknown.
	PromptFor(name, base string) string

	// ToolsFor returns the tool names of a skill, empty when unknown.
	ToolsFor(name string) []string

	// List describes every registered skill by descending priority.
	List() []Info
}

// Info is the listing view of a skill.
type Info struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Priority     int      `json:"priority"`
	Tools        []string `json:"tools"`
	TriggerCount int      `json:"trigger_count"`
}
