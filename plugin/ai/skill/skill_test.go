package skill

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrigger(t *testing.T) {
	t.Run("CompilesLookahead", func(t *testing.T) {
		trig, err := NewTrigger(`\bsales\b(?!.*forecast)`)
		require.NoError(t, err)
		assert.True(t, trig.Compiled())
		assert.True(t, trig.Fires("sales last month"))
		assert.False(t, trig.Fires("sales forecast next quarter"))
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		trig := MustTrigger(`chainsaw`)
		assert.True(t, trig.Fires("Best CHAINSAW"))
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := NewTrigger(`(unclosed`)
		assert.Error(t, err)

		_, err = NewTrigger("  ")
		assert.Error(t, err)
	})

	t.Run("UnicodeKeywords", func(t *testing.T) {
		trig := MustTrigger(`kettensäge.*größe`)
		assert.Contains(t, Words("Kettensäge"), "kettensäge")
		assert.Equal(t, 2, trig.Overlap(Words("Welche Kettensäge hat die beste Größe?")))
	})

	t.Run("ZeroValueNeverFires", func(t *testing.T) {
		var trig Trigger
		assert.False(t, trig.Compiled())
		assert.False(t, trig.Fires("anything"))
	})
}

func TestDefaultConfidence(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		query    string
		expected float64
	}{
		{"base", `(red|blue)`, "red", 0.7},
		{"two keywords", `(red|blue)`, "red and blue", 0.8},
		{"three keywords", `(red|blue|green)`, "red blue green", 0.9},
		{"long pattern", `(last|previous|this).*(month|quarter|year).*(revenue|sales|total)`, "last week", 0.7 + 0.1},
		{"long pattern capped", `(last|previous|this).*(month|quarter|year).*(revenue|sales|total)`, "this month revenue", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultConfidence(MustTrigger(tt.pattern), tt.query)
			assert.InDelta(t, tt.expected, got, 1e-9)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("RejectsEmptyName", func(t *testing.T) {
		_, err := New(Definition{Patterns: []string{"x"}})
		assert.Error(t, err)
	})

	t.Run("RejectsBadPattern", func(t *testing.T) {
		_, err := New(Definition{Name: "bad", Patterns: []string{"("}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad")
	})

	t.Run("CopiesTools", func(t *testing.T) {
		tools := []string{"a", "b"}
		s := MustNew(Definition{Name: "s", Patterns: []string{"x"}, Tools: tools})
		tools[0] = "mutated"
		got := s.Tools()
		assert.Equal(t, []string{"a", "b"}, got)
		got[1] = "mutated"
		assert.Equal(t, []string{"a", "b"}, s.Tools())
	})
}

func TestBuiltins(t *testing.T) {
	skills := Builtins()
	require.Len(t, skills, 8)

	seen := make(map[string]bool)
	for _, s := range skills {
		assert.False(t, seen[s.Name()], "duplicate skill %s", s.Name())
		seen[s.Name()] = true
		assert.NotEmpty(t, s.Triggers(), s.Name())
		assert.NotEmpty(t, s.Tools(), s.Name())
		assert.NotEmpty(t, s.Description(), s.Name())
		for _, trig := range s.Triggers() {
			assert.True(t, trig.Compiled(), trig.Pattern())
		}
	}

	priorities := map[string]int{}
	for _, s := range skills {
		priorities[s.Name()] = s.Priority()
	}
	assert.Equal(t, map[string]int{
		ProductExpert:            20,
		SalesAnalyst:             15,
		InventoryAnalyst:         17,
		InsightsAdvisor:          25,
		DealerAnalyst:            22,
		ForecastAnalyst:          24,
		TrendAnalyst:             19,
		ReplenishmentCoordinator: 30,
	}, priorities)
}

func TestReplenishmentConfidence(t *testing.T) {
	r := NewReplenishment()
	anyTrigger := r.Triggers()[0]

	tests := []struct {
		query    string
		expected float64
	}{
		{"replenish fs 111 r for northeast", 0.95},
		{"please restock the ms 500i", 0.95},
		{"please create a shipment", 0.90},
		{"yes go ahead and ship it", 0.90},
		{"pending shipment queue", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.InDelta(t, tt.expected, r.Confidence(anyTrigger, tt.query), 1e-9)
		})
	}
}

func TestEnhancedPrompt(t *testing.T) {
	s := MustNew(Definition{
		Name:     "sales_analyst",
		Prompt:   "Analyze sales.",
		Patterns: []string{"sales"},
		Tools:    []string{"query_sales_data", "other"},
	})

	got := EnhancedPrompt(s, "BASE")
	assert.True(t, strings.HasPrefix(got, "BASE\n\n## Active Skill: sales_analyst\nAnalyze sales.\n\n"))
	assert.True(t, strings.HasSuffix(got, "Available tools for this query: query_sales_data, other\n"))
}
