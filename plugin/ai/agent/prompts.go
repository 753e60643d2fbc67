package agent

import (
	"fmt"
	"os"
	"sync"
)

// PromptVersion identifies a specific version of a prompt template.
type PromptVersion string

const (
	// PromptV1 is the initial prompt version (baseline).
	PromptV1 PromptVersion = "v1"
	// PromptV2 is a shorter variant that spends fewer prompt tokens.
	PromptV2 PromptVersion = "v2"
)

// EnvPromptVersion selects the active system prompt version at startup.
const EnvPromptVersion = "SKILLGATE_PROMPT_VERSION"

// PromptConfig holds versioned prompt templates.
type PromptConfig struct {
	mu sync.RWMutex

	// Version is the currently active prompt version.
	Version PromptVersion

	// Templates maps version IDs to template strings.
	Templates map[PromptVersion]string
}

// DefaultPromptConfig returns the built-in system prompts with the version
// named by EnvPromptVersion active, v1 otherwise.
func DefaultPromptConfig() *PromptConfig {
	c := &PromptConfig{
		Version: PromptV1,
		Templates: map[PromptVersion]string{
			PromptV1: baseSystemPromptV1,
			PromptV2: baseSystemPromptV2,
		},
	}
	if v := os.Getenv(EnvPromptVersion); v != "" {
		_ = c.SetVersion(PromptVersion(v))
	}
	return c
}

// GetTemplate returns the active prompt template, falling back to v1.
func (c *PromptConfig) GetTemplate() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if template, ok := c.Templates[c.Version]; ok {
		return template
	}
	return c.Templates[PromptV1]
}

// SetVersion sets the active prompt version.
func (c *PromptConfig) SetVersion(v PromptVersion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Templates[v]; !ok {
		return fmt.Errorf("prompt version %s not found", v)
	}
	c.Version = v
	return nil
}

// AddTemplate adds or updates a prompt template for a version.
func (c *PromptConfig) AddTemplate(v PromptVersion, template string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Templates == nil {
		c.Templates = make(map[PromptVersion]string)
	}
	c.Templates[v] = template
}

// BaseSystemPrompt is the v1 system prompt every skill prompt extends.
const BaseSystemPrompt = baseSystemPromptV1

const baseSystemPromptV1 = `You are the Analytics Agent, an assistant that helps analysts understand
sales performance, inventory status, dealer coverage, product information and business trends.

## Your Key Capabilities
1. **Proactive Insights**: Surface anomalies and alerts without being asked
2. **Natural Language Queries**: Turn questions into data analysis with the tools provided
3. **Product Knowledge**: Search and compare products using semantic search
4. **Actionable Recommendations**: Do not just show data, suggest what to do

## Conversation Behavior
- When a user opens with a greeting like "Hi", "Good morning" or "What should I know?":
  call get_daily_briefing or get_proactive_insights right away and lead with the most critical insight
- For sales questions call query_sales_data with the right query_type
- For inventory questions call query_inventory_data with the right query_type
- For anomaly detection call detect_anomalies_realtime
- For product questions use search_products, compare_products or get_product_recommendations
- For dealer questions call query_dealer_data
- For trend analysis call analyze_trends
- For forecasting call get_sales_forecast
- For replenishment call create_shipment_request, and get_shipment_requests to review orders

## Response Style
- Lead with the key insight or answer
- Be specific with numbers and percentages
- Format currency clearly ($394.9M, not $394927843)
- End with a recommended action or follow-up question
- Be conversational but professional
`

const baseSystemPromptV2 = `You are the Analytics Agent for sales, inventory, dealer, product and trend questions.
Always answer from tool results, never invent numbers.
Greetings get a daily briefing. Lead with the key figure, format currency as $1.2M,
and close with one recommended action.
`
