package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/store"
)

var (
	productCategories = []string{"Chainsaws", "Trimmers", "Blowers", "Hedge Trimmers", "Pressure Washers", "Lawn Mowers"}
	powerTypes        = []string{"Gas", "Battery", "Electric"}
)

var experienceHints = map[string]string{
	"homeowner":    "Homeowner",
	"professional": "Professional",
	"commercial":   "Professional",
}

// ProductText is the text embedded for a product.
func ProductText(p *store.Product) string {
	parts := []string{p.Name, p.Category, p.PowerType, p.Description}
	if len(p.Features) > 0 {
		parts = append(parts, strings.Join(p.Features, ", "))
	}
	return strings.Join(parts, ". ")
}

// IndexProducts embeds every catalog product and stores the vectors. It
// returns the number of products indexed.
func IndexProducts(ctx context.Context, s *store.Store, embedder ai.EmbeddingService, model string) (int, error) {
	products, err := s.ListProducts(ctx, &store.FindProduct{})
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = ProductText(p)
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, errors.Wrap(err, "failed to embed products")
	}
	if len(vectors) != len(products) {
		return 0, errors.Errorf("embedded %d of %d products", len(vectors), len(products))
	}

	for i, p := range products {
		if _, err := s.UpsertProductEmbedding(ctx, &store.ProductEmbedding{
			ProductID: p.ID,
			Embedding: vectors[i],
			Model:     model,
		}); err != nil {
			return i, err
		}
	}
	return len(products), nil
}

// productSearcher ranks catalog products for a query, by vector similarity
// when an embedder and stored vectors are available and by keyword overlap
// otherwise.
type productSearcher struct {
	store    *store.Store
	embedder ai.EmbeddingService
}

type productQuery struct {
	text      string
	category  string
	powerType string
	maxWeight float64
	maxPrice  float64
	limit     int
}

func (q productQuery) accepts(p *store.Product) bool {
	if q.category != "" && !strings.EqualFold(p.Category, q.category) {
		return false
	}
	if q.powerType != "" && !strings.EqualFold(p.PowerType, q.powerType) {
		return false
	}
	if q.maxWeight > 0 && p.WeightLbs > q.maxWeight {
		return false
	}
	if q.maxPrice > 0 && p.MSRP > q.maxPrice {
		return false
	}
	return true
}

// search returns the matches and the method that produced them.
func (ps *productSearcher) search(ctx context.Context, q productQuery) ([]*store.ProductMatch, string, error) {
	if ps.embedder != nil {
		matches, err := ps.vectorSearch(ctx, q)
		if err == nil && len(matches) > 0 {
			return matches, "semantic", nil
		}
		if err != nil {
			slog.Warn("vector product search failed, using keyword matching", "error", err)
		}
	}
	matches, err := ps.keywordSearch(ctx, q)
	return matches, "keyword", err
}

func (ps *productSearcher) vectorSearch(ctx context.Context, q productQuery) ([]*store.ProductMatch, error) {
	vector, err := ps.embedder.Embed(ctx, q.text)
	if err != nil {
		return nil, err
	}
	opts := &store.ProductSearchOptions{Vector: vector, Limit: q.limit * 3}
	if category, ok := canonical(q.category, productCategories); ok {
		opts.Category = &category
	}
	if powerType, ok := canonical(q.powerType, powerTypes); ok {
		opts.PowerType = &powerType
	}
	if q.maxWeight > 0 {
		opts.MaxWeight = &q.maxWeight
	}
	if q.maxPrice > 0 {
		opts.MaxPrice = &q.maxPrice
	}
	candidates, err := ps.store.SearchProducts(ctx, opts)
	if err != nil {
		return nil, err
	}
	var matches []*store.ProductMatch
	for _, m := range candidates {
		if q.accepts(m.Product) {
			matches = append(matches, m)
		}
		if len(matches) == q.limit {
			break
		}
	}
	return matches, nil
}

func (ps *productSearcher) keywordSearch(ctx context.Context, q productQuery) ([]*store.ProductMatch, error) {
	products, err := ps.store.ListProducts(ctx, &store.FindProduct{})
	if err != nil {
		return nil, err
	}
	terms := keywordTerms(q.text)

	var matches []*store.ProductMatch
	for _, p := range products {
		if !q.accepts(p) {
			continue
		}
		score := keywordScore(terms, strings.ToLower(ProductText(p)))
		if score == 0 && len(terms) > 0 {
			continue
		}
		matches = append(matches, &store.ProductMatch{Product: p, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > q.limit {
		matches = matches[:q.limit]
	}
	return matches, nil
}

// canonical returns the entry of known equal to v under case folding.
func canonical(v string, known []string) (string, bool) {
	for _, k := range known {
		if strings.EqualFold(k, v) {
			return k, true
		}
	}
	return "", false
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "best": true, "what": true,
	"which": true, "need": true, "good": true, "that": true, "are": true, "you": true,
}

func keywordTerms(text string) []string {
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(f) > 2 && !stopWords[f] {
			terms = append(terms, strings.TrimSuffix(f, "s"))
		}
	}
	return terms
}

// keywordScore is the share of terms found in text.
func keywordScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return round(float64(hits)/float64(len(terms)), 3)
}

func productRow(m *store.ProductMatch) *payload {
	p := m.Product
	row := newPayload()
	row.Set("product_id", p.ID)
	row.Set("product_name", p.Name)
	row.Set("category", p.Category)
	row.Set("power_type", p.PowerType)
	row.Set("weight_lbs", p.WeightLbs)
	row.Set("msrp", p.MSRP)
	row.Set("description", p.Description)
	row.Set("features", p.Features)
	row.Set("score", round(m.Score, 3))
	return row
}

// SearchProductsTool finds catalog products for a natural language need.
type SearchProductsTool struct {
	searcher *productSearcher
}

// NewSearchProductsTool creates a new product search tool. A nil embedder
// selects keyword matching.
func NewSearchProductsTool(s *store.Store, embedder ai.EmbeddingService) *SearchProductsTool {
	return &SearchProductsTool{searcher: &productSearcher{store: s, embedder: embedder}}
}

// Name returns the tool name.
func (t *SearchProductsTool) Name() string {
	return SearchProductsName
}

// Description returns the tool description.
func (t *SearchProductsTool) Description() string {
	return `Search products with a natural language query about features, use cases or "which product is best for...". NOT for sales numbers or inventory counts.`
}

// InputType returns the JSON schema for the tool arguments.
func (t *SearchProductsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":      map[string]any{"type": "string", "description": "Desired characteristics, e.g. 'lightweight battery trimmer for residential use'"},
			"category":   map[string]any{"type": "string", "enum": productCategories},
			"power_type": map[string]any{"type": "string", "enum": powerTypes},
			"max_weight": map[string]any{"type": "number", "description": "Maximum weight in pounds"},
			"max_price":  map[string]any{"type": "number", "description": "Maximum MSRP in dollars"},
			"top_k":      map[string]any{"type": "integer", "description": "Results to return (default 5, max 10)"},
		},
		"required": []string{"query"},
	}
}

// SearchProductsInput represents the tool arguments.
type SearchProductsInput struct {
	Query     string  `json:"query"`
	Category  string  `json:"category"`
	PowerType string  `json:"power_type"`
	MaxWeight float64 `json:"max_weight"`
	MaxPrice  float64 `json:"max_price"`
	TopK      int     `json:"top_k"`
}

// Run executes the tool.
func (t *SearchProductsTool) Run(ctx context.Context, input string) (*Result, error) {
	var in SearchProductsInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return ErrorResult("query is required"), nil
	}
	out, err := t.searchPayload(ctx, productQuery{
		text:      in.Query,
		category:  in.Category,
		powerType: in.PowerType,
		maxWeight: in.MaxWeight,
		maxPrice:  in.MaxPrice,
		limit:     clampInt(in.TopK, 1, 10, 5),
	})
	if err != nil {
		return nil, err
	}
	return JSONResult(out)
}

func (t *SearchProductsTool) searchPayload(ctx context.Context, q productQuery) (*payload, error) {
	matches, method, err := t.searcher.search(ctx, q)
	if err != nil {
		return nil, err
	}

	out := newPayload()
	if len(matches) == 0 {
		out.Set("status", "no_results")
		out.Set("message", fmt.Sprintf("No products found matching '%s' with the specified filters.", q.text))
		out.Set("filters_applied", searchFilters(q))
		return out, nil
	}
	rows := make([]*payload, len(matches))
	for i, m := range matches {
		rows[i] = productRow(m)
	}
	out.Set("status", "success")
	out.Set("query", q.text)
	out.Set("search_method", method)
	out.Set("result_count", len(rows))
	out.Set("products", rows)
	return out, nil
}

func searchFilters(q productQuery) map[string]any {
	m := map[string]any{}
	if q.category != "" {
		m["category"] = q.category
	}
	if q.powerType != "" {
		m["power_type"] = q.powerType
	}
	if q.maxWeight > 0 {
		m["max_weight"] = q.maxWeight
	}
	if q.maxPrice > 0 {
		m["max_price"] = q.maxPrice
	}
	return m
}

// CompareProductsTool lays out two to four products side by side.
type CompareProductsTool struct {
	store *store.Store
}

// NewCompareProductsTool creates a new product comparison tool.
func NewCompareProductsTool(s *store.Store) *CompareProductsTool {
	return &CompareProductsTool{store: s}
}

// Name returns the tool name.
func (t *CompareProductsTool) Name() string {
	return CompareProductsName
}

// Description returns the tool description.
func (t *CompareProductsTool) Description() string {
	return "Compare 2-4 products side by side by product ID, e.g. after search_products. Returns specifications with the lightest and least expensive highlighted."
}

// InputType returns the JSON schema for the tool arguments.
func (t *CompareProductsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_ids": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "2-4 product IDs, e.g. ['MS-170', 'MS-271']",
				"minItems":    2,
				"maxItems":    4,
			},
		},
		"required": []string{"product_ids"},
	}
}

// CompareProductsInput represents the tool arguments.
type CompareProductsInput struct {
	ProductIDs []string `json:"product_ids"`
}

// Run executes the tool.
func (t *CompareProductsTool) Run(ctx context.Context, input string) (*Result, error) {
	var in CompareProductsInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	if len(in.ProductIDs) < 2 {
		return ErrorResult("Need at least 2 products to compare"), nil
	}
	if len(in.ProductIDs) > 4 {
		in.ProductIDs = in.ProductIDs[:4]
	}

	var products []*store.Product
	var missing []string
	for _, id := range in.ProductIDs {
		p, err := resolveProduct(ctx, t.store, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			missing = append(missing, id)
			continue
		}
		products = append(products, p)
	}
	if len(products) == 0 {
		return ErrorResult(fmt.Sprintf("Products not found: %s", strings.Join(in.ProductIDs, ", "))), nil
	}

	lightest, cheapest := products[0], products[0]
	rows := make([]*payload, len(products))
	for i, p := range products {
		if p.WeightLbs < lightest.WeightLbs {
			lightest = p
		}
		if p.MSRP < cheapest.MSRP {
			cheapest = p
		}
		row := productRow(&store.ProductMatch{Product: p})
		row.Delete("score")
		rows[i] = row
	}

	out := newPayload()
	out.Set("status", "success")
	out.Set("products_compared", len(rows))
	out.Set("comparison", rows)
	out.Set("lightest", lightest.ID)
	out.Set("lowest_price", cheapest.ID)
	if len(missing) > 0 {
		out.Set("not_found", missing)
	}
	return JSONResult(out)
}

// ProductRecommendationsTool recommends products for a described use case.
type ProductRecommendationsTool struct {
	search *SearchProductsTool
}

// NewProductRecommendationsTool creates a new recommendation tool.
func NewProductRecommendationsTool(s *store.Store, embedder ai.EmbeddingService) *ProductRecommendationsTool {
	return &ProductRecommendationsTool{search: NewSearchProductsTool(s, embedder)}
}

// Name returns the tool name.
func (t *ProductRecommendationsTool) Name() string {
	return ProductRecommendationsName
}

// Description returns the tool description.
func (t *ProductRecommendationsTool) Description() string {
	return "Recommend products for a described use case, optionally within a budget and for an experience level (homeowner, professional, commercial)."
}

// InputType returns the JSON schema for the tool arguments.
func (t *ProductRecommendationsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"use_case":         map[string]any{"type": "string", "description": "Intended use, e.g. 'clearing brush on a 5 acre property'"},
			"preferences":      map[string]any{"type": "string", "description": "Free-form preferences, e.g. 'quiet, battery'"},
			"budget":           map[string]any{"type": "number", "description": "Maximum budget in dollars"},
			"experience_level": map[string]any{"type": "string", "enum": []string{"homeowner", "professional", "commercial"}},
			"top_k":            map[string]any{"type": "integer", "description": "Recommendations to return (default 3)"},
		},
		"required": []string{"use_case"},
	}
}

// ProductRecommendationsInput represents the tool arguments.
type ProductRecommendationsInput struct {
	UseCase         string  `json:"use_case"`
	Preferences     string  `json:"preferences"`
	Budget          float64 `json:"budget"`
	ExperienceLevel string  `json:"experience_level"`
	TopK            int     `json:"top_k"`
}

// Run executes the tool.
func (t *ProductRecommendationsTool) Run(ctx context.Context, input string) (*Result, error) {
	var in ProductRecommendationsInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	if strings.TrimSpace(in.UseCase) == "" {
		return ErrorResult("use_case is required"), nil
	}

	query := strings.TrimSpace(in.UseCase + " " + in.Preferences)
	if hint, ok := experienceHints[strings.ToLower(in.ExperienceLevel)]; ok {
		query = hint + " " + query
	}
	out, err := t.search.searchPayload(ctx, productQuery{
		text:     query,
		maxPrice: in.Budget,
		limit:    clampInt(in.TopK, 1, 10, 3),
	})
	if err != nil {
		return nil, err
	}

	if status, _ := out.Get("status"); status == "success" {
		rc := newPayload()
		rc.Set("use_case", in.UseCase)
		if in.Preferences != "" {
			rc.Set("preferences", in.Preferences)
		}
		if in.Budget > 0 {
			rc.Set("budget", in.Budget)
		}
		if in.ExperienceLevel != "" {
			rc.Set("experience_level", in.ExperienceLevel)
		}
		out.Set("recommendation_context", rc)
	}
	return JSONResult(out)
}
