package store

// Product is a catalog item.
type Product struct {
	ID          string   `json:"product_id"`
	Name        string   `json:"product_name"`
	Category    string   `json:"category"`
	PowerType   string   `json:"power_type"`
	Description string   `json:"description"`
	MSRP        float64  `json:"msrp"`
	WeightLbs   float64  `json:"weight_lbs"`
	Features    []string `json:"features,omitempty"`
}

// FindProduct specifies the conditions for finding products.
type FindProduct struct {
	IDs       []string
	Names     []string
	Category  *string
	PowerType *string
	Limit     int
}

// ProductEmbedding is the vector of a product's descriptive text.
type ProductEmbedding struct {
	ProductID string
	Embedding []float32
	Model     string
	UpdatedTs int64
}

// ProductSearchOptions configures a similarity search over products.
type ProductSearchOptions struct {
	Vector    []float32
	Category  *string
	PowerType *string
	MaxWeight *float64
	MaxPrice  *float64
	Limit     int
}

// ProductMatch is a product with its similarity to the search vector.
type ProductMatch struct {
	Product *Product `json:"product"`
	Score   float64  `json:"score"`
}
