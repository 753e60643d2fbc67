package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/store"
)

const productColumns = "p.product_id, p.product_name, p.category, p.power_type, p.description, p.msrp, p.weight_lbs, p.features"

func (d *DB) ListProducts(ctx context.Context, find *store.FindProduct) ([]*store.Product, error) {
	where, args := []string{"1 = 1"}, []any{}
	if len(find.IDs) > 0 {
		where = append(where, "p.product_id IN "+inList(len(args)+1, len(find.IDs)))
		for _, id := range find.IDs {
			args = append(args, id)
		}
	}
	if len(find.Names) > 0 {
		where = append(where, "LOWER(p.product_name) IN "+inList(len(args)+1, len(find.Names)))
		for _, name := range find.Names {
			args = append(args, strings.ToLower(name))
		}
	}
	if find.Category != nil {
		where, args = append(where, "p.category = "+placeholder(len(args)+1)), append(args, *find.Category)
	}
	if find.PowerType != nil {
		where, args = append(where, "p.power_type = "+placeholder(len(args)+1)), append(args, *find.PowerType)
	}

	query := "SELECT " + productColumns + " FROM products p WHERE " + strings.Join(where, " AND ") + " ORDER BY p.product_id"
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list products")
	}
	defer rows.Close()

	list := []*store.Product{}
	for rows.Next() {
		product, _, err := scanProduct(rows, false)
		if err != nil {
			return nil, err
		}
		list = append(list, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// UpsertProductEmbedding stores the vector as a JSON array.
func (d *DB) UpsertProductEmbedding(ctx context.Context, embedding *store.ProductEmbedding) (*store.ProductEmbedding, error) {
	raw, err := json.Marshal(embedding.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode product embedding")
	}
	stmt := `
		INSERT INTO product_embedding (product_id, embedding, model)
		VALUES (` + placeholders(3) + `)
		ON CONFLICT (product_id)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			updated_ts = CAST(strftime('%s', 'now') AS INTEGER)
		RETURNING updated_ts
	`
	if err := d.db.QueryRowContext(ctx, stmt, embedding.ProductID, string(raw), embedding.Model).Scan(&embedding.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert product embedding")
	}
	return embedding, nil
}

// SearchProducts loads the filtered candidates and ranks them by cosine
// similarity in process.
func (d *DB) SearchProducts(ctx context.Context, opts *store.ProductSearchOptions) ([]*store.ProductMatch, error) {
	if len(opts.Vector) == 0 {
		return nil, errors.New("search vector is empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	where, args := []string{"1 = 1"}, []any{}
	if opts.Category != nil {
		where, args = append(where, "p.category = "+placeholder(len(args)+1)), append(args, *opts.Category)
	}
	if opts.PowerType != nil {
		where, args = append(where, "p.power_type = "+placeholder(len(args)+1)), append(args, *opts.PowerType)
	}
	if opts.MaxWeight != nil {
		where, args = append(where, "p.weight_lbs <= "+placeholder(len(args)+1)), append(args, *opts.MaxWeight)
	}
	if opts.MaxPrice != nil {
		where, args = append(where, "p.msrp <= "+placeholder(len(args)+1)), append(args, *opts.MaxPrice)
	}

	query := `
		SELECT ` + productColumns + `, e.embedding
		FROM products p
		INNER JOIN product_embedding e ON p.product_id = e.product_id
		WHERE ` + strings.Join(where, " AND ")

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search products")
	}
	defer rows.Close()

	list := []*store.ProductMatch{}
	for rows.Next() {
		product, vector, err := scanProduct(rows, true)
		if err != nil {
			return nil, err
		}
		list = append(list, &store.ProductMatch{Product: product, Score: cosine(opts.Vector, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func scanProduct(rows *sql.Rows, withEmbedding bool) (*store.Product, []float32, error) {
	var product store.Product
	var features, embedding string
	dest := []any{
		&product.ID,
		&product.Name,
		&product.Category,
		&product.PowerType,
		&product.Description,
		&product.MSRP,
		&product.WeightLbs,
		&features,
	}
	if withEmbedding {
		dest = append(dest, &embedding)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, nil, errors.Wrap(err, "failed to scan product")
	}
	if features != "" {
		if err := json.Unmarshal([]byte(features), &product.Features); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to decode features of product %s", product.ID)
		}
	}

	var vector []float32
	if withEmbedding {
		if err := json.Unmarshal([]byte(embedding), &vector); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to decode embedding of product %s", product.ID)
		}
	}
	return &product, vector, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
