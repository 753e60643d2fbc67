package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/store"
)

const productColumns = "p.product_id, p.product_name, p.category, p.power_type, p.description, p.msrp, p.weight_lbs, p.features"

func (d *DB) ListProducts(ctx context.Context, find *store.FindProduct) ([]*store.Product, error) {
	where, args := []string{"1 = 1"}, []any{}
	if len(find.IDs) > 0 {
		where, args = append(where, "p.product_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.IDs))
	}
	if len(find.Names) > 0 {
		names := make([]string, len(find.Names))
		for i, name := range find.Names {
			names[i] = strings.ToLower(name)
		}
		where, args = append(where, "LOWER(p.product_name) = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(names))
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
		product, err := scanProduct(rows)
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

// UpsertProductEmbedding inserts or updates a product embedding.
func (d *DB) UpsertProductEmbedding(ctx context.Context, embedding *store.ProductEmbedding) (*store.ProductEmbedding, error) {
	stmt := `
		INSERT INTO product_embedding (product_id, embedding, model)
		VALUES (` + placeholders(3) + `)
		ON CONFLICT (product_id)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			updated_ts = EXTRACT(EPOCH FROM NOW())
		RETURNING updated_ts
	`
	vector := pgvector.NewVector(embedding.Embedding)
	if err := d.db.QueryRowContext(ctx, stmt, embedding.ProductID, vector, embedding.Model).Scan(&embedding.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert product embedding")
	}
	return embedding, nil
}

// SearchProducts performs vector similarity search using pgvector.
func (d *DB) SearchProducts(ctx context.Context, opts *store.ProductSearchOptions) ([]*store.ProductMatch, error) {
	if len(opts.Vector) == 0 {
		return nil, errors.New("search vector is empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	// The <=> operator is cosine distance, so ascending order is most similar first.
	where, args := []string{"1 = 1"}, []any{pgvector.NewVector(opts.Vector)}
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
		SELECT ` + productColumns + `, 1 - (e.embedding <=> $1) AS score
		FROM products p
		INNER JOIN product_embedding e ON p.product_id = e.product_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.embedding <=> $1
		LIMIT ` + fmt.Sprintf("%d", limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search products")
	}
	defer rows.Close()

	list := []*store.ProductMatch{}
	for rows.Next() {
		var product store.Product
		var features string
		var score float64
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Category,
			&product.PowerType,
			&product.Description,
			&product.MSRP,
			&product.WeightLbs,
			&features,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan product match")
		}
		if err := decodeFeatures(features, &product); err != nil {
			return nil, err
		}
		list = append(list, &store.ProductMatch{Product: &product, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func scanProduct(rows *sql.Rows) (*store.Product, error) {
	var product store.Product
	var features string
	if err := rows.Scan(
		&product.ID,
		&product.Name,
		&product.Category,
		&product.PowerType,
		&product.Description,
		&product.MSRP,
		&product.WeightLbs,
		&features,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan product")
	}
	if err := decodeFeatures(features, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func decodeFeatures(raw string, product *store.Product) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &product.Features); err != nil {
		return errors.Wrapf(err, "failed to decode features of product %s", product.ID)
	}
	return nil
}
