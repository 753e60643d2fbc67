package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/store"
)

func (d *DB) CreateShipmentRequest(ctx context.Context, create *store.ShipmentRequest) (*store.ShipmentRequest, error) {
	fields := []string{"month", "year", "product_id", "product_name", "quantity", "destination", "status"}
	var productID any
	if create.ProductID != "" {
		productID = create.ProductID
	}
	if create.Status == "" {
		create.Status = store.ShipmentPending
	}
	args := []any{create.Month, create.Year, productID, create.ProductName, create.Quantity, create.Destination, create.Status}

	stmt := "INSERT INTO shipment_requests (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING shipment_request_id, created_ts"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create shipment request")
	}
	return create, nil
}

func (d *DB) ListShipmentRequests(ctx context.Context, find *store.FindShipmentRequest) ([]*store.ShipmentRequest, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}
	if find.Destination != nil {
		where, args = append(where, "destination = "+placeholder(len(args)+1)), append(args, *find.Destination)
	}

	query := `
		SELECT shipment_request_id, created_ts, month, year, COALESCE(product_id, ''), product_name, quantity, destination, status
		FROM shipment_requests
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, shipment_request_id DESC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shipment requests")
	}
	defer rows.Close()

	list := []*store.ShipmentRequest{}
	for rows.Next() {
		var request store.ShipmentRequest
		if err := rows.Scan(
			&request.ID,
			&request.CreatedTs,
			&request.Month,
			&request.Year,
			&request.ProductID,
			&request.ProductName,
			&request.Quantity,
			&request.Destination,
			&request.Status,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan shipment request")
		}
		list = append(list, &request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
