package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/store"
)

func TestShipmentRequestStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreateShipmentRequest(ctx, &store.ShipmentRequest{
		ProductID:   "MS-271",
		ProductName: "MS 271 Farm Boss",
		Quantity:    50,
		Destination: "Southwest",
		Month:       6,
		Year:        2025,
	})
	require.NoError(t, err)
	assert.Greater(t, created.ID, int64(0))
	assert.Greater(t, created.CreatedTs, int64(0))
	assert.Equal(t, store.ShipmentPending, created.Status)

	pending := store.ShipmentPending
	list, err := ts.ListShipmentRequests(ctx, &store.FindShipmentRequest{Status: &pending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "MS-271", list[0].ProductID)
	assert.Equal(t, int32(50), list[0].Quantity)

	destination := "Northeast"
	list, err = ts.ListShipmentRequests(ctx, &store.FindShipmentRequest{Destination: &destination})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "APPROVED", list[0].Status)

	list, err = ts.ListShipmentRequests(ctx, &store.FindShipmentRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestShipmentRequestWithoutProductID(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreateShipmentRequest(ctx, &store.ShipmentRequest{
		ProductName: "Unknown Saw",
		Quantity:    5,
		Destination: "West",
		Month:       1,
		Year:        2025,
	})
	require.NoError(t, err)

	list, err := ts.ListShipmentRequests(ctx, &store.FindShipmentRequest{})
	require.NoError(t, err)
	var found *store.ShipmentRequest
	for _, request := range list {
		if request.ID == created.ID {
			found = request
		}
	}
	require.NotNil(t, found)
	assert.Empty(t, found.ProductID)
}
