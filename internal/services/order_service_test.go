package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/utils"
)

func sampleOrders(base time.Time) []models.Order {
	mk := func(buyer string, status models.OrderStatus, at time.Time, product string) models.Order {
		o := models.Order{BuyerName: buyer, Status: status, CreatedAt: at,
			Items: []models.OrderItem{{ProductID: product, ProductName: product, Quantity: 1, Price: 100}}}
		o.GenID()
		return o
	}
	return []models.Order{
		mk("Maria Santos", models.OrderPending, base, "Abaca Bag"),
		mk("Jose Rizal", models.OrderDelivered, base.Add(time.Hour), "Leather Sandals"),
		mk("Ana Cruz", models.OrderDelivered, base.Add(2*time.Hour), "Abaca Mat"),
		mk("Pedro Reyes", models.OrderCancelled, base.Add(-48*time.Hour), "Wallet"),
	}
}

func TestFilterOrders(t *testing.T) {
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	orders := sampleOrders(base)

	all := FilterOrders(orders, OrderFilter{})
	require.Len(t, all, 4)
	assert.Equal(t, "Ana Cruz", all[0].BuyerName)
	assert.Equal(t, "Pedro Reyes", all[3].BuyerName)

	delivered := FilterOrders(orders, OrderFilter{Status: models.OrderDelivered})
	assert.Len(t, delivered, 2)

	abaca := FilterOrders(orders, OrderFilter{Query: "ABACA"})
	assert.Len(t, abaca, 2)

	byBuyer := FilterOrders(orders, OrderFilter{Query: "rizal"})
	require.Len(t, byBuyer, 1)
	assert.Equal(t, "Jose Rizal", byBuyer[0].BuyerName)

	byID := FilterOrders(orders, OrderFilter{Query: orders[3].ID.String()[:8]})
	require.NotEmpty(t, byID)
	assert.Equal(t, orders[3].ID, byID[0].ID)

	window := FilterOrders(orders, OrderFilter{From: base, To: base.Add(2 * time.Hour)})
	assert.Len(t, window, 2)
}

func TestOrderTransitions(t *testing.T) {
	assert.True(t, models.CanTransition(models.OrderPending, models.OrderProcessing))
	assert.True(t, models.CanTransition(models.OrderShipped, models.OrderDelivered))
	assert.True(t, models.CanTransition(models.OrderCompleted, models.OrderRefunded))
	assert.False(t, models.CanTransition(models.OrderPending, models.OrderDelivered))
	assert.False(t, models.CanTransition(models.OrderCancelled, models.OrderPending))
	assert.False(t, models.CanTransition(models.OrderShipped, models.OrderCancelled))
	assert.Equal(t, "shipped_at", statusTimestampField(models.OrderShipped))
	assert.Equal(t, "", statusTimestampField(models.OrderProcessing))
}

func TestOrderServiceMongo(t *testing.T) {
	database := utils.SetupTestDB(t, "sellerhub_test_orders", db.OrdersCollection)
	svc := NewOrderService(database, nil)
	ctx := context.Background()
	seller := utils.NewSixID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	orders := sampleOrders(base)
	for i := range orders {
		orders[i].SellerID = seller
		_, err := database.Collection(db.OrdersCollection).InsertOne(ctx, orders[i])
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, seller, OrderFilter{Status: models.OrderDelivered})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.List(ctx, seller, OrderFilter{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := svc.UpdateStatus(ctx, seller, orders[0].ID, models.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, updated.Status)

	_, err = svc.UpdateStatus(ctx, seller, orders[0].ID, models.OrderCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, utils.NewSixID(), orders[0].ID, models.OrderShipped)
	assert.ErrorIs(t, err, ErrNotFound)

	shipped, err := svc.UpdateStatus(ctx, seller, orders[0].ID, models.OrderShipped)
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)

	sales, err := svc.SalesBetween(ctx, seller, base.Add(-time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, sales, 2)
}
