package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/realtime"
	"gawangliliw/sellerhub/internal/utils"
	"gawangliliw/sellerhub/internal/view"
)

// OrderFilter narrows the transactions table. Zero values match everything.
type OrderFilter struct {
	Status models.OrderStatus
	From   time.Time
	To     time.Time
	Query  string
}

// OrderChange is one live update of the order feed.
type OrderChange struct {
	Kind  realtime.Kind `json:"kind"`
	ID    utils.SixID   `json:"id"`
	Order *models.Order `json:"order,omitempty"`
}

// IOrderService backs the transactions page and the dashboard.
type IOrderService interface {
	List(ctx context.Context, sellerID utils.SixID, f OrderFilter) ([]models.Order, error)
	UpdateStatus(ctx context.Context, sellerID, orderID utils.SixID, status models.OrderStatus) (*models.Order, error)
	SalesBetween(ctx context.Context, sellerID utils.SixID, from, to time.Time) ([]models.Order, error)
	WatchOrders(ctx context.Context, sellerID utils.SixID, clientID string, emit func(OrderChange) error) error
}

type orderService struct {
	db   *mongo.Database
	live Subscriber
}

func NewOrderService(database *mongo.Database, live Subscriber) IOrderService {
	return &orderService{db: database, live: live}
}

func (s *orderService) orders() *mongo.Collection {
	return s.db.Collection(db.OrdersCollection)
}

// MatchesQuery does a case-insensitive search over order id, buyer name and
// product names.
func MatchesQuery(o *models.Order, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(o.ID.String()), q) || strings.Contains(strings.ToLower(o.BuyerName), q) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.ProductName), q) {
			return true
		}
	}
	return false
}

// FilterOrders applies f and sorts newest first.
func FilterOrders(orders []models.Order, f OrderFilter) []models.Order {
	out := view.Filter(orders, func(o models.Order) bool {
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
			return false
		}
		return MatchesQuery(&o, f.Query)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *orderService) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.orders().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing orders: %w", err)
	}
	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("error decoding orders: %w", err)
	}
	return orders, nil
}

// List pushes status and date bounds into the query and applies the text
// search in memory.
func (s *orderService) List(ctx context.Context, sellerID utils.SixID, f OrderFilter) ([]models.Order, error) {
	if f.Status != "" && !models.IsValidOrderStatus(f.Status) {
		return nil, invalidf("unknown status %q", f.Status)
	}
	filter := bson.M{"seller_id": sellerID}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lt"] = f.To
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	orders, err := s.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FilterOrders(orders, f), nil
}

// SalesBetween returns the seller's delivered and completed orders created
// in [from, to).
func (s *orderService) SalesBetween(ctx context.Context, sellerID utils.SixID, from, to time.Time) ([]models.Order, error) {
	return s.find(ctx, bson.M{
		"seller_id":  sellerID,
		"status":     bson.M{"$in": bson.A{models.OrderDelivered, models.OrderCompleted}},
		"created_at": bson.M{"$gte": from, "$lt": to},
	})
}

func statusTimestampField(status models.OrderStatus) string {
	switch status {
	case models.OrderShipped:
		return "shipped_at"
	case models.OrderDelivered:
		return "delivered_at"
	case models.OrderCompleted:
		return "completed_at"
	case models.OrderCancelled:
		return "cancelled_at"
	}
	return ""
}

// UpdateStatus moves an order along the transition table. The update is
// conditional on the status read, so a concurrent change makes it fail
// with ErrInvalidTransition instead of overwriting.
func (s *orderService) UpdateStatus(ctx context.Context, sellerID, orderID utils.SixID, status models.OrderStatus) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, invalidf("unknown status %q", status)
	}
	var current models.Order
	err := s.orders().FindOne(ctx, bson.M{"_id": orderID, "seller_id": sellerID}).Decode(&current)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding order %s: %w", orderID, err)
	}
	if !models.CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
	}

	now := time.Now().UTC()
	set := bson.M{"status": status, "updated_at": now}
	if field := statusTimestampField(status); field != "" {
		set[field] = now
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Order
	err = s.orders().FindOneAndUpdate(ctx,
		bson.M{"_id": orderID, "seller_id": sellerID, "status": current.Status},
		bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("error updating order %s: %w", orderID, err)
	}
	logger.Log.Info("order_status_changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)))
	return &updated, nil
}

// WatchOrders relays add/modify/remove events for the seller's orders.
func (s *orderService) WatchOrders(ctx context.Context, sellerID utils.SixID, clientID string, emit func(OrderChange) error) error {
	events, sub, err := live(ctx, s.live, liveKey(sellerID, clientID, "orders"), realtime.Query{
		Collection: db.OrdersCollection,
		Match:      bson.D{{Key: "seller_id", Value: sellerID}},
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()

	known := make(map[utils.SixID]struct{})
	cursor, err := s.orders().Find(ctx, bson.M{"seller_id": sellerID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return fmt.Errorf("error listing order ids: %w", err)
	}
	var ids []struct {
		ID utils.SixID `bson:"_id"`
	}
	if err := cursor.All(ctx, &ids); err != nil {
		return fmt.Errorf("error decoding order ids: %w", err)
	}
	for _, id := range ids {
		known[id.ID] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return sub.Err()
		case ev := <-events:
			change := OrderChange{Kind: ev.Kind, ID: ev.ID}
			if ev.Kind == realtime.Removed {
				// Deletes are not filtered by seller upstream.
				if _, ok := known[ev.ID]; !ok {
					continue
				}
				delete(known, ev.ID)
			} else {
				var o models.Order
				if err := ev.DecodeDoc(&o); err != nil {
					logger.Log.Warn("order_decode_failed", zap.Error(err))
					continue
				}
				known[o.ID] = struct{}{}
				change.Order = &o
			}
			if err := emit(change); err != nil {
				return err
			}
		}
	}
}
