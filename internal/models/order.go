package models

import (
	"time"

	"gawangliliw/sellerhub/internal/utils"
)

// OrderStatus is the order lifecycle.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// orderTransitions lists the statuses a seller may move an order to.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderCompleted, OrderRefunded},
	OrderCompleted:  {OrderRefunded},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidOrderStatus reports whether s is a known status.
func IsValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCompleted, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// IsSale reports whether the order counts toward sales figures.
func (s OrderStatus) IsSale() bool {
	return s == OrderDelivered || s == OrderCompleted
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID   string  `bson:"product_id" json:"product_id"`
	ProductName string  `bson:"product_name" json:"product_name"`
	Quantity    int     `bson:"quantity" json:"quantity"`
	Price       float64 `bson:"price" json:"price"`
}

// Subtotal is quantity times unit price.
func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.Price
}

// Order is a customer purchase record.
type Order struct {
	Base          `bson:",inline"`
	SellerID      utils.SixID `bson:"seller_id" json:"seller_id"`
	BuyerID       utils.SixID `bson:"buyer_id" json:"buyer_id"`
	BuyerName     string      `bson:"buyer_name" json:"buyer_name"`
	Items         []OrderItem `bson:"items" json:"items"`
	Status        OrderStatus `bson:"status" json:"status"`
	PaymentMethod string      `bson:"payment_method" json:"payment_method"`
	ShippingFee   float64     `bson:"shipping_fee" json:"shipping_fee"`
	TotalAmount   float64     `bson:"total_amount" json:"total_amount"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"updated_at"`
	ShippedAt     *time.Time  `bson:"shipped_at,omitempty" json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time  `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CompletedAt   *time.Time  `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CancelledAt   *time.Time  `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
}

// Total returns the stored total, or the item sum plus shipping when the
// stored total is absent.
func (o *Order) Total() float64 {
	if o.TotalAmount > 0 {
		return o.TotalAmount
	}
	sum := o.ShippingFee
	for _, it := range o.Items {
		sum += it.Subtotal()
	}
	return sum
}

// ItemCount is the total quantity across lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
