package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderShipped, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports DELIVERED and CANCELLED.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type Order struct {
	BaseModel
	OrderNumber    string      `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_number"`
	UserID         uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	AddressID      uuid.UUID   `gorm:"type:uuid;not null" json:"address_id"`
	Address        *Address    `json:"address,omitempty"`
	Status         OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	SubtotalAmount int64       `gorm:"not null" json:"subtotal_amount"`
	TaxAmount      int64       `gorm:"not null" json:"tax_amount"`
	TotalAmount    int64       `gorm:"not null" json:"total_amount"`
	PaymentMethod  string      `gorm:"type:varchar(30)" json:"payment_method"`
	Notes          string      `gorm:"type:text" json:"notes,omitempty"`

	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  string     `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`

	Items    []OrderItem `json:"items,omitempty"`
	Payments []Payment   `json:"payments,omitempty"`
	Shipment *Shipment   `json:"shipment,omitempty"`
}

// ActivePayment returns the most recently created payment. Payments are loaded oldest first.
func (o *Order) ActivePayment() *Payment {
	var active *Payment
	for i := range o.Payments {
		p := &o.Payments[i]
		if active == nil || !p.CreatedAt.Before(active.CreatedAt) {
			active = p
		}
	}
	return active
}

func (o *Order) HasSuccessfulPayment() bool {
	for _, p := range o.Payments {
		if p.Status == PaymentSuccess {
			return true
		}
	}
	return false
}

// OrderItem carries the price snapshot taken at checkout.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product     *Product  `json:"product,omitempty"`
	ProductName string    `gorm:"type:varchar(255)" json:"product_name"`
	SKU         string    `gorm:"type:varchar(50)" json:"sku"`
	Unit        string    `gorm:"type:varchar(20)" json:"unit"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Price       int64     `gorm:"not null" json:"price"`
	LineTotal   int64     `gorm:"not null" json:"line_total"`
}
