package model

import (
	"time"

	"github.com/google/uuid"
)

type ShipmentStatus string

const (
	ShipmentPending    ShipmentStatus = "PENDING"
	ShipmentProcessing ShipmentStatus = "PROCESSING"
	ShipmentShipped    ShipmentStatus = "SHIPPED"
	ShipmentDelivered  ShipmentStatus = "DELIVERED"
	ShipmentCancelled  ShipmentStatus = "CANCELLED"
)

type Shipment struct {
	BaseModel
	OrderID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	Status         ShipmentStatus `gorm:"type:varchar(20);not null" json:"status"`
	DeliveryNumber string         `gorm:"type:varchar(100)" json:"delivery_number,omitempty"`
	Courier        string         `gorm:"type:varchar(50)" json:"courier,omitempty"`
	ShippedAt      *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	Items          []ShipmentItem `json:"items,omitempty"`
}

// ShipmentItem is copied from the order item so later catalog edits don't touch it.
type ShipmentItem struct {
	BaseModel
	ShipmentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"shipment_id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	ProductName string    `gorm:"type:varchar(255)" json:"product_name"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Unit        string    `gorm:"type:varchar(20)" json:"unit"`
}
