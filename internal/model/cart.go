package model

import "github.com/google/uuid"

// Cart is the per-user singleton created on first add.
type Cart struct {
	BaseModel
	UserID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Items  []CartItem `json:"items,omitempty"`
}

type CartItem struct {
	BaseModel
	CartID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `gorm:"not null" json:"quantity"`
}

// CartLine is the display view of a cart item with a product snapshot.
type CartLine struct {
	ItemID    uuid.UUID `json:"item_id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	Stock     int       `json:"stock"`
	Unit      string    `json:"unit"`
	ImageURL  string    `json:"image_url,omitempty"`
	LineTotal int64     `json:"line_total"`
}

type CartView struct {
	CartID   uuid.UUID  `json:"cart_id"`
	Lines    []CartLine `json:"items"`
	Subtotal int64      `json:"subtotal"`
}
