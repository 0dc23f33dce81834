package model

import (
	"fmt"

	apperrors "go-material-store/pkg/errors"
)

type Product struct {
	BaseModel
	SKU         string `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name        string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Stock       int    `gorm:"not null;default:0;check:stock >= 0" json:"stock" validate:"gte=0"`
	Unit        string `gorm:"type:varchar(20)" json:"unit" validate:"required"`
	Price       int64  `gorm:"not null;default:0" json:"price" validate:"gt=0"`
	MinOrder    int    `gorm:"not null;default:1" json:"min_order" validate:"gte=0"`
	MultiOrder  int    `gorm:"not null;default:1" json:"multi_order" validate:"gte=0"`
	ImageURL    string `gorm:"type:varchar(500)" json:"image_url,omitempty"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	CreatedByUserID *string `gorm:"type:varchar(255)" json:"created_by_user_id,omitempty"`
	UpdatedByUserID *string `gorm:"type:varchar(255)" json:"updated_by_user_id,omitempty"`
}

// ValidateQuantity checks the per-product ordering rules (minimum and multiple).
func (p *Product) ValidateQuantity(qty int) error {
	if qty <= 0 {
		return apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	if p.MinOrder > 1 && qty < p.MinOrder {
		return apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("minimum order for %s is %d %s", p.Name, p.MinOrder, p.Unit))
	}
	if p.MultiOrder > 1 && qty%p.MultiOrder != 0 {
		return apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("%s must be ordered in multiples of %d", p.Name, p.MultiOrder))
	}
	return nil
}

// StockShortage is the detail attached to INSUFFICIENT_STOCK errors.
type StockShortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStock builds the typed error for a failed reservation or cart check.
func InsufficientStock(p *Product, requested int) error {
	return apperrors.New(apperrors.CodeInsufficientStock,
		fmt.Sprintf("insufficient stock for %s", p.Name)).
		WithDetails(StockShortage{ProductID: p.ID.String(), Requested: requested, Available: p.Stock})
}
