package model

import "github.com/google/uuid"

type Address struct {
	BaseModel
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Label      string    `gorm:"type:varchar(50)" json:"label"`
	Recipient  string    `gorm:"type:varchar(255);not null" json:"recipient" validate:"required"`
	Phone      string    `gorm:"type:varchar(20);not null" json:"phone" validate:"required"`
	Street     string    `gorm:"type:text;not null" json:"street" validate:"required"`
	City       string    `gorm:"type:varchar(100);not null" json:"city" validate:"required"`
	Province   string    `gorm:"type:varchar(100)" json:"province"`
	PostalCode string    `gorm:"type:varchar(10)" json:"postal_code" validate:"omitempty,numeric"`
	IsDefault  bool      `gorm:"default:false" json:"is_default"`
}
