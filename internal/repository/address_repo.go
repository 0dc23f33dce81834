package repository

import (
	"context"

	"go-material-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AddressRepository interface {
	Create(ctx context.Context, address *model.Address) error
	FindByIDForUser(ctx context.Context, userID, addressID uuid.UUID) (*model.Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Address, error)
}

type addressRepo struct {
	db *gorm.DB
}

func NewAddressRepo(db *gorm.DB) AddressRepository {
	return &addressRepo{db}
}

func (r *addressRepo) Create(ctx context.Context, address *model.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// FindByIDForUser returns gorm.ErrRecordNotFound for addresses owned by someone else.
func (r *addressRepo) FindByIDForUser(ctx context.Context, userID, addressID uuid.UUID) (*model.Address, error) {
	var address model.Address
	err := r.db.WithContext(ctx).
		First(&address, "id = ? AND user_id = ?", addressID, userID).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *addressRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	var addresses []model.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&addresses).Error
	return addresses, err
}
