package service

import (
	"context"
	"strings"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"

	"github.com/google/uuid"
)

type AddressRequest struct {
	Label      string `json:"label" validate:"max=50"`
	Recipient  string `json:"recipient" validate:"required,max=255"`
	Phone      string `json:"phone" validate:"required,max=20"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required,max=100"`
	Province   string `json:"province" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"omitempty,numeric,max=10"`
	IsDefault  bool   `json:"is_default"`
}

type AddressService interface {
	Create(ctx context.Context, userID uuid.UUID, req AddressRequest) (*model.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Address, error)
}

type addressService struct {
	addresses repository.AddressRepository
}

func NewAddressService(addresses repository.AddressRepository) AddressService {
	return &addressService{addresses: addresses}
}

func (s *addressService) Create(ctx context.Context, userID uuid.UUID, req AddressRequest) (*model.Address, error) {
	if err := validationError(&req); err != nil {
		return nil, err
	}
	address := &model.Address{
		UserID:     userID,
		Label:      strings.TrimSpace(req.Label),
		Recipient:  strings.TrimSpace(req.Recipient),
		Phone:      strings.TrimSpace(req.Phone),
		Street:     strings.TrimSpace(req.Street),
		City:       strings.TrimSpace(req.City),
		Province:   strings.TrimSpace(req.Province),
		PostalCode: strings.TrimSpace(req.PostalCode),
		IsDefault:  req.IsDefault,
	}
	address.CreatedBy = userID.String()
	if err := s.addresses.Create(ctx, address); err != nil {
		return nil, internal(err, "create address")
	}
	return address, nil
}

func (s *addressService) List(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	addresses, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, internal(err, "list addresses")
	}
	return addresses, nil
}
