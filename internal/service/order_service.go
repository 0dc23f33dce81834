package service

import (
	"context"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"

	"github.com/google/uuid"
)

type OrderPage struct {
	Orders []model.Order `json:"orders"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// OrderQueryService reads orders. Callers without view-all access only ever see their own.
type OrderQueryService interface {
	List(ctx context.Context, userID uuid.UUID, viewAll bool, filter repository.OrderFilter) (*OrderPage, error)
	Get(ctx context.Context, userID, orderID uuid.UUID, viewAll bool) (*model.Order, error)
}

type orderQueryService struct {
	orders repository.OrderRepository
}

func NewOrderQueryService(orders repository.OrderRepository) OrderQueryService {
	return &orderQueryService{orders: orders}
}

func (s *orderQueryService) List(ctx context.Context, userID uuid.UUID, viewAll bool, filter repository.OrderFilter) (*OrderPage, error) {
	if !viewAll {
		filter.UserID = &userID
	}
	if filter.Status != "" && !validOrderStatus(filter.Status) {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown order status")
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, internal(err, "list orders")
	}
	return &OrderPage{Orders: orders, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *orderQueryService) Get(ctx context.Context, userID, orderID uuid.UUID, viewAll bool) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if !viewAll && order.UserID != userID {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func validOrderStatus(s model.OrderStatus) bool {
	switch s {
	case model.OrderPending, model.OrderConfirmed, model.OrderProcessing,
		model.OrderShipped, model.OrderDelivered, model.OrderCancelled:
		return true
	}
	return false
}
