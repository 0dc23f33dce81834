package service

import (
	"context"
	"strings"
	"time"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShipRequest struct {
	DeliveryNumber string `json:"delivery_number" validate:"required,max=100"`
	Courier        string `json:"courier" validate:"max=50"`
}

// FulfillmentService drives orders through confirmation and delivery. Each transition notifies
// exactly once; repeating a transition that already happened is a no-op.
type FulfillmentService interface {
	Confirm(ctx context.Context, orderID uuid.UUID, actor Actor) (*model.Order, error)
	Process(ctx context.Context, orderID uuid.UUID, actor Actor) (*model.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID, actor Actor, req ShipRequest) (*model.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID, actor Actor) (*model.Order, error)
}

type fulfillmentService struct {
	db       *gorm.DB
	orders   repository.OrderRepository
	carts    repository.CartRepository
	notifier Notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewFulfillmentService(db *gorm.DB, orders repository.OrderRepository, carts repository.CartRepository,
	notifier Notifier, logg *logger.Logger) FulfillmentService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &fulfillmentService{
		db:       db,
		orders:   orders,
		carts:    carts,
		notifier: notifier,
		logg:     logg,
		now:      time.Now,
	}
}

// Confirm is the manual path to CONFIRMED, e.g. a bank transfer verified by staff.
// Payments are left alone and keep following the gateway.
func (s *fulfillmentService) Confirm(ctx context.Context, orderID uuid.UUID, actor Actor) (*model.Order, error) {
	order, changed, err := s.transition(ctx, orderID, model.OrderConfirmed, actor,
		func(*gorm.DB, *model.Order, time.Time) error { return nil },
		map[string]interface{}{"confirmed_at": s.now()})
	if err != nil || !changed {
		return order, err
	}

	s.notifier.Notify(ctx, order.UserID, KindOrderConfirmed, orderPayload(order, nil))
	if _, err := s.carts.DeleteProducts(ctx, order.UserID, orderProductIDs(order)); err != nil {
		s.logg.Error(ctx, "clean up cart after manual confirmation", err)
	}
	return order, nil
}

func (s *fulfillmentService) Process(ctx context.Context, orderID uuid.UUID, actor Actor) (*model.Order, error) {
	order, _, err := s.transition(ctx, orderID, model.OrderProcessing, actor,
		func(tx *gorm.DB, order *model.Order, _ time.Time) error {
			return internal(s.orders.WithTx(tx).UpdateShipment(ctx, order.ID, map[string]interface{}{
				"status": model.ShipmentProcessing,
			}), "update shipment")
		}, nil)
	return order, err
}

func (s *fulfillmentService) Ship(ctx context.Context, orderID uuid.UUID, actor Actor, req ShipRequest) (*model.Order, error) {
	deliveryNumber := strings.TrimSpace(req.DeliveryNumber)
	if deliveryNumber == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "delivery number is required")
	}
	order, changed, err := s.transition(ctx, orderID, model.OrderShipped, actor,
		func(tx *gorm.DB, order *model.Order, now time.Time) error {
			return internal(s.orders.WithTx(tx).UpdateShipment(ctx, order.ID, map[string]interface{}{
				"status":          model.ShipmentShipped,
				"delivery_number": deliveryNumber,
				"courier":         strings.TrimSpace(req.Courier),
				"shipped_at":      now,
			}), "update shipment")
		}, nil)
	if err != nil || !changed {
		return order, err
	}
	s.notifier.Notify(ctx, order.UserID, KindOrderShipped, orderPayload(order, map[string]any{
		"delivery_number": deliveryNumber,
		"courier":         req.Courier,
	}))
	return order, nil
}

func (s *fulfillmentService) Deliver(ctx context.Context, orderID uuid.UUID, actor Actor) (*model.Order, error) {
	order, changed, err := s.transition(ctx, orderID, model.OrderDelivered, actor,
		func(tx *gorm.DB, order *model.Order, now time.Time) error {
			return internal(s.orders.WithTx(tx).UpdateShipment(ctx, order.ID, map[string]interface{}{
				"status":       model.ShipmentDelivered,
				"delivered_at": now,
			}), "update shipment")
		}, nil)
	if err != nil || !changed {
		return order, err
	}
	s.notifier.Notify(ctx, order.UserID, KindOrderDelivered, orderPayload(order, nil))
	return order, nil
}

// transition moves the locked order to next and runs mutate in the same transaction.
// changed is false when the order was already in next.
func (s *fulfillmentService) transition(ctx context.Context, orderID uuid.UUID, next model.OrderStatus, actor Actor,
	mutate func(tx *gorm.DB, order *model.Order, now time.Time) error, extra map[string]interface{}) (*model.Order, bool, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "to": string(next)})

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if order.Status == next {
			return nil
		}
		if !order.Status.CanTransitionTo(next) || next == model.OrderCancelled {
			return apperrors.New(apperrors.CodeConflict, "order cannot move to "+string(next)).
				WithDetails(map[string]string{"from": string(order.Status), "to": string(next)})
		}

		now := s.now()
		if err := mutate(tx, order, now); err != nil {
			return err
		}
		fields := map[string]interface{}{"status": next, "updated_by": actor.audit()}
		for k, v := range extra {
			fields[k] = v
		}
		if err := orders.Update(ctx, order.ID, fields); err != nil {
			return internal(err, "update order")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.logg.Info(ctx, "order status changed")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, internal(err, "reload order")
	}
	return order, changed, nil
}
