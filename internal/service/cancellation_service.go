package service

import (
	"context"
	"strings"
	"time"

	"go-material-store/internal/metrics"
	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActorAdmin    = "admin"
	ActorCustomer = "customer"
	ActorSystem   = "system"
)

// Actor is who asked for a state change. Customers may only touch their own orders.
type Actor struct {
	UserID uuid.UUID
	Kind   string
}

func (a Actor) audit() string {
	if a.UserID == uuid.Nil {
		return a.Kind
	}
	return a.UserID.String()
}

type CancellationService interface {
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*model.Order, error)
}

type CancellationDeps struct {
	DB       *gorm.DB
	Orders   repository.OrderRepository
	Payments repository.PaymentRepository
	Ledger   *StockLedger
	Gateway  PaymentGateway
	Notifier Notifier
	Metrics  *metrics.Store
	Logger   *logger.Logger
}

type cancellationService struct {
	db       *gorm.DB
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	ledger   *StockLedger
	gateway  PaymentGateway
	notifier Notifier
	metrics  *metrics.Store
	logg     *logger.Logger
	now      func() time.Time
}

func NewCancellationService(d CancellationDeps) CancellationService {
	s := &cancellationService{
		db:       d.DB,
		orders:   d.Orders,
		payments: d.Payments,
		ledger:   d.Ledger,
		gateway:  d.Gateway,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logg:     d.Logger,
		now:      time.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	return s
}

// Cancel cancels the order, its open payments and shipment, and returns the reserved stock,
// all in one transaction under the order row lock. Upstream gateway cancellation and the
// notification happen after commit and never undo the local cancellation.
func (s *cancellationService) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*model.Order, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "actor": actor.Kind})
	reason = strings.TrimSpace(reason)

	var (
		cancelled   *model.Order
		gatewayRefs []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)

		// 1. Lock and check the order
		order, err := orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if actor.Kind == ActorCustomer && order.UserID != actor.UserID {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		switch order.Status {
		case model.OrderDelivered:
			return apperrors.New(apperrors.CodeConflict, "delivered orders cannot be cancelled")
		case model.OrderCancelled:
			return apperrors.New(apperrors.CodeConflict, "order is already cancelled")
		}
		if actor.Kind == ActorCustomer && (order.Status != model.OrderPending || order.HasSuccessfulPayment()) {
			return apperrors.New(apperrors.CodeConflict, "order can no longer be cancelled, please contact support").
				WithDetails(map[string]string{"status": string(order.Status)})
		}

		for _, p := range order.Payments {
			if p.TransactionID != nil && p.Status.IsOpen() {
				gatewayRefs = append(gatewayRefs, *p.TransactionID)
			}
		}

		// 2. Payments, order and shipment
		if _, err := s.payments.WithTx(tx).CancelOpenByOrder(ctx, order.ID); err != nil {
			return internal(err, "cancel payments")
		}
		now := s.now()
		if err := orders.Update(ctx, order.ID, map[string]interface{}{
			"status":        model.OrderCancelled,
			"cancelled_at":  now,
			"cancelled_by":  actor.Kind,
			"cancel_reason": reason,
			"updated_by":    actor.audit(),
		}); err != nil {
			return internal(err, "cancel order")
		}
		if err := orders.UpdateShipment(ctx, order.ID, map[string]interface{}{
			"status": model.ShipmentCancelled,
		}); err != nil {
			return internal(err, "cancel shipment")
		}

		// 3. Give back exactly what was reserved
		for _, item := range order.Items {
			if err := s.ledger.Restore(ctx, tx, item.ProductID, item.Quantity, order.ID, actor.audit()); err != nil {
				return err
			}
		}

		if order.HasSuccessfulPayment() {
			s.logg.Warn(ctx, "cancelled a paid order, refund must be issued manually")
		}
		order.Status = model.OrderCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveCancellation(actor.Kind)
	s.logg.Info(ctx, "order cancelled")

	// 4. Best effort upstream; local state already says cancelled
	if s.gateway != nil {
		for _, ref := range gatewayRefs {
			if _, err := s.gateway.Cancel(ctx, ref); err != nil {
				s.logg.Error(s.logg.WithField(ctx, "transaction_ref", ref),
					"gateway cancel failed, needs manual follow-up", err)
			}
		}
	}

	s.notifier.Notify(ctx, cancelled.UserID, KindOrderCancelled, orderPayload(cancelled, map[string]any{
		"reason":       reason,
		"cancelled_by": actor.Kind,
	}))

	fresh, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, internal(err, "reload order")
	}
	return fresh, nil
}
