package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-material-store/internal/gateway"
	"go-material-store/internal/metrics"
	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	"go-material-store/pkg/cache"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OutcomeProcessed      = "processed"
	OutcomeDuplicate      = "duplicate"
	OutcomeIgnored        = "ignored"
	OutcomeUnknown        = "unknown"
	OutcomeAmountMismatch = "amount_mismatch"
)

// ReconcileResult reports what a gateway status update did to local state.
type ReconcileResult struct {
	Outcome       string              `json:"outcome"`
	PaymentID     *uuid.UUID          `json:"payment_id,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	OrderStatus   model.OrderStatus   `json:"order_status,omitempty"`
}

type ReconcilerService interface {
	HandleNotification(ctx context.Context, body []byte) (*ReconcileResult, error)
	SyncOrderPayment(ctx context.Context, userID, orderID uuid.UUID, viewAll bool) (*ReconcileResult, error)
	SyncPayment(ctx context.Context, paymentID uuid.UUID) (*ReconcileResult, error)
	ApprovePayment(ctx context.Context, paymentID uuid.UUID) (*ReconcileResult, error)
}

type ReconcilerDeps struct {
	DB        *gorm.DB
	Orders    repository.OrderRepository
	Payments  repository.PaymentRepository
	Carts     repository.CartRepository
	Gateway   PaymentGateway
	ServerKey string
	Dedup     cache.Store
	DedupTTL  time.Duration
	Notifier  Notifier
	Metrics   *metrics.Store
	Logger    *logger.Logger
}

type reconcilerService struct {
	db        *gorm.DB
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	carts     repository.CartRepository
	gateway   PaymentGateway
	serverKey string
	dedup     cache.Store
	dedupTTL  time.Duration
	notifier  Notifier
	metrics   *metrics.Store
	logg      *logger.Logger
	now       func() time.Time
}

func NewReconcilerService(d ReconcilerDeps) ReconcilerService {
	s := &reconcilerService{
		db:        d.DB,
		orders:    d.Orders,
		payments:  d.Payments,
		carts:     d.Carts,
		gateway:   d.Gateway,
		serverKey: d.ServerKey,
		dedup:     d.Dedup,
		dedupTTL:  d.DedupTTL,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		logg:      d.Logger,
		now:       time.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.dedupTTL <= 0 {
		s.dedupTTL = 48 * time.Hour
	}
	return s
}

// statusUpdate is a gateway-reported state of one transaction, from a webhook or a status query.
type statusUpdate struct {
	TransactionStatus string
	FraudStatus       string
	StatusMessage     string
	PaymentType       string
	GrossAmount       string
	Source            string
}

func (s *reconcilerService) HandleNotification(ctx context.Context, body []byte) (result *ReconcileResult, err error) {
	defer func() {
		switch {
		case apperrors.Is(err, apperrors.CodeInvalidSignature):
			s.metrics.ObserveWebhook("invalid_signature")
		case apperrors.Is(err, apperrors.CodeValidation):
			s.metrics.ObserveWebhook("malformed")
		case err != nil:
			s.metrics.ObserveWebhook("error")
		default:
			s.metrics.ObserveWebhook(result.Outcome)
		}
	}()

	// 1. Shape and authenticity
	n, err := gateway.ParseNotification(body)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"transaction_ref":    n.OrderID,
		"transaction_status": n.TransactionStatus,
	})
	if !n.Verify(s.serverKey) {
		s.logg.Warn(ctx, "rejected notification with invalid signature")
		return nil, apperrors.New(apperrors.CodeInvalidSignature, "signature mismatch")
	}

	// 2. Cheap duplicate filter; the locked state check below is the real guard
	if s.dedup != nil {
		key := cache.IdempotencyKey("webhook", n.DedupKey())
		fresh, dErr := s.dedup.SetNX(ctx, key, "1", s.dedupTTL)
		if dErr != nil {
			s.logg.Error(ctx, "webhook dedup unavailable, processing anyway", dErr)
		} else if !fresh {
			return &ReconcileResult{Outcome: OutcomeDuplicate}, nil
		} else {
			defer func() {
				// unknown: the gateway may notify before the reference is attached, so let retries through
				if err != nil || (result != nil && result.Outcome == OutcomeUnknown) {
					if delErr := s.dedup.Del(context.Background(), key); delErr != nil {
						s.logg.Error(ctx, "release webhook dedup key", delErr)
					}
				}
			}()
		}
	}

	// 3. Apply
	return s.apply(ctx, n.OrderID, statusUpdate{
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		StatusMessage:     n.StatusMessage,
		PaymentType:       n.PaymentType,
		GrossAmount:       n.GrossAmount,
		Source:            "webhook",
	})
}

// SyncOrderPayment asks the gateway for the active payment's state and applies it.
func (s *reconcilerService) SyncOrderPayment(ctx context.Context, userID, orderID uuid.UUID, viewAll bool) (*ReconcileResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if !viewAll && order.UserID != userID {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	active := order.ActivePayment()
	if active == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "payment not found")
	}
	return s.SyncPayment(ctx, active.ID)
}

func (s *reconcilerService) SyncPayment(ctx context.Context, paymentID uuid.UUID) (*ReconcileResult, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	if payment.TransactionID == nil {
		return nil, apperrors.New(apperrors.CodeConflict, "payment has not reached the gateway yet")
	}
	ctx = s.logg.WithField(ctx, "transaction_ref", *payment.TransactionID)

	res, err := s.gateway.CheckStatus(ctx, *payment.TransactionID)
	if errors.Is(err, gateway.ErrTransactionNotFound) {
		return &ReconcileResult{Outcome: OutcomeUnknown, PaymentID: &payment.ID, PaymentStatus: payment.Status}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, *payment.TransactionID, updateFromResult(res, "sync"))
}

// ApprovePayment accepts a challenged transaction at the gateway. Sandbox only.
func (s *reconcilerService) ApprovePayment(ctx context.Context, paymentID uuid.UUID) (*ReconcileResult, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	if payment.TransactionID == nil {
		return nil, apperrors.New(apperrors.CodeConflict, "payment has not reached the gateway yet")
	}
	ctx = s.logg.WithField(ctx, "transaction_ref", *payment.TransactionID)

	res, err := s.gateway.Approve(ctx, *payment.TransactionID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, *payment.TransactionID, updateFromResult(res, "approve"))
}

func updateFromResult(res *gateway.Result, source string) statusUpdate {
	return statusUpdate{
		TransactionStatus: res.TransactionStatus,
		FraudStatus:       res.FraudStatus,
		StatusMessage:     res.StatusMessage,
		PaymentType:       res.PaymentType,
		GrossAmount:       res.GrossAmount,
		Source:            source,
	}
}

// apply moves one payment, and its order when needed, under the order and payment row locks.
// The terminal-state guard is evaluated inside the transaction so concurrent deliveries serialize.
func (s *reconcilerService) apply(ctx context.Context, ref string, upd statusUpdate) (*ReconcileResult, error) {
	ctx = s.logg.WithField(ctx, "source", upd.Source)

	newStatus, ok := gateway.MapStatus(upd.TransactionStatus, upd.FraudStatus)
	if !ok {
		s.logg.Info(ctx, "gateway status not acted on")
		return &ReconcileResult{Outcome: OutcomeIgnored}, nil
	}

	known, err := s.payments.FindByTransactionID(ctx, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if local := s.paymentForReference(ctx, ref); local != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, local.OrderID.String()),
				"gateway reports a transaction never attached locally, refund may be needed", nil)
		} else {
			s.logg.Info(ctx, "notification for unknown transaction")
		}
		return &ReconcileResult{Outcome: OutcomeUnknown}, nil
	}
	if err != nil {
		return nil, internal(err, "load payment")
	}
	ctx = s.logg.WithOrderID(ctx, known.OrderID.String())

	var (
		result    *ReconcileResult
		confirmed *model.Order
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := s.payments.WithTx(tx)
		orders := s.orders.WithTx(tx)

		// order first, same lock order as cancellation
		order, err := orders.FindByIDForUpdate(ctx, known.OrderID)
		if err != nil {
			return notFound(err, "order")
		}
		payment, err := payments.FindByTransactionIDForUpdate(ctx, ref)
		if err != nil {
			return notFound(err, "payment")
		}
		result = &ReconcileResult{
			PaymentID:     &payment.ID,
			PaymentStatus: payment.Status,
			OrderStatus:   order.Status,
		}
		now := s.now()

		if payment.Status == newStatus {
			result.Outcome = OutcomeDuplicate
			return payments.Update(ctx, payment.ID, map[string]interface{}{"last_synced_at": now})
		}
		if !payment.Status.CanTransitionTo(newStatus) {
			result.Outcome = OutcomeIgnored
			if payment.Status == model.PaymentCancelled && newStatus == model.PaymentSuccess {
				s.logg.Error(ctx, "payment settled after order cancellation, refund needed", nil)
			} else {
				s.logg.Warn(ctx, "stale or out-of-order payment status ignored")
			}
			return nil
		}
		if newStatus == model.PaymentSuccess && !amountMatches(upd.GrossAmount, payment.Amount) {
			result.Outcome = OutcomeAmountMismatch
			s.logg.Error(s.logg.WithField(ctx, "gross_amount", upd.GrossAmount),
				"settled amount differs from payment amount, left for manual review", nil)
			return nil
		}

		fields := map[string]interface{}{
			"status":             newStatus,
			"transaction_status": upd.TransactionStatus,
			"fraud_status":       upd.FraudStatus,
			"status_message":     upd.StatusMessage,
			"last_synced_at":     now,
		}
		if upd.PaymentType != "" {
			fields["payment_type"] = upd.PaymentType
		}
		if newStatus == model.PaymentSuccess && payment.PaidAt == nil {
			fields["paid_at"] = now
		}
		if err := payments.Update(ctx, payment.ID, fields); err != nil {
			return internal(err, "update payment")
		}
		result.Outcome = OutcomeProcessed
		result.PaymentStatus = newStatus

		// FAILED and CHALLENGE leave the order (and its reserved stock) as it is
		if newStatus == model.PaymentSuccess && order.Status == model.OrderPending {
			if err := orders.Update(ctx, order.ID, map[string]interface{}{
				"status":       model.OrderConfirmed,
				"confirmed_at": now,
				"updated_by":   "gateway",
			}); err != nil {
				return internal(err, "confirm order")
			}
			order.Status = model.OrderConfirmed
			result.OrderStatus = model.OrderConfirmed
			confirmed = order
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"outcome":        result.Outcome,
		"payment_status": string(result.PaymentStatus),
	}), "payment status reconciled")

	if confirmed != nil {
		s.afterConfirmed(ctx, confirmed)
	}
	return result, nil
}

// afterConfirmed runs the post-commit side effects of a paid order. Failures are logged only.
func (s *reconcilerService) afterConfirmed(ctx context.Context, order *model.Order) {
	s.notifier.Notify(ctx, order.UserID, KindOrderConfirmed, orderPayload(order, nil))
	if s.carts == nil {
		return
	}
	if _, err := s.carts.DeleteProducts(ctx, order.UserID, orderProductIDs(order)); err != nil {
		s.logg.Error(ctx, "clean up cart after payment", err)
	}
}

// amountMatches compares the gateway's decimal gross amount ("22200.00") with ours. Empty passes.
func amountMatches(gross string, amount int64) bool {
	if gross == "" {
		return true
	}
	d, err := decimal.NewFromString(gross)
	if err != nil {
		return false
	}
	return d.Equal(decimal.NewFromInt(amount))
}

// paymentForReference resolves a PAY-<uuid> reference to its payment even when the
// gateway reply never got attached.
func (s *reconcilerService) paymentForReference(ctx context.Context, ref string) *model.Payment {
	raw, ok := strings.CutPrefix(ref, model.GatewayReferencePrefix)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil
	}
	return payment
}
