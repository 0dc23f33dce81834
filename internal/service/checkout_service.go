package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go-material-store/internal/gateway"
	"go-material-store/internal/metrics"
	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/logger"
	"go-material-store/pkg/money"
	"go-material-store/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentGateway is the subset of the gateway client the services call.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req gateway.TransactionRequest) (*gateway.Result, error)
	CheckStatus(ctx context.Context, orderID string) (*gateway.Result, error)
	Cancel(ctx context.Context, orderID string) (*gateway.Result, error)
	Approve(ctx context.Context, orderID string) (*gateway.Result, error)
}

type CheckoutRequest struct {
	AddressID     uuid.UUID   `json:"address_id" validate:"uuid_required"`
	ItemIDs       []uuid.UUID `json:"item_ids"`
	PaymentMethod string      `json:"payment_method" validate:"omitempty,oneof=bank_transfer echannel qris gopay"`
	Bank          string      `json:"bank" validate:"omitempty,oneof=bca bni bri permata cimb"`
	Notes         string      `json:"notes" validate:"max=500"`
}

// CheckoutResult is returned by checkout and payment resume. PaymentPending means the order is
// durable but the gateway transaction still has to be created (retry through ResumePayment).
type CheckoutResult struct {
	Order          *model.Order   `json:"order"`
	Payment        *model.Payment `json:"payment"`
	PaymentPending bool           `json:"payment_pending"`
	GatewayError   string         `json:"gateway_error,omitempty"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error)
	ResumePayment(ctx context.Context, userID, orderID uuid.UUID) (*CheckoutResult, error)
	SubmitPayment(ctx context.Context, paymentID uuid.UUID) (*model.Payment, error)
}

type checkoutService struct {
	db        *gorm.DB
	carts     repository.CartRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	addresses repository.AddressRepository
	users     repository.UserRepository
	ledger    *StockLedger
	gateway   PaymentGateway
	tax       *money.TaxCalculator
	metrics   *metrics.Store
	logg      *logger.Logger
}

type CheckoutDeps struct {
	DB        *gorm.DB
	Carts     repository.CartRepository
	Products  repository.ProductRepository
	Orders    repository.OrderRepository
	Payments  repository.PaymentRepository
	Addresses repository.AddressRepository
	Users     repository.UserRepository
	Ledger    *StockLedger
	Gateway   PaymentGateway
	Tax       *money.TaxCalculator
	Metrics   *metrics.Store
	Logger    *logger.Logger
}

func NewCheckoutService(d CheckoutDeps) CheckoutService {
	logg := d.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &checkoutService{
		db:        d.DB,
		carts:     d.Carts,
		products:  d.Products,
		orders:    d.Orders,
		payments:  d.Payments,
		addresses: d.Addresses,
		users:     d.Users,
		ledger:    d.Ledger,
		gateway:   d.Gateway,
		tax:       d.Tax,
		metrics:   d.Metrics,
		logg:      logg,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	ctx = s.logg.WithUserID(ctx, userID.String())

	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return nil, apperrors.New(apperrors.CodeValidation, validator.Summary(errs)).WithDetails(errs)
	}

	// 1. Address must belong to the caller
	if _, err := s.addresses.FindByIDForUser(ctx, userID, req.AddressID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAddress
		}
		return nil, internal(err, "load address")
	}

	method := req.PaymentMethod
	if method == "" {
		method = "bank_transfer"
	}

	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 2. Selected cart lines, in product order so concurrent checkouts lock rows the same way
		items, err := s.carts.WithTx(tx).FindItemsForUser(ctx, userID, req.ItemIDs)
		if err != nil {
			return internal(err, "load cart items")
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}
		if len(req.ItemIDs) > 0 && len(items) != len(uniqueIDs(req.ItemIDs)) {
			return apperrors.New(apperrors.CodeValidation, "some selected items are not in the cart")
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductID.String() < items[j].ProductID.String()
		})

		orderID := uuid.New()
		products := s.products.WithTx(tx)
		orderItems := make([]model.OrderItem, 0, len(items))
		var subtotal int64

		for _, item := range items {
			// 3. Re-read the product under lock; the cart's price and stock are not trusted
			product, err := products.FindForUpdate(ctx, item.ProductID)
			if err != nil {
				return notFound(err, "product")
			}
			if !product.IsActive {
				return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("%s is no longer available", product.Name))
			}
			if err := product.ValidateQuantity(item.Quantity); err != nil {
				return err
			}

			// 4. Reserve; any failure rolls back every line
			if err := s.ledger.Reserve(ctx, tx, product.ID, item.Quantity, orderID, userID.String()); err != nil {
				return err
			}

			lineTotal := product.Price * int64(item.Quantity)
			subtotal += lineTotal
			orderItems = append(orderItems, model.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				SKU:         product.SKU,
				Unit:        product.Unit,
				Quantity:    item.Quantity,
				Price:       product.Price,
				LineTotal:   lineTotal,
			})
		}

		taxAmount, total := s.tax.Totals(subtotal)

		// 5. Order, items, payment and shipment in one write
		order = &model.Order{
			OrderNumber:    newOrderNumber(time.Now()),
			UserID:         userID,
			AddressID:      req.AddressID,
			Status:         model.OrderPending,
			SubtotalAmount: subtotal,
			TaxAmount:      taxAmount,
			TotalAmount:    total,
			PaymentMethod:  method,
			Notes:          strings.TrimSpace(req.Notes),
			Items:          orderItems,
			Payments: []model.Payment{{
				Amount:        total,
				PaymentMethod: method,
				Bank:          strings.ToLower(req.Bank),
				Status:        model.PaymentPending,
			}},
			Shipment: &model.Shipment{
				Status: model.ShipmentPending,
				Items:  shipmentItems(orderItems),
			},
		}
		order.ID = orderID
		order.CreatedBy = userID.String()
		return internal(s.orders.WithTx(tx).CreateAggregate(ctx, order), "create order")
	})
	if err != nil {
		s.metrics.ObserveCheckout(checkoutOutcome(err))
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order placed")

	// 6. Gateway call after commit; a failure leaves a resumable PENDING order
	result := &CheckoutResult{}
	payment, gwErr := s.SubmitPayment(ctx, order.Payments[0].ID)
	if gwErr != nil {
		s.logg.Error(ctx, "gateway transaction not created, order left pending", gwErr)
		s.metrics.ObserveCheckout("payment_pending")
		result.PaymentPending = true
		result.GatewayError = apperrors.MetadataFor(apperrors.CodeOf(gwErr)).PublicMessage
	} else {
		s.metrics.ObserveCheckout("created")
	}

	fresh, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, internal(err, "reload order")
	}
	result.Order = fresh
	result.Payment = payment
	if result.Payment == nil {
		result.Payment = fresh.ActivePayment()
	}
	return result, nil
}

func (s *checkoutService) ResumePayment(ctx context.Context, userID, orderID uuid.UUID) (*CheckoutResult, error) {
	ctx = s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), orderID.String())

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if order.UserID != userID {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	if order.Status != model.OrderPending {
		return nil, apperrors.New(apperrors.CodeConflict, "order is not awaiting payment").
			WithDetails(map[string]string{"status": string(order.Status)})
	}

	active := order.ActivePayment()
	if active == nil || active.Status == model.PaymentFailed {
		active, err = s.replacePayment(ctx, orderID)
		if err != nil {
			return nil, err
		}
	}

	switch active.Status {
	case model.PaymentPending:
	case model.PaymentChallenge:
		return nil, apperrors.New(apperrors.CodeConflict, "payment is under review")
	default:
		return nil, apperrors.New(apperrors.CodeConflict, "payment can no longer be resumed").
			WithDetails(map[string]string{"status": string(active.Status)})
	}

	result := &CheckoutResult{}
	payment, gwErr := s.SubmitPayment(ctx, active.ID)
	if gwErr != nil {
		if !apperrors.Is(gwErr, apperrors.CodeGateway) {
			return nil, gwErr
		}
		s.logg.Error(ctx, "payment resume failed", gwErr)
		result.PaymentPending = true
		result.GatewayError = apperrors.MetadataFor(apperrors.CodeGateway).PublicMessage
	}

	fresh, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, internal(err, "reload order")
	}
	result.Order = fresh
	result.Payment = payment
	if result.Payment == nil {
		result.Payment = fresh.ActivePayment()
	}
	return result, nil
}

// replacePayment opens a fresh PENDING payment when the previous attempt failed. Stock stays reserved.
func (s *checkoutService) replacePayment(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	var created *model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if order.Status != model.OrderPending {
			return apperrors.New(apperrors.CodeConflict, "order is not awaiting payment")
		}
		previous := order.ActivePayment()
		if previous != nil && previous.Status != model.PaymentFailed {
			// lost a race with another resume
			created = previous
			return nil
		}

		payment := &model.Payment{
			OrderID:       order.ID,
			Amount:        order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			Status:        model.PaymentPending,
		}
		if previous != nil {
			payment.Bank = previous.Bank
		}
		payment.CreatedBy = order.UserID.String()
		if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
			return internal(err, "create payment")
		}
		created = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitPayment creates the gateway transaction for a PENDING payment and attaches the reply.
// It is safe to call repeatedly: an attached payment is returned as is, and a duplicate-order
// reply from the gateway is adopted through a status check.
func (s *checkoutService) SubmitPayment(ctx context.Context, paymentID uuid.UUID) (*model.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	if payment.TransactionID != nil {
		return payment, nil
	}
	if payment.Status != model.PaymentPending {
		return nil, apperrors.New(apperrors.CodeConflict, "payment is not pending")
	}

	order, err := s.orders.FindByID(ctx, payment.OrderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	user, err := s.users.FindByID(order.UserID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	lines := make([]gateway.Line, 0, len(order.Items))
	for _, it := range order.Items {
		id := it.SKU
		if id == "" {
			id = it.ProductID.String()
		}
		lines = append(lines, gateway.Line{ID: id, Name: it.ProductName, UnitPrice: it.Price, Quantity: it.Quantity})
	}
	items, err := gateway.BuildItems(lines, payment.Amount, s.tax)
	if err != nil {
		return nil, err
	}

	customer := gateway.CustomerDetails{FirstName: user.FullName, Email: user.Email, Phone: user.PhoneNumber}
	if order.Address != nil && order.Address.Phone != "" {
		customer.Phone = order.Address.Phone
	}

	ref := payment.GatewayReference()
	res, err := s.gateway.CreateTransaction(ctx, gateway.TransactionRequest{
		OrderID:       ref,
		GrossAmount:   payment.Amount,
		PaymentMethod: payment.PaymentMethod,
		Bank:          payment.Bank,
		Customer:      customer,
		Items:         items,
	})
	if errors.Is(err, gateway.ErrDuplicateOrder) {
		// an earlier attempt reached the gateway but its reply was lost
		res, err = s.gateway.CheckStatus(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	bank, va := res.VA()
	if bank == "" {
		bank = payment.Bank
	}
	att := repository.GatewayAttachment{
		TransactionID:        ref,
		GatewayTransactionID: res.TransactionID,
		PaymentType:          res.PaymentType,
		TransactionStatus:    res.TransactionStatus,
		Bank:                 bank,
		VANumber:             va,
		BillKey:              res.BillKey,
		BillerCode:           res.BillerCode,
		ExpiresAt:            res.Expiry(),
	}
	attached, err := s.payments.AttachGateway(ctx, payment.ID, att)
	if err != nil {
		return nil, internal(err, "attach gateway transaction")
	}

	fresh, err := s.payments.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, internal(err, "reload payment")
	}
	if !attached && fresh.TransactionID == nil {
		// the payment left PENDING while the gateway call was in flight
		return s.abandonTransaction(ctx, fresh, att)
	}
	if !attached {
		s.logg.Warn(ctx, "gateway transaction already attached by a concurrent call")
	}
	return fresh, nil
}

// abandonTransaction records and voids a gateway transaction created for a payment that is
// no longer payable, so a late settlement is traceable instead of unknown.
func (s *checkoutService) abandonTransaction(ctx context.Context, payment *model.Payment, att repository.GatewayAttachment) (*model.Payment, error) {
	ctx = s.logg.WithField(ctx, "transaction_ref", att.TransactionID)
	if err := s.payments.RecordLateReference(ctx, payment.ID, att); err != nil {
		s.logg.Error(ctx, "could not record orphaned gateway transaction", err)
	}
	if _, err := s.gateway.Cancel(ctx, att.TransactionID); err != nil {
		s.logg.Error(ctx, "gateway cancel of orphaned transaction failed, needs manual follow-up", err)
	} else {
		s.logg.Warn(ctx, "cancelled gateway transaction created after the payment was closed")
	}
	fresh, err := s.payments.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, internal(err, "reload payment")
	}
	return fresh, nil
}

func checkoutOutcome(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInsufficientStock:
		return "insufficient_stock"
	case apperrors.CodeValidation, apperrors.CodeNotFound:
		return "rejected"
	default:
		return "error"
	}
}

func shipmentItems(items []model.OrderItem) []model.ShipmentItem {
	out := make([]model.ShipmentItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.ShipmentItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
		})
	}
	return out
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
