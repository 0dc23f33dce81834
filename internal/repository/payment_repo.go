package repository

import (
	"context"
	"time"

	"go-material-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GatewayAttachment holds the fields returned when the gateway accepts a transaction.
type GatewayAttachment struct {
	TransactionID        string
	GatewayTransactionID string
	PaymentType          string
	TransactionStatus    string
	Bank                 string
	VANumber             string
	BillKey              string
	BillerCode           string
	ExpiresAt            *time.Time
}

type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	FindByTransactionIDForUpdate(ctx context.Context, transactionID string) (*model.Payment, error)
	AttachGateway(ctx context.Context, id uuid.UUID, att GatewayAttachment) (bool, error)
	RecordLateReference(ctx context.Context, id uuid.UUID, att GatewayAttachment) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	CancelOpenByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	FindMissingTransaction(ctx context.Context, before time.Time, limit int) ([]model.Payment, error)
	FindStaleOpen(ctx context.Context, before time.Time, limit int) ([]model.Payment, error)
}

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db}
}

func (r *paymentRepo) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &paymentRepo{tx}
}

func (r *paymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(payment).Error
}

func (r *paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).First(&payment, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) FindByTransactionIDForUpdate(ctx context.Context, transactionID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "transaction_id = ?", transactionID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// AttachGateway records the gateway reference once. It reports false when another
// caller already attached one or the payment is no longer PENDING.
func (r *paymentRepo) AttachGateway(ctx context.Context, id uuid.UUID, att GatewayAttachment) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND transaction_id IS NULL AND status = ?", id, model.PaymentPending).
		Updates(map[string]interface{}{
			"transaction_id":         att.TransactionID,
			"gateway_transaction_id": att.GatewayTransactionID,
			"payment_type":           att.PaymentType,
			"transaction_status":     att.TransactionStatus,
			"bank":                   att.Bank,
			"va_number":              att.VANumber,
			"bill_key":               att.BillKey,
			"biller_code":            att.BillerCode,
			"expires_at":             att.ExpiresAt,
			"last_synced_at":         now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordLateReference stores the gateway reference on a payment that left PENDING before
// the reply arrived, so later notifications still resolve to it. Status is untouched.
func (r *paymentRepo) RecordLateReference(ctx context.Context, id uuid.UUID, att GatewayAttachment) error {
	return r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND transaction_id IS NULL", id).
		Updates(map[string]interface{}{
			"transaction_id":         att.TransactionID,
			"gateway_transaction_id": att.GatewayTransactionID,
			"payment_type":           att.PaymentType,
			"transaction_status":     att.TransactionStatus,
			"last_synced_at":         time.Now(),
		}).Error
}

func (r *paymentRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Payment{}).Where("id = ?", id).Updates(fields).Error
}

// CancelOpenByOrder marks every non-SUCCESS, non-CANCELLED payment of the order CANCELLED.
func (r *paymentRepo) CancelOpenByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("order_id = ? AND status NOT IN ?", orderID,
			[]model.PaymentStatus{model.PaymentSuccess, model.PaymentCancelled}).
		Update("status", model.PaymentCancelled)
	return res.RowsAffected, res.Error
}

// FindMissingTransaction lists PENDING payments of PENDING orders that never reached the gateway.
func (r *paymentRepo) FindMissingTransaction(ctx context.Context, before time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = payments.order_id AND orders.deleted_at IS NULL").
		Where("orders.status = ?", model.OrderPending).
		Where("payments.status = ? AND payments.transaction_id IS NULL AND payments.created_at < ?",
			model.PaymentPending, before).
		Order("payments.created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// FindStaleOpen lists gateway-backed PENDING/CHALLENGE payments not updated since the cutoff.
func (r *paymentRepo) FindStaleOpen(ctx context.Context, before time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND transaction_id IS NOT NULL AND updated_at < ?",
			[]model.PaymentStatus{model.PaymentPending, model.PaymentChallenge}, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
