package repository

import (
	"context"
	"time"

	"go-material-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderFilter narrows order listings. Zero values mean "any".
type OrderFilter struct {
	UserID *uuid.UUID
	Status model.OrderStatus
	Limit  int
	Offset int
}

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	CreateAggregate(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateShipment(ctx context.Context, orderID uuid.UUID, fields map[string]interface{}) error
	FindStaleFailed(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db}
}

func (r *orderRepo) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &orderRepo{tx}
}

// CreateAggregate writes the order, its items, payments and shipment. Call inside a transaction.
func (r *orderRepo) CreateAggregate(ctx context.Context, order *model.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if len(order.Items) > 0 {
		if err := db.Omit(clause.Associations).Create(&order.Items).Error; err != nil {
			return err
		}
	}

	for i := range order.Payments {
		order.Payments[i].OrderID = order.ID
	}
	if len(order.Payments) > 0 {
		if err := db.Omit(clause.Associations).Create(&order.Payments).Error; err != nil {
			return err
		}
	}

	if order.Shipment != nil {
		order.Shipment.OrderID = order.ID
		if err := db.Omit(clause.Associations).Create(order.Shipment).Error; err != nil {
			return err
		}
		for i := range order.Shipment.Items {
			order.Shipment.Items[i].ShipmentID = order.Shipment.ID
		}
		if len(order.Shipment.Items) > 0 {
			if err := db.Omit(clause.Associations).Create(&order.Shipment.Items).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *orderRepo) preloadAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Shipment").
		Preload("Shipment.Items").
		Preload("Address")
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := r.preloadAggregate(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row first, then loads the aggregate in the same transaction.
func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var locked model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&locked, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *orderRepo) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []model.Order
	err := q.
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Shipment").
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(fields).Error
}

func (r *orderRepo) UpdateShipment(ctx context.Context, orderID uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Shipment{}).Where("order_id = ?", orderID).Updates(fields).Error
}

// FindStaleFailed returns PENDING orders whose payments all ended FAILED or CANCELLED before the cutoff.
func (r *orderRepo) FindStaleFailed(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("orders.status = ?", model.OrderPending).
		Where("EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id AND p.deleted_at IS NULL AND p.status = ? AND p.updated_at < ?)",
			model.PaymentFailed, before).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id AND p.deleted_at IS NULL AND p.status IN ?)",
			[]model.PaymentStatus{model.PaymentPending, model.PaymentChallenge, model.PaymentSuccess}).
		Order("orders.created_at ASC").
		Limit(limit).
		Pluck("orders.id", &ids).Error
	return ids, err
}
