package repository

import (
	"context"
	"time"

	"go-material-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	FindItemForUser(ctx context.Context, userID, itemID uuid.UUID) (*model.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*model.CartItem, error)
	FindItemsForUser(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) ([]model.CartItem, error)
	CreateItem(ctx context.Context, item *model.CartItem) error
	MergeItem(ctx context.Context, item *model.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	DeleteProducts(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (int64, error)
}

type cartRepo struct {
	db *gorm.DB
}

func NewCartRepo(db *gorm.DB) CartRepository {
	return &cartRepo{db}
}

func (r *cartRepo) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &cartRepo{tx}
}

func (r *cartRepo) FindOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart := model.Cart{UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&cart).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUser(ctx, userID)
}

func (r *cartRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepo) itemsOfUser(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id AND carts.deleted_at IS NULL").
		Where("carts.user_id = ?", userID)
}

func (r *cartRepo) FindItemForUser(ctx context.Context, userID, itemID uuid.UUID) (*model.CartItem, error) {
	var item model.CartItem
	err := r.itemsOfUser(ctx, userID).
		Preload("Product").
		First(&item, "cart_items.id = ?", itemID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepo) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).
		First(&item, "cart_id = ? AND product_id = ?", cartID, productID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepo) FindItemsForUser(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) ([]model.CartItem, error) {
	var items []model.CartItem
	q := r.itemsOfUser(ctx, userID).Order("cart_items.created_at ASC")
	if len(itemIDs) > 0 {
		q = q.Where("cart_items.id IN ?", itemIDs)
	}
	err := q.Find(&items).Error
	return items, err
}

func (r *cartRepo) CreateItem(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

// MergeItem inserts the line or adds its quantity to the existing line for the same product.
func (r *cartRepo) MergeItem(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
				"updated_at": time.Now(),
			}),
		}).
		Create(item).Error
}

func (r *cartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", qty).Error
}

// Cart items are hard-deleted so the (cart, product) unique index stays usable.
func (r *cartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&model.CartItem{}, "id = ?", itemID).Error
}

func (r *cartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("cart_id IN (?)", r.db.Model(&model.Cart{}).Select("id").Where("user_id = ?", userID)).
		Delete(&model.CartItem{}).Error
}

func (r *cartRepo) DeleteProducts(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Unscoped().
		Where("cart_id IN (?)", r.db.Model(&model.Cart{}).Select("id").Where("user_id = ?", userID)).
		Where("product_id IN ?", productIDs).
		Delete(&model.CartItem{})
	return res.RowsAffected, res.Error
}
