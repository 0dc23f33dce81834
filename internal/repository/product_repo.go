package repository

import (
	"context"

	"go-material-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context, activeOnly bool) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	UpdateDetails(ctx context.Context, product *model.Product) error
	DecrementStock(ctx context.Context, id uuid.UUID, qty int, updatedBy string) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int, updatedBy string) error
	CreateMovement(ctx context.Context, movement *model.StockMovement) error
	FindMovements(ctx context.Context, productID uuid.UUID) ([]model.StockMovement, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &productRepo{tx}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) FindAll(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindForUpdate row-locks the product for the rest of the transaction.
func (r *productRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateDetails saves catalog fields. Stock only moves through the ledger methods.
func (r *productRepo) UpdateDetails(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":               product.Name,
			"description":        product.Description,
			"unit":               product.Unit,
			"price":              product.Price,
			"min_order":          product.MinOrder,
			"multi_order":        product.MultiOrder,
			"image_url":          product.ImageURL,
			"is_active":          product.IsActive,
			"updated_by":         product.UpdatedBy,
			"updated_by_user_id": product.UpdatedByUserID,
		}).Error
}

// DecrementStock is a compare-and-swap: it only succeeds while enough stock remains.
func (r *productRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int, updatedBy string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_by": updatedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *productRepo) IncrementStock(ctx context.Context, id uuid.UUID, qty int, updatedBy string) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_by": updatedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) CreateMovement(ctx context.Context, movement *model.StockMovement) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(movement).Error
}

func (r *productRepo) FindMovements(ctx context.Context, productID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&movements).Error
	return movements, err
}
