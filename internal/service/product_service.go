package service

import (
	"context"
	"errors"
	"strings"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRequest struct {
	SKU         string `json:"sku" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	Unit        string `json:"unit" validate:"required,max=20"`
	Price       int64  `json:"price" validate:"gt=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
	MinOrder    int    `json:"min_order" validate:"gte=0"`
	MultiOrder  int    `json:"multi_order" validate:"gte=0"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool  `json:"is_active"`
}

type RestockRequest struct {
	Quantity int    `json:"quantity" validate:"gt=0"`
	Note     string `json:"note" validate:"max=255"`
}

// ProductService is catalog administration. Stock only changes through the StockLedger.
type ProductService interface {
	Create(ctx context.Context, req ProductRequest, userID string) (*model.Product, error)
	Update(ctx context.Context, id uuid.UUID, req ProductRequest, userID string) (*model.Product, error)
	List(ctx context.Context, activeOnly bool) ([]model.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Product, error)
	Restock(ctx context.Context, id uuid.UUID, req RestockRequest, userID string) (*model.Product, error)
	Movements(ctx context.Context, id uuid.UUID) ([]model.StockMovement, error)
}

type productService struct {
	products repository.ProductRepository
	ledger   *StockLedger
}

func NewProductService(products repository.ProductRepository, ledger *StockLedger) ProductService {
	return &productService{products: products, ledger: ledger}
}

func validationError(data interface{}) error {
	if errs := validator.ValidateStruct(data); len(errs) > 0 {
		return apperrors.New(apperrors.CodeValidation, validator.Summary(errs)).WithDetails(errs)
	}
	return nil
}

func (s *productService) Create(ctx context.Context, req ProductRequest, userID string) (*model.Product, error) {
	if err := validationError(&req); err != nil {
		return nil, err
	}

	// SKU is unique across the catalog
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if _, err := s.products.FindBySKU(ctx, sku); err == nil {
		return nil, apperrors.New(apperrors.CodeConflict, "SKU already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal(err, "check sku")
	}

	product := &model.Product{
		SKU:             sku,
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		Unit:            req.Unit,
		Price:           req.Price,
		Stock:           req.Stock,
		MinOrder:        defaultOne(req.MinOrder),
		MultiOrder:      defaultOne(req.MultiOrder),
		ImageURL:        req.ImageURL,
		IsActive:        req.IsActive == nil || *req.IsActive,
		CreatedByUserID: &userID,
		UpdatedByUserID: &userID,
	}
	product.CreatedBy = userID
	product.UpdatedBy = userID
	if err := s.products.Create(ctx, product); err != nil {
		return nil, internal(err, "create product")
	}
	return product, nil
}

// Update edits catalog fields. The stock in the request is ignored; use Restock.
func (s *productService) Update(ctx context.Context, id uuid.UUID, req ProductRequest, userID string) (*model.Product, error) {
	if err := validationError(&req); err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}

	product.Name = strings.TrimSpace(req.Name)
	product.Description = req.Description
	product.Unit = req.Unit
	product.Price = req.Price
	product.MinOrder = defaultOne(req.MinOrder)
	product.MultiOrder = defaultOne(req.MultiOrder)
	product.ImageURL = req.ImageURL
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	product.UpdatedBy = userID
	product.UpdatedByUserID = &userID

	if err := s.products.UpdateDetails(ctx, product); err != nil {
		return nil, internal(err, "update product")
	}
	return s.products.FindByID(ctx, id)
}

func (s *productService) List(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	products, err := s.products.FindAll(ctx, activeOnly)
	if err != nil {
		return nil, internal(err, "list products")
	}
	return products, nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	return product, nil
}

func (s *productService) Restock(ctx context.Context, id uuid.UUID, req RestockRequest, userID string) (*model.Product, error) {
	if err := validationError(&req); err != nil {
		return nil, err
	}
	return s.ledger.Restock(ctx, id, req.Quantity, userID, req.Note)
}

func (s *productService) Movements(ctx context.Context, id uuid.UUID) ([]model.StockMovement, error) {
	return s.ledger.Movements(ctx, id)
}

func defaultOne(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}
