package service

import (
	"context"
	"errors"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartService keeps the per-user cart. Its stock checks are advisory; checkout re-checks under lock.
type CartService interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*model.CartView, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) (*model.CartView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) (*model.CartView, error)
	CleanupForOrder(ctx context.Context, userID, orderID uuid.UUID) (int64, error)
}

type cartService struct {
	db       *gorm.DB
	carts    repository.CartRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
}

func NewCartService(db *gorm.DB, carts repository.CartRepository, products repository.ProductRepository, orders repository.OrderRepository) CartService {
	return &cartService{db: db, carts: carts, products: products, orders: orders}
}

func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*model.CartView, error) {
	if qty <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)

		// 1. Product must exist and be on sale
		product, err := s.products.WithTx(tx).FindByID(ctx, productID)
		if err != nil {
			return notFound(err, "product")
		}
		if !product.IsActive {
			return apperrors.New(apperrors.CodeNotFound, "product not found")
		}

		// 2. Lazily create the cart
		cart, err := carts.FindOrCreate(ctx, userID)
		if err != nil {
			return internal(err, "create cart")
		}

		// 3. Insert or merge in one statement so concurrent adds of a new product both land
		item := &model.CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty}
		item.CreatedBy = userID.String()
		if err := carts.MergeItem(ctx, item); err != nil {
			return internal(err, "add cart item")
		}

		// 4. The merged line must still fit the stock; failing rolls the merge back
		merged, err := carts.FindItemByProduct(ctx, cart.ID, productID)
		if err != nil {
			return internal(err, "load cart item")
		}
		return checkAgainstStock(product, merged.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.List(ctx, userID)
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) (*model.CartView, error) {
	item, err := s.carts.FindItemForUser(ctx, userID, itemID)
	if err != nil {
		return nil, notFound(err, "cart item")
	}

	if qty <= 0 {
		if err := s.carts.DeleteItem(ctx, item.ID); err != nil {
			return nil, internal(err, "delete cart item")
		}
		return s.List(ctx, userID)
	}

	if item.Product == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
	}
	if err := checkAgainstStock(item.Product, qty); err != nil {
		return nil, err
	}
	if err := s.carts.UpdateItemQuantity(ctx, item.ID, qty); err != nil {
		return nil, internal(err, "update cart item")
	}
	return s.List(ctx, userID)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := s.carts.FindItemForUser(ctx, userID, itemID)
	if err != nil {
		return notFound(err, "cart item")
	}
	return internal(s.carts.DeleteItem(ctx, item.ID), "delete cart item")
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return internal(s.carts.Clear(ctx, userID), "clear cart")
}

func (s *cartService) List(ctx context.Context, userID uuid.UUID) (*model.CartView, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CartView{Lines: []model.CartLine{}}, nil
	}
	if err != nil {
		return nil, internal(err, "load cart")
	}

	view := &model.CartView{CartID: cart.ID, Lines: make([]model.CartLine, 0, len(cart.Items))}
	for _, item := range cart.Items {
		// deleted products drop out of the preload
		if item.Product == nil {
			continue
		}
		line := model.CartLine{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			Price:     item.Product.Price,
			Stock:     item.Product.Stock,
			Unit:      item.Product.Unit,
			ImageURL:  item.Product.ImageURL,
			LineTotal: item.Product.Price * int64(item.Quantity),
		}
		view.Lines = append(view.Lines, line)
		view.Subtotal += line.LineTotal
	}
	return view, nil
}

// CleanupForOrder drops the cart lines of the products an order was placed for.
func (s *cartService) CleanupForOrder(ctx context.Context, userID, orderID uuid.UUID) (int64, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return 0, notFound(err, "order")
	}
	if order.UserID != userID {
		return 0, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	removed, err := s.carts.DeleteProducts(ctx, userID, orderProductIDs(order))
	if err != nil {
		return 0, internal(err, "clean up cart")
	}
	return removed, nil
}

func checkAgainstStock(product *model.Product, qty int) error {
	if err := product.ValidateQuantity(qty); err != nil {
		return err
	}
	if qty > product.Stock {
		return model.InsufficientStock(product, qty)
	}
	return nil
}

func orderProductIDs(order *model.Order) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
