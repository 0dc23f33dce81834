package service

import (
	"context"
	"fmt"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockLedger is the only writer of Product.Stock. Every change leaves a StockMovement row.
type StockLedger struct {
	db       *gorm.DB
	products repository.ProductRepository
}

func NewStockLedger(db *gorm.DB, products repository.ProductRepository) *StockLedger {
	return &StockLedger{db: db, products: products}
}

// Reserve atomically checks and decrements stock. It must run inside the caller's transaction.
func (l *StockLedger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID uuid.UUID, actor string) error {
	if qty <= 0 {
		return apperrors.New(apperrors.CodeValidation, "reserve quantity must be positive")
	}
	repo := l.products.WithTx(tx)

	ok, err := repo.DecrementStock(ctx, productID, qty, actor)
	if err != nil {
		return internal(err, "decrement stock")
	}
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		return notFound(err, "product")
	}
	if !ok {
		return model.InsufficientStock(product, qty)
	}

	return l.record(ctx, repo, product, model.MovementOut, model.ReasonCheckout, qty, &orderID, actor, "")
}

// Restore gives stock back for a cancelled order. Callers guarantee it runs once per cancellation.
func (l *StockLedger) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID uuid.UUID, actor string) error {
	if qty <= 0 {
		return nil
	}
	repo := l.products.WithTx(tx)

	if err := repo.IncrementStock(ctx, productID, qty, actor); err != nil {
		return notFound(err, "product")
	}
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		return notFound(err, "product")
	}
	return l.record(ctx, repo, product, model.MovementIn, model.ReasonCancellation, qty, &orderID, actor, "")
}

// Restock adds delivered goods to a product in its own transaction.
func (l *StockLedger) Restock(ctx context.Context, productID uuid.UUID, qty int, actor, note string) (*model.Product, error) {
	if qty <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "restock quantity must be positive")
	}

	var updated *model.Product
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := l.products.WithTx(tx)
		if _, err := repo.FindForUpdate(ctx, productID); err != nil {
			return notFound(err, "product")
		}
		if err := repo.IncrementStock(ctx, productID, qty, actor); err != nil {
			return internal(err, "increment stock")
		}
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			return internal(err, "reload product")
		}
		if err := l.record(ctx, repo, product, model.MovementIn, model.ReasonRestock, qty, nil, actor, note); err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Movements lists the ledger of one product, newest first.
func (l *StockLedger) Movements(ctx context.Context, productID uuid.UUID) ([]model.StockMovement, error) {
	if _, err := l.products.FindByID(ctx, productID); err != nil {
		return nil, notFound(err, "product")
	}
	movements, err := l.products.FindMovements(ctx, productID)
	if err != nil {
		return nil, internal(err, "list stock movements")
	}
	return movements, nil
}

func (l *StockLedger) record(ctx context.Context, repo repository.ProductRepository, product *model.Product,
	kind model.MovementType, reason model.MovementReason, qty int, orderID *uuid.UUID, actor, note string) error {
	movement := &model.StockMovement{
		ProductID:  product.ID,
		Type:       kind,
		Reason:     reason,
		Quantity:   qty,
		StockAfter: product.Stock,
		OrderID:    orderID,
		Note:       note,
	}
	movement.CreatedBy = actor
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return internal(err, fmt.Sprintf("record %s movement", kind))
	}
	return nil
}
