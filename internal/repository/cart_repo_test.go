package repository

import (
	"context"
	"testing"

	"go-material-store/internal/model"
	"go-material-store/internal/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartFindOrCreateIsSingleton(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	user := testdb.SeedUser(t, db, "buyer@example.com")
	repo := NewCartRepo(db)

	first, err := repo.FindOrCreate(ctx, user.ID)
	require.NoError(t, err)
	second, err := repo.FindOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCartItemsScopedToOwner(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	owner := testdb.SeedUser(t, db, "owner@example.com")
	other := testdb.SeedUser(t, db, "other@example.com")
	p := testdb.SeedProduct(t, db, "Nails", 500, 100)
	q := testdb.SeedProduct(t, db, "Screws", 700, 100)
	repo := NewCartRepo(db)

	cart, err := repo.FindOrCreate(ctx, owner.ID)
	require.NoError(t, err)
	item := &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 3}
	require.NoError(t, repo.CreateItem(ctx, item))
	require.NoError(t, repo.CreateItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: q.ID, Quantity: 1}))

	got, err := repo.FindItemForUser(ctx, owner.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.Product.ID)

	_, err = repo.FindItemForUser(ctx, other.ID, item.ID)
	assert.Error(t, err)

	n, err := repo.DeleteProducts(ctx, owner.ID, []uuid.UUID{p.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// the same product can be added again after removal
	require.NoError(t, repo.CreateItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 1}))

	require.NoError(t, repo.Clear(ctx, owner.ID))
	items, err := repo.FindItemsForUser(ctx, owner.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMergeItemAddsToExistingLine(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	owner := testdb.SeedUser(t, db, "merge@example.com")
	p := testdb.SeedProduct(t, db, "Nails", 500, 100)
	repo := NewCartRepo(db)

	cart, err := repo.FindOrCreate(ctx, owner.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MergeItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 3}))
	require.NoError(t, repo.MergeItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 4}))

	items, err := repo.FindItemsForUser(ctx, owner.ID, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
}
