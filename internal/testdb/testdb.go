// Package testdb opens throwaway SQLite databases with the production schema for package tests.
package testdb

import (
	"fmt"
	"testing"

	"go-material-store/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated in-memory database private to the test.
// A single connection makes concurrent transactions queue instead of failing with SQLITE_BUSY.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Models()...))
	return db
}

// SeedProduct inserts a product with the given price and stock.
func SeedProduct(t testing.TB, db *gorm.DB, name string, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		SKU:        "SKU-" + uuid.NewString()[:8],
		Name:       name,
		Price:      price,
		Stock:      stock,
		Unit:       "pcs",
		MinOrder:   1,
		MultiOrder: 1,
		IsActive:   true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedUser inserts an active customer.
func SeedUser(t testing.TB, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, FullName: "Test " + email, PhoneNumber: "0812000000", IsActive: true}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedAddress inserts an address owned by userID.
func SeedAddress(t testing.TB, db *gorm.DB, userID uuid.UUID) *model.Address {
	t.Helper()
	a := &model.Address{
		UserID:     userID,
		Label:      "Home",
		Recipient:  "Budi",
		Phone:      "0812000000",
		Street:     "Jl. Merdeka 1",
		City:       "Bandung",
		Province:   "Jawa Barat",
		PostalCode: "40111",
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

// Stock reads the current stock of a product.
func Stock(t testing.TB, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var p model.Product
	require.NoError(t, db.First(&p, "id = ?", productID).Error)
	return p.Stock
}
