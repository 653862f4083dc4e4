// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/infra/db"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a fresh in-memory SQLite database with the schema migrated.
// A single connection serializes transactions the way row locks do in Postgres.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// SeedProduct inserts an available product.
func SeedProduct(t *testing.T, gdb *gorm.DB, id string, price string, stock int64) model.Product {
	t.Helper()

	p := model.Product{
		ID:          id,
		Title:       "Book " + id,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		IsAvailable: true,
	}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedOrder inserts an order with its lines, bypassing checkout.
func SeedOrder(t *testing.T, gdb *gorm.DB, o model.Order, lines ...model.OrderLine) model.Order {
	t.Helper()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = model.OrderStatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	for i := range lines {
		lines[i].OrderID = o.ID
	}
	o.TotalPrice = model.SumLines(lines)

	if err := gdb.Create(&o).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if len(lines) > 0 {
		if err := gdb.Create(&lines).Error; err != nil {
			t.Fatalf("seed lines: %v", err)
		}
	}
	return o
}

// Stock returns the current stock of a product.
func Stock(t *testing.T, gdb *gorm.DB, productID string) int64 {
	t.Helper()

	var p model.Product
	if err := gdb.First(&p, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.Stock
}

// CountLines returns how many order lines reference the order.
func CountLines(t *testing.T, gdb *gorm.DB, orderID string) int64 {
	t.Helper()

	var n int64
	if err := gdb.Model(&model.OrderLine{}).Where("order_id = ?", orderID).Count(&n).Error; err != nil {
		t.Fatalf("count lines: %v", err)
	}
	return n
}
