package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	infraRepo "bookstore/internal/infra/repository"
	repo "bookstore/internal/repository"
	"bookstore/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestOrderGorm_CreateDuplicateSession(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	orders := infraRepo.NewOrderGormRepository(gdb)
	ctx := context.Background()

	o := model.Order{ID: "o1", SessionID: "cs_1", UserID: "u1", Status: model.OrderStatusPending, TotalPrice: decimal.NewFromInt(10), CreatedAt: base, UpdatedAt: base}
	require.NoError(t, orders.Create(ctx, o))

	o.ID = "o2"
	err := orders.Create(ctx, o)
	assert.ErrorIs(t, err, repo.ErrConflict)

	got, err := orders.FindBySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)

	_, err = orders.FindByID(ctx, "o2")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestOrderGorm_CompareAndSetStatus(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	orders := infraRepo.NewOrderGormRepository(gdb)
	ctx := context.Background()
	o := testutil.SeedOrder(t, gdb, model.Order{SessionID: "cs_1", UserID: "u1"})

	ok, err := orders.CompareAndSetStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusPreparing)
	require.NoError(t, err)
	assert.True(t, ok)

	//2回目は前提のstatusが違うので更新されない
	ok, err = orders.CompareAndSetStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusPreparing)
	require.NoError(t, err)
	assert.False(t, ok)

	//確定済みはPENDING削除の対象外
	deleted, err := orders.DeletePending(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPreparing, got.Status)
}

func TestOrderGorm_DeletePending(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	orders := infraRepo.NewOrderGormRepository(gdb)
	ctx := context.Background()
	o := testutil.SeedOrder(t, gdb, model.Order{SessionID: "cs_1", UserID: "u1"})

	deleted, err := orders.DeletePending(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = orders.DeletePending(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = orders.FindByID(ctx, o.ID)
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func TestOrderGorm_ListPendingBefore(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	orders := infraRepo.NewOrderGormRepository(gdb)
	ctx := context.Background()

	old := base.Add(-time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		testutil.SeedOrder(t, gdb, model.Order{ID: id, SessionID: "cs_" + id, UserID: "u1", CreatedAt: old})
	}
	testutil.SeedOrder(t, gdb, model.Order{ID: "d", SessionID: "cs_d", UserID: "u1", CreatedAt: base})
	testutil.SeedOrder(t, gdb, model.Order{ID: "e", SessionID: "cs_e", UserID: "u1", CreatedAt: old, Status: model.OrderStatusPreparing})

	cutoff := base.Add(-10 * time.Minute)

	page, err := orders.ListPendingBefore(ctx, cutoff, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, err = orders.ListPendingBefore(ctx, cutoff, "b", 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)
}

func TestOrderLineGorm_PriceSnapshot(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.SeedProduct(t, gdb, "b1", "10.50", 5)
	o := testutil.SeedOrder(t, gdb, model.Order{SessionID: "cs_1", UserID: "u1"},
		model.OrderLine{ProductID: "b1", Quantity: 2, Price: decimal.RequireFromString("10.50")})

	//商品の値上げは注文明細に影響しない
	require.NoError(t, gdb.Model(&model.Product{}).Where("id = ?", "b1").Update("price", decimal.NewFromInt(99)).Error)

	lines, err := infraRepo.NewOrderLineGormRepository(gdb).ListByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("10.50")))
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(21)))
}

func TestProductGorm_Stock(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	products := infraRepo.NewProductGormRepository(gdb)
	ctx := context.Background()
	testutil.SeedProduct(t, gdb, "b1", "10", 5)

	require.NoError(t, products.DecreaseStock(ctx, "b1", 2))
	require.NoError(t, products.IncreaseStock(ctx, "b1", 1))
	assert.Equal(t, int64(4), testutil.Stock(t, gdb, "b1"))

	require.NoError(t, products.SetStock(ctx, "b1", 0))
	assert.Equal(t, int64(0), testutil.Stock(t, gdb, "b1"))

	assert.ErrorIs(t, products.DecreaseStock(ctx, "missing", 1), repo.ErrNotFound)
	assert.ErrorIs(t, products.SetStock(ctx, "missing", 1), repo.ErrNotFound)

	got, err := products.FindByIDs(ctx, []string{"b1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	err = products.Create(ctx, model.Product{ID: "b1", Title: "dup", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, repo.ErrConflict)
}

func TestTxManagerGorm_Rollback(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	tx := infraRepo.NewTxManagerGorm(gdb)
	ctx := context.Background()
	testutil.SeedProduct(t, gdb, "b1", "10", 5)

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Products().DecreaseStock(ctx, "b1", 5); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(5), testutil.Stock(t, gdb, "b1"))
}
