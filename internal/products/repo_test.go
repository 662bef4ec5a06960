package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int, available bool) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:      "Basmati Rice 5kg",
		Slug:      "basmati-rice-" + uuid.NewString()[:8],
		Price:     decimal.NewFromInt(499),
		Stock:     stock,
		Available: available,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestDecrementStockGuardsAgainstOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	product := seedProduct(t, db, 5, true)

	require.NoError(t, repo.DecrementStock(ctx, product.ID, 3))

	err := repo.DecrementStock(ctx, product.ID, 3)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 2, reloaded.Stock)
}

func TestDecrementStockRejectsUnavailableProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 10, false)

	err := repo.DecrementStock(context.Background(), product.ID, 1)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())
}

func TestIncrementStockRestocks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	product := seedProduct(t, db, 1, true)

	require.NoError(t, repo.DecrementStock(ctx, product.ID, 1))
	require.NoError(t, repo.IncrementStock(ctx, product.ID, 1))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 1, reloaded.Stock)
}

func TestCreatePersistsUnavailableFlag(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, 5, false)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.False(t, reloaded.Available)
}

func TestListAvailableExcludesHiddenProducts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	seedProduct(t, db, 5, true)
	seedProduct(t, db, 5, false)

	rows, err := repo.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
