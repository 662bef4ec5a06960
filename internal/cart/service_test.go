package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/internal/products"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Cart{}, &models.CartItem{}))
	return db
}

func newCartService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), products.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, price string, stock int, available bool) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:      "Toor Dal 1kg",
		Slug:      "toor-dal-" + uuid.NewString()[:8],
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Available: available,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func userOwner() Owner {
	id := uuid.New()
	return Owner{UserID: &id}
}

func TestGetCreatesCartOnFirstTouch(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	owner := userOwner()

	cart, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, cart.ID)
	require.Empty(t, cart.Items)

	again, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, cart.ID, again.ID)
}

func TestAddItemMergesExistingLine(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	owner := userOwner()
	product := seedProduct(t, db, "120.00", 10, true)

	cart, err := svc.AddItem(ctx, owner, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 2, cart.Items[0].Quantity)

	cart, err = svc.AddItem(ctx, owner, product.ID, 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddItemRejectsUnavailableProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	owner := userOwner()
	product := seedProduct(t, db, "99.00", 10, false)

	_, err := svc.AddItem(context.Background(), owner, product.ID, 1)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAddItemRejectsBeyondStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	owner := userOwner()
	product := seedProduct(t, db, "99.00", 3, true)

	_, err := svc.AddItem(context.Background(), owner, product.ID, 4)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())
}

func TestSetItemQuantityZeroRemovesLine(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	owner := userOwner()
	product := seedProduct(t, db, "45.00", 10, true)

	_, err := svc.AddItem(ctx, owner, product.ID, 2)
	require.NoError(t, err)

	cart, err := svc.SetItemQuantity(ctx, owner, product.ID, 0)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}

func TestClearEmptiesCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	owner := userOwner()
	a := seedProduct(t, db, "45.00", 10, true)
	b := seedProduct(t, db, "60.00", 10, true)

	_, err := svc.AddItem(ctx, owner, a.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, b.ID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, owner))

	cart, err := svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}

func TestCartTotalsUseEffectivePrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	owner := userOwner()

	discounted := seedProduct(t, db, "100.00", 10, true)
	sale := decimal.RequireFromString("80.00")
	discounted.DiscountPrice = &sale
	require.NoError(t, db.Save(discounted).Error)

	regular := seedProduct(t, db, "50.00", 10, true)

	_, err := svc.AddItem(ctx, owner, discounted.ID, 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, owner, regular.ID, 1)
	require.NoError(t, err)

	require.Equal(t, 3, cart.TotalQuantity())
	require.Equal(t, "210.00", cart.TotalPrice().StringFixed(2))
}

func TestOwnerRequiresExactlyOneIdentity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)

	_, err := svc.Get(context.Background(), Owner{})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	id := uuid.New()
	key := "sess-1"
	_, err = svc.Get(context.Background(), Owner{UserID: &id, SessionKey: &key})
	require.Error(t, err)
}

func TestSessionOwnedCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	key := "sess-" + uuid.NewString()
	owner := Owner{SessionKey: &key}

	cart, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.NotNil(t, cart.SessionKey)
	require.Equal(t, key, *cart.SessionKey)
}
