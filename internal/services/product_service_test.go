package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/microservicios/internal/database"
	"github.com/isdelr/microservicios/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductService(t *testing.T) *ProductService {
	t.Helper()
	return NewProductService(newTestDB(t, database.MigrateCatalog))
}

func createProduct(t *testing.T, svc *ProductService, name, price string, qty int) models.Product {
	t.Helper()
	p, err := svc.CreateProduct(models.Product{Name: name, Price: decimal.RequireFromString(price), Quantity: qty})
	require.NoError(t, err)
	return p
}

func TestProductService_CRUD(t *testing.T) {
	svc := newProductService(t)

	p := createProduct(t, svc, "Cuaderno", "12.50", 5)
	assert.NotZero(t, p.ID)

	got, err := svc.GetProduct(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cuaderno", got.Name)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Price))

	name := "Cuaderno A4"
	qty := 9
	updated, err := svc.UpdateProduct(p.ID, models.ProductUpdate{Name: &name, Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "Cuaderno A4", updated.Name)
	assert.Equal(t, 9, updated.Quantity)
	assert.True(t, got.Price.Equal(updated.Price), "price left untouched")

	require.NoError(t, svc.DeleteProduct(p.ID))
	_, err = svc.GetProduct(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteProduct(p.ID), ErrNotFound)

	_, err = svc.UpdateProduct(p.ID, models.ProductUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductService_ListProducts(t *testing.T) {
	svc := newProductService(t)
	for i := 0; i < 12; i++ {
		createProduct(t, svc, "p", "1.00", 1)
	}

	products, page, err := svc.ListProducts(0, 0)
	require.NoError(t, err)
	assert.Len(t, products, DefaultPerPage)
	assert.Equal(t, models.Page{Total: 12, Pages: 2, CurrentPage: 1}, page)

	products, page, err = svc.ListProducts(2, 10)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 2, page.CurrentPage)

	products, page, err = svc.ListProducts(7, 10)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 7, page.CurrentPage)
	assert.Equal(t, 2, page.Pages)
}

func TestProductService_SellProduct(t *testing.T) {
	svc := newProductService(t)
	saleTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return saleTime }
	p := createProduct(t, svc, "Lapiz", "1.50", 10)
	ctx := context.Background()

	receipt, remaining, err := svc.SellProduct(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
	assert.Equal(t, "4.50", receipt.Total)
	assert.Equal(t, "Lapiz", receipt.ProductName)
	assert.Equal(t, 3, receipt.Quantity)
	assert.True(t, saleTime.Equal(receipt.SaleDate))

	got, err := svc.GetProduct(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)

	t.Run("invalid quantity", func(t *testing.T) {
		_, _, err := svc.SellProduct(ctx, p.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		_, _, err = svc.SellProduct(ctx, p.ID, -2)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("insufficient stock leaves state unchanged", func(t *testing.T) {
		_, _, err := svc.SellProduct(ctx, p.ID, 8)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		got, err := svc.GetProduct(p.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, got.Quantity)

		_, page, err := svc.ListSales(1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, _, err := svc.SellProduct(ctx, 9999, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("product with sales cannot be deleted", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteProduct(p.ID), ErrProductHasSales)
	})
}

func TestProductService_ConcurrentSalesNeverOversell(t *testing.T) {
	svc := newProductService(t)
	p := createProduct(t, svc, "Borrador", "0.25", 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.SellProduct(context.Background(), p.ID, 1); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := svc.GetProduct(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5-sold, got.Quantity)
	assert.GreaterOrEqual(t, got.Quantity, 0)
}

func TestProductService_ListSalesNewestFirst(t *testing.T) {
	svc := newProductService(t)
	p := createProduct(t, svc, "Regla", "2.00", 10)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		svc.now = func() time.Time { return at }
		_, _, err := svc.SellProduct(context.Background(), p.ID, i+1)
		require.NoError(t, err)
	}

	sales, page, err := svc.ListSales(1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.Page{Total: 3, Pages: 2, CurrentPage: 1}, page)
	require.Len(t, sales, 2)
	assert.Equal(t, 3, sales[0].Quantity)
	assert.Equal(t, 2, sales[1].Quantity)
	assert.True(t, decimal.RequireFromString("6").Equal(sales[0].Total))
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name        string
		page        int
		perPage     int
		wantPage    int
		wantPerPage int
	}{
		{name: "defaults", page: 0, perPage: 0, wantPage: DefaultPage, wantPerPage: DefaultPerPage},
		{name: "negative", page: -3, perPage: -1, wantPage: DefaultPage, wantPerPage: DefaultPerPage},
		{name: "in range", page: 4, perPage: 25, wantPage: 4, wantPerPage: 25},
		{name: "per page capped", page: 2, perPage: math.MaxInt, wantPage: 2, wantPerPage: MaxPerPage},
		{name: "page capped", page: math.MaxInt, perPage: MaxPerPage, wantPage: maxPage, wantPerPage: MaxPerPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, perPage := normalizePage(tt.page, tt.perPage)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
			assert.Positive(t, (page-1)*perPage+1)
		})
	}
}

func TestProductService_ListProductsHugePaging(t *testing.T) {
	svc := newProductService(t)
	for i := 0; i < 5; i++ {
		createProduct(t, svc, "Lapiz", "1.00", 1)
	}

	products, meta, err := svc.ListProducts(1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, products, 5)
	assert.Equal(t, 1, meta.Pages)

	products, meta, err = svc.ListProducts(math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 5, meta.Total)
}
