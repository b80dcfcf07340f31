package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/internal/storage"
	"github.com/cupid-chocolate/giftlab/internal/storage/storagetest"
)

func revenueKeys(rows []storage.RevenueRow) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
	}
	return keys
}

func TestSalesRepository_Summary(t *testing.T) {
	db := storagetest.NewSeededDB(t)
	repo := storage.NewSalesRepository(db)
	ctx := context.Background()

	s, err := repo.Summary(ctx, storage.SalesFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Orders)
	assert.InDelta(t, 174.0, s.Revenue, 1e-9)
	assert.InDelta(t, 95.0, s.Profit, 1e-9)
	assert.InDelta(t, 34.8, s.AvgOrder, 1e-9)

	s, err = repo.Summary(ctx, storage.SalesFilter{Channel: "online", Month: "2025-02"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Orders)
	assert.InDelta(t, 75.0, s.Revenue, 1e-9)

	s, err = repo.Summary(ctx, storage.SalesFilter{Country: "ZZ"})
	require.NoError(t, err)
	assert.Zero(t, s.Orders)
	assert.Zero(t, s.Revenue)
}

func TestSalesRepository_Revenue(t *testing.T) {
	db := storagetest.NewSeededDB(t)
	repo := storage.NewSalesRepository(db)
	ctx := context.Background()

	rows, err := repo.Revenue(ctx, storage.ByCategory, storage.SalesFilter{}, 0)
	require.NoError(t, err)
	// Equal revenue breaks by key.
	assert.Equal(t, []string{"Gift Boxes", "Truffles", "Bars"}, revenueKeys(rows))
	assert.InDelta(t, 75.0, rows[0].Revenue, 1e-9)

	rows, err = repo.Revenue(ctx, storage.ByMonth, storage.SalesFilter{}, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-01", "2025-02"}, revenueKeys(rows))
	assert.Equal(t, 2, rows[0].Orders)
	assert.InDelta(t, 5.0, rows[0].Units, 1e-9)
	assert.InDelta(t, 125.0, rows[1].Revenue, 1e-9)

	rows, err = repo.Revenue(ctx, storage.ByCountry, storage.SalesFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA"}, revenueKeys(rows))

	rows, err = repo.Revenue(ctx, storage.ByProduct, storage.SalesFilter{Category: "Truffles"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dark Truffle"}, revenueKeys(rows))
}

func TestSalesRepository_Context(t *testing.T) {
	db := storagetest.NewSeededDB(t)
	repo := storage.NewSalesRepository(db)

	sc, err := repo.Context(context.Background(), storage.SalesFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, sc.Summary.Orders)
	assert.Len(t, sc.ByCategory, 3)
	assert.Len(t, sc.TopProducts, 3)
	assert.Equal(t, []string{"online", "retail"}, revenueKeys(sc.ByChannel))
	assert.Equal(t, []string{"2025-01", "2025-02"}, revenueKeys(sc.ByMonth))
	assert.Equal(t, []string{"Gold", "Silver"}, revenueKeys(sc.ByLoyalty))
	assert.NotEmpty(t, sc.ByPromotion)
}

func TestSalesRepository_FilterOptions(t *testing.T) {
	db := storagetest.NewSeededDB(t)
	repo := storage.NewSalesRepository(db)

	opts, err := repo.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bars", "Gift Boxes", "Truffles"}, opts.Categories)
	assert.Equal(t, []string{"online", "retail"}, opts.Channels)
	assert.Equal(t, []string{"CA", "FR", "KR", "US"}, opts.Countries)
	assert.Equal(t, []string{"2025-01", "2025-02"}, opts.Months)
}
