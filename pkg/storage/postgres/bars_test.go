package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketgateway/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func bar(symbol string, at time.Time, closePrice string, volume int64) postgres.BarRecord {
	c := decimal.RequireFromString(closePrice)
	return postgres.BarRecord{
		Time:   at,
		Symbol: symbol,
		Open:   c,
		High:   c,
		Low:    c,
		Close:  c,
		Volume: volume,
	}
}

// go test -v --run TestStoreStockDataUpsert
func TestStoreStockDataUpsert(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	stock := &postgres.StockRecord{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology"}
	bars := []postgres.BarRecord{
		bar("AAPL", day, "190.5", 100),
		bar("AAPL", day.AddDate(0, 0, 1), "191.25", 200),
	}
	require.NoError(t, client.StoreStockData(ctx, stock, bars))

	// Re-store the same window with a revised close and new metadata
	stock2 := &postgres.StockRecord{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Information Technology"}
	require.NoError(t, client.StoreStockData(ctx, stock2, []postgres.BarRecord{bar("AAPL", day, "190.75", 150)}))

	got, err := client.GetBars(ctx, "AAPL", day, day.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, decimal.RequireFromString("190.75").Equal(got[0].Close))
	assert.Equal(t, int64(150), got[0].Volume)
	assert.True(t, day.Equal(got[0].Time))

	s, err := client.GetStock(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Information Technology", s.Sector)

	_, err = client.GetStock(ctx, "MSFT")
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

// go test -v --run TestStoreStockDataRollback
func TestStoreStockDataRollback(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.DB.Callback().Create().Before("gorm:create").Register("test:fail_bars", func(tx *gorm.DB) {
		if tx.Statement.Table == "stock_prices" {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	err = client.StoreStockData(ctx,
		&postgres.StockRecord{Symbol: "MSFT", Name: "Microsoft"},
		[]postgres.BarRecord{bar("MSFT", day, "410", 1)},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = client.GetStock(ctx, "MSFT")
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}
