package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const barBatchSize = 500

// StoreStockData upserts the stock reference row and every bar in a single
// transaction. Any failure rolls back the whole batch.
func (p *PostgresClient) StoreStockData(ctx context.Context, stock *StockRecord, bars []BarRecord) error {
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if stock != nil {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "symbol"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "sector", "industry", "market_cap", "employees",
					"website", "description", "country", "currency", "exchange", "updated_at",
				}),
			}).Create(stock).Error
			if err != nil {
				return fmt.Errorf("upsert stock %s: %w", stock.Symbol, err)
			}
		}

		if len(bars) == 0 {
			return nil
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "time"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).CreateInBatches(bars, barBatchSize).Error
		if err != nil {
			return fmt.Errorf("upsert %d bars: %w", len(bars), err)
		}
		return nil
	})
}

// GetBars returns stored bars for symbol in [from, to], oldest first.
func (p *PostgresClient) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]BarRecord, error) {
	var bars []BarRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND time >= ? AND time <= ?", symbol, from.UTC(), to.UTC()).
		Order("time ASC").
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}
	return bars, nil
}

func (p *PostgresClient) GetStock(ctx context.Context, symbol string) (*StockRecord, error) {
	var stock StockRecord
	if err := p.DB.WithContext(ctx).Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		return nil, translate(err)
	}
	return &stock, nil
}
