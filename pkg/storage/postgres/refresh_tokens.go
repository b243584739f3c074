package postgres

import (
	"context"
	"time"
)

func (p *PostgresClient) CreateRefreshToken(ctx context.Context, r *RefreshTokenRecord) error {
	return translate(p.DB.WithContext(ctx).Create(r).Error)
}

// FindValidRefreshToken returns the row for token owned by userID that is
// still unexpired at now.
func (p *PostgresClient) FindValidRefreshToken(ctx context.Context, token, userID string, now time.Time) (*RefreshTokenRecord, error) {
	var r RefreshTokenRecord
	err := p.DB.WithContext(ctx).
		Where("token = ? AND user_id = ? AND expires_at > ?", token, userID, now.UTC()).
		First(&r).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// DeleteRefreshToken removes the row if present. Deleting a missing row is not an error.
func (p *PostgresClient) DeleteRefreshToken(ctx context.Context, token, userID string) error {
	return p.DB.WithContext(ctx).
		Where("token = ? AND user_id = ?", token, userID).
		Delete(&RefreshTokenRecord{}).Error
}

// PurgeExpiredRefreshTokens deletes rows expired before now and returns the count.
func (p *PostgresClient) PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&RefreshTokenRecord{})
	return tx.RowsAffected, tx.Error
}
