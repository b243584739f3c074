package postgres

import (
	"context"
	"time"
)

// CreateUser inserts u. A taken email yields ErrDuplicate.
func (p *PostgresClient) CreateUser(ctx context.Context, u *UserRecord) error {
	return translate(p.DB.WithContext(ctx).Create(u).Error)
}

func (p *PostgresClient) FindUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	var u UserRecord
	if err := p.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (p *PostgresClient) FindUserByID(ctx context.Context, id string) (*UserRecord, error) {
	var u UserRecord
	if err := p.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (p *PostgresClient) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return p.DB.WithContext(ctx).
		Model(&UserRecord{}).
		Where("id = ?", id).
		Update("last_login_at", at.UTC()).Error
}

func (p *PostgresClient) SetUserActive(ctx context.Context, id string, active bool) error {
	return p.DB.WithContext(ctx).
		Model(&UserRecord{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}
