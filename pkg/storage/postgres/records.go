package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockRecord is the reference row for a listed symbol.
type StockRecord struct {
	Symbol      string  `gorm:"type:varchar(16);primaryKey"`
	Name        string  `gorm:"type:text"`
	Sector      string  `gorm:"type:text;index:idx_stocks_sector"`
	Industry    string  `gorm:"type:text"`
	MarketCap   float64 `gorm:"type:numeric"`
	Employees   int64
	Website     string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	Country     string `gorm:"type:text"`
	Currency    string `gorm:"type:varchar(8)"`
	Exchange    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (StockRecord) TableName() string {
	return "stocks"
}

// BarRecord is one OHLCV bar keyed by (time, symbol).
type BarRecord struct {
	Time   time.Time `gorm:"primaryKey;not null"`
	Symbol string    `gorm:"type:varchar(16);primaryKey;not null;index:idx_stock_prices_symbol"`

	Open  decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	High  decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Low   decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Close decimal.Decimal `gorm:"type:numeric(18,6);not null"`

	Volume int64 `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (BarRecord) TableName() string {
	return "stock_prices"
}

type UserRecord struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email"`
	PasswordHash string `gorm:"type:text;not null"`
	FirstName    string `gorm:"type:varchar(100)"`
	LastName     string `gorm:"type:varchar(100)"`
	Role         string `gorm:"type:varchar(20);not null;default:user"`
	IsActive     bool   `gorm:"not null"`
	LastLoginAt  *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserRecord) TableName() string {
	return "users"
}

// BeforeCreate assigns a random UUID when none is set.
func (u *UserRecord) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// RefreshTokenRecord binds a refresh token (the session id) to its user.
type RefreshTokenRecord struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_refresh_tokens_user"`
	Token     string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_refresh_tokens_token"`
	ExpiresAt time.Time `gorm:"not null;index:idx_refresh_tokens_expires"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (RefreshTokenRecord) TableName() string {
	return "refresh_tokens"
}

// IsExpired reports whether the token is past its expiry at now.
func (r *RefreshTokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
