package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketgateway/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

type PostgresClient struct {
	DB *gorm.DB
}

func NewClient(dsn string) (*PostgresClient, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresClient{DB: db}, nil
}

// NewClientFromDB wraps an already opened gorm handle. The handle should be
// opened with TranslateError so duplicate keys surface as ErrDuplicate.
func NewClientFromDB(db *gorm.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

// Initialize connects to Postgres, optionally creates the DB, applies pool
// settings and runs AutoMigrate.
func Initialize(ctx context.Context, cfg config.PostgresConfig, env string) (*PostgresClient, error) {
	if cfg.CreateDatabase {
		if err := CreateDatabase(ctx, cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	client, err := NewClient(cfg.DSN(env))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	sqlDB, err := client.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		if err := client.AutoMigrate(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	return client, nil
}

// AutoMigrate creates or updates every table the gateway owns.
func (p *PostgresClient) AutoMigrate() error {
	if err := p.DB.AutoMigrate(&StockRecord{}, &BarRecord{}, &UserRecord{}, &RefreshTokenRecord{}); err != nil {
		return fmt.Errorf("auto-migrate tables: %w", err)
	}
	return nil
}

func (p *PostgresClient) Ping(ctx context.Context) error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.PingContext(ctx)
}

func (p *PostgresClient) IsHealthy(ctx context.Context) bool {
	return p.Ping(ctx) == nil
}

func (p *PostgresClient) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
