package config

import (
	"fmt"
	"time"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	// Parameter Store names consulted in prod; empty keeps the plain value
	HostParam     string `mapstructure:"host_param"`
	UserParam     string `mapstructure:"user_param"`
	PasswordParam string `mapstructure:"password_param"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	CreateDatabase bool `mapstructure:"create_database"`
	AutoMigrate    bool `mapstructure:"auto_migrate"`
}

// DSN builds the connection string. In prod the host and credentials are read
// from SSM Parameter Store when parameter names are configured.
func (cfg *PostgresConfig) DSN(env string) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" || env == "production" {
		host = parameterOr(cfg.HostParam, host)
		user = parameterOr(cfg.UserParam, user)
		password = parameterOr(cfg.PasswordParam, password)
	}
	return cfg.dsn(host, user, password, cfg.DBName)
}

// MaintenanceDSN points at the server's default "postgres" database, used to
// create the application database before the first connection.
func (cfg *PostgresConfig) MaintenanceDSN(env string) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" || env == "production" {
		host = parameterOr(cfg.HostParam, host)
		user = parameterOr(cfg.UserParam, user)
		password = parameterOr(cfg.PasswordParam, password)
	}
	return cfg.dsn(host, user, password, "postgres")
}

func (cfg *PostgresConfig) dsn(host, user, password, dbname string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}
