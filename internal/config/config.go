package config

import (
	"fmt"
	"net/url"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Workers  WorkersConfig  `mapstructure:"workers"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// DatabaseConfig contains the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host        string `mapstructure:"host"         validate:"required"`
	Port        int    `mapstructure:"port"         validate:"required,gt=0,lt=65536"`
	User        string `mapstructure:"user"         validate:"required"`
	Password    string `mapstructure:"password"     validate:"required"`
	Name        string `mapstructure:"name"         validate:"required"`
	SSLMode     string `mapstructure:"sslmode"      validate:"required,oneof=disable allow prefer require verify-ca verify-full"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// DSN builds a postgres:// connection URL from the individual settings.
// Credentials are escaped so passwords with reserved characters survive.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string  `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int     `mapstructure:"token_lifetime_minutes" validate:"required,min=1,max=43200"`
	BcryptCost           int     `mapstructure:"bcrypt_cost"            validate:"required,min=10,max=14"`
	RateLimitRPS         float64 `mapstructure:"rate_limit_rps"         validate:"gt=0"`
	RateLimitBurst       int     `mapstructure:"rate_limit_burst"       validate:"gte=1"`
}

// StorageConfig controls where uploaded images live and how they are exposed.
type StorageConfig struct {
	UploadDir    string `mapstructure:"upload_dir"    validate:"required"`
	PublicPrefix string `mapstructure:"public_prefix" validate:"required,excludesall=/\\"`
	BaseURL      string `mapstructure:"base_url"      validate:"required,url"`
}

// WorkersConfig sizes the pool that runs password hashing and image transcoding.
type WorkersConfig struct {
	Count int `mapstructure:"count" validate:"gte=0,lte=256"`
}
