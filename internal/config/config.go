package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Shopify   ShopifyConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type ShopifyConfig struct {
	APIVersion    string
	PageSize      int
	MaxSyncPages  int
	WebhookSecret string
	StateTTL      int // in minutes
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

func Load() *Config {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SHOPIFY_API_VERSION", "2024-01")
	viper.SetDefault("SHOPIFY_PAGE_SIZE", 50)
	viper.SetDefault("SHOPIFY_MAX_SYNC_PAGES", 50)
	viper.SetDefault("OAUTH_STATE_TTL", 10)
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 60)

	if viper.GetString("SHOPIFY_WEBHOOK_SECRET") == "" {
		log.Printf("Warning: SHOPIFY_WEBHOOK_SECRET is not set; webhook verification will reject all deliveries")
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Shopify: ShopifyConfig{
			APIVersion:    viper.GetString("SHOPIFY_API_VERSION"),
			PageSize:      viper.GetInt("SHOPIFY_PAGE_SIZE"),
			MaxSyncPages:  viper.GetInt("SHOPIFY_MAX_SYNC_PAGES"),
			WebhookSecret: viper.GetString("SHOPIFY_WEBHOOK_SECRET"),
			StateTTL:      viper.GetInt("OAUTH_STATE_TTL"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: viper.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
	}
}

// DSN builds the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Schema)
}

// Addr builds the redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
