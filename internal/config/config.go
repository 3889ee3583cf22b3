package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPPort int

	RedisAddr     string
	RedisPassword string

	MongoURI            string
	MongoDBName         string
	MongoConnectTimeout time.Duration
	MongoMaxPoolSize    uint64

	APIBaseURL string
	APIKey     string

	ChargeBaseURL   string
	ChargeSecretKey string

	ShippingFee decimal.Decimal
}

func Load() Config {
	// .env is a local convenience; absence is not an error.
	_ = godotenv.Load()

	return Config{
		Env:                 getEnv("APP_ENV", "dev"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:         getEnv("MONGO_DB_NAME", "storefront"),
		MongoConnectTimeout: time.Duration(getEnvInt("MONGO_CONNECT_TIMEOUT_SECONDS", 10)) * time.Second,
		MongoMaxPoolSize:    uint64(getEnvInt("MONGO_MAX_POOL_SIZE", 20)),
		APIBaseURL:          getEnv("PRIMARY_API_URL", "http://localhost:9000"),
		APIKey:              getEnv("PRIMARY_API_KEY", ""),
		ChargeBaseURL:       getEnv("CHARGE_PROVIDER_URL", "http://localhost:9100"),
		ChargeSecretKey:     getEnv("CHARGE_PROVIDER_KEY", ""),
		ShippingFee:         getEnvDecimal("SHIPPING_FEE", decimal.NewFromInt(10)),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}

	return d
}
