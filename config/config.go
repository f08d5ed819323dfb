package config

import (
	"os"
	"strconv"
	"time"

	"priceatlas/cpiworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Ledger (MongoDB) configuration
	MongoURI      string
	MongoDatabase string

	// Redis configuration for the observation event stream
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration for retailer cooldowns
	MemcacheAddr string

	// Optional Prometheus listener, e.g. ":9090". Empty disables it.
	MetricsAddr string

	// Scrape run configuration
	BatchSize          int
	ProductConcurrency int
	MaxAttempts        int
	AttemptTimeout     time.Duration
	CooldownTime       time.Duration

	// Retailer endpoints
	GoogleURL        string
	WalmartSearchURL string
	BodegaSearchURL  string
	ChedrauiAPIURL   string
	SorianaSearchURL string
	LaComerAPIURL    string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	batchSize, _ := strconv.Atoi(getEnv("BATCH_SIZE", "10"))
	productConcurrency, _ := strconv.Atoi(getEnv("PRODUCT_CONCURRENCY", "2"))
	maxAttempts, _ := strconv.Atoi(getEnv("MAX_ATTEMPTS", "5"))
	attemptTimeout, _ := strconv.Atoi(getEnv("ATTEMPT_TIMEOUT_SECONDS", "90"))
	cooldown, _ := strconv.Atoi(getEnv("RETAILER_COOLDOWN_SECONDS", "300"))

	return Config{
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "cpi"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "observations"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         os.Getenv("MEMCACHE_ADDR"),
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
		BatchSize:            batchSize,
		ProductConcurrency:   productConcurrency,
		MaxAttempts:          maxAttempts,
		AttemptTimeout:       time.Duration(attemptTimeout) * time.Second,
		CooldownTime:         time.Duration(cooldown) * time.Second,
		GoogleURL:            getEnv("GOOGLE_URL", "https://www.google.com.mx"),
		WalmartSearchURL:     getEnv("WALMART_SEARCH_URL", "https://www.walmart.com.mx/productos?Ntt=%s"),
		BodegaSearchURL:      getEnv("BODEGA_SEARCH_URL", "https://www.bodegaaurrera.com.mx/productos?Ntt=%s"),
		ChedrauiAPIURL:       getEnv("CHEDRAUI_API_URL", "https://www.chedraui.com.mx/api/catalog_system/pub/products/search?ft=%s"),
		SorianaSearchURL:     getEnv("SORIANA_SEARCH_URL", "https://www.soriana.com/on/demandware.store/Sites-Soriana-Site/es_MX/Search-ShowAjax?q=%s&lang=es_MX"),
		LaComerAPIURL:        getEnv("LACOMER_API_URL", "https://www.lacomer.com.mx/api/articulo/articulos-alias/%s"),
		Environment:          getEnv("CPI_ENVIRONMENT", "development"),
	}
}

// Validate checks that required configuration is present. Ledger credentials
// gate startup; everything else has a usable default or is optional.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return errors.NewConfiguration("MONGO_URI is required", nil)
	}
	if c.MongoDatabase == "" {
		return errors.NewConfiguration("MONGO_DATABASE is required", nil)
	}
	if c.BatchSize <= 0 {
		return errors.NewConfiguration("BATCH_SIZE must be positive", nil)
	}
	if c.MaxAttempts <= 0 {
		return errors.NewConfiguration("MAX_ATTEMPTS must be positive", nil)
	}
	if c.ProductConcurrency <= 0 {
		return errors.NewConfiguration("PRODUCT_CONCURRENCY must be positive", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
