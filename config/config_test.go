package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"priceatlas/cpiworker/pkg/errors"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "cpi", config.MongoDatabase)
	assert.Equal(t, 10, config.BatchSize)
	assert.Equal(t, 2, config.ProductConcurrency)
	assert.Equal(t, 5, config.MaxAttempts)
	assert.Equal(t, 90*time.Second, config.AttemptTimeout)
	assert.Equal(t, 300*time.Second, config.CooldownTime)
	assert.Equal(t, "observations", config.RedisStream)
	assert.Contains(t, config.ChedrauiAPIURL, "%s")
	assert.Contains(t, config.LaComerAPIURL, "%s")
	assert.Contains(t, config.SorianaSearchURL, "%s")

	// Test with environment variables
	os.Setenv("MONGO_DATABASE", "cpi_test")
	os.Setenv("BATCH_SIZE", "25")
	os.Setenv("MAX_ATTEMPTS", "3")
	os.Setenv("ATTEMPT_TIMEOUT_SECONDS", "30")
	os.Setenv("CHEDRAUI_API_URL", "https://example.com/search?ft=%s")

	config = LoadConfig()
	assert.Equal(t, "cpi_test", config.MongoDatabase)
	assert.Equal(t, 25, config.BatchSize)
	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 30*time.Second, config.AttemptTimeout)
	assert.Equal(t, "https://example.com/search?ft=%s", config.ChedrauiAPIURL)

	// Clean up
	os.Unsetenv("MONGO_DATABASE")
	os.Unsetenv("BATCH_SIZE")
	os.Unsetenv("MAX_ATTEMPTS")
	os.Unsetenv("ATTEMPT_TIMEOUT_SECONDS")
	os.Unsetenv("CHEDRAUI_API_URL")
}

func TestValidate(t *testing.T) {
	valid := Config{
		MongoURI:           "mongodb://localhost:27017",
		MongoDatabase:      "cpi",
		BatchSize:          10,
		MaxAttempts:        5,
		ProductConcurrency: 2,
	}
	assert.NoError(t, valid.Validate())

	missingURI := valid
	missingURI.MongoURI = ""
	err := missingURI.Validate()
	assert.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfiguration, errors.TypeOf(err))

	badAttempts := valid
	badAttempts.MaxAttempts = 0
	assert.Error(t, badAttempts.Validate())

	badConcurrency := valid
	badConcurrency.ProductConcurrency = -1
	assert.Error(t, badConcurrency.Validate())
}
