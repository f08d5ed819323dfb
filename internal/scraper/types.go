package scraper

import (
	"context"
	"strconv"
	"strings"

	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/services/proxy"
)

// Result is the outcome of a single extraction attempt. Found is false when
// the response was well-formed but carried no usable price; that is a clean
// miss, not an error, and never penalizes the proxy.
type Result struct {
	Price float64
	Found bool
}

// Strategy performs one attempt to obtain a price for a product. The proxy
// may be nil, meaning the attempt uses direct egress. Implementations must
// release every network resource on all exit paths; nothing is reused
// across attempts.
type Strategy interface {
	// Name returns the retailer name the strategy is bound to
	Name() string

	// Extract performs one extraction attempt
	Extract(ctx context.Context, product catalog.Product, pxy *proxy.Proxy) (Result, error)
}

// proxyURL returns the egress address for an attempt, or "" for direct.
func proxyURL(pxy *proxy.Proxy) string {
	if pxy == nil {
		return ""
	}
	return pxy.URL()
}

// parsePrice normalizes a displayed price like "$30.50" or "1,299.00" to a
// float. Returns false for anything that does not survive normalization.
func parsePrice(text string) (float64, bool) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}
