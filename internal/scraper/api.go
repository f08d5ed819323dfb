package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"priceatlas/cpiworker/helpers"
	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/logger"
	"priceatlas/cpiworker/pkg/errors"
	"priceatlas/cpiworker/services/proxy"
)

// APIShape selects the JSON layout a retailer's search endpoint returns.
type APIShape string

const (
	// ShapeVTEX is the catalog_system search layout:
	// [0].items[0].sellers[0].commertialOffer.Price
	ShapeVTEX APIShape = "vtex"
	// ShapeAlias is the articulos-alias layout: precioVenta at the top
	// level or under articulos[0].
	ShapeAlias APIShape = "alias"
)

// DirectAPIConfig configures a DirectAPIStrategy.
type DirectAPIConfig struct {
	Retailer  string
	SearchURL string // format template with one %s for the query term
	Shape     APIShape
	Timeout   time.Duration
}

// DirectAPIStrategy queries a retailer's product search API with the
// product code and descends a known JSON shape to the price. When the code
// query returns an empty result set, it retries once with the product's
// display name before reporting a miss.
type DirectAPIStrategy struct {
	cfg DirectAPIConfig
	log *logger.Logger
}

// NewDirectAPIStrategy creates a strategy for a JSON search endpoint.
func NewDirectAPIStrategy(cfg DirectAPIConfig) *DirectAPIStrategy {
	return &DirectAPIStrategy{
		cfg: cfg,
		log: logger.ForRetailer(cfg.Retailer),
	}
}

// Name returns the retailer this strategy is bound to.
func (s *DirectAPIStrategy) Name() string {
	return s.cfg.Retailer
}

// Extract performs one API extraction attempt.
func (s *DirectAPIStrategy) Extract(ctx context.Context, product catalog.Product, pxy *proxy.Proxy) (Result, error) {
	client, err := helpers.NewClient(proxyURL(pxy), s.cfg.Timeout)
	if err != nil {
		return Result{}, errors.NewConnectivity(s.cfg.Retailer, "failed to build HTTP client", err)
	}

	result, err := s.query(ctx, client, product.EAN)
	if err != nil || result.Found {
		return result, err
	}

	// Empty result for the code query; the name query is the one retry
	// the endpoint gets within this attempt.
	if product.Name == "" {
		return Result{}, nil
	}
	s.log.Debug().Str("ean", product.EAN).Msg("Code query empty, retrying with product name")
	return s.query(ctx, client, product.Name)
}

func (s *DirectAPIStrategy) query(ctx context.Context, client *http.Client, term string) (Result, error) {
	searchURL := fmt.Sprintf(s.cfg.SearchURL, url.QueryEscape(term))

	status, body, err := helpers.Fetch(ctx, client, searchURL, true)
	if err != nil {
		return Result{}, errors.NewConnectivity(s.cfg.Retailer, "search request failed", err)
	}

	switch status {
	case http.StatusOK:
		// fall through to parsing
	case http.StatusNotFound:
		return Result{}, nil
	case http.StatusForbidden, http.StatusBadGateway, http.StatusServiceUnavailable:
		return Result{}, errors.NewBlocked(s.cfg.Retailer, status)
	default:
		s.log.Warn().Int("status", status).Str("url", searchURL).Msg("Unexpected search status")
		return Result{}, nil
	}

	switch s.cfg.Shape {
	case ShapeAlias:
		return parseAliasPrice(body), nil
	default:
		return parseVTEXPrice(body), nil
	}
}

// parseVTEXPrice descends [0].items[0].sellers[0].commertialOffer.Price.
// Any missing level, including a body that is not the expected array at
// all, is schema drift and reads as a clean miss.
func parseVTEXPrice(body []byte) Result {
	var products []struct {
		Items []struct {
			Sellers []struct {
				CommertialOffer struct {
					Price float64 `json:"Price"`
				} `json:"commertialOffer"`
			} `json:"sellers"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &products); err != nil {
		return Result{}
	}
	if len(products) == 0 || len(products[0].Items) == 0 || len(products[0].Items[0].Sellers) == 0 {
		return Result{}
	}
	price := products[0].Items[0].Sellers[0].CommertialOffer.Price
	if price <= 0 {
		return Result{}
	}
	return Result{Price: price, Found: true}
}

// parseAliasPrice reads precioVenta either at the top level or from the
// first entry of an articulos array.
func parseAliasPrice(body []byte) Result {
	var payload struct {
		PrecioVenta *float64 `json:"precioVenta"`
		Articulos   []struct {
			PrecioVenta float64 `json:"precioVenta"`
		} `json:"articulos"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}
	}
	if payload.PrecioVenta != nil && *payload.PrecioVenta > 0 {
		return Result{Price: *payload.PrecioVenta, Found: true}
	}
	if len(payload.Articulos) > 0 && payload.Articulos[0].PrecioVenta > 0 {
		return Result{Price: payload.Articulos[0].PrecioVenta, Found: true}
	}
	return Result{}
}
