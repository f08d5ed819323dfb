package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"priceatlas/cpiworker/helpers"
	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/logger"
	"priceatlas/cpiworker/pkg/errors"
	"priceatlas/cpiworker/services/proxy"
)

// defaultPriceSelectors are tried in order against the rendered search
// markup. The sales value node carries the displayed price on the
// demandware storefronts this strategy targets.
var defaultPriceSelectors = []string{
	".price .sales .value",
	".product-tile .price .value",
	".price .value",
}

// HTMLFallbackConfig configures an HTMLFallbackStrategy.
type HTMLFallbackConfig struct {
	Retailer  string
	SearchURL string // format template with one %s for the query term
	Selectors []string
	Timeout   time.Duration
}

// HTMLFallbackStrategy hits a search endpoint that sometimes answers JSON
// and sometimes a server-rendered HTML fragment. JSON bodies are inspected
// for a usable price first; anything that is not parseable JSON falls back
// to HTML selector extraction.
type HTMLFallbackStrategy struct {
	cfg HTMLFallbackConfig
	log *logger.Logger
}

// NewHTMLFallbackStrategy creates a strategy for a mixed JSON/HTML endpoint.
func NewHTMLFallbackStrategy(cfg HTMLFallbackConfig) *HTMLFallbackStrategy {
	if len(cfg.Selectors) == 0 {
		cfg.Selectors = defaultPriceSelectors
	}
	return &HTMLFallbackStrategy{
		cfg: cfg,
		log: logger.ForRetailer(cfg.Retailer),
	}
}

// Name returns the retailer this strategy is bound to.
func (s *HTMLFallbackStrategy) Name() string {
	return s.cfg.Retailer
}

// Extract performs one extraction attempt, querying by product code first
// and by display name when the code yields nothing.
func (s *HTMLFallbackStrategy) Extract(ctx context.Context, product catalog.Product, pxy *proxy.Proxy) (Result, error) {
	client, err := helpers.NewClient(proxyURL(pxy), s.cfg.Timeout)
	if err != nil {
		return Result{}, errors.NewConnectivity(s.cfg.Retailer, "failed to build HTTP client", err)
	}

	result, err := s.query(ctx, client, product.EAN)
	if err != nil || result.Found {
		return result, err
	}
	if product.Name == "" {
		return Result{}, nil
	}
	s.log.Debug().Str("ean", product.EAN).Msg("Code query empty, retrying with product name")
	return s.query(ctx, client, product.Name)
}

func (s *HTMLFallbackStrategy) query(ctx context.Context, client *http.Client, term string) (Result, error) {
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

	if json.Valid(body) {
		return parseSearchJSON(body), nil
	}
	return s.parseSearchHTML(body), nil
}

// parseSearchJSON handles the JSON variant of the search response. The
// known layout exposes product hits without an inline price, so a valid
// JSON body without one is a clean miss rather than a parse failure.
func parseSearchJSON(body []byte) Result {
	var payload struct {
		ProductSearch struct {
			Products []struct {
				Price struct {
					Sales struct {
						Value float64 `json:"value"`
					} `json:"sales"`
				} `json:"price"`
			} `json:"products"`
		} `json:"productSearch"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}
	}
	for _, p := range payload.ProductSearch.Products {
		if p.Price.Sales.Value > 0 {
			return Result{Price: p.Price.Sales.Value, Found: true}
		}
	}
	return Result{}
}

func (s *HTMLFallbackStrategy) parseSearchHTML(body []byte) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}
	}
	for _, selector := range s.cfg.Selectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		if price, ok := parsePrice(node.Text()); ok {
			return Result{Price: price, Found: true}
		}
	}
	return Result{}
}
