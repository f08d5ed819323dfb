package scraper

import (
	"strings"

	"priceatlas/cpiworker/config"
)

// Registry maps retailer names from the catalog to their extraction
// strategies. Lookup is tolerant of case and separator differences so
// catalog entries like "BODEGA_AURRERA" and "Bodega Aurrera" resolve to
// the same strategy.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistryWith builds a registry over an explicit strategy set.
func NewRegistryWith(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// NewRegistry builds the strategy set for all supported retailers.
func NewRegistry(cfg config.Config) *Registry {
	r := NewRegistryWith()

	r.Register(NewBrowserStrategy(BrowserConfig{
		Retailer:            "Walmart",
		GoogleURL:           cfg.GoogleURL,
		SearchSuffix:        " walmart",
		LinkPattern:         "walmart.com.mx",
		CatalogSearchURL:    cfg.WalmartSearchURL,
		ProductLinkSelector: `div[data-automation-id='product-container'] a`,
	}))

	r.Register(NewBrowserStrategy(BrowserConfig{
		Retailer:            "Bodega Aurrera",
		GoogleURL:           cfg.GoogleURL,
		SearchSuffix:        " bodega aurrera",
		LinkPattern:         "bodegaaurrera.com.mx",
		CatalogSearchURL:    cfg.BodegaSearchURL,
		ProductLinkSelector: `div[data-automation-id='product-container'] a`,
	}))

	r.Register(NewDirectAPIStrategy(DirectAPIConfig{
		Retailer:  "Chedraui",
		SearchURL: cfg.ChedrauiAPIURL,
		Shape:     ShapeVTEX,
		Timeout:   cfg.AttemptTimeout,
	}))

	r.Register(NewDirectAPIStrategy(DirectAPIConfig{
		Retailer:  "La Comer",
		SearchURL: cfg.LaComerAPIURL,
		Shape:     ShapeAlias,
		Timeout:   cfg.AttemptTimeout,
	}))

	r.Register(NewHTMLFallbackStrategy(HTMLFallbackConfig{
		Retailer:  "Soriana",
		SearchURL: cfg.SorianaSearchURL,
		Timeout:   cfg.AttemptTimeout,
	}))

	return r
}

// Register adds or replaces the strategy for its retailer.
func (r *Registry) Register(s Strategy) {
	r.strategies[normalizeRetailer(s.Name())] = s
}

// Lookup resolves a retailer name to its strategy.
func (r *Registry) Lookup(retailer string) (Strategy, bool) {
	s, ok := r.strategies[normalizeRetailer(retailer)]
	return s, ok
}

// Retailers returns the normalized names of all registered retailers.
func (r *Registry) Retailers() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}

func normalizeRetailer(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	lowered = strings.ReplaceAll(lowered, "_", "")
	lowered = strings.ReplaceAll(lowered, " ", "")
	return lowered
}
