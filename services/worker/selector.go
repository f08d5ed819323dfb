package worker

import (
	"context"
	"time"

	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/internal/scraper"
	"priceatlas/cpiworker/logger"
	"priceatlas/cpiworker/services/ledger"
)

// Task is one (product, retailer) pair due for collection in the current
// period, already bound to its extraction strategy.
type Task struct {
	Product  catalog.Product
	Retailer catalog.Retailer
	Strategy scraper.Strategy
}

// Selector computes the work set for a run: the product/retailer cross
// product minus pairs that already have an observation for the current
// period. Repeated runs inside one period converge to an empty work set.
type Selector struct {
	ledger   ledger.Ledger
	registry *scraper.Registry
	log      *logger.Logger
}

// NewSelector creates a work selector.
func NewSelector(l ledger.Ledger, registry *scraper.Registry) *Selector {
	return &Selector{
		ledger:   l,
		registry: registry,
		log:      logger.ForComponent("selector"),
	}
}

// SelectWork returns the tasks due for the period containing now. A ledger
// fault while checking an individual pair keeps the pair in the work set;
// favoring a duplicate-safe rescrape over a silent gap in the series.
func (s *Selector) SelectWork(ctx context.Context, scope ledger.Scope, now time.Time) ([]Task, error) {
	products, err := s.ledger.FetchProducts(ctx, scope)
	if err != nil {
		return nil, err
	}
	retailers, err := s.ledger.FetchRetailers(ctx)
	if err != nil {
		return nil, err
	}

	periodStart := catalog.PeriodStart(now)
	tasks := make([]Task, 0, len(products)*len(retailers))

	for _, product := range products {
		for _, retailer := range retailers {
			strat, ok := s.registry.Lookup(retailer.Name)
			if !ok {
				s.log.Warn().
					Str("retailer", retailer.Name).
					Msg("No strategy registered for retailer, skipping")
				continue
			}

			exists, err := s.ledger.FindExisting(ctx, product.ID, retailer.ID, periodStart)
			if err != nil {
				s.log.Warn().
					Err(err).
					Str("product_id", product.ID).
					Str("retailer", retailer.Name).
					Msg("Existence check failed, keeping pair in work set")
			} else if exists {
				continue
			}

			tasks = append(tasks, Task{Product: product, Retailer: retailer, Strategy: strat})
		}
	}

	s.log.Info().
		Int("products", len(products)).
		Int("retailers", len(retailers)).
		Int("tasks", len(tasks)).
		Time("period_start", periodStart).
		Msg("Work set selected")

	return tasks, nil
}
