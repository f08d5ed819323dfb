package ledger

import (
	"context"
	"time"

	"priceatlas/cpiworker/internal/catalog"
)

// Scope selects which products a scrape cycle covers: one product by id, a
// bounded batch, or the full catalog.
type Scope struct {
	ProductID string
	Limit     int
	All       bool
}

// Ledger is the durable store for price observations and catalog reference
// data. The worker only reads the catalog and appends observations; schema
// and transaction details live on the other side of this interface.
type Ledger interface {
	// FindExisting reports whether an observation already exists for the
	// pair within the period starting at periodStart.
	FindExisting(ctx context.Context, productID, retailerID string, periodStart time.Time) (bool, error)

	// PersistPrice appends one observation. Idempotency is not enforced
	// here; callers rely on a prior FindExisting check.
	PersistPrice(ctx context.Context, product catalog.Product, retailerID string, price float64, observedAt time.Time) error

	// FetchProducts returns the products covered by the scope.
	FetchProducts(ctx context.Context, scope Scope) ([]catalog.Product, error)

	// FetchRetailers returns all known retailers.
	FetchRetailers(ctx context.Context) ([]catalog.Retailer, error)
}
