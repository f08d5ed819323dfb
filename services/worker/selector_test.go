package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/internal/scraper"
	"priceatlas/cpiworker/services/ledger"
	"priceatlas/cpiworker/services/proxy"
)

// fakeLedger is an in-memory ledger.Ledger for worker tests
type fakeLedger struct {
	mu        sync.Mutex
	products  []catalog.Product
	retailers []catalog.Retailer
	existing  map[string]bool // "productID/retailerID"
	persisted []catalog.PriceObservation

	findErr    error
	fetchErr   error
	persistErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{existing: make(map[string]bool)}
}

func pairKey(productID, retailerID string) string {
	return productID + "/" + retailerID
}

func (l *fakeLedger) FindExisting(ctx context.Context, productID, retailerID string, periodStart time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return false, l.findErr
	}
	return l.existing[pairKey(productID, retailerID)], nil
}

func (l *fakeLedger) PersistPrice(ctx context.Context, product catalog.Product, retailerID string, price float64, observedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.persistErr != nil {
		return l.persistErr
	}
	l.persisted = append(l.persisted, catalog.PriceObservation{
		ProductID:  product.ID,
		RetailerID: retailerID,
		EAN:        product.EAN,
		Price:      price,
		ObservedAt: observedAt,
	})
	l.existing[pairKey(product.ID, retailerID)] = true
	return nil
}

func (l *fakeLedger) FetchProducts(ctx context.Context, scope ledger.Scope) ([]catalog.Product, error) {
	if l.fetchErr != nil {
		return nil, l.fetchErr
	}
	if scope.ProductID != "" {
		for _, p := range l.products {
			if p.ID == scope.ProductID {
				return []catalog.Product{p}, nil
			}
		}
		return nil, nil
	}
	if !scope.All && scope.Limit > 0 && scope.Limit < len(l.products) {
		return l.products[:scope.Limit], nil
	}
	return l.products, nil
}

func (l *fakeLedger) FetchRetailers(ctx context.Context) ([]catalog.Retailer, error) {
	if l.fetchErr != nil {
		return nil, l.fetchErr
	}
	return l.retailers, nil
}

// stubStrategy returns a fixed outcome under a retailer name
type stubStrategy struct {
	name   string
	result scraper.Result
	err    error
	panics bool

	mu    sync.Mutex
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(ctx context.Context, product catalog.Product, pxy *proxy.Proxy) (scraper.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("stub blew up")
	}
	return s.result, s.err
}

func testCatalog() ([]catalog.Product, []catalog.Retailer) {
	products := []catalog.Product{
		{ID: "prod-1", EAN: "7501000111111", Name: "Leche Entera 1L"},
		{ID: "prod-2", EAN: "7501000222222", Name: "Aceite Vegetal 900ml"},
	}
	retailers := []catalog.Retailer{
		{ID: "ret-1", Name: "Alpha"},
		{ID: "ret-2", Name: "Beta"},
	}
	return products, retailers
}

func TestSelectWorkSkipsCoveredPairs(t *testing.T) {
	l := newFakeLedger()
	l.products, l.retailers = testCatalog()
	l.existing[pairKey("prod-1", "ret-1")] = true

	registry := scraper.NewRegistryWith(
		&stubStrategy{name: "Alpha"},
		&stubStrategy{name: "Beta"},
	)
	selector := NewSelector(l, registry)

	tasks, err := selector.SelectWork(context.Background(), ledger.Scope{All: true}, time.Now())
	assert.NoError(t, err)
	assert.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.False(t, task.Product.ID == "prod-1" && task.Retailer.ID == "ret-1")
		assert.NotNil(t, task.Strategy)
	}
}

func TestSelectWorkConvergesToEmpty(t *testing.T) {
	l := newFakeLedger()
	l.products, l.retailers = testCatalog()
	for _, p := range l.products {
		for _, r := range l.retailers {
			l.existing[pairKey(p.ID, r.ID)] = true
		}
	}

	registry := scraper.NewRegistryWith(
		&stubStrategy{name: "Alpha"},
		&stubStrategy{name: "Beta"},
	)
	tasks, err := NewSelector(l, registry).SelectWork(context.Background(), ledger.Scope{All: true}, time.Now())
	assert.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSelectWorkKeepsPairOnExistenceCheckFault(t *testing.T) {
	l := newFakeLedger()
	l.products = []catalog.Product{{ID: "prod-1", EAN: "750"}}
	l.retailers = []catalog.Retailer{{ID: "ret-1", Name: "Alpha"}}
	l.findErr = fmt.Errorf("ledger briefly down")

	registry := scraper.NewRegistryWith(&stubStrategy{name: "Alpha"})
	tasks, err := NewSelector(l, registry).SelectWork(context.Background(), ledger.Scope{All: true}, time.Now())

	// A duplicate-safe rescrape beats a silent gap in the series
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSelectWorkSkipsUnknownRetailers(t *testing.T) {
	l := newFakeLedger()
	l.products = []catalog.Product{{ID: "prod-1", EAN: "750"}}
	l.retailers = []catalog.Retailer{
		{ID: "ret-1", Name: "Alpha"},
		{ID: "ret-9", Name: "Nobody Heard Of It"},
	}

	registry := scraper.NewRegistryWith(&stubStrategy{name: "Alpha"})
	tasks, err := NewSelector(l, registry).SelectWork(context.Background(), ledger.Scope{All: true}, time.Now())
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, "ret-1", tasks[0].Retailer.ID)
}

func TestSelectWorkCatalogFaultAborts(t *testing.T) {
	l := newFakeLedger()
	l.fetchErr = fmt.Errorf("ledger down")

	registry := scraper.NewRegistryWith(&stubStrategy{name: "Alpha"})
	_, err := NewSelector(l, registry).SelectWork(context.Background(), ledger.Scope{All: true}, time.Now())
	assert.Error(t, err)
}

func TestSelectWorkHonorsScope(t *testing.T) {
	l := newFakeLedger()
	l.products, l.retailers = testCatalog()

	registry := scraper.NewRegistryWith(
		&stubStrategy{name: "Alpha"},
		&stubStrategy{name: "Beta"},
	)
	selector := NewSelector(l, registry)
	ctx := context.Background()

	// Single product scope
	tasks, err := selector.SelectWork(ctx, ledger.Scope{ProductID: "prod-2"}, time.Now())
	assert.NoError(t, err)
	assert.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, "prod-2", task.Product.ID)
	}

	// Bounded batch scope
	tasks, err = selector.SelectWork(ctx, ledger.Scope{Limit: 1}, time.Now())
	assert.NoError(t, err)
	assert.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, "prod-1", task.Product.ID)
	}
}
