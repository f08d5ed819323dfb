package proxy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeStore is an in-memory Store for pool tests
type fakeStore struct {
	proxies map[string]*Proxy
	err     error
}

func newFakeStore(proxies ...*Proxy) *fakeStore {
	s := &fakeStore{proxies: make(map[string]*Proxy)}
	for _, p := range proxies {
		s.proxies[p.ID] = p
	}
	return s
}

func (s *fakeStore) BestActiveProxy(ctx context.Context) (*Proxy, error) {
	if s.err != nil {
		return nil, s.err
	}
	var best *Proxy
	for _, p := range s.proxies {
		if p.Status != StatusActive {
			continue
		}
		if best == nil || p.LastChecked.After(best.LastChecked) {
			best = p
		}
	}
	return best, nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*Proxy, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proxies[id], nil
}

func (s *fakeStore) UpdateHealth(ctx context.Context, id string, failCount, successCount int, status Status) error {
	if s.err != nil {
		return s.err
	}
	p, ok := s.proxies[id]
	if !ok {
		return nil
	}
	p.FailCount = failCount
	p.SuccessCount = successCount
	p.Status = status
	p.LastChecked = time.Now()
	return nil
}

func TestAcquirePrefersFreshestActive(t *testing.T) {
	now := time.Now()
	store := newFakeStore(
		&Proxy{ID: "stale", Host: "10.0.0.1", Port: 8080, Status: StatusActive, LastChecked: now.Add(-time.Hour)},
		&Proxy{ID: "fresh", Host: "10.0.0.2", Port: 8080, Status: StatusActive, LastChecked: now},
		&Proxy{ID: "dead", Host: "10.0.0.3", Port: 8080, Status: StatusDead, LastChecked: now.Add(time.Hour)},
	)
	pool := NewPool(store)

	got := pool.Acquire(context.Background())
	assert.NotNil(t, got)
	assert.Equal(t, "fresh", got.ID)
}

func TestAcquireEmptyPoolReturnsNil(t *testing.T) {
	pool := NewPool(newFakeStore())
	assert.Nil(t, pool.Acquire(context.Background()))
}

func TestAcquireStoreFaultReturnsNil(t *testing.T) {
	store := newFakeStore()
	store.err = fmt.Errorf("store unreachable")
	pool := NewPool(store)

	// A store fault degrades to direct egress, it never aborts the attempt
	assert.Nil(t, pool.Acquire(context.Background()))
}

func TestReportSuccessResetsFailures(t *testing.T) {
	store := newFakeStore(
		&Proxy{ID: "p1", Host: "10.0.0.1", Port: 8080, Status: StatusActive, FailCount: 4, SuccessCount: 2},
	)
	pool := NewPool(store)

	pool.ReportSuccess(context.Background(), "p1")

	p := store.proxies["p1"]
	assert.Equal(t, 0, p.FailCount)
	assert.Equal(t, 3, p.SuccessCount)
	assert.Equal(t, StatusActive, p.Status)
}

func TestReportFailureRetiresAboveThreshold(t *testing.T) {
	store := newFakeStore(
		&Proxy{ID: "p1", Host: "10.0.0.1", Port: 8080, Status: StatusActive},
	)
	pool := NewPool(store)
	ctx := context.Background()

	// Five failures keep the proxy alive
	for i := 0; i < failThreshold; i++ {
		pool.ReportFailure(ctx, "p1")
	}
	assert.Equal(t, failThreshold, store.proxies["p1"].FailCount)
	assert.Equal(t, StatusActive, store.proxies["p1"].Status)

	// The sixth crosses the threshold and retires it
	pool.ReportFailure(ctx, "p1")
	assert.Equal(t, failThreshold+1, store.proxies["p1"].FailCount)
	assert.Equal(t, StatusDead, store.proxies["p1"].Status)
}

func TestSuccessRevivesFailingProxy(t *testing.T) {
	store := newFakeStore(
		&Proxy{ID: "p1", Host: "10.0.0.1", Port: 8080, Status: StatusActive, FailCount: failThreshold},
	)
	pool := NewPool(store)

	// One success wipes the accumulated failures
	pool.ReportSuccess(context.Background(), "p1")
	assert.Equal(t, 0, store.proxies["p1"].FailCount)
	assert.Equal(t, StatusActive, store.proxies["p1"].Status)
}

func TestReportsIgnoreUnknownProxy(t *testing.T) {
	store := newFakeStore()
	pool := NewPool(store)
	ctx := context.Background()

	// Neither report should create records or panic
	pool.ReportSuccess(ctx, "ghost")
	pool.ReportFailure(ctx, "ghost")
	pool.ReportSuccess(ctx, "")
	assert.Empty(t, store.proxies)
}

func TestProxyURL(t *testing.T) {
	p := &Proxy{Host: "10.0.0.1", Port: 3128}
	assert.Equal(t, "http://10.0.0.1:3128", p.URL())

	p.Scheme = "socks5"
	assert.Equal(t, "socks5://10.0.0.1:3128", p.URL())
}
