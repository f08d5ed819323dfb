package proxy

import (
	"context"

	"priceatlas/cpiworker/logger"
)

// failThreshold is the fail_count above which a proxy is retired. The count
// is a soft heuristic: concurrent reports may under-count by one, which is
// accepted rather than serializing every report behind a lock.
const failThreshold = 5

// Pool owns proxy selection and health feedback for one scrape run. It is
// constructed explicitly and injected wherever proxies are consumed; there
// is no process-wide instance.
type Pool struct {
	store Store
	log   *logger.Logger
}

// NewPool creates a pool over the given backing store.
func NewPool(store Store) *Pool {
	return &Pool{
		store: store,
		log:   logger.ForComponent("proxy_pool"),
	}
}

// Acquire returns the best available proxy, or nil when the pool is empty
// or the store is unreachable. Callers treat nil as "attempt direct egress";
// it is never a fatal condition.
func (p *Pool) Acquire(ctx context.Context) *Proxy {
	best, err := p.store.BestActiveProxy(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Proxy store unreachable, proceeding without proxy")
		return nil
	}
	if best == nil {
		p.log.Debug().Msg("No active proxies available")
		return nil
	}
	return best
}

// ReportSuccess resets fail_count, increments success_count and forces the
// proxy back to active. No-op for an unknown or empty id.
func (p *Pool) ReportSuccess(ctx context.Context, proxyID string) {
	if proxyID == "" {
		return
	}
	current, err := p.store.Get(ctx, proxyID)
	if err != nil {
		p.log.Warn().Err(err).Str("proxy_id", proxyID).Msg("Failed to load proxy for success report")
		return
	}
	if current == nil {
		return
	}
	if err := p.store.UpdateHealth(ctx, proxyID, 0, current.SuccessCount+1, StatusActive); err != nil {
		p.log.Warn().Err(err).Str("proxy_id", proxyID).Msg("Failed to record proxy success")
	}
}

// ReportFailure increments fail_count and retires the proxy once the count
// exceeds the threshold. No-op for an unknown or empty id.
func (p *Pool) ReportFailure(ctx context.Context, proxyID string) {
	if proxyID == "" {
		return
	}
	current, err := p.store.Get(ctx, proxyID)
	if err != nil {
		p.log.Warn().Err(err).Str("proxy_id", proxyID).Msg("Failed to load proxy for failure report")
		return
	}
	if current == nil {
		return
	}

	newFail := current.FailCount + 1
	status := StatusActive
	if newFail > failThreshold {
		status = StatusDead
	}

	if err := p.store.UpdateHealth(ctx, proxyID, newFail, current.SuccessCount, status); err != nil {
		p.log.Warn().Err(err).Str("proxy_id", proxyID).Msg("Failed to record proxy failure")
		return
	}
	if status == StatusDead {
		p.log.Info().
			Str("proxy_id", proxyID).
			Int("fail_count", newFail).
			Msg("Proxy retired")
	}
}
