package scraper

import (
	"context"
	"fmt"
	"time"

	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/logger"
	"priceatlas/cpiworker/pkg/errors"
	"priceatlas/cpiworker/services/cache"
	"priceatlas/cpiworker/services/proxy"
)

// Outcome is the final state of one task after the attempt budget.
type Outcome struct {
	Result   Result
	Attempts int
	// LastErr is the error from the final failed attempt; nil when the
	// task succeeded or every attempt was a clean miss.
	LastErr error
}

// Controller runs a strategy under the attempt budget. Each attempt gets a
// freshly acquired proxy and its own timeout; a proxy is only ever reported
// back to the pool for failures the network path can answer for.
type Controller struct {
	pool           *proxy.Pool
	cooldowns      cache.CacheService // nil disables cooldown checks
	metrics        *Metrics
	maxAttempts    int
	attemptTimeout time.Duration
	cooldownTime   time.Duration
	log            *logger.Logger
}

// NewController creates a retry controller. cooldowns and metrics may be nil.
func NewController(pool *proxy.Pool, cooldowns cache.CacheService, metrics *Metrics, maxAttempts int, attemptTimeout, cooldownTime time.Duration) *Controller {
	return &Controller{
		pool:           pool,
		cooldowns:      cooldowns,
		metrics:        metrics,
		maxAttempts:    maxAttempts,
		attemptTimeout: attemptTimeout,
		cooldownTime:   cooldownTime,
		log:            logger.ForComponent("retry_controller"),
	}
}

// Execute runs the strategy until it yields a price, reports a clean miss
// with attempts to spare, or the attempt budget runs out. The first found
// price short-circuits the loop.
func (c *Controller) Execute(ctx context.Context, strat Strategy, product catalog.Product) Outcome {
	retailer := strat.Name()
	log := c.log.WithField("retailer", retailer).WithField("ean", product.EAN)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Outcome{Attempts: attempt - 1, LastErr: ctx.Err()}
		}

		if c.onCooldown(retailer) {
			log.Debug().Int("attempt", attempt).Msg("Retailer on cooldown, skipping attempt")
			c.metrics.IncAttempt(retailer, "cooldown")
			lastErr = errors.New(errors.ErrorTypeBlocked, retailer, "retailer on cooldown", nil)
			continue
		}

		pxy := c.pool.Acquire(ctx)

		result, err := c.attempt(ctx, strat, product, pxy)
		if err != nil {
			lastErr = err
			c.metrics.IncAttempt(retailer, string(errors.TypeOf(err)))
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Bool("via_proxy", pxy != nil).
				Msg("Attempt failed")

			if pxy != nil && errors.IsProxyAttributable(err) {
				c.pool.ReportFailure(ctx, pxy.ID)
				c.metrics.IncProxyReport("failure")
			}
			if errors.TypeOf(err) == errors.ErrorTypeBlocked {
				c.armCooldown(retailer)
			}
			continue
		}

		if result.Found {
			if pxy != nil {
				c.pool.ReportSuccess(ctx, pxy.ID)
				c.metrics.IncProxyReport("success")
			}
			c.metrics.IncAttempt(retailer, "found")
			log.Info().
				Int("attempt", attempt).
				Float64("price", result.Price).
				Msg("Price extracted")
			return Outcome{Result: result, Attempts: attempt}
		}

		// Clean miss: the response was well-formed but carried no price.
		// The proxy did its job; another attempt may still see the product
		// through a different egress.
		if pxy != nil {
			c.pool.ReportSuccess(ctx, pxy.ID)
			c.metrics.IncProxyReport("success")
		}
		c.metrics.IncAttempt(retailer, "not_found")
		lastErr = nil
		log.Debug().Int("attempt", attempt).Msg("No price found")
	}

	return Outcome{Attempts: c.maxAttempts, LastErr: lastErr}
}

// attempt runs one extraction under its own deadline and converts a panic
// into a failed-attempt error so a misbehaving strategy cannot take down
// the run.
func (c *Controller) attempt(ctx context.Context, strat Strategy, product catalog.Product, pxy *proxy.Proxy) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = errors.NewInternal(strat.Name(), fmt.Sprintf("attempt panicked: %v", r))
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	return strat.Extract(attemptCtx, product, pxy)
}

func cooldownKey(retailer string) string {
	return "cooldown:" + normalizeRetailer(retailer)
}

func (c *Controller) onCooldown(retailer string) bool {
	if c.cooldowns == nil {
		return false
	}
	value, err := c.cooldowns.Get(cooldownKey(retailer))
	return err == nil && value != nil
}

func (c *Controller) armCooldown(retailer string) {
	if c.cooldowns == nil {
		return
	}
	if err := c.cooldowns.Set(cooldownKey(retailer), []byte("1"), c.cooldownTime); err != nil {
		c.log.Warn().Err(err).Str("retailer", retailer).Msg("Failed to arm retailer cooldown")
	}
}
