package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/internal/scraper"
	"priceatlas/cpiworker/logger"
	"priceatlas/cpiworker/pkg/errors"
	"priceatlas/cpiworker/services/ledger"
	"priceatlas/cpiworker/services/publisher"
)

// errTaskPanic marks a task that died inside the isolation boundary.
var errTaskPanic = errors.NewInternal("", "task panicked")

// TaskResult is the final state of one task after the run.
type TaskResult struct {
	Product  catalog.Product
	Retailer catalog.Retailer
	Price    float64
	Found    bool
	Attempts int
	Err      error
}

// Summary aggregates a run for the closing log line.
type Summary struct {
	Tasks     int
	Persisted int
	NotFound  int
	Failed    int
}

// Worker orchestrates one scrape run: it selects the due work, runs each
// product's retailers concurrently while bounding how many products are in
// flight, and persists every extracted price exactly once. A failing or
// panicking task never takes a sibling down with it.
type Worker struct {
	selector           *Selector
	ledger             ledger.Ledger
	controller         *scraper.Controller
	pub                publisher.Publisher // nil disables event publishing
	metrics            *scraper.Metrics
	productConcurrency int
	log                *logger.Logger
}

// NewWorker creates a scrape orchestrator. pub and metrics may be nil.
func NewWorker(selector *Selector, l ledger.Ledger, controller *scraper.Controller, pub publisher.Publisher, metrics *scraper.Metrics, productConcurrency int) *Worker {
	if productConcurrency < 1 {
		productConcurrency = 1
	}
	return &Worker{
		selector:           selector,
		ledger:             l,
		controller:         controller,
		pub:                pub,
		metrics:            metrics,
		productConcurrency: productConcurrency,
		log:                logger.ForComponent("worker"),
	}
}

// Run executes one scrape pass over the given scope and returns per-task
// results. A ledger fault while selecting work aborts the run; faults
// inside individual tasks are contained and reported in the results.
func (w *Worker) Run(ctx context.Context, scope ledger.Scope) ([]TaskResult, Summary, error) {
	tasks, err := w.selector.SelectWork(ctx, scope, time.Now())
	if err != nil {
		return nil, Summary{}, err
	}
	if len(tasks) == 0 {
		w.log.Info().Msg("Nothing due, run complete")
		return nil, Summary{}, nil
	}

	// Group tasks by product so one product's retailers run together and
	// the concurrency window bounds products, not raw tasks.
	productOrder := make([]string, 0, len(tasks))
	byProduct := make(map[string][]Task)
	for _, t := range tasks {
		if _, seen := byProduct[t.Product.ID]; !seen {
			productOrder = append(productOrder, t.Product.ID)
		}
		byProduct[t.Product.ID] = append(byProduct[t.Product.ID], t)
	}

	var (
		mu      sync.Mutex
		results []TaskResult
	)
	slots := make(chan struct{}, w.productConcurrency)
	var wg sync.WaitGroup

	for _, productID := range productOrder {
		productTasks := byProduct[productID]
		wg.Add(1)
		slots <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-slots }()

			var inner sync.WaitGroup
			for _, task := range productTasks {
				task := task
				inner.Add(1)
				go func() {
					defer inner.Done()
					result := w.executeTask(ctx, task)
					mu.Lock()
					results = append(results, result)
					mu.Unlock()
				}()
			}
			inner.Wait()
		}()
	}
	wg.Wait()

	summary := summarize(results)
	w.log.Info().
		Int("tasks", summary.Tasks).
		Int("persisted", summary.Persisted).
		Int("not_found", summary.NotFound).
		Int("failed", summary.Failed).
		Msg("Scrape run complete")

	return results, summary, nil
}

// executeTask runs one task to completion. The recover fence is the task
// isolation boundary: whatever happens in here is converted into a
// TaskResult and never escapes to the scheduler.
func (w *Worker) executeTask(ctx context.Context, task Task) (result TaskResult) {
	result = TaskResult{Product: task.Product, Retailer: task.Retailer}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().
				Interface("panic", r).
				Str("product_id", task.Product.ID).
				Str("retailer", task.Retailer.Name).
				Msg("Task panicked")
			result.Err = errTaskPanic
			w.metrics.IncTask("panic")
		}
	}()

	outcome := w.controller.Execute(ctx, task.Strategy, task.Product)
	result.Attempts = outcome.Attempts
	result.Err = outcome.LastErr

	if !outcome.Result.Found {
		if outcome.LastErr != nil {
			w.metrics.IncTask("failed")
		} else {
			w.metrics.IncTask("not_found")
		}
		return result
	}

	result.Found = true
	result.Price = outcome.Result.Price

	observedAt := time.Now()
	if err := w.ledger.PersistPrice(ctx, task.Product, task.Retailer.ID, outcome.Result.Price, observedAt); err != nil {
		w.log.Error().
			Err(err).
			Str("product_id", task.Product.ID).
			Str("retailer", task.Retailer.Name).
			Msg("Failed to persist observation")
		result.Err = err
		w.metrics.IncTask("persist_failed")
		return result
	}
	w.metrics.IncPersisted()
	w.metrics.IncTask("persisted")
	w.publishObservation(task, outcome.Result.Price, observedAt)

	return result
}

// publishObservation emits the persisted observation for downstream
// consumers. Publishing is best-effort; a broker fault never fails a task
// whose observation is already in the ledger.
func (w *Worker) publishObservation(task Task, price float64, observedAt time.Time) {
	if w.pub == nil {
		return
	}
	event := map[string]interface{}{
		"product_id":  task.Product.ID,
		"retailer_id": task.Retailer.ID,
		"ean":         task.Product.EAN,
		"price":       price,
		"observed_at": observedAt.Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := w.pub.Publish(task.Retailer.Name, payload); err != nil {
		w.log.Warn().
			Err(err).
			Str("retailer", task.Retailer.Name).
			Msg("Failed to publish observation event")
	}
}

func summarize(results []TaskResult) Summary {
	s := Summary{Tasks: len(results)}
	for _, r := range results {
		switch {
		case r.Found && r.Err == nil:
			s.Persisted++
		case r.Err != nil:
			s.Failed++
		default:
			s.NotFound++
		}
	}
	return s
}
