package proxy

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a proxy.
type Status string

const (
	StatusActive Status = "active"
	StatusDead   Status = "dead"
)

// Proxy is one known egress point. Records are created by the harvester
// (outside this worker) and only ever mutated or retired here, never deleted.
type Proxy struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Host         string    `bson:"host" json:"host"`
	Port         int       `bson:"port" json:"port"`
	Scheme       string    `bson:"scheme" json:"scheme"`
	FailCount    int       `bson:"fail_count" json:"fail_count"`
	SuccessCount int       `bson:"success_count" json:"success_count"`
	Status       Status    `bson:"status" json:"status"`
	LastChecked  time.Time `bson:"last_checked" json:"last_checked"`
}

// URL returns the proxy address in scheme://host:port form.
func (p *Proxy) URL() string {
	scheme := p.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, p.Host, p.Port)
}

// Store is the backing store for proxy records. Every health mutation is a
// synchronous round-trip; the pool keeps no state between calls.
type Store interface {
	// BestActiveProxy returns the most recently health-checked active
	// proxy, or (nil, nil) when none exists.
	BestActiveProxy(ctx context.Context) (*Proxy, error)

	// Get returns the proxy with the given id, or (nil, nil) when unknown.
	Get(ctx context.Context, id string) (*Proxy, error)

	// UpdateHealth overwrites the health counters and status of a proxy.
	UpdateHealth(ctx context.Context, id string, failCount, successCount int, status Status) error
}
