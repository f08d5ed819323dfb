package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies a scrape failure for retry and proxy-attribution
// decisions. A well-formed response that simply carries no price is not an
// error at all; strategies report that as a clean not-found result.
type ErrorType string

const (
	// ErrorTypeConnectivity represents timeouts and connection failures on
	// the network path (proxy or direct egress).
	ErrorTypeConnectivity ErrorType = "connectivity"
	// ErrorTypeBlocked represents explicit anti-bot responses: 403/502/503
	// status codes or a challenge page where product markup was expected.
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeStore represents ledger or proxy-store faults.
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfiguration represents invalid startup configuration.
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeInternal represents a defect inside an extraction strategy,
	// such as a recovered panic. Never attributed to the proxy.
	ErrorTypeInternal ErrorType = "internal"
)

// ScrapeError is the error carried across attempt boundaries.
type ScrapeError struct {
	Type     ErrorType
	Retailer string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface.
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Retailer, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Retailer, e.Message)
}

// Unwrap returns the underlying error.
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// ProxyAttributable reports whether the failure should be fed back into
// proxy health. Connectivity and blocking failures indicate the network
// path; store and configuration faults do not.
func (e *ScrapeError) ProxyAttributable() bool {
	switch e.Type {
	case ErrorTypeConnectivity, ErrorTypeBlocked:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError.
func New(errType ErrorType, retailer, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:     errType,
		Retailer: retailer,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewConnectivity creates a new connectivity error.
func NewConnectivity(retailer, message string, err error) *ScrapeError {
	return New(ErrorTypeConnectivity, retailer, message, err)
}

// NewBlocked creates a new blocked error.
func NewBlocked(retailer string, statusCode int) *ScrapeError {
	return New(ErrorTypeBlocked, retailer, fmt.Sprintf("blocked with status %d", statusCode), nil)
}

// NewStore creates a new store error.
func NewStore(component, message string, err error) *ScrapeError {
	return New(ErrorTypeStore, component, message, err)
}

// NewInternal creates a new internal error.
func NewInternal(retailer, message string) *ScrapeError {
	return New(ErrorTypeInternal, retailer, message, nil)
}

// NewConfiguration creates a new configuration error.
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsProxyAttributable reports whether err (or anything it wraps) is a
// failure that should penalize the proxy it travelled through. Unknown
// error types are treated as network-path failures: an attempt that died
// somewhere we could not classify most likely died on the wire.
func IsProxyAttributable(err error) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ProxyAttributable()
	}
	return err != nil
}

// TypeOf returns the ErrorType of err, or an empty string for errors that
// did not originate from a strategy.
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type
	}
	return ""
}
