// Package errkind implements the error taxonomy of spec.md §7: Transient,
// Validation, Integrity, and Fatal. The worker runtime (internal/worker)
// classifies a returned error purely by its kind — never by string
// inspection of the message — except for the heuristic fallback in
// Classify, which exists only for errors surfacing from code this repo
// does not control (vendor HTTP clients, broker libraries) that have not
// been wrapped in one of these kinds yet.
package errkind

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Transient wraps an error that is safe to retry: network failures,
// timeouts, HTTP 429/5xx, broker unavailability, DB deadlocks.
type Transient struct{ Err error }

func (e *Transient) Error() string { return "transient: " + e.Err.Error() }
func (e *Transient) Unwrap() error { return e.Err }

// NewTransient wraps err as Transient.
func NewTransient(err error) error { return &Transient{Err: err} }

// Validation wraps an error that will never succeed on retry: schema
// rejection, missing required field, malformed input.
type Validation struct{ Err error }

func (e *Validation) Error() string { return "validation: " + e.Err.Error() }
func (e *Validation) Unwrap() error { return e.Err }

// NewValidation wraps err as Validation.
func NewValidation(err error) error { return &Validation{Err: err} }

// NewValidationf formats a Validation error.
func NewValidationf(format string, args ...any) error {
	return &Validation{Err: fmt.Errorf(format, args...)}
}

// Integrity wraps an error from a broken lineage hash chain or other
// tamper/corruption detection. Never silently corrected.
type Integrity struct{ Err error }

func (e *Integrity) Error() string { return "integrity: " + e.Err.Error() }
func (e *Integrity) Unwrap() error { return e.Err }

// NewIntegrity wraps err as Integrity.
func NewIntegrity(err error) error { return &Integrity{Err: err} }

// Fatal wraps a startup error: missing config, unreachable DB at boot.
type Fatal struct{ Err error }

func (e *Fatal) Error() string { return "fatal: " + e.Err.Error() }
func (e *Fatal) Unwrap() error { return e.Err }

// NewFatal wraps err as Fatal.
func NewFatal(err error) error { return &Fatal{Err: err} }

// Retryable reports whether err should be retried by the worker runtime.
// It first checks for an explicit kind, then falls back to the heuristic
// classification in §4.1 for errors that were never wrapped (e.g. a raw
// error returned by a third-party HTTP client).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var transient *Transient
	if errors.As(err, &transient) {
		return true
	}
	var validation *Validation
	if errors.As(err, &validation) {
		return false
	}
	var integrity *Integrity
	if errors.As(err, &integrity) {
		return false
	}
	var fatal *Fatal
	if errors.As(err, &fatal) {
		return false
	}
	return heuristicRetryable(err)
}

// heuristicRetryable classifies an unwrapped error per §4.1's default
// retryable table: network errors (reset/timeout/DNS), HTTP 429/5xx,
// broker unavailability, explicit "rate limit" text. Everything else is
// treated as non-retryable — a validation-shaped failure should be wrapped
// explicitly by its source rather than rely on this fallback.
func heuristicRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	markers := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"timed out",
		"no such host",
		"dns",
		"rate limit",
		"too many requests",
		"broker unavailable",
		"broker not connected",
		"i/o timeout",
	}
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(msg, "http "+code) || strings.Contains(msg, "status "+code) {
			return true
		}
	}
	return false
}
