// Package syncerr defines the error taxonomy shared by provider adapters, the
// token lifecycle manager, and the reconciliation engine.
//
// Record-level errors (MalformedRecord, AmbiguousMatch) are accumulated into
// the run summary and never abort a run. Run-level errors (ReauthRequired,
// cancellation, exhausted retry budgets) finalize the run as failed.
package syncerr

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced directly to callers.
var (
	// ErrRunAlreadyInProgress is returned when a run is requested for an
	// integration that already has a pending or running run. Races between
	// two starts fail closed: the loser gets this error.
	ErrRunAlreadyInProgress = errors.New("sync run already in progress")

	// ErrNotConnected is returned when sync is requested for an integration
	// that is inactive or was never authorized.
	ErrNotConnected = errors.New("integration is not connected")

	// ErrRunCancelled finalizes a run that was externally marked for
	// cancellation between batches.
	ErrRunCancelled = errors.New("run cancelled")
)

// TransientError wraps a failure that is expected to succeed on retry, such
// as a network timeout or a provider 5xx.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// RateLimitedError indicates the provider rejected the call with a rate
// limit. RetryAfter is the provider-specified delay, zero when unspecified.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Provider)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// ReauthRequiredError is terminal for the run: the credential can no longer
// be refreshed and the tenant must reconnect the integration.
type ReauthRequiredError struct {
	IntegrationID string
	Reason        string
}

func (e *ReauthRequiredError) Error() string {
	return fmt.Sprintf("integration %s requires reauthorization: %s", e.IntegrationID, e.Reason)
}

// ReauthRequired builds a ReauthRequiredError.
func ReauthRequired(integrationID, reason string) error {
	return &ReauthRequiredError{IntegrationID: integrationID, Reason: reason}
}

// MalformedRecordError marks a single remote record that cannot be
// normalized because every configured business key is absent.
type MalformedRecordError struct {
	ExternalID string
	Reason     string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s: %s", e.ExternalID, e.Reason)
}

// AmbiguousMatchError marks a remote record whose business key matched more
// than one local record. The engine never guesses; the record is skipped.
type AmbiguousMatchError struct {
	ExternalID  string
	BusinessKey string
	LocalIDs    []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match for %s: key %q matches %d local records",
		e.ExternalID, e.BusinessKey, len(e.LocalIDs))
}

// IsRetryable reports whether err may succeed if the call is retried within
// the run's retry budget.
func IsRetryable(err error) bool {
	var te *TransientError
	var rl *RateLimitedError
	return errors.As(err, &te) || errors.As(err, &rl)
}

// RetryAfter returns the provider-specified backoff for a rate limited
// error, or zero when err carries no such hint.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// IsReauthRequired reports whether err is terminal for the integration.
func IsReauthRequired(err error) bool {
	var re *ReauthRequiredError
	return errors.As(err, &re)
}

// IsRecordLevel reports whether err affects a single record only and must
// not abort the run.
func IsRecordLevel(err error) bool {
	var me *MalformedRecordError
	var ae *AmbiguousMatchError
	return errors.As(err, &me) || errors.As(err, &ae)
}
