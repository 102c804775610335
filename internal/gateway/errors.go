package gateway

import "fmt"

// FailureKind classifies why a sync step failed. The kind decides whether an
// automatic retry can ever succeed and is what operators see in the pending
// store.
type FailureKind string

const (
	// FailureConfiguration means credentials or endpoints are missing.
	// Retrying cannot succeed until an operator fixes the config.
	FailureConfiguration FailureKind = "configuration"
	// FailureNetwork covers transport errors and timeouts.
	FailureNetwork FailureKind = "network"
	// FailureServer is a non-2xx HTTP response; StatusCode carries the code.
	FailureServer FailureKind = "server"
	// FailureInvalidResponse means the destination answered 2xx but the body
	// is missing required fields. Possibly a transient backend inconsistency.
	FailureInvalidResponse FailureKind = "invalid_response"
	// FailureLinkBack means the destination order was created but writing the
	// destination identifiers back onto the source order failed.
	FailureLinkBack FailureKind = "link_back"
)

// SyncError is the single error type crossing the gateway boundary. Remote
// call failures are converted to it so sweeps never see raw transport errors.
type SyncError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *SyncError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Retryable reports whether an automatic retry could plausibly succeed.
// 4xx responses mean the payload itself is defective; configuration failures
// need an operator. Everything else is worth another attempt.
func (e *SyncError) Retryable() bool {
	switch e.Kind {
	case FailureConfiguration:
		return false
	case FailureServer:
		return e.StatusCode >= 500
	default:
		return true
	}
}

func configErr(msg string) *SyncError {
	return &SyncError{Kind: FailureConfiguration, Message: msg}
}

func networkErr(err error) *SyncError {
	return &SyncError{Kind: FailureNetwork, Message: err.Error(), Err: err}
}

func serverErr(status int, body string) *SyncError {
	return &SyncError{Kind: FailureServer, StatusCode: status, Message: body}
}
