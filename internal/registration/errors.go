package registration

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrUnknownLinkKind is wrapped by ConfigurationError.
var ErrUnknownLinkKind = errors.New("unknown magic link kind")

// errBodyRead marks a failure that happened after the status line was received.
var errBodyRead = errors.New("read response body")

// errBodyTooLarge marks a response body over the read limit.
var errBodyTooLarge = errors.New("response body too large")

// Failure classifies how a call ended.
type Failure string

const (
	FailureNone           Failure = ""
	FailureRemoteReported Failure = "remote_reported"
	FailureRemoteContract Failure = "remote_contract"
	FailureTimeout        Failure = "timeout"
	FailureProtocol       Failure = "protocol"
	FailureTransport      Failure = "transport"
	FailureUnknown        Failure = "unknown"
	// FailureInvalidRequest is a locally rejected payload; nothing was sent.
	FailureInvalidRequest Failure = "invalid_request"
)

// ConfigurationError reports a caller defect, such as an unknown magic link kind.
// It is the only error the client returns to callers.
type ConfigurationError struct {
	Kind LinkKind
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("registration: %v: %q", ErrUnknownLinkKind, string(e.Kind))
}

func (e *ConfigurationError) Unwrap() error { return ErrUnknownLinkKind }

// SchemaValidationError carries the path of the field that failed validation.
type SchemaValidationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	path := e.Path
	if path == "" {
		path = "$"
	}
	if e.Err != nil {
		return fmt.Sprintf("schema validation failed at %s: %s: %v", path, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema validation failed at %s: %s", path, e.Reason)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// RemoteContractError reports a 200 response whose body broke the expected schema.
type RemoteContractError struct {
	Op  string
	Err error
}

func (e *RemoteContractError) Error() string {
	return fmt.Sprintf("registration %s: remote contract violated: %v", e.Op, e.Err)
}

func (e *RemoteContractError) Unwrap() error { return e.Err }

// TransportError wraps a request failure together with its classification.
type TransportError struct {
	Kind Failure
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("registration transport (%s): %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// classifyTransport maps an error from http.Client.Do or body reading to a Failure.
func classifyTransport(err error) Failure {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureUnknown
	}
	if errors.Is(err, errBodyRead) {
		return FailureProtocol
	}
	var (
		opErr     *net.OpError
		dnsErr    *net.DNSError
		recordErr tls.RecordHeaderError
		unknownCA x509.UnknownAuthorityError
		hostErr   x509.HostnameError
		certErr   x509.CertificateInvalidError
		verifyErr *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &recordErr),
		errors.As(err, &unknownCA), errors.As(err, &hostErr), errors.As(err, &certErr),
		errors.As(err, &verifyErr):
		return FailureTransport
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FailureProtocol
	}
	return FailureUnknown
}
