package fleetapi

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (unreachable, reset, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAuth indicates the backend rejected the session
	ErrTypeAuth
	// ErrTypeHTTP indicates any other non-success status or envelope code
	ErrTypeHTTP
	// ErrTypeParse indicates a response body that is not a valid envelope
	ErrTypeParse
	// ErrTypeValidation indicates the backend (or a local check) rejected the payload
	ErrTypeValidation
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the API address
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// APIError is the single failure shape returned by the client.
type APIError struct {
	Type           ErrorType           // Category of error
	Message        string              // Backend message, or a description of the failure
	StatusCode     int                 // HTTP status code (0 if no response)
	Code           int                 // Envelope code (0 if no envelope)
	Body           []byte              // Raw response body, if any
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Host           string              // API host (for hints)
	Retryable      bool                // Whether repeating the request could succeed
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes an error and returns a more specific error type
func ClassifyNetworkError(err error, host string) *APIError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &APIError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Host:           host,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &APIError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Host:           host,
			Retryable:      false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &APIError{
				Type:           ErrTypeConnectionRefused,
				Message:        "API refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &APIError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &APIError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	return &APIError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Host:           host,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *APIError {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &APIError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *APIError {
	return &APIError{
		Type:       ErrTypeAuth,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Retryable:  false,
	}
}

// NewHTTPError creates an error for a non-success status. 400 and 422 are
// reported as validation failures.
func NewHTTPError(statusCode int, message string) *APIError {
	if statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity {
		return &APIError{
			Type:       ErrTypeValidation,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
		}
	}
	return &APIError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *APIError {
	return &APIError{
		Type:      ErrTypeParse,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *APIError {
	return &APIError{
		Type:      ErrTypeValidation,
		Message:   message,
		Retryable: false,
	}
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, etc.)
func IsNetworkError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Type == ErrTypeNetwork ||
			apiErr.Type == ErrTypeTimeout ||
			apiErr.Type == ErrTypeConnectionRefused ||
			apiErr.Type == ErrTypeDNS
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Type == ErrTypeAuth
	}
	return false
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Type == ErrTypeHTTP
	}
	return false
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Type == ErrTypeParse
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Type == ErrTypeValidation
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	apiErr, ok := asAPIError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch apiErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The fleet API did not respond in time.",
			"Troubleshooting:",
			"  • Check that the API server is running",
			"  • Try increasing api.timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The fleet API refused the connection.",
			"Troubleshooting:",
			"  • Verify api.base_url (host and port)",
			"  • Run 'fleetctl discover' to find gateways on this network",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the API hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Check your network DNS settings",
		}, "\n")

	case ErrTypeAuth:
		return strings.Join([]string{
			"The session was rejected and has been cleared.",
			"Run 'fleetctl login' to sign in again.",
		}, "\n")

	case ErrTypeNetwork:
		switch apiErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "The API host is not reachable. Check that you are on the right network."
		case NetworkErrorNetworkUnreachable:
			return "Your computer has no route to the API network. Check your network adapter."
		default:
			return "Network communication failed. Check your connection and try again."
		}

	case ErrTypeHTTP:
		if apiErr.StatusCode >= 500 {
			return fmt.Sprintf("The fleet API failed (HTTP %d). This is a server-side problem; retry later.", apiErr.StatusCode)
		}
		return fmt.Sprintf("The fleet API returned error %d. Check the request parameters.", apiErr.StatusCode)

	case ErrTypeParse:
		return "The API response could not be parsed. The server may be behind a proxy returning HTML."

	case ErrTypeValidation:
		return "The device record was rejected. Check the error message for the offending field."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	apiErr, ok := asAPIError(err)
	if !ok {
		return err.Error()
	}

	switch apiErr.Type {
	case ErrTypeTimeout:
		return "API not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "API refused connection"
	case ErrTypeDNS:
		return "Cannot resolve API hostname"
	case ErrTypeAuth:
		return "Session expired - log in again"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeHTTP:
		if apiErr.Message != "" {
			return fmt.Sprintf("API error (HTTP %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Sprintf("API error (HTTP %d)", apiErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse API response"
	default:
		return apiErr.Message
	}
}
