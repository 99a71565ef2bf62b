package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/openai/openai-go/v2"
)

// ErrConfiguration is returned by NewClient when required settings are missing.
var ErrConfiguration = errors.New("completion: configuration error")

// Sentinels matching the Kind of an *Error through errors.Is.
var (
	ErrAPI           = errors.New("completion: api error")
	ErrEmptyResponse = errors.New("completion: empty response")
	ErrTransport     = errors.New("completion: transport error")
)

// Kind classifies a failed completion call
type Kind int

const (
	// KindAPI is a non-2xx response from the completion service.
	KindAPI Kind = iota + 1
	// KindEmptyResponse is a 2xx response without usable content.
	KindEmptyResponse
	// KindTransport is a network-level failure: timeout, DNS, refused or reset connection.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindEmptyResponse:
		return "empty_response"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the only error type Complete returns
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, KindAPI only
	Message string // provider message, KindAPI only
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPI:
		return fmt.Sprintf("completion: api error %d: %s", e.Status, e.Message)
	case KindEmptyResponse:
		if e.Err != nil {
			return fmt.Sprintf("completion: empty response: %v", e.Err)
		}
		return "completion: empty response"
	case KindTransport:
		return fmt.Sprintf("completion: transport error: %v", e.Err)
	default:
		return fmt.Sprintf("completion: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the kind sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAPI:
		return e.Kind == KindAPI
	case ErrEmptyResponse:
		return e.Kind == KindEmptyResponse
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// classify maps an error from the SDK onto the completion taxonomy
func classify(err error) *Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &Error{Kind: KindAPI, Status: apiErr.StatusCode, Message: msg, Err: err}
	}

	if isTransport(err) {
		return &Error{Kind: KindTransport, Err: err}
	}

	// Anything else is a body we could not make sense of.
	return &Error{Kind: KindEmptyResponse, Err: err}
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
