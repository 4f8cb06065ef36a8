package smog

import (
	"errors"
)

// Error kinds. Every error returned by a Fetcher wraps exactly one of these.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNetwork      = errors.New("network error")
	ErrBadResponse  = errors.New("bad response")
)

var (
	ErrUnknownLocation = errors.New("unknown location")
	ErrUnknownAxis     = errors.New("unknown coordinate axis")
	ErrNothingToVary   = errors.New("no samples to vary")
	ErrJoinedFetch     = errors.New("locations are fetched together under the all-or-nothing join")
)

// User-facing messages.
const (
	MsgInvalidInput       = "Please enter valid numeric coordinates."
	MsgFetchFailed        = "Failed to fetch smog data."
	MsgBatchFailed        = "Failed to load smog data. Please check coordinates and try again."
	MsgServiceUnavailable = "Air-quality service unavailable. Please try again later."
	MsgBadResponse        = "Received an incomplete response from the air-quality service."
)

// FetchError is a classified fetch failure with the message shown to the user.
type FetchError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return e.Kind.Error() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *FetchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// InvalidInput builds an ErrInvalidInput error.
func InvalidInput(cause error) *FetchError {
	return &FetchError{Kind: ErrInvalidInput, Message: MsgInvalidInput, Cause: cause}
}

// NetworkError builds an ErrNetwork error. An empty msg falls back to the
// cause's own text, then to MsgFetchFailed.
func NetworkError(msg string, cause error) *FetchError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	if msg == "" {
		msg = MsgFetchFailed
	}
	return &FetchError{Kind: ErrNetwork, Message: msg, Cause: cause}
}

// BadResponse builds an ErrBadResponse error.
func BadResponse(cause error) *FetchError {
	return &FetchError{Kind: ErrBadResponse, Message: MsgBadResponse, Cause: cause}
}

// UserMessage extracts the message to show for err.
func UserMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return MsgFetchFailed
}
