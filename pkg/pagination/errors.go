package pagination

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/apictl/pkg/apierrors"
)

// ErrDone is returned by Fetcher.Next once the listing is exhausted or the
// session has failed.
var ErrDone = errors.New("pagination: no more pages")

// Sentinels matched by errors.Is against a *FetchError of the same kind.
var (
	ErrTransport = errors.New("transport error")
	ErrDecode    = errors.New("decode error")
	ErrStatus    = errors.New("unexpected status")
)

// ErrorKind classifies a failed page fetch.
type ErrorKind string

const (
	// KindTransport is a network level failure (DNS, refused, timeout, cancel).
	KindTransport ErrorKind = "transport"

	// KindDecode is a response body that is not a JSON object.
	KindDecode ErrorKind = "decode"

	// KindStatus is a non-2xx response.
	KindStatus ErrorKind = "status"
)

// FetchError identifies the page request that ended a session.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == KindStatus && e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, and the apierrors sentinels for status
// failures.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrStatus:
		return e.Kind == KindStatus
	case apierrors.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case apierrors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case apierrors.ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
