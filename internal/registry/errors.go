package registry

import (
	"errors"
	"fmt"
)

// ErrUnreachable marks network-level failures (connect refused, timeout).
// Check with errors.Is.
var ErrUnreachable = errors.New("registry unreachable")

// HTTPError is a non-2xx registry response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("registry returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("registry returned HTTP %d: %s", e.Status, e.Body)
}

// NotFoundError reports a service key absent from the registry's current set.
type NotFoundError struct {
	ServiceKey string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service %q not found", e.ServiceKey)
}
