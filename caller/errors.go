package caller

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrUnsupportedPayload = errors.New("unsupported payload")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrInvalidCall        = errors.New("invalid call")
)

// bodyTimeoutError reports a response body that stalled longer than the read timeout.
type bodyTimeoutError struct {
	url string
}

func (e *bodyTimeoutError) Error() string {
	return fmt.Sprintf("read timeout while reading the response body of %s", e.url)
}

func (e *bodyTimeoutError) Timeout() bool   { return true }
func (e *bodyTimeoutError) Temporary() bool { return true }

// IsReadTimeout reports whether err is a timeout that happened after the
// connection was established. Dial timeouts are connect timeouts and do not
// count, nor does an expired context deadline.
func IsReadTimeout(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return false
	}

	return true
}
