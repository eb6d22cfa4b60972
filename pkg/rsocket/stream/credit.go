package stream

import (
	"math"

	"github.com/dymk/rsocket-go/pkg/rsocket/rerrors"
)

const maxCredit = int64(math.MaxInt32)

// creditCounter accumulates REQUEST_N grants (or, on the requester's
// producer side of a channel, credits the peer has granted us). It
// saturates at 2^31-1: a grant that would go past that is capped there,
// not rejected.
// Grounded on the teacher's int32 sendWindow/recvWindow fields in
// pkg/http/h2/streams.go, generalized from a byte window to a request
// count and widened to int64 so saturation can be detected before it
// wraps.
type creditCounter struct {
	n int64
}

// Add accumulates n credits. n == 0 or n < 0 is a protocol error per
// spec.md §5 ("request(n) with n <= 0 is a protocol error") and §9's open
// question on REQUEST_N(0).
func (c *creditCounter) Add(n uint32) error {
	if n == 0 {
		return rerrors.New(rerrors.KindInvalidFrame, "REQUEST_N(0) is a protocol error")
	}
	c.n += int64(n)
	if c.n > maxCredit {
		c.n = maxCredit
	}
	return nil
}

// Take consumes n credits if available, reporting whether it succeeded.
func (c *creditCounter) Take(n int64) bool {
	if n <= 0 || c.n < n {
		return false
	}
	c.n -= n
	return true
}

func (c *creditCounter) Available() int64 { return c.n }
