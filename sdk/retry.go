package sdk

import (
	"errors"
	"time"

	"github.com/birbparty/birb-ads/internal/clock"
)

// RetryStrategy decides whether a failed request is re-issued and how long to
// wait before doing so. Retries are unbounded: a retryable request is repeated
// until it succeeds or fails with a non-retryable error.
//
// You can implement custom strategies:
//
//	type FlatStrategy struct{}
//
//	func (FlatStrategy) NextInterval(err error) time.Duration { return 10 * time.Second }
//	func (FlatStrategy) ShouldRetry(err error) bool          { return sdk.IsRetryable(err) }
type RetryStrategy interface {
	// NextInterval returns the delay before the request that failed with err is re-issued.
	NextInterval(err error) time.Duration

	// ShouldRetry determines if the error is retryable.
	ShouldRetry(err error) bool
}

// ServerDirectedStrategy waits as long as the server asks for, plus a grace
// margin so the retry does not land exactly on the rate limit boundary.
//
// The delay calculation is:
//
//	err_rate_limited:          wait (from the envelope) + Grace
//	err_internal_server_error: ServerErrorWait + Grace
//	transport failure:         TransportWait + Grace
type ServerDirectedStrategy struct {
	// ServerErrorWait is the wait applied to err_internal_server_error.
	ServerErrorWait time.Duration

	// TransportWait is the wait applied to transport failures.
	TransportWait time.Duration

	// Grace is added to every wait.
	Grace time.Duration
}

// DefaultRetryStrategy returns the strategy used when none is configured:
//   - ServerErrorWait: 60s
//   - TransportWait: 0
//   - Grace: 5s
func DefaultRetryStrategy() *ServerDirectedStrategy {
	return &ServerDirectedStrategy{
		ServerErrorWait: 60 * time.Second,
		Grace:           5 * time.Second,
	}
}

// NextInterval calculates the next retry interval
func (s *ServerDirectedStrategy) NextInterval(err error) time.Duration {
	var wait time.Duration
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		switch sdkErr.Type {
		case ErrorTypeRateLimit:
			wait = sdkErr.Wait
		case ErrorTypeServer:
			wait = s.ServerErrorWait
		default:
			wait = s.TransportWait
		}
	} else {
		wait = s.TransportWait
	}
	return wait + s.Grace
}

// ShouldRetry determines if the error is retryable
func (s *ServerDirectedStrategy) ShouldRetry(err error) bool {
	return IsRetryable(err)
}

// pendingRequest is a deferred retry of one request.
type pendingRequest struct {
	path    string
	body    interface{}
	attempt int
	timer   clock.Timer
}

// retryQueue holds at most one pending retry per endpoint path. Scheduling a
// retry for a path cancels the one already queued for it.
//
// retryQueue is not synchronized; the owning client serializes access.
type retryQueue struct {
	clock   clock.Clock
	pending map[string]*pendingRequest
}

func newRetryQueue(c clock.Clock) *retryQueue {
	return &retryQueue{
		clock:   c,
		pending: make(map[string]*pendingRequest),
	}
}

// schedule arms a retry for path after delay. fire receives the pending entry
// and must call take to confirm it is still the current one before re-issuing.
// The returned bool reports whether an earlier retry for the path was replaced.
func (q *retryQueue) schedule(path string, body interface{}, attempt int, delay time.Duration, fire func(*pendingRequest)) (*pendingRequest, bool) {
	replaced := q.cancel(path)
	p := &pendingRequest{path: path, body: body, attempt: attempt}
	p.timer = q.clock.AfterFunc(delay, func() { fire(p) })
	q.pending[path] = p
	return p, replaced
}

// take removes p from the queue if it is still the pending retry for its path.
func (q *retryQueue) take(p *pendingRequest) bool {
	if q.pending[p.path] != p {
		return false
	}
	delete(q.pending, p.path)
	return true
}

// cancel stops and discards the pending retry for path, if any.
func (q *retryQueue) cancel(path string) bool {
	p, ok := q.pending[path]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(q.pending, path)
	return true
}

// cancelAll stops every pending retry.
func (q *retryQueue) cancelAll() {
	for path := range q.pending {
		q.cancel(path)
	}
}

func (q *retryQueue) len() int {
	return len(q.pending)
}
