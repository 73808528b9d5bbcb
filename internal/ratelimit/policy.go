package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrMissingHeader is returned by a header policy when the expected
// rate-limit header is absent. The server is violating its documented
// contract; the limiter surfaces this rather than silently ignoring it.
var ErrMissingHeader = errors.New("rate limit header missing from response")

// Policy decides when a server's quota is exhausted. Different upstream
// APIs expose quota differently: some publish an explicit remaining
// count on every response, others have an undocumented request ceiling
// the client must count against itself. Policies mutate the quota state
// they are given; the limiter holds the state's lock.
type Policy interface {
	// ObserveRequest is applied after the request count is incremented.
	ObserveRequest(state *QuotaState)
	// ObserveResponse is applied after the response count is
	// incremented.
	ObserveResponse(state *QuotaState, header http.Header) error
}

// CounterPolicy marks the limit reached once the fixed request ceiling
// is hit.
type CounterPolicy struct {
	ceiling int
}

// NewCounterPolicy builds a counter policy with the given ceiling.
func NewCounterPolicy(ceiling int) *CounterPolicy {
	return &CounterPolicy{ceiling: ceiling}
}

func (p *CounterPolicy) ObserveRequest(state *QuotaState) {
	p.check(state)
}

func (p *CounterPolicy) ObserveResponse(state *QuotaState, header http.Header) error {
	p.check(state)

	return nil
}

func (p *CounterPolicy) check(state *QuotaState) {
	if p.ceiling > 0 && state.RequestCount >= p.ceiling {
		state.LimitReached = true
	}
}

// HeaderPolicy reads the remaining allowance from a response header and
// marks the limit reached when it hits zero.
type HeaderPolicy struct {
	header string
}

// NewHeaderPolicy builds a header policy reading the named header.
func NewHeaderPolicy(header string) *HeaderPolicy {
	return &HeaderPolicy{header: header}
}

func (p *HeaderPolicy) ObserveRequest(state *QuotaState) {}

func (p *HeaderPolicy) ObserveResponse(state *QuotaState, header http.Header) error {
	value := header.Get(p.header)
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingHeader, p.header)
	}

	remaining, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parsing %s header %q: %w", p.header, value, err)
	}

	state.Remaining = remaining
	state.HasRemaining = true

	if remaining <= 0 {
		state.LimitReached = true
	}

	return nil
}
