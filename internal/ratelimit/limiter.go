package ratelimit

import (
	"net/http"
	"sync"

	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// QuotaState is the mutable quota record of one server identity. It is
// only ever mutated by the limiter hooks with the owning server's lock
// held.
type QuotaState struct {
	RequestCount  int
	ResponseCount int
	// Remaining is the allowance last reported by a header-based
	// server; HasRemaining tells whether one was ever observed.
	Remaining    int
	HasRemaining bool
	// LimitReached is monotonic: once true it never resets without
	// external reinitialization.
	LimitReached bool
}

// serverState pairs a quota state with its policy. Each server carries
// its own lock so independent identities never contend.
type serverState struct {
	mu     sync.Mutex
	policy Policy
	state  QuotaState
}

// Limiter tracks quota state for every known server identity and gates
// outbound requests on it. Server records are created lazily on first
// reference and live for the process lifetime.
type Limiter struct {
	registry *Registry
	logger   sisapi.Logger

	mu      sync.Mutex
	servers map[Identity]*serverState
}

// NewLimiter builds a limiter over the given registry. A nil logger
// falls back to a no-op logger.
func NewLimiter(registry *Registry, logger sisapi.Logger) *Limiter {
	if registry == nil {
		registry = DefaultRegistry()
	}

	if logger == nil {
		logger = sisapi.NoopLogger{}
	}

	return &Limiter{
		registry: registry,
		logger:   logger,
		servers:  make(map[Identity]*serverState),
	}
}

// RegisterRequest records an outbound request to url and reports
// whether it may be sent. Unrecognized URLs are logged and allowed to
// proceed untracked. A server whose limit has been reached is a hard
// stop: the request must not be sent, and no retry or backoff applies
// until the process restarts.
func (l *Limiter) RegisterRequest(url string) error {
	entry, ok := l.registry.entryFor(url)
	if !ok {
		l.warnUnrecognized(url)

		return nil
	}

	server := l.server(entry)

	server.mu.Lock()
	defer server.mu.Unlock()

	if server.state.LimitReached {
		l.logger.Critical("Tried to make request, but limit reached for server", map[string]interface{}{
			"server": string(entry.Identity),
		})

		return &sisapi.QuotaExceededError{Server: string(entry.Identity)}
	}

	server.state.RequestCount++
	server.policy.ObserveRequest(&server.state)

	return nil
}

// RegisterResponse records a response received from url and updates the
// server's quota from it. Unrecognized URLs are logged and skipped.
func (l *Limiter) RegisterResponse(url string, header http.Header) {
	entry, ok := l.registry.entryFor(url)
	if !ok {
		l.warnUnrecognized(url)

		return
	}

	server := l.server(entry)

	server.mu.Lock()
	defer server.mu.Unlock()

	server.state.ResponseCount++

	err := server.policy.ObserveResponse(&server.state, header)
	if err != nil {
		l.logger.Error("Rate limit header missing or malformed on response", map[string]interface{}{
			"server": string(entry.Identity),
			"url":    url,
			"error":  err.Error(),
		})
	}
}

// Snapshot returns a copy of the quota state for identity, if it has
// been referenced.
func (l *Limiter) Snapshot(identity Identity) (QuotaState, bool) {
	l.mu.Lock()
	server, ok := l.servers[identity]
	l.mu.Unlock()

	if !ok {
		return QuotaState{}, false
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	return server.state, true
}

// server returns the lazily created record for an identity.
func (l *Limiter) server(entry ServerEntry) *serverState {
	l.mu.Lock()
	defer l.mu.Unlock()

	server, ok := l.servers[entry.Identity]
	if !ok {
		server = &serverState{policy: entry.Policy}
		l.servers[entry.Identity] = server
	}

	return server
}

func (l *Limiter) warnUnrecognized(url string) {
	l.logger.Warn("Making request/response at unrecognized URL, so no rate limiting or request tracking is in place", map[string]interface{}{
		"url": url,
	})
}
