package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// captureLogger records every log entry for assertions.
type captureLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

type capturedEntry struct {
	level   string
	message string
	fields  map[string]interface{}
}

func (l *captureLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, capturedEntry{level: level, message: msg, fields: fields})
}

func (l *captureLogger) Debug(msg string, fields map[string]interface{}) { l.log("debug", msg, fields) }
func (l *captureLogger) Info(msg string, fields map[string]interface{})  { l.log("info", msg, fields) }
func (l *captureLogger) Warn(msg string, fields map[string]interface{})  { l.log("warn", msg, fields) }
func (l *captureLogger) Error(msg string, fields map[string]interface{}) { l.log("error", msg, fields) }
func (l *captureLogger) Critical(msg string, fields map[string]interface{}) {
	l.log("critical", msg, fields)
}

func (l *captureLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var messages []string

	for _, entry := range l.entries {
		if entry.level == level {
			messages = append(messages, entry.message)
		}
	}

	return messages
}

func counterRegistry(pattern string, identity Identity, ceiling int) *Registry {
	return NewRegistry(ServerEntry{
		Pattern:  pattern,
		Identity: identity,
		Policy:   NewCounterPolicy(ceiling),
	})
}

func TestCounterPolicyBlocksAfterCeiling(t *testing.T) {
	logger := &captureLogger{}
	limiter := NewLimiter(counterRegistry("example.test", "counted", 3), logger)

	url := "https://example.test/sis/v1/students"

	// The ceiling counts requests, not responses: three sends with no
	// responses observed exhaust the quota.
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.RegisterRequest(url), "request %d", i+1)
	}

	err := limiter.RegisterRequest(url)
	require.Error(t, err)
	assert.True(t, sisapi.IsQuotaExceeded(err))

	assert.Contains(t, logger.messages("critical"), "Tried to make request, but limit reached for server")

	state, ok := limiter.Snapshot("counted")
	require.True(t, ok)
	assert.Equal(t, 3, state.RequestCount)
	assert.True(t, state.LimitReached)
}

func TestLimitReachedIsMonotonic(t *testing.T) {
	limiter := NewLimiter(counterRegistry("example.test", "counted", 1), &captureLogger{})

	url := "https://example.test/sis/v1/students"
	require.NoError(t, limiter.RegisterRequest(url))

	// Every later attempt fails the same way; nothing resets the stop.
	for i := 0; i < 5; i++ {
		err := limiter.RegisterRequest(url)
		require.Error(t, err)
		assert.True(t, sisapi.IsQuotaExceeded(err))
	}

	state, _ := limiter.Snapshot("counted")
	assert.Equal(t, 1, state.RequestCount)
}

func TestHeaderPolicyBlocksOnZeroRemaining(t *testing.T) {
	registry := NewRegistry(ServerEntry{
		Pattern:  "api.github.com",
		Identity: IdentityGitHub,
		Policy:   NewHeaderPolicy("X-RateLimit-Remaining"),
	})
	limiter := NewLimiter(registry, &captureLogger{})

	url := "https://api.github.com/repos"

	require.NoError(t, limiter.RegisterRequest(url))

	header := http.Header{}
	header.Set("X-RateLimit-Remaining", "1")
	limiter.RegisterResponse(url, header)

	state, _ := limiter.Snapshot(IdentityGitHub)
	assert.Equal(t, 1, state.Remaining)
	assert.True(t, state.HasRemaining)
	assert.False(t, state.LimitReached)

	require.NoError(t, limiter.RegisterRequest(url))

	header.Set("X-RateLimit-Remaining", "0")
	limiter.RegisterResponse(url, header)

	err := limiter.RegisterRequest(url)
	require.Error(t, err)
	assert.True(t, sisapi.IsQuotaExceeded(err))
}

func TestHeaderPolicyMissingHeaderIsLoggedNotFatal(t *testing.T) {
	logger := &captureLogger{}
	registry := NewRegistry(ServerEntry{
		Pattern:  "api.github.com",
		Identity: IdentityGitHub,
		Policy:   NewHeaderPolicy("X-RateLimit-Remaining"),
	})
	limiter := NewLimiter(registry, logger)

	url := "https://api.github.com/repos"
	require.NoError(t, limiter.RegisterRequest(url))
	limiter.RegisterResponse(url, http.Header{})

	assert.Contains(t, logger.messages("error"), "Rate limit header missing or malformed on response")

	// The violation does not stop traffic.
	require.NoError(t, limiter.RegisterRequest(url))

	state, _ := limiter.Snapshot(IdentityGitHub)
	assert.False(t, state.LimitReached)
	assert.False(t, state.HasRemaining)
	assert.Equal(t, 1, state.ResponseCount)
}

func TestUnrecognizedURLProceedsUntracked(t *testing.T) {
	logger := &captureLogger{}
	limiter := NewLimiter(counterRegistry("example.test", "counted", 1), logger)

	url := "https://somewhere-else.example/none"

	require.NoError(t, limiter.RegisterRequest(url))
	require.NoError(t, limiter.RegisterRequest(url))
	limiter.RegisterResponse(url, http.Header{})

	warnings := logger.messages("warn")
	require.Len(t, warnings, 3)
	assert.Equal(t, "Making request/response at unrecognized URL, so no rate limiting or request tracking is in place", warnings[0])

	_, ok := limiter.Snapshot("counted")
	assert.False(t, ok)
}

func TestQuotaStateIsPerIdentity(t *testing.T) {
	registry := NewRegistry(
		ServerEntry{Pattern: "one.test", Identity: "one", Policy: NewCounterPolicy(1)},
		ServerEntry{Pattern: "two.test", Identity: "two", Policy: NewCounterPolicy(1)},
	)
	limiter := NewLimiter(registry, &captureLogger{})

	require.NoError(t, limiter.RegisterRequest("https://one.test/a"))

	err := limiter.RegisterRequest("https://one.test/a")
	require.Error(t, err)

	// The second identity is untouched by the first one's stop.
	require.NoError(t, limiter.RegisterRequest("https://two.test/a"))
}

func TestRegisterRequestConcurrentCounts(t *testing.T) {
	limiter := NewLimiter(counterRegistry("example.test", "counted", 0), &captureLogger{})

	url := "https://example.test/sis/v1/students"

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = limiter.RegisterRequest(url)
		}()
	}

	wg.Wait()

	state, ok := limiter.Snapshot("counted")
	require.True(t, ok)
	assert.Equal(t, 50, state.RequestCount)
}

func TestDefaultRegistryTable(t *testing.T) {
	registry := DefaultRegistry()

	cases := []struct {
		url      string
		identity Identity
	}{
		{"https://api.quadraschools.com/sis/v1/students", IdentityLive},
		{"https://api.quadrabackup.com/sis/v1/students", IdentityBackup},
		{"http://localhost:8080/sis/v1/students", IdentityLocal},
		{"https://api.github.com/rate_limit", IdentityGitHub},
		{"https://httpbin.org/get", IdentityHTTPBin},
	}

	for _, tc := range cases {
		t.Run(string(tc.identity), func(t *testing.T) {
			identity, ok := registry.IdentityFor(tc.url)
			require.True(t, ok, tc.url)
			assert.Equal(t, tc.identity, identity)
		})
	}

	_, ok := registry.IdentityFor("https://unknown.example/x")
	assert.False(t, ok)
}

func TestCounterPolicyZeroCeilingNeverLimits(t *testing.T) {
	limiter := NewLimiter(counterRegistry("example.test", "counted", 0), &captureLogger{})

	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.RegisterRequest(fmt.Sprintf("https://example.test/%d", i)))
	}
}
