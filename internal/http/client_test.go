package http

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadra-edu/sisapi/internal/ratelimit"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

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

	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	l.entries = append(l.entries, capturedEntry{level: level, message: msg, fields: copied})
}

func (l *captureLogger) Debug(msg string, fields map[string]interface{}) { l.log("debug", msg, fields) }
func (l *captureLogger) Info(msg string, fields map[string]interface{})  { l.log("info", msg, fields) }
func (l *captureLogger) Warn(msg string, fields map[string]interface{})  { l.log("warn", msg, fields) }
func (l *captureLogger) Error(msg string, fields map[string]interface{}) { l.log("error", msg, fields) }
func (l *captureLogger) Critical(msg string, fields map[string]interface{}) {
	l.log("critical", msg, fields)
}

func (l *captureLogger) atLevel(level string) []capturedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []capturedEntry

	for _, entry := range l.entries {
		if entry.level == level {
			matched = append(matched, entry)
		}
	}

	return matched
}

func testLimiter(ceiling int) *ratelimit.Limiter {
	registry := ratelimit.NewRegistry(ratelimit.ServerEntry{
		Pattern:  "127.0.0.1",
		Identity: "test",
		Policy:   ratelimit.NewCounterPolicy(ceiling),
	})

	return ratelimit.NewLimiter(registry, sisapi.NoopLogger{})
}

func TestDoMergePrecedence(t *testing.T) {
	var gotQuery url.Values
	var gotHeader nethttp.Header
	var gotForm url.Values

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotQuery = r.URL.Query()
		gotHeader = r.Header.Clone()

		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	baseParams := url.Values{}
	baseParams.Set("apiKey", "base-key")
	baseParams.Set("shared", "base")

	baseHeaders := nethttp.Header{}
	baseHeaders.Set("X-Base", "base")
	baseHeaders.Set("X-Shared", "base")

	client := NewClient(server.URL, testLimiter(0),
		WithBaseParams(baseParams),
		WithBaseHeaders(baseHeaders),
	)

	callParams := url.Values{}
	callParams.Set("shared", "call")
	callParams.Set("extra", "1")

	callHeaders := nethttp.Header{}
	callHeaders.Set("X-Shared", "call")

	callForm := url.Values{}
	callForm.Set("name", "Homeroom 9A")

	resp, err := client.Do(context.Background(), &Request{
		Description: "POST sections",
		Method:      "POST",
		URI:         "/sections",
		Params:      callParams,
		Headers:     callHeaders,
		Form:        callForm,
	})
	require.NoError(t, err)
	require.True(t, resp.Successful)

	// Per-call values win key-by-key; untouched base keys survive.
	assert.Equal(t, "base-key", gotQuery.Get("apiKey"))
	assert.Equal(t, "call", gotQuery.Get("shared"))
	assert.Equal(t, "1", gotQuery.Get("extra"))

	assert.Equal(t, "base", gotHeader.Get("X-Base"))
	assert.Equal(t, "call", gotHeader.Get("X-Shared"))

	assert.Equal(t, "Homeroom 9A", gotForm.Get("name"))
}

func TestDoSuccessIsExactly200(t *testing.T) {
	for _, status := range []int{nethttp.StatusCreated, nethttp.StatusAccepted, nethttp.StatusNotFound, nethttp.StatusInternalServerError} {
		t.Run(nethttp.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			client := NewClient(server.URL, testLimiter(0))

			resp, err := client.Do(context.Background(), &Request{Description: "GET x", Method: "GET", URI: "/x"})
			require.NoError(t, err)
			assert.False(t, resp.Successful)
			assert.Equal(t, status, resp.StatusCode)
			// Failure data is still decoded for diagnostics.
			assert.Equal(t, map[string]interface{}{"error": "nope"}, resp.JSON)
		})
	}
}

func TestDoRecordsNeverNil(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter(0))

	resp, err := client.Do(context.Background(), &Request{Description: "GET x", Method: "GET", URI: "/x"})
	require.NoError(t, err)
	assert.False(t, resp.Successful)
	assert.NotNil(t, resp.Record())
	assert.NotNil(t, resp.Records())
	assert.Empty(t, resp.Records())
}

func TestDoInvalidJSONMarker(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	logger := &captureLogger{}
	client := NewClient(server.URL, testLimiter(0), WithLogger(logger))

	resp, err := client.Do(context.Background(), &Request{Description: "GET x", Method: "GET", URI: "/x"})
	require.NoError(t, err)

	// A 200 whose body cannot be parsed is a failure, flagged with the
	// distinct marker instead of a decoded payload.
	assert.False(t, resp.Successful)
	assert.Equal(t, sisapi.InvalidJSONMarker, resp.JSON)

	failures := logger.atLevel("error")
	require.Len(t, failures, 1)
	assert.Equal(t, sisapi.InvalidJSONMarker, failures[0].fields["response_json"])
}

func TestDoEmptySuccessBody(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter(0))

	resp, err := client.Do(context.Background(), &Request{Description: "DELETE x", Method: "DELETE", URI: "/x"})
	require.NoError(t, err)
	assert.True(t, resp.Successful)
	assert.Nil(t, resp.JSON)
}

func TestDoTransportErrorAbsorbed(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {}))
	server.Close()

	client := NewClient(server.URL, testLimiter(0), WithRetryConfig(0, 0, 0))

	resp, err := client.Do(context.Background(), &Request{Description: "GET x", Method: "GET", URI: "/x"})
	require.NoError(t, err)
	assert.False(t, resp.Successful)
	assert.Equal(t, 0, resp.StatusCode)
}

func TestDoQuotaStopIsReturned(t *testing.T) {
	var hits int

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits++

		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter(1))

	resp, err := client.Do(context.Background(), &Request{Description: "GET x", Method: "GET", URI: "/x"})
	require.NoError(t, err)
	assert.True(t, resp.Successful)

	_, err = client.Do(context.Background(), &Request{Description: "GET x", Method: "GET", URI: "/x"})
	require.Error(t, err)
	assert.True(t, sisapi.IsQuotaExceeded(err))

	// The blocked request never reached the wire.
	assert.Equal(t, 1, hits)
}

func TestDoSilentSuppressesLogs(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusTeapot)
	}))
	defer server.Close()

	logger := &captureLogger{}
	client := NewClient(server.URL, testLimiter(0), WithLogger(logger))

	_, err := client.Do(context.Background(), &Request{
		Description: "GET x",
		Method:      "GET",
		URI:         "/x",
		Silent:      true,
	})
	require.NoError(t, err)

	assert.Empty(t, logger.entries)
}

func TestDoCriticalRaisesFailureSeverity(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"denied"}`))
	}))
	defer server.Close()

	logger := &captureLogger{}
	client := NewClient(server.URL, testLimiter(0), WithLogger(logger))

	_, err := client.Do(context.Background(), &Request{
		Description: "POST grades",
		Method:      "POST",
		URI:         "/grades",
		Critical:    true,
	})
	require.NoError(t, err)

	criticals := logger.atLevel("critical")
	require.Len(t, criticals, 1)
	assert.Equal(t, "API response failed", criticals[0].message)
	assert.Empty(t, logger.atLevel("error"))
}

func TestDoLogFieldsReconstructCall(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write([]byte(`[{"id":"1"}]`))
	}))
	defer server.Close()

	logger := &captureLogger{}
	client := NewClient(server.URL, testLimiter(0), WithLogger(logger))

	params := url.Values{}
	params.Set("semesterId", "7")

	_, err := client.Do(context.Background(), &Request{
		Description: "GET sections",
		Method:      "GET",
		URI:         "/sections",
		Params:      params,
	})
	require.NoError(t, err)

	infos := logger.atLevel("info")
	require.Len(t, infos, 2)

	before := infos[0]
	assert.Equal(t, "API request", before.message)
	assert.Equal(t, "GET sections", before.fields["description"])
	assert.Equal(t, "GET", before.fields["verb"])
	assert.Equal(t, "/sections", before.fields["uri"])
	assert.Equal(t, server.URL+"/sections", before.fields["full_url"])
	assert.Equal(t, "semesterId=7", before.fields["params"])
	assert.NotEmpty(t, before.fields["request_id"])

	after := infos[1]
	assert.Equal(t, "API response", after.message)
	assert.Equal(t, before.fields["request_id"], after.fields["request_id"])
	assert.Equal(t, 200, after.fields["status_code"])
	assert.Equal(t, true, after.fields["successful"])
}
