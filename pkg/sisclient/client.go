// Package sisclient builds ready-to-use school-management API clients
// from a sisapi.Config. It resolves the upstream server, normalizes the
// endpoint, and wires the rate limiter, transport and key store behind
// the sisapi.Client interface.
package sisclient

import (
	"fmt"
	"strings"

	"github.com/quadra-edu/sisapi/internal/client"
	"github.com/quadra-edu/sisapi/internal/constants"
	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/internal/ratelimit"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// serverEndpoints maps Config.Server names to their base URLs.
var serverEndpoints = map[string]string{
	sisapi.ServerLive:   "https://api.quadraschools.com/sis/v1",
	sisapi.ServerBackup: "https://api.quadrabackup.com/sis/v1",
	sisapi.ServerLocal:  "http://localhost:8080/sis/v1",
}

// New creates a client for the configured school and server.
func New(config *sisapi.Config) (sisapi.Client, error) {
	if config == nil {
		return nil, sisapi.ErrConfigRequired
	}

	if config.AccessKey == "" {
		return nil, sisapi.ErrAccessKeyRequired
	}

	server := config.Server
	if server == "" {
		server = sisapi.ServerLive
	}

	endpoint, err := resolveEndpoint(server, config.Endpoint)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = sisapi.NoopLogger{}
	}

	opts := []http.Option{
		http.WithLogger(logger),
	}

	if config.UserAgent != "" {
		opts = append(opts, http.WithUserAgent(config.UserAgent))
	}

	if config.Debug {
		opts = append(opts, http.WithDebug(true))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		waitMin := config.RetryWaitMin
		if waitMin <= 0 {
			waitMin = constants.DefaultRetryWaitMin
		}

		waitMax := config.RetryWaitMax
		if waitMax <= 0 {
			waitMax = constants.DefaultRetryWaitMax
		}

		opts = append(opts, http.WithRetryConfig(config.RetryMax, waitMin, waitMax))
	}

	limiter := ratelimit.NewLimiter(nil, logger)
	exec := http.NewClient(endpoint, limiter, opts...)

	return client.New(server, config.AccessKey, config.Keys, logger, exec)
}

// resolveEndpoint picks the server's base URL, honoring an explicit
// override, and normalizes it to scheme + host + path with no trailing
// slash.
func resolveEndpoint(server, override string) (string, error) {
	endpoint := override

	if endpoint == "" {
		known, ok := serverEndpoints[server]
		if !ok {
			return "", fmt.Errorf("%w: %q", sisapi.ErrUnknownServer, server)
		}

		endpoint = known
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	return strings.TrimSuffix(endpoint, "/"), nil
}
