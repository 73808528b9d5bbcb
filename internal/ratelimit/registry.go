// Package ratelimit tracks per-server request quotas. Every outbound
// request and inbound response is registered against the quota state of
// the server it targets; once a server's limit is reached the limiter
// refuses all further requests to it for the life of the process.
package ratelimit

import (
	"strings"

	"github.com/quadra-edu/sisapi/internal/constants"
)

// Identity is the stable logical name of an upstream host, used for
// quota tracking and logging.
type Identity string

// Known server identities.
const (
	IdentityLive    Identity = "sis_live"
	IdentityBackup  Identity = "sis_backup"
	IdentityLocal   Identity = "sis_local"
	IdentityGitHub  Identity = "github"
	IdentityHTTPBin Identity = "httpbin"
)

// ServerEntry maps a host pattern to an identity and its quota policy.
type ServerEntry struct {
	// Pattern is matched as a substring of the request URL. Entries are
	// tried in order; in practice the patterns are disjoint hostnames.
	Pattern  string
	Identity Identity
	Policy   Policy
}

// Registry resolves request URLs to server identities.
type Registry struct {
	entries []ServerEntry
}

// NewRegistry builds a registry from an ordered entry table.
func NewRegistry(entries ...ServerEntry) *Registry {
	return &Registry{entries: entries}
}

// DefaultRegistry returns the registry of known upstream servers. The
// live and backup servers publish no quota headers, so the client
// counts requests against a fixed ceiling itself; GitHub-style APIs
// report the remaining allowance on a response header.
func DefaultRegistry() *Registry {
	return NewRegistry(
		ServerEntry{
			Pattern:  "api.quadraschools.com",
			Identity: IdentityLive,
			Policy:   NewCounterPolicy(constants.LiveRequestCeiling),
		},
		ServerEntry{
			Pattern:  "api.quadrabackup.com",
			Identity: IdentityBackup,
			Policy:   NewCounterPolicy(constants.LiveRequestCeiling),
		},
		ServerEntry{
			Pattern:  "localhost",
			Identity: IdentityLocal,
			Policy:   NewCounterPolicy(constants.LocalRequestCeiling),
		},
		ServerEntry{
			Pattern:  "api.github.com",
			Identity: IdentityGitHub,
			Policy:   NewHeaderPolicy(constants.GitHubRemainingHeader),
		},
		ServerEntry{
			Pattern:  "httpbin.org",
			Identity: IdentityHTTPBin,
			Policy:   NewCounterPolicy(constants.HTTPBinRequestCeiling),
		},
	)
}

// IdentityFor resolves a URL to a server identity. The second return is
// false for unrecognized URLs: such requests proceed untracked.
func (r *Registry) IdentityFor(url string) (Identity, bool) {
	entry, ok := r.entryFor(url)
	if !ok {
		return "", false
	}

	return entry.Identity, true
}

func (r *Registry) entryFor(url string) (ServerEntry, bool) {
	for _, entry := range r.entries {
		if strings.Contains(url, entry.Pattern) {
			return entry, true
		}
	}

	return ServerEntry{}, false
}
