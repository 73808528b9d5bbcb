package constants

import "time"

// File and directory permissions.
const (
	// KeyStoreDirPerm is the permission for key store directories.
	KeyStoreDirPerm = 0750

	// KeyStoreFilePerm is the permission for key store files.
	KeyStoreFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// HTTP status codes.
const (
	// HTTPStatusOK is the only status the upstream API uses for success.
	HTTPStatusOK = 200
)

// Rate limiting.
const (
	// LiveRequestCeiling is the per-process request ceiling for the live
	// and backup servers, which publish no quota headers.
	LiveRequestCeiling = 4500

	// LocalRequestCeiling is the ceiling for a local development server.
	LocalRequestCeiling = 100000

	// HTTPBinRequestCeiling is the ceiling used for httpbin test traffic.
	HTTPBinRequestCeiling = 1000

	// GitHubRemainingHeader carries the remaining-quota integer on
	// GitHub-style APIs.
	GitHubRemainingHeader = "X-RateLimit-Remaining"
)
