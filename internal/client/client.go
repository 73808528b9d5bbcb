// Package client implements the resource clients behind the public
// sisapi.Client interface. Each resource wires a RecordCache and the
// shared cache-bypass decision around the request executor.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

var _ sisapi.Client = (*Client)(nil)

// Client is the concrete sisapi.Client. One instance serves one school
// against one upstream server.
type Client struct {
	exec   *http.Client
	keys   sisapi.KeyStore
	logger sisapi.Logger

	schoolCode string
	apiKey     string
	keyPath    sisapi.KeyPath

	keyMu       sync.Mutex
	keyVerified bool

	semesterCache   *sisapi.RecordCache
	classCache      *sisapi.RecordCache
	teacherCache    *sisapi.RecordCache
	parentCache     *sisapi.RecordCache
	studentCache    *sisapi.RecordCache
	sectionCache    *sisapi.RecordCache
	enrollmentCache *sisapi.RecordCache
	assignmentCache *sisapi.RecordCache
	gradeCache      *sisapi.RecordCache
	cycleCache      *sisapi.RecordCache
	reportCardCache *sisapi.RecordCache
	transcriptCache *sisapi.RecordCache
}

// New builds a client over an already-configured executor. The access
// key is resolved immediately; the first verified-successful request
// persists it back to the key store.
func New(server, accessKey string, keys sisapi.KeyStore, logger sisapi.Logger, exec *http.Client) (*Client, error) {
	if accessKey == "" {
		return nil, sisapi.ErrAccessKeyRequired
	}

	if keys == nil {
		keys = sisapi.NewMemoryKeyStore()
	}

	if logger == nil {
		logger = sisapi.NoopLogger{}
	}

	schoolCode, apiKey, err := resolveAccessKey(server, accessKey, keys)
	if err != nil {
		return nil, err
	}

	client := &Client{
		exec:       exec,
		keys:       keys,
		logger:     logger,
		schoolCode: schoolCode,
		apiKey:     apiKey,
		keyPath:    sisapi.KeyPath{"sis", server, schoolCode},

		semesterCache:   sisapi.NewRecordCache(),
		classCache:      sisapi.NewRecordCache(sisapi.WithSortKey("sortOrder")),
		teacherCache:    sisapi.NewRecordCache(sisapi.WithSortKey("fullName")),
		parentCache:     sisapi.NewRecordCache(sisapi.WithSortKey("fullName")),
		studentCache:    sisapi.NewRecordCache(sisapi.WithSortKey("fullName")),
		sectionCache:    sisapi.NewRecordCache(sisapi.WithSortKey("sectionName")),
		enrollmentCache: sisapi.NewRecordCache(),
		assignmentCache: sisapi.NewRecordCache(sisapi.WithSortKey("name")),
		gradeCache:      sisapi.NewRecordCache(sisapi.WithIDKey(syntheticIDKey)),
		cycleCache:      sisapi.NewRecordCache(),
		reportCardCache: sisapi.NewRecordCache(sisapi.WithIDKey(syntheticIDKey)),
		transcriptCache: sisapi.NewRecordCache(sisapi.WithIDKey("studentId")),
	}

	exec.SetAPIKey(apiKey)

	return client, nil
}

// syntheticIDKey keys cache records for resources the API returns
// without identifiers of their own.
const syntheticIDKey = "_sisapi_id"

// resolveAccessKey splits a full "schoolcode.xxxx" key or looks a bare
// schoolcode up in the store.
func resolveAccessKey(server, accessKey string, keys sisapi.KeyStore) (schoolCode, apiKey string, err error) {
	schoolCode, rest, found := strings.Cut(accessKey, ".")
	if found && schoolCode != "" && rest != "" {
		return schoolCode, accessKey, nil
	}

	schoolCode = accessKey

	apiKey, ok := keys.Get(sisapi.KeyPath{"sis", server, schoolCode})
	if !ok {
		return "", "", fmt.Errorf("%w: school %s on server %s", sisapi.ErrAPIKeyNotFound, schoolCode, server)
	}

	return schoolCode, apiKey, nil
}

// SchoolCode returns the school this client is bound to.
func (c *Client) SchoolCode() string {
	return c.schoolCode
}

func (c *Client) Students() sisapi.StudentsClient       { return &StudentsClient{client: c} }
func (c *Client) Teachers() sisapi.TeachersClient       { return &TeachersClient{client: c} }
func (c *Client) Parents() sisapi.ParentsClient         { return &ParentsClient{client: c} }
func (c *Client) Semesters() sisapi.SemestersClient     { return &SemestersClient{client: c} }
func (c *Client) Classes() sisapi.ClassesClient         { return &ClassesClient{client: c} }
func (c *Client) Sections() sisapi.SectionsClient       { return &SectionsClient{client: c} }
func (c *Client) Enrollments() sisapi.EnrollmentsClient { return &EnrollmentsClient{client: c} }
func (c *Client) Assignments() sisapi.AssignmentsClient { return &AssignmentsClient{client: c} }
func (c *Client) Grades() sisapi.GradesClient           { return &GradesClient{client: c} }
func (c *Client) ReportCards() sisapi.ReportCardsClient { return &ReportCardsClient{client: c} }
func (c *Client) Transcripts() sisapi.TranscriptsClient { return &TranscriptsClient{client: c} }
func (c *Client) Attendance() sisapi.AttendanceClient   { return &AttendanceClient{client: c} }
func (c *Client) Fees() sisapi.FeesClient               { return &FeesClient{client: c} }
func (c *Client) Incidents() sisapi.IncidentsClient     { return &IncidentsClient{client: c} }

// do runs one request and, on the first verified success, persists the
// API key back to the store.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Successful {
		c.markKeyVerified()
	}

	return resp, nil
}

// markKeyVerified persists the API key after its first successful use.
// An unverified key must never be written to the store.
func (c *Client) markKeyVerified() {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	if c.keyVerified {
		return
	}

	c.keyVerified = true

	err := c.keys.Set(c.keyPath, c.apiKey)
	if err != nil {
		c.logger.Error("Persisting verified API key failed", map[string]interface{}{
			"path":  c.keyPath.String(),
			"error": err.Error(),
		})
	}
}

// requireSuccess translates an unsuccessful response into a typed
// RequestError carrying the full diagnostics.
func (c *Client) requireSuccess(req *http.Request, resp *http.Response) error {
	if resp.Successful {
		return nil
	}

	return &sisapi.RequestError{
		Description: req.Description,
		Method:      req.Method,
		URL:         c.exec.BaseURL() + req.URI,
		StatusCode:  resp.StatusCode,
		Body:        string(resp.Body),
		JSON:        resp.JSON,
	}
}

// fetchRecords executes a listing request and returns its records.
func (c *Client) fetchRecords(ctx context.Context, req *http.Request, o sisapi.FetchOptions) ([]sisapi.Record, error) {
	applyOptions(req, o)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	err = c.requireSuccess(req, resp)
	if err != nil {
		return nil, err
	}

	return resp.Records(), nil
}

// fetchRecord executes a single-record request.
func (c *Client) fetchRecord(ctx context.Context, req *http.Request, o sisapi.FetchOptions) (sisapi.Record, error) {
	applyOptions(req, o)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	err = c.requireSuccess(req, resp)
	if err != nil {
		return nil, err
	}

	return resp.Record(), nil
}

// listCached is the shared listing path: serve from cache when it can
// satisfy the call, else fetch, merge into the cache, and list again.
func (c *Client) listCached(ctx context.Context, cache *sisapi.RecordCache, o sisapi.FetchOptions, req *http.Request) ([]sisapi.Record, error) {
	if !needsFetch(cache, o) {
		return cache.List(o.Filter), nil
	}

	records, err := c.fetchRecords(ctx, req, o)
	if err != nil {
		return nil, err
	}

	err = cache.Add(records...)
	if err != nil {
		return nil, err
	}

	return cache.List(o.Filter), nil
}

// getCached is the shared by-id path: serve the cached record when the
// cache can satisfy the call, else fetch via req, merge, and retry the
// lookup. A record still absent after the fetch is ErrNotFound.
func (c *Client) getCached(ctx context.Context, cache *sisapi.RecordCache, id string, o sisapi.FetchOptions, req *http.Request) (sisapi.Record, error) {
	if record, ok := cacheServes(cache, o, id); ok {
		return record, nil
	}

	records, err := c.fetchRecords(ctx, req, o)
	if err != nil {
		return nil, err
	}

	err = cache.Add(records...)
	if err != nil {
		return nil, err
	}

	record, ok := cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", sisapi.ErrNotFound, req.Description, id)
	}

	return record, nil
}

// needsFetch is the cache-bypass decision for listings: fetch when the
// cache is disabled for the call, empty, missing a requested field, or
// has no record matching the filter.
func needsFetch(cache *sisapi.RecordCache, o sisapi.FetchOptions) bool {
	if o.DisableCache {
		return true
	}

	if cache.Len() == 0 {
		return true
	}

	if len(o.Fields) > 0 && !cache.HasFields(o.Fields...) {
		return true
	}

	if len(o.Filter) > 0 && len(cache.List(o.Filter)) == 0 {
		return true
	}

	return false
}

// cacheServes is the cache-bypass decision for by-id reads.
func cacheServes(cache *sisapi.RecordCache, o sisapi.FetchOptions, id string) (sisapi.Record, bool) {
	if o.DisableCache {
		return nil, false
	}

	if len(o.Fields) > 0 && !cache.HasFields(o.Fields...) {
		return nil, false
	}

	record, ok := cache.Get(id)
	if !ok {
		return nil, false
	}

	if len(o.Filter) > 0 && !record.Matches(o.Filter) {
		return nil, false
	}

	return record, true
}

// applyOptions folds per-call options into the outbound request.
func applyOptions(req *http.Request, o sisapi.FetchOptions) {
	req.Silent = o.Silent
	req.Critical = o.Critical

	if len(o.Fields) > 0 {
		if req.Params == nil {
			req.Params = url.Values{}
		}

		req.Params.Set("fields", strings.Join(o.Fields, ","))
	}
}

// rekeyByID turns a record list into an id-keyed map using idKey.
func rekeyByID(records []sisapi.Record, idKey string) map[string]sisapi.Record {
	byID := make(map[string]sisapi.Record, len(records))

	for _, record := range records {
		id, ok := record.ID(idKey)
		if !ok {
			continue
		}

		byID[id] = record
	}

	return byID
}

// cleanIDs validates a required id list: non-empty, every element a
// usable identifier.
func cleanIDs(field string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, &sisapi.ValidationError{
			Field:  field,
			Reason: "must be a non-empty list of ids",
		}
	}

	cleaned := make([]string, 0, len(ids))

	for _, id := range ids {
		clean, err := sisapi.CleanID(id)
		if err != nil {
			return nil, err
		}

		cleaned = append(cleaned, clean)
	}

	return cleaned, nil
}
