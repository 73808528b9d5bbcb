package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// StudentsClient implements sisapi.StudentsClient against /students.
type StudentsClient struct {
	client *Client
}

func (s *StudentsClient) listRequest(query sisapi.StudentQuery) *http.Request {
	params := url.Values{}

	if query.Search != "" {
		params.Set("search", query.Search)
	}

	if query.ShowDeleted {
		params.Set("showDeleted", "true")
	}

	if query.ShowHasLeft {
		params.Set("showHasLeft", "true")
	}

	return &http.Request{
		Description: "GET students",
		Method:      "GET",
		URI:         "/students",
		Params:      params,
	}
}

func (s *StudentsClient) List(ctx context.Context, query *sisapi.StudentQuery, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	q := sisapi.StudentQuery{}
	if query != nil {
		q = *query
	}

	o := opts.Normalize()

	// Listings that reach into deleted or has-left students never touch
	// the cache: mixing them in would poison the enrolled-student view
	// every other accessor relies on.
	if q.ShowDeleted || q.ShowHasLeft || q.Search != "" {
		records, err := s.client.fetchRecords(ctx, s.listRequest(q), o)
		if err != nil {
			return nil, err
		}

		if q.IgnoreDeletedDuplicates {
			records = dropDeletedDuplicates(records)
		}

		return filterRecords(records, o.Filter), nil
	}

	return s.client.listCached(ctx, s.client.studentCache, o, s.listRequest(q))
}

func (s *StudentsClient) ListByID(ctx context.Context, query *sisapi.StudentQuery, opts *sisapi.FetchOptions) (map[string]sisapi.Record, error) {
	records, err := s.List(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	return rekeyByID(records, s.client.studentCache.IDKey()), nil
}

func (s *StudentsClient) Get(ctx context.Context, studentID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(studentID)
	if err != nil {
		return nil, err
	}

	return s.client.getCached(ctx, s.client.studentCache, id, opts.Normalize(), s.listRequest(sisapi.StudentQuery{}))
}

// ByName returns every enrolled student whose fullName contains name.
func (s *StudentsClient) ByName(ctx context.Context, name string, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	students, err := s.List(ctx, nil, opts)
	if err != nil {
		return nil, err
	}

	matched := make([]sisapi.Record, 0, len(students))

	for _, student := range students {
		if strings.Contains(student.String("fullName"), name) {
			matched = append(matched, student)
		}
	}

	return matched, nil
}

// dropDeletedDuplicates removes deleted students that share a fullName
// with a live student. A re-enrolled student usually exists twice, once
// deleted and once live, and callers asking for this want the live one.
func dropDeletedDuplicates(records []sisapi.Record) []sisapi.Record {
	liveNames := make(map[string]struct{})

	for _, record := range records {
		if !record.Bool("deleted") {
			liveNames[record.String("fullName")] = struct{}{}
		}
	}

	kept := make([]sisapi.Record, 0, len(records))

	for _, record := range records {
		if record.Bool("deleted") {
			if _, live := liveNames[record.String("fullName")]; live {
				continue
			}
		}

		kept = append(kept, record)
	}

	return kept
}

// filterRecords applies an exact-match filter to an uncached listing.
func filterRecords(records []sisapi.Record, filter sisapi.Filter) []sisapi.Record {
	if len(filter) == 0 {
		return records
	}

	matched := make([]sisapi.Record, 0, len(records))

	for _, record := range records {
		if record.Matches(filter) {
			matched = append(matched, record)
		}
	}

	return matched
}
