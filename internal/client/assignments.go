package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// sectionIDField tags cached assignments with the section they belong
// to; the listing endpoint is section-scoped and the records themselves
// do not carry it.
const sectionIDField = "sectionId"

// AssignmentsClient implements sisapi.AssignmentsClient against the
// section-scoped assignments endpoint.
type AssignmentsClient struct {
	client *Client
}

func (a *AssignmentsClient) List(ctx context.Context, sectionID string, query *sisapi.AssignmentQuery, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	id, err := sisapi.CleanID(sectionID)
	if err != nil {
		return nil, err
	}

	q := sisapi.AssignmentQuery{}
	if query != nil {
		q = *query
	}

	o := opts.Normalize().WithFilter(sisapi.Filter{sectionIDField: id})

	// Grade-bearing listings carry per-call payloads the cache cannot
	// represent, so they always hit the network.
	fetch := q.IncludeGrades || q.IncludeFinalGrades || needsFetch(a.client.assignmentCache, o)
	if !fetch {
		return a.client.assignmentCache.List(o.Filter), nil
	}

	params := url.Values{}
	if q.IncludeFinalGrades {
		params.Set("includeFinalGrades", "true")
	}

	if q.IncludeGrades {
		params.Set("includeGrades", "true")
	}

	records, err := a.client.fetchRecords(ctx, &http.Request{
		Description: "GET assignments",
		Method:      "GET",
		URI:         "/sections/" + id + "/assignments",
		Params:      params,
	}, o)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		record[sectionIDField] = id
	}

	err = a.client.assignmentCache.Add(records...)
	if err != nil {
		return nil, err
	}

	return a.client.assignmentCache.List(o.Filter), nil
}

// Get serves a single assignment from the cache populated by List. The
// API has no by-assignment endpoint, so an id never listed is a miss.
func (a *AssignmentsClient) Get(ctx context.Context, assignmentID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(assignmentID)
	if err != nil {
		return nil, err
	}

	o := opts.Normalize()

	record, ok := cacheServes(a.client.assignmentCache, o, id)
	if !ok {
		return nil, fmt.Errorf("%w: assignment %q (list its section first)", sisapi.ErrNotFound, id)
	}

	return record, nil
}

func (a *AssignmentsClient) Create(ctx context.Context, sectionID string, req *sisapi.AssignmentCreateRequest, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(sectionID)
	if err != nil {
		return nil, err
	}

	if req == nil || req.Name == "" {
		return nil, &sisapi.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	form := url.Values{}
	form.Set("name", req.Name)
	form.Set("date", req.Date)
	form.Set("totalMarksPossible", strconv.FormatFloat(req.TotalMarksPossible, 'f', -1, 64))

	if req.ColumnCategoryID != "" {
		form.Set("columnCategoryId", req.ColumnCategoryID)
	}

	if req.GradingScaleID != "" {
		form.Set("gradingScaleId", req.GradingScaleID)
	}

	record, err := a.client.fetchRecord(ctx, &http.Request{
		Description: "POST assignment",
		Method:      "POST",
		URI:         "/sections/" + id + "/assignments",
		Form:        form,
	}, opts.Normalize())
	if err != nil {
		return nil, err
	}

	record[sectionIDField] = id

	if _, ok := record.ID(a.client.assignmentCache.IDKey()); ok {
		err = a.client.assignmentCache.Add(record)
		if err != nil {
			return nil, err
		}
	}

	return record, nil
}

func (a *AssignmentsClient) Delete(ctx context.Context, sectionID, assignmentID string, opts *sisapi.FetchOptions) error {
	sid, err := sisapi.CleanID(sectionID)
	if err != nil {
		return err
	}

	aid, err := sisapi.CleanID(assignmentID)
	if err != nil {
		return err
	}

	req := &http.Request{
		Description: "DELETE assignment",
		Method:      "DELETE",
		URI:         "/sections/" + sid + "/assignments/" + aid,
	}

	o := opts.Normalize()
	applyOptions(req, o)

	resp, err := a.client.do(ctx, req)
	if err != nil {
		return err
	}

	err = a.client.requireSuccess(req, resp)
	if err != nil {
		return err
	}

	a.client.assignmentCache.Invalidate(aid)

	return nil
}

// CategoryIDs maps grade category names to category ids, derived from
// the section's assignments.
func (a *AssignmentsClient) CategoryIDs(ctx context.Context, sectionID string) (map[string]string, error) {
	assignments, err := a.List(ctx, sectionID, nil, &sisapi.FetchOptions{
		Fields: []string{"columnCategoryId", "columnCategoryName"},
	})
	if err != nil {
		return nil, err
	}

	categories := make(map[string]string)

	for _, assignment := range assignments {
		name := assignment.String("columnCategoryName")
		id := assignment.String("columnCategoryId")

		if name == "" || id == "" {
			continue
		}

		categories[name] = id
	}

	return categories, nil
}
