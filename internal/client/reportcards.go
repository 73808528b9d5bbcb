package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// ReportCardsClient implements sisapi.ReportCardsClient. Report cards
// have no id of their own; the cache keys them by a
// studentId:reportCycleId composite.
type ReportCardsClient struct {
	client *Client
}

func (r *ReportCardsClient) cyclesRequest() *http.Request {
	return &http.Request{
		Description: "GET report cycles",
		Method:      "GET",
		URI:         "/reportcycles",
	}
}

func (r *ReportCardsClient) Cycles(ctx context.Context, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	return r.client.listCached(ctx, r.client.cycleCache, opts.Normalize(), r.cyclesRequest())
}

// ActiveCycle returns the report cycle the server marks active.
func (r *ReportCardsClient) ActiveCycle(ctx context.Context) (sisapi.Record, error) {
	cycles, err := r.Cycles(ctx, &sisapi.FetchOptions{
		Filter: sisapi.Filter{"isActive": true},
	})
	if err != nil {
		return nil, err
	}

	if len(cycles) == 0 {
		return nil, sisapi.ErrNoActiveReportCycle
	}

	return cycles[0], nil
}

func (r *ReportCardsClient) Get(ctx context.Context, studentID, reportCycleID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	sid, err := sisapi.CleanID(studentID)
	if err != nil {
		return nil, err
	}

	cid, err := sisapi.CleanID(reportCycleID)
	if err != nil {
		return nil, err
	}

	id := sisapi.MakeID(sid, cid)
	o := opts.Normalize()

	if record, ok := cacheServes(r.client.reportCardCache, o, id); ok {
		return record, nil
	}

	params := url.Values{}
	params.Set("reportCycleId", cid)

	record, err := r.client.fetchRecord(ctx, &http.Request{
		Description: "GET report card",
		Method:      "GET",
		URI:         "/students/" + sid + "/reportcards",
		Params:      params,
	}, o)
	if err != nil {
		return nil, err
	}

	if len(record) == 0 {
		return nil, fmt.Errorf("%w: report card for student %s in cycle %s", sisapi.ErrNotFound, sid, cid)
	}

	record[syntheticIDKey] = id

	err = r.client.reportCardCache.Add(record)
	if err != nil {
		return nil, err
	}

	cached, _ := r.client.reportCardCache.Get(id)

	return cached, nil
}

// PostSectionLevel writes section-level report card values for one
// student and cycle. The cached report card is dropped on success.
func (r *ReportCardsClient) PostSectionLevel(ctx context.Context, studentID, reportCycleID string, data sisapi.SectionLevelData, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	sid, err := sisapi.CleanID(studentID)
	if err != nil {
		return nil, err
	}

	cid, err := sisapi.CleanID(reportCycleID)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, &sisapi.ValidationError{Field: "sectionLevelData", Reason: "must not be empty"}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding section-level data: %w", err)
	}

	form := url.Values{}
	form.Set("reportCycleId", cid)
	form.Set("sectionLevelData", string(payload))

	record, err := r.client.fetchRecord(ctx, &http.Request{
		Description: "POST report card section-level data",
		Method:      "POST",
		URI:         "/students/" + sid + "/reportcards",
		Form:        form,
	}, opts.Normalize())
	if err != nil {
		return nil, err
	}

	r.client.reportCardCache.Invalidate(sisapi.MakeID(sid, cid))

	return record, nil
}
