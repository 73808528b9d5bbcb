package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// TranscriptsClient implements sisapi.TranscriptsClient. Transcripts
// are one-per-student, so the cache keys them by studentId.
type TranscriptsClient struct {
	client *Client
}

func (t *TranscriptsClient) Get(ctx context.Context, studentID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	sid, err := sisapi.CleanID(studentID)
	if err != nil {
		return nil, err
	}

	o := opts.Normalize()

	if record, ok := cacheServes(t.client.transcriptCache, o, sid); ok {
		return record, nil
	}

	record, err := t.client.fetchRecord(ctx, &http.Request{
		Description: "GET transcript",
		Method:      "GET",
		URI:         "/transcripts/" + sid,
	}, o)
	if err != nil {
		return nil, err
	}

	if len(record) == 0 {
		return nil, fmt.Errorf("%w: transcript for student %s", sisapi.ErrNotFound, sid)
	}

	if record.String("studentId") == "" {
		record["studentId"] = sid
	}

	err = t.client.transcriptCache.Add(record)
	if err != nil {
		return nil, err
	}

	cached, _ := t.client.transcriptCache.Get(sid)

	return cached, nil
}

// PostSectionLevel writes section-level transcript values for one
// student. The cached transcript is dropped on success.
func (t *TranscriptsClient) PostSectionLevel(ctx context.Context, studentID string, data sisapi.SectionLevelData, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	sid, err := sisapi.CleanID(studentID)
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
	form.Set("sectionLevelData", string(payload))

	record, err := t.client.fetchRecord(ctx, &http.Request{
		Description: "POST transcript section-level data",
		Method:      "POST",
		URI:         "/transcripts/" + sid,
		Form:        form,
	}, opts.Normalize())
	if err != nil {
		return nil, err
	}

	t.client.transcriptCache.Invalidate(sid)

	return record, nil
}
