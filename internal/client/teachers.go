package client

import (
	"context"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// TeachersClient implements sisapi.TeachersClient against /teachers.
type TeachersClient struct {
	client *Client
}

func (t *TeachersClient) listRequest() *http.Request {
	return &http.Request{
		Description: "GET teachers",
		Method:      "GET",
		URI:         "/teachers",
	}
}

func (t *TeachersClient) List(ctx context.Context, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	return t.client.listCached(ctx, t.client.teacherCache, opts.Normalize(), t.listRequest())
}

func (t *TeachersClient) ListByID(ctx context.Context, opts *sisapi.FetchOptions) (map[string]sisapi.Record, error) {
	records, err := t.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	return rekeyByID(records, t.client.teacherCache.IDKey()), nil
}

func (t *TeachersClient) Get(ctx context.Context, teacherID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(teacherID)
	if err != nil {
		return nil, err
	}

	return t.client.getCached(ctx, t.client.teacherCache, id, opts.Normalize(), t.listRequest())
}
