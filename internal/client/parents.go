package client

import (
	"context"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// ParentsClient implements sisapi.ParentsClient against /parents.
type ParentsClient struct {
	client *Client
}

func (p *ParentsClient) listRequest() *http.Request {
	return &http.Request{
		Description: "GET parents",
		Method:      "GET",
		URI:         "/parents",
	}
}

func (p *ParentsClient) List(ctx context.Context, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	return p.client.listCached(ctx, p.client.parentCache, opts.Normalize(), p.listRequest())
}

func (p *ParentsClient) ListByID(ctx context.Context, opts *sisapi.FetchOptions) (map[string]sisapi.Record, error) {
	records, err := p.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	return rekeyByID(records, p.client.parentCache.IDKey()), nil
}

func (p *ParentsClient) Get(ctx context.Context, parentID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(parentID)
	if err != nil {
		return nil, err
	}

	return p.client.getCached(ctx, p.client.parentCache, id, opts.Normalize(), p.listRequest())
}
