package client

import (
	"context"
	"fmt"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// ClassesClient implements sisapi.ClassesClient against /classes. The
// endpoint only serves classes from the current semester.
type ClassesClient struct {
	client *Client
}

func (c *ClassesClient) listRequest() *http.Request {
	return &http.Request{
		Description: "GET classes",
		Method:      "GET",
		URI:         "/classes",
	}
}

func (c *ClassesClient) List(ctx context.Context, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	return c.client.listCached(ctx, c.client.classCache, opts.Normalize(), c.listRequest())
}

func (c *ClassesClient) ListByID(ctx context.Context, opts *sisapi.FetchOptions) (map[string]sisapi.Record, error) {
	records, err := c.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	return rekeyByID(records, c.client.classCache.IDKey()), nil
}

func (c *ClassesClient) Get(ctx context.Context, classID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(classID)
	if err != nil {
		return nil, err
	}

	return c.client.getCached(ctx, c.client.classCache, id, opts.Normalize(), c.listRequest())
}

// Match finds the current-semester class carrying the same name as the
// source class. Classes keep their names across semesters while their
// ids change, so name is the join key.
func (c *ClassesClient) Match(ctx context.Context, sourceClassID string) (sisapi.Record, error) {
	source, err := c.Get(ctx, sourceClassID, nil)
	if err != nil {
		return nil, err
	}

	name := source.String("name")
	if name == "" {
		return nil, fmt.Errorf("%w: class %s has no name to match on", sisapi.ErrNotFound, sourceClassID)
	}

	matches, err := c.List(ctx, &sisapi.FetchOptions{
		Filter: sisapi.Filter{"name": name},
	})
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no current class named %q", sisapi.ErrNotFound, name)
	}

	return matches[0], nil
}
