package client

import (
	"context"
	"fmt"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// SemestersClient implements sisapi.SemestersClient against /semesters.
type SemestersClient struct {
	client *Client
}

func (s *SemestersClient) listRequest() *http.Request {
	return &http.Request{
		Description: "GET semesters",
		Method:      "GET",
		URI:         "/semesters",
	}
}

func (s *SemestersClient) List(ctx context.Context, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	return s.client.listCached(ctx, s.client.semesterCache, opts.Normalize(), s.listRequest())
}

func (s *SemestersClient) ListByID(ctx context.Context, opts *sisapi.FetchOptions) (map[string]sisapi.Record, error) {
	records, err := s.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	return rekeyByID(records, s.client.semesterCache.IDKey()), nil
}

func (s *SemestersClient) Get(ctx context.Context, semesterID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(semesterID)
	if err != nil {
		return nil, err
	}

	return s.client.getCached(ctx, s.client.semesterCache, id, opts.Normalize(), s.listRequest())
}

// Active returns the semester the server marks active.
func (s *SemestersClient) Active(ctx context.Context) (sisapi.Record, error) {
	semesters, err := s.List(ctx, &sisapi.FetchOptions{
		Filter: sisapi.Filter{"isActive": true},
	})
	if err != nil {
		return nil, err
	}

	if len(semesters) == 0 {
		return nil, sisapi.ErrNoActiveSemester
	}

	return semesters[0], nil
}

func (s *SemestersClient) ActiveID(ctx context.Context) (string, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return "", err
	}

	id, ok := active.ID(s.client.semesterCache.IDKey())
	if !ok {
		return "", fmt.Errorf("%w: active semester has no id", sisapi.ErrNotFound)
	}

	return id, nil
}

// ActiveYearID returns the academic year the active semester belongs to.
func (s *SemestersClient) ActiveYearID(ctx context.Context) (string, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return "", err
	}

	yearID := active.String("yearId")
	if yearID == "" {
		return "", fmt.Errorf("%w: active semester has no year id", sisapi.ErrNotFound)
	}

	return yearID, nil
}

// ForYear returns every semester in the given academic year.
func (s *SemestersClient) ForYear(ctx context.Context, yearID string) ([]sisapi.Record, error) {
	id, err := sisapi.CleanID(yearID)
	if err != nil {
		return nil, err
	}

	return s.List(ctx, &sisapi.FetchOptions{
		Filter: sisapi.Filter{"yearId": id},
	})
}
