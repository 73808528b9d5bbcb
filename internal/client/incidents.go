package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// IncidentsClient implements sisapi.IncidentsClient.
type IncidentsClient struct {
	client *Client
}

// Post writes one discipline incident. The incidents endpoint wants the
// reporting teacher's userId rather than their teacher id, so the
// teacher record is resolved through the teacher cache first.
func (i *IncidentsClient) Post(ctx context.Context, entry *sisapi.IncidentEntry, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	if entry == nil {
		return nil, &sisapi.ValidationError{Field: "entry", Reason: "must not be nil"}
	}

	studentID, err := sisapi.CleanID(entry.StudentID)
	if err != nil {
		return nil, err
	}

	teacherID, err := sisapi.CleanID(entry.TeacherID)
	if err != nil {
		return nil, err
	}

	teacher, err := i.client.Teachers().Get(ctx, teacherID, &sisapi.FetchOptions{
		Fields: []string{"userId"},
	})
	if err != nil {
		return nil, err
	}

	userID := teacher.String("userId")
	if userID == "" {
		return nil, fmt.Errorf("%w: teacher %s has no userId", sisapi.ErrNotFound, teacherID)
	}

	form := url.Values{}
	form.Set("studentId", studentID)
	form.Set("userId", userID)
	form.Set("detail", entry.Detail)
	form.Set("date", entry.Date)
	form.Set("demeritPoints", strconv.Itoa(entry.DemeritPoints))

	return i.client.fetchRecord(ctx, &http.Request{
		Description: "POST incident",
		Method:      "POST",
		URI:         "/incidents",
		Form:        form,
	}, opts.Normalize())
}
