package client

import (
	"context"
	"net/url"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// attendanceStatuses are the marks the API accepts.
var attendanceStatuses = map[string]struct{}{
	"P":  {},
	"A":  {},
	"T":  {},
	"EA": {},
	"ET": {},
}

// AttendanceClient implements sisapi.AttendanceClient.
type AttendanceClient struct {
	client *Client
}

func (a *AttendanceClient) Post(ctx context.Context, entry *sisapi.AttendanceEntry, opts *sisapi.FetchOptions) (sisapi.Record, error) {
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

	if _, ok := attendanceStatuses[entry.Status]; !ok {
		return nil, &sisapi.ValidationError{
			Field:  "status",
			Reason: "must be one of P, A, T, EA, ET",
		}
	}

	form := url.Values{}
	form.Set("studentId", studentID)
	form.Set("teacherId", teacherID)
	form.Set("date", entry.Date)
	form.Set("status", entry.Status)

	if entry.Remarks != "" {
		form.Set("remarks", entry.Remarks)
	}

	if entry.Description != "" {
		form.Set("description", entry.Description)
	}

	return a.client.fetchRecord(ctx, &http.Request{
		Description: "POST attendance",
		Method:      "POST",
		URI:         "/attendance",
		Form:        form,
	}, opts.Normalize())
}
