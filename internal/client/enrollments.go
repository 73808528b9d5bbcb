package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// enrollmentListField is the /students field that carries each
// student's section membership for the active semester.
const enrollmentListField = "smsClassSubjectSetIdList"

// EnrollmentsClient implements sisapi.EnrollmentsClient. Active-semester
// enrollment is derived by inverting the per-student section list from
// /students; the per-section endpoint is the fallback for sections
// outside the active semester.
type EnrollmentsClient struct {
	client *Client
}

// BySection returns one record per section: {"id": sectionID,
// "studentIds": [...]}, cached under the section id.
func (e *EnrollmentsClient) BySection(ctx context.Context, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	o := opts.Normalize()

	if !o.DisableCache && e.client.enrollmentCache.Len() > 0 {
		return e.client.enrollmentCache.List(o.Filter), nil
	}

	byStudent, err := e.byStudent(ctx, o)
	if err != nil {
		return nil, err
	}

	bySection := make(map[string][]string)

	for studentID, sectionIDs := range byStudent {
		for _, sectionID := range sectionIDs {
			bySection[sectionID] = append(bySection[sectionID], studentID)
		}
	}

	records := make([]sisapi.Record, 0, len(bySection))
	for sectionID, studentIDs := range bySection {
		records = append(records, enrollmentRecord(sectionID, studentIDs))
	}

	err = e.client.enrollmentCache.Add(records...)
	if err != nil {
		return nil, err
	}

	return e.client.enrollmentCache.List(o.Filter), nil
}

// Section returns the enrollment record of one section. Sections
// missing from the derived active-semester view are read from
// /sectionenrollments directly.
func (e *EnrollmentsClient) Section(ctx context.Context, sectionID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(sectionID)
	if err != nil {
		return nil, err
	}

	o := opts.Normalize()

	if record, ok := cacheServes(e.client.enrollmentCache, o, id); ok {
		return record, nil
	}

	records, err := e.BySection(ctx, opts)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if recordID, ok := record.ID(e.client.enrollmentCache.IDKey()); ok && recordID == id {
			return record, nil
		}
	}

	record, err := e.client.fetchRecord(ctx, &http.Request{
		Description: "GET section enrollment",
		Method:      "GET",
		URI:         "/sectionenrollments/" + id,
	}, o)
	if err != nil {
		return nil, err
	}

	// The endpoint reports membership under "students"; normalize it
	// into the same studentIds shape as the derived records so every
	// consumer reads one field.
	studentIDs := sectionIDList(record["studentIds"])
	if len(studentIDs) == 0 {
		studentIDs = sectionIDList(record["students"])
	}

	err = e.client.enrollmentCache.Add(enrollmentRecord(id, studentIDs))
	if err != nil {
		return nil, err
	}

	cached, _ := e.client.enrollmentCache.Get(id)

	return cached, nil
}

// ByStudent returns the inverted view: student id to section id list.
func (e *EnrollmentsClient) ByStudent(ctx context.Context, opts *sisapi.FetchOptions) (map[string][]string, error) {
	return e.byStudent(ctx, opts.Normalize())
}

func (e *EnrollmentsClient) byStudent(ctx context.Context, o sisapi.FetchOptions) (map[string][]string, error) {
	fetchOpts := &sisapi.FetchOptions{
		DisableCache: o.DisableCache,
		Fields:       []string{enrollmentListField},
		Silent:       o.Silent,
		Critical:     o.Critical,
	}

	students, err := e.client.Students().List(ctx, nil, fetchOpts)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string][]string, len(students))
	idKey := e.client.studentCache.IDKey()

	for _, student := range students {
		studentID, ok := student.ID(idKey)
		if !ok {
			continue
		}

		byStudent[studentID] = sectionIDList(student[enrollmentListField])
	}

	return byStudent, nil
}

// Student returns the section ids one student is enrolled in.
func (e *EnrollmentsClient) Student(ctx context.Context, studentID string, opts *sisapi.FetchOptions) ([]string, error) {
	id, err := sisapi.CleanID(studentID)
	if err != nil {
		return nil, err
	}

	byStudent, err := e.ByStudent(ctx, opts)
	if err != nil {
		return nil, err
	}

	sectionIDs, ok := byStudent[id]
	if !ok {
		return nil, fmt.Errorf("%w: student %q", sisapi.ErrNotFound, id)
	}

	return sectionIDs, nil
}

// Enroll adds the listed students to a section. The list must be
// non-empty; a scalar caller bug upstream becomes a ValidationError
// here instead of a malformed request.
func (e *EnrollmentsClient) Enroll(ctx context.Context, sectionID string, studentIDs []string, opts *sisapi.FetchOptions) error {
	return e.mutateEnrollment(ctx, "POST", "POST section enrollment", sectionID, studentIDs, opts)
}

// Unenroll removes the listed students from a section.
func (e *EnrollmentsClient) Unenroll(ctx context.Context, sectionID string, studentIDs []string, opts *sisapi.FetchOptions) error {
	return e.mutateEnrollment(ctx, "DELETE", "DELETE section enrollment", sectionID, studentIDs, opts)
}

// UnenrollAll removes every enrolled student from a section. A section
// with no enrollment is a no-op, not an error.
func (e *EnrollmentsClient) UnenrollAll(ctx context.Context, sectionID string, opts *sisapi.FetchOptions) error {
	record, err := e.Section(ctx, sectionID, opts)
	if err != nil {
		return err
	}

	studentIDs := sectionIDList(record["studentIds"])
	if len(studentIDs) == 0 {
		return nil
	}

	return e.Unenroll(ctx, sectionID, studentIDs, opts)
}

// EnrollmentMatches reports whether two sections enroll exactly the
// same students.
func (e *EnrollmentsClient) EnrollmentMatches(ctx context.Context, sectionID, otherSectionID string) (bool, error) {
	first, err := e.Section(ctx, sectionID, nil)
	if err != nil {
		return false, err
	}

	second, err := e.Section(ctx, otherSectionID, nil)
	if err != nil {
		return false, err
	}

	return sameIDSet(sectionIDList(first["studentIds"]), sectionIDList(second["studentIds"])), nil
}

func (e *EnrollmentsClient) mutateEnrollment(ctx context.Context, method, description, sectionID string, studentIDs []string, opts *sisapi.FetchOptions) error {
	id, err := sisapi.CleanID(sectionID)
	if err != nil {
		return err
	}

	cleaned, err := cleanIDs("studentIds", studentIDs)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("studentIds", strings.Join(cleaned, ","))

	req := &http.Request{
		Description: description,
		Method:      method,
		URI:         "/sectionenrollments/" + id,
		Form:        form,
	}

	o := opts.Normalize()
	applyOptions(req, o)

	resp, err := e.client.do(ctx, req)
	if err != nil {
		return err
	}

	err = e.client.requireSuccess(req, resp)
	if err != nil {
		return err
	}

	// The derived enrollment view and the per-student lists it came
	// from are both stale after a membership write.
	e.client.enrollmentCache.Invalidate()
	e.client.studentCache.Invalidate()

	return nil
}

// enrollmentRecord builds the cached per-section enrollment record.
func enrollmentRecord(sectionID string, studentIDs []string) sisapi.Record {
	ids := make([]interface{}, 0, len(studentIDs))
	for _, id := range studentIDs {
		ids = append(ids, id)
	}

	return sisapi.Record{
		"id":         sectionID,
		"studentIds": ids,
	}
}

// sectionIDList normalizes a JSON-decoded id list field to strings.
// List items may be bare ids or record objects carrying an "id" field.
func sectionIDList(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		if typed, ok := value.([]string); ok {
			return typed
		}

		return nil
	}

	ids := make([]string, 0, len(items))

	for _, item := range items {
		if object, ok := item.(map[string]interface{}); ok {
			if id, ok := sisapi.Record(object).ID("id"); ok {
				ids = append(ids, id)
			}

			continue
		}

		id, err := sisapi.CleanID(item)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids
}
