package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// semesterIDField is the synthetic field the section cache carries so
// cached sections from different semesters stay distinguishable. The
// API itself returns a section's semester under smsAcademicSemesterId
// on by-id reads only.
const semesterIDField = "semesterId"

// SectionsClient implements sisapi.SectionsClient against /sections.
type SectionsClient struct {
	client *Client
}

func (s *SectionsClient) listRequest(semesterID string) *http.Request {
	params := url.Values{}
	if semesterID != "" {
		params.Set("semesterId", semesterID)
	}

	return &http.Request{
		Description: "GET sections",
		Method:      "GET",
		URI:         "/sections",
		Params:      params,
	}
}

func (s *SectionsClient) List(ctx context.Context, query *sisapi.SectionQuery, opts *sisapi.FetchOptions) ([]sisapi.Record, error) {
	q := sisapi.SectionQuery{}
	if query != nil {
		q = *query
	}

	o := opts.Normalize()

	switch {
	case q.SemesterID != "":
		semesterID, err := sisapi.CleanID(q.SemesterID)
		if err != nil {
			return nil, err
		}

		return s.listForSemester(ctx, semesterID, o)
	case q.AllSemesters:
		return s.listAllSemesters(ctx, o)
	case q.IncludeInactive:
		s.warnOnMissingSemesterCoverage()

		return s.client.listCached(ctx, s.client.sectionCache, o, s.listRequest(""))
	default:
		activeID, err := s.client.Semesters().ActiveID(ctx)
		if err != nil {
			return nil, err
		}

		return s.listForSemester(ctx, activeID, o)
	}
}

// listForSemester serves one semester's sections, tagging every fetched
// record with its semester so the shared cache stays partitionable.
func (s *SectionsClient) listForSemester(ctx context.Context, semesterID string, o sisapi.FetchOptions) ([]sisapi.Record, error) {
	o = o.WithFilter(sisapi.Filter{semesterIDField: semesterID})

	if !needsFetch(s.client.sectionCache, o) {
		return s.client.sectionCache.List(o.Filter), nil
	}

	records, err := s.client.fetchRecords(ctx, s.listRequest(semesterID), o)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		record[semesterIDField] = semesterID
	}

	err = s.client.sectionCache.Add(records...)
	if err != nil {
		return nil, err
	}

	return s.client.sectionCache.List(o.Filter), nil
}

// listAllSemesters walks every known semester and merges the results.
func (s *SectionsClient) listAllSemesters(ctx context.Context, o sisapi.FetchOptions) ([]sisapi.Record, error) {
	semesters, err := s.client.Semesters().List(ctx, nil)
	if err != nil {
		return nil, err
	}

	idKey := s.client.semesterCache.IDKey()

	for _, semester := range semesters {
		semesterID, ok := semester.ID(idKey)
		if !ok {
			continue
		}

		_, err = s.listForSemester(ctx, semesterID, o)
		if err != nil {
			return nil, err
		}
	}

	return s.client.sectionCache.List(o.Filter), nil
}

func (s *SectionsClient) ListByID(ctx context.Context, query *sisapi.SectionQuery, opts *sisapi.FetchOptions) (map[string]sisapi.Record, error) {
	records, err := s.List(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	return rekeyByID(records, s.client.sectionCache.IDKey()), nil
}

func (s *SectionsClient) Get(ctx context.Context, sectionID string, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(sectionID)
	if err != nil {
		return nil, err
	}

	o := opts.Normalize()

	if record, ok := cacheServes(s.client.sectionCache, o, id); ok {
		return record, nil
	}

	record, err := s.client.fetchRecord(ctx, &http.Request{
		Description: "GET section",
		Method:      "GET",
		URI:         "/sections/" + id,
	}, o)
	if err != nil {
		return nil, err
	}

	recordID, ok := record.ID(s.client.sectionCache.IDKey())
	if !ok {
		return nil, fmt.Errorf("%w: section %q", sisapi.ErrNotFound, id)
	}

	if semesterID := record.String("smsAcademicSemesterId"); semesterID != "" {
		record[semesterIDField] = semesterID
	}

	err = s.client.sectionCache.Add(record)
	if err != nil {
		return nil, err
	}

	cached, _ := s.client.sectionCache.Get(recordID)

	return cached, nil
}

// Match finds the active-semester section corresponding to the source
// section. Sections keep their names across semesters while their ids
// change, so candidates are gathered by sectionName and narrowed by
// sectionCode, then class, then the teacher list until one remains.
func (s *SectionsClient) Match(ctx context.Context, sourceSectionID string) (sisapi.Record, error) {
	sourceID, err := sisapi.CleanID(sourceSectionID)
	if err != nil {
		return nil, err
	}

	source, err := s.Get(ctx, sourceID, nil)
	if err != nil {
		return nil, err
	}

	name := source.String("sectionName")
	if name == "" {
		return nil, fmt.Errorf("%w: section %s has no name to match on", sisapi.ErrNotFound, sourceID)
	}

	current, err := s.List(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	idKey := s.client.sectionCache.IDKey()
	candidates := make([]sisapi.Record, 0, len(current))

	for _, candidate := range current {
		if id, ok := candidate.ID(idKey); ok && id == sourceID {
			continue
		}

		if candidate.String("sectionName") == name {
			candidates = append(candidates, candidate)
		}
	}

	for _, field := range []string{"sectionCode", "classId"} {
		if len(candidates) <= 1 {
			break
		}

		candidates = narrowByField(candidates, field, source.String(field))
	}

	if len(candidates) > 1 {
		candidates = narrowByTeachers(candidates, source)
	}

	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: no current section named %q", sisapi.ErrNotFound, name)
	case 1:
		return candidates[0], nil
	default:
		return nil, fmt.Errorf("%w: %d current sections named %q", sisapi.ErrMultipleMatches, len(candidates), name)
	}
}

// narrowByField keeps candidates whose field equals the source's value.
// A field that discriminates nothing, or is empty on the source, keeps
// the pool unchanged.
func narrowByField(candidates []sisapi.Record, field, want string) []sisapi.Record {
	if want == "" {
		return candidates
	}

	narrowed := make([]sisapi.Record, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate.String(field) == want {
			narrowed = append(narrowed, candidate)
		}
	}

	if len(narrowed) == 0 {
		return candidates
	}

	return narrowed
}

// narrowByTeachers keeps candidates taught by exactly the source's
// teachers.
func narrowByTeachers(candidates []sisapi.Record, source sisapi.Record) []sisapi.Record {
	want := sectionIDList(source["teacherIds"])
	if len(want) == 0 {
		return candidates
	}

	narrowed := make([]sisapi.Record, 0, len(candidates))

	for _, candidate := range candidates {
		if sameIDSet(want, sectionIDList(candidate["teacherIds"])) {
			narrowed = append(narrowed, candidate)
		}
	}

	if len(narrowed) == 0 {
		return candidates
	}

	return narrowed
}

// sameIDSet compares two id lists as sets.
func sameIDSet(first, second []string) bool {
	if len(first) != len(second) {
		return false
	}

	seen := make(map[string]struct{}, len(first))
	for _, id := range first {
		seen[id] = struct{}{}
	}

	for _, id := range second {
		if _, ok := seen[id]; !ok {
			return false
		}
	}

	return true
}

func (s *SectionsClient) Create(ctx context.Context, req *sisapi.SectionCreateRequest, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	if req == nil || req.SectionName == "" {
		return nil, &sisapi.ValidationError{Field: "sectionName", Reason: "must not be empty"}
	}

	teacherIDs, err := cleanIDs("teacherIds", req.TeacherIDs)
	if err != nil {
		return nil, err
	}

	classID, err := sisapi.CleanID(req.ClassID)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("sectionName", req.SectionName)
	form.Set("sectionCode", req.SectionCode)
	form.Set("classId", classID)
	form.Set("teacherIds", strings.Join(teacherIDs, ","))
	form.Set("creditHours", strconv.FormatFloat(req.CreditHours, 'f', -1, 64))

	record, err := s.client.fetchRecord(ctx, &http.Request{
		Description: "POST section",
		Method:      "POST",
		URI:         "/sections",
		Form:        form,
	}, opts.Normalize())
	if err != nil {
		return nil, err
	}

	if semesterID := record.String("smsAcademicSemesterId"); semesterID != "" {
		record[semesterIDField] = semesterID
	}

	if _, ok := record.ID(s.client.sectionCache.IDKey()); ok {
		err = s.client.sectionCache.Add(record)
		if err != nil {
			return nil, err
		}
	}

	return record, nil
}

func (s *SectionsClient) Update(ctx context.Context, sectionID string, changes sisapi.Record, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	id, err := sisapi.CleanID(sectionID)
	if err != nil {
		return nil, err
	}

	if len(changes) == 0 {
		return nil, &sisapi.ValidationError{Field: "changes", Reason: "must not be empty"}
	}

	form := url.Values{}
	for field, value := range changes {
		form.Set(field, fmt.Sprint(value))
	}

	record, err := s.client.fetchRecord(ctx, &http.Request{
		Description: "PUT section",
		Method:      "PUT",
		URI:         "/sections/" + id,
		Form:        form,
	}, opts.Normalize())
	if err != nil {
		return nil, err
	}

	// The cached copy is stale after a write; drop it rather than
	// guessing at the merged server-side state.
	s.client.sectionCache.Invalidate(id)

	if _, ok := record.ID(s.client.sectionCache.IDKey()); ok {
		err = s.client.sectionCache.Add(record)
		if err != nil {
			return nil, err
		}
	}

	return record, nil
}

func (s *SectionsClient) Delete(ctx context.Context, sectionID string, deleteEnrollment bool, opts *sisapi.FetchOptions) error {
	id, err := sisapi.CleanID(sectionID)
	if err != nil {
		return err
	}

	params := url.Values{}
	if deleteEnrollment {
		params.Set("deleteEnrollment", "true")
	}

	req := &http.Request{
		Description: "DELETE section",
		Method:      "DELETE",
		URI:         "/sections/" + id,
		Params:      params,
	}

	o := opts.Normalize()
	applyOptions(req, o)

	resp, err := s.client.do(ctx, req)
	if err != nil {
		return err
	}

	err = s.client.requireSuccess(req, resp)
	if err != nil {
		return err
	}

	s.client.sectionCache.Invalidate(id)
	s.client.enrollmentCache.Invalidate(id)

	return nil
}

// warnOnMissingSemesterCoverage flags a cache populated by an older
// code path that never tagged sections with their semester. Such a
// cache cannot answer semester-scoped listings correctly.
func (s *SectionsClient) warnOnMissingSemesterCoverage() {
	if s.client.sectionCache.Len() == 0 {
		return
	}

	if s.client.sectionCache.HasFields(semesterIDField) {
		return
	}

	s.client.logger.Warn("Cached sections carry no semester id, so semester-scoped listings may be incomplete", map[string]interface{}{
		"cached": s.client.sectionCache.Len(),
	})
}
