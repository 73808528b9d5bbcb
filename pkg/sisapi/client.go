package sisapi

import (
	"context"
	"time"
)

// Server names accepted in Config.Server.
const (
	ServerLive   = "live"
	ServerBackup = "backup"
	ServerLocal  = "local"
)

// RosterClients provides access to people-related resource clients.
type RosterClients interface {
	Students() StudentsClient
	Teachers() TeachersClient
	Parents() ParentsClient
}

// SchedulingClients provides access to term and scheduling clients.
type SchedulingClients interface {
	Semesters() SemestersClient
	Classes() ClassesClient
	Sections() SectionsClient
	Enrollments() EnrollmentsClient
}

// GradingClients provides access to assessment resource clients.
type GradingClients interface {
	Assignments() AssignmentsClient
	Grades() GradesClient
	ReportCards() ReportCardsClient
	Transcripts() TranscriptsClient
}

// StudentLifeClients provides access to record-keeping clients.
type StudentLifeClients interface {
	Attendance() AttendanceClient
	Fees() FeesClient
	Incidents() IncidentsClient
}

// Client is the full school-management API surface.
type Client interface {
	RosterClients
	SchedulingClients
	GradingClients
	StudentLifeClients

	// SchoolCode returns the school this client is bound to.
	SchoolCode() string
}

// SemestersClient accesses /semesters.
type SemestersClient interface {
	List(ctx context.Context, opts *FetchOptions) ([]Record, error)
	ListByID(ctx context.Context, opts *FetchOptions) (map[string]Record, error)
	Get(ctx context.Context, semesterID string, opts *FetchOptions) (Record, error)
	Active(ctx context.Context) (Record, error)
	ActiveID(ctx context.Context) (string, error)
	ActiveYearID(ctx context.Context) (string, error)
	ForYear(ctx context.Context, yearID string) ([]Record, error)
}

// ClassesClient accesses /classes. The endpoint only serves classes
// from the current semester.
type ClassesClient interface {
	List(ctx context.Context, opts *FetchOptions) ([]Record, error)
	ListByID(ctx context.Context, opts *FetchOptions) (map[string]Record, error)
	Get(ctx context.Context, classID string, opts *FetchOptions) (Record, error)
	// Match finds the current-semester class whose name matches the
	// named source class, or ErrNotFound.
	Match(ctx context.Context, sourceClassID string) (Record, error)
}

// TeachersClient accesses /teachers.
type TeachersClient interface {
	List(ctx context.Context, opts *FetchOptions) ([]Record, error)
	ListByID(ctx context.Context, opts *FetchOptions) (map[string]Record, error)
	Get(ctx context.Context, teacherID string, opts *FetchOptions) (Record, error)
}

// ParentsClient accesses /parents.
type ParentsClient interface {
	List(ctx context.Context, opts *FetchOptions) ([]Record, error)
	ListByID(ctx context.Context, opts *FetchOptions) (map[string]Record, error)
	Get(ctx context.Context, parentID string, opts *FetchOptions) (Record, error)
}

// StudentQuery narrows a student listing. Listings that include deleted
// or has-left students always bypass the cache.
type StudentQuery struct {
	Search                  string
	ShowDeleted             bool
	ShowHasLeft             bool
	IgnoreDeletedDuplicates bool
}

// StudentsClient accesses /students.
type StudentsClient interface {
	List(ctx context.Context, query *StudentQuery, opts *FetchOptions) ([]Record, error)
	ListByID(ctx context.Context, query *StudentQuery, opts *FetchOptions) (map[string]Record, error)
	Get(ctx context.Context, studentID string, opts *FetchOptions) (Record, error)
	// ByName returns every enrolled student whose fullName contains name.
	ByName(ctx context.Context, name string, opts *FetchOptions) ([]Record, error)
}

// SectionQuery narrows a section listing.
type SectionQuery struct {
	// SemesterID limits the listing to one semester.
	SemesterID string
	// AllSemesters fetches sections for every known semester.
	// SemesterID takes priority.
	AllSemesters bool
	// IncludeInactive returns cached sections from all semesters
	// instead of the active one only.
	IncludeInactive bool
}

// SectionCreateRequest creates a new section. TeacherIDs must be a
// non-empty list; scalars are rejected at the boundary.
type SectionCreateRequest struct {
	SectionName string
	SectionCode string
	ClassID     string
	TeacherIDs  []string
	CreditHours float64
}

// SectionsClient accesses /sections.
type SectionsClient interface {
	List(ctx context.Context, query *SectionQuery, opts *FetchOptions) ([]Record, error)
	ListByID(ctx context.Context, query *SectionQuery, opts *FetchOptions) (map[string]Record, error)
	Get(ctx context.Context, sectionID string, opts *FetchOptions) (Record, error)
	// Match finds the active-semester section corresponding to the
	// named source section, narrowing name matches by section code,
	// class and teachers. More than one surviving candidate is
	// ErrMultipleMatches.
	Match(ctx context.Context, sourceSectionID string) (Record, error)
	Create(ctx context.Context, req *SectionCreateRequest, opts *FetchOptions) (Record, error)
	Update(ctx context.Context, sectionID string, changes Record, opts *FetchOptions) (Record, error)
	Delete(ctx context.Context, sectionID string, deleteEnrollment bool, opts *FetchOptions) error
}

// EnrollmentsClient reads and mutates section enrollment. Enrollment
// for the active semester is derived from the /students endpoint; the
// per-section endpoint is the fallback for non-active semesters.
type EnrollmentsClient interface {
	BySection(ctx context.Context, opts *FetchOptions) ([]Record, error)
	Section(ctx context.Context, sectionID string, opts *FetchOptions) (Record, error)
	ByStudent(ctx context.Context, opts *FetchOptions) (map[string][]string, error)
	Student(ctx context.Context, studentID string, opts *FetchOptions) ([]string, error)
	Enroll(ctx context.Context, sectionID string, studentIDs []string, opts *FetchOptions) error
	Unenroll(ctx context.Context, sectionID string, studentIDs []string, opts *FetchOptions) error
	UnenrollAll(ctx context.Context, sectionID string, opts *FetchOptions) error
	// EnrollmentMatches reports whether two sections have identical
	// student enrollment.
	EnrollmentMatches(ctx context.Context, sectionID, otherSectionID string) (bool, error)
}

// AssignmentQuery narrows an assignment listing.
type AssignmentQuery struct {
	IncludeFinalGrades bool
	// IncludeGrades attaches each assignment's grades under a "grades"
	// field.
	IncludeGrades bool
}

// AssignmentCreateRequest creates an assignment in a section.
type AssignmentCreateRequest struct {
	Name               string
	Date               string
	TotalMarksPossible float64
	ColumnCategoryID   string
	GradingScaleID     string
}

// AssignmentsClient accesses section assignments.
type AssignmentsClient interface {
	List(ctx context.Context, sectionID string, query *AssignmentQuery, opts *FetchOptions) ([]Record, error)
	Get(ctx context.Context, assignmentID string, opts *FetchOptions) (Record, error)
	Create(ctx context.Context, sectionID string, req *AssignmentCreateRequest, opts *FetchOptions) (Record, error)
	Delete(ctx context.Context, sectionID, assignmentID string, opts *FetchOptions) error
	// CategoryIDs maps grade category names to ids, derived from the
	// section's assignments.
	CategoryIDs(ctx context.Context, sectionID string) (map[string]string, error)
}

// GradeQuery narrows a grade listing. SectionID is required.
type GradeQuery struct {
	SectionID    string
	AssignmentID string
	StudentID    string
}

// GradesClient accesses /grades. Grades carry no API-assigned id, so
// cached grades use a synthetic composite identifier.
type GradesClient interface {
	List(ctx context.Context, query *GradeQuery, opts *FetchOptions) ([]Record, error)
	Post(ctx context.Context, sectionID, assignmentID string, grades []Record, opts *FetchOptions) (Record, error)
}

// SectionLevelData is keyed by section id; each value holds the
// identifier/value pairs to write at section level.
type SectionLevelData map[string]map[string]interface{}

// ReportCardsClient accesses report cycles and report cards.
type ReportCardsClient interface {
	Cycles(ctx context.Context, opts *FetchOptions) ([]Record, error)
	ActiveCycle(ctx context.Context) (Record, error)
	Get(ctx context.Context, studentID, reportCycleID string, opts *FetchOptions) (Record, error)
	PostSectionLevel(ctx context.Context, studentID, reportCycleID string, data SectionLevelData, opts *FetchOptions) (Record, error)
}

// TranscriptsClient accesses /transcripts.
type TranscriptsClient interface {
	Get(ctx context.Context, studentID string, opts *FetchOptions) (Record, error)
	PostSectionLevel(ctx context.Context, studentID string, data SectionLevelData, opts *FetchOptions) (Record, error)
}

// AttendanceEntry is one attendance mark. Status codes: P (present),
// A (absent), T (tardy), EA (excused absent), ET (excused tardy).
type AttendanceEntry struct {
	StudentID   string
	TeacherID   string
	Date        string
	Status      string
	Remarks     string
	Description string
}

// AttendanceClient posts attendance marks.
type AttendanceClient interface {
	Post(ctx context.Context, entry *AttendanceEntry, opts *FetchOptions) (Record, error)
}

// FeeEntry is one charge or payment on a student account. Amount is a
// finance string such as "$100.07"; a negative amount posts a payment.
type FeeEntry struct {
	StudentID   string
	CategoryID  string
	Amount      string
	Date        string
	Description string
}

// FeesClient posts fee-tracking entries.
type FeesClient interface {
	Post(ctx context.Context, entry *FeeEntry, opts *FetchOptions) (Record, error)
}

// IncidentEntry is one discipline incident.
type IncidentEntry struct {
	StudentID     string
	TeacherID     string
	Detail        string
	Date          string
	DemeritPoints int
}

// IncidentsClient posts discipline incidents.
type IncidentsClient interface {
	Post(ctx context.Context, entry *IncidentEntry, opts *FetchOptions) (Record, error)
}

// Config configures a client. AccessKey is either a full API key in
// "schoolcode.xxxx" form, used directly and persisted to the key store
// after the first verified-successful request, or a bare schoolcode
// whose key is looked up in the store.
type Config struct {
	// Server selects the upstream server: "live", "backup" or "local".
	// Defaults to "live".
	Server string

	// Endpoint overrides the server's base URL. Mainly for tests.
	Endpoint string

	// AccessKey is the schoolcode or full API key.
	AccessKey string

	// Keys is the API key store. Defaults to an in-memory store.
	Keys KeyStore

	// Logger receives structured request/response logs. Defaults to a
	// no-op logger.
	Logger Logger

	// HTTPTimeout bounds each network call. Zero means the default.
	HTTPTimeout time.Duration

	// RetryMax is the maximum number of transport-level retries for
	// connection failures. Zero means the default.
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the retry backoff.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Debug enables verbose transport logging.
	Debug bool

	// UserAgent overrides the default User-Agent header.
	UserAgent string
}
