package report

import "fmt"

// KeyKind tells which kind of name a ProjectBucket is keyed by.
type KeyKind string

const (
	// KeyOriginGroup buckets records by the repository they came from.
	KeyOriginGroup KeyKind = "origin_group"
	// KeyProject buckets time entries by tracked project.
	KeyProject KeyKind = "project"
)

// BucketKey keeps repository and project names in separate keyspaces, so a
// repository and a project that share a name never merge.
type BucketKey struct {
	Kind KeyKind `json:"kind"`
	Name string  `json:"name"`
}

func OriginGroup(name string) BucketKey { return BucketKey{Kind: KeyOriginGroup, Name: name} }

func ProjectName(name string) BucketKey { return BucketKey{Kind: KeyProject, Name: name} }

func (k BucketKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Name)
}

// DailyBucket accumulates one UTC calendar date.
type DailyBucket struct {
	Date        string   `json:"date"`
	RecordCount int      `json:"record_count"`
	EntryCount  int      `json:"entry_count"`
	Hours       float64  `json:"hours"`
	Projects    []string `json:"projects,omitempty"`
}

// Empty reports whether nothing happened on the date.
func (b DailyBucket) Empty() bool {
	return b.RecordCount == 0 && b.EntryCount == 0
}

// ProjectBucket accumulates one repository or one project.
type ProjectBucket struct {
	Key         BucketKey `json:"key"`
	RecordCount int       `json:"record_count"`
	EntryCount  int       `json:"entry_count"`
	Hours       float64   `json:"hours"`
}

// WarningKind tags a Warning.
type WarningKind string

const (
	WarningNoRecords     WarningKind = "no_records"
	WarningNoTimeEntries WarningKind = "no_time_entries"
	WarningPartialSource WarningKind = "partial_source"
)

// Warning is a non-fatal note attached to a successful run.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Source  string      `json:"source,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Kind == WarningPartialSource {
		return fmt.Sprintf("%s unavailable: %s", w.Source, w.Message)
	}
	return w.Message
}

// IntegratedData is the merged output of both sources for one run.
type IntegratedData struct {
	DateRange      DateRange        `json:"date_range"`
	Records        []ActivityRecord `json:"records"`
	TimeEntries    []TimeEntry      `json:"time_entries"`
	DailyBuckets   []DailyBucket    `json:"daily_buckets"`
	ProjectBuckets []ProjectBucket  `json:"project_buckets"`
	Warnings       []Warning        `json:"warnings"`
}

// TotalHours sums all time entries.
func (d *IntegratedData) TotalHours() float64 {
	var total float64
	for _, e := range d.TimeEntries {
		total += e.Hours()
	}
	return total
}

// DistinctGroups counts distinct repositories among the records.
func (d *IntegratedData) DistinctGroups() int {
	seen := make(map[string]struct{})
	for _, r := range d.Records {
		seen[r.Group] = struct{}{}
	}
	return len(seen)
}

// DistinctProjects counts distinct non-empty project names among the time entries.
func (d *IntegratedData) DistinctProjects() int {
	seen := make(map[string]struct{})
	for _, e := range d.TimeEntries {
		if e.Project != "" {
			seen[e.Project] = struct{}{}
		}
	}
	return len(seen)
}
