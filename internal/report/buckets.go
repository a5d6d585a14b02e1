package report

import "sort"

// UnassignedProject names the bucket for time entries tracked without a project.
const UnassignedProject = "No project"

// BuildDailyBuckets seeds one bucket per date of r, accumulates every record
// and entry on its own date, then drops the dates that stayed empty. The
// result is sorted by date.
func BuildDailyBuckets(r DateRange, records []ActivityRecord, entries []TimeEntry) []DailyBucket {
	buckets := make(map[string]*DailyBucket)
	projects := make(map[string]map[string]struct{})
	for _, day := range r.Days() {
		buckets[day] = &DailyBucket{Date: day}
		projects[day] = make(map[string]struct{})
	}

	// Records that fall outside the seeded range still get a bucket rather
	// than being silently lost.
	bucketFor := func(day string) *DailyBucket {
		b, ok := buckets[day]
		if !ok {
			b = &DailyBucket{Date: day}
			buckets[day] = b
			projects[day] = make(map[string]struct{})
		}
		return b
	}

	for _, rec := range records {
		day := rec.Date()
		bucketFor(day).RecordCount++
		if rec.Group != "" {
			projects[day][rec.Group] = struct{}{}
		}
	}
	for _, e := range entries {
		day := e.Date()
		b := bucketFor(day)
		b.EntryCount++
		b.Hours += e.Hours()
		projects[day][projectOrUnassigned(e.Project)] = struct{}{}
	}

	out := make([]DailyBucket, 0, len(buckets))
	for day, b := range buckets {
		if b.Empty() {
			continue
		}
		for name := range projects[day] {
			b.Projects = append(b.Projects, name)
		}
		sort.Strings(b.Projects)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// BuildProjectBuckets groups records by repository and entries by project.
// Buckets are created on first reference and sorted by hours, then record
// count, then key.
func BuildProjectBuckets(records []ActivityRecord, entries []TimeEntry) []ProjectBucket {
	buckets := make(map[BucketKey]*ProjectBucket)
	get := func(k BucketKey) *ProjectBucket {
		b, ok := buckets[k]
		if !ok {
			b = &ProjectBucket{Key: k}
			buckets[k] = b
		}
		return b
	}

	for _, rec := range records {
		get(OriginGroup(rec.Group)).RecordCount++
	}
	for _, e := range entries {
		b := get(ProjectName(projectOrUnassigned(e.Project)))
		b.EntryCount++
		b.Hours += e.Hours()
	}

	out := make([]ProjectBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hours != out[j].Hours {
			return out[i].Hours > out[j].Hours
		}
		if out[i].RecordCount != out[j].RecordCount {
			return out[i].RecordCount > out[j].RecordCount
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

func projectOrUnassigned(name string) string {
	if name == "" {
		return UnassignedProject
	}
	return name
}
