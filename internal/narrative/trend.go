package narrative

import (
	"sort"

	"github.com/Afrawles/weekreflect/internal/report"
)

// BuildTrend turns project buckets into percentage shares of total activity,
// where a bucket's activity is its hours plus its record count. It returns
// nil when there was no activity at all.
func BuildTrend(buckets []report.ProjectBucket) []TrendItem {
	var total float64
	for _, b := range buckets {
		total += activity(b)
	}
	if total == 0 {
		return nil
	}

	var out []TrendItem
	for _, b := range buckets {
		a := activity(b)
		if a == 0 {
			continue
		}
		out = append(out, TrendItem{Key: b.Key, Percentage: a / total * 100})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percentage > out[j].Percentage
	})
	return out
}

func activity(b report.ProjectBucket) float64 {
	return b.Hours + float64(b.RecordCount)
}
