package analysis

import (
	"sort"
)

type RankedRun struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
	Summary
}

// Rank sorts named run summaries by total return, best first. Ties go to the
// smaller drawdown, then to the name.
func Rank(byName map[string]Summary) []RankedRun {
	out := make([]RankedRun, 0, len(byName))
	for name, s := range byName {
		out = append(out, RankedRun{Name: name, Summary: s})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalReturn != b.TotalReturn {
			return a.TotalReturn > b.TotalReturn
		}
		if a.MaxDrawdown != b.MaxDrawdown {
			return a.MaxDrawdown < b.MaxDrawdown
		}
		return a.Name < b.Name
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
