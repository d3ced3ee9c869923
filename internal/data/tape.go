package data

import (
	"sort"
	"time"

	"sequential-trader/internal/model"
)

// Tape is the append-only price history of one market plus the ranges already
// requested from its source. Points stay sorted ascending by time with at most
// one point per timestamp.
type Tape struct {
	points []model.TapePoint
	ranges []model.FetchedRange
}

// Merge adds points, replacing any existing point at the same timestamp.
func (t *Tape) Merge(points []model.TapePoint) {
	if len(points) == 0 {
		return
	}
	byTime := make(map[int64]model.TapePoint, len(t.points)+len(points))
	for _, p := range t.points {
		byTime[p.T.UnixNano()] = p
	}
	for _, p := range points {
		byTime[p.T.UnixNano()] = p
	}

	merged := make([]model.TapePoint, 0, len(byTime))
	for _, p := range byTime {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].T.Before(merged[j].T) })
	t.points = merged
}

// MarkFetched records that [start, end] was requested successfully.
func (t *Tape) MarkFetched(start, end time.Time) {
	t.ranges = append(t.ranges, model.FetchedRange{Start: start, End: end})
}

func (t *Tape) Covered(ts time.Time) bool {
	for _, r := range t.ranges {
		if r.Contains(ts) {
			return true
		}
	}
	return false
}

// AsOf returns every point with t <= ts. The slice aliases the tape.
func (t *Tape) AsOf(ts time.Time) []model.TapePoint {
	n := sort.Search(len(t.points), func(i int) bool { return t.points[i].T.After(ts) })
	return t.points[:n]
}

func (t *Tape) Len() int { return len(t.points) }

func (t *Tape) Ranges() []model.FetchedRange {
	out := make([]model.FetchedRange, len(t.ranges))
	copy(out, t.ranges)
	return out
}
