// Package ledger holds the pure elapsed-time arithmetic shared by the
// server-side procedures and the sync client. It operates on segment slices
// and an explicit "now"; it never reads a clock itself.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/timetracker/internal/persistence"
)

// Elapsed sums the durations of all closed segments plus, when an open
// segment exists, the live interval from its start to now. The result is in
// milliseconds and never negative.
func Elapsed(segments []persistence.Segment, now time.Time) int64 {
	var total int64
	for _, segment := range segments {
		if segment.EndTime != nil {
			total += durationMs(segment.StartTime, *segment.EndTime)
			continue
		}
		total += durationMs(segment.StartTime, now)
	}
	return total
}

// ClosedElapsed sums only the closed segments. This is the value persisted on
// the session row; the open segment is accounted for at read time.
func ClosedElapsed(segments []persistence.Segment) int64 {
	var total int64
	for _, segment := range segments {
		if segment.EndTime != nil {
			total += durationMs(segment.StartTime, *segment.EndTime)
		}
	}
	return total
}

// OpenSegment returns the session's open segment when exactly zero or one
// exists. More than one open segment is an invariant breach.
func OpenSegment(segments []persistence.Segment) (persistence.Segment, bool, error) {
	var open persistence.Segment
	found := false
	for _, segment := range segments {
		if segment.EndTime != nil {
			continue
		}
		if found {
			return persistence.Segment{}, false, fmt.Errorf("ledger: session %s has multiple open segments", segment.SessionID)
		}
		open = segment
		found = true
	}
	return open, found, nil
}

// CheckInvariants validates the ledger shape for a single session: at most
// one open segment and no overlapping closed intervals.
func CheckInvariants(segments []persistence.Segment) error {
	if _, _, err := OpenSegment(segments); err != nil {
		return err
	}

	ordered := make([]persistence.Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartTime.Before(ordered[j].StartTime)
	})

	for i := 1; i < len(ordered); i++ {
		prev := ordered[i-1]
		if prev.EndTime == nil {
			if i < len(ordered) {
				return fmt.Errorf("ledger: open segment %s is not the latest segment", prev.ID)
			}
			continue
		}
		if ordered[i].StartTime.Before(*prev.EndTime) {
			return fmt.Errorf("ledger: segments %s and %s overlap", prev.ID, ordered[i].ID)
		}
	}
	return nil
}

func durationMs(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
