package ledger_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/example/timetracker/internal/ledger"
	"github.com/example/timetracker/internal/persistence"
	"github.com/example/timetracker/internal/testfixtures"
)

func TestElapsedSumsClosedAndOpenSegments(t *testing.T) {
	base := testfixtures.ReferenceTime()

	segments := []persistence.Segment{
		testfixtures.NewSegmentFixture(
			testfixtures.WithSegmentSessionID("s1"),
			testfixtures.WithSegmentStart(base),
			testfixtures.WithSegmentClosed(5*time.Second),
		).Persistence(),
		testfixtures.NewSegmentFixture(
			testfixtures.WithSegmentSessionID("s1"),
			testfixtures.WithSegmentStart(base.Add(10*time.Second)),
			testfixtures.WithSegmentClosed(3*time.Second),
		).Persistence(),
		testfixtures.NewSegmentFixture(
			testfixtures.WithSegmentSessionID("s1"),
			testfixtures.WithSegmentStart(base.Add(20*time.Second)),
		).Persistence(),
	}

	now := base.Add(22 * time.Second)
	if got := ledger.Elapsed(segments, now); got != 10000 {
		t.Fatalf("expected 10000ms, got %d", got)
	}
	if got := ledger.ClosedElapsed(segments); got != 8000 {
		t.Fatalf("expected closed total 8000ms, got %d", got)
	}
}

func TestElapsedWithNoSegments(t *testing.T) {
	if got := ledger.Elapsed(nil, testfixtures.ReferenceTime()); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestElapsedClampsNegativeIntervals(t *testing.T) {
	base := testfixtures.ReferenceTime()
	open := testfixtures.NewSegmentFixture(
		testfixtures.WithSegmentStart(base),
	).Persistence()

	// now before the open segment's start must not produce a negative total.
	if got := ledger.Elapsed([]persistence.Segment{open}, base.Add(-time.Minute)); got != 0 {
		t.Fatalf("expected 0 for clock behind start, got %d", got)
	}
}

func TestElapsedIsMonotonicWhileRunning(t *testing.T) {
	base := testfixtures.ReferenceTime()
	segments := []persistence.Segment{
		testfixtures.NewSegmentFixture(
			testfixtures.WithSegmentStart(base),
			testfixtures.WithSegmentClosed(2*time.Second),
		).Persistence(),
		testfixtures.NewSegmentFixture(
			testfixtures.WithSegmentStart(base.Add(5 * time.Second)),
		).Persistence(),
	}

	var prev int64 = -1
	for step := 0; step < 10; step++ {
		now := base.Add(5*time.Second + time.Duration(step)*700*time.Millisecond)
		got := ledger.Elapsed(segments, now)
		if got < prev {
			t.Fatalf("elapsed decreased from %d to %d at step %d", prev, got, step)
		}
		prev = got
	}
}

func TestOpenSegment(t *testing.T) {
	base := testfixtures.ReferenceTime()

	closed := testfixtures.NewSegmentFixture(
		testfixtures.WithSegmentStart(base),
		testfixtures.WithSegmentClosed(time.Second),
	).Persistence()
	open := testfixtures.NewSegmentFixture(
		testfixtures.WithSegmentStart(base.Add(2 * time.Second)),
	).Persistence()

	if _, found, err := ledger.OpenSegment([]persistence.Segment{closed}); err != nil || found {
		t.Fatalf("expected no open segment, found=%v err=%v", found, err)
	}

	got, found, err := ledger.OpenSegment([]persistence.Segment{closed, open})
	if err != nil || !found {
		t.Fatalf("expected open segment, found=%v err=%v", found, err)
	}
	if got.ID != open.ID {
		t.Fatalf("expected segment %s, got %s", open.ID, got.ID)
	}

	second := testfixtures.NewSegmentFixture(
		testfixtures.WithSegmentStart(base.Add(3 * time.Second)),
	).Persistence()
	if _, _, err := ledger.OpenSegment([]persistence.Segment{open, second}); err == nil {
		t.Fatal("expected error for two open segments")
	}
}

func TestCheckInvariants(t *testing.T) {
	base := testfixtures.ReferenceTime()

	t.Run("valid ledger", func(t *testing.T) {
		segments := []persistence.Segment{
			testfixtures.NewSegmentFixture(
				testfixtures.WithSegmentStart(base),
				testfixtures.WithSegmentClosed(5*time.Second),
			).Persistence(),
			testfixtures.NewSegmentFixture(
				testfixtures.WithSegmentStart(base.Add(8 * time.Second)),
			).Persistence(),
		}
		if err := ledger.CheckInvariants(segments); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("overlapping closed segments", func(t *testing.T) {
		segments := []persistence.Segment{
			testfixtures.NewSegmentFixture(
				testfixtures.WithSegmentStart(base),
				testfixtures.WithSegmentClosed(10*time.Second),
			).Persistence(),
			testfixtures.NewSegmentFixture(
				testfixtures.WithSegmentStart(base.Add(5*time.Second)),
				testfixtures.WithSegmentClosed(10*time.Second),
			).Persistence(),
		}
		if err := ledger.CheckInvariants(segments); err == nil {
			t.Fatal("expected overlap error")
		}
	})

	t.Run("open segment not latest", func(t *testing.T) {
		segments := []persistence.Segment{
			testfixtures.NewSegmentFixture(
				testfixtures.WithSegmentStart(base),
			).Persistence(),
			testfixtures.NewSegmentFixture(
				testfixtures.WithSegmentStart(base.Add(time.Minute)),
				testfixtures.WithSegmentClosed(time.Second),
			).Persistence(),
		}
		if err := ledger.CheckInvariants(segments); err == nil {
			t.Fatal("expected error for open segment before a closed one")
		}
	})
}

// TestElapsedAgainstRandomActionSequences replays seeded random pause/resume
// sequences and checks the calculator against independently tracked totals.
func TestElapsedAgainstRandomActionSequences(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		now := testfixtures.ReferenceTime()

		var (
			segments []persistence.Segment
			expected int64
			running  bool
			openIdx  int
		)

		steps := 5 + rng.Intn(40)
		for i := 0; i < steps; i++ {
			advance := time.Duration(1+rng.Intn(120_000)) * time.Millisecond
			if running {
				expected += advance.Milliseconds()
			}
			now = now.Add(advance)

			if running {
				end := now
				d := ledger.DurationMs(segments[openIdx].StartTime, end)
				segments[openIdx].EndTime = &end
				segments[openIdx].Duration = &d
				running = false
			} else {
				segments = append(segments, testfixtures.NewSegmentFixture(
					testfixtures.WithSegmentSessionID("s1"),
					testfixtures.WithSegmentStart(now),
				).Persistence())
				openIdx = len(segments) - 1
				running = true
			}
		}

		final := now.Add(time.Duration(rng.Intn(30_000)) * time.Millisecond)
		if running {
			expected += final.Sub(now).Milliseconds()
		}

		if got := ledger.Elapsed(segments, final); got != expected {
			t.Fatalf("seed %d: expected %dms, got %d", seed, expected, got)
		}
		if err := ledger.CheckInvariants(segments); err != nil {
			t.Fatalf("seed %d: generated ledger breaks invariants: %v", seed, err)
		}
		if running {
			open, found, err := ledger.OpenSegment(segments)
			if err != nil || !found {
				t.Fatalf("seed %d: expected one open segment, found=%v err=%v", seed, found, err)
			}
			closed := expected - final.Sub(open.StartTime).Milliseconds()
			if got := ledger.ClosedElapsed(segments); got != closed {
				t.Fatalf("seed %d: expected closed %dms, got %d", seed, closed, got)
			}
		} else if got := ledger.ClosedElapsed(segments); got != expected {
			t.Fatalf("seed %d: expected closed %dms, got %d", seed, expected, got)
		}
	}
}
