package syncclient

import (
	"testing"
	"time"

	"github.com/example/timetracker/internal/testfixtures"
)

func TestElapsedAtProjectsRunningDelta(t *testing.T) {
	syncedAt := testfixtures.ReferenceTime()
	ref := ServerSyncRef{BaseElapsedMs: 4000, SyncedAt: syncedAt}

	if got := elapsedAt(ref, StatusRunning, syncedAt.Add(1500*time.Millisecond)); got != 5500 {
		t.Fatalf("expected 5500ms, got %d", got)
	}
}

func TestElapsedAtIgnoresClockWhenNotRunning(t *testing.T) {
	syncedAt := testfixtures.ReferenceTime()
	ref := ServerSyncRef{BaseElapsedMs: 4000, SyncedAt: syncedAt}

	for _, status := range []Status{StatusPaused, StatusIdle} {
		if got := elapsedAt(ref, status, syncedAt.Add(time.Hour)); got != 4000 {
			t.Fatalf("status %s: expected frozen 4000ms, got %d", status, got)
		}
	}
}

func TestElapsedAtClampsBackwardClock(t *testing.T) {
	syncedAt := testfixtures.ReferenceTime()
	ref := ServerSyncRef{BaseElapsedMs: 4000, SyncedAt: syncedAt}

	if got := elapsedAt(ref, StatusRunning, syncedAt.Add(-time.Minute)); got != 4000 {
		t.Fatalf("backward clock must clamp to the baseline, got %d", got)
	}
}
