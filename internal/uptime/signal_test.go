package uptime

import (
	"testing"
	"time"

	"storewatch/internal/storage"
)

func poll(storeID, status string, ts time.Time) storage.Poll {
	return storage.Poll{StoreID: storeID, Status: status, Timestamp: ts}
}

func TestBuildSegmentsEmpty(t *testing.T) {
	from := utc(2023, time.January, 18, 12, 0, 0)
	to := utc(2023, time.January, 25, 12, 0, 0)

	segments, noPolls := BuildSegments(nil, from, to)
	if !noPolls {
		t.Error("noPolls = false, want true")
	}
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	seg := segments[0]
	if seg.Status != storage.StatusActive {
		t.Errorf("invented segment status = %q, want active", seg.Status)
	}
	if !seg.Start.Equal(from) || !seg.End.Equal(to) {
		t.Errorf("segment = [%v, %v), want [%v, %v)", seg.Start, seg.End, from, to)
	}
}

func TestBuildSegmentsCarryBack(t *testing.T) {
	from := utc(2023, time.January, 18, 12, 0, 0)
	to := utc(2023, time.January, 25, 12, 0, 0)
	mid := utc(2023, time.January, 22, 0, 0, 0)

	segments, noPolls := BuildSegments([]storage.Poll{
		poll("1", storage.StatusInactive, mid),
	}, from, to)
	if noPolls {
		t.Error("noPolls = true with one poll")
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	// The first observed status is carried back over the unobserved prefix.
	if segments[0].Status != storage.StatusInactive || segments[1].Status != storage.StatusInactive {
		t.Errorf("statuses = %q, %q; want inactive both ways", segments[0].Status, segments[1].Status)
	}
	if !segments[0].Start.Equal(from) || !segments[0].End.Equal(mid) {
		t.Errorf("prefix = [%v, %v)", segments[0].Start, segments[0].End)
	}
	if !segments[1].Start.Equal(mid) || !segments[1].End.Equal(to) {
		t.Errorf("tail = [%v, %v)", segments[1].Start, segments[1].End)
	}
}

func TestBuildSegmentsAlternating(t *testing.T) {
	from := utc(2023, time.January, 25, 0, 0, 0)
	to := utc(2023, time.January, 25, 4, 0, 0)

	segments, _ := BuildSegments([]storage.Poll{
		poll("1", storage.StatusActive, utc(2023, time.January, 25, 1, 0, 0)),
		poll("1", storage.StatusInactive, utc(2023, time.January, 25, 2, 0, 0)),
		poll("1", storage.StatusActive, utc(2023, time.January, 25, 3, 0, 0)),
	}, from, to)

	want := []struct {
		status string
		length time.Duration
	}{
		{storage.StatusActive, time.Hour},   // carry-back prefix
		{storage.StatusActive, time.Hour},   // 01:00-02:00
		{storage.StatusInactive, time.Hour}, // 02:00-03:00
		{storage.StatusActive, time.Hour},   // 03:00-04:00 tail
	}
	if len(segments) != len(want) {
		t.Fatalf("got %d segments, want %d", len(segments), len(want))
	}
	for i, w := range want {
		if segments[i].Status != w.status {
			t.Errorf("segment %d status = %q, want %q", i, segments[i].Status, w.status)
		}
		if d := segments[i].End.Sub(segments[i].Start); d != w.length {
			t.Errorf("segment %d length = %v, want %v", i, d, w.length)
		}
	}

	// Partition invariant: contiguous cover of [from, to).
	if !segments[0].Start.Equal(from) {
		t.Error("first segment does not start at the window")
	}
	if !segments[len(segments)-1].End.Equal(to) {
		t.Error("last segment does not end at the window")
	}
	for i := 1; i < len(segments); i++ {
		if !segments[i].Start.Equal(segments[i-1].End) {
			t.Errorf("gap/overlap between segments %d and %d", i-1, i)
		}
	}
}

func TestBuildSegmentsDuplicatesAndBounds(t *testing.T) {
	from := utc(2023, time.January, 25, 0, 0, 0)
	to := utc(2023, time.January, 25, 2, 0, 0)
	at := utc(2023, time.January, 25, 1, 0, 0)

	t.Run("duplicate keeps first", func(t *testing.T) {
		segments, _ := BuildSegments([]storage.Poll{
			poll("1", storage.StatusInactive, at),
			poll("1", storage.StatusActive, at),
		}, from, to)
		if len(segments) != 2 {
			t.Fatalf("got %d segments, want 2", len(segments))
		}
		if segments[1].Status != storage.StatusInactive {
			t.Errorf("tail status = %q, want first poll's inactive", segments[1].Status)
		}
	})

	t.Run("poll at window start", func(t *testing.T) {
		segments, _ := BuildSegments([]storage.Poll{
			poll("1", storage.StatusInactive, from),
		}, from, to)
		if len(segments) != 1 {
			t.Fatalf("got %d segments, want 1 (empty prefix dropped)", len(segments))
		}
		if !segments[0].Start.Equal(from) || !segments[0].End.Equal(to) {
			t.Errorf("segment = [%v, %v)", segments[0].Start, segments[0].End)
		}
	})

	t.Run("poll at window end", func(t *testing.T) {
		segments, _ := BuildSegments([]storage.Poll{
			poll("1", storage.StatusActive, at),
			poll("1", storage.StatusInactive, to),
		}, from, to)
		// The poll at the inclusive read bound owns a zero-length tail, so
		// only the carry-back prefix and the active middle remain.
		if len(segments) != 2 {
			t.Fatalf("got %d segments, want 2", len(segments))
		}
		if segments[1].Status != storage.StatusActive {
			t.Errorf("last segment status = %q, want active", segments[1].Status)
		}
		if !segments[1].End.Equal(to) {
			t.Errorf("last segment end = %v, want %v", segments[1].End, to)
		}
	})

	t.Run("degenerate range", func(t *testing.T) {
		segments, noPolls := BuildSegments(nil, to, from)
		if segments != nil || noPolls {
			t.Errorf("got %v, %v; want nil, false", segments, noPolls)
		}
	})
}
