package signaling

import (
	"testing"
	"time"
)

func newTestReaper(st *Store, now *time.Time) *Reaper {
	return NewReaper(st, nil, ReaperConfig{
		Interval:    time.Second,
		RingTimeout: time.Minute,
		Retention:   30 * time.Second,
		Clock:       func() time.Time { return *now },
	})
}

func TestReaper_TimesOutStalledRinging(t *testing.T) {
	st := NewStore()
	now := time.Unix(1700000000, 0).UTC()
	r := newTestReaper(st, &now)

	if err := st.Create(newSession("c1", "alice", "bob")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Not stale yet.
	now = now.Add(30 * time.Second)
	if timedOut, _ := r.Sweep(); timedOut != 0 {
		t.Fatalf("reaped too early")
	}

	now = now.Add(31 * time.Second)
	timedOut, _ := r.Sweep()
	if timedOut != 1 {
		t.Fatalf("expected 1 timed out session, got %d", timedOut)
	}

	s, err := st.Get("c1")
	if err != nil {
		t.Fatalf("session must stay queryable during retention: %v", err)
	}
	if s.Status != StatusEnded || s.EndReason != EndReasonTimeout {
		t.Fatalf("expected ended/timeout, got %v/%v", s.Status, s.EndReason)
	}
	if s.EndedAt.IsZero() {
		t.Fatalf("expected ended_at set")
	}
}

func TestReaper_TimesOutStalledAccepted(t *testing.T) {
	st := NewStore()
	now := time.Unix(1700000000, 0).UTC()
	r := newTestReaper(st, &now)

	s := newSession("c1", "alice", "bob")
	s.Status = StatusAccepted
	s.OfferSDP = "v=0"
	if err := st.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if timedOut, _ := r.Sweep(); timedOut != 1 {
		t.Fatalf("expected accepted session to time out")
	}
}

func TestReaper_LeavesActiveCallsAlone(t *testing.T) {
	st := NewStore()
	now := time.Unix(1700000000, 0).UTC()
	r := newTestReaper(st, &now)

	s := newSession("c1", "alice", "bob")
	s.Status = StatusInCall
	if err := st.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	now = now.Add(time.Hour)
	timedOut, evicted := r.Sweep()
	if timedOut != 0 || evicted != 0 {
		t.Fatalf("in_call session must not be reaped: %d %d", timedOut, evicted)
	}
}

func TestReaper_EvictsEndedAfterRetention(t *testing.T) {
	st := NewStore()
	now := time.Unix(1700000000, 0).UTC()
	r := newTestReaper(st, &now)

	s := newSession("c1", "alice", "bob")
	s.Status = StatusEnded
	s.EndedAt = now
	s.EndReason = EndReasonHangup
	if err := st.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Inside the retention window the session stays queryable.
	now = now.Add(10 * time.Second)
	if _, evicted := r.Sweep(); evicted != 0 {
		t.Fatalf("evicted inside retention window")
	}
	if _, err := st.Get("c1"); err != nil {
		t.Fatalf("get during retention: %v", err)
	}

	now = now.Add(25 * time.Second)
	if _, evicted := r.Sweep(); evicted != 1 {
		t.Fatalf("expected eviction after retention")
	}
	if _, err := st.Get("c1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after eviction, got %v", err)
	}
}

func TestReaper_TimeoutThenEvictionLifecycle(t *testing.T) {
	st := NewStore()
	now := time.Unix(1700000000, 0).UTC()
	r := newTestReaper(st, &now)

	if err := st.Create(newSession("c1", "alice", "bob")); err != nil {
		t.Fatalf("create: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if timedOut, _ := r.Sweep(); timedOut != 1 {
		t.Fatalf("expected timeout")
	}

	now = now.Add(time.Minute)
	if _, evicted := r.Sweep(); evicted != 1 {
		t.Fatalf("expected eviction")
	}
	if st.Len() != 0 {
		t.Fatalf("expected empty store, got %d", st.Len())
	}
}
