package signaling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callrelay/internal/audit"
	"callrelay/internal/directory"
	"callrelay/internal/notify"
)

type testEnv struct {
	coord    *Coordinator
	store    *Store
	dir      *directory.MemoryDirectory
	notifier *notify.MemoryNotifier
	audit    *audit.MemoryRepo
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store: NewStore(),
		dir: directory.NewMemoryDirectory(
			directory.User{ID: "alice", DisplayName: "Alice", PushToken: "tok-a"},
			directory.User{ID: "bob", DisplayName: "Bob", PushToken: "tok-b"},
		),
		notifier: notify.NewMemoryNotifier(),
		audit:    audit.NewMemoryRepo(),
		now:      time.Unix(1700000000, 0).UTC(),
	}

	coord, err := NewCoordinator(CoordinatorDeps{
		Store:     env.store,
		Directory: env.dir,
		Notifier:  env.notifier,
		Audit:     audit.NewService(env.audit),
		Clock:     func() time.Time { return env.now },
	})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	env.coord = coord
	return env
}

func (env *testEnv) invite(t *testing.T) Snapshot {
	t.Helper()
	snap, err := env.coord.Invite(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	return snap
}

func (env *testEnv) inCall(t *testing.T) Snapshot {
	t.Helper()
	snap := env.invite(t)
	if _, err := env.coord.Offer(context.Background(), "alice", snap.CallID, "v=0 offer"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := env.coord.Answer(context.Background(), "bob", snap.CallID, "v=0 answer"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	return snap
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestInviteOfferAnswerFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)
	if snap.CallID == "" || snap.Status != StatusRinging {
		t.Fatalf("unexpected invite snapshot: %+v", snap)
	}

	snap, err := env.coord.Offer(ctx, "alice", snap.CallID, "v=0 offer")
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if snap.Status != StatusAccepted {
		t.Fatalf("expected accepted after offer, got %v", snap.Status)
	}

	snap, err = env.coord.Answer(ctx, "bob", snap.CallID, "v=0 answer")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if snap.Status != StatusInCall {
		t.Fatalf("expected in_call after answer, got %v", snap.Status)
	}

	got, err := env.coord.Query(ctx, snap.CallID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got.Status != StatusInCall || got.Offer != "v=0 offer" || got.Answer != "v=0 answer" {
		t.Fatalf("unexpected projected view: %+v", got)
	}
}

func TestInvite_UnknownCallee(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.coord.Invite(context.Background(), "alice", "nobody")
	if !errors.Is(err, ErrUnknownCallee) {
		t.Fatalf("expected ErrUnknownCallee, got %v", err)
	}
}

func TestInvite_RejectsSelfCall(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.coord.Invite(context.Background(), "alice", "alice")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestInvite_DeduplicatesOpenInvite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)

	if _, err := env.coord.Invite(ctx, "alice", "bob"); !errors.Is(err, ErrAlreadyRinging) {
		t.Fatalf("expected ErrAlreadyRinging, got %v", err)
	}

	// Ending the first call frees the pair.
	if _, err := env.coord.End(ctx, "alice", snap.CallID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := env.coord.Invite(ctx, "alice", "bob"); err != nil {
		t.Fatalf("expected invite after end, got %v", err)
	}
}

func TestOffer_WriteOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)
	if _, err := env.coord.Offer(ctx, "alice", snap.CallID, "v=0 first"); err != nil {
		t.Fatalf("offer: %v", err)
	}

	_, err := env.coord.Offer(ctx, "alice", snap.CallID, "v=0 second")
	if !errors.Is(err, ErrDuplicateOffer) {
		t.Fatalf("expected ErrDuplicateOffer, got %v", err)
	}

	got, _ := env.coord.Query(ctx, snap.CallID)
	if got.Offer != "v=0 first" {
		t.Fatalf("original offer overwritten: %q", got.Offer)
	}
}

func TestOffer_ActorValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)

	if _, err := env.coord.Offer(ctx, "bob", snap.CallID, "v=0"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for callee offer, got %v", err)
	}
	if _, err := env.coord.Offer(ctx, "mallory", snap.CallID, "v=0"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
}

func TestAnswer_RequiresAcceptedState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)
	if _, err := env.coord.Answer(ctx, "bob", snap.CallID, "v=0"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for answer while ringing, got %v", err)
	}
}

func TestAnswer_WriteOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.inCall(t)

	_, err := env.coord.Answer(ctx, "bob", snap.CallID, "v=0 again")
	if !errors.Is(err, ErrDuplicateAnswer) {
		t.Fatalf("expected ErrDuplicateAnswer, got %v", err)
	}

	got, _ := env.coord.Query(ctx, snap.CallID)
	if got.Answer != "v=0 answer" {
		t.Fatalf("original answer overwritten: %q", got.Answer)
	}
}

func TestHoldResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.inCall(t)

	held, err := env.coord.Hold(ctx, "bob", snap.CallID)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Status != StatusOnHold {
		t.Fatalf("expected on_hold, got %v", held.Status)
	}

	// Holding again is not a valid transition.
	if _, err := env.coord.Hold(ctx, "alice", snap.CallID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for double hold, got %v", err)
	}

	resumed, err := env.coord.Resume(ctx, "alice", snap.CallID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != StatusInCall {
		t.Fatalf("expected in_call, got %v", resumed.Status)
	}
}

func TestHold_RequiresActiveCall(t *testing.T) {
	env := newTestEnv(t)

	snap := env.invite(t)
	if _, err := env.coord.Hold(context.Background(), "alice", snap.CallID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for hold while ringing, got %v", err)
	}
}

func TestEnd_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.inCall(t)

	first, err := env.coord.End(ctx, "alice", snap.CallID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if first.Status != StatusEnded || first.EndedAt == nil {
		t.Fatalf("unexpected end snapshot: %+v", first)
	}

	env.now = env.now.Add(5 * time.Second)
	second, err := env.coord.End(ctx, "bob", snap.CallID)
	if err != nil {
		t.Fatalf("second end: %v", err)
	}
	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Fatalf("ended_at changed on repeat end: %v vs %v", second.EndedAt, first.EndedAt)
	}
}

func TestEnd_ConcurrentCallsBothSucceed(t *testing.T) {
	env := newTestEnv(t)
	snap := env.inCall(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, actor string) {
			defer wg.Done()
			_, errs[i] = env.coord.End(context.Background(), actor, snap.CallID)
		}(i, actor)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("concurrent end must be idempotent: %v %v", errs[0], errs[1])
	}
}

func TestAnswerEndRace_ExactlyOneTransitionWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)
	if _, err := env.coord.Offer(ctx, "alice", snap.CallID, "v=0 offer"); err != nil {
		t.Fatalf("offer: %v", err)
	}

	var wg sync.WaitGroup
	var answerErr, endErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, answerErr = env.coord.Answer(ctx, "bob", snap.CallID, "v=0 answer")
	}()
	go func() {
		defer wg.Done()
		_, endErr = env.coord.End(ctx, "alice", snap.CallID)
	}()
	wg.Wait()

	// End is valid from any state, so it always succeeds. The answer
	// either landed before the end or lost the race with InvalidState.
	if endErr != nil {
		t.Fatalf("end must succeed: %v", endErr)
	}
	got, err := env.coord.Query(ctx, snap.CallID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("expected ended, got %v", got.Status)
	}
	switch {
	case answerErr == nil:
		if got.Answer != "v=0 answer" {
			t.Fatalf("winning answer missing from view: %+v", got)
		}
	case errors.Is(answerErr, ErrInvalidState):
		if got.Answer != "" {
			t.Fatalf("losing answer leaked into view: %+v", got)
		}
	default:
		t.Fatalf("unexpected answer error: %v", answerErr)
	}
}

func TestCandidates_AppendOnlyOrdered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)

	c1 := IceCandidate{Candidate: "candidate:1", SDPMid: "0"}
	c2 := IceCandidate{Candidate: "candidate:2", SDPMid: "0"}

	if _, err := env.coord.AddCandidate(ctx, "alice", snap.CallID, RoleCaller, c1); err != nil {
		t.Fatalf("add c1: %v", err)
	}
	// Interleave a callee candidate; it must not affect caller ordering.
	if _, err := env.coord.AddCandidate(ctx, "bob", snap.CallID, RoleCallee, IceCandidate{Candidate: "candidate:x"}); err != nil {
		t.Fatalf("add callee candidate: %v", err)
	}
	if _, err := env.coord.AddCandidate(ctx, "alice", snap.CallID, RoleCaller, c2); err != nil {
		t.Fatalf("add c2: %v", err)
	}

	got, _ := env.coord.Query(ctx, snap.CallID)
	caller := got.IceCandidates.Caller
	if len(caller) != 2 || caller[0].Candidate != "candidate:1" || caller[1].Candidate != "candidate:2" {
		t.Fatalf("caller candidates out of order: %+v", caller)
	}
	if len(got.IceCandidates.Callee) != 1 {
		t.Fatalf("unexpected callee candidates: %+v", got.IceCandidates.Callee)
	}
}

func TestCandidates_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.invite(t)
	cand := IceCandidate{Candidate: "candidate:1"}

	if _, err := env.coord.AddCandidate(ctx, "alice", snap.CallID, RoleCallee, cand); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for role mismatch, got %v", err)
	}
	if _, err := env.coord.AddCandidate(ctx, "alice", snap.CallID, Role("observer"), cand); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for unknown role, got %v", err)
	}
	if _, err := env.coord.AddCandidate(ctx, "bob", "missing-call", RoleCallee, cand); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := env.coord.End(ctx, "alice", snap.CallID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := env.coord.AddCandidate(ctx, "alice", snap.CallID, RoleCaller, cand); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
}

func TestInvite_NotifiesCallee(t *testing.T) {
	env := newTestEnv(t)

	snap := env.invite(t)

	waitFor(t, func() bool { return len(env.notifier.Attempts()) == 1 })
	got := env.notifier.Attempts()[0]
	if got.CalleeID != "bob" || got.CallID != snap.CallID || got.CallerName != "Alice" {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestInvite_NotifierFailureDoesNotFailInvite(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.Err = errors.New("push gateway down")

	if _, err := env.coord.Invite(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("invite must not fail on notification error: %v", err)
	}
}

func TestAudit_RecordsLifecycleTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snap := env.inCall(t)
	if _, err := env.coord.End(ctx, "bob", snap.CallID); err != nil {
		t.Fatalf("end: %v", err)
	}

	events := env.audit.Events()
	if len(events) != 4 {
		t.Fatalf("expected 4 audit events (invite/offer/answer/end), got %d", len(events))
	}
	if events[0].Type != audit.EventTypeInvite || events[3].Type != audit.EventTypeEnd {
		t.Fatalf("unexpected event types: %v %v", events[0].Type, events[3].Type)
	}
}

func TestQuery_NoParticipantRequired(t *testing.T) {
	env := newTestEnv(t)

	snap := env.invite(t)
	got, err := env.coord.Query(context.Background(), snap.CallID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got.CallID != snap.CallID {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	if _, err := env.coord.Query(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
