package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"callrelay/internal/audit"
	"callrelay/internal/directory"
	"callrelay/internal/notify"

	"github.com/google/uuid"
)

// Coordinator validates every signaling action against the current session
// state and actor role, then applies it through a single atomic Store.Mutate
// step. Two conflicting requests for the same call serialize through the
// session's critical section; exactly one wins, the loser observes
// ErrInvalidState.
type Coordinator struct {
	store    *Store
	dir      directory.Directory
	notifier notify.Notifier
	audit    *audit.Service
	log      *slog.Logger

	clock         func() time.Time
	notifyTimeout time.Duration
}

// CoordinatorDeps groups the collaborators for dependency injection.
// Notifier and Audit are optional and best-effort.
type CoordinatorDeps struct {
	Store     *Store
	Directory directory.Directory
	Notifier  notify.Notifier
	Audit     *audit.Service
	Log       *slog.Logger

	// NotifyTimeout bounds the push attempt on invite.
	NotifyTimeout time.Duration

	// Clock is injectable for deterministic tests.
	Clock func() time.Time
}

func NewCoordinator(deps CoordinatorDeps) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, errors.New("signaling: store is required")
	}
	if deps.Directory == nil {
		return nil, errors.New("signaling: directory is required")
	}
	c := &Coordinator{
		store:         deps.Store,
		dir:           deps.Directory,
		notifier:      deps.Notifier,
		audit:         deps.Audit,
		log:           deps.Log,
		clock:         deps.Clock,
		notifyTimeout: deps.NotifyTimeout,
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.notifyTimeout <= 0 {
		c.notifyTimeout = 2 * time.Second
	}
	return c, nil
}

// Invite creates a new ringing session from the verified caller to calleeID
// and dispatches a best-effort push to the callee's device.
func (c *Coordinator) Invite(ctx context.Context, callerID, calleeID string) (Snapshot, error) {
	if callerID == "" || calleeID == "" {
		return Snapshot{}, ErrInvalidArgument
	}
	if callerID == calleeID {
		return Snapshot{}, ErrInvalidArgument
	}

	if _, err := c.dir.Resolve(ctx, calleeID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Snapshot{}, ErrUnknownCallee
		}
		return Snapshot{}, fmt.Errorf("signaling: callee lookup: %w", err)
	}

	callerName := callerID
	if u, err := c.dir.Resolve(ctx, callerID); err == nil && u.DisplayName != "" {
		callerName = u.DisplayName
	}

	now := c.clock().UTC()
	s := CallSession{
		CallID:    uuid.NewString(),
		CallerID:  callerID,
		CalleeID:  calleeID,
		Status:    StatusRinging,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.store.Create(s); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Random ids should never collide; this is an internal bug.
			c.log.Error("call id collision on create", "call_id", s.CallID)
		}
		return Snapshot{}, err
	}

	c.recordTransition(ctx, s.CallID, callerID, "", StatusRinging, "invite")
	c.dispatchNotification(ctx, s, callerName)

	return Project(s), nil
}

// Offer records the caller's session description and moves the call to
// accepted. Write-once: a second offer is rejected with ErrDuplicateOffer.
func (c *Coordinator) Offer(ctx context.Context, actorID, callID, sdp string) (Snapshot, error) {
	if actorID == "" || sdp == "" {
		return Snapshot{}, ErrInvalidArgument
	}

	now := c.clock().UTC()
	updated, err := c.store.Mutate(callID, func(s *CallSession) error {
		role, ok := s.ParticipantRole(actorID)
		if !ok {
			return ErrUnauthorized
		}
		if role != RoleCaller {
			return ErrInvalidRole
		}
		if s.OfferSDP != "" {
			return ErrDuplicateOffer
		}
		if s.Status != StatusRinging {
			return ErrInvalidState
		}
		s.OfferSDP = sdp
		s.Status = StatusAccepted
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	c.recordTransition(ctx, callID, actorID, StatusRinging, StatusAccepted, "offer")
	return Project(updated), nil
}

// Answer records the callee's session description and moves the call to
// in_call. Write-once: a second answer is rejected with ErrDuplicateAnswer.
func (c *Coordinator) Answer(ctx context.Context, actorID, callID, sdp string) (Snapshot, error) {
	if actorID == "" || sdp == "" {
		return Snapshot{}, ErrInvalidArgument
	}

	now := c.clock().UTC()
	updated, err := c.store.Mutate(callID, func(s *CallSession) error {
		role, ok := s.ParticipantRole(actorID)
		if !ok {
			return ErrUnauthorized
		}
		if role != RoleCallee {
			return ErrInvalidRole
		}
		if s.AnswerSDP != "" {
			return ErrDuplicateAnswer
		}
		if s.Status != StatusAccepted {
			return ErrInvalidState
		}
		s.AnswerSDP = sdp
		s.Status = StatusInCall
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	c.recordTransition(ctx, callID, actorID, StatusAccepted, StatusInCall, "answer")
	return Project(updated), nil
}

// Hold pauses an active call. Either participant may hold.
func (c *Coordinator) Hold(ctx context.Context, actorID, callID string) (Snapshot, error) {
	return c.toggleHold(ctx, actorID, callID, StatusInCall, StatusOnHold, "hold")
}

// Resume continues a held call. Either participant may resume.
func (c *Coordinator) Resume(ctx context.Context, actorID, callID string) (Snapshot, error) {
	return c.toggleHold(ctx, actorID, callID, StatusOnHold, StatusInCall, "resume")
}

func (c *Coordinator) toggleHold(ctx context.Context, actorID, callID string, from, to CallStatus, action string) (Snapshot, error) {
	if actorID == "" {
		return Snapshot{}, ErrInvalidArgument
	}

	now := c.clock().UTC()
	updated, err := c.store.Mutate(callID, func(s *CallSession) error {
		if _, ok := s.ParticipantRole(actorID); !ok {
			return ErrUnauthorized
		}
		if s.Status != from {
			return ErrInvalidState
		}
		s.Status = to
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	c.recordTransition(ctx, callID, actorID, from, to, action)
	return Project(updated), nil
}

// AddCandidate appends one connectivity candidate to the actor's sequence.
// The role parameter must name the actor's own side of the call.
func (c *Coordinator) AddCandidate(ctx context.Context, actorID, callID string, role Role, cand IceCandidate) (Snapshot, error) {
	if actorID == "" || cand.Candidate == "" {
		return Snapshot{}, ErrInvalidArgument
	}
	if !ValidRole(role) {
		return Snapshot{}, ErrInvalidRole
	}

	updated, err := c.store.Mutate(callID, func(s *CallSession) error {
		actorRole, ok := s.ParticipantRole(actorID)
		if !ok {
			return ErrUnauthorized
		}
		if actorRole != role {
			return ErrInvalidRole
		}
		if s.Terminal() {
			return ErrSessionEnded
		}
		if role == RoleCaller {
			s.CallerCandidates = append(s.CallerCandidates, cand)
		} else {
			s.CalleeCandidates = append(s.CalleeCandidates, cand)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return Project(updated), nil
}

// End terminates the call from any state. Idempotent: ending an already
// ended call succeeds without touching EndedAt.
func (c *Coordinator) End(ctx context.Context, actorID, callID string) (Snapshot, error) {
	if actorID == "" {
		return Snapshot{}, ErrInvalidArgument
	}

	now := c.clock().UTC()
	var from CallStatus
	transitioned := false

	updated, err := c.store.Mutate(callID, func(s *CallSession) error {
		if _, ok := s.ParticipantRole(actorID); !ok {
			return ErrUnauthorized
		}
		if s.Terminal() {
			return nil
		}
		from = s.Status
		s.Status = StatusEnded
		s.EndedAt = now
		s.EndReason = EndReasonHangup
		s.UpdatedAt = now
		transitioned = true
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	if transitioned {
		c.recordTransition(ctx, callID, actorID, from, StatusEnded, "hangup")
	}
	return Project(updated), nil
}

// Query returns the participant-visible snapshot of a session. It stays
// valid for ended sessions until the retention window expires.
func (c *Coordinator) Query(ctx context.Context, callID string) (Snapshot, error) {
	s, err := c.store.Get(callID)
	if err != nil {
		return Snapshot{}, err
	}
	return Project(s), nil
}

func (c *Coordinator) recordTransition(ctx context.Context, callID, actorID string, from, to CallStatus, msg string) {
	if c.audit == nil {
		return
	}
	if err := c.audit.LogTransition(ctx, callID, actorID, string(from), string(to), msg); err != nil {
		c.log.Warn("audit append failed", "call_id", callID, "err", err)
	}
}

// dispatchNotification wakes the callee outside any session lock. The
// attempt is bounded by notifyTimeout and abandoned past it; failure never
// fails the invite.
func (c *Coordinator) dispatchNotification(ctx context.Context, s CallSession, callerName string) {
	if c.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.notifyTimeout)
	go func() {
		defer cancel()
		delivered, err := c.notifier.Notify(nctx, s.CalleeID, s.CallID, callerName)
		if err != nil {
			c.log.Warn("incoming call push failed", "call_id", s.CallID, "callee_id", s.CalleeID, "err", err)
			return
		}
		if !delivered {
			c.log.Debug("callee not reachable by push", "call_id", s.CallID, "callee_id", s.CalleeID)
		}
	}()
}
