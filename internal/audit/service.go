package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call lifecycle transitions for internal ops.
// Callers treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTransition records one state machine edge.
func (s *Service) LogTransition(ctx context.Context, callID, actorUserID, from, to, message string) error {
	typ := EventTypeTransition
	switch {
	case from == "":
		typ = EventTypeInvite
	case to == "ended":
		typ = EventTypeEnd
	}
	return s.Append(ctx, Event{
		Type:        typ,
		CallID:      callID,
		ActorUserID: actorUserID,
		FromStatus:  from,
		ToStatus:    to,
		Message:     message,
	})
}
