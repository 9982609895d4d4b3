package signaling

import "time"

// CallSession is the authoritative state of one call attempt.
//
// Invariants:
// - CallID, CallerID, CalleeID are immutable after creation.
// - OfferSDP and AnswerSDP are write-once; a second write is rejected.
// - Status only advances forward through the state machine, or jumps to ended.
// - Candidate sequences are append-only, ordered by arrival.
// - EndedAt is set exactly once, at termination.
//
// All mutation happens through Store.Mutate; nothing outside the store may
// hold a live reference to a session.
type CallSession struct {
	CallID   string `json:"call_id"`
	CallerID string `json:"caller_id"`
	CalleeID string `json:"callee_id"`

	Status CallStatus `json:"status"`

	OfferSDP  string `json:"offer_sdp,omitempty"`
	AnswerSDP string `json:"answer_sdp,omitempty"`

	// Candidates are kept per role; each list is delivery-ordered.
	CallerCandidates []IceCandidate `json:"caller_candidates,omitempty"`
	CalleeCandidates []IceCandidate `json:"callee_candidates,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt tracks forward progress of the state machine and is the
	// staleness baseline for the reaper. Candidate appends do not count
	// as progress.
	UpdatedAt time.Time `json:"updated_at"`

	// EndedAt is zero until the session reaches ended.
	EndedAt   time.Time `json:"ended_at,omitempty"`
	EndReason EndReason `json:"end_reason,omitempty"`
}

type CallStatus string

const (
	StatusRinging  CallStatus = "ringing"
	StatusAccepted CallStatus = "accepted"
	StatusInCall   CallStatus = "in_call"
	StatusOnHold   CallStatus = "on_hold"
	StatusEnded    CallStatus = "ended"
)

type EndReason string

const (
	EndReasonHangup  EndReason = "hangup"
	EndReasonTimeout EndReason = "timeout"
)

// Role identifies which side of the call an actor is on.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

func ValidRole(r Role) bool {
	return r == RoleCaller || r == RoleCallee
}

// IceCandidate is an opaque connectivity candidate plus optional
// transport hints, passed through without interpretation.
type IceCandidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex string `json:"sdpMLineIndex,omitempty"`
}

// ParticipantRole reports the role of userID in this session, if any.
func (s *CallSession) ParticipantRole(userID string) (Role, bool) {
	switch userID {
	case s.CallerID:
		return RoleCaller, true
	case s.CalleeID:
		return RoleCallee, true
	default:
		return "", false
	}
}

// Terminal reports whether the session has reached its final state.
func (s *CallSession) Terminal() bool {
	return s.Status == StatusEnded
}

// clone returns a deep copy safe to hand out after the lock is released.
func (s *CallSession) clone() CallSession {
	out := *s
	if s.CallerCandidates != nil {
		out.CallerCandidates = make([]IceCandidate, len(s.CallerCandidates))
		copy(out.CallerCandidates, s.CallerCandidates)
	}
	if s.CalleeCandidates != nil {
		out.CalleeCandidates = make([]IceCandidate, len(s.CalleeCandidates))
		copy(out.CalleeCandidates, s.CalleeCandidates)
	}
	return out
}
