package signaling

import "time"

// Snapshot is the externally visible projection of a session: status,
// negotiation payloads and both candidate sequences. Internal bookkeeping
// (progress timestamps, invite index) is not rendered.
type Snapshot struct {
	CallID   string `json:"call_id"`
	CallerID string `json:"caller_id"`
	CalleeID string `json:"callee_id"`

	Status CallStatus `json:"status"`

	Offer  string `json:"offer,omitempty"`
	Answer string `json:"answer,omitempty"`

	IceCandidates CandidateSet `json:"ice_candidates"`

	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	EndReason EndReason  `json:"end_reason,omitempty"`
}

// CandidateSet carries each role's delivery-ordered candidate sequence.
type CandidateSet struct {
	Caller []IceCandidate `json:"caller"`
	Callee []IceCandidate `json:"callee"`
}

// Project builds the snapshot from a session copy. Safe to call at any
// time, including during the post-ended retention window.
func Project(s CallSession) Snapshot {
	out := Snapshot{
		CallID:    s.CallID,
		CallerID:  s.CallerID,
		CalleeID:  s.CalleeID,
		Status:    s.Status,
		Offer:     s.OfferSDP,
		Answer:    s.AnswerSDP,
		CreatedAt: s.CreatedAt,
		EndReason: s.EndReason,
		IceCandidates: CandidateSet{
			Caller: make([]IceCandidate, len(s.CallerCandidates)),
			Callee: make([]IceCandidate, len(s.CalleeCandidates)),
		},
	}
	copy(out.IceCandidates.Caller, s.CallerCandidates)
	copy(out.IceCandidates.Callee, s.CalleeCandidates)
	if !s.EndedAt.IsZero() {
		endedAt := s.EndedAt
		out.EndedAt = &endedAt
	}
	return out
}
