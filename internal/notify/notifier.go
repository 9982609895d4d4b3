package notify

import "context"

// Notifier wakes an offline callee about an incoming call.
//
// Contract:
// - best-effort: delivered=false with a nil error means "no reachable
//   device", which is not a failure of the invite.
// - implementations must respect ctx deadlines; callers bound the attempt.
type Notifier interface {
	Notify(ctx context.Context, calleeID, callID, callerName string) (delivered bool, err error)
}

// Payload is the wire shape pushed to a device.
type Payload struct {
	Type       string `json:"type"`
	CallID     string `json:"call_id"`
	CallerName string `json:"caller_name"`
}

const payloadTypeIncomingCall = "incoming_call"
