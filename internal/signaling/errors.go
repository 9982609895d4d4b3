package signaling

import "errors"

// Error taxonomy for signaling operations. Handlers map these to HTTP
// statuses with errors.Is; nothing below is wrapped away.
var (
	// ErrNotFound means the call id is unknown or already evicted.
	ErrNotFound = errors.New("signaling: call not found")

	// ErrAlreadyExists means a call id collision on create. Generation is
	// random UUIDs, so seeing this indicates an internal bug.
	ErrAlreadyExists = errors.New("signaling: call id already exists")

	// ErrAlreadyRinging rejects a repeated invite while the caller still
	// has an open session to the same callee.
	ErrAlreadyRinging = errors.New("signaling: open invite to callee already exists")

	// ErrInvalidState means the action is not valid in the current status.
	// On offer/answer this usually means the call ended before negotiation
	// completed; clients should treat it as "call no longer active".
	ErrInvalidState = errors.New("signaling: action not valid in current call state")

	ErrDuplicateOffer  = errors.New("signaling: offer already set")
	ErrDuplicateAnswer = errors.New("signaling: answer already set")

	// ErrInvalidRole means the role parameter is not caller/callee or does
	// not match the actor's side of the call.
	ErrInvalidRole = errors.New("signaling: role mismatch")

	// ErrUnauthorized means the actor is not a participant of the call.
	ErrUnauthorized = errors.New("signaling: actor is not a call participant")

	// ErrSessionEnded rejects candidate exchange on a terminal session.
	ErrSessionEnded = errors.New("signaling: call already ended")

	// ErrUnknownCallee means the invited callee id is not resolvable.
	ErrUnknownCallee = errors.New("signaling: callee not found")

	ErrInvalidArgument = errors.New("signaling: invalid argument")
)
