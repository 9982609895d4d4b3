package directory

import (
	"context"
	"errors"
)

// User is the subset of an account the signaling service needs:
// enough to resolve a callee and to address a push notification.
type User struct {
	ID          string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`

	// PushToken is the device token registered for incoming-call pushes.
	// Empty when the user has no registered device.
	PushToken string `json:"-"`
}

// Directory resolves user ids to profiles. Account registration and
// credential handling live elsewhere; this service only reads profiles
// and writes push tokens.
type Directory interface {
	Resolve(ctx context.Context, userID string) (User, error)
	SetPushToken(ctx context.Context, userID, token string) error
}

var (
	ErrNotFound        = errors.New("directory: user not found")
	ErrInvalidArgument = errors.New("directory: invalid argument")
)
