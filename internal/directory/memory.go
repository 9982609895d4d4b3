package directory

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory Directory useful for tests.
// It is not intended for production use.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *MemoryDirectory) Add(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) Resolve(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrInvalidArgument
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (d *MemoryDirectory) SetPushToken(ctx context.Context, userID, token string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PushToken = token
	d.users[userID] = u
	return nil
}
