package notify

import (
	"context"
	"sync"
)

// MemoryNotifier records notification attempts for tests.
type MemoryNotifier struct {
	mu    sync.Mutex
	calls []Attempt

	// Delivered and Err configure the canned response.
	Delivered bool
	Err       error
}

type Attempt struct {
	CalleeID   string
	CallID     string
	CallerName string
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{Delivered: true}
}

func (n *MemoryNotifier) Notify(ctx context.Context, calleeID, callID, callerName string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Attempt{CalleeID: calleeID, CallID: callID, CallerName: callerName})
	if n.Err != nil {
		return false, n.Err
	}
	return n.Delivered, nil
}

func (n *MemoryNotifier) Attempts() []Attempt {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Attempt, len(n.calls))
	copy(out, n.calls)
	return out
}
