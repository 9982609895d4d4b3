package signaling

import "sync"

// Store holds every active CallSession and serializes access per call id.
//
// Locking:
// - store.mu guards the maps only, never session state.
// - each entry carries its own mutex; all reads and writes of a session
//   happen under it, so unrelated calls never contend.
// - lock order is store.mu before entry.mu; nothing acquires store.mu
//   while holding an entry lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	// openInvites indexes non-terminal sessions by caller+callee so a
	// repeated invite to the same pair can be rejected atomically with
	// session creation.
	openInvites map[inviteKey]string
}

type sessionEntry struct {
	mu sync.Mutex
	s  CallSession
}

type inviteKey struct {
	callerID string
	calleeID string
}

func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]*sessionEntry),
		openInvites: make(map[inviteKey]string),
	}
}

// Create inserts a new session.
// Returns ErrAlreadyExists on call id collision and ErrAlreadyRinging when
// the caller already has an open session to the same callee.
func (st *Store) Create(s CallSession) error {
	key := inviteKey{callerID: s.CallerID, calleeID: s.CalleeID}

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[s.CallID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := st.openInvites[key]; ok {
		return ErrAlreadyRinging
	}

	st.sessions[s.CallID] = &sessionEntry{s: s.clone()}
	st.openInvites[key] = s.CallID
	return nil
}

// Get returns a consistent snapshot of the session.
func (st *Store) Get(callID string) (CallSession, error) {
	e, err := st.entry(callID)
	if err != nil {
		return CallSession{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.clone(), nil
}

// Mutate applies one atomic read-modify-write step to the session.
// fn sees the current session and either updates it in place or returns a
// rejection; on rejection the session is left untouched. No other operation
// observes a partially applied mutation.
//
// This is the only way any field changes after creation.
func (st *Store) Mutate(callID string, fn func(s *CallSession) error) (CallSession, error) {
	e, err := st.entry(callID)
	if err != nil {
		return CallSession{}, err
	}

	e.mu.Lock()
	scratch := e.s.clone()
	if err := fn(&scratch); err != nil {
		e.mu.Unlock()
		return CallSession{}, err
	}
	e.s = scratch
	out := scratch.clone()
	terminal := scratch.Terminal()
	key := inviteKey{callerID: scratch.CallerID, calleeID: scratch.CalleeID}
	e.mu.Unlock()

	// Terminal sessions free the caller->callee pair for a new invite.
	// Done outside the entry lock to respect lock order.
	if terminal {
		st.mu.Lock()
		if st.openInvites[key] == callID {
			delete(st.openInvites, key)
		}
		st.mu.Unlock()
	}
	return out, nil
}

// Remove evicts a session. Used by the reaper after the retention window.
func (st *Store) Remove(callID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.sessions[callID]
	if !ok {
		return
	}
	delete(st.sessions, callID)

	e.mu.Lock()
	key := inviteKey{callerID: e.s.CallerID, calleeID: e.s.CalleeID}
	e.mu.Unlock()
	if st.openInvites[key] == callID {
		delete(st.openInvites, key)
	}
}

// IDs returns the ids of all stored sessions. The reaper iterates this and
// re-checks state per id under the session lock.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		out = append(out, id)
	}
	return out
}

// Len reports the number of stored sessions, including ended ones still
// inside the retention window.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) entry(callID string) (*sessionEntry, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	e, ok := st.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
