package session

import (
	"slices"
	"sync"
)

// UpsertOutcome tells whether Upsert appended a new session or replaced one.
type UpsertOutcome int

const (
	Added UpsertOutcome = iota + 1
	Updated
)

func (o UpsertOutcome) String() string {
	switch o {
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Store is the canonical, ordered list of sessions. At most one session per
// user id is kept. Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions []Session
}

// NewStore creates a Store seeded with sessions. Later duplicates of a user id
// replace earlier ones in place.
func NewStore(sessions ...Session) *Store {
	s := &Store{}
	s.Replace(sessions)
	return s
}

func (s *Store) indexOf(userID string) int {
	return slices.IndexFunc(s.sessions, func(x Session) bool { return x.UserID() == userID })
}

// Upsert replaces the session with the same user id, keeping its position, or
// appends it when the user is new.
func (s *Store) Upsert(session Session) UpsertOutcome {
	session = session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(session.UserID()); i >= 0 {
		s.sessions[i] = session
		return Updated
	}
	s.sessions = append(s.sessions, session)
	return Added
}

// Remove deletes and returns the session for userID.
func (s *Store) Remove(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(userID)
	if i < 0 {
		return Session{}, false
	}
	removed := s.sessions[i]
	s.sessions = slices.Delete(s.sessions, i, i+1)
	return removed, true
}

// Find returns a copy of the session for userID.
func (s *Store) Find(userID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(userID)
	if i < 0 {
		return Session{}, false
	}
	return s.sessions[i].Clone(), true
}

// List returns a snapshot of all sessions in insertion order.
func (s *Store) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, len(s.sessions))
	for i, x := range s.sessions {
		out[i] = x.Clone()
	}
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Replace swaps the whole list, typically with sessions loaded at startup.
// Duplicate user ids collapse onto the first position they appeared at.
func (s *Store) Replace(sessions []Session) {
	deduped := make([]Session, 0, len(sessions))
	for _, x := range sessions {
		i := slices.IndexFunc(deduped, func(d Session) bool { return d.UserID() == x.UserID() })
		if i >= 0 {
			deduped[i] = x.Clone()
			continue
		}
		deduped = append(deduped, x.Clone())
	}

	s.mu.Lock()
	s.sessions = deduped
	s.mu.Unlock()
}
