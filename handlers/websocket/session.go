package websocket

import "sync"

// session tracks the gateway-side state of one connection. A connection maps
// to at most one room for its lifetime: events arriving before a successful
// join are discarded, and after leave the connection cannot re-join.
type session struct {
	connID string

	mu       sync.Mutex
	roomID   string
	username string
	joined   bool
	left     bool
}

func newSession(connID string) *session {
	return &session{connID: connID}
}

// beginJoin records the join if the session is still fresh. Duplicate joins
// into the same room report ok so the caller can return the existing
// snapshot; joins into a different room, or after leave, are refused.
func (s *session) beginJoin(roomID, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.left {
		return false
	}
	if s.joined {
		return s.roomID == roomID
	}
	s.roomID = roomID
	s.username = username
	s.joined = true
	return true
}

// current returns the joined room, ok=false before join or after leave.
func (s *session) current() (roomID, username string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.joined || s.left {
		return "", "", false
	}
	return s.roomID, s.username, true
}

// endLeave marks the session closed and reports whether the caller is the
// first to do so. Explicit leave and transport disconnect both funnel here,
// so registry teardown runs exactly once per connection.
func (s *session) endLeave() (roomID string, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.left {
		return "", false
	}
	s.left = true
	if !s.joined {
		return "", false
	}
	return s.roomID, true
}
