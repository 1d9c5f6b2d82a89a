package websocket

import (
	"sync"
	"testing"
)

func TestSessionEventBeforeJoin(t *testing.T) {
	s := newSession("conn-1")

	if _, _, ok := s.current(); ok {
		t.Error("Session must report not joined before any join")
	}
}

func TestSessionJoinThenCurrent(t *testing.T) {
	s := newSession("conn-1")

	if !s.beginJoin("abc", "alice") {
		t.Fatal("First join must be accepted")
	}
	roomID, username, ok := s.current()
	if !ok || roomID != "abc" || username != "alice" {
		t.Errorf("Unexpected session state: %q %q %v", roomID, username, ok)
	}
}

func TestSessionRejoinSameRoom(t *testing.T) {
	s := newSession("conn-1")

	s.beginJoin("abc", "alice")
	if !s.beginJoin("abc", "alice") {
		t.Error("Re-joining the same room must be accepted as a no-op")
	}
}

func TestSessionSecondRoomRefused(t *testing.T) {
	s := newSession("conn-1")

	s.beginJoin("abc", "alice")
	if s.beginJoin("other", "alice") {
		t.Error("Joining a second room on the same connection must be refused")
	}
	if roomID, _, _ := s.current(); roomID != "abc" {
		t.Errorf("Original room must be preserved, got %q", roomID)
	}
}

func TestSessionJoinAfterLeaveRefused(t *testing.T) {
	s := newSession("conn-1")

	s.beginJoin("abc", "alice")
	s.endLeave()
	if s.beginJoin("abc", "alice") {
		t.Error("Join after leave must be refused")
	}
	if _, _, ok := s.current(); ok {
		t.Error("Session must report not joined after leave")
	}
}

func TestSessionLeaveWithoutJoin(t *testing.T) {
	s := newSession("conn-1")

	if _, first := s.endLeave(); first {
		t.Error("Leave without a prior join must not trigger teardown")
	}
}

func TestSessionLeaveExactlyOnce(t *testing.T) {
	s := newSession("conn-1")
	s.beginJoin("abc", "alice")

	roomID, first := s.endLeave()
	if !first || roomID != "abc" {
		t.Fatalf("First leave must win: roomID=%q first=%v", roomID, first)
	}
	if _, again := s.endLeave(); again {
		t.Error("Second leave must report not-first")
	}
}

func TestSessionConcurrentLeave(t *testing.T) {
	s := newSession("conn-1")
	s.beginJoin("abc", "alice")

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, first := s.endLeave(); first {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Errorf("Exactly one leave must win, got %d", firsts)
	}
}
