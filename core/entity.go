package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by RoomStore implementations when no persisted
// state exists for a room id.
var ErrNotFound = errors.New("room not found")

type (
	// Document is one named, independently editable text body within a room.
	// Content replacement is whole-document, last write wins.
	Document struct {
		Name         string    `json:"name"`
		Content      string    `json:"content"`
		LastModified time.Time `json:"lastModified"`
	}

	// Member is one connected client inside a room. ConnID is the socket id
	// assigned by the transport; usernames are display names and need not be
	// unique within a room.
	Member struct {
		ConnID   string `json:"socketId"`
		Username string `json:"username"`
	}

	// CursorPosition mirrors the editor cursor {line, ch}. Advisory only: it
	// carries no relationship to document versions and may transiently point
	// past end of content.
	CursorPosition struct {
		Line int `json:"line"`
		Ch   int `json:"ch"`
	}

	ChatMessage struct {
		ID        string `json:"id"`
		Username  string `json:"username"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}

	// RoomSnapshot is the unit of persistence: the full document list of a
	// room keyed by its id.
	RoomSnapshot struct {
		RoomID    string     `json:"roomId"`
		Documents []Document `json:"documents"`
		UpdatedAt time.Time  `json:"updatedAt"`
	}

	RoomInfo struct {
		ID        string    `json:"id"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// RoomStore is the durable adapter behind the live room engine. It is
	// called on explicit save/restore requests and on first join, never on
	// the edit hot path.
	RoomStore interface {
		Save(ctx context.Context, snapshot *RoomSnapshot) error
		// Load returns ErrNotFound (possibly wrapped) when the room has no
		// persisted state.
		Load(ctx context.Context, roomID string) (*RoomSnapshot, error)
		Delete(ctx context.Context, roomID string) error
		ListRooms(ctx context.Context) ([]RoomInfo, error)
	}
)

// DefaultDocument is the document synthesized for brand-new rooms and
// whenever the last document of a room is deleted.
func DefaultDocument() Document {
	return Document{Name: "main.py", Content: "", LastModified: time.Now()}
}
