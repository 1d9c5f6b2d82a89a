// Package protocol defines the closed set of room events exchanged over the
// socket channel. Every event carries exactly one typed payload; anything
// that does not decode is rejected at the boundary.
package protocol

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"codesync-server/core"
)

// Client to server events.
const (
	EventJoin          = "join"
	EventLeave         = "leave"
	EventCodeChange    = "code-change"
	EventCursorChange  = "cursor-change"
	EventAddFile       = "add-file"
	EventRenameFile    = "rename-file"
	EventDeleteFile    = "delete-file"
	EventChatMessage   = "chat-message"
	EventSyncCode      = "sync-code"
	EventSaveSnapshot  = "save-snapshot"
	EventRevertHistory = "revert-history"
)

// Server to client events.
const (
	EventJoined          = "joined"
	EventDisconnected    = "disconnected"
	EventInitializeFiles = "initialize-files"
	EventFileAdded       = "file-added"
	EventFileRenamed     = "file-renamed"
	EventFileDeleted     = "file-deleted"
	EventChatHistory     = "chat-history"
	EventOpRejected      = "file-op-rejected"
)

type (
	JoinPayload struct {
		RoomID   string `mapstructure:"roomId"`
		Username string `mapstructure:"username"`
	}

	CodeChangePayload struct {
		RoomID    string `mapstructure:"roomId"`
		FileIndex int    `mapstructure:"fileIndex"`
		Code      string `mapstructure:"code"`
	}

	CursorChangePayload struct {
		RoomID   string              `mapstructure:"roomId"`
		Username string              `mapstructure:"username"`
		Cursor   core.CursorPosition `mapstructure:"cursor"`
	}

	AddFilePayload struct {
		RoomID string `mapstructure:"roomId"`
		File   struct {
			Name    string `mapstructure:"name"`
			Content string `mapstructure:"content"`
		} `mapstructure:"file"`
	}

	RenameFilePayload struct {
		RoomID    string `mapstructure:"roomId"`
		FileIndex int    `mapstructure:"fileIndex"`
		NewName   string `mapstructure:"newName"`
	}

	DeleteFilePayload struct {
		RoomID    string `mapstructure:"roomId"`
		FileIndex int    `mapstructure:"fileIndex"`
	}

	ChatMessagePayload struct {
		RoomID    string `mapstructure:"roomId"`
		Username  string `mapstructure:"username"`
		Message   string `mapstructure:"message"`
		Timestamp string `mapstructure:"timestamp"`
	}

	SyncCodePayload struct {
		RoomID   string `mapstructure:"roomId"`
		SocketID string `mapstructure:"socketId"`
	}

	SnapshotPayload struct {
		RoomID string `mapstructure:"roomId"`
	}

	// Rejection is sent only to the requester of a rename/delete that could
	// not be applied. Other members never see it.
	Rejection struct {
		Op        string `json:"op"`
		FileIndex int    `json:"fileIndex"`
		Reason    string `json:"reason"`
	}
)

// Decode maps the first socket argument onto out. Socket payloads arrive as
// map[string]any with float64 numbers, so decoding is weakly typed.
func Decode(args []any, out any) error {
	if len(args) == 0 {
		return fmt.Errorf("missing payload")
	}

	raw, ok := args[0].(map[string]any)
	if !ok {
		return fmt.Errorf("payload must be an object, got %T", args[0])
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
