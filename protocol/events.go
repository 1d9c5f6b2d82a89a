package protocol

import "codesync-server/core"

// Server-side event bodies. Field names follow what the editor client
// destructures, so they are fixed by the wire contract.
type (
	JoinedEvent struct {
		Clients []core.Member `json:"clients"`
	}

	DisconnectedEvent struct {
		SocketID string `json:"socketId"`
		Username string `json:"username"`
	}

	CodeChangeEvent struct {
		FileIndex int    `json:"fileIndex"`
		Code      string `json:"code"`
	}

	CursorChangeEvent struct {
		Username string              `json:"username"`
		Cursor   core.CursorPosition `json:"cursor"`
	}

	FileAddedEvent struct {
		File core.Document `json:"file"`
	}

	FileRenamedEvent struct {
		FileIndex int    `json:"fileIndex"`
		NewName   string `json:"newName"`
	}

	FileDeletedEvent struct {
		FileIndex int `json:"fileIndex"`
	}

	ChatMessageEvent struct {
		Username  string `json:"username"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}

	ChatHistoryEvent struct {
		Messages []core.ChatMessage `json:"messages"`
	}
)
