package protocol

import "testing"

func TestDecodeJoinPayload(t *testing.T) {
	args := []any{map[string]any{"roomId": "abc", "username": "alice"}}

	var p JoinPayload
	if err := Decode(args, &p); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if p.RoomID != "abc" || p.Username != "alice" {
		t.Errorf("Unexpected payload: %+v", p)
	}
}

func TestDecodeWeaklyTypedNumbers(t *testing.T) {
	// Socket payloads deliver all numbers as float64.
	args := []any{map[string]any{"roomId": "abc", "fileIndex": float64(2), "code": "x = 1"}}

	var p CodeChangePayload
	if err := Decode(args, &p); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if p.FileIndex != 2 {
		t.Errorf("Expected fileIndex 2, got %d", p.FileIndex)
	}
}

func TestDecodeNestedCursor(t *testing.T) {
	args := []any{map[string]any{
		"roomId":   "abc",
		"username": "alice",
		"cursor":   map[string]any{"line": float64(4), "ch": float64(12)},
	}}

	var p CursorChangePayload
	if err := Decode(args, &p); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if p.Cursor.Line != 4 || p.Cursor.Ch != 12 {
		t.Errorf("Unexpected cursor: %+v", p.Cursor)
	}
}

func TestDecodeNestedFile(t *testing.T) {
	args := []any{map[string]any{
		"roomId": "abc",
		"file":   map[string]any{"name": "util.py", "content": "pass"},
	}}

	var p AddFilePayload
	if err := Decode(args, &p); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if p.File.Name != "util.py" || p.File.Content != "pass" {
		t.Errorf("Unexpected file: %+v", p.File)
	}
}

func TestDecodeMissingPayload(t *testing.T) {
	var p JoinPayload
	if err := Decode(nil, &p); err == nil {
		t.Error("Expected error for missing payload")
	}
}

func TestDecodeNonObjectPayload(t *testing.T) {
	var p JoinPayload
	if err := Decode([]any{"just a string"}, &p); err == nil {
		t.Error("Expected error for non-object payload")
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	args := []any{map[string]any{"roomId": "abc", "username": "alice", "extra": true}}

	var p JoinPayload
	if err := Decode(args, &p); err != nil {
		t.Errorf("Unknown fields should be ignored, got %v", err)
	}
}
