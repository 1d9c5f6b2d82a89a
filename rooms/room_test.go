package rooms

import (
	"errors"
	"fmt"
	"testing"

	"codesync-server/core"
)

func TestNewRoomSeedsDefaultDocument(t *testing.T) {
	room := newRoom("abc", nil)

	docs := room.snapshotDocuments()
	if len(docs) != 1 || docs[0].Name != "main.py" || docs[0].Content != "" {
		t.Errorf("Expected single default document, got %+v", docs)
	}
}

func TestNewRoomKeepsSeed(t *testing.T) {
	seed := []core.Document{{Name: "a.py"}, {Name: "b.py"}}
	room := newRoom("abc", seed)

	if docs := room.snapshotDocuments(); len(docs) != 2 {
		t.Errorf("Expected seed documents preserved, got %+v", docs)
	}
}

func TestDisambiguateNames(t *testing.T) {
	tests := []struct {
		existing []string
		proposed string
		want     string
	}{
		{nil, "main.py", "main.py"},
		{[]string{"main.py"}, "main.py", "main_1.py"},
		{[]string{"main.py", "main_1.py"}, "main.py", "main_2.py"},
		{[]string{"main.py", "main_2.py"}, "main.py", "main_1.py"},
		{[]string{"notes"}, "notes", "notes_1"},
		{[]string{"main.py"}, "other.py", "other.py"},
	}

	for _, tc := range tests {
		room := newRoom("abc", nil)
		room.documents = nil
		for _, name := range tc.existing {
			room.documents = append(room.documents, core.Document{Name: name})
		}
		if got := room.disambiguateLocked(tc.proposed); got != tc.want {
			t.Errorf("disambiguate(%q) with %v = %q, want %q", tc.proposed, tc.existing, got, tc.want)
		}
	}
}

func TestAddDocumentEmptyNameDefaults(t *testing.T) {
	room := newRoom("abc", nil)

	doc := room.addDocument("", "x")
	if doc.Name != "main_1.py" {
		t.Errorf("Empty name should fall back to the default then disambiguate, got %q", doc.Name)
	}
	if doc.Content != "x" {
		t.Errorf("Content must be preserved, got %q", doc.Content)
	}
}

func TestRenameCollisionRejected(t *testing.T) {
	room := newRoom("abc", []core.Document{{Name: "a.py"}, {Name: "b.py"}})

	if err := room.renameDocument(0, "b.py"); !errors.Is(err, ErrNameInUse) {
		t.Errorf("Expected ErrNameInUse, got %v", err)
	}
	if docs := room.snapshotDocuments(); docs[0].Name != "a.py" {
		t.Errorf("Rejected rename must not change state, got %q", docs[0].Name)
	}
}

func TestRenameToOwnNameAllowed(t *testing.T) {
	room := newRoom("abc", []core.Document{{Name: "a.py"}})

	if err := room.renameDocument(0, "a.py"); err != nil {
		t.Errorf("Renaming a document to its current name should succeed, got %v", err)
	}
}

func TestRenameOutOfRange(t *testing.T) {
	room := newRoom("abc", nil)

	for _, index := range []int{-1, 1, 42} {
		if err := room.renameDocument(index, "x.py"); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("renameDocument(%d) = %v, want ErrIndexOutOfRange", index, err)
		}
	}
}

func TestDeleteOutOfRange(t *testing.T) {
	room := newRoom("abc", nil)

	if _, err := room.deleteDocument(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestDeleteMiddleDocumentShiftsIndices(t *testing.T) {
	room := newRoom("abc", []core.Document{{Name: "a"}, {Name: "b"}, {Name: "c"}})

	synthesized, err := room.deleteDocument(1)
	if err != nil {
		t.Fatalf("deleteDocument() failed: %v", err)
	}
	if synthesized != nil {
		t.Error("Deleting from a multi-document room must not synthesize")
	}

	docs := room.snapshotDocuments()
	if len(docs) != 2 || docs[0].Name != "a" || docs[1].Name != "c" {
		t.Errorf("Expected [a c], got %+v", docs)
	}
}

func TestDocumentsNeverEmpty(t *testing.T) {
	room := newRoom("abc", nil)

	room.addDocument("x.py", "")
	for i := 0; i < 10; i++ {
		if _, err := room.deleteDocument(0); err != nil {
			t.Fatalf("delete %d failed: %v", i, err)
		}
		if len(room.snapshotDocuments()) == 0 {
			t.Fatal("Document list became empty")
		}
	}
}

func TestUniqueNamesInvariant(t *testing.T) {
	room := newRoom("abc", nil)

	for i := 0; i < 20; i++ {
		room.addDocument("main.py", "")
	}
	room.renameDocument(3, "app.py")
	room.deleteDocument(5)
	room.addDocument("app.py", "")

	seen := make(map[string]bool)
	for _, doc := range room.snapshotDocuments() {
		if seen[doc.Name] {
			t.Fatalf("Duplicate document name %q", doc.Name)
		}
		seen[doc.Name] = true
	}
}

func TestChatHistoryBounded(t *testing.T) {
	room := newRoom("abc", nil)

	total := maxChatMessagesPerRoom + 50
	for i := 0; i < total; i++ {
		room.appendChat(core.ChatMessage{Message: fmt.Sprintf("msg-%d", i)})
	}

	_, _, chat := room.join(core.Member{ConnID: "conn-1", Username: "alice"})
	if len(chat) != maxChatMessagesPerRoom {
		t.Fatalf("Expected %d retained messages, got %d", maxChatMessagesPerRoom, len(chat))
	}
	if chat[0].Message != "msg-50" {
		t.Errorf("Expected oldest retained message msg-50, got %q", chat[0].Message)
	}
	if chat[len(chat)-1].Message != fmt.Sprintf("msg-%d", total-1) {
		t.Errorf("Expected newest message last, got %q", chat[len(chat)-1].Message)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	room := newRoom("abc", nil)

	docs := room.snapshotDocuments()
	docs[0].Content = "mutated"

	if room.snapshotDocuments()[0].Content == "mutated" {
		t.Error("Snapshot must not alias internal state")
	}
}
