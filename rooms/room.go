package rooms

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"codesync-server/core"
)

var (
	ErrIndexOutOfRange = errors.New("file index out of range")
	ErrNameInUse       = errors.New("file name already in use")
	ErrAlreadyJoined   = errors.New("connection already joined to another room")
)

const maxChatMessagesPerRoom = 200

// Room holds the authoritative in-memory state of one collaborative session.
// All mutation happens under mu, one writer at a time; unrelated rooms never
// share a lock.
type Room struct {
	id string

	mu        sync.Mutex
	members   []core.Member
	documents []core.Document
	cursors   map[string]core.CursorPosition
	chat      []core.ChatMessage
}

func newRoom(id string, seed []core.Document) *Room {
	if len(seed) == 0 {
		seed = []core.Document{core.DefaultDocument()}
	}
	return &Room{
		id:        id,
		documents: seed,
		cursors:   make(map[string]core.CursorPosition),
	}
}

// join adds the member and returns membership and document snapshots for the
// new client to render locally. Re-joining with the same connection id is a
// no-op returning the current snapshot.
func (r *Room) join(m core.Member) (members []core.Member, docs []core.Document, chat []core.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, existing := range r.members {
		if existing.ConnID == m.ConnID {
			found = true
			break
		}
	}
	if !found {
		r.members = append(r.members, m)
	}
	return r.membersLocked(), r.documentsLocked(), r.chatLocked()
}

// leave removes the member, returning the removed entry, the remaining
// membership and whether the room is now empty. Unknown connections leave the
// room untouched.
func (r *Room) leave(connID string) (removed core.Member, remaining []core.Member, empty, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.ConnID == connID {
			removed = m
			r.members = append(r.members[:i], r.members[i+1:]...)
			delete(r.cursors, m.Username)
			return removed, r.membersLocked(), len(r.members) == 0, true
		}
	}
	return core.Member{}, r.membersLocked(), len(r.members) == 0, false
}

// addDocument appends a document, disambiguating the proposed name so no two
// documents in the room ever share one.
func (r *Room) addDocument(name, content string) core.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		name = core.DefaultDocument().Name
	}
	doc := core.Document{
		Name:         r.disambiguateLocked(name),
		Content:      content,
		LastModified: time.Now(),
	}
	r.documents = append(r.documents, doc)
	return doc
}

// renameDocument updates a document name in place. Content and position are
// unchanged. Rejected on a stale index or a collision with another document.
func (r *Room) renameDocument(index int, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.documents) {
		return ErrIndexOutOfRange
	}
	for i, doc := range r.documents {
		if i != index && doc.Name == newName {
			return ErrNameInUse
		}
	}
	r.documents[index].Name = newName
	r.documents[index].LastModified = time.Now()
	return nil
}

// deleteDocument removes the entry at index. If the list would become empty a
// default document is synthesized first, so the room invariant holds at every
// observable point. The synthesized document, if any, is returned.
func (r *Room) deleteDocument(index int) (*core.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.documents) {
		return nil, ErrIndexOutOfRange
	}
	r.documents = append(r.documents[:index], r.documents[index+1:]...)
	if len(r.documents) > 0 {
		return nil, nil
	}
	synthesized := core.DefaultDocument()
	r.documents = []core.Document{synthesized}
	return &synthesized, nil
}

// applyEdit replaces the whole content of the document at index, last write
// wins. A stale index is an expected race with a concurrent delete, reported
// as applied=false rather than an error.
func (r *Room) applyEdit(index int, content string) (applied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.documents) {
		return false
	}
	r.documents[index].Content = content
	r.documents[index].LastModified = time.Now()
	return true
}

func (r *Room) setCursor(username string, cur core.CursorPosition) {
	r.mu.Lock()
	r.cursors[username] = cur
	r.mu.Unlock()
}

func (r *Room) appendChat(msg core.ChatMessage) {
	r.mu.Lock()
	r.chat = append(r.chat, msg)
	if len(r.chat) > maxChatMessagesPerRoom {
		r.chat = r.chat[len(r.chat)-maxChatMessagesPerRoom:]
	}
	r.mu.Unlock()
}

// replaceDocuments swaps in a restored document list wholesale.
func (r *Room) replaceDocuments(docs []core.Document) []core.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(docs) == 0 {
		docs = []core.Document{core.DefaultDocument()}
	}
	r.documents = append([]core.Document(nil), docs...)
	return r.documentsLocked()
}

func (r *Room) snapshotDocuments() []core.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.documentsLocked()
}

func (r *Room) snapshotMembers() []core.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

func (r *Room) cursorFor(username string) (core.CursorPosition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.cursors[username]
	return cur, ok
}

func (r *Room) memberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) membersLocked() []core.Member {
	return append([]core.Member(nil), r.members...)
}

func (r *Room) documentsLocked() []core.Document {
	return append([]core.Document(nil), r.documents...)
}

func (r *Room) chatLocked() []core.ChatMessage {
	return append([]core.ChatMessage(nil), r.chat...)
}

// disambiguateLocked resolves name collisions deterministically: the stem
// gets a numeric suffix, smallest first, until the name is unused
// (main.py, main_1.py, main_2.py, ...).
func (r *Room) disambiguateLocked(proposed string) string {
	taken := make(map[string]bool, len(r.documents))
	for _, doc := range r.documents {
		taken[doc.Name] = true
	}
	if !taken[proposed] {
		return proposed
	}

	ext := path.Ext(proposed)
	stem := strings.TrimSuffix(proposed, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
