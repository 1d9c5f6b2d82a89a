// Package rooms implements the room synchronization engine: the process-wide
// registry of collaborative rooms, their membership, document lists, presence
// and chat state. Mutations to one room are serialized behind the room's own
// lock; different rooms proceed independently. Every mutation is fully applied
// to room state before any broadcast is scheduled.
package rooms

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"codesync-server/core"
	"codesync-server/protocol"
)

// Broadcaster is the fan-out port. Delivery is best effort: a recipient whose
// channel is mid-teardown may miss the event, and no retry is performed.
type Broadcaster interface {
	// ToRoom emits to every member of the room except exceptConnID. Pass an
	// empty exceptConnID to reach everyone.
	ToRoom(roomID, exceptConnID, event string, payload any)
	// ToConn emits to one specific connection.
	ToConn(connID, event string, payload any)
}

// Registry owns the table of active rooms and the connection-to-room mapping.
// Rooms are created lazily on first join and dropped once their last member
// leaves; only the RoomStore may retain content beyond that.
type Registry struct {
	store core.RoomStore
	cast  Broadcaster

	mu     sync.RWMutex
	rooms  map[string]*Room
	byConn map[string]string
}

func NewRegistry(store core.RoomStore, cast Broadcaster) *Registry {
	return &Registry{
		store:  store,
		cast:   cast,
		rooms:  make(map[string]*Room),
		byConn: make(map[string]string),
	}
}

// Join admits a connection to a room, creating the room if absent. New rooms
// are seeded from persisted state when the store has prior content for the
// id, otherwise with one default document. Returns membership and document
// snapshots for the new client; other members are notified separately.
// Joining the same room twice from one connection is a no-op returning the
// current snapshot.
func (reg *Registry) Join(ctx context.Context, roomID, connID, username string) (members []core.Member, docs []core.Document, chat []core.ChatMessage, err error) {
	log := logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": connID, "username": username})

	var room *Room
	for {
		// Seed lookup happens before any lock is taken so store latency never
		// stalls other rooms. The result is discarded if the room still
		// exists once the table lock is held.
		var seed []core.Document
		reg.mu.RLock()
		_, exists := reg.rooms[roomID]
		reg.mu.RUnlock()
		if !exists {
			if snap, loadErr := reg.store.Load(ctx, roomID); loadErr == nil && snap != nil {
				seed = snap.Documents
				log.WithField("documents", len(seed)).Info("Seeding room from persisted snapshot")
			}
		}

		reg.mu.Lock()
		if current, mapped := reg.byConn[connID]; mapped && current != roomID {
			reg.mu.Unlock()
			return nil, nil, nil, ErrAlreadyJoined
		}
		var ok bool
		room, ok = reg.rooms[roomID]
		if !ok && exists {
			// The room was deleted between the existence check and here.
			// Redo the seed lookup so persisted content is not lost to a
			// fresh default document.
			reg.mu.Unlock()
			continue
		}
		if !ok {
			room = newRoom(roomID, seed)
			reg.rooms[roomID] = room
			log.Info("Room created")
		}
		reg.byConn[connID] = roomID
		reg.mu.Unlock()
		break
	}

	members, docs, chat = room.join(core.Member{ConnID: connID, Username: username})
	reg.cast.ToRoom(roomID, connID, protocol.EventJoined, protocol.JoinedEvent{Clients: members})
	log.WithField("members", len(members)).Info("Member joined room")
	return members, docs, chat, nil
}

// Leave removes the connection from whichever room it belongs to and notifies
// the remaining members. The room is deleted once empty. Calling Leave for an
// unknown connection is a no-op, so explicit leave and transport disconnect
// can both funnel here.
func (reg *Registry) Leave(connID string) {
	reg.mu.Lock()
	roomID, mapped := reg.byConn[connID]
	if !mapped {
		reg.mu.Unlock()
		return
	}
	delete(reg.byConn, connID)
	room := reg.rooms[roomID]
	reg.mu.Unlock()

	if room == nil {
		return
	}

	removed, _, empty, ok := room.leave(connID)
	if !ok {
		return
	}

	log := logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": connID, "username": removed.Username})
	if empty {
		reg.mu.Lock()
		// Re-check under the table lock: a concurrent join may have revived
		// the room between leave and here. A join publishes its byConn entry
		// before touching room state, so a connection still mapped to the
		// room means an admission is in flight and the room must survive.
		if r, still := reg.rooms[roomID]; still && r == room && room.memberCount() == 0 && !reg.referencedLocked(roomID) {
			delete(reg.rooms, roomID)
			log.Info("Room deleted, last member left")
		}
		reg.mu.Unlock()
		return
	}

	reg.cast.ToRoom(roomID, connID, protocol.EventDisconnected, protocol.DisconnectedEvent{
		SocketID: removed.ConnID,
		Username: removed.Username,
	})
	log.Info("Member left room")
}

// Members returns the current membership of a room, nil if the room is not
// active.
func (reg *Registry) Members(roomID string) []core.Member {
	room := reg.lookup(roomID)
	if room == nil {
		return nil
	}
	return room.snapshotMembers()
}

// ActiveRooms reports member counts per live room.
func (reg *Registry) ActiveRooms() map[string]int {
	reg.mu.RLock()
	snapshot := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		snapshot = append(snapshot, room)
	}
	reg.mu.RUnlock()

	counts := make(map[string]int, len(snapshot))
	for _, room := range snapshot {
		counts[room.id] = room.memberCount()
	}
	return counts
}

// AddDocument appends a document to the room, resolving name collisions with
// a deterministic numeric suffix, and announces the final name to all
// members.
func (reg *Registry) AddDocument(roomID, name, content string) (core.Document, bool) {
	room := reg.lookup(roomID)
	if room == nil {
		return core.Document{}, false
	}
	doc := room.addDocument(name, content)
	reg.cast.ToRoom(roomID, "", protocol.EventFileAdded, protocol.FileAddedEvent{File: doc})
	logrus.WithFields(logrus.Fields{"room_id": roomID, "file": doc.Name}).Info("File added")
	return doc, true
}

// RenameDocument renames the document at index. Rejections go back to the
// requester only and never produce a room broadcast.
func (reg *Registry) RenameDocument(roomID string, index int, newName, requesterConnID string) {
	room := reg.lookup(roomID)
	if room == nil {
		return
	}
	if err := room.renameDocument(index, newName); err != nil {
		reg.reject(requesterConnID, protocol.EventRenameFile, index, err)
		return
	}
	reg.cast.ToRoom(roomID, "", protocol.EventFileRenamed, protocol.FileRenamedEvent{
		FileIndex: index,
		NewName:   newName,
	})
	logrus.WithFields(logrus.Fields{"room_id": roomID, "file_index": index, "new_name": newName}).Info("File renamed")
}

// DeleteDocument removes the document at index. Deleting the last document
// synthesizes a fresh default one, observable as a deletion followed by an
// addition.
func (reg *Registry) DeleteDocument(roomID string, index int, requesterConnID string) {
	room := reg.lookup(roomID)
	if room == nil {
		return
	}
	synthesized, err := room.deleteDocument(index)
	if err != nil {
		reg.reject(requesterConnID, protocol.EventDeleteFile, index, err)
		return
	}
	reg.cast.ToRoom(roomID, "", protocol.EventFileDeleted, protocol.FileDeletedEvent{FileIndex: index})
	if synthesized != nil {
		reg.cast.ToRoom(roomID, "", protocol.EventFileAdded, protocol.FileAddedEvent{File: *synthesized})
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "file_index": index}).Info("File deleted")
}

// ApplyEdit replaces the content of the document at index and fans the new
// content out to every member except the sender. An index removed by a
// concurrent delete is an expected race: the edit is dropped silently.
func (reg *Registry) ApplyEdit(roomID string, index int, content, senderConnID string) {
	room := reg.lookup(roomID)
	if room == nil {
		return
	}
	if !room.applyEdit(index, content) {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "file_index": index}).
			Debug("Edit for stale file index ignored")
		return
	}
	reg.cast.ToRoom(roomID, senderConnID, protocol.EventCodeChange, protocol.CodeChangeEvent{
		FileIndex: index,
		Code:      content,
	})
}

// SetCursor upserts the member's advisory cursor position and relays it to
// everyone else. Positions are not validated against document bounds; clients
// clamp locally.
func (reg *Registry) SetCursor(roomID, username string, cur core.CursorPosition, senderConnID string) {
	room := reg.lookup(roomID)
	if room == nil {
		return
	}
	room.setCursor(username, cur)
	reg.cast.ToRoom(roomID, senderConnID, protocol.EventCursorChange, protocol.CursorChangeEvent{
		Username: username,
		Cursor:   cur,
	})
}

// Cursor reports the last-known cursor of a member, ok=false when absent or
// stale-cleared.
func (reg *Registry) Cursor(roomID, username string) (core.CursorPosition, bool) {
	room := reg.lookup(roomID)
	if room == nil {
		return core.CursorPosition{}, false
	}
	return room.cursorFor(username)
}

// AppendChat records the message in the room's bounded history and relays it
// to all members, sender included; the client renders from the echo.
func (reg *Registry) AppendChat(roomID, username, message, timestamp string) {
	room := reg.lookup(roomID)
	if room == nil {
		return
	}
	room.appendChat(core.ChatMessage{
		ID:        ulid.Make().String(),
		Username:  username,
		Message:   message,
		Timestamp: timestamp,
	})
	reg.cast.ToRoom(roomID, "", protocol.EventChatMessage, protocol.ChatMessageEvent{
		Username:  username,
		Message:   message,
		Timestamp: timestamp,
	})
}

// SyncTo pushes the room's current document snapshot to one specific
// connection, used when a member explicitly re-syncs a newly joined peer.
// The target must itself be a member of the room.
func (reg *Registry) SyncTo(roomID, targetConnID string) {
	reg.mu.RLock()
	room := reg.rooms[roomID]
	targetRoom, mapped := reg.byConn[targetConnID]
	reg.mu.RUnlock()

	if room == nil || !mapped || targetRoom != roomID {
		return
	}
	reg.cast.ToConn(targetConnID, protocol.EventInitializeFiles, room.snapshotDocuments())
}

// SaveSnapshot persists the room's current documents through the store.
// Callers on the socket path run it on its own goroutine so persistence
// latency never blocks live collaboration.
func (reg *Registry) SaveSnapshot(ctx context.Context, roomID string) error {
	room := reg.lookup(roomID)
	if room == nil {
		return core.ErrNotFound
	}
	snap := &core.RoomSnapshot{RoomID: roomID, Documents: room.snapshotDocuments()}
	if err := reg.store.Save(ctx, snap); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to persist room snapshot")
		return err
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "documents": len(snap.Documents)}).Info("Room snapshot saved")
	return nil
}

// RestoreSnapshot replaces the room's documents with the persisted state and
// rebroadcasts the full list to every member.
func (reg *Registry) RestoreSnapshot(ctx context.Context, roomID string) error {
	room := reg.lookup(roomID)
	if room == nil {
		return core.ErrNotFound
	}
	snap, err := reg.store.Load(ctx, roomID)
	if err != nil {
		return err
	}
	docs := room.replaceDocuments(snap.Documents)
	reg.cast.ToRoom(roomID, "", protocol.EventInitializeFiles, docs)
	logrus.WithFields(logrus.Fields{"room_id": roomID, "documents": len(docs)}).Info("Room restored from snapshot")
	return nil
}

// referencedLocked reports whether any connection is still mapped to the
// room. Callers hold reg.mu.
func (reg *Registry) referencedLocked(roomID string) bool {
	for _, id := range reg.byConn {
		if id == roomID {
			return true
		}
	}
	return false
}

func (reg *Registry) lookup(roomID string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[roomID]
}

func (reg *Registry) reject(connID, op string, index int, err error) {
	if connID == "" {
		return
	}
	reg.cast.ToConn(connID, protocol.EventOpRejected, protocol.Rejection{
		Op:        op,
		FileIndex: index,
		Reason:    err.Error(),
	})
}
