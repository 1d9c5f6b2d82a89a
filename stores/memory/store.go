package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"codesync-server/core"
)

type roomStore struct {
	mu        sync.RWMutex
	snapshots map[string]core.RoomSnapshot
}

// NewRoomStore creates an in-memory store, the default when no durable
// backend is configured.
func NewRoomStore() core.RoomStore {
	return &roomStore{
		snapshots: make(map[string]core.RoomSnapshot),
	}
}

func (s *roomStore) Save(ctx context.Context, snapshot *core.RoomSnapshot) error {
	if snapshot.RoomID == "" {
		return fmt.Errorf("room id is required")
	}

	stored := *snapshot
	stored.Documents = append([]core.Document(nil), snapshot.Documents...)
	stored.UpdatedAt = time.Now()

	s.mu.Lock()
	s.snapshots[snapshot.RoomID] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id":   snapshot.RoomID,
		"documents": len(stored.Documents),
	}).Info("Room snapshot saved")
	return nil
}

func (s *roomStore) Load(ctx context.Context, roomID string) (*core.RoomSnapshot, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[roomID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
	}

	out := snap
	out.Documents = append([]core.Document(nil), snap.Documents...)
	return &out, nil
}

func (s *roomStore) Delete(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	delete(s.snapshots, roomID)
	s.mu.Unlock()
	return nil
}

func (s *roomStore) ListRooms(ctx context.Context) ([]core.RoomInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.RoomInfo, 0, len(s.snapshots))
	for id, snap := range s.snapshots {
		rooms = append(rooms, core.RoomInfo{ID: id, UpdatedAt: snap.UpdatedAt})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].UpdatedAt.Equal(rooms[j].UpdatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})

	return rooms, nil
}
