package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"codesync-server/core"
)

const snapshotExt = ".json"

type fsStore struct {
	basePath string
}

// NewRoomStore creates a filesystem-backed store with one JSON file per room
// under basePath.
func NewRoomStore(basePath string) (core.RoomStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

// snapshotPath resolves the file for a room id, refusing ids that would
// escape the base directory. Room ids are client-supplied opaque strings.
func (s *fsStore) snapshotPath(roomID string) (string, error) {
	if roomID == "" || strings.ContainsAny(roomID, "/\\") || roomID == "." || roomID == ".." {
		return "", fmt.Errorf("invalid room id %q", roomID)
	}

	filePath := filepath.Join(s.basePath, roomID+snapshotExt)
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase) {
		return "", fmt.Errorf("invalid room id %q", roomID)
	}
	return filePath, nil
}

func (s *fsStore) Save(ctx context.Context, snapshot *core.RoomSnapshot) error {
	filePath, err := s.snapshotPath(snapshot.RoomID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"room_id": snapshot.RoomID, "path": filePath})

	stored := *snapshot
	stored.UpdatedAt = time.Now()
	data, err := json.Marshal(&stored)
	if err != nil {
		log.WithError(err).Error("Failed to marshal room snapshot")
		return err
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write room snapshot")
		return err
	}
	log.Info("Room snapshot saved")
	return nil
}

func (s *fsStore) Load(ctx context.Context, roomID string) (*core.RoomSnapshot, error) {
	filePath, err := s.snapshotPath(roomID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"room_id": roomID, "path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read room snapshot")
		return nil, err
	}

	var snapshot core.RoomSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		log.WithError(err).Error("Failed to unmarshal room snapshot")
		return nil, err
	}
	return &snapshot, nil
}

func (s *fsStore) Delete(ctx context.Context, roomID string) error {
	filePath, err := s.snapshotPath(roomID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *fsStore) ListRooms(ctx context.Context) ([]core.RoomInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []core.RoomInfo{}, nil
		}
		return nil, err
	}

	rooms := make([]core.RoomInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logrus.WithError(err).Warnf("Failed to stat %s, skipping", entry.Name())
			continue
		}
		rooms = append(rooms, core.RoomInfo{
			ID:        strings.TrimSuffix(entry.Name(), snapshotExt),
			UpdatedAt: info.ModTime(),
		})
	}
	return rooms, nil
}
