package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"codesync-server/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewRoomStore creates a SQLite-backed store. The schema is created on open.
func NewRoomStore(dataSourceName string) (core.RoomStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	stmt := `CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		documents BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(stmt); err != nil {
		return nil, fmt.Errorf("failed to create rooms table: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(ctx context.Context, snapshot *core.RoomSnapshot) error {
	if snapshot.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	log := logrus.WithFields(logrus.Fields{
		"room_id":   snapshot.RoomID,
		"documents": len(snapshot.Documents),
	})

	data, err := json.Marshal(snapshot.Documents)
	if err != nil {
		log.WithError(err).Error("Failed to marshal documents")
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, documents, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET documents = excluded.documents, updated_at = excluded.updated_at`,
		snapshot.RoomID, data, time.Now().UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to save room snapshot")
		return err
	}
	log.Info("Room snapshot saved")
	return nil
}

func (s *sqliteStore) Load(ctx context.Context, roomID string) (*core.RoomSnapshot, error) {
	log := logrus.WithField("room_id", roomID)
	log.Debug("Loading room snapshot")

	var data []byte
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT documents, updated_at FROM rooms WHERE id = ?", roomID).Scan(&data, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to load room snapshot")
		return nil, err
	}

	var docs []core.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		log.WithError(err).Error("Failed to unmarshal documents")
		return nil, err
	}

	return &core.RoomSnapshot{
		RoomID:    roomID,
		Documents: docs,
		UpdatedAt: time.UnixMilli(updatedAt),
	}, nil
}

func (s *sqliteStore) Delete(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", roomID)
	return err
}

func (s *sqliteStore) ListRooms(ctx context.Context) ([]core.RoomInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, updated_at FROM rooms ORDER BY updated_at DESC, id ASC")
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close room rows")
		}
	}()

	var rooms []core.RoomInfo
	for rows.Next() {
		var id string
		var updatedAt int64
		if err := rows.Scan(&id, &updatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, core.RoomInfo{ID: id, UpdatedAt: time.UnixMilli(updatedAt)})
	}
	return rooms, rows.Err()
}
