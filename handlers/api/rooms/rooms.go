package rooms

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"codesync-server/core"
)

type (
	// RoomEngine is the slice of the live registry the HTTP API consumes.
	RoomEngine interface {
		ActiveRooms() map[string]int
		SaveSnapshot(ctx context.Context, roomID string) error
	}

	RoomEntry struct {
		ID        string     `json:"id"`
		Users     int        `json:"users"`
		UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	}
)

// HandleList merges live rooms (with member counts) and persisted rooms into
// one listing, busiest and most recently saved first.
func HandleList(engine RoomEngine, store core.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomMap := make(map[string]*RoomEntry)
		for id, users := range engine.ActiveRooms() {
			roomMap[id] = &RoomEntry{ID: id, Users: users}
		}

		if persisted, err := store.ListRooms(r.Context()); err != nil {
			logrus.WithError(err).Warn("Failed to list persisted rooms")
		} else {
			for _, info := range persisted {
				entry, exists := roomMap[info.ID]
				if !exists {
					entry = &RoomEntry{ID: info.ID}
					roomMap[info.ID] = entry
				}
				if !info.UpdatedAt.IsZero() {
					updatedAt := info.UpdatedAt
					entry.UpdatedAt = &updatedAt
				}
			}
		}

		roomList := make([]RoomEntry, 0, len(roomMap))
		for _, entry := range roomMap {
			roomList = append(roomList, *entry)
		}

		sort.Slice(roomList, func(i, j int) bool {
			if roomList[i].Users != roomList[j].Users {
				return roomList[i].Users > roomList[j].Users
			}
			ti, tj := time.Time{}, time.Time{}
			if roomList[i].UpdatedAt != nil {
				ti = *roomList[i].UpdatedAt
			}
			if roomList[j].UpdatedAt != nil {
				tj = *roomList[j].UpdatedAt
			}
			if ti.Equal(tj) {
				return roomList[i].ID < roomList[j].ID
			}
			return ti.After(tj)
		})

		render.JSON(w, r, roomList)
	}
}

// HandleSave persists the current documents of a live room.
func HandleSave(engine RoomEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		if err := engine.SaveSnapshot(r.Context(), roomID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				http.Error(w, "Room not active", http.StatusNotFound)
				return
			}
			logrus.WithError(err).WithField("room_id", roomID).Error("Failed to save room")
			http.Error(w, "Failed to save room", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleGetSnapshot returns the persisted snapshot of a room.
func HandleGetSnapshot(store core.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		snapshot, err := store.Load(r.Context(), roomID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				http.Error(w, "Room not found", http.StatusNotFound)
				return
			}
			logrus.WithError(err).WithField("room_id", roomID).Error("Failed to load room")
			http.Error(w, "Failed to load room", http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, snapshot)
	}
}

// HandleDelete removes the persisted snapshot of a room. Live room state is
// untouched; it is discarded only when the last member leaves.
func HandleDelete(store core.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		if err := store.Delete(r.Context(), roomID); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Error("Failed to delete room")
			http.Error(w, "Failed to delete room", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
