// Package websocket is the connection gateway: it terminates one socket.io
// event channel per client, enforces join-before-anything, decodes payloads
// into the closed protocol set and dispatches them into the room registry.
package websocket

import (
	"context"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"codesync-server/core"
	"codesync-server/protocol"
	"codesync-server/rooms"
)

const storeTimeout = 10 * time.Second

// SetupSocketIO builds the socket server and the room registry wired to it.
func SetupSocketIO(store core.RoomStore) (*socketio.Server, *rooms.Registry) {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin: []any{
			localhostOrigin,
		},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)
	registry := rooms.NewRegistry(store, &ioRouter{srv: srv})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		bindSocket(socket, registry)
	})

	return srv, registry
}

func bindSocket(socket *socketio.Socket, registry *rooms.Registry) {
	sess := newSession(string(socket.Id()))
	log := logrus.WithField("conn_id", sess.connID)
	log.Debug("Connection established")

	leave := func() {
		roomID, first := sess.endLeave()
		if !first {
			return
		}
		registry.Leave(sess.connID)
		socket.Leave(socketio.Room(roomID))
	}

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On(protocol.EventJoin, func(datas ...any) {
		var p protocol.JoinPayload
		if err := protocol.Decode(datas, &p); err != nil || p.RoomID == "" {
			log.WithError(err).Warn("Discarding malformed join request")
			return
		}
		if p.Username == "" {
			p.Username = "Anonymous"
		}
		if !sess.beginJoin(p.RoomID, p.Username) {
			log.WithField("room_id", p.RoomID).Warn("Discarding join for already-bound connection")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		members, docs, chat, err := registry.Join(ctx, p.RoomID, sess.connID, p.Username)
		if err != nil {
			log.WithError(err).Warn("Join rejected")
			return
		}

		socket.Join(socketio.Room(p.RoomID))
		_ = socket.Emit(protocol.EventJoined, protocol.JoinedEvent{Clients: members})
		_ = socket.Emit(protocol.EventInitializeFiles, docs)
		if len(chat) > 0 {
			_ = socket.Emit(protocol.EventChatHistory, protocol.ChatHistoryEvent{Messages: chat})
		}
	})

	socket.On(protocol.EventCodeChange, func(datas ...any) {
		roomID, _, ok := sess.current()
		if !ok {
			log.Debug("Discarding code-change before join")
			return
		}
		var p protocol.CodeChangePayload
		if err := protocol.Decode(datas, &p); err != nil {
			log.WithError(err).Warn("Discarding malformed code-change")
			return
		}
		registry.ApplyEdit(roomID, p.FileIndex, p.Code, sess.connID)
	})

	socket.On(protocol.EventCursorChange, func(datas ...any) {
		roomID, username, ok := sess.current()
		if !ok {
			return
		}
		var p protocol.CursorChangePayload
		if err := protocol.Decode(datas, &p); err != nil {
			log.WithError(err).Warn("Discarding malformed cursor-change")
			return
		}
		registry.SetCursor(roomID, username, p.Cursor, sess.connID)
	})

	socket.On(protocol.EventAddFile, func(datas ...any) {
		roomID, _, ok := sess.current()
		if !ok {
			return
		}
		var p protocol.AddFilePayload
		if err := protocol.Decode(datas, &p); err != nil {
			log.WithError(err).Warn("Discarding malformed add-file")
			return
		}
		registry.AddDocument(roomID, p.File.Name, p.File.Content)
	})

	socket.On(protocol.EventRenameFile, func(datas ...any) {
		roomID, _, ok := sess.current()
		if !ok {
			return
		}
		var p protocol.RenameFilePayload
		if err := protocol.Decode(datas, &p); err != nil || p.NewName == "" {
			log.WithError(err).Warn("Discarding malformed rename-file")
			return
		}
		registry.RenameDocument(roomID, p.FileIndex, p.NewName, sess.connID)
	})

	socket.On(protocol.EventDeleteFile, func(datas ...any) {
		roomID, _, ok := sess.current()
		if !ok {
			return
		}
		var p protocol.DeleteFilePayload
		if err := protocol.Decode(datas, &p); err != nil {
			log.WithError(err).Warn("Discarding malformed delete-file")
			return
		}
		registry.DeleteDocument(roomID, p.FileIndex, sess.connID)
	})

	socket.On(protocol.EventChatMessage, func(datas ...any) {
		roomID, username, ok := sess.current()
		if !ok {
			return
		}
		var p protocol.ChatMessagePayload
		if err := protocol.Decode(datas, &p); err != nil || p.Message == "" {
			return
		}
		registry.AppendChat(roomID, username, p.Message, p.Timestamp)
	})

	socket.On(protocol.EventSyncCode, func(datas ...any) {
		roomID, _, ok := sess.current()
		if !ok {
			return
		}
		var p protocol.SyncCodePayload
		if err := protocol.Decode(datas, &p); err != nil || p.SocketID == "" {
			return
		}
		registry.SyncTo(roomID, p.SocketID)
	})

	socket.On(protocol.EventSaveSnapshot, func(datas ...any) {
		roomID, _, ok := sess.current()
		if !ok {
			return
		}
		// Off the socket goroutine: persistence latency must not stall the
		// connection's event stream.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			_ = registry.SaveSnapshot(ctx, roomID)
		}()
	})

	socket.On(protocol.EventRevertHistory, func(datas ...any) {
		roomID, _, ok := sess.current()
		if !ok {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := registry.RestoreSnapshot(ctx, roomID); err != nil {
				log.WithError(err).Warn("Failed to restore room from snapshot")
			}
		}()
	})

	socket.On(protocol.EventLeave, func(datas ...any) {
		leave()
	})

	socket.On("disconnecting", func(datas ...any) {
		leave()
	})

	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
	})
}
