package websocket

import (
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// ioRouter adapts the socket.io server to the rooms.Broadcaster port. Fan-out
// rides on socket.io rooms: every connection joins a room named by its own
// socket id plus the collaborative room it belongs to, so "all but sender" is
// an Except on the sender's personal room.
type ioRouter struct {
	srv *socketio.Server
}

func (r *ioRouter) ToRoom(roomID, exceptConnID, event string, payload any) {
	op := r.srv.In(socketio.Room(roomID))
	if exceptConnID != "" {
		op = op.Except(socketio.Room(exceptConnID))
	}
	_ = op.Emit(event, payload)
}

func (r *ioRouter) ToConn(connID, event string, payload any) {
	_ = r.srv.To(socketio.Room(connID)).Emit(event, payload)
}
