package ws

import (
	"sync"
)

// Registry tracks active connections keyed by (userID, connID) and the
// conversation rooms each connection is subscribed to. A user is online
// while the set of their connections is non-empty; fan-out hits every
// connection in a room. State is process-local; the broker bridge carries
// events across instances.
type Registry struct {
	mu        sync.RWMutex
	users     map[int]map[string]*Connection    // userID -> connID -> conn
	rooms     map[int]map[string]*Connection    // conversationID -> connID -> conn
	connRooms map[string]map[int]struct{}       // connID -> set of conversationIDs
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:     make(map[int]map[string]*Connection),
		rooms:     make(map[int]map[string]*Connection),
		connRooms: make(map[string]map[int]struct{}),
	}
}

// Add registers a connection and reports whether it brought the user online.
func (r *Registry) Add(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.users[conn.UserID]
	if conns == nil {
		conns = make(map[string]*Connection)
		r.users[conn.UserID] = conns
	}
	wasOffline := len(conns) == 0
	conns[conn.ID] = conn
	r.connRooms[conn.ID] = make(map[int]struct{})
	return wasOffline
}

// Remove deregisters a connection, leaving all its rooms, and reports
// whether the user went offline with it.
func (r *Registry) Remove(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.connRooms[conn.ID] {
		r.leaveLocked(conversationID, conn.ID)
	}
	delete(r.connRooms, conn.ID)

	conns := r.users[conn.UserID]
	if conns == nil {
		return false
	}
	delete(conns, conn.ID)
	if len(conns) == 0 {
		delete(r.users, conn.UserID)
		return true
	}
	return false
}

// Join subscribes the connection to a conversation room.
func (r *Registry) Join(conversationID int, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, tracked := r.connRooms[conn.ID]; !tracked {
		return
	}
	room := r.rooms[conversationID]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[conversationID] = room
	}
	room[conn.ID] = conn
	r.connRooms[conn.ID][conversationID] = struct{}{}
}

// Leave unsubscribes the connection from a conversation room.
func (r *Registry) Leave(conversationID int, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conversationID, conn.ID)
	if memberships, ok := r.connRooms[conn.ID]; ok {
		delete(memberships, conversationID)
	}
}

func (r *Registry) leaveLocked(conversationID int, connID string) {
	room := r.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, conversationID)
	}
}

// BroadcastRoom delivers payload to every connection in the room, skipping
// excludeUserID when non-zero. Returns the delivered count.
func (r *Registry) BroadcastRoom(conversationID int, payload []byte, excludeUserID int) int {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.rooms[conversationID]))
	for _, conn := range r.rooms[conversationID] {
		if excludeUserID != 0 && conn.UserID == excludeUserID {
			continue
		}
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// SendToUser delivers payload to every connection of one user.
func (r *Registry) SendToUser(userID int, payload []byte) int {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.users[userID]))
	for _, conn := range r.users[userID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// IsOnline reports whether the user has at least one active connection.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineCount returns the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
