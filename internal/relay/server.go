// Package relay is the realtime fan-out engine: per-access-code rooms of
// connected sockets, with chat and permission events broadcast to every
// member of a room in the order the relay received them.
package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"techrepair-server/internal/metrics"
	"techrepair-server/internal/model"
	"techrepair-server/internal/store"
)

const (
	maxFrameSize = 64 * 1024
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

type Deps struct {
	Store *store.Store
	Log   zerolog.Logger
}

type Server struct {
	store *store.Store
	log   zerolog.Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]*room
}

// room is the ephemeral membership set for one access code. sendMu is the
// single ordering point: fan-outs to the room happen one at a time.
type room struct {
	sendMu  sync.Mutex
	members map[*conn]struct{}
}

func NewServer(deps Deps) *Server {
	return &Server{
		store: deps.Store,
		log:   deps.Log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]*room),
	}
}

// socket is the writable side of a participant connection. Tests substitute
// in-memory fakes.
type socket interface {
	WriteMessage(data []byte) error
	Close() error
}

type conn struct {
	id   string
	sock socket

	mu     sync.Mutex
	joined map[string]struct{} // access codes this conn has joined
}

func newConn(sock socket) *conn {
	return &conn{
		id:     uuid.NewString(),
		sock:   sock,
		joined: make(map[string]struct{}),
	}
}

func (cn *conn) joinedRooms() []string {
	cn.mu.Lock()
	defer cn.mu.Unlock()

	codes := make([]string, 0, len(cn.joined))
	for code := range cn.joined {
		codes = append(codes, code)
	}
	return codes
}

type wsSocket struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *wsSocket) WriteMessage(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

func (w *wsSocket) Close() error { return w.ws.Close() }

// Serve upgrades the request and runs the participant's read loop until
// disconnect.
func (s *Server) Serve(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	cn := newConn(&wsSocket{ws: ws})
	defer func() {
		s.disconnect(cn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(cn, data)
	}
}

func (s *Server) handleFrame(cn *conn, raw []byte) {
	env, err := parseEnvelope(raw)
	if err != nil {
		s.sendError(cn, "Invalid event")
		return
	}

	switch env.Event {
	case EventJoin:
		s.handleJoin(cn, env.Data)
	case EventMessage:
		s.handleMessage(cn, env.Data)
	case EventPermissionsUpdate:
		s.handlePermissionsUpdate(cn, env.Data)
	}
}

func (s *Server) handleJoin(cn *conn, data json.RawMessage) {
	var body struct {
		AccessCode string `json:"accessCode"`
		Type       string `json:"type"`
	}
	if json.Unmarshal(data, &body) != nil || body.AccessCode == "" {
		s.sendError(cn, "Invalid join request")
		return
	}

	if _, err := s.store.ValidByCode(body.AccessCode, time.Now().UnixMilli()); err != nil {
		s.sendError(cn, "Invalid or expired code")
		return
	}

	s.addMember(body.AccessCode, cn)

	event := EventClientJoined
	if body.Type == string(model.SenderTechnician) {
		event = EventTechnicianJoined
	}
	s.Broadcast(body.AccessCode, event, gin.H{"accessCode": body.AccessCode})
	s.log.Info().Str("room", body.AccessCode).Str("type", body.Type).Msg("participant joined room")
}

func (s *Server) handleMessage(cn *conn, data json.RawMessage) {
	var body struct {
		AccessCode string           `json:"accessCode"`
		Content    string           `json:"content"`
		SenderType model.SenderType `json:"senderType"`
	}
	if json.Unmarshal(data, &body) != nil || body.AccessCode == "" {
		s.sendError(cn, "Invalid message")
		return
	}

	msg, err := s.store.AppendMessage(body.AccessCode, body.SenderType, body.Content, time.Now().UnixMilli())
	if err != nil {
		s.sendError(cn, "Connection not found or inactive")
		return
	}

	metrics.MessagesRelayed.WithLabelValues("ws").Inc()
	s.Broadcast(body.AccessCode, EventMessage, gin.H{
		"content":    msg.Content,
		"senderType": msg.SenderType,
		"createdAt":  msg.CreatedAt,
	})
}

func (s *Server) handlePermissionsUpdate(cn *conn, data json.RawMessage) {
	var body struct {
		AccessCode  string                `json:"accessCode"`
		Permissions model.PermissionPatch `json:"permissions"`
	}
	if json.Unmarshal(data, &body) != nil || body.AccessCode == "" {
		s.sendError(cn, "Invalid permissions update")
		return
	}

	merged, err := s.store.MergePermissions(body.AccessCode, body.Permissions)
	if err != nil {
		s.sendError(cn, "Connection not found or inactive")
		return
	}

	s.Broadcast(body.AccessCode, EventPermissionsUpdated, gin.H{"permissions": merged})
}

func (s *Server) addMember(code string, cn *conn) {
	s.mu.Lock()
	rm, ok := s.rooms[code]
	if !ok {
		rm = &room{members: make(map[*conn]struct{})}
		s.rooms[code] = rm
		metrics.OpenRooms.Inc()
	}
	if _, already := rm.members[cn]; !already {
		rm.members[cn] = struct{}{}
		metrics.RoomParticipants.Inc()
	}
	s.mu.Unlock()

	cn.mu.Lock()
	cn.joined[code] = struct{}{}
	cn.mu.Unlock()
}

func (s *Server) removeMember(code string, cn *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[code]
	if !ok {
		return
	}
	if _, member := rm.members[cn]; !member {
		return
	}
	delete(rm.members, cn)
	metrics.RoomParticipants.Dec()
	if len(rm.members) == 0 {
		delete(s.rooms, code)
		metrics.OpenRooms.Dec()
	}
}

// disconnect tears the conn out of every room it joined and tells the
// remaining members. Room records in the store are untouched.
func (s *Server) disconnect(cn *conn) {
	for _, code := range cn.joinedRooms() {
		s.removeMember(code, cn)
		s.Broadcast(code, EventUserDisconnected, gin.H{"room": code})
	}
}

// Broadcast fans event out to every current member of the room for code,
// including the sender if joined. The HTTP chat path uses this too.
func (s *Server) Broadcast(code, event string, data any) {
	payload, err := buildEnvelope(event, data)
	if err != nil {
		return
	}

	s.mu.RLock()
	rm, ok := s.rooms[code]
	s.mu.RUnlock()
	if !ok {
		return
	}

	rm.sendMu.Lock()
	defer rm.sendMu.Unlock()

	s.mu.RLock()
	members := make([]*conn, 0, len(rm.members))
	for member := range rm.members {
		members = append(members, member)
	}
	s.mu.RUnlock()

	for _, member := range members {
		if err := member.sock.WriteMessage(payload); err != nil {
			// The member's read loop notices the closed socket and
			// runs the disconnect path.
			_ = member.sock.Close()
		}
	}
}

func (s *Server) sendError(cn *conn, msg string) {
	payload, err := buildEnvelope(EventError, gin.H{"message": msg})
	if err != nil {
		return
	}
	if err := cn.sock.WriteMessage(payload); err != nil {
		_ = cn.sock.Close()
	}
}
