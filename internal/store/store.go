// Package store holds the durable state of support sessions: the Connection
// records that the session state machine mutates and the per-session chat log.
// All mutations are conditional updates applied under the store lock, so the
// check-then-write races of a naive client cannot lose updates.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"techrepair-server/internal/accesscode"
	"techrepair-server/internal/model"
)

const maxGenerateAttempts = 100

type Store struct {
	mu sync.RWMutex

	connsByID map[string]model.Connection
	codeIndex map[string][]string // accessCode -> connection IDs, creation order

	messages *messageStore

	generateCode func() (string, error)
}

type Options struct {
	// GenerateCode overrides the access code source, for tests that need
	// deterministic or colliding codes.
	GenerateCode func() (string, error)
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	gen := opts.GenerateCode
	if gen == nil {
		gen = accesscode.Generate
	}
	return &Store{
		connsByID:    make(map[string]model.Connection),
		codeIndex:    make(map[string][]string),
		messages:     newMessageStore(),
		generateCode: gen,
	}
}

// CreateUnique mints a fresh access code, retrying on collision with any
// active unexpired session, and creates the Connection. Generation, the
// collision check and the insert all happen under the write lock, so two
// concurrent calls can never race the same code into existence.
func (s *Store) CreateUnique(ttl time.Duration, nowMillis int64) (model.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return model.Connection{}, err
		}
		if _, ok := s.activeByCodeLocked(code); ok {
			continue
		}
		conn := model.Connection{
			ID:         uuid.NewString(),
			AccessCode: code,
			Status:     model.StatusActive,
			CreatedAt:  nowMillis,
			ExpiresAt:  nowMillis + ttl.Milliseconds(),
		}
		s.insertLocked(conn)
		return conn, nil
	}
	return model.Connection{}, ErrCodeSpaceExhausted
}

// Create is the administrative create with caller-supplied fields.
func (s *Store) Create(conn model.Connection, nowMillis int64) (model.Connection, error) {
	if conn.AccessCode == "" || conn.ExpiresAt == 0 {
		return model.Connection{}, ErrValidation
	}
	if conn.Status == "" {
		conn.Status = model.StatusActive
	}
	if conn.Status != model.StatusActive && conn.Status != model.StatusCompleted {
		return model.Connection{}, ErrValidation
	}

	conn.ID = uuid.NewString()
	conn.CreatedAt = nowMillis

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(conn)
	return conn, nil
}

func (s *Store) insertLocked(conn model.Connection) {
	s.connsByID[conn.ID] = conn
	s.codeIndex[conn.AccessCode] = append(s.codeIndex[conn.AccessCode], conn.ID)
}

func (s *Store) Get(id string) (model.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connsByID[id]
	return conn, ok
}

func (s *Store) List() []model.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Connection, 0, len(s.connsByID))
	for _, conn := range s.connsByID {
		result = append(result, conn)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// UpdatePatch is the administrative field patch; nil fields keep their value.
type UpdatePatch struct {
	Technician  *string
	Status      *model.Status
	Permissions *model.PermissionPatch
	Description *string
	ExpiresAt   *int64
}

// Update applies an administrative patch. A completed session cannot be
// reopened; beyond that no state machine rules are enforced here.
func (s *Store) Update(id string, patch UpdatePatch) (model.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connsByID[id]
	if !ok {
		return model.Connection{}, ErrNotFound
	}

	if patch.Status != nil {
		next := *patch.Status
		if next != model.StatusActive && next != model.StatusCompleted {
			return model.Connection{}, ErrValidation
		}
		if conn.Status == model.StatusCompleted && next == model.StatusActive {
			return model.Connection{}, ErrInvalidState
		}
		conn.Status = next
	}
	if patch.Technician != nil {
		conn.Technician = *patch.Technician
	}
	if patch.Permissions != nil {
		conn.Permissions = conn.Permissions.Merge(*patch.Permissions)
	}
	if patch.Description != nil {
		conn.Description = *patch.Description
	}
	if patch.ExpiresAt != nil {
		conn.ExpiresAt = *patch.ExpiresAt
	}

	s.connsByID[id] = conn
	return conn, nil
}

// Delete removes a connection and its chat log. Administrative escape hatch;
// the session lifecycle never deletes records.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connsByID[id]
	if !ok {
		return false
	}
	delete(s.connsByID, id)

	ids := s.codeIndex[conn.AccessCode]
	for i, cid := range ids {
		if cid == id {
			s.codeIndex[conn.AccessCode] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.codeIndex[conn.AccessCode]) == 0 {
		delete(s.codeIndex, conn.AccessCode)
	}

	s.messages.deleteConnection(id)
	return true
}

func (s *Store) activeByCodeLocked(code string) (model.Connection, bool) {
	for _, id := range s.codeIndex[code] {
		conn := s.connsByID[id]
		if conn.Status == model.StatusActive {
			return conn, true
		}
	}
	return model.Connection{}, false
}

func (s *Store) latestByCodeLocked(code string) (model.Connection, bool) {
	ids := s.codeIndex[code]
	if len(ids) == 0 {
		return model.Connection{}, false
	}
	return s.connsByID[ids[len(ids)-1]], true
}

// ValidByCode is the read-only validation rule: the code must name an active
// connection whose expiry has not passed.
func (s *Store) ValidByCode(code string, nowMillis int64) (model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.activeByCodeLocked(code)
	if !ok {
		return model.Connection{}, ErrNotFound
	}
	if conn.ExpiredAt(nowMillis) {
		return model.Connection{}, ErrExpired
	}
	return conn, nil
}

// ActiveByCode checks status only, not expiry. The chat path deliberately
// keeps relaying for a session that expired mid-conversation.
func (s *Store) ActiveByCode(code string) (model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.activeByCodeLocked(code)
	if !ok {
		return model.Connection{}, ErrNotFound
	}
	return conn, nil
}

// BindTechnician claims an open session. The precondition check and the write
// happen under one lock acquisition, so of two concurrent binds exactly one
// succeeds and the other observes the technician slot taken.
func (s *Store) BindTechnician(code, technicianID string, nowMillis int64) (model.Connection, error) {
	if technicianID == "" {
		return model.Connection{}, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.activeByCodeLocked(code)
	if !ok {
		return model.Connection{}, ErrNotFound
	}
	if conn.ExpiredAt(nowMillis) {
		return model.Connection{}, ErrExpired
	}
	if conn.Technician != "" {
		return model.Connection{}, ErrAlreadyBound
	}

	conn.Technician = technicianID
	conn.StartTime = nowMillis
	s.connsByID[conn.ID] = conn
	return conn, nil
}

// MergePermissions folds a partial capability patch into the active session's
// stored permissions and returns the merged set.
func (s *Store) MergePermissions(code string, patch model.PermissionPatch) (model.Permissions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.activeByCodeLocked(code)
	if !ok {
		return model.Permissions{}, ErrNotFound
	}

	conn.Permissions = conn.Permissions.Merge(patch)
	s.connsByID[conn.ID] = conn
	return conn.Permissions, nil
}

// EndSession completes the active session for code. A second call finds no
// active connection and fails, leaving the recorded end untouched.
func (s *Store) EndSession(code, description string, nowMillis int64) (model.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.activeByCodeLocked(code)
	if !ok {
		return model.Connection{}, ErrNotFound
	}

	conn.Status = model.StatusCompleted
	conn.EndTime = nowMillis
	conn.Description = description
	s.connsByID[conn.ID] = conn
	return conn, nil
}

// History returns completed sessions, newest end first. An empty code means
// no filter.
func (s *Store) History(code string) []model.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Connection, 0)
	for _, conn := range s.connsByID {
		if conn.Status != model.StatusCompleted {
			continue
		}
		if code != "" && conn.AccessCode != code {
			continue
		}
		result = append(result, conn)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EndTime != result[j].EndTime {
			return result[i].EndTime > result[j].EndTime
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// AppendMessage records a chat message against the active session for code.
// Messages key on the connection's durable ID, so a code reused after expiry
// starts a fresh log. The lookup and the append happen under one lock
// acquisition, so a concurrent EndSession or Delete cannot interleave.
func (s *Store) AppendMessage(code string, sender model.SenderType, content string, nowMillis int64) (model.Message, error) {
	if content == "" || !model.ValidSenderType(sender) {
		return model.Message{}, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.activeByCodeLocked(code)
	if !ok {
		return model.Message{}, ErrNotFound
	}

	msg := model.Message{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		AccessCode:   code,
		SenderType:   sender,
		Content:      content,
		CreatedAt:    nowMillis,
	}
	s.messages.append(conn.ID, msg)
	return msg, nil
}

// ListMessages returns the chat log for the most recent connection created
// under code, oldest first.
func (s *Store) ListMessages(code string) ([]model.Message, error) {
	s.mu.RLock()
	conn, ok := s.latestByCodeLocked(code)
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.messages.list(conn.ID), nil
}
