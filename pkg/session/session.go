// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session provides session management for the agent runtime.
//
// Sessions represent a series of interactions between a user and agents.
// Each session has:
//   - A unique identifier
//   - Associated app and user
//   - State (key-value store with scope prefixes)
//   - Event history
//
// State scoping. A key prefixed "app:" is shared by every session of the
// same AppName; a key prefixed "user:" is shared by every session of the
// same (AppName, UserID); a key prefixed "temp:" lives only for the
// invocation that wrote it and is never persisted past AppendEvent; an
// unprefixed key is session-local. State().Get/All present the merged view
// across all three stores; AppendEvent is the only path that durably
// commits a state delta, and it is the path that enforces the scoping and
// the temp: exclusion.
package session

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowloom/agentcore/pkg/agent"
)

// Session represents a conversation session between user and agents.
type Session interface {
	// ID returns the unique session identifier.
	ID() string

	// AppName returns the application name.
	AppName() string

	// UserID returns the user identifier.
	UserID() string

	// State returns the session state store (merged app/user/session view).
	State() agent.State

	// Events returns the session event history.
	Events() agent.Events

	// LastUpdateTime returns when the session was last modified.
	LastUpdateTime() time.Time
}

// Service manages session lifecycle and persistence.
type Service interface {
	// Get retrieves an existing session.
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)

	// Create creates a new session.
	Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error)

	// AppendEvent atomically: strips temp: keys from the event's state
	// delta before persisting it, splits the remainder into app/user/session
	// scopes, merges each scope into its store, recomputes the session's
	// merged state view, and appends the (sanitized) event to the log.
	AppendEvent(ctx context.Context, session Session, event *agent.Event) error

	// List returns sessions matching the filter criteria.
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)

	// Delete removes a session.
	Delete(ctx context.Context, req *DeleteRequest) error
}

// GetRequest contains parameters for retrieving a session.
type GetRequest struct {
	AppName   string
	UserID    string
	SessionID string

	// NumRecentEvents returns at most N most recent events.
	// Optional: if zero, returns all events.
	NumRecentEvents int

	// After returns events with timestamp >= the given time.
	// Optional: if zero, the filter is not applied.
	After time.Time
}

// GetResponse contains the retrieved session.
type GetResponse struct {
	Session Session
}

// CreateRequest contains parameters for creating a session.
type CreateRequest struct {
	AppName   string
	UserID    string
	SessionID string // Optional - generated if empty
	State     map[string]any
}

// CreateResponse contains the created session.
type CreateResponse struct {
	Session Session
}

// ListRequest contains parameters for listing sessions.
type ListRequest struct {
	AppName   string
	UserID    string
	PageSize  int
	PageToken string
}

// ListResponse contains the list of sessions.
type ListResponse struct {
	Sessions      []Session
	NextPageToken string
}

// DeleteRequest contains parameters for deleting a session.
type DeleteRequest struct {
	AppName   string
	UserID    string
	SessionID string
}

// State prefixes for scoping state keys.
const (
	// KeyPrefixApp is for app-level state (shared across all users/sessions).
	KeyPrefixApp = "app:"

	// KeyPrefixUser is for user-level state (shared across sessions for a user).
	KeyPrefixUser = "user:"

	// KeyPrefixTemp is for temporary state (discarded after invocation, never persisted).
	KeyPrefixTemp = "temp:"
)

// ErrStateKeyNotExist is returned when a state key doesn't exist.
var ErrStateKeyNotExist = errors.New("state key does not exist")

// ErrSessionNotFound is returned when a session doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrAmbiguousSession is returned when a session identifier resolves to more
// than one session. The in-memory service keys sessions by the unique
// (app, user, session id) tuple and can never produce this; backends with a
// looser index (e.g. session id alone) must return it from AppendEvent.
var ErrAmbiguousSession = errors.New("ambiguous session")

// scopedStore is a mutex-guarded key/value map used for one state scope.
type scopedStore struct {
	mu   sync.RWMutex
	data map[string]any
}

func newScopedStore() *scopedStore {
	return &scopedStore{data: make(map[string]any)}
}

func (s *scopedStore) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *scopedStore) set(key string, val any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
}

func (s *scopedStore) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *scopedStore) all(yield func(string, any) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if !yield(k, v) {
			return false
		}
	}
	return true
}

// scopeFor routes a state key to its owning store based on prefix.
func scopeFor(key string, app, user, local *scopedStore) *scopedStore {
	switch {
	case strings.HasPrefix(key, KeyPrefixApp):
		return app
	case strings.HasPrefix(key, KeyPrefixUser):
		return user
	default:
		// Unprefixed keys are session-local; temp: keys are also
		// session-local (they just never survive AppendEvent's sanitize step).
		return local
	}
}

// mergedState is the agent.State view exposed by a session: reads merge
// app/user/session-local scopes, writes route to the owning scope.
type mergedState struct {
	app, user, local *scopedStore
}

func (m *mergedState) Get(key string) (any, error) {
	store := scopeFor(key, m.app, m.user, m.local)
	v, ok := store.get(key)
	if !ok {
		return nil, ErrStateKeyNotExist
	}
	return v, nil
}

func (m *mergedState) Set(key string, val any) error {
	scopeFor(key, m.app, m.user, m.local).set(key, val)
	return nil
}

func (m *mergedState) Delete(key string) error {
	scopeFor(key, m.app, m.user, m.local).delete(key)
	return nil
}

func (m *mergedState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, store := range []*scopedStore{m.app, m.user, m.local} {
			if !store.all(yield) {
				return
			}
		}
	}
}

// ClearTempKeys removes all keys with the temp: prefix from the session-local
// scope. Called automatically by the runner after each invocation completes.
func (m *mergedState) ClearTempKeys() {
	m.local.mu.Lock()
	defer m.local.mu.Unlock()
	for key := range m.local.data {
		if strings.HasPrefix(key, KeyPrefixTemp) {
			delete(m.local.data, key)
		}
	}
}

// applyDelta applies every key/value in delta to its owning scope. A nil
// value is a tombstone (see agent's callbackState.Delete), so it deletes
// rather than sets a literal nil.
func (m *mergedState) applyDelta(delta map[string]any) {
	for key, val := range delta {
		if val == nil {
			_ = m.Delete(key)
			continue
		}
		_ = m.Set(key, val)
	}
}

// sanitizeDelta returns a copy of delta with temp: keys removed, per the
// invariant that a persisted event's state_delta never contains temp: keys.
func sanitizeDelta(delta map[string]any) map[string]any {
	if delta == nil {
		return nil
	}
	clean := make(map[string]any, len(delta))
	for k, v := range delta {
		if strings.HasPrefix(k, KeyPrefixTemp) {
			continue
		}
		clean[k] = v
	}
	return clean
}

// memorySession is an in-memory Session implementation.
type memorySession struct {
	id             string
	appName        string
	userID         string
	state          *mergedState
	events         *memoryEvents
	lastUpdateTime time.Time
	mu             sync.RWMutex
}

func (s *memorySession) ID() string      { return s.id }
func (s *memorySession) AppName() string { return s.appName }
func (s *memorySession) UserID() string  { return s.userID }
func (s *memorySession) State() agent.State {
	return s.state
}
func (s *memorySession) Events() agent.Events {
	return s.events
}
func (s *memorySession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdateTime
}

// withFilteredEvents returns a read-only view of the session whose event
// log honors the GetRequest's NumRecentEvents / After filters. State is
// shared with the live session; only the event window differs.
func (s *memorySession) withFilteredEvents(req *GetRequest) *memorySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events.snapshot()
	if !req.After.IsZero() {
		var kept []*agent.Event
		for _, ev := range events {
			if !ev.Timestamp.Before(req.After) {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	if req.NumRecentEvents > 0 && len(events) > req.NumRecentEvents {
		events = events[len(events)-req.NumRecentEvents:]
	}

	return &memorySession{
		id:             s.id,
		appName:        s.appName,
		userID:         s.userID,
		state:          s.state,
		events:         &memoryEvents{events: events},
		lastUpdateTime: s.lastUpdateTime,
	}
}

func (s *memorySession) appendEvent(event *agent.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.append(event)
	s.lastUpdateTime = time.Now()
}

// memoryEvents is an in-memory Events implementation.
type memoryEvents struct {
	events []*agent.Event
	mu     sync.RWMutex
}

func (e *memoryEvents) All() iter.Seq[*agent.Event] {
	return func(yield func(*agent.Event) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for _, ev := range e.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (e *memoryEvents) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events)
}

func (e *memoryEvents) At(i int) *agent.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.events) {
		return nil
	}
	return e.events[i]
}

func (e *memoryEvents) snapshot() []*agent.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*agent.Event{}, e.events...)
}

func (e *memoryEvents) append(event *agent.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

// InMemoryService returns an in-memory session service.
// Useful for testing and development.
func InMemoryService() Service {
	return &inMemoryService{
		sessions:   make(map[string]*memorySession),
		appStates:  make(map[string]*scopedStore),
		userStates: make(map[string]*scopedStore),
	}
}

// inMemoryService implements Service with app_states/user_states/sessions
// maps: app_states and user_states are shared across sessions; events live
// per session.
type inMemoryService struct {
	sessions   map[string]*memorySession
	appStates  map[string]*scopedStore
	userStates map[string]*scopedStore
	mu         sync.RWMutex
}

func (s *inMemoryService) sessionKey(appName, userID, sessionID string) string {
	return appName + ":" + userID + ":" + sessionID
}

func (s *inMemoryService) appStore(appName string) *scopedStore {
	store, ok := s.appStates[appName]
	if !ok {
		store = newScopedStore()
		s.appStates[appName] = store
	}
	return store
}

func (s *inMemoryService) userStore(appName, userID string) *scopedStore {
	key := appName + ":" + userID
	store, ok := s.userStates[key]
	if !ok {
		store = newScopedStore()
		s.userStates[key] = store
	}
	return store
}

func (s *inMemoryService) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.sessionKey(req.AppName, req.UserID, req.SessionID)
	session, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if req.NumRecentEvents > 0 || !req.After.IsZero() {
		return &GetResponse{Session: session.withFilteredEvents(req)}, nil
	}

	return &GetResponse{Session: session}, nil
}

func (s *inMemoryService) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	local := newScopedStore()
	st := &mergedState{
		app:   s.appStore(req.AppName),
		user:  s.userStore(req.AppName, req.UserID),
		local: local,
	}
	for k, v := range req.State {
		_ = st.Set(k, v)
	}

	session := &memorySession{
		id:             sessionID,
		appName:        req.AppName,
		userID:         req.UserID,
		state:          st,
		events:         &memoryEvents{},
		lastUpdateTime: time.Now(),
	}

	key := s.sessionKey(req.AppName, req.UserID, sessionID)
	s.sessions[key] = session

	return &CreateResponse{Session: session}, nil
}

func (s *inMemoryService) AppendEvent(ctx context.Context, session Session, event *agent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.sessionKey(session.AppName(), session.UserID(), session.ID())
	ms, ok := s.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}

	// (i)+(ii)+(iii): apply the full delta (including temp: keys, so reads
	// within the rest of this invocation see them), routed by scope prefix.
	ms.state.applyDelta(event.Actions.StateDelta)

	// (iv)+(v): persist a sanitized copy of the event - never the temp: keys -
	// then append it. Events are otherwise immutable once created by an
	// agent; this copy is the session service's own record, not a mutation
	// of the caller's Event.
	persisted := *event
	persisted.Actions.StateDelta = sanitizeDelta(event.Actions.StateDelta)
	ms.appendEvent(&persisted)

	return nil
}

func (s *inMemoryService) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []Session
	prefix := req.AppName + ":" + req.UserID + ":"

	for key, session := range s.sessions {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			sessions = append(sessions, session)
		}
	}

	return &ListResponse{Sessions: sessions}, nil
}

func (s *inMemoryService) Delete(ctx context.Context, req *DeleteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.sessionKey(req.AppName, req.UserID, req.SessionID)
	delete(s.sessions, key)
	return nil
}

var (
	_ Session      = (*memorySession)(nil)
	_ agent.State  = (*mergedState)(nil)
	_ agent.Events = (*memoryEvents)(nil)
	_ Service      = (*inMemoryService)(nil)
)
