// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation, the checkpointer
// analogue of session.InMemoryService: the default backend for tests,
// development, and hosts that do not need checkpoints to survive a
// process restart.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*Checkpoint
	byKey   map[string]*Checkpoint   // (thread_id, step) -> checkpoint
	threads map[string][]*Checkpoint // per-thread chain, oldest first
	latest  map[string]*Checkpoint   // most recently saved per thread
}

// NewMemoryStore returns an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    map[string]*Checkpoint{},
		byKey:   map[string]*Checkpoint{},
		threads: map[string][]*Checkpoint{},
		latest:  map[string]*Checkpoint{},
	}
}

func checkpointKey(threadID string, step int) string {
	return fmt.Sprintf("%s\x00%d", threadID, step)
}

// Save persists checkpoint, returning its id. Idempotent on
// (ThreadID, Step): a second Save for the same pair overwrites the state,
// pending set, and parent step in place, keeping the id and the
// checkpoint's position in the thread chain.
func (s *MemoryStore) Save(cp *Checkpoint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := checkpointKey(cp.ThreadID, cp.Step)
	if existing, ok := s.byKey[key]; ok {
		existing.State = cp.State.Clone()
		existing.PendingNodes = append([]string{}, cp.PendingNodes...)
		existing.ParentStep = cp.ParentStep
		existing.CreatedAt = cp.CreatedAt
		s.latest[cp.ThreadID] = existing
		return existing.ID, nil
	}

	stored := &Checkpoint{
		ID:           cp.ID,
		ThreadID:     cp.ThreadID,
		Step:         cp.Step,
		State:        cp.State.Clone(),
		PendingNodes: append([]string{}, cp.PendingNodes...),
		ParentStep:   cp.ParentStep,
		CreatedAt:    cp.CreatedAt,
	}
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.byID[stored.ID] = stored
	s.byKey[key] = stored
	s.threads[cp.ThreadID] = append(s.threads[cp.ThreadID], stored)
	s.latest[cp.ThreadID] = stored
	return stored.ID, nil
}

// Load returns the most recently saved checkpoint for thread, or
// (nil, nil) if none exists yet.
func (s *MemoryStore) Load(threadID string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[threadID], nil
}

// LoadByID returns the checkpoint with the given id, or
// ErrCheckpointNotFound.
func (s *MemoryStore) LoadByID(checkpointID string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.byID[checkpointID]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	return cp, nil
}

// List returns every checkpoint for thread, oldest first.
func (s *MemoryStore) List(threadID string) ([]*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Checkpoint{}, s.threads[threadID]...), nil
}

var _ Store = (*MemoryStore)(nil)
