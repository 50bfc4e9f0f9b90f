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

import "time"

// Checkpoint is a (thread_id, step, state, pending_nodes, parent_step?)
// snapshot. Checkpoints form an append-only per-thread chain; ParentStep is
// zero unless the checkpoint branches off an earlier one.
type Checkpoint struct {
	ID           string
	ThreadID     string
	Step         int
	State        State
	PendingNodes []string
	ParentStep   int
	CreatedAt    time.Time
}

// Store is the minimal checkpointer contract.
type Store interface {
	// Save persists checkpoint, returning its id. Idempotent on
	// (ThreadID, Step): a second Save for the same pair overwrites only the
	// state/pending set, never the step ordinal.
	Save(checkpoint *Checkpoint) (string, error)

	// Load returns the latest checkpoint for thread, or (nil, nil) if none
	// exists yet.
	Load(threadID string) (*Checkpoint, error)

	// LoadByID returns the checkpoint with the given id, or
	// ErrCheckpointNotFound.
	LoadByID(checkpointID string) (*Checkpoint, error)

	// List returns every checkpoint for thread, oldest first.
	List(threadID string) ([]*Checkpoint, error)
}
