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
	"errors"
	"fmt"
)

// ErrSchemaViolation is returned when an update targets a channel that was
// not declared in the graph's Schema.
var ErrSchemaViolation = errors.New("graph: schema violation")

// ErrConcurrentWriteConflict is returned when more than one node in the same
// super-step writes to a channel declared "serial".
var ErrConcurrentWriteConflict = errors.New("graph: concurrent write to serial channel")

// ErrRecursionLimitExceeded is returned when the super-step counter reaches
// the configured recursion limit before the graph terminates.
type ErrRecursionLimitExceeded struct {
	Step int
}

func (e *ErrRecursionLimitExceeded) Error() string {
	return fmt.Sprintf("graph: recursion limit exceeded at step %d", e.Step)
}

// ErrNodeExecutionFailed is returned when a frontier node's execution
// returns an error; no updates from that super-step are applied.
type ErrNodeExecutionFailed struct {
	Node    string
	Message string
}

func (e *ErrNodeExecutionFailed) Error() string {
	return fmt.Sprintf("graph: node %q failed: %s", e.Node, e.Message)
}

func (e *ErrNodeExecutionFailed) Unwrap() error {
	return errors.New(e.Message)
}

// CheckpointUnavailable wraps a transient checkpoint store failure; callers
// may retry.
type CheckpointUnavailable struct {
	Err error
}

func (e *CheckpointUnavailable) Error() string {
	return fmt.Sprintf("graph: checkpoint store unavailable: %v", e.Err)
}

func (e *CheckpointUnavailable) Unwrap() error { return e.Err }

// CheckpointCorrupt wraps a fatal checkpoint decode failure; callers MUST
// NOT resume from it.
type CheckpointCorrupt struct {
	Err error
}

func (e *CheckpointCorrupt) Error() string {
	return fmt.Sprintf("graph: checkpoint corrupt: %v", e.Err)
}

func (e *CheckpointCorrupt) Unwrap() error { return e.Err }

// ErrCheckpointNotFound is returned by Store.LoadByID when no checkpoint
// matches the given id.
var ErrCheckpointNotFound = errors.New("graph: checkpoint not found")

// InterruptedError is the non-error suspension returned by Invoke/Stream
// when a static or dynamic interrupt fires. It is intentionally NOT an
// "error in the executor" - callers type-assert for it rather
// than treating it as a run failure.
type InterruptedError struct {
	ThreadID     string
	CheckpointID string
	Interrupt    Interrupt
	State        State
	Step         int
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("graph: interrupted at step %d: %s", e.Step, e.Interrupt)
}
