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

import "maps"

// State is the typed mutable state dictionary threaded through a graph run.
// Keys are channel names; values are whatever the declared reducer for that
// channel accepts and produces.
type State map[string]any

// Clone returns a shallow copy of the state, safe to hand to a node as a
// read-only snapshot while the original is mutated by the executor.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Get returns the value for key and whether it was present.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Reducer merges an update into a channel's current value. prev is nil when
// the channel has not been written yet. Reducers MUST be pure: same
// (prev, update) in, same result out, no side effects.
//
// Reducers for channels whose updates may arrive from more than one node in
// a single super-step MUST also be associative, since the executor applies
// them in a fixed lexicographic order (see ApplyUpdates) rather than arrival
// order.
type Reducer func(prev, update any) any

// ChannelKind marks whether a channel may be written by more than one node
// in the same super-step.
type ChannelKind int

const (
	// Parallel channels may be written by any number of nodes in one
	// super-step; their reducer must be associative.
	Parallel ChannelKind = iota
	// Serial channels may be written by at most one node per super-step;
	// a second writer in the same step is a ConcurrentWriteConflict.
	Serial
)

// Channel declares one named slot in the schema.
type Channel struct {
	Reducer Reducer
	Kind    ChannelKind
}

// Schema is the up-front declaration of every channel a graph's state may
// contain: {channel_name -> reducer}. Applying an update for an unknown
// channel fails with ErrSchemaViolation.
type Schema map[string]Channel

// ReplaceReducer is the default reducer: the update replaces prev outright.
func ReplaceReducer() Reducer {
	return func(_ any, update any) any { return update }
}

// AppendReducer treats the channel as a list; update is appended. update may
// itself be a slice, in which case its elements are appended individually -
// this lets a single node contribute many items in one update.
func AppendReducer() Reducer {
	return func(prev, update any) any {
		var base []any
		if prev != nil {
			if existing, ok := prev.([]any); ok {
				base = existing
			}
		}
		switch u := update.(type) {
		case []any:
			return append(append([]any{}, base...), u...)
		default:
			return append(append([]any{}, base...), u)
		}
	}
}

// MergeMapReducer treats the channel as a map and shallow-merges update into
// prev; keys in update win.
func MergeMapReducer() Reducer {
	return func(prev, update any) any {
		merged := map[string]any{}
		if p, ok := prev.(map[string]any); ok {
			maps.Copy(merged, p)
		}
		if u, ok := update.(map[string]any); ok {
			maps.Copy(merged, u)
		}
		return merged
	}
}

// UnionSetReducer treats the channel as a set (represented as []any with no
// duplicates) and unions update into prev.
func UnionSetReducer() Reducer {
	return func(prev, update any) any {
		seen := map[any]bool{}
		var out []any
		add := func(v any) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
		if p, ok := prev.([]any); ok {
			for _, v := range p {
				add(v)
			}
		}
		switch u := update.(type) {
		case []any:
			for _, v := range u {
				add(v)
			}
		default:
			add(u)
		}
		return out
	}
}

// update is one pending write produced by a node during a super-step,
// identified by the (node, channel) pair the ordering rule in §4.3 sorts on.
type update struct {
	node    string
	channel string
	value   any
}

// ApplyUpdates merges a batch of updates into state according to schema,
// honoring the deterministic lexicographic (node_name, channel_name)
// ordering rule: sort before folding, so the
// result of a parallel super-step never depends on completion order.
//
// Serial channels written by more than one node in the same batch produce
// ErrConcurrentWriteConflict; the schema violation and conflict checks both
// run before any reducer is invoked, so a rejected batch never partially
// applies.
func ApplyUpdates(schema Schema, state State, updates []update) error {
	sortUpdates(updates)

	writers := map[string]int{}
	for _, u := range updates {
		ch, ok := schema[u.channel]
		if !ok {
			return &schemaViolationError{channel: u.channel}
		}
		writers[u.channel]++
		if ch.Kind == Serial && writers[u.channel] > 1 {
			return &concurrentWriteError{channel: u.channel}
		}
	}

	for _, u := range updates {
		ch := schema[u.channel]
		prev, _ := state.Get(u.channel)
		state[u.channel] = ch.Reducer(prev, u.value)
	}
	return nil
}

func sortUpdates(updates []update) {
	// Insertion sort: batches are small (one per frontier node per channel
	// touched), and this keeps the comparison explicit and allocation-free.
	for i := 1; i < len(updates); i++ {
		for j := i; j > 0 && less(updates[j], updates[j-1]); j-- {
			updates[j], updates[j-1] = updates[j-1], updates[j]
		}
	}
}

func less(a, b update) bool {
	if a.node != b.node {
		return a.node < b.node
	}
	return a.channel < b.channel
}

type schemaViolationError struct{ channel string }

func (e *schemaViolationError) Error() string {
	return ErrSchemaViolation.Error() + ": unknown channel " + e.channel
}
func (e *schemaViolationError) Unwrap() error { return ErrSchemaViolation }

type concurrentWriteError struct{ channel string }

func (e *concurrentWriteError) Error() string {
	return ErrConcurrentWriteConflict.Error() + ": channel " + e.channel
}
func (e *concurrentWriteError) Unwrap() error { return ErrConcurrentWriteConflict }
