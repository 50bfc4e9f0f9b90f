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

// StreamMode selects which events Stream emits.
type StreamMode int

const (
	// StreamValues emits the full merged state after each super-step.
	StreamValues StreamMode = iota
	// StreamUpdates emits (step, executed_nodes) after each super-step.
	StreamUpdates
	// StreamDebug emits NodeStart before each node, NodeEnd after, plus
	// Values-style state events.
	StreamDebug
	// StreamMessages emits raw token deltas from StreamingNode nodes,
	// interleaved with NodeStart/NodeEnd.
	StreamMessages
)

// EventType identifies the kind of payload carried by a StreamEvent, per
// the stream event envelope.
type EventType string

const (
	EventState        EventType = "state"
	EventUpdates      EventType = "updates"
	EventNodeStart    EventType = "node_start"
	EventNodeEnd      EventType = "node_end"
	EventMessage      EventType = "message"
	EventInterrupted  EventType = "interrupted"
	EventDone         EventType = "done"
	EventStepComplete EventType = "step_complete"
)

// StreamEvent is the envelope type emitted by a running graph:
// {type, step, ...payload}. The JSON form is what a host would write to an
// SSE response or a local channel.
type StreamEvent struct {
	Type EventType `json:"type"`
	Step int       `json:"step"`

	// Node is set for node_start/node_end/message events.
	Node string `json:"node,omitempty"`

	// DurationMillis is set for node_end events.
	DurationMillis int64 `json:"duration_ms,omitempty"`

	// State is set for state/done events (full merged snapshot).
	State State `json:"state,omitempty"`

	// ExecutedNodes is set for updates/step_complete events.
	ExecutedNodes []string `json:"executed_nodes,omitempty"`

	// Text is set for message events (one token/delta chunk).
	Text string `json:"text,omitempty"`

	// Interrupt is set for interrupted events.
	Interrupt *Interrupt `json:"interrupt,omitempty"`

	// CheckpointID is set for interrupted events that produced a checkpoint.
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

func stateEvent(step int, state State) *StreamEvent {
	return &StreamEvent{Type: EventState, Step: step, State: state}
}

func updatesEvent(step int, nodes []string) *StreamEvent {
	return &StreamEvent{Type: EventUpdates, Step: step, ExecutedNodes: nodes}
}

func stepCompleteEvent(step int, nodes []string) *StreamEvent {
	return &StreamEvent{Type: EventStepComplete, Step: step, ExecutedNodes: nodes}
}

func nodeStartEvent(node string, step int) *StreamEvent {
	return &StreamEvent{Type: EventNodeStart, Step: step, Node: node}
}

func nodeEndEvent(node string, step int, durationMs int64) *StreamEvent {
	return &StreamEvent{Type: EventNodeEnd, Step: step, Node: node, DurationMillis: durationMs}
}

func messageEvent(node string, step int, text string) *StreamEvent {
	return &StreamEvent{Type: EventMessage, Step: step, Node: node, Text: text}
}

func doneEvent(step int, state State) *StreamEvent {
	return &StreamEvent{Type: EventDone, Step: step, State: state}
}

func interruptedEvent(step int, interrupt Interrupt, checkpointID string) *StreamEvent {
	return &StreamEvent{Type: EventInterrupted, Step: step, Interrupt: &interrupt, CheckpointID: checkpointID}
}
