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
	"context"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	agentpkg "github.com/flowloom/agentcore/pkg/agent"
)

// Node is the base interface every graph node implements. This mirrors the
// tool package's Tool/CallableTool/StreamingTool layering: a plain Node is
// always callable; a node that also wants to surface incremental output in
// Messages-mode streams additionally implements StreamingNode.
type Node interface {
	// Execute runs the node once against a read-only state snapshot and
	// returns its updates, any custom events, and an optional dynamic
	// interrupt. Execute must not mutate ctx.State.
	Execute(ctx *NodeContext) (*NodeOutput, error)
}

// StreamingNode is implemented by nodes that can surface incremental output
// (e.g. an LLM agent's token deltas) for StreamMessages-mode runs. The
// StreamingTool interface documents the same pattern for tools; AgentNode is
// the canonical implementation here, wrapping an agent.Agent's event stream.
type StreamingNode interface {
	Node

	// ExecuteStream runs the node once, forwarding incremental chunks
	// through emit as they arrive, and returns the same NodeOutput Execute
	// would - one underlying execution serves both the live chunks and the
	// merge. When emit returns false the consumer has stopped; the node
	// abandons the run and returns (nil, nil).
	ExecuteStream(ctx *NodeContext, emit func(*StreamEvent) bool) (*NodeOutput, error)
}

// NodeContext is the read-only execution context handed to a node.
type NodeContext struct {
	context.Context

	// State is an immutable snapshot of the merged state before this
	// super-step's updates are applied.
	State State

	// Config is the run's execution configuration.
	Config ExecutionConfig

	// Step is the current super-step number (0-based).
	Step int
}

// Get is a convenience accessor over ctx.State.
func (c *NodeContext) Get(key string) (any, bool) {
	return c.State.Get(key)
}

// NodeOutput is what a node produces for one super-step.
type NodeOutput struct {
	// Updates are the channel writes this node wants to apply, keyed by
	// channel name. Applied by the executor via ApplyUpdates, not directly.
	Updates map[string]any

	// Events are custom StreamEvents surfaced verbatim in Debug/Custom
	// streaming modes.
	Events []*StreamEvent

	// Interrupt, if non-nil, is a dynamic interrupt: the executor suspends
	// without applying this super-step's updates.
	Interrupt *Interrupt

	// Goto optionally names an explicit successor, bypassing the graph's
	// static/conditional edge table for this node (used by nodes that
	// decide routing internally, e.g. an agent that calls a transfer tool).
	Goto string
}

// NewOutput starts an empty NodeOutput.
func NewOutput() *NodeOutput {
	return &NodeOutput{Updates: map[string]any{}}
}

// With records a channel update and returns the receiver for chaining.
func (o *NodeOutput) With(channel string, value any) *NodeOutput {
	o.Updates[channel] = value
	return o
}

// WithInterrupt attaches a dynamic interrupt and returns the receiver.
func (o *NodeOutput) WithInterrupt(i Interrupt) *NodeOutput {
	o.Interrupt = &i
	return o
}

// NodeFunc adapts a plain function to the Node interface, the graph
// equivalent of functiontool.New's "wrap a func" ergonomics.
type NodeFunc func(ctx *NodeContext) (*NodeOutput, error)

// Execute implements Node.
func (f NodeFunc) Execute(ctx *NodeContext) (*NodeOutput, error) { return f(ctx) }

// AgentNode wraps an agent.Agent as a graph node, the bridge that lets a
// node be an agent. The agent's user content is read from the InputChannel;
// its final text response is written to OutputChannel. When run under
// StreamMessages mode the agent's own partial events are forwarded as
// StreamEvent Message payloads.
type AgentNode struct {
	Agent agentpkg.Agent

	// InputChannel names the state channel holding the text to send the
	// agent (read once per super-step this node is scheduled). Empty means
	// the invocation context's own user content is used unchanged.
	InputChannel string

	// OutputChannel names the state channel the agent's final text response
	// is written to.
	OutputChannel string

	// InvocationContext builds the agent.InvocationContext for one call,
	// given the node context and the user content resolved from
	// InputChannel (nil when InputChannel is empty or unset in state);
	// supplied by the graph's caller since it requires session/runner
	// plumbing graph.Node has no opinion about.
	InvocationContext func(ctx *NodeContext, input *agentpkg.Content) agentpkg.InvocationContext
}

func (n *AgentNode) name() string { return n.Agent.Name() }

// input resolves the user content for one call from InputChannel.
func (n *AgentNode) input(ctx *NodeContext) *agentpkg.Content {
	if n.InputChannel == "" {
		return nil
	}
	v, ok := ctx.Get(n.InputChannel)
	if !ok {
		return nil
	}
	text, ok := v.(string)
	if !ok {
		return nil
	}
	return agentpkg.NewTextContent(text, a2a.MessageRoleUser)
}

// Execute runs the wrapped agent to completion and captures its final text.
func (n *AgentNode) Execute(ctx *NodeContext) (*NodeOutput, error) {
	return n.run(ctx, nil)
}

// ExecuteStream forwards the wrapped agent's partial events as Message
// StreamEvents while the same run produces the NodeOutput, satisfying
// StreamingNode.
func (n *AgentNode) ExecuteStream(ctx *NodeContext, emit func(*StreamEvent) bool) (*NodeOutput, error) {
	return n.run(ctx, emit)
}

func (n *AgentNode) run(ctx *NodeContext, emit func(*StreamEvent) bool) (*NodeOutput, error) {
	invCtx := n.InvocationContext(ctx, n.input(ctx))
	var text string
	for ev, err := range n.Agent.Run(invCtx) {
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		if emit != nil {
			if t := ev.TextContent(); t != "" {
				if !emit(messageEvent(n.name(), ctx.Step, t)) {
					return nil, nil
				}
			}
		}
		if ev.Partial {
			continue
		}
		if t := ev.TextContent(); t != "" {
			text = t
		}
	}
	return NewOutput().With(n.OutputChannel, text), nil
}

var _ Node = (*AgentNode)(nil)
var _ StreamingNode = (*AgentNode)(nil)
var _ Node = NodeFunc(nil)

// durationMillis is a tiny helper kept alongside node timing so executor.go
// and node.go agree on units (milliseconds).
func durationMillis(since time.Time) int64 {
	return time.Since(since).Milliseconds()
}
