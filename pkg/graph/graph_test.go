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

package graph_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/graph"
)

// S1: START -> set_value -> END; set_value writes value=42.
func TestInvoke_SimpleSequential(t *testing.T) {
	store := graph.NewMemoryStore()
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("set_value", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("value", 42), nil
	}))
	g.AddEdge(graph.Start, "set_value")
	g.AddEdge("set_value", graph.End)
	g = g.WithCheckpointer(store)
	compiled, err := g.Compile()
	require.NoError(t, err)

	state, err := compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "s1"})
	require.NoError(t, err)
	require.Equal(t, 42, state["value"])

	cps, err := store.List("s1")
	require.NoError(t, err)
	require.Len(t, cps, 1)
}

// S2: START -> step1 -> step2 -> END; step1 writes value=1, step2 writes
// value=current+10. Final state: {value: 11}.
func TestInvoke_SequentialAccumulation(t *testing.T) {
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("step1", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("value", 1), nil
	}))
	g.AddNode("step2", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		current, _ := ctx.Get("value")
		return graph.NewOutput().With("value", current.(int)+10), nil
	}))
	g.AddEdge(graph.Start, "step1")
	g.AddEdge("step1", "step2")
	g.AddEdge("step2", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	state, err := compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "s2"})
	require.NoError(t, err)
	require.Equal(t, 11, state["value"])
}

// S3: conditional routing on a "path" input channel.
func TestInvoke_ConditionalRouting(t *testing.T) {
	schema := graph.Schema{
		"path":   {Reducer: graph.ReplaceReducer()},
		"result": {Reducer: graph.ReplaceReducer()},
	}
	build := func() *graph.CompiledGraph {
		g := graph.NewStateGraph(schema)
		g.AddNode("router", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
			return graph.NewOutput(), nil
		}))
		g.AddNode("path_a", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
			return graph.NewOutput().With("result", "went to A"), nil
		}))
		g.AddNode("path_b", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
			return graph.NewOutput().With("result", "went to B"), nil
		}))
		g.AddEdge(graph.Start, "router")
		g.AddConditionalEdges("router", func(state graph.State) string {
			v, _ := state.Get("path")
			s, _ := v.(string)
			return s
		}, map[string]string{"a": "path_a", "b": "path_b"})
		g.AddEdge("path_a", graph.End)
		g.AddEdge("path_b", graph.End)
		compiled, err := g.Compile()
		require.NoError(t, err)
		return compiled
	}

	compiledA := build()
	stateA, err := compiledA.Invoke(context.Background(), graph.State{"path": "a"}, graph.ExecutionConfig{ThreadID: "s3a"})
	require.NoError(t, err)
	require.Equal(t, "went to A", stateA["result"])

	compiledB := build()
	stateB, err := compiledB.Invoke(context.Background(), graph.State{"path": "b"}, graph.ExecutionConfig{ThreadID: "s3b"})
	require.NoError(t, err)
	require.Equal(t, "went to B", stateB["result"])
}

// S4: bounded cycle - increment self-loops while count<5, else END.
func TestInvoke_BoundedCycle(t *testing.T) {
	g := graph.NewStateGraph(graph.Schema{"count": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("increment", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		v, ok := ctx.Get("count")
		n := 0
		if ok {
			n = v.(int)
		}
		return graph.NewOutput().With("count", n+1), nil
	}))
	g.AddEdge(graph.Start, "increment")
	g.AddConditionalEdges("increment", func(state graph.State) string {
		v, _ := state.Get("count")
		if v.(int) < 5 {
			return "again"
		}
		return "done"
	}, map[string]string{"again": "increment", "done": graph.End})
	compiled, err := g.Compile()
	require.NoError(t, err)

	state, err := compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "s4"})
	require.NoError(t, err)
	require.Equal(t, 5, state["count"])
}

// S5: router always loops; recursion_limit=10 must fail with
// ErrRecursionLimitExceeded(10), and the run's checkpoint chain carries 10
// entries (steps 0..9) by the time the limit trips.
func TestInvoke_RecursionLimitExceeded(t *testing.T) {
	store := graph.NewMemoryStore()
	g := graph.NewStateGraph(graph.Schema{"count": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("increment", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		v, ok := ctx.Get("count")
		n := 0
		if ok {
			n = v.(int)
		}
		return graph.NewOutput().With("count", n+1), nil
	}))
	g.AddEdge(graph.Start, "increment")
	g.AddConditionalEdges("increment", func(state graph.State) string {
		return "again"
	}, map[string]string{"again": "increment"})
	g = g.WithCheckpointer(store).WithRecursionLimit(10)
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "s5"})
	require.Error(t, err)
	var limitErr *graph.ErrRecursionLimitExceeded
	require.True(t, errors.As(err, &limitErr))
	require.Equal(t, 10, limitErr.Step)

	cps, err := store.List("s5")
	require.NoError(t, err)
	require.Len(t, cps, 10)
}

// S7: interrupt_before B suspends after A's updates are visible; resuming
// from the returned checkpoint proceeds through B to a final state equal to
// an uninterrupted run.
func TestInvoke_InterruptAndResume(t *testing.T) {
	build := func(store graph.Store) *graph.CompiledGraph {
		g := graph.NewStateGraph(graph.Schema{"trace": {Reducer: graph.AppendReducer()}})
		g.AddNode("A", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
			return graph.NewOutput().With("trace", "A"), nil
		}))
		g.AddNode("B", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
			return graph.NewOutput().With("trace", "B"), nil
		}))
		g.AddEdge(graph.Start, "A")
		g.AddEdge("A", "B")
		g.AddEdge("B", graph.End)
		g.InterruptBefore("B")
		g = g.WithCheckpointer(store)
		compiled, err := g.Compile()
		require.NoError(t, err)
		return compiled
	}

	store := graph.NewMemoryStore()
	compiled := build(store)
	_, err := compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "s7"})
	require.Error(t, err)

	var interrupted *graph.InterruptedError
	require.True(t, errors.As(err, &interrupted))
	require.Equal(t, graph.InterruptBefore, interrupted.Interrupt.Kind)
	require.Equal(t, "B", interrupted.Interrupt.Node)
	require.Equal(t, []any{"A"}, []any(interrupted.State["trace"].([]any)))
	require.NotEmpty(t, interrupted.CheckpointID)

	resumed, err := compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{
		ThreadID:   "s7",
		ResumeFrom: interrupted.CheckpointID,
	})
	require.NoError(t, err)
	require.Equal(t, []any{"A", "B"}, []any(resumed["trace"].([]any)))

	// A non-interrupted run (no InterruptBefore) over the same graph shape
	// reaches the same final state.
	g2 := graph.NewStateGraph(graph.Schema{"trace": {Reducer: graph.AppendReducer()}})
	g2.AddNode("A", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("trace", "A"), nil
	}))
	g2.AddNode("B", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("trace", "B"), nil
	}))
	g2.AddEdge(graph.Start, "A")
	g2.AddEdge("A", "B")
	g2.AddEdge("B", graph.End)
	compiled2, err := g2.Compile()
	require.NoError(t, err)
	direct, err := compiled2.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "s7-direct"})
	require.NoError(t, err)
	require.Equal(t, direct["trace"], resumed["trace"])
}

// interrupt_after surfaces only after the step's updates are merged and
// checkpointed; resume continues with the successor frontier, never
// re-executing the interrupting node.
func TestInvoke_InterruptAfterAppliesUpdates(t *testing.T) {
	store := graph.NewMemoryStore()
	runsOfA := 0
	g := graph.NewStateGraph(graph.Schema{"trace": {Reducer: graph.AppendReducer()}})
	g.AddNode("A", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		runsOfA++
		return graph.NewOutput().With("trace", "A"), nil
	}))
	g.AddNode("B", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("trace", "B"), nil
	}))
	g.AddEdge(graph.Start, "A")
	g.AddEdge("A", "B")
	g.AddEdge("B", graph.End)
	g.InterruptAfter("A")
	g = g.WithCheckpointer(store)
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "after"})
	var interrupted *graph.InterruptedError
	require.True(t, errors.As(err, &interrupted))
	require.Equal(t, graph.InterruptAfter, interrupted.Interrupt.Kind)
	require.Equal(t, "A", interrupted.Interrupt.Node)
	require.Equal(t, []any{"A"}, interrupted.State["trace"])

	resumed, err := compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{
		ThreadID:   "after",
		ResumeFrom: interrupted.CheckpointID,
	})
	require.NoError(t, err)
	require.Equal(t, []any{"A", "B"}, resumed["trace"])
	require.Equal(t, 1, runsOfA)
}

// Property: an unknown channel fails with ErrSchemaViolation.
func TestApplyUpdates_SchemaViolation(t *testing.T) {
	g := graph.NewStateGraph(graph.Schema{"known": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("bad", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("unknown_channel", 1), nil
	}))
	g.AddEdge(graph.Start, "bad")
	g.AddEdge("bad", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "schema"})
	require.True(t, errors.Is(err, graph.ErrSchemaViolation))
}

// Property: two nodes writing the same super-step to a serial channel
// conflict; the same channel written by parallel nodes with an associative
// reducer merges deterministically regardless of completion order.
func TestApplyUpdates_SerialConflictAndParallelMerge(t *testing.T) {
	schema := graph.Schema{
		"serial": {Reducer: graph.ReplaceReducer(), Kind: graph.Serial},
		"set":    {Reducer: graph.UnionSetReducer(), Kind: graph.Parallel},
	}
	g := graph.NewStateGraph(schema)
	g.AddNode("n1", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("serial", "from-n1").With("set", "a"), nil
	}))
	g.AddNode("n2", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("serial", "from-n2").With("set", "b"), nil
	}))
	g.AddEdge(graph.Start, "n1")
	g.AddEdge(graph.Start, "n2")
	g.AddEdge("n1", graph.End)
	g.AddEdge("n2", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "conflict"})
	require.True(t, errors.Is(err, graph.ErrConcurrentWriteConflict))
}

// Property 4 (determinism): identical input/graph/reducers produce
// byte-identical final state across repeated runs, independent of
// goroutine completion order within a super-step.
func TestInvoke_DeterministicAcrossRuns(t *testing.T) {
	build := func() *graph.CompiledGraph {
		g := graph.NewStateGraph(graph.Schema{"items": {Reducer: graph.AppendReducer()}})
		for _, n := range []string{"n1", "n2", "n3"} {
			name := n
			g.AddNode(name, graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
				return graph.NewOutput().With("items", name), nil
			}))
			g.AddEdge(graph.Start, name)
			g.AddEdge(name, graph.End)
		}
		compiled, err := g.Compile()
		require.NoError(t, err)
		return compiled
	}

	var prev any
	for i := 0; i < 5; i++ {
		state, err := build().Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "det"})
		require.NoError(t, err)
		if prev != nil {
			require.Equal(t, prev, state["items"])
		}
		prev = state["items"]
	}
	// Lexicographic (node_name, channel_name) ordering of the merge means
	// the three single-node updates land in node-name order.
	require.Equal(t, []any{"n1", "n2", "n3"}, prev)
}

// Streaming: Values mode always terminates with exactly one Done event and
// an initial+per-step State event for a two-node graph.
func TestStream_ValuesModeTerminatesWithDone(t *testing.T) {
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("set_value", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("value", 7), nil
	}))
	g.AddEdge(graph.Start, "set_value")
	g.AddEdge("set_value", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	var types []graph.EventType
	var sawErr error
	for ev, err := range compiled.Stream(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "stream"}, graph.StreamValues) {
		if err != nil {
			sawErr = err
			break
		}
		types = append(types, ev.Type)
	}
	require.NoError(t, sawErr)
	require.NotEmpty(t, types)
	require.Equal(t, graph.EventDone, types[len(types)-1])
	for _, typ := range types {
		require.True(t, typ == graph.EventState || typ == graph.EventDone)
	}
}

// Debug mode: every NodeStart is eventually followed by exactly one
// matching NodeEnd (property 6, restricted to the non-cancelled case).
func TestStream_DebugModeNodeStartEndPairing(t *testing.T) {
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("step1", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("value", 1), nil
	}))
	g.AddNode("step2", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("value", 2), nil
	}))
	g.AddEdge(graph.Start, "step1")
	g.AddEdge("step1", "step2")
	g.AddEdge("step2", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	starts := map[string]int{}
	ends := map[string]int{}
	for ev, err := range compiled.Stream(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "debug"}, graph.StreamDebug) {
		require.NoError(t, err)
		switch ev.Type {
		case graph.EventNodeStart:
			starts[ev.Node]++
		case graph.EventNodeEnd:
			ends[ev.Node]++
		}
	}
	require.Equal(t, map[string]int{"step1": 1, "step2": 1}, starts)
	require.Equal(t, starts, ends)
}

// Updates mode emits one updates event per super-step naming the executed
// nodes, then Done.
func TestStream_UpdatesMode(t *testing.T) {
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("step1", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("value", 1), nil
	}))
	g.AddNode("step2", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput().With("value", 2), nil
	}))
	g.AddEdge(graph.Start, "step1")
	g.AddEdge("step1", "step2")
	g.AddEdge("step2", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	var updates [][]string
	var last graph.EventType
	for ev, err := range compiled.Stream(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "updates"}, graph.StreamUpdates) {
		require.NoError(t, err)
		if ev.Type == graph.EventUpdates {
			updates = append(updates, ev.ExecutedNodes)
		}
		last = ev.Type
	}
	require.Equal(t, [][]string{{"step1"}, {"step2"}}, updates)
	require.Equal(t, graph.EventDone, last)
}

// streamingNode emits chunks through the Messages-mode emit callback while
// the same run produces the output used for the merge.
type streamingNode struct {
	chunks []string
	value  any
}

func (n *streamingNode) Execute(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
	return graph.NewOutput().With("value", n.value), nil
}

func (n *streamingNode) ExecuteStream(ctx *graph.NodeContext, emit func(*graph.StreamEvent) bool) (*graph.NodeOutput, error) {
	for _, c := range n.chunks {
		if !emit(&graph.StreamEvent{Type: graph.EventMessage, Step: ctx.Step, Node: "talker", Text: c}) {
			return nil, nil
		}
	}
	return n.Execute(ctx)
}

// Messages mode interleaves a streaming node's chunks with its
// NodeStart/NodeEnd pair, merges the run's output once, and still ends with
// Done.
func TestStream_MessagesMode(t *testing.T) {
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("talker", &streamingNode{chunks: []string{"hel", "lo"}, value: "hello"})
	g.AddEdge(graph.Start, "talker")
	g.AddEdge("talker", graph.End)
	compiled, err := g.Compile()
	require.NoError(t, err)

	var types []graph.EventType
	var text string
	var final graph.State
	for ev, err := range compiled.Stream(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "messages"}, graph.StreamMessages) {
		require.NoError(t, err)
		types = append(types, ev.Type)
		if ev.Type == graph.EventMessage {
			text += ev.Text
		}
		if ev.Type == graph.EventDone {
			final = ev.State
		}
	}
	require.Equal(t, []graph.EventType{
		graph.EventNodeStart,
		graph.EventMessage,
		graph.EventMessage,
		graph.EventNodeEnd,
		graph.EventStepComplete,
		graph.EventDone,
	}, types)
	require.Equal(t, "hello", text)
	require.Equal(t, "hello", final["value"])
}

// A dynamic interrupt suspends without applying the step's updates; resume
// re-schedules the interrupting node's frontier.
func TestInvoke_DynamicInterrupt(t *testing.T) {
	store := graph.NewMemoryStore()
	interruptOnce := true
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("guarded", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		if interruptOnce {
			interruptOnce = false
			return graph.NewOutput().
				With("value", "discarded").
				WithInterrupt(graph.DynamicInterrupt("guarded", "needs approval")), nil
		}
		return graph.NewOutput().With("value", "approved"), nil
	}))
	g.AddEdge(graph.Start, "guarded")
	g.AddEdge("guarded", graph.End)
	g = g.WithCheckpointer(store)
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "dyn"})
	var interrupted *graph.InterruptedError
	require.True(t, errors.As(err, &interrupted))
	require.Equal(t, graph.InterruptDynamic, interrupted.Interrupt.Kind)
	_, wrote := interrupted.State.Get("value")
	require.False(t, wrote)

	resumed, err := compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{
		ThreadID:   "dyn",
		ResumeFrom: interrupted.CheckpointID,
	})
	require.NoError(t, err)
	require.Equal(t, "approved", resumed["value"])
}

// The stream event envelope round-trips through its JSON form.
func TestStreamEvent_JSONRoundTrip(t *testing.T) {
	events := []*graph.StreamEvent{
		{Type: graph.EventNodeEnd, Step: 2, Node: "step1", DurationMillis: 12},
		{Type: graph.EventState, Step: 1, State: graph.State{"result": "ok"}},
		{Type: graph.EventUpdates, Step: 0, ExecutedNodes: []string{"a", "b"}},
		{Type: graph.EventMessage, Step: 3, Node: "talker", Text: "chunk"},
		{
			Type: graph.EventInterrupted, Step: 4,
			Interrupt:    &graph.Interrupt{Kind: graph.InterruptBefore, Node: "B"},
			CheckpointID: "cp-1",
		},
	}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		var got graph.StreamEvent
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, *ev, got)
	}
}

// UpdateState patches checkpointed state through the schema's reducers
// without re-running any node - the HITL steering path used before resume.
func TestUpdateState_PatchesWithoutExecutingNodes(t *testing.T) {
	store := graph.NewMemoryStore()
	ran := false
	g := graph.NewStateGraph(graph.Schema{"value": {Reducer: graph.ReplaceReducer()}})
	g.AddNode("A", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		ran = true
		return graph.NewOutput().With("value", 1), nil
	}))
	g.AddNode("B", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
		return graph.NewOutput(), nil
	}))
	g.AddEdge(graph.Start, "A")
	g.AddEdge("A", "B")
	g.AddEdge("B", graph.End)
	g.InterruptBefore("B")
	g = g.WithCheckpointer(store)
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(context.Background(), graph.State{}, graph.ExecutionConfig{ThreadID: "patch"})
	require.Error(t, err)
	require.True(t, ran)

	require.NoError(t, compiled.UpdateState("patch", map[string]any{"value": 99}))

	state, err := compiled.GetState("patch")
	require.NoError(t, err)
	require.Equal(t, 99, state["value"])
}
