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

package workflowagent_test

import (
	"context"
	"iter"
	"sync/atomic"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/agent"
	"github.com/flowloom/agentcore/pkg/agent/llmagent"
	"github.com/flowloom/agentcore/pkg/agent/workflowagent"
	"github.com/flowloom/agentcore/pkg/model"
	"github.com/flowloom/agentcore/pkg/runner"
	"github.com/flowloom/agentcore/pkg/session"
	"github.com/flowloom/agentcore/pkg/tool"
)

// stubAgent yields a single text event bearing its own name, optionally
// escalating on the Nth call, for exercising workflow composition without
// a real LLM in the loop.
type stubAgent struct {
	name          string
	escalateAfter int // 0 disables escalation
	calls         atomic.Int32
}

func newStubAgent(t *testing.T, name string) agent.Agent {
	return buildStubAgent(t, &stubAgent{name: name})
}

func newEscalatingStubAgent(t *testing.T, name string, escalateAfter int) agent.Agent {
	return buildStubAgent(t, &stubAgent{name: name, escalateAfter: escalateAfter})
}

func buildStubAgent(t *testing.T, s *stubAgent) agent.Agent {
	t.Helper()
	ag, err := agent.New(agent.Config{
		Name:        s.name,
		Description: "stub agent for workflow composition tests",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return s.run(ctx)
		},
	})
	require.NoError(t, err)
	return ag
}

func (s *stubAgent) run(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		n := s.calls.Add(1)

		ev := agent.NewEvent(ctx.InvocationID())
		ev.Author = s.name
		ev.Message = agent.NewTextContent(s.name+" ran", a2a.MessageRoleAgent).ToMessage()
		if s.escalateAfter > 0 && int(n) >= s.escalateAfter {
			ev.Actions.Escalate = true
		}
		yield(ev, nil)
	}
}

func runWorkflow(t *testing.T, root agent.Agent) []*agent.Event {
	t.Helper()

	r, err := runner.New(runner.Config{
		AppName:        "test-app",
		Agent:          root,
		SessionService: session.InMemoryService(),
	})
	require.NoError(t, err)

	var events []*agent.Event
	for ev, err := range r.Run(context.Background(), "user-1", "session-1",
		agent.NewTextContent("go", a2a.MessageRoleUser),
		agent.RunConfig{}) {
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func authors(events []*agent.Event) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Author
	}
	return names
}

// TestSequential_RunsSubAgentsInOrder exercises the fixed pipeline behavior:
// sub-agents execute once, in listed order, with no repetition.
func TestSequential_RunsSubAgentsInOrder(t *testing.T) {
	stage1 := newStubAgent(t, "stage1")
	stage2 := newStubAgent(t, "stage2")
	stage3 := newStubAgent(t, "stage3")

	pipeline, err := workflowagent.NewSequential(workflowagent.SequentialConfig{
		Name:        "pipeline",
		Description: "runs three stages in order",
		SubAgents:   []agent.Agent{stage1, stage2, stage3},
	})
	require.NoError(t, err)

	events := runWorkflow(t, pipeline)
	require.Equal(t, []string{"stage1", "stage2", "stage3"}, authors(events))
}

// TestLoop_RunsUntilMaxIterations exercises bounded repetition: with no
// escalation, sub-agents run exactly MaxIterations times through.
func TestLoop_RunsUntilMaxIterations(t *testing.T) {
	reviewer := newStubAgent(t, "reviewer")
	improver := newStubAgent(t, "improver")

	refiner, err := workflowagent.NewLoop(workflowagent.LoopConfig{
		Name:          "refiner",
		Description:   "iteratively refines output",
		SubAgents:     []agent.Agent{reviewer, improver},
		MaxIterations: 3,
	})
	require.NoError(t, err)

	events := runWorkflow(t, refiner)
	require.Equal(t, []string{
		"reviewer", "improver",
		"reviewer", "improver",
		"reviewer", "improver",
	}, authors(events))
}

// TestLoop_StopsOnEscalate exercises early termination: a sub-agent's
// Escalate action ends the loop before MaxIterations is reached.
func TestLoop_StopsOnEscalate(t *testing.T) {
	// Escalates on its second invocation, well before the 10-iteration cap.
	critic := newEscalatingStubAgent(t, "critic", 2)
	writer := newStubAgent(t, "writer")

	refiner, err := workflowagent.NewLoop(workflowagent.LoopConfig{
		Name:          "refiner",
		Description:   "stops once the critic is satisfied",
		SubAgents:     []agent.Agent{writer, critic},
		MaxIterations: 10,
	})
	require.NoError(t, err)

	events := runWorkflow(t, refiner)
	require.Equal(t, []string{"writer", "critic", "writer", "critic"}, authors(events))
	require.True(t, events[len(events)-1].Actions.Escalate)
}

// TestLoop_Unbounded exercises MaxIterations=0: the loop runs
// indefinitely until a sub-agent escalates.
func TestLoop_Unbounded(t *testing.T) {
	counter := newEscalatingStubAgent(t, "counter", 5)

	loop, err := workflowagent.NewLoop(workflowagent.LoopConfig{
		Name:      "counter-loop",
		SubAgents: []agent.Agent{counter},
	})
	require.NoError(t, err)

	events := runWorkflow(t, loop)
	require.Len(t, events, 5)
	require.True(t, events[len(events)-1].Actions.Escalate)
}

// exitLoopLLM calls the exit_loop tool on its first and only turn.
type exitLoopLLM struct {
	calls int
}

func (m *exitLoopLLM) Name() string             { return "exit-loop" }
func (m *exitLoopLLM) Provider() model.Provider { return model.ProviderUnknown }
func (m *exitLoopLLM) Close() error             { return nil }

func (m *exitLoopLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		m.calls++
		yield(&model.Response{
			Content:   &model.Content{Role: a2a.MessageRoleAgent},
			ToolCalls: []tool.ToolCall{{ID: "call-exit", Name: "exit_loop", Args: map[string]any{}}},
		}, nil)
	}
}

// TestLoop_ExitLoopToolEscalates exercises the built-in exit_loop tool end
// to end: an LLM sub-agent calls it, the tool sets Escalate, and the loop
// terminates on the first iteration despite the iteration budget.
func TestLoop_ExitLoopToolEscalates(t *testing.T) {
	llm := &exitLoopLLM{}
	worker, err := llmagent.New(llmagent.Config{
		Name:      "worker",
		Model:     llm,
		Reasoning: &llmagent.ReasoningConfig{EnableExitTool: true},
	})
	require.NoError(t, err)

	loop, err := workflowagent.NewLoop(workflowagent.LoopConfig{
		Name:          "task-loop",
		SubAgents:     []agent.Agent{worker},
		MaxIterations: 5,
	})
	require.NoError(t, err)

	events := runWorkflow(t, loop)
	require.Equal(t, 1, llm.calls, "the loop must stop after the exit_loop call, not burn iterations")

	last := events[len(events)-1]
	require.True(t, last.Actions.Escalate)
	require.Len(t, last.ToolResults, 1)
	require.Contains(t, last.ToolResults[0].Content, "exited")
}

// TestLoop_ContinuePromptAfterFirstPass: the first iteration sees the loop
// agent's own user content, later iterations a synthetic continue prompt.
func TestLoop_ContinuePromptAfterFirstPass(t *testing.T) {
	var inputs []string
	capture, err := agent.New(agent.Config{
		Name:        "capture",
		Description: "records the user content it was invoked with",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				text := ""
				if c := ctx.UserContent(); c != nil {
					text = c.ToMessage().Parts[0].(a2a.TextPart).Text
				}
				inputs = append(inputs, text)
				ev := agent.NewEvent(ctx.InvocationID())
				ev.Author = "capture"
				yield(ev, nil)
			}
		},
	})
	require.NoError(t, err)

	loop, err := workflowagent.NewLoop(workflowagent.LoopConfig{
		Name:          "looper",
		SubAgents:     []agent.Agent{capture},
		MaxIterations: 3,
	})
	require.NoError(t, err)

	runWorkflow(t, loop)
	require.Equal(t, []string{"go", "continue", "continue"}, inputs)
}

// TestParallel_RunsAllSubAgents exercises fan-out: every sub-agent receives
// the same input and contributes exactly one event, regardless of order.
func TestParallel_RunsAllSubAgents(t *testing.T) {
	voter1 := newStubAgent(t, "voter1")
	voter2 := newStubAgent(t, "voter2")
	voter3 := newStubAgent(t, "voter3")

	voters, err := workflowagent.NewParallel(workflowagent.ParallelConfig{
		Name:        "voters",
		Description: "collects independent perspectives",
		SubAgents:   []agent.Agent{voter1, voter2, voter3},
	})
	require.NoError(t, err)

	events := runWorkflow(t, voters)
	require.ElementsMatch(t, []string{"voter1", "voter2", "voter3"}, authors(events))
}
