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

package llmagent_test

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/agent"
	"github.com/flowloom/agentcore/pkg/agent/llmagent"
	"github.com/flowloom/agentcore/pkg/memory"
	"github.com/flowloom/agentcore/pkg/model"
	"github.com/flowloom/agentcore/pkg/observability"
	"github.com/flowloom/agentcore/pkg/runner"
	"github.com/flowloom/agentcore/pkg/session"
	"github.com/flowloom/agentcore/pkg/tool"
	"github.com/flowloom/agentcore/pkg/tool/functiontool"
)

// scriptedLLM plays back a fixed sequence of non-streaming responses, one
// per GenerateContent call, mimicking a provider adapter for a mock model.
type scriptedLLM struct {
	responses []*model.Response
	calls     int
}

func (m *scriptedLLM) Name() string            { return "scripted" }
func (m *scriptedLLM) Provider() model.Provider { return model.ProviderUnknown }
func (m *scriptedLLM) Close() error            { return nil }

func (m *scriptedLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if m.calls >= len(m.responses) {
			yield(nil, nil)
			return
		}
		resp := m.responses[m.calls]
		m.calls++
		yield(resp, nil)
	}
}

// TestLLMAgent_OneToolRoundTrip exercises spec scenario S6: an LLM agent
// whose model emits a FunctionCall on the first turn and a plain text
// answer on the second, dispatching through a real tool in between.
func TestLLMAgent_OneToolRoundTrip(t *testing.T) {
	getTime, err := functiontool.New(
		functiontool.Config{
			Name:        "get_time",
			Description: "Returns the current time",
		},
		func(ctx tool.Context, args struct{}) (map[string]any, error) {
			return map[string]any{"time": "12:00"}, nil
		},
	)
	require.NoError(t, err)

	llm := &scriptedLLM{
		responses: []*model.Response{
			{
				Content: &model.Content{
					Role:  a2a.MessageRoleAgent,
					Parts: []a2a.Part{},
				},
				ToolCalls: []tool.ToolCall{
					{ID: "call-1", Name: "get_time", Args: map[string]any{}},
				},
			},
			{
				Content: &model.Content{
					Role:  a2a.MessageRoleAgent,
					Parts: []a2a.Part{a2a.TextPart{Text: "The time is 12:00"}},
				},
			},
		},
	}

	ag, err := llmagent.New(llmagent.Config{
		Name:  "assistant",
		Model: llm,
		Tools: []tool.Tool{getTime},
	})
	require.NoError(t, err)

	r, err := runner.New(runner.Config{
		AppName:        "test-app",
		Agent:          ag,
		SessionService: session.InMemoryService(),
	})
	require.NoError(t, err)

	var events []*agent.Event
	for ev, err := range r.Run(context.Background(), "user-1", "session-1",
		agent.NewTextContent("what time is it?", a2a.MessageRoleUser),
		agent.RunConfig{}) {
		require.NoError(t, err)
		events = append(events, ev)
	}

	require.Len(t, events, 3, "expected model-call, tool-result, and final model events")

	modelCallEvent := events[0]
	require.True(t, modelCallEvent.HasToolCalls())
	require.False(t, modelCallEvent.IsFinalResponse())

	toolResultEvent := events[1]
	require.True(t, toolResultEvent.HasToolResults())
	require.Equal(t, a2a.MessageRoleUser, toolResultEvent.Message.Role,
		"tool results are synthesised as a user-role message per spec §4.5.1 step 4")
	require.Len(t, toolResultEvent.ToolResults, 1)
	require.Equal(t, "call-1", toolResultEvent.ToolResults[0].ToolCallID)
	require.Contains(t, toolResultEvent.ToolResults[0].Content, "12:00")

	finalEvent := events[2]
	require.True(t, finalEvent.IsFinalResponse())
	require.False(t, finalEvent.Partial)
	require.Contains(t, finalEvent.TextContent(), "12:00")
}

// TestLLMAgent_SafetyLimit exercises spec §4.5.1 item 5: a model that
// never stops calling tools trips the reasoning-loop safety ceiling.
func TestLLMAgent_SafetyLimit(t *testing.T) {
	noop, err := functiontool.New(
		functiontool.Config{Name: "noop", Description: "does nothing"},
		func(ctx tool.Context, args struct{}) (map[string]any, error) {
			return map[string]any{}, nil
		},
	)
	require.NoError(t, err)

	llm := &loopingLLM{}

	ag, err := llmagent.New(llmagent.Config{
		Name:      "looper",
		Model:     llm,
		Tools:     []tool.Tool{noop},
		Reasoning: &llmagent.ReasoningConfig{MaxIterations: 3},
	})
	require.NoError(t, err)

	r, err := runner.New(runner.Config{
		AppName:        "test-app",
		Agent:          ag,
		SessionService: session.InMemoryService(),
	})
	require.NoError(t, err)

	var last *agent.Event
	for ev, err := range r.Run(context.Background(), "user-1", "session-1",
		agent.NewTextContent("go", a2a.MessageRoleUser),
		agent.RunConfig{}) {
		require.NoError(t, err)
		last = ev
	}
	require.NotNil(t, last)
	require.True(t, last.TurnComplete, "exceeding MaxIterations must end the turn")
	require.Equal(t, "max_iterations_exceeded", last.ErrorCode)
	require.NotEmpty(t, last.ErrorMessage)
}

// loopingLLM always answers with a tool call, never a final response.
type loopingLLM struct{}

func (m *loopingLLM) Name() string             { return "looping" }
func (m *loopingLLM) Provider() model.Provider  { return model.ProviderUnknown }
func (m *loopingLLM) Close() error              { return nil }

func (m *loopingLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		yield(&model.Response{
			Content:   &model.Content{Role: a2a.MessageRoleAgent},
			ToolCalls: []tool.ToolCall{{ID: "x", Name: "noop", Args: map[string]any{}}},
		}, nil)
	}
}

// startJob is a long-running tool: the kickoff executes and returns
// immediately with a job id, but the real result arrives out-of-band, so
// the dispatcher must record the call id and must not wait for or
// synthesise a response for it.
type startJob struct {
	executed bool
}

func (s *startJob) Name() string            { return "start_job" }
func (s *startJob) Description() string     { return "Kicks off a background job" }
func (s *startJob) IsLongRunning() bool     { return true }
func (s *startJob) RequiresApproval() bool  { return false }
func (s *startJob) Schema() map[string]any  { return nil }

func (s *startJob) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	s.executed = true
	return map[string]any{"job_id": "job-1"}, nil
}

// TestLLMAgent_TransferToSubAgent: the request pipeline declares a
// transfer_to_<sub> tool per sub-agent; calling it hands control to that
// sub-agent, whose events are forwarded to the caller.
func TestLLMAgent_TransferToSubAgent(t *testing.T) {
	helper, err := agent.New(agent.Config{
		Name:        "helper",
		Description: "handles delegated work",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				ev := agent.NewEvent(ctx.InvocationID())
				ev.Author = "helper"
				ev.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "helper handled it"})
				ev.TurnComplete = true
				yield(ev, nil)
			}
		},
	})
	require.NoError(t, err)

	llm := &scriptedLLM{
		responses: []*model.Response{
			{
				Content: &model.Content{Role: a2a.MessageRoleAgent},
				ToolCalls: []tool.ToolCall{
					{ID: "call-1", Name: "transfer_to_helper", Args: map[string]any{"request": "take over"}},
				},
			},
		},
	}

	parent, err := llmagent.New(llmagent.Config{
		Name:      "coordinator",
		Model:     llm,
		SubAgents: []agent.Agent{helper},
	})
	require.NoError(t, err)

	r, err := runner.New(runner.Config{
		AppName:        "test-app",
		Agent:          parent,
		SessionService: session.InMemoryService(),
	})
	require.NoError(t, err)

	var events []*agent.Event
	for ev, err := range r.Run(context.Background(), "user-1", "session-1",
		agent.NewTextContent("please delegate", a2a.MessageRoleUser),
		agent.RunConfig{}) {
		require.NoError(t, err)
		events = append(events, ev)
	}

	var transferSeen, helperRan bool
	for _, ev := range events {
		if ev.Actions.TransferToAgent == "helper" {
			transferSeen = true
		}
		if ev.Author == "helper" && strings.Contains(ev.TextContent(), "helper handled it") {
			helperRan = true
		}
	}
	require.True(t, transferSeen, "the transfer tool must record the target in actions")
	require.True(t, helperRan, "the transfer target's events must be forwarded")
}

// chattyLLM answers every call with a fresh final text response, for tests
// that drive many conversation turns.
type chattyLLM struct {
	calls int
}

func (m *chattyLLM) Name() string             { return "chatty" }
func (m *chattyLLM) Provider() model.Provider { return model.ProviderUnknown }
func (m *chattyLLM) Close() error             { return nil }

func (m *chattyLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		m.calls++
		yield(&model.Response{
			Content: &model.Content{
				Role: a2a.MessageRoleAgent,
				Parts: []a2a.Part{a2a.TextPart{
					Text: fmt.Sprintf("reply number %d with some conversational filler text", m.calls),
				}},
			},
			Usage: &model.Usage{PromptTokens: 40, CompletionTokens: 12},
		}, nil)
	}
}

// fixedSummarizer returns a canned summary for any conversation.
type fixedSummarizer struct {
	calls int
}

func (s *fixedSummarizer) SummarizeConversation(ctx context.Context, events []*agent.Event) (string, error) {
	s.calls++
	return "the conversation so far", nil
}

// TestLLMAgent_WorkingMemorySummarization drives the summary-buffer
// strategy end to end through Config.WorkingMemory: once the session
// history blows the token budget, the runner's post-turn check persists a
// summary event, and the next turn still completes against the
// checkpointed history.
func TestLLMAgent_WorkingMemorySummarization(t *testing.T) {
	summarizer := &fixedSummarizer{}
	strategy, err := memory.NewSummaryBufferStrategy(memory.SummaryBufferConfig{
		Model:      "gpt-4o",
		Budget:     60,
		Summarizer: summarizer,
	})
	require.NoError(t, err)

	ag, err := llmagent.New(llmagent.Config{
		Name:          "summarizing-assistant",
		Model:         &chattyLLM{},
		WorkingMemory: strategy,
	})
	require.NoError(t, err)

	svc := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        "test-app",
		Agent:          ag,
		SessionService: svc,
	})
	require.NoError(t, err)

	for turn := 0; turn < 12; turn++ {
		for _, err := range r.Run(context.Background(), "user-1", "session-1",
			agent.NewTextContent(fmt.Sprintf("user message %d with some conversational filler text", turn), a2a.MessageRoleUser),
			agent.RunConfig{}) {
			require.NoError(t, err)
		}
	}

	require.Positive(t, summarizer.calls, "the summarizer must be invoked once the budget is exceeded")

	resp, err := svc.Get(context.Background(), &session.GetRequest{
		AppName: "test-app", UserID: "user-1", SessionID: "session-1",
	})
	require.NoError(t, err)

	var sawSummary bool
	for ev := range resp.Session.Events().All() {
		if strings.HasPrefix(ev.TextContent(), memory.SummaryPrefix) {
			sawSummary = true
			break
		}
	}
	require.True(t, sawSummary, "a summary event must be persisted to the session")
}

// TestLLMAgent_RecordsMetricsAndSpans checks the observability seam: a tool
// round trip through an agent configured with real Prometheus metrics and a
// no-op tracer lands counts in the llm and tool metric families.
func TestLLMAgent_RecordsMetricsAndSpans(t *testing.T) {
	metrics, err := observability.NewMetrics(&observability.MetricsConfig{Enabled: true})
	require.NoError(t, err)

	getTime, err := functiontool.New(
		functiontool.Config{Name: "get_time", Description: "Returns the current time"},
		func(ctx tool.Context, args struct{}) (map[string]any, error) {
			return map[string]any{"time": "12:00"}, nil
		},
	)
	require.NoError(t, err)

	llm := &scriptedLLM{
		responses: []*model.Response{
			{
				Content: &model.Content{Role: a2a.MessageRoleAgent},
				ToolCalls: []tool.ToolCall{
					{ID: "call-1", Name: "get_time", Args: map[string]any{}},
				},
				Usage: &model.Usage{PromptTokens: 20, CompletionTokens: 5},
			},
			{
				Content: &model.Content{
					Role:  a2a.MessageRoleAgent,
					Parts: []a2a.Part{a2a.TextPart{Text: "The time is 12:00"}},
				},
				Usage: &model.Usage{PromptTokens: 30, CompletionTokens: 8},
			},
		},
	}

	ag, err := llmagent.New(llmagent.Config{
		Name:            "instrumented",
		Model:           llm,
		Tools:           []tool.Tool{getTime},
		MetricsRecorder: metrics,
		Tracer:          observability.NoopTracer{},
	})
	require.NoError(t, err)

	r, err := runner.New(runner.Config{
		AppName:        "test-app",
		Agent:          ag,
		SessionService: session.InMemoryService(),
	})
	require.NoError(t, err)

	for _, err := range r.Run(context.Background(), "user-1", "session-1",
		agent.NewTextContent("what time is it?", a2a.MessageRoleUser),
		agent.RunConfig{}) {
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, "agentcore_llm_calls_total")
	require.Contains(t, body, "agentcore_llm_tokens_input_total")
	require.Contains(t, body, "agentcore_tool_calls_total")
}

func TestLLMAgent_LongRunningToolNotAwaited(t *testing.T) {
	job := &startJob{}

	llm := &scriptedLLM{
		responses: []*model.Response{
			{
				Content: &model.Content{Role: a2a.MessageRoleAgent},
				ToolCalls: []tool.ToolCall{
					{ID: "call-lr", Name: "start_job", Args: map[string]any{}},
				},
			},
		},
	}

	ag, err := llmagent.New(llmagent.Config{
		Name:  "scheduler",
		Model: llm,
		Tools: []tool.Tool{job},
	})
	require.NoError(t, err)

	r, err := runner.New(runner.Config{
		AppName:        "test-app",
		Agent:          ag,
		SessionService: session.InMemoryService(),
	})
	require.NoError(t, err)

	var events []*agent.Event
	for ev, err := range r.Run(context.Background(), "user-1", "session-1",
		agent.NewTextContent("start the job", a2a.MessageRoleUser),
		agent.RunConfig{}) {
		require.NoError(t, err)
		events = append(events, ev)
	}

	require.True(t, job.executed, "the long-running kickoff must be invoked")

	last := events[len(events)-1]
	require.Contains(t, last.LongRunningToolIDs, "call-lr")
	require.Empty(t, last.ToolResults, "no FunctionResponse is synthesised for a long-running call")
	require.True(t, last.IsFinalResponse())
}
