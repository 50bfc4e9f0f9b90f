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

package agenttool_test

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/agent"
	"github.com/flowloom/agentcore/pkg/session"
	"github.com/flowloom/agentcore/pkg/tool"
	"github.com/flowloom/agentcore/pkg/tool/agenttool"
)

// testToolContext adapts an InvocationContext into the tool.Context the
// dispatcher would normally hand a tool.
type testToolContext struct {
	agent.InvocationContext
	actions *agent.EventActions
}

func (c *testToolContext) FunctionCallID() string       { return "call-1" }
func (c *testToolContext) Actions() *agent.EventActions { return c.actions }

func (c *testToolContext) SearchMemory(ctx context.Context, query string) (*agent.MemorySearchResponse, error) {
	return &agent.MemorySearchResponse{}, nil
}

func newTestToolContext(t *testing.T) *testToolContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(context.Background(), &session.CreateRequest{
		AppName: "test-app", UserID: "user-1", SessionID: "session-1",
	})
	require.NoError(t, err)

	invCtx := agent.NewInvocationContext(context.Background(), agent.InvocationContextParams{
		Session: resp.Session,
		Branch:  "root.parent",
	})
	return &testToolContext{
		InvocationContext: invCtx,
		actions:           &agent.EventActions{StateDelta: make(map[string]any)},
	}
}

// echoAgent yields one final text event and records the request it was
// invoked with.
func echoAgent(t *testing.T, name string, sawRequest *string) agent.Agent {
	t.Helper()
	ag, err := agent.New(agent.Config{
		Name:        name,
		Description: "echoes its input",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				if c := ctx.UserContent(); c != nil && len(c.Parts) > 0 {
					if tp, ok := c.Parts[0].(a2a.TextPart); ok {
						*sawRequest = tp.Text
					}
				}
				ev := agent.NewEvent(ctx.InvocationID())
				ev.Author = name
				ev.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: name + " says hi"})
				ev.TurnComplete = true
				yield(ev, nil)
			}
		},
	})
	require.NoError(t, err)
	return ag
}

func TestAgentTool_Metadata(t *testing.T) {
	var saw string
	at := agenttool.New(echoAgent(t, "helper", &saw), nil).(tool.CallableTool)

	require.Equal(t, "helper", at.Name())
	require.Equal(t, "echoes its input", at.Description())
	require.False(t, at.IsLongRunning())
	require.False(t, at.RequiresApproval())

	schema := at.Schema()
	require.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)
	require.Contains(t, props, "request")
	require.Equal(t, []string{"request"}, schema["required"])
}

func TestAgentTool_Call(t *testing.T) {
	var saw string
	at := agenttool.New(echoAgent(t, "helper", &saw), nil).(tool.CallableTool)

	result, err := at.Call(newTestToolContext(t), map[string]any{"request": "do the thing"})
	require.NoError(t, err)
	require.Equal(t, "do the thing", saw, "the request string becomes the child's user content")
	require.Equal(t, "helper says hi", result["result"])
	require.Equal(t, "helper", result["agent_name"])

	_, err = at.Call(newTestToolContext(t), map[string]any{"request": 42})
	require.Error(t, err, "non-string request is rejected")
}

func TestAgentTool_SkipSummarization(t *testing.T) {
	var saw string
	at := agenttool.New(echoAgent(t, "helper", &saw), &agenttool.Config{
		SkipSummarization: true,
	}).(tool.CallableTool)

	ctx := newTestToolContext(t)
	_, err := at.Call(ctx, map[string]any{"request": "do it"})
	require.NoError(t, err)
	require.True(t, ctx.actions.SkipSummarization)
}

func TestAgentTool_ForwardArtifacts(t *testing.T) {
	ag, err := agent.New(agent.Config{
		Name:        "writer",
		Description: "writes an artifact",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				ev := agent.NewEvent(ctx.InvocationID())
				ev.Author = "writer"
				ev.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "wrote report.md"})
				ev.Actions.ArtifactDelta = map[string]int64{"report.md": 1}
				ev.TurnComplete = true
				yield(ev, nil)
			}
		},
	})
	require.NoError(t, err)

	at := agenttool.New(ag, &agenttool.Config{ForwardArtifacts: true}).(tool.CallableTool)

	ctx := newTestToolContext(t)
	_, err = at.Call(ctx, map[string]any{"request": "write the report"})
	require.NoError(t, err)
	require.Equal(t, int64(1), ctx.actions.ArtifactDelta["report.md"],
		"the child's artifact delta is forwarded into the parent's actions")
}

func TestAgentTool_Timeout(t *testing.T) {
	slow, err := agent.New(agent.Config{
		Name:        "slow",
		Description: "never finishes in time",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				<-ctx.Done()
				yield(nil, ctx.Err())
			}
		},
	})
	require.NoError(t, err)

	at := agenttool.New(slow, &agenttool.Config{Timeout: 20 * time.Millisecond}).(tool.CallableTool)

	result, err := at.Call(newTestToolContext(t), map[string]any{"request": "take forever"})
	require.NoError(t, err, "a timeout is a structured result, not a Go error")
	require.Equal(t, true, result["timed_out"])
	require.Contains(t, result["error"], "timed out")
}
