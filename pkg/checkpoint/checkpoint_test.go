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

package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/checkpoint"
	"github.com/flowloom/agentcore/pkg/session"
)

func enabledConfig(t *testing.T) *checkpoint.Config {
	t.Helper()
	enabled := true
	cfg := &checkpoint.Config{Enabled: &enabled}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

// TestManager_SaveLoadClear exercises the session-backed checkpoint store
// end to end: save a HITL approval checkpoint, load it back, list it as
// pending, clear it on completion.
func TestManager_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	svc := session.InMemoryService()
	_, err := svc.Create(ctx, &session.CreateRequest{
		AppName: "test-app", UserID: "user-1", SessionID: "session-1",
	})
	require.NoError(t, err)

	m := checkpoint.NewManager(enabledConfig(t), svc)
	require.True(t, m.IsEnabled())

	st := checkpoint.NewState("task-1", "session-1", "user-1", "test-app",
		"deploy the service", "assistant", "inv-1")
	st.WithPhase(checkpoint.PhaseToolApproval).WithPendingToolCall(&checkpoint.PendingToolCall{
		ID:               "call-1",
		Name:             "deploy",
		Arguments:        map[string]any{"env": "prod"},
		RequiresApproval: true,
	})
	require.NoError(t, m.SaveCheckpoint(ctx, st))

	loaded, err := m.LoadCheckpoint(ctx, "test-app", "user-1", "session-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, "deploy the service", loaded.Query)
	require.Equal(t, checkpoint.PhaseToolApproval, loaded.Phase)
	require.True(t, loaded.NeedsUserInput())
	require.Equal(t, "deploy", loaded.PendingToolCall.Name)

	pending, err := m.GetPendingCheckpoints(ctx, "test-app", "user-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "task-1", pending[0].TaskID)

	require.NoError(t, m.ClearCheckpoint(ctx, "test-app", "user-1", "session-1", "task-1"))
	_, err = m.LoadCheckpoint(ctx, "test-app", "user-1", "session-1", "task-1")
	require.Error(t, err)
}

// A disabled manager saves nothing and reports itself disabled, so callers
// can wire it unconditionally.
func TestManager_Disabled(t *testing.T) {
	ctx := context.Background()
	svc := session.InMemoryService()
	_, err := svc.Create(ctx, &session.CreateRequest{
		AppName: "test-app", UserID: "user-1", SessionID: "session-1",
	})
	require.NoError(t, err)

	m := checkpoint.NewManager(nil, svc)
	require.False(t, m.IsEnabled())

	st := checkpoint.NewState("task-1", "session-1", "user-1", "test-app",
		"query", "assistant", "inv-1")
	require.NoError(t, m.SaveCheckpoint(ctx, st))

	_, err = m.LoadCheckpoint(ctx, "test-app", "user-1", "session-1", "task-1")
	require.Error(t, err, "disabled manager must not have persisted anything")
}

// TestCheckpointHooks exercises the runner-facing integration points: a
// HITL approval hook persists a recoverable checkpoint, completion clears
// it.
func TestCheckpointHooks(t *testing.T) {
	ctx := context.Background()
	svc := session.InMemoryService()
	_, err := svc.Create(ctx, &session.CreateRequest{
		AppName: "test-app", UserID: "user-1", SessionID: "session-1",
	})
	require.NoError(t, err)

	m := checkpoint.NewManager(enabledConfig(t), svc)
	hooks := checkpoint.NewCheckpointHooks(m)
	require.NotNil(t, hooks)

	st := checkpoint.NewState("task-1", "session-1", "user-1", "test-app",
		"deploy the service", "assistant", "inv-1")
	hooks.OnToolApprovalRequired(ctx, st, &checkpoint.PendingToolCall{
		ID: "call-1", Name: "deploy", RequiresApproval: true,
	})

	loaded, err := m.LoadCheckpoint(ctx, "test-app", "user-1", "session-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, checkpoint.PhaseToolApproval, loaded.Phase)
	require.True(t, loaded.NeedsUserInput())

	hooks.AfterLLMCall(ctx, st)
	loaded, err = m.LoadCheckpoint(ctx, "test-app", "user-1", "session-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, checkpoint.PhasePostLLM, loaded.Phase)

	hooks.OnComplete(ctx, "test-app", "user-1", "session-1", "task-1")
	_, err = m.LoadCheckpoint(ctx, "test-app", "user-1", "session-1", "task-1")
	require.Error(t, err, "completion clears the checkpoint")

	// A nil hooks value (disabled checkpointing) is a safe no-op.
	var disabled *checkpoint.CheckpointHooks
	disabled.BeforeLLMCall(ctx, st)
	disabled.OnComplete(ctx, "test-app", "user-1", "session-1", "task-1")
}

func TestState_SerializeRoundTrip(t *testing.T) {
	st := checkpoint.NewState("task-1", "session-1", "user-1", "test-app",
		"query", "assistant", "inv-1")
	st.WithAgentState(&checkpoint.AgentStateSnapshot{Iteration: 3, Branch: "root.assistant"}).
		WithLastEventIndex(7)

	data, err := st.Serialize()
	require.NoError(t, err)

	got, err := checkpoint.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, st.TaskID, got.TaskID)
	require.Equal(t, st.Query, got.Query)
	require.Equal(t, 3, got.AgentState.Iteration)
	require.Equal(t, 7, got.LastEventIndex)

	_, err = checkpoint.Deserialize(nil)
	require.Error(t, err)
}

func TestState_Expiry(t *testing.T) {
	st := checkpoint.NewState("task-1", "session-1", "user-1", "test-app",
		"query", "assistant", "inv-1")

	require.False(t, st.IsExpired(0), "zero timeout never expires")
	require.False(t, st.IsExpired(time.Hour))

	st.CheckpointTime = time.Now().Add(-2 * time.Hour)
	require.True(t, st.IsExpired(time.Hour))
}

func TestConfig_IntervalStrategy(t *testing.T) {
	enabled := true
	cfg := &checkpoint.Config{
		Enabled:  &enabled,
		Strategy: checkpoint.StrategyInterval,
		Interval: 5,
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	require.True(t, cfg.ShouldCheckpointAtIteration(5))
	require.False(t, cfg.ShouldCheckpointAtIteration(4))
}
