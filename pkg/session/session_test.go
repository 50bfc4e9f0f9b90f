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

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/agent"
	"github.com/flowloom/agentcore/pkg/session"
)

func newSession(t *testing.T, svc session.Service, state map[string]any) session.Session {
	t.Helper()
	resp, err := svc.Create(context.Background(), &session.CreateRequest{
		AppName: "app1",
		UserID:  "user1",
		State:   state,
	})
	require.NoError(t, err)
	return resp.Session
}

func TestAppendEvent_StripsTempKeys(t *testing.T) {
	svc := session.InMemoryService()
	sess := newSession(t, svc, nil)

	ev := agent.NewEvent("inv-1")
	ev.Actions.StateDelta["temp:scratch"] = "ephemeral"
	ev.Actions.StateDelta["result"] = "42"

	require.NoError(t, svc.AppendEvent(context.Background(), sess, ev))

	// The live state still sees the temp key (reads within this invocation
	// should see it) ...
	v, err := sess.State().Get("temp:scratch")
	require.NoError(t, err)
	assert.Equal(t, "ephemeral", v)

	// ... but the persisted event never carries it.
	require.Equal(t, 1, sess.Events().Len())
	persisted := sess.Events().At(0)
	_, hasTemp := persisted.Actions.StateDelta["temp:scratch"]
	assert.False(t, hasTemp, "persisted event must not contain temp: keys")
	assert.Equal(t, "42", persisted.Actions.StateDelta["result"])
}

func TestAppendEvent_ScopesStateByPrefix(t *testing.T) {
	svc := session.InMemoryService()
	sessA := newSession(t, svc, nil)

	evA, err := svc.Create(context.Background(), &session.CreateRequest{AppName: "app1", UserID: "user1"})
	require.NoError(t, err)
	sessB := evA.Session

	ev := agent.NewEvent("inv-1")
	ev.Actions.StateDelta["app:shared"] = "app-value"
	ev.Actions.StateDelta["user:pref"] = "user-value"
	ev.Actions.StateDelta["local"] = "session-value"
	require.NoError(t, svc.AppendEvent(context.Background(), sessA, ev))

	// app: and user: scoped writes are visible from a sibling session of the
	// same app/user; the unprefixed write is session-local and is not.
	v, err := sessB.State().Get("app:shared")
	require.NoError(t, err)
	assert.Equal(t, "app-value", v)

	v, err = sessB.State().Get("user:pref")
	require.NoError(t, err)
	assert.Equal(t, "user-value", v)

	_, err = sessB.State().Get("local")
	assert.ErrorIs(t, err, session.ErrStateKeyNotExist)
}

func TestAppendEvent_DeleteTombstone(t *testing.T) {
	svc := session.InMemoryService()
	sess := newSession(t, svc, map[string]any{"flag": "on"})

	ev := agent.NewEvent("inv-1")
	ev.Actions.StateDelta["flag"] = nil
	require.NoError(t, svc.AppendEvent(context.Background(), sess, ev))

	_, err := sess.State().Get("flag")
	assert.ErrorIs(t, err, session.ErrStateKeyNotExist)
}

func TestClearTempKeys(t *testing.T) {
	svc := session.InMemoryService()
	sess := newSession(t, svc, nil)

	ev := agent.NewEvent("inv-1")
	ev.Actions.StateDelta["temp:x"] = 1
	ev.Actions.StateDelta["kept"] = 2
	require.NoError(t, svc.AppendEvent(context.Background(), sess, ev))

	clearable, ok := sess.State().(agent.TempClearable)
	require.True(t, ok)
	clearable.ClearTempKeys()

	_, err := sess.State().Get("temp:x")
	assert.ErrorIs(t, err, session.ErrStateKeyNotExist)

	v, err := sess.State().Get("kept")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestAppendEvent_SessionNotFound(t *testing.T) {
	svc := session.InMemoryService()
	fake := newSession(t, svc, nil)
	require.NoError(t, svc.Delete(context.Background(), &session.DeleteRequest{
		AppName: fake.AppName(), UserID: fake.UserID(), SessionID: fake.ID(),
	}))

	err := svc.AppendEvent(context.Background(), fake, agent.NewEvent("inv-1"))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestGet_EventWindowFilters(t *testing.T) {
	svc := session.InMemoryService()
	sess := newSession(t, svc, nil)

	var cutoff time.Time
	for i := 0; i < 4; i++ {
		ev := agent.NewEvent("inv-1")
		ev.Author = "agent"
		if i == 2 {
			cutoff = ev.Timestamp
		}
		require.NoError(t, svc.AppendEvent(context.Background(), sess, ev))
	}

	resp, err := svc.Get(context.Background(), &session.GetRequest{
		AppName: "app1", UserID: "user1", SessionID: sess.ID(),
		NumRecentEvents: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Session.Events().Len())

	resp, err = svc.Get(context.Background(), &session.GetRequest{
		AppName: "app1", UserID: "user1", SessionID: sess.ID(),
		After: cutoff,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Session.Events().Len())

	// The unfiltered view still carries the full log.
	resp, err = svc.Get(context.Background(), &session.GetRequest{
		AppName: "app1", UserID: "user1", SessionID: sess.ID(),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Session.Events().Len())
}
