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

package instruction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/agent"
	"github.com/flowloom/agentcore/pkg/instruction"
	"github.com/flowloom/agentcore/pkg/session"
)

func newTemplateContext(t *testing.T, state map[string]any) agent.ReadonlyContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(context.Background(), &session.CreateRequest{
		AppName: "test-app", UserID: "user-1", SessionID: "session-1",
		State: state,
	})
	require.NoError(t, err)

	return agent.NewInvocationContext(context.Background(), agent.InvocationContextParams{
		Session: resp.Session,
	})
}

func TestInjectState(t *testing.T) {
	ctx := newTemplateContext(t, map[string]any{
		"user_name":        "Ada",
		"app:project_name": "apollo",
	})

	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{
			name:     "session and app scoped placeholders",
			template: "Hello {user_name}, you are working on {app:project_name}.",
			want:     "Hello Ada, you are working on apollo.",
		},
		{
			name:     "optional missing resolves to empty",
			template: "Context: {notes?}",
			want:     "Context: ",
		},
		{
			name:     "required missing errors",
			template: "Context: {notes}",
			wantErr:  true,
		},
		{
			name:     "invalid identifier left as literal",
			template: "JSON looks like {\"key\": 1}",
			want:     "JSON looks like {\"key\": 1}",
		},
		{
			name:     "no placeholders passes through",
			template: "You are a helpful assistant.",
			want:     "You are a helpful assistant.",
		},
		{
			name:     "empty template",
			template: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := instruction.InjectState(ctx, tt.template)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTemplate_Render(t *testing.T) {
	ctx := newTemplateContext(t, map[string]any{"topic": "graphs"})

	tmpl := instruction.New("Explain {topic}.")
	require.Equal(t, "Explain {topic}.", tmpl.Raw())

	got, err := tmpl.Render(ctx)
	require.NoError(t, err)
	require.Equal(t, "Explain graphs.", got)
}

func TestPlaceholderIntrospection(t *testing.T) {
	require.True(t, instruction.HasPlaceholders("Hello {name}"))
	require.False(t, instruction.HasPlaceholders("Hello there"))

	names := instruction.ListPlaceholders("{a} {b?} {a}")
	require.Equal(t, []string{"a", "b"}, names)
}
