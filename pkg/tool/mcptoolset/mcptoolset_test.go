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

package mcptoolset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/tool"
	"github.com/flowloom/agentcore/pkg/tool/mcptoolset"
)

// Connection behavior needs a live MCP server; these tests pin the
// construction and configuration surface a host programs against.

func TestNew_RequiresURLOrCommand(t *testing.T) {
	_, err := mcptoolset.New(mcptoolset.Config{Name: "empty"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "either url or command is required")
}

func TestNew_HTTPConfig(t *testing.T) {
	ts, err := mcptoolset.New(mcptoolset.Config{
		Name:      "docs",
		URL:       "http://localhost:3001/mcp",
		Transport: "streamable-http",
	})
	require.NoError(t, err)
	require.Equal(t, "docs", ts.Name())

	var _ tool.Toolset = ts
}

func TestNew_StdioConfig(t *testing.T) {
	ts, err := mcptoolset.New(mcptoolset.Config{
		Name:    "local",
		Command: "mcp-server",
		Args:    []string{"--stdio"},
	})
	require.NoError(t, err)
	require.Equal(t, "local", ts.Name())
}

func TestWithFilter(t *testing.T) {
	ts, err := mcptoolset.New(mcptoolset.Config{
		Name: "docs",
		URL:  "http://localhost:3001/mcp",
	})
	require.NoError(t, err)

	filtered := ts.WithFilter([]string{"search"})
	require.Equal(t, "docs", filtered.Name(), "a filtered view keeps the parent's name")
}
