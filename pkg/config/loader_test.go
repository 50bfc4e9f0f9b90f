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

package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/config"
	"github.com/flowloom/agentcore/pkg/config/provider"
)

func writeConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))
	return path
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
graph:
  recursion_limit: 10
`)

	cfg, loader, err := config.LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	require.Equal(t, 10, cfg.Graph.RecursionLimit)
	// Checkpoint/Observability sections were absent from the file, so
	// SetDefaults must have filled them in rather than leaving zero values.
	require.NotEmpty(t, cfg.Checkpoint.Strategy)
}

func TestLoadConfigFile_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_OTLP_ENDPOINT", "collector.internal:4317")

	path := writeConfig(t, `
observability:
  tracing:
    enabled: true
    endpoint: ${TEST_OTLP_ENDPOINT}
`)

	cfg, loader, err := config.LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	require.True(t, cfg.Observability.Tracing.Enabled)
	require.Equal(t, "collector.internal:4317", cfg.Observability.Tracing.Endpoint)
}

func TestLoadConfigFile_EnvVarDefault(t *testing.T) {
	path := writeConfig(t, `
observability:
  tracing:
    endpoint: ${UNSET_ENDPOINT:-localhost:4317}
`)

	cfg, loader, err := config.LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	require.Equal(t, "localhost:4317", cfg.Observability.Tracing.Endpoint)
}

func TestLoadConfigFile_NotFound(t *testing.T) {
	_, _, err := config.LoadConfigFile(context.Background(), "/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoadConfigFile_InvalidRecursionLimit(t *testing.T) {
	path := writeConfig(t, `
graph:
  recursion_limit: -1
`)

	_, _, err := config.LoadConfigFile(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "recursion_limit")
}

// TestLoader_Watch exercises the file provider's hot-reload path: writing
// a changed file triggers the loader's onChange callback with the reloaded
// config.
func TestLoader_Watch(t *testing.T) {
	path := writeConfig(t, `
graph:
  recursion_limit: 5
`)

	p, err := provider.NewFileProvider(path)
	require.NoError(t, err)

	reloaded := make(chan *config.Config, 1)
	loader := config.NewLoader(p, config.WithOnChange(func(cfg *config.Config) {
		reloaded <- cfg
	}))
	defer loader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loader.Watch(ctx)

	// Give the watcher time to register before mutating the file.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("graph:\n  recursion_limit: 42\n"), 0o644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 42, cfg.Graph.RecursionLimit)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
