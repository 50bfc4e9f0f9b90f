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

// Package config provides YAML-based configuration loading for the agent
// execution core, with optional hot-reload when backed by a file provider.
//
// A host process embedding this module is not required to use this
// package — pkg/graph, pkg/checkpoint, and pkg/observability all accept
// plain Go structs constructed programmatically. pkg/config exists for
// hosts that prefer to describe deployment-time knobs (recursion limits,
// checkpoint strategy, tracing/metrics exporters) in a YAML file that can
// be edited and hot-reloaded without a rebuild.
//
// Example config:
//
//	graph:
//	  recursion_limit: 25
//
//	checkpoint:
//	  enabled: true
//	  strategy: hybrid
//	  interval: 5
//
//	observability:
//	  tracing:
//	    enabled: true
//	    exporter: otlp
//	    endpoint: localhost:4317
//	  metrics:
//	    enabled: true
package config

import (
	"fmt"

	"github.com/flowloom/agentcore/pkg/checkpoint"
	"github.com/flowloom/agentcore/pkg/graph"
	"github.com/flowloom/agentcore/pkg/observability"
)

// GraphConfig configures the static, deployment-time knobs of graph
// execution. Per-invocation settings (ThreadID, ResumeFrom) stay on
// graph.ExecutionConfig since they vary per call, not per deployment.
type GraphConfig struct {
	// RecursionLimit bounds the number of super-steps a graph run may take
	// before failing with graph.ErrRecursionLimitExceeded.
	// Default: graph.DefaultRecursionLimit (25).
	RecursionLimit int `yaml:"recursion_limit,omitempty"`
}

// SetDefaults applies default values to unset fields.
func (c *GraphConfig) SetDefaults() {
	if c.RecursionLimit == 0 {
		c.RecursionLimit = graph.DefaultRecursionLimit
	}
}

// Validate checks the graph configuration for consistency.
func (c *GraphConfig) Validate() error {
	if c.RecursionLimit < 0 {
		return fmt.Errorf("graph.recursion_limit must be >= 0, got %d", c.RecursionLimit)
	}
	return nil
}

// Config is the root configuration structure for the agent execution core.
type Config struct {
	// Graph configures the Pregel-style graph executor's deployment-time
	// limits.
	Graph GraphConfig `yaml:"graph,omitempty"`

	// Checkpoint configures checkpoint persistence and recovery.
	Checkpoint checkpoint.Config `yaml:"checkpoint,omitempty"`

	// Observability configures tracing and metrics collection.
	Observability observability.Config `yaml:"observability,omitempty"`
}

// SetDefaults applies default values across all sections.
func (c *Config) SetDefaults() {
	c.Graph.SetDefaults()
	c.Checkpoint.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the configuration for consistency across all sections.
func (c *Config) Validate() error {
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
