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

package memory

import (
	"context"

	"github.com/flowloom/agentcore/pkg/agent"
)

// BufferWindowStrategy keeps only the last N events for the context window.
// It never summarizes; CheckAndSummarize always returns nil.
//
// Ported from the legacy pkg/memory buffer_window strategy for use against
// the event-based WorkingMemoryStrategy contract.
type BufferWindowStrategy struct {
	windowSize int
}

// BufferWindowConfig configures a BufferWindowStrategy.
type BufferWindowConfig struct {
	// WindowSize is the number of most recent events to retain.
	// Defaults to 20 when <= 0.
	WindowSize int
}

// NewBufferWindowStrategy creates a buffer-window working memory strategy.
func NewBufferWindowStrategy(cfg BufferWindowConfig) *BufferWindowStrategy {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = 20
	}
	return &BufferWindowStrategy{windowSize: windowSize}
}

// Name returns the strategy identifier.
func (s *BufferWindowStrategy) Name() string {
	return "buffer_window"
}

// FilterEvents keeps at most the last windowSize events.
func (s *BufferWindowStrategy) FilterEvents(events []*agent.Event) []*agent.Event {
	if len(events) <= s.windowSize {
		return events
	}
	return events[len(events)-s.windowSize:]
}

// CheckAndSummarize never summarizes; buffer_window just truncates.
func (s *BufferWindowStrategy) CheckAndSummarize(ctx context.Context, events []*agent.Event) (*agent.Event, error) {
	return nil, nil
}

// Ensure BufferWindowStrategy implements WorkingMemoryStrategy.
var _ WorkingMemoryStrategy = (*BufferWindowStrategy)(nil)
