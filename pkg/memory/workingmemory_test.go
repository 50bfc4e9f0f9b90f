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

package memory_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/agentcore/pkg/agent"
	"github.com/flowloom/agentcore/pkg/memory"
)

func textEvent(author, text string) *agent.Event {
	ev := agent.NewEvent("inv-1")
	ev.Author = author
	ev.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: text})
	return ev
}

func conversation(n int) []*agent.Event {
	events := make([]*agent.Event, 0, n)
	for i := 0; i < n; i++ {
		author := "user"
		if i%2 == 1 {
			author = "assistant"
		}
		events = append(events, textEvent(author, fmt.Sprintf("message number %d with some conversational filler text", i)))
	}
	return events
}

func TestBufferWindowStrategy_FilterEvents(t *testing.T) {
	s := memory.NewBufferWindowStrategy(memory.BufferWindowConfig{WindowSize: 5})
	require.Equal(t, "buffer_window", s.Name())

	events := conversation(12)
	kept := s.FilterEvents(events)
	require.Len(t, kept, 5)
	require.Equal(t, events[7:], kept)

	// Fewer events than the window pass through untouched.
	short := conversation(3)
	require.Equal(t, short, s.FilterEvents(short))

	// buffer_window never summarizes.
	summary, err := s.CheckAndSummarize(context.Background(), events)
	require.NoError(t, err)
	require.Nil(t, summary)
}

func TestBufferWindowStrategy_DefaultWindow(t *testing.T) {
	s := memory.NewBufferWindowStrategy(memory.BufferWindowConfig{})
	events := conversation(25)
	require.Len(t, s.FilterEvents(events), 20)
}

// stubSummarizer records what it was asked to summarize and returns a
// canned summary.
type stubSummarizer struct {
	summarized []*agent.Event
}

func (s *stubSummarizer) SummarizeConversation(ctx context.Context, events []*agent.Event) (string, error) {
	s.summarized = events
	return "the conversation so far", nil
}

func TestSummaryBufferStrategy_RequiresModel(t *testing.T) {
	_, err := memory.NewSummaryBufferStrategy(memory.SummaryBufferConfig{})
	require.Error(t, err)
}

func TestSummaryBufferStrategy_CheckAndSummarize(t *testing.T) {
	summarizer := &stubSummarizer{}
	s, err := memory.NewSummaryBufferStrategy(memory.SummaryBufferConfig{
		Model:      "gpt-4o",
		Budget:     60,
		Summarizer: summarizer,
	})
	require.NoError(t, err)
	require.Equal(t, "summary_buffer", s.Name())

	// Below the minimum message count nothing happens, whatever the tokens.
	few := conversation(5)
	summary, err := s.CheckAndSummarize(context.Background(), few)
	require.NoError(t, err)
	require.Nil(t, summary)

	// A long conversation blows the 60-token budget and summarizes the old
	// half while the most recent messages stay verbatim.
	events := conversation(24)
	summary, err = s.CheckAndSummarize(context.Background(), events)
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Equal(t, "system", summary.Author)
	require.True(t, strings.HasPrefix(summary.TextContent(), memory.SummaryPrefix))
	require.Contains(t, summary.TextContent(), "the conversation so far")
	require.NotEmpty(t, summarizer.summarized)
	require.Less(t, len(summarizer.summarized), len(events),
		"recent messages must be kept out of the summarized range")
}

func TestSummaryBufferStrategy_DisabledWithoutSummarizer(t *testing.T) {
	s, err := memory.NewSummaryBufferStrategy(memory.SummaryBufferConfig{
		Model:  "gpt-4o",
		Budget: 60,
	})
	require.NoError(t, err)

	summary, err := s.CheckAndSummarize(context.Background(), conversation(24))
	require.NoError(t, err)
	require.Nil(t, summary)
}

func TestSummaryBufferStrategy_FilterEventsFromCheckpoint(t *testing.T) {
	s, err := memory.NewSummaryBufferStrategy(memory.SummaryBufferConfig{
		Model:  "gpt-4o",
		Budget: 8000,
	})
	require.NoError(t, err)

	events := conversation(6)
	checkpoint := textEvent("system", memory.SummaryPrefix+"earlier discussion about filler text")
	withCheckpoint := append(append([]*agent.Event{}, events...), checkpoint)
	withCheckpoint = append(withCheckpoint, conversation(4)...)

	kept := s.FilterEvents(withCheckpoint)
	require.NotEmpty(t, kept)
	require.Same(t, checkpoint, kept[0], "filtering restarts from the last summary checkpoint")
}
