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

package remoteagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
	"go.uber.org/zap"

	"github.com/flowloom/agentcore/pkg/agent"
)

// Metadata keys attached to events converted from remote A2A responses,
// so callers can correlate local events with the remote task.
const (
	metaKeyTaskID    = "a2a_task_id"
	metaKeyContextID = "a2a_context_id"
)

// Config configures a remote A2A agent.
type Config struct {
	// Name is the local name for this remote agent.
	// Required.
	Name string

	// Description describes what this remote agent does.
	Description string

	// URL is the base URL of the remote A2A server.
	// Can be used instead of AgentCard/AgentCardSource.
	// Example: "http://localhost:9000"
	URL string

	// AgentCard provides the agent card directly.
	// Takes precedence over URL and AgentCardSource.
	AgentCard *a2a.AgentCard

	// AgentCardSource is a URL or file path to resolve the agent card.
	// Used if AgentCard is not provided.
	// Example: "http://localhost:9000/.well-known/agent.json" or "./agent-card.json"
	AgentCardSource string

	// Timeout bounds how long a remote invocation may run. Zero means no
	// timeout. On expiry the event stream ends with a final event carrying
	// ErrorCode "timeout"; no Go error is raised.
	Timeout time.Duration

	// MessageSendConfig is attached to every message sent to the remote agent.
	MessageSendConfig *a2a.MessageSendConfig
}

// a2aAgent is the internal implementation of a remote A2A agent.
type a2aAgent struct {
	cfg          Config
	resolvedCard *a2a.AgentCard
}

// NewA2A creates a remote A2A agent.
//
// Remote A2A agents communicate with agents running in different processes
// or on different hosts using the A2A (Agent-to-Agent) protocol. The remote
// side implements the same Agent contract this package's local agents do;
// locally it is indistinguishable from any other sub-agent:
//
//   - Used as a sub-agent for transfer patterns
//   - Wrapped as a tool using agenttool.New()
//   - Part of workflow agents (sequential, parallel, loop)
//
// Example:
//
//	// From URL (agent card resolved automatically)
//	agent, _ := remoteagent.NewA2A(remoteagent.Config{
//	    Name:        "remote_helper",
//	    Description: "A remote helper agent",
//	    URL:         "http://localhost:9000",
//	})
func NewA2A(cfg Config) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if cfg.URL == "" && cfg.AgentCard == nil && cfg.AgentCardSource == "" {
		return nil, fmt.Errorf("one of URL, AgentCard, or AgentCardSource must be provided")
	}

	// If URL provided but no AgentCardSource, construct the well-known path
	if cfg.URL != "" && cfg.AgentCardSource == "" && cfg.AgentCard == nil {
		cfg.AgentCardSource = strings.TrimSuffix(cfg.URL, "/") + "/.well-known/agent.json"
	}

	remoteAgent := &a2aAgent{
		cfg:          cfg,
		resolvedCard: cfg.AgentCard,
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return remoteAgent.run(ctx)
		},
	})
}

func (a *a2aAgent) run(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		var runCtx context.Context = ctx
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}

		card, err := a.resolveAgentCard(runCtx)
		if err != nil {
			yield(a.errorEvent(ctx, "agent_card_resolution_failed", err), nil)
			return
		}
		a.resolvedCard = card

		client, err := a2aclient.NewFromCard(runCtx, card)
		if err != nil {
			yield(a.errorEvent(ctx, "client_creation_failed", err), nil)
			return
		}
		defer func() { _ = client.Destroy() }()

		msg := a.buildMessage(ctx)
		if len(msg.Parts) == 0 {
			// Nothing to send; end the turn without a remote round trip.
			final := a.newEvent(ctx)
			final.TurnComplete = true
			yield(final, nil)
			return
		}

		req := &a2a.MessageSendParams{
			Message: msg,
			Config:  a.cfg.MessageSendConfig,
		}

		for a2aEvent, err := range client.SendStreamingMessage(runCtx, req) {
			if err != nil {
				if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
					yield(a.timeoutEvent(ctx), nil)
					return
				}
				yield(a.errorEvent(ctx, "remote_stream_failed", err), nil)
				return
			}

			event := a.convertEvent(ctx, a2aEvent)
			if event == nil {
				continue
			}

			if !yield(event, nil) {
				return
			}
		}

		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			yield(a.timeoutEvent(ctx), nil)
		}
	}
}

func (a *a2aAgent) resolveAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	if a.resolvedCard != nil {
		return a.resolvedCard, nil
	}

	source := a.cfg.AgentCardSource

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		card, err := agentcard.DefaultResolver.Resolve(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch agent card from %s: %w", source, err)
		}
		return card, nil
	}

	fileBytes, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent card from %q: %w", source, err)
	}

	var card a2a.AgentCard
	if err := json.Unmarshal(fileBytes, &card); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent card: %w", err)
	}

	return &card, nil
}

func (a *a2aAgent) buildMessage(ctx agent.InvocationContext) *a2a.Message {
	userContent := ctx.UserContent()
	if userContent == nil {
		return a2a.NewMessage(a2a.MessageRoleUser)
	}
	return a2a.NewMessage(a2a.MessageRoleUser, userContent.Parts...)
}

func (a *a2aAgent) newEvent(ctx agent.InvocationContext) *agent.Event {
	event := agent.NewEvent(ctx.InvocationID())
	event.Author = a.cfg.Name
	event.Branch = ctx.Branch()
	return event
}

// errorEvent reifies a transport-level failure as a final event rather than
// a stream error, so a remote failure never breaks the parent's event loop.
func (a *a2aAgent) errorEvent(ctx agent.InvocationContext, code string, err error) *agent.Event {
	zap.S().Warnw("Remote agent invocation failed",
		"agent", a.cfg.Name,
		"code", code,
		"error", err)
	event := a.newEvent(ctx)
	event.ErrorCode = code
	event.ErrorMessage = err.Error()
	event.TurnComplete = true
	return event
}

func (a *a2aAgent) timeoutEvent(ctx agent.InvocationContext) *agent.Event {
	event := a.newEvent(ctx)
	event.ErrorCode = "timeout"
	event.ErrorMessage = fmt.Sprintf("remote agent %q did not complete within %s", a.cfg.Name, a.cfg.Timeout)
	event.Interrupted = true
	event.TurnComplete = true
	return event
}

// convertEvent maps a remote A2A event into a local event. Remote task
// state drives the Partial/TurnComplete flags; a failed or canceled task
// becomes a final event with error fields set.
func (a *a2aAgent) convertEvent(ctx agent.InvocationContext, a2aEvent a2a.Event) *agent.Event {
	switch e := a2aEvent.(type) {
	case *a2a.Message:
		event := a.newEvent(ctx)
		event.Message = e
		event.TurnComplete = true
		a.tagRemoteTask(event, string(e.TaskID), e.ContextID)
		return event

	case *a2a.Task:
		return a.taskToEvent(ctx, e)

	case *a2a.TaskStatusUpdateEvent:
		return a.statusToEvent(ctx, e)

	case *a2a.TaskArtifactUpdateEvent:
		if len(e.Artifact.Parts) == 0 {
			return nil
		}
		event := a.newEvent(ctx)
		event.Message = a2a.NewMessage(a2a.MessageRoleAgent, e.Artifact.Parts...)
		event.Partial = !e.LastChunk
		a.tagRemoteTask(event, string(e.TaskID), e.ContextID)
		return event

	default:
		// Unknown event type, skip
		return nil
	}
}

func (a *a2aAgent) taskToEvent(ctx agent.InvocationContext, task *a2a.Task) *agent.Event {
	event := a.newEvent(ctx)

	var parts []a2a.Part
	for _, artifact := range task.Artifacts {
		parts = append(parts, artifact.Parts...)
	}
	if task.Status.Message != nil {
		parts = append(parts, task.Status.Message.Parts...)
	}
	if len(parts) > 0 {
		event.Message = a2a.NewMessage(a2a.MessageRoleAgent, parts...)
	}

	a.applyTaskState(event, task.Status.State)
	a.tagRemoteTask(event, string(task.ID), task.ContextID)
	return event
}

func (a *a2aAgent) statusToEvent(ctx agent.InvocationContext, update *a2a.TaskStatusUpdateEvent) *agent.Event {
	// Intermediate working updates with no message carry nothing to surface.
	if !update.Final && update.Status.Message == nil &&
		update.Status.State != a2a.TaskStateInputRequired {
		return nil
	}

	event := a.newEvent(ctx)
	if update.Status.Message != nil {
		event.Message = update.Status.Message
	}
	a.applyTaskState(event, update.Status.State)
	if update.Final {
		event.Partial = false
		event.TurnComplete = true
	}
	a.tagRemoteTask(event, string(update.TaskID), update.ContextID)
	return event
}

// applyTaskState maps a remote task state onto the local event flags.
func (a *a2aAgent) applyTaskState(event *agent.Event, state a2a.TaskState) {
	switch state {
	case a2a.TaskStateFailed:
		event.ErrorCode = "remote_task_failed"
		event.ErrorMessage = event.TextContent()
		if event.ErrorMessage == "" {
			event.ErrorMessage = "remote task failed"
		}
		event.TurnComplete = true
	case a2a.TaskStateCanceled:
		event.Interrupted = true
		event.TurnComplete = true
	case a2a.TaskStateInputRequired:
		event.Actions.RequireInput = true
		event.Actions.InputPrompt = event.TextContent()
		event.TurnComplete = true
	default:
		event.Partial = !state.Terminal()
		event.TurnComplete = state.Terminal()
	}
}

func (a *a2aAgent) tagRemoteTask(event *agent.Event, taskID, contextID string) {
	if taskID == "" && contextID == "" {
		return
	}
	if event.CustomMetadata == nil {
		event.CustomMetadata = make(map[string]any)
	}
	if taskID != "" {
		event.CustomMetadata[metaKeyTaskID] = taskID
	}
	if contextID != "" {
		event.CustomMetadata[metaKeyContextID] = contextID
	}
}
