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

package graph

import (
	"context"
	"iter"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetricsRecorder is the subset of observability.Recorder the executor
// needs. Any value satisfying observability.Recorder already satisfies this
// narrower interface, so callers pass their existing recorder through
// unchanged.
type MetricsRecorder interface {
	RecordAgentCall(agentName, agentType string, duration time.Duration)
	RecordAgentError(agentName, agentType, errorType string)
}

// ExecutionConfig is the per-run configuration for a graph invocation.
type ExecutionConfig struct {
	// ThreadID identifies the checkpoint chain this run reads from/writes to.
	ThreadID string

	// ResumeFrom, if set, loads that checkpoint id instead of the thread's
	// latest checkpoint, and the run continues from its pending_nodes
	// rather than re-executing the node that caused the interrupt.
	ResumeFrom string

	// Metrics optionally records super-step/node timings.
	Metrics MetricsRecorder
}

type superStepResult struct {
	executedNodes []string
	events        []*StreamEvent
	updates       []update
	gotos         map[string]string
	interrupt     *Interrupt
}

// executeSuperStep runs one super-step: interrupt_before
// check, concurrent frontier execution, dynamic-interrupt short-circuit,
// deterministic update merge, interrupt_after check.
func (cg *CompiledGraph) executeSuperStep(ctx context.Context, frontier []string, state State, cfg ExecutionConfig, step int, skipInterruptBefore bool) (*superStepResult, error) {
	zap.S().Debugw("graph: super-step",
		"thread_id", cfg.ThreadID,
		"step", step,
		"frontier", frontier)

	if !skipInterruptBefore {
		for _, name := range frontier {
			if cg.interruptBefore[name] {
				return &superStepResult{interrupt: &Interrupt{Kind: InterruptBefore, Node: name}}, nil
			}
		}
	}

	type nodeRun struct {
		name   string
		output *NodeOutput
		ms     int64
	}
	runs := make([]nodeRun, len(frontier))

	for _, name := range frontier {
		if _, ok := cg.nodes[name]; !ok {
			return nil, &ErrNodeExecutionFailed{Node: name, Message: "node not registered"}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range frontier {
		i, name := i, name
		node := cg.nodes[name]
		g.Go(func() error {
			nctx := &NodeContext{Context: gctx, State: state.Clone(), Config: cfg, Step: step}
			start := time.Now()
			out, err := node.Execute(nctx)
			ms := durationMillis(start)
			if cfg.Metrics != nil {
				cfg.Metrics.RecordAgentCall(name, "graph_node", time.Duration(ms)*time.Millisecond)
			}
			if err != nil {
				if cfg.Metrics != nil {
					cfg.Metrics.RecordAgentError(name, "graph_node", "node_execution_failed")
				}
				return &ErrNodeExecutionFailed{Node: name, Message: err.Error()}
			}
			runs[i] = nodeRun{name: name, output: out, ms: ms}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &superStepResult{}
	for _, r := range runs {
		result.executedNodes = append(result.executedNodes, r.name)
		result.events = append(result.events, nodeEndEvent(r.name, step, r.ms))
	}

	// Deterministic interrupt precedence: if more than one node dynamically
	// interrupted in the same super-step, the lexicographically first node
	// name wins, so the suspension the caller observes never depends on
	// goroutine completion order.
	interrupting := make([]nodeRun, 0)
	for _, r := range runs {
		if r.output != nil && r.output.Interrupt != nil {
			interrupting = append(interrupting, r)
		}
	}
	if len(interrupting) > 0 {
		sort.Slice(interrupting, func(i, j int) bool { return interrupting[i].name < interrupting[j].name })
		result.interrupt = interrupting[0].output.Interrupt
		return result, nil
	}

	result.gotos = map[string]string{}
	for _, r := range runs {
		if r.output == nil {
			continue
		}
		result.events = append(result.events, r.output.Events...)
		for channel, value := range r.output.Updates {
			result.updates = append(result.updates, update{node: r.name, channel: channel, value: value})
		}
		if r.output.Goto != "" {
			result.gotos[r.name] = r.output.Goto
		}
	}

	for _, name := range result.executedNodes {
		if cg.interruptAfter[name] {
			after := Interrupt{Kind: InterruptAfter, Node: name}
			result.interrupt = &after
			break
		}
	}

	return result, nil
}

// initializeState builds the run's starting state: resume from a named
// checkpoint, or the thread's latest, or (absent a checkpointer/history)
// nothing - then merges input on top via the schema's reducers.
func (cg *CompiledGraph) initializeState(cfg ExecutionConfig, input State) (State, error) {
	state := State{}

	if cg.checkpoints != nil {
		var cp *Checkpoint
		var err error
		if cfg.ResumeFrom != "" {
			cp, err = cg.checkpoints.LoadByID(cfg.ResumeFrom)
		} else {
			cp, err = cg.checkpoints.Load(cfg.ThreadID)
		}
		if err != nil {
			return nil, err
		}
		if cp != nil {
			state = cp.State.Clone()
		}
	}

	var inputUpdates []update
	for k, v := range input {
		inputUpdates = append(inputUpdates, update{node: "__input__", channel: k, value: v})
	}
	if len(inputUpdates) > 0 {
		if err := ApplyUpdates(cg.schema, state, inputUpdates); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (cg *CompiledGraph) saveCheckpoint(cfg ExecutionConfig, state State, step int, pending []string) (string, error) {
	if cg.checkpoints == nil {
		return "", nil
	}
	id, err := cg.checkpoints.Save(&Checkpoint{
		ThreadID:     cfg.ThreadID,
		Step:         step,
		State:        state.Clone(),
		PendingNodes: append([]string{}, pending...),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return "", err
	}
	zap.S().Debugw("graph: checkpoint saved",
		"thread_id", cfg.ThreadID,
		"step", step,
		"checkpoint_id", id,
		"pending", pending)
	return id, nil
}

func logInterrupt(cfg ExecutionConfig, step int, i Interrupt) {
	zap.S().Infow("graph: interrupted",
		"thread_id", cfg.ThreadID,
		"step", step,
		"interrupt", i.String())
}

// entryFrontier computes the frontier a run starts from. resumed is true
// when that frontier came from a persisted checkpoint's pending_nodes
// rather than the graph's static entry nodes - a continuation, whether via
// an explicit ResumeFrom or by re-invoking the same thread after a prior
// suspension. The first super-step of a resumed run must not re-trigger the
// static interrupt_before check that produced the earlier suspension, or
// resume could never make progress past an interrupt_before node.
func (cg *CompiledGraph) entryFrontier(cfg ExecutionConfig) (frontier []string, resumed bool) {
	if cg.checkpoints != nil {
		if cp, err := cg.checkpoints.Load(cfg.ThreadID); err == nil && cp != nil && cfg.ResumeFrom == "" {
			return cp.PendingNodes, true
		}
		if cfg.ResumeFrom != "" {
			if cp, err := cg.checkpoints.LoadByID(cfg.ResumeFrom); err == nil && cp != nil {
				return cp.PendingNodes, true
			}
		}
	}
	return append([]string{}, cg.entryNodes...), false
}

// Invoke runs the graph to completion and returns the final state, or an
// *InterruptedError if a static/dynamic interrupt suspends it, or a run
// failure for ErrRecursionLimitExceeded / ErrNodeExecutionFailed /
// ErrSchemaViolation / ErrConcurrentWriteConflict.
func (cg *CompiledGraph) Invoke(ctx context.Context, input State, cfg ExecutionConfig) (State, error) {
	state, err := cg.initializeState(cfg, input)
	if err != nil {
		return nil, err
	}
	frontier, skipInterruptBefore := cg.entryFrontier(cfg)
	step := 0

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if step >= cg.recursionLimitOr(DefaultRecursionLimit) {
			return nil, &ErrRecursionLimitExceeded{Step: step}
		}

		result, err := cg.executeSuperStep(ctx, frontier, state, cfg, step, skipInterruptBefore)
		skipInterruptBefore = false
		if err != nil {
			return nil, err
		}

		// interrupt_before and dynamic interrupts suspend without applying
		// this step's updates; the checkpoint's pending set is the frontier
		// itself so resume re-schedules it.
		if result.interrupt != nil && result.interrupt.Kind != InterruptAfter {
			cpID, err := cg.saveCheckpoint(cfg, state, step, frontier)
			if err != nil {
				return nil, &CheckpointUnavailable{Err: err}
			}
			logInterrupt(cfg, step, *result.interrupt)
			return nil, &InterruptedError{
				ThreadID: cfg.ThreadID, CheckpointID: cpID,
				Interrupt: *result.interrupt, State: state.Clone(), Step: step,
			}
		}

		if err := ApplyUpdates(cg.schema, state, result.updates); err != nil {
			return nil, err
		}

		next, _ := cg.nextFrontier(result.executedNodes, state, result.gotos)
		cpID, err := cg.saveCheckpoint(cfg, state, step, next)
		if err != nil {
			return nil, &CheckpointUnavailable{Err: err}
		}

		// interrupt_after surfaces only after the step's updates are merged
		// and checkpointed; its pending set is the next frontier, so resume
		// does not re-execute the interrupting node.
		if result.interrupt != nil {
			logInterrupt(cfg, step, *result.interrupt)
			return nil, &InterruptedError{
				ThreadID: cfg.ThreadID, CheckpointID: cpID,
				Interrupt: *result.interrupt, State: state.Clone(), Step: step,
			}
		}

		if len(next) == 0 {
			break
		}
		frontier = next
		step++
	}

	return state, nil
}

// willInterruptBefore reports whether the next executeSuperStep call would
// suspend on a static interrupt_before instead of running the frontier - so
// Debug mode does not announce NodeStart for nodes that will not run.
func (cg *CompiledGraph) willInterruptBefore(frontier []string, skip bool) bool {
	if skip {
		return false
	}
	for _, name := range frontier {
		if cg.interruptBefore[name] {
			return true
		}
	}
	return false
}

func (cg *CompiledGraph) recursionLimitOr(def int) int {
	if cg.recursionLimit > 0 {
		return cg.recursionLimit
	}
	return def
}

// Stream runs the graph, yielding StreamEvents as execution progresses. The
// sequence always ends with exactly one of: a Done event, an interrupted
// event, or a yielded error - never more than one error per stream (§7).
// Dropping iteration (the consumer stopping early) is treated as a
// cooperative cancellation at the next super-step boundary; no checkpoint
// is written for the step in flight when that happens.
func (cg *CompiledGraph) Stream(ctx context.Context, input State, cfg ExecutionConfig, mode StreamMode) iter.Seq2[*StreamEvent, error] {
	return func(yield func(*StreamEvent, error) bool) {
		state, err := cg.initializeState(cfg, input)
		if err != nil {
			yield(nil, err)
			return
		}
		frontier, skipInterruptBefore := cg.entryFrontier(cfg)
		step := 0

		if mode == StreamValues {
			if !yield(stateEvent(step, state.Clone()), nil) {
				return
			}
		}

		for len(frontier) > 0 {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if step >= cg.recursionLimitOr(DefaultRecursionLimit) {
				yield(nil, &ErrRecursionLimitExceeded{Step: step})
				return
			}

			if mode == StreamDebug && !cg.willInterruptBefore(frontier, skipInterruptBefore) {
				for _, n := range frontier {
					if !yield(nodeStartEvent(n, step), nil) {
						return
					}
				}
			}

			if mode == StreamMessages {
				gotos, interrupt, ok := cg.streamMessagesStep(ctx, frontier, &state, cfg, step, skipInterruptBefore, yield)
				skipInterruptBefore = false
				if !ok {
					return
				}
				if interrupt != nil && interrupt.Kind != InterruptAfter {
					cpID, err := cg.saveCheckpoint(cfg, state, step, frontier)
					if err != nil {
						yield(nil, &CheckpointUnavailable{Err: err})
						return
					}
					logInterrupt(cfg, step, *interrupt)
					yield(interruptedEvent(step, *interrupt, cpID), nil)
					return
				}
				next, done := cg.nextFrontier(frontier, state, gotos)
				cpID, err := cg.saveCheckpoint(cfg, state, step, next)
				if err != nil {
					yield(nil, &CheckpointUnavailable{Err: err})
					return
				}
				if interrupt != nil {
					logInterrupt(cfg, step, *interrupt)
					yield(interruptedEvent(step, *interrupt, cpID), nil)
					return
				}
				if !yield(stepCompleteEvent(step, frontier), nil) {
					return
				}
				if done && len(next) == 0 {
					break
				}
				frontier = next
				step++
				continue
			}

			result, err := cg.executeSuperStep(ctx, frontier, state, cfg, step, skipInterruptBefore)
			skipInterruptBefore = false
			if err != nil {
				yield(nil, err)
				return
			}

			if mode == StreamDebug {
				for _, ev := range result.events {
					if ev.Type == EventNodeEnd {
						if !yield(ev, nil) {
							return
						}
					}
				}
			}

			if result.interrupt != nil && result.interrupt.Kind != InterruptAfter {
				cpID, err := cg.saveCheckpoint(cfg, state, step, frontier)
				if err != nil {
					yield(nil, &CheckpointUnavailable{Err: err})
					return
				}
				logInterrupt(cfg, step, *result.interrupt)
				yield(interruptedEvent(step, *result.interrupt, cpID), nil)
				return
			}

			if err := ApplyUpdates(cg.schema, state, result.updates); err != nil {
				yield(nil, err)
				return
			}

			switch mode {
			case StreamValues, StreamDebug:
				if !yield(stateEvent(step+1, state.Clone()), nil) {
					return
				}
			case StreamUpdates:
				if !yield(updatesEvent(step, result.executedNodes), nil) {
					return
				}
			}

			next, allEnded := cg.nextFrontier(result.executedNodes, state, result.gotos)
			cpID, err := cg.saveCheckpoint(cfg, state, step, next)
			if err != nil {
				yield(nil, &CheckpointUnavailable{Err: err})
				return
			}

			if result.interrupt != nil {
				logInterrupt(cfg, step, *result.interrupt)
				yield(interruptedEvent(step, *result.interrupt, cpID), nil)
				return
			}

			if allEnded && len(next) == 0 {
				break
			}
			frontier = next
			step++
		}

		yield(doneEvent(step, state.Clone()), nil)
	}
}

// streamMessagesStep implements the Messages-mode super-step: interrupt_before
// and interrupt_after are honored exactly as in executeSuperStep. Nodes that
// implement StreamingNode run once via ExecuteStream, with their chunks
// forwarded live while the same run produces the NodeOutput used for the
// merge; plain nodes run via Execute. Nodes run serially here so chunk
// interleaving follows frontier order.
func (cg *CompiledGraph) streamMessagesStep(ctx context.Context, frontier []string, state *State, cfg ExecutionConfig, step int, skipInterruptBefore bool, yield func(*StreamEvent, error) bool) (gotos map[string]string, interrupt *Interrupt, ok bool) {
	zap.S().Debugw("graph: super-step",
		"thread_id", cfg.ThreadID,
		"step", step,
		"frontier", frontier)

	if !skipInterruptBefore {
		for _, name := range frontier {
			if cg.interruptBefore[name] {
				return nil, &Interrupt{Kind: InterruptBefore, Node: name}, true
			}
		}
	}

	var allUpdates []update
	var nodeEnds []*StreamEvent
	var afterInterrupt *Interrupt
	gotos = map[string]string{}

	for _, name := range frontier {
		node, nodeOK := cg.nodes[name]
		if !nodeOK {
			yield(nil, &ErrNodeExecutionFailed{Node: name, Message: "node not registered"})
			return nil, nil, false
		}
		nctx := &NodeContext{Context: ctx, State: state.Clone(), Config: cfg, Step: step}

		if !yield(nodeStartEvent(name, step), nil) {
			return nil, nil, false
		}

		var out *NodeOutput
		var err error
		start := time.Now()
		if sn, streaming := node.(StreamingNode); streaming {
			stopped := false
			out, err = sn.ExecuteStream(nctx, func(ev *StreamEvent) bool {
				if !yield(ev, nil) {
					stopped = true
					return false
				}
				return true
			})
			if stopped {
				return nil, nil, false
			}
		} else {
			out, err = node.Execute(nctx)
		}
		ms := durationMillis(start)
		if err != nil {
			yield(nil, &ErrNodeExecutionFailed{Node: name, Message: err.Error()})
			return nil, nil, false
		}
		if out == nil {
			out = NewOutput()
		}
		if out.Interrupt != nil {
			return nil, out.Interrupt, true
		}
		nodeEnds = append(nodeEnds, nodeEndEvent(name, step, ms))
		for channel, value := range out.Updates {
			allUpdates = append(allUpdates, update{node: name, channel: channel, value: value})
		}
		if out.Goto != "" {
			gotos[name] = out.Goto
		}

		if cg.interruptAfter[name] && afterInterrupt == nil {
			afterInterrupt = &Interrupt{Kind: InterruptAfter, Node: name}
		}
	}

	// interrupt_after still merges the whole step's updates first; the
	// caller checkpoints and then surfaces the suspension.
	if err := ApplyUpdates(cg.schema, *state, allUpdates); err != nil {
		yield(nil, err)
		return nil, nil, false
	}
	for _, ev := range nodeEnds {
		if !yield(ev, nil) {
			return nil, nil, false
		}
	}
	return gotos, afterInterrupt, true
}

// GetState returns the current checkpointed state for a thread without
// resuming execution.
func (cg *CompiledGraph) GetState(threadID string) (State, error) {
	if cg.checkpoints == nil {
		return nil, nil
	}
	cp, err := cg.checkpoints.Load(threadID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, nil
	}
	return cp.State.Clone(), nil
}

// UpdateState patches a thread's checkpointed state through the schema's
// reducers without re-running any node - the human-in-the-loop mutation
// path used to steer a run before resuming it from an interrupt.
func (cg *CompiledGraph) UpdateState(threadID string, updates map[string]any) error {
	if cg.checkpoints == nil {
		return nil
	}
	cp, err := cg.checkpoints.Load(threadID)
	if err != nil {
		return err
	}
	if cp == nil {
		cp = &Checkpoint{ThreadID: threadID, State: State{}}
	}
	state := cp.State.Clone()
	var us []update
	for k, v := range updates {
		us = append(us, update{node: "__update_state__", channel: k, value: v})
	}
	if err := ApplyUpdates(cg.schema, state, us); err != nil {
		return err
	}
	_, err = cg.checkpoints.Save(&Checkpoint{
		ThreadID: threadID, Step: cp.Step, State: state,
		PendingNodes: cp.PendingNodes, ParentStep: cp.ParentStep, CreatedAt: time.Now(),
	})
	return err
}
