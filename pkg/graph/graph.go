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

import "fmt"

// DefaultRecursionLimit bounds the number of super-steps a run may take
// before failing with ErrRecursionLimitExceeded, absent an explicit
// WithRecursionLimit override.
const DefaultRecursionLimit = 25

// StateGraph is the mutable builder for a graph; Compile() freezes it into
// a CompiledGraph, the runnable immutable form.
type StateGraph struct {
	schema          Schema
	nodes           map[string]Node
	staticEdges     map[string][]string
	condEdges       map[string]*conditionalEdge
	interruptBefore map[string]bool
	interruptAfter  map[string]bool
	checkpoints     Store
	recursionLimit  int
	err             error
}

// NewStateGraph starts a builder with the given channel schema.
func NewStateGraph(schema Schema) *StateGraph {
	return &StateGraph{
		schema:          schema,
		nodes:           map[string]Node{},
		staticEdges:     map[string][]string{},
		condEdges:       map[string]*conditionalEdge{},
		interruptBefore: map[string]bool{},
		interruptAfter:  map[string]bool{},
		recursionLimit:  DefaultRecursionLimit,
	}
}

// AddNode registers a node under name. name must not be Start or End.
func (g *StateGraph) AddNode(name string, node Node) *StateGraph {
	if g.err != nil {
		return g
	}
	if name == Start || name == End {
		g.err = fmt.Errorf("graph: node name %q is reserved", name)
		return g
	}
	if _, exists := g.nodes[name]; exists {
		g.err = fmt.Errorf("graph: duplicate node %q", name)
		return g
	}
	g.nodes[name] = node
	return g
}

// AddEdge adds a static edge from -> to. from == Start marks to as an entry
// node; to == End marks a terminal path.
func (g *StateGraph) AddEdge(from, to string) *StateGraph {
	if g.err != nil {
		return g
	}
	g.staticEdges[from] = append(g.staticEdges[from], to)
	return g
}

// AddConditionalEdges routes from's successor dynamically: after from
// executes, router is called against the post-merge state, and the
// returned key is looked up in table.
func (g *StateGraph) AddConditionalEdges(from string, router Router, table map[string]string) *StateGraph {
	if g.err != nil {
		return g
	}
	if _, exists := g.condEdges[from]; exists {
		g.err = fmt.Errorf("graph: duplicate conditional edge from %q", from)
		return g
	}
	g.condEdges[from] = &conditionalEdge{from: from, router: router, table: table}
	return g
}

// InterruptBefore marks names to suspend before they execute.
func (g *StateGraph) InterruptBefore(names ...string) *StateGraph {
	for _, n := range names {
		g.interruptBefore[n] = true
	}
	return g
}

// InterruptAfter marks names to suspend after they execute and merge.
func (g *StateGraph) InterruptAfter(names ...string) *StateGraph {
	for _, n := range names {
		g.interruptAfter[n] = true
	}
	return g
}

// WithCheckpointer attaches a Store used to persist a checkpoint after every
// super-step. A graph compiled without one runs but cannot suspend/resume.
func (g *StateGraph) WithCheckpointer(store Store) *StateGraph {
	g.checkpoints = store
	return g
}

// WithRecursionLimit overrides DefaultRecursionLimit.
func (g *StateGraph) WithRecursionLimit(n int) *StateGraph {
	g.recursionLimit = n
	return g
}

// Compile validates the builder and freezes it into a CompiledGraph.
func (g *StateGraph) Compile() (*CompiledGraph, error) {
	if g.err != nil {
		return nil, g.err
	}

	entries := append([]string{}, g.staticEdges[Start]...)
	if len(entries) == 0 {
		return nil, fmt.Errorf("graph: no entry node (add an edge from graph.Start)")
	}
	for _, e := range entries {
		if _, ok := g.nodes[e]; !ok {
			return nil, fmt.Errorf("graph: entry node %q not registered", e)
		}
	}

	for from, tos := range g.staticEdges {
		if from == Start {
			continue
		}
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from unregistered node %q", from)
		}
		for _, to := range tos {
			if to != End {
				if _, ok := g.nodes[to]; !ok {
					return nil, fmt.Errorf("graph: edge to unregistered node %q", to)
				}
			}
		}
	}
	for from, ce := range g.condEdges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: conditional edge from unregistered node %q", from)
		}
		for _, to := range ce.table {
			if to != End {
				if _, ok := g.nodes[to]; !ok {
					return nil, fmt.Errorf("graph: conditional edge to unregistered node %q", to)
				}
			}
		}
	}

	return &CompiledGraph{
		schema:          g.schema,
		nodes:           g.nodes,
		staticEdges:     g.staticEdges,
		condEdges:       g.condEdges,
		entryNodes:      entries,
		interruptBefore: g.interruptBefore,
		interruptAfter:  g.interruptAfter,
		checkpoints:     g.checkpoints,
		recursionLimit:  g.recursionLimit,
	}, nil
}

// CompiledGraph is the frozen, runnable form of a StateGraph: nodes, edges,
// conditional edges, entry nodes, schema, an optional checkpointer, and the
// interrupt_before/interrupt_after node sets.
type CompiledGraph struct {
	schema          Schema
	nodes           map[string]Node
	staticEdges     map[string][]string
	condEdges       map[string]*conditionalEdge
	entryNodes      []string
	interruptBefore map[string]bool
	interruptAfter  map[string]bool
	checkpoints     Store
	recursionLimit  int
}

// nextFrontier computes the successors of executed, following static edges
// or invoking a conditional edge's router against the post-merge state.
// gotos carries per-node explicit overrides (NodeOutput.Goto) that bypass
// the edge table entirely for that node. Returns the deduplicated,
// order-stable set of next node names (End filtered out) and whether every
// executed path terminated at End.
func (cg *CompiledGraph) nextFrontier(executed []string, state State, gotos map[string]string) (next []string, allEnded bool) {
	seen := map[string]bool{}
	allEnded = true
	for _, node := range executed {
		successors := cg.successorsOf(node, state, gotos)
		if len(successors) == 0 {
			// No outgoing edge at all behaves like an implicit edge to End.
			continue
		}
		for _, s := range successors {
			if s == End {
				continue
			}
			allEnded = false
			if !seen[s] {
				seen[s] = true
				next = append(next, s)
			}
		}
	}
	return next, allEnded
}

func (cg *CompiledGraph) successorsOf(node string, state State, gotos map[string]string) []string {
	if to, ok := gotos[node]; ok && to != "" {
		return []string{to}
	}
	if ce, ok := cg.condEdges[node]; ok {
		key := ce.router(state)
		if to, ok := ce.table[key]; ok {
			return []string{to}
		}
		return nil
	}
	return cg.staticEdges[node]
}
