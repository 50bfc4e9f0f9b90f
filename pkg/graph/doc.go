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

// Package graph implements a Pregel-style graph executor: a directed graph
// of named nodes executed in super-steps, where each step runs a frontier
// of ready nodes concurrently, merges their state updates through reducers,
// persists a checkpoint, and computes the next frontier via static or
// conditional edges.
//
// A graph node may itself be an agent.Agent (see AgentNode), which is how
// the executor composes with the rest of this module's agent runtime: a
// CompiledGraph and an llmagent/workflowagent tree are both driven through
// the same super-step loop once wrapped as nodes.
//
// # Building a graph
//
//	g := graph.NewStateGraph(graph.Schema{
//	    "value": {Reducer: graph.ReplaceReducer()},
//	})
//	g.AddNode("set_value", graph.NodeFunc(func(ctx *graph.NodeContext) (*graph.NodeOutput, error) {
//	    return graph.NewOutput().With("value", 42), nil
//	}))
//	g.AddEdge(graph.Start, "set_value")
//	g.AddEdge("set_value", graph.End)
//	compiled, err := g.Compile()
//
// # Running
//
//	state, err := compiled.Invoke(ctx, graph.State{}, graph.ExecutionConfig{ThreadID: "t1"})
//
// # Streaming
//
//	for ev, err := range compiled.Stream(ctx, graph.State{}, cfg, graph.StreamValues) {
//	    ...
//	}
package graph
