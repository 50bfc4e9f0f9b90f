// Package agentcore provides a Pregel-style graph executor and a
// streaming multi-provider LLM agent runtime.
//
// # Core packages
//
//	import (
//	    "github.com/flowloom/agentcore/pkg/graph"       // state graph, super-step executor, checkpoints
//	    "github.com/flowloom/agentcore/pkg/agent"        // agent.Agent, InvocationContext, Event
//	    "github.com/flowloom/agentcore/pkg/agent/llmagent"      // LLM <-> tool reasoning loop
//	    "github.com/flowloom/agentcore/pkg/agent/workflowagent" // sequential/parallel/loop composition
//	    "github.com/flowloom/agentcore/pkg/tool"         // tool dispatch contracts
//	    "github.com/flowloom/agentcore/pkg/session"      // scoped session state and event log
//	)
//
// # Architecture
//
// A graph.StateGraph compiles to a graph.CompiledGraph that runs nodes in
// super-steps: every node in the current frontier executes concurrently,
// their updates merge deterministically into shared State, and the next
// frontier is computed from static or conditional edges. llmagent.New
// builds an agent.Agent around a model.LLM and a set of tool.Tool values,
// looping model calls and tool dispatch through an agent.InvocationContext
// until the model stops requesting tools.
//
// Provider adapters (model.LLM implementations), session-store backends
// (session persistence, checkpoint stores), and the CLI are external
// collaborators: this module defines their contracts (model.LLM,
// graph.Store, tool.Tool) rather than shipping concrete implementations
// for every backend.
package agentcore
