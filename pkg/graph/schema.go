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

import "github.com/invopop/jsonschema"

// ChannelDefinition describes one channel for introspection tooling (a
// "what can this graph's state hold" view for a HITL UI or a debug
// endpoint), the graph analogue of functiontool's parameter schema.
type ChannelDefinition struct {
	Name   string             `json:"name"`
	Kind   string             `json:"kind"`
	Schema *jsonschema.Schema `json:"schema,omitempty"`
}

// Definition is the introspectable shape of a compiled graph: its channels
// and their declared reducer kind, plus the static edge table. It carries no
// behavior - only what a caller would need to render a graph or validate an
// external state patch before calling UpdateState.
type Definition struct {
	Channels []ChannelDefinition `json:"channels"`
	Edges    map[string][]string `json:"edges"`
	Entry    []string            `json:"entry"`
}

func kindName(k ChannelKind) string {
	if k == Serial {
		return "serial"
	}
	return "parallel"
}

// Describe builds a Definition for the compiled graph. sampleTypes optionally
// maps a channel name to a representative Go value (typically a zero value
// of the struct the channel actually stores); when present, its JSON Schema
// is attached so external callers can validate an UpdateState patch against
// it, exactly as Tool.ParametersSchema lets a caller validate FunctionCall
// args before dispatch.
func (cg *CompiledGraph) Describe(sampleTypes map[string]any) *Definition {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	def := &Definition{
		Edges: map[string][]string{},
		Entry: append([]string{}, cg.entryNodes...),
	}
	for name, ch := range cg.schema {
		cd := ChannelDefinition{Name: name, Kind: kindName(ch.Kind)}
		if sample, ok := sampleTypes[name]; ok && sample != nil {
			cd.Schema = reflector.Reflect(sample)
		}
		def.Channels = append(def.Channels, cd)
	}
	for from, tos := range cg.staticEdges {
		def.Edges[from] = append([]string{}, tos...)
	}
	for from, ce := range cg.condEdges {
		var tos []string
		for _, to := range ce.table {
			tos = append(tos, to)
		}
		def.Edges[from] = tos
	}
	return def
}
