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

// Start and End are the two sentinel node names: Start is the virtual entry
// point every run begins from, End is the virtual terminal node - a path
// that routes to End is finished.
const (
	Start = "__start__"
	End   = "__end__"
)

// Router computes a routing key from the post-merge state after a
// conditional-edge source node has executed. The key is looked up in that
// edge's table to find the concrete successor.
type Router func(state State) string

// conditionalEdge is one `from -> router(state) -> table[key]` edge.
type conditionalEdge struct {
	from   string
	router Router
	table  map[string]string
}
