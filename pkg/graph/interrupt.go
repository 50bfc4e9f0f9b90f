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

// InterruptKind distinguishes the three places an interrupt can fire.
type InterruptKind int

const (
	// InterruptBefore fires before a node in interrupt_before executes.
	InterruptBefore InterruptKind = iota
	// InterruptAfter fires after a node in interrupt_after has executed and
	// its updates have been merged.
	InterruptAfter
	// InterruptDynamic fires when a node itself sets NodeOutput.Interrupt.
	InterruptDynamic
)

// Interrupt is a cooperative suspension signal, static (named by node) or
// dynamic (emitted by a node's own output).
type Interrupt struct {
	Kind   InterruptKind `json:"kind"`
	Node   string        `json:"node"`
	Reason string        `json:"reason,omitempty"`
}

func (i Interrupt) String() string {
	switch i.Kind {
	case InterruptBefore:
		return fmt.Sprintf("before(%s)", i.Node)
	case InterruptAfter:
		return fmt.Sprintf("after(%s)", i.Node)
	default:
		if i.Reason != "" {
			return fmt.Sprintf("dynamic(%s): %s", i.Node, i.Reason)
		}
		return fmt.Sprintf("dynamic(%s)", i.Node)
	}
}

// DynamicInterrupt constructs an InterruptDynamic for use from a node's
// NodeOutput.
func DynamicInterrupt(node, reason string) Interrupt {
	return Interrupt{Kind: InterruptDynamic, Node: node, Reason: reason}
}
