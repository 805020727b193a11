// Copyright 2025 The Sigil Authors
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

package asm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ItemKind discriminates the variants of an assembly item.
type ItemKind uint8

// The kinds of items an assembly is built from. Everything that is not a
// plain Operation assembles into a push of some value that is only known
// at assembly or link time.
const (
	// Operation is a single instruction with no immediate argument.
	Operation ItemKind = iota

	// Push places a constant word on the stack. The shortest push
	// instruction that holds the value is chosen when assembling.
	Push

	// PushTag places the code offset of a tag on the stack.
	PushTag

	// TagDef marks a jump destination. It assembles to JUMPDEST.
	TagDef

	// PushImmutable places a named value on the stack. The value is
	// substituted when the assembly is linked.
	PushImmutable

	// PushSubOffset places the code offset of a sub-assembly on the
	// stack.
	PushSubOffset

	// PushSubSize places the byte size of a sub-assembly on the stack.
	PushSubSize
)

// Tag names a jump destination within one assembly. The zero value is
// invalid; tags are handed out by (*Assembly).NewTag.
type Tag int

// Valid reports whether the tag was obtained from NewTag.
func (t Tag) Valid() bool { return t > 0 }

func (t Tag) String() string { return fmt.Sprintf("tag%d", int(t)) }

// Item is one element of an assembly. Which fields are meaningful
// depends on Kind.
type Item struct {
	Kind ItemKind

	Op    Instruction // Operation
	Value uint256.Int // Push
	Tag   Tag         // PushTag, TagDef
	Name  string      // PushImmutable
	Sub   int         // PushSubOffset, PushSubSize
}

// StackDelta returns the net change in stack height caused by the item.
func (it Item) StackDelta() int {
	switch it.Kind {
	case Operation:
		return it.Op.StackDelta()
	case TagDef:
		return 0
	default:
		return 1
	}
}

func (it Item) String() string {
	switch it.Kind {
	case Operation:
		return it.Op.String()
	case Push:
		return "PUSH " + it.Value.Hex()
	case PushTag:
		return fmt.Sprintf("PUSH %s", it.Tag)
	case TagDef:
		return fmt.Sprintf("%s:", it.Tag)
	case PushImmutable:
		return fmt.Sprintf("PUSH immutable(%s)", it.Name)
	case PushSubOffset:
		return fmt.Sprintf("PUSH offset(sub%d)", it.Sub)
	case PushSubSize:
		return fmt.Sprintf("PUSH size(sub%d)", it.Sub)
	}
	return fmt.Sprintf("item(kind=%d)", it.Kind)
}
