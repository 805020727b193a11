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

// Package asm builds and links code for the target stack machine.
//
// An Assembly is an append-only sequence of items. Besides plain
// instructions, items can reference jump tags, named immutable values,
// and nested sub-assemblies; those references are resolved when the
// assembly is assembled into a byte image. The assembly tracks the stack
// deposit, the net number of words the emitted code has pushed, so that
// code generators can locate variables relative to the current stack
// height.
package asm

import (
	"slices"
	"strings"

	"github.com/holiman/uint256"

	"github.com/sigil-lang/sigil/comperr"
)

// Assembly accumulates items for one code object. The zero value is not
// usable; call New.
//
// Append methods do not return errors. A malformed program, such as one
// whose stack deposit drops below zero, marks the assembly broken and the
// first such defect is reported by Err and by Assemble.
type Assembly struct {
	name    string
	items   []Item
	deposit int
	nextTag Tag
	placed  map[Tag]bool
	subs    []*Assembly
	aux     []byte
	err     error
}

// New returns an empty assembly. The name appears in error messages
// only.
func New(name string) *Assembly {
	return &Assembly{
		name:   name,
		placed: make(map[Tag]bool),
	}
}

// Name returns the name the assembly was created with.
func (a *Assembly) Name() string { return a.name }

// Err returns the first defect recorded while building the assembly, or
// nil.
func (a *Assembly) Err() error { return a.err }

func (a *Assembly) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Deposit returns the net number of words the assembly has pushed onto
// the stack so far.
func (a *Assembly) Deposit() int { return a.deposit }

// AdjustDeposit corrects the tracked stack height by delta. Code that is
// entered through a jump starts at the stack height of the jump site,
// not of the preceding item, and the generator has to account for the
// difference explicitly.
func (a *Assembly) AdjustDeposit(delta int) {
	a.deposit += delta
	if a.deposit < 0 {
		a.fail(comperr.Internalf("stack deposit of %s below zero after adjustment by %d", a.name, delta))
	}
}

func (a *Assembly) append(it Item) {
	a.items = append(a.items, it)
	a.deposit += it.StackDelta()
	if a.deposit < 0 {
		a.fail(comperr.Internalf("stack deposit of %s below zero after %s", a.name, it))
	}
}

// Append emits a single instruction.
func (a *Assembly) Append(op Instruction) {
	if !op.Valid() {
		a.fail(comperr.Internalf("invalid opcode %#02x appended to %s", byte(op), a.name))
		return
	}
	if op.IsPush() {
		a.fail(comperr.Internalf("push opcode %s appended without a value to %s", op, a.name))
		return
	}
	a.append(Item{Kind: Operation, Op: op})
}

// AppendPush emits a push of the given word. The shortest encoding is
// chosen when the assembly is assembled.
func (a *Assembly) AppendPush(v *uint256.Int) {
	a.append(Item{Kind: Push, Value: *v})
}

// AppendPushInt emits a push of a small constant.
func (a *Assembly) AppendPushInt(v uint64) {
	a.append(Item{Kind: Push, Value: *uint256.NewInt(v)})
}

// NewTag reserves a fresh jump tag. The tag refers to no code until it
// is placed with PlaceTag.
func (a *Assembly) NewTag() Tag {
	a.nextTag++
	return a.nextTag
}

// AppendPushTag emits a push of the code offset the tag will have once
// placed.
func (a *Assembly) AppendPushTag(t Tag) {
	if !t.Valid() {
		a.fail(comperr.Internalf("push of invalid tag in %s", a.name))
		return
	}
	a.append(Item{Kind: PushTag, Tag: t})
}

// PlaceTag marks the current position as the destination of t. Each tag
// is placed at most once and assembles to a JUMPDEST.
func (a *Assembly) PlaceTag(t Tag) {
	if !t.Valid() {
		a.fail(comperr.Internalf("placement of invalid tag in %s", a.name))
		return
	}
	if a.placed[t] {
		a.fail(comperr.Internalf("%s placed twice in %s", t, a.name))
		return
	}
	a.placed[t] = true
	a.append(Item{Kind: TagDef, Tag: t})
}

// AppendJumpTo emits an unconditional jump to t.
func (a *Assembly) AppendJumpTo(t Tag) {
	a.AppendPushTag(t)
	a.Append(JUMP)
}

// AppendConditionalJumpTo emits a jump to t that consumes the condition
// word currently on top of the stack.
func (a *Assembly) AppendConditionalJumpTo(t Tag) {
	a.AppendPushTag(t)
	a.Append(JUMPI)
}

// AppendPushImmutable emits a push of the named link-time value.
func (a *Assembly) AppendPushImmutable(name string) {
	if name == "" {
		a.fail(comperr.Internalf("push of unnamed immutable in %s", a.name))
		return
	}
	a.append(Item{Kind: PushImmutable, Name: name})
}

// AppendSub attaches a nested assembly and returns its index. The sub's
// image is placed after the parent's code when assembling.
func (a *Assembly) AppendSub(sub *Assembly) int {
	a.subs = append(a.subs, sub)
	return len(a.subs) - 1
}

// NumSubs returns the number of attached sub-assemblies.
func (a *Assembly) NumSubs() int { return len(a.subs) }

// Sub returns the i-th attached sub-assembly.
func (a *Assembly) Sub(i int) *Assembly { return a.subs[i] }

// AppendPushSubOffset emits a push of the byte offset at which sub i
// starts within the assembled image.
func (a *Assembly) AppendPushSubOffset(i int) {
	if i < 0 || i >= len(a.subs) {
		a.fail(comperr.Internalf("push of offset of unknown sub %d in %s", i, a.name))
		return
	}
	a.append(Item{Kind: PushSubOffset, Sub: i})
}

// AppendPushSubSize emits a push of the byte size of sub i's image.
func (a *Assembly) AppendPushSubSize(i int) {
	if i < 0 || i >= len(a.subs) {
		a.fail(comperr.Internalf("push of size of unknown sub %d in %s", i, a.name))
		return
	}
	a.append(Item{Kind: PushSubSize, Sub: i})
}

// AppendAuxiliaryData appends raw bytes behind the executable part of
// the image. Auxiliary data is never reachable by execution and calling
// this repeatedly concatenates.
func (a *Assembly) AppendAuxiliaryData(data []byte) {
	a.aux = append(a.aux, data...)
}

// AuxiliaryData returns the auxiliary data appended so far.
func (a *Assembly) AuxiliaryData() []byte { return slices.Clone(a.aux) }

// Items returns a copy of the item sequence, for inspection.
func (a *Assembly) Items() []Item { return slices.Clone(a.items) }

// String renders the items one per line, in the order they execute.
func (a *Assembly) String() string {
	var b strings.Builder
	for i, it := range a.items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(it.String())
	}
	return b.String()
}
