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

package codegen

import (
	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/contract"
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// ImmutableItem is an immutable contract variable. During the
// constructor it lives in a reserved memory scratch area; in the runtime
// code its reads are placeholders the assembler patches with the literal
// value at deploy time. It has no reference slots.
type ImmutableItem struct {
	ctx *Context
	imm contract.Immutable
}

var _ LValue = (*ImmutableItem)(nil)

// NewImmutableItem returns the location of the named immutable from the
// contract layout.
func NewImmutableItem(c *Context, name string) (*ImmutableItem, error) {
	imm, err := c.immutable(name)
	if err != nil {
		return nil, err
	}
	return &ImmutableItem{ctx: c, imm: imm}, nil
}

// SizeOnStack returns 0.
func (m *ImmutableItem) SizeOnStack() int { return 0 }

// Retrieve pushes the immutable's value. In the constructor it loads the
// memory scratch slot; in runtime code it emits a placeholder push.
func (m *ImmutableItem) Retrieve(source.Location, bool) error {
	if m.ctx.RuntimeContext() != nil {
		return m.ctx.LoadFromMemory(m.imm.MemoryOffset, m.imm.Variable.Type)
	}
	m.ctx.AppendPushImmutable(m.imm.Placeholder)
	return nil
}

// Store writes the value on top of the stack into the immutable's memory
// scratch slot. Only the constructor may store immutables.
func (m *ImmutableItem) Store(sourceType types.Type, loc source.Location, move bool) error {
	if m.ctx.RuntimeContext() == nil {
		return comperr.Internalf("store to immutable %s outside the constructor", m.imm.Variable.Name)
	}
	t := m.imm.Variable.Type
	if err := m.ctx.ConvertType(sourceType, t, true, false); err != nil {
		return err
	}
	size := t.SizeOnStack()
	m.ctx.AppendPushInt(m.imm.MemoryOffset)
	if move {
		if err := m.ctx.MoveIntoStack(loc, size, 1); err != nil {
			return err
		}
	} else {
		if err := m.ctx.CopyToStackTop(loc, size+1, size); err != nil {
			return err
		}
	}
	if err := m.ctx.StoreInMemoryDynamic(types.Bare(t), true); err != nil {
		return err
	}
	m.ctx.Append(asm.POP)
	return nil
}

// Clear zeroes the immutable's memory scratch slot.
func (m *ImmutableItem) Clear(loc source.Location, removeRef bool) error {
	if m.ctx.RuntimeContext() == nil {
		return comperr.Internalf("clear of immutable %s outside the constructor", m.imm.Variable.Name)
	}
	if !removeRef {
		return comperr.Internalf("clearing an immutable while keeping its reference")
	}
	t := m.imm.Variable.Type
	m.ctx.AppendPushInt(m.imm.MemoryOffset)
	if err := m.ctx.PushZeroValue(t); err != nil {
		return err
	}
	if err := m.ctx.StoreInMemoryDynamic(types.Bare(t), true); err != nil {
		return err
	}
	m.ctx.Append(asm.POP)
	return nil
}

func (*ImmutableItem) lvalue() {}
