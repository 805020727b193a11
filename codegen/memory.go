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
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// MemoryItem is a location in linear memory. Its reference is one stack
// slot holding the byte address. Value types are laid out padded to a
// full word or packed to their encoded width, chosen at construction;
// reference types store the pointed-to address in a single word.
type MemoryItem struct {
	ctx    *Context
	typ    types.Type
	padded bool
}

var _ LValue = (*MemoryItem)(nil)

// NewMemoryItem returns the location of a value of type t whose address
// is on the stack. padded selects word-aligned layout for value types.
func NewMemoryItem(c *Context, t types.Type, padded bool) *MemoryItem {
	return &MemoryItem{ctx: c, typ: t, padded: padded}
}

// SizeOnStack returns 1, the address slot.
func (m *MemoryItem) SizeOnStack() int { return 1 }

// Retrieve loads the value at the address. Reference types load the
// stored pointer as a single word.
func (m *MemoryItem) Retrieve(loc source.Location, remove bool) error {
	bare := types.Bare(m.typ)
	if bare.IsValueType() {
		if !remove {
			m.ctx.Append(asm.DUP1)
		}
		return m.ctx.LoadFromMemoryDynamic(bare, false, m.padded)
	}
	if bare.SizeOnStack() != 1 {
		return comperr.Internalf("reference type %s does not fit one stack slot", bare)
	}
	if !remove {
		m.ctx.Append(asm.DUP1)
	}
	m.ctx.Append(asm.MLOAD)
	return nil
}

// Store writes the value below the address slot into memory. Stack on
// entry: [value..., address].
func (m *MemoryItem) Store(sourceType types.Type, loc source.Location, move bool) error {
	bare := types.Bare(m.typ)
	if !bare.IsValueType() {
		// Reference types in memory hold a pointer word; storing one
		// means aliasing, which only makes sense memory-to-memory.
		if src, ok := sourceType.(*types.Located); ok && src.Location != types.MemoryLocation {
			return comperr.Unsupportedf("copying a %s reference into memory", src.Location)
		}
		srcBare := types.Bare(sourceType)
		if !srcBare.IsImplicitlyConvertibleTo(bare) {
			return comperr.Unsupportedf("conversion from %s to %s in an assignment to memory", sourceType, m.typ)
		}
		if bare.SizeOnStack() != 1 {
			return comperr.Internalf("memory reference to %s does not fit one stack slot", bare)
		}
		if !move {
			m.ctx.Append(asm.DUP2)
			m.ctx.Append(asm.SWAP1)
		}
		m.ctx.Append(asm.MSTORE)
		return nil
	}

	if !types.Bare(sourceType).IsValueType() {
		return comperr.Internalf("storing reference type %s into a value slot", sourceType)
	}
	size := bare.SizeOnStack()
	if err := m.ctx.MoveIntoStack(loc, types.Bare(sourceType).SizeOnStack(), 1); err != nil {
		return err
	}
	if err := m.ctx.ConvertType(sourceType, m.typ, true, false); err != nil {
		return err
	}
	if !move {
		if err := m.ctx.MoveToStackTop(loc, size, 1); err != nil {
			return err
		}
		if err := m.ctx.CopyToStackTop(loc, 1+size, size); err != nil {
			return err
		}
	}
	if !m.padded {
		if bare.CalldataEncodedSize(false) != 1 {
			return comperr.Internalf("unpadded memory store of %s, which is wider than one byte", bare)
		}
		if _, ok := bare.(*types.UserDefined); ok {
			return comperr.Internalf("unpadded memory store of user-defined type %s", bare)
		}
		if _, ok := types.Encoding(bare).(*types.FixedBytes); ok {
			// Left-aligned: move the byte down to the low end for MSTORE8.
			m.ctx.AppendPushInt(0)
			m.ctx.Append(asm.BYTE)
		}
		m.ctx.Append(asm.SWAP1)
		m.ctx.Append(asm.MSTORE8)
		return nil
	}
	if err := m.ctx.StoreInMemoryDynamic(bare, true); err != nil {
		return err
	}
	m.ctx.Append(asm.POP)
	return nil
}

// Clear writes the type's zero value at the address.
func (m *MemoryItem) Clear(loc source.Location, removeRef bool) error {
	if !removeRef {
		return comperr.Internalf("clearing a memory item while keeping its address")
	}
	if err := m.ctx.PushZeroValue(m.typ); err != nil {
		return err
	}
	if err := m.ctx.StoreInMemoryDynamic(types.Bare(m.typ), m.padded); err != nil {
		return err
	}
	m.ctx.Append(asm.POP)
	return nil
}

func (*MemoryItem) lvalue() {}
