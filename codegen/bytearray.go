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

// StorageByteArrayElement is a single byte of a packed byte array in
// persistent storage. Its reference is two stack slots, the slot key
// below the byte index within that slot, where index 0 is the most
// significant byte. The element's value form is a left-aligned single
// byte, the canonical form of its type.
type StorageByteArrayElement struct {
	ctx *Context
	typ *types.FixedBytes
}

var _ LValue = (*StorageByteArrayElement)(nil)

// NewStorageByteArrayElement returns the location of a byte whose slot
// key and index are already on the stack.
func NewStorageByteArrayElement(c *Context) *StorageByteArrayElement {
	return &StorageByteArrayElement{ctx: c, typ: types.Bytes(1)}
}

// Type returns the element type, a single left-aligned byte.
func (b *StorageByteArrayElement) Type() types.Type { return b.typ }

// SizeOnStack returns 2, the slot key and the byte index.
func (b *StorageByteArrayElement) SizeOnStack() int { return 2 }

// Retrieve loads the byte and left-aligns it.
func (b *StorageByteArrayElement) Retrieve(loc source.Location, remove bool) error {
	c := b.ctx
	if remove {
		// [key, index] -> [byte]
		c.Append(asm.SWAP1)
		c.Append(asm.SLOAD)
		c.Append(asm.SWAP1)
		c.Append(asm.BYTE)
	} else {
		// [key, index] -> [key, index, byte]
		c.Append(asm.DUP2)
		c.Append(asm.SLOAD)
		c.Append(asm.DUP2)
		c.Append(asm.BYTE)
	}
	c.LeftShiftNumberOnStack(256 - 8)
	return nil
}

// Store writes the left-aligned byte below the reference into the slot,
// preserving the other 31 bytes.
func (b *StorageByteArrayElement) Store(_ types.Type, loc source.Location, move bool) error {
	c := b.ctx
	// [value, key, index]: turn the index into the field's multiplier.
	c.AppendPushInt(31)
	c.Append(asm.SUB)
	c.AppendPushInt(0x100)
	c.Append(asm.EXP)
	// [value, key, multiplier]
	c.Append(asm.DUP2)
	c.Append(asm.SLOAD)
	// [value, key, multiplier, old]
	c.Append(asm.DUP2)
	c.AppendPushInt(0xff)
	c.Append(asm.MUL)
	c.Append(asm.NOT)
	c.Append(asm.AND)
	c.Append(asm.SWAP1)
	// [value, key, cleared, multiplier]
	c.AppendPush(shiftFactor(256 - 8))
	c.Append(asm.DUP5)
	c.Append(asm.DIV)
	c.Append(asm.MUL)
	c.Append(asm.OR)
	// [value, key, updated]
	c.Append(asm.SWAP1)
	c.Append(asm.SSTORE)
	if move {
		c.Append(asm.POP)
	}
	return nil
}

// Clear zeroes the byte, preserving the other 31 bytes of the slot.
func (b *StorageByteArrayElement) Clear(loc source.Location, removeRef bool) error {
	if !removeRef {
		return comperr.Internalf("clearing a byte array element while keeping its reference")
	}
	c := b.ctx
	// [key, index]
	c.AppendPushInt(31)
	c.Append(asm.SUB)
	c.AppendPushInt(0x100)
	c.Append(asm.EXP)
	// [key, multiplier]
	c.Append(asm.DUP2)
	c.Append(asm.SLOAD)
	// [key, multiplier, old]
	c.Append(asm.SWAP1)
	c.AppendPushInt(0xff)
	c.Append(asm.MUL)
	c.Append(asm.NOT)
	c.Append(asm.AND)
	// [key, cleared]
	c.Append(asm.SWAP1)
	c.Append(asm.SSTORE)
	return nil
}

func (*StorageByteArrayElement) lvalue() {}
