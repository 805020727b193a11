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
	"github.com/holiman/uint256"

	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// CopyToStackTop duplicates an item of itemSize slots onto the top of the
// stack. stackDepth is the 1-based depth of the item's deepest slot; each
// duplicated slot raises the next one to the same depth, so the same DUP
// serves the whole item.
func (c *Context) CopyToStackTop(loc source.Location, stackDepth, itemSize int) error {
	if stackDepth > StackWindow {
		return comperr.StackTooDeep(loc, stackDepth, StackWindow)
	}
	for i := 0; i < itemSize; i++ {
		c.asm.Append(asm.DupN(stackDepth))
	}
	return nil
}

// MoveToStackTop brings an item of itemSize slots, buried under stackDepth
// other slots, to the top of the stack by rotating the slots above it
// below it.
func (c *Context) MoveToStackTop(loc source.Location, stackDepth, itemSize int) error {
	return c.MoveIntoStack(loc, itemSize, stackDepth)
}

// MoveIntoStack buries the item of itemSize slots on top of the stack
// under the stackDepth slots below it, preserving the order of both
// groups.
func (c *Context) MoveIntoStack(loc source.Location, stackDepth, itemSize int) error {
	if stackDepth == 0 || itemSize == 0 {
		return nil
	}
	if stackDepth <= itemSize {
		for i := 0; i < stackDepth; i++ {
			if err := c.rotateStackDown(loc, stackDepth+itemSize); err != nil {
				return err
			}
		}
		return nil
	}
	for i := 0; i < itemSize; i++ {
		if err := c.rotateStackUp(loc, stackDepth+itemSize); err != nil {
			return err
		}
	}
	return nil
}

// rotateStackUp rotates the topmost items slots by one position: every
// slot moves up and the topmost wraps to the bottom of the group.
func (c *Context) rotateStackUp(loc source.Location, items int) error {
	if items-1 > StackWindow {
		return comperr.StackTooDeep(loc, items-1, StackWindow)
	}
	for i := 1; i < items; i++ {
		c.asm.Append(asm.SwapN(items - i))
	}
	return nil
}

// rotateStackDown is the inverse rotation: every slot moves down and the
// bottommost of the group wraps to the top.
func (c *Context) rotateStackDown(loc source.Location, items int) error {
	if items-1 > StackWindow {
		return comperr.StackTooDeep(loc, items-1, StackWindow)
	}
	for i := 1; i < items; i++ {
		c.asm.Append(asm.SwapN(i))
	}
	return nil
}

// PopStackElement removes the topmost value of type t from the stack.
func (c *Context) PopStackElement(t types.Type) {
	c.PopStackSlots(t.SizeOnStack())
}

// PopStackSlots removes the topmost n stack slots.
func (c *Context) PopStackSlots(n int) {
	for i := 0; i < n; i++ {
		c.asm.Append(asm.POP)
	}
}

// PushZeroValue pushes the canonical zero of t. For internal function
// references the zero is the code offset of the shared trap routine, so
// that calling a never-assigned reference aborts instead of jumping to
// offset zero.
func (c *Context) PushZeroValue(t types.Type) error {
	enc := types.Encoding(types.Bare(t))
	if fn, ok := enc.(*types.Function); ok && !fn.External {
		c.asm.AppendPushTag(c.InvalidFunctionTag())
		return nil
	}
	if !enc.IsValueType() {
		return comperr.Unsupportedf("zero value of reference type %s on the stack", t)
	}
	for i := 0; i < enc.SizeOnStack(); i++ {
		c.asm.AppendPushInt(0)
	}
	return nil
}

// ConvertType rewrites the value on top of the stack from its encoding as
// from to its encoding as to. The conversion must be implicit; anything
// else should have been rejected upstream. cleanup clears the bits above
// the source width, which arithmetic may have dirtied; chopSignBits
// additionally masks a sign-extended value down to the target width so it
// can be packed into a sub-word storage field.
func (c *Context) ConvertType(from, to types.Type, cleanup, chopSignBits bool) error {
	fromEnc := types.Encoding(types.Bare(from))
	toEnc := types.Encoding(types.Bare(to))
	if !fromEnc.IsValueType() || !toEnc.IsValueType() {
		// A reference is one address slot; converting it never takes code.
		if fromEnc == toEnc || fromEnc.IsImplicitlyConvertibleTo(toEnc) {
			return nil
		}
		return comperr.Unsupportedf("conversion from %s to %s", from, to)
	}
	if fromEnc != toEnc && !fromEnc.IsImplicitlyConvertibleTo(toEnc) {
		return comperr.Internalf("conversion from %s to %s reached the code generator", from, to)
	}
	if cleanup {
		if err := c.cleanValue(fromEnc); err != nil {
			return err
		}
	}
	if !chopSignBits {
		return nil
	}
	if ti, ok := toEnc.(*types.Integer); ok && ti.Signed && ti.Bits < 8*types.WordBytes {
		c.asm.AppendPush(lowMask(ti.Bits / 8))
		c.asm.Append(asm.AND)
	}
	return nil
}

// cleanValue normalizes the value on top of the stack to the canonical
// representation of its encoding: sign extension for signed integers,
// 0/1 for booleans, a low mask for other right-aligned types and a high
// mask for left-aligned ones.
func (c *Context) cleanValue(enc types.Type) error {
	switch t := enc.(type) {
	case *types.Integer:
		if t.Bits == 8*types.WordBytes {
			return nil
		}
		if t.Signed {
			c.asm.AppendPushInt(uint64(t.Bits/8 - 1))
			c.asm.Append(asm.SIGNEXTEND)
			return nil
		}
		c.asm.AppendPush(lowMask(t.Bits / 8))
		c.asm.Append(asm.AND)
		return nil
	case *types.Bool:
		c.asm.Append(asm.ISZERO)
		c.asm.Append(asm.ISZERO)
		return nil
	case *types.Address:
		c.asm.AppendPush(lowMask(t.StorageBytes()))
		c.asm.Append(asm.AND)
		return nil
	case *types.FixedBytes:
		if t.N == types.WordBytes {
			return nil
		}
		c.asm.AppendPush(highMask(t.N))
		c.asm.Append(asm.AND)
		return nil
	case *types.Function:
		// Both address and code offset slots are pushed clean.
		return nil
	}
	return comperr.Internalf("no cleanup sequence for %s", enc)
}

// LeftShiftNumberOnStack shifts the value on top of the stack left by
// bits. The machine has no shift instruction; shifts are multiplications
// and divisions by powers of two.
func (c *Context) LeftShiftNumberOnStack(bits int) {
	c.asm.AppendPush(shiftFactor(bits))
	c.asm.Append(asm.MUL)
}

// RightShiftNumberOnStack shifts the value on top of the stack right by
// bits, without sign extension.
func (c *Context) RightShiftNumberOnStack(bits int) {
	c.asm.AppendPush(shiftFactor(bits))
	c.asm.Append(asm.SWAP1)
	c.asm.Append(asm.DIV)
}

// SplitExternalFunction unpacks the one-word storage encoding of an
// external function reference into its two stack slots: the address
// below, the selector on top.
func (c *Context) SplitExternalFunction() {
	c.asm.Append(asm.DUP1)
	c.RightShiftNumberOnStack(32)
	c.asm.AppendPush(lowMask(20))
	c.asm.Append(asm.AND)
	c.asm.Append(asm.SWAP1)
	c.asm.AppendPush(lowMask(4))
	c.asm.Append(asm.AND)
}

// CombineExternalFunction packs the two stack slots of an external
// function reference into the one-word storage encoding
// address*2^32 | selector.
func (c *Context) CombineExternalFunction() {
	c.asm.AppendPush(lowMask(4))
	c.asm.Append(asm.AND)
	c.asm.Append(asm.SWAP1)
	c.asm.AppendPush(lowMask(20))
	c.asm.Append(asm.AND)
	c.LeftShiftNumberOnStack(32)
	c.asm.Append(asm.OR)
}

// LoadFromMemory pushes the value of type t stored at a fixed memory
// offset in its padded encoding.
func (c *Context) LoadFromMemory(offset uint64, t types.Type) error {
	c.asm.AppendPushInt(offset)
	return c.loadFromMemoryHelper(t, false, true)
}

// LoadFromMemoryDynamic replaces the address on top of the stack with the
// value of type t stored there. fromCalldata reads the call input instead
// of memory; padded selects the full-word encoding over the bare byte
// width.
func (c *Context) LoadFromMemoryDynamic(t types.Type, fromCalldata, padded bool) error {
	return c.loadFromMemoryHelper(t, fromCalldata, padded)
}

func (c *Context) loadFromMemoryHelper(t types.Type, fromCalldata, padded bool) error {
	enc := types.Encoding(types.Bare(t))
	if !enc.IsValueType() || enc.SizeOnStack() != 1 {
		return comperr.Unsupportedf("memory load of %s", t)
	}
	if fromCalldata {
		c.asm.Append(asm.CALLDATALOAD)
	} else {
		c.asm.Append(asm.MLOAD)
	}
	numBytes := enc.CalldataEncodedSize(padded)
	cleanup := true
	if numBytes != types.WordBytes {
		// An unpadded value occupies the first numBytes bytes at the
		// address; the word just read has it in the high-order end.
		c.RightShiftNumberOnStack(8 * (types.WordBytes - numBytes))
		if enc.LeftAligned() {
			c.LeftShiftNumberOnStack(8 * (types.WordBytes - numBytes))
		} else {
			cleanup = false
		}
	}
	if padded {
		return c.ConvertType(enc, enc, cleanup, false)
	}
	return nil
}

// StoreInMemoryDynamic writes the value on top of the stack, of type t,
// to the address in the slot below it, and replaces the address with the
// address just past the written bytes. The unpadded form lays the bare
// byte width out left-aligned at the address, the way the packed call
// encoding does; the word write still covers the following bytes with
// zeros.
func (c *Context) StoreInMemoryDynamic(t types.Type, padded bool) error {
	enc := types.Encoding(types.Bare(t))
	if !enc.IsValueType() || enc.SizeOnStack() != 1 {
		return comperr.Unsupportedf("memory store of %s", t)
	}
	numBytes := enc.CalldataEncodedSize(padded)
	if numBytes != types.WordBytes {
		if err := c.ConvertType(enc, enc, true, false); err != nil {
			return err
		}
		if !enc.LeftAligned() {
			c.LeftShiftNumberOnStack(8 * (types.WordBytes - numBytes))
		}
	}
	c.asm.Append(asm.DUP2)
	c.asm.Append(asm.MSTORE)
	c.asm.AppendPushInt(uint64(numBytes))
	c.asm.Append(asm.ADD)
	return nil
}

// lowMask returns the mask covering the low n bytes of a word.
func lowMask(n int) *uint256.Int {
	mask := uint256.NewInt(1)
	mask.Lsh(mask, uint(8*n))
	return mask.SubUint64(mask, 1)
}

// highMask returns the mask covering the high n bytes of a word.
func highMask(n int) *uint256.Int {
	mask := lowMask(n)
	return mask.Lsh(mask, uint(8*(types.WordBytes-n)))
}

func shiftFactor(bits int) *uint256.Int {
	f := uint256.NewInt(1)
	return f.Lsh(f, uint(bits))
}
