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
	"fmt"

	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// clearArrayUnrollLimit is the slot count up to which clearing emits
// straight-line stores instead of a loop.
const clearArrayUnrollLimit = 4

// ArrayUtils emits whole-array operations on storage arrays.
type ArrayUtils struct {
	ctx *Context
}

// NewArrayUtils returns array helpers bound to c.
func NewArrayUtils(c *Context) *ArrayUtils {
	return &ArrayUtils{ctx: c}
}

// ClearArray zeroes every slot of a static storage array. It consumes
// the array's reference: [key, offset] on entry, nothing on exit.
func (a *ArrayUtils) ClearArray(t *types.Array) error {
	if t.Dynamic {
		return comperr.Unsupportedf("clearing a dynamically-sized array")
	}
	if !t.Elem.IsValueType() {
		return comperr.Unsupportedf("clearing an array of reference type %s", t.Elem)
	}
	c := a.ctx
	// Arrays always start a word.
	c.Append(asm.POP)
	slots := t.StorageSlots()
	if slots <= clearArrayUnrollLimit {
		for i := uint64(0); i < slots; i++ {
			c.AppendPushInt(0)
			c.Append(asm.DUP2)
			if i > 0 {
				c.AppendPushInt(i)
				c.Append(asm.ADD)
			}
			c.Append(asm.SSTORE)
		}
		c.Append(asm.POP)
		return nil
	}
	// [key] -> [key, end, current]
	c.AppendPushInt(slots)
	c.Append(asm.DUP2)
	c.Append(asm.ADD)
	c.Append(asm.DUP2)
	loop, done := c.NewTag(), c.NewTag()
	c.PlaceTag(loop)
	c.Append(asm.DUP2)
	c.Append(asm.DUP2)
	c.Append(asm.EQ)
	c.AppendConditionalJumpTo(done)
	c.AppendPushInt(0)
	c.Append(asm.DUP2)
	c.Append(asm.SSTORE)
	c.AppendPushInt(1)
	c.Append(asm.ADD)
	c.AppendJumpTo(loop)
	c.PlaceTag(done)
	c.PopStackSlots(3)
	return nil
}

// CopyArrayToStorage copies a static array into a storage array of the
// same shape, element values only. The copy itself runs in a shared
// routine keyed by the array shape. Stack: [source_ref, target_key] on
// entry, [target_key] on exit.
func (a *ArrayUtils) CopyArrayToStorage(loc source.Location, target, src *types.Array, srcLoc types.DataLocation) error {
	if target.Dynamic || src.Dynamic {
		return comperr.Unsupportedf("copying a dynamically-sized array into storage")
	}
	if !src.IsImplicitlyConvertibleTo(target) {
		return comperr.Internalf("array assignment between incompatible layouts %s and %s", src, target)
	}
	if !target.Elem.IsValueType() {
		return comperr.Unsupportedf("copying an array of reference type %s", target.Elem)
	}

	var err error
	switch srcLoc {
	case types.StorageLocation:
		err = a.copyFromStorage(loc, target)
	case types.MemoryLocation:
		err = a.copyFromMemory(loc, target)
	default:
		err = comperr.Unsupportedf("copying an array into storage from %s", srcLoc)
	}
	if err != nil {
		return err
	}
	// [source_ref, target_key]
	c := a.ctx
	c.Append(asm.SWAP1)
	c.Append(asm.POP)
	return nil
}

// copyFromStorage copies slot by slot; the packing on both sides is
// identical, so whole slots carry whole groups of packed elements.
func (a *ArrayUtils) copyFromStorage(loc source.Location, target *types.Array) error {
	slots := target.StorageSlots()
	name := fmt.Sprintf("$copyArrayToStorage_%d", slots)
	return a.ctx.CallUtility(loc, name, 2, 2, func(c *Context) error {
		// [return_tag, source_key, target_key]
		for i := uint64(0); i < slots; i++ {
			c.Append(asm.DUP2)
			if i > 0 {
				c.AppendPushInt(i)
				c.Append(asm.ADD)
			}
			c.Append(asm.SLOAD)
			c.Append(asm.DUP2)
			if i > 0 {
				c.AppendPushInt(i)
				c.Append(asm.ADD)
			}
			c.Append(asm.SSTORE)
		}
		return c.ReturnFromUtility(2)
	})
}

// copyFromMemory copies word by word. Memory lays one element per padded
// word, so only full-word elements map one-to-one onto storage slots;
// narrower elements would need repacking.
func (a *ArrayUtils) copyFromMemory(loc source.Location, target *types.Array) error {
	if target.Elem.StorageBytes() != types.WordBytes {
		return comperr.Unsupportedf("copying an array of packed %s elements from memory", target.Elem)
	}
	name := fmt.Sprintf("$copyArrayFromMemory_%d", target.Len)
	words := target.Len
	return a.ctx.CallUtility(loc, name, 2, 2, func(c *Context) error {
		// [return_tag, source_ptr, target_key]
		for j := uint64(0); j < words; j++ {
			c.AppendPushInt(j * types.WordBytes)
			c.Append(asm.DUP3)
			c.Append(asm.ADD)
			c.Append(asm.MLOAD)
			c.Append(asm.DUP2)
			if j > 0 {
				c.AppendPushInt(j)
				c.Append(asm.ADD)
			}
			c.Append(asm.SSTORE)
		}
		return c.ReturnFromUtility(2)
	})
}
