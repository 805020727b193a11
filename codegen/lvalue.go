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

// LValue is a writable location the expression compiler has already
// resolved. Construction fixes the location's reference layout: any
// addressing slots (a storage key, a memory address) are expected on the
// evaluation stack exactly as documented by the variant, and all three
// operations consume or preserve them as their flags say.
//
// An LValue borrows the Context it was built with and lives for a single
// operation; none survives the statement that created it. The set of
// variants is closed.
type LValue interface {
	// SizeOnStack is the number of stack slots the location's reference
	// occupies, not the width of the value stored there.
	SizeOnStack() int

	// Retrieve pushes the value held at the location. remove consumes
	// the reference slots; otherwise they stay below the value.
	Retrieve(loc source.Location, remove bool) error

	// Store writes the value on top of the stack, typed as sourceType by
	// the caller, into the location. move consumes the value; otherwise
	// a copy of it stays on the stack. The reference slots are always
	// consumed.
	Store(sourceType types.Type, loc source.Location, move bool) error

	// Clear overwrites the location with its type's zero value. removeRef
	// consumes the reference slots.
	Clear(loc source.Location, removeRef bool) error

	lvalue()
}

// StackVariable is a value at a fixed offset from the base of the
// current stack frame. It has no reference slots: the frame itself is
// the location.
type StackVariable struct {
	ctx  *Context
	typ  types.Type
	base int
	size int
}

var _ LValue = (*StackVariable)(nil)

// NewStackVariable returns the location of a variable registered with
// Context.AddVariable.
func NewStackVariable(c *Context, name string) (*StackVariable, error) {
	v, err := c.variable(name)
	if err != nil {
		return nil, err
	}
	return &StackVariable{
		ctx:  c,
		typ:  v.typ,
		base: v.base,
		size: v.typ.SizeOnStack(),
	}, nil
}

// SizeOnStack returns 0.
func (v *StackVariable) SizeOnStack() int { return 0 }

// Retrieve duplicates the variable's slots onto the top of the stack.
// The variable must be within the DUP window from the current height.
func (v *StackVariable) Retrieve(loc source.Location, _ bool) error {
	stackPos := v.ctx.BaseToCurrentStackOffset(v.base)
	if stackPos+1 > StackWindow {
		return comperr.StackTooDeep(loc, stackPos+1, StackWindow)
	}
	if stackPos+1 < v.size {
		return comperr.Internalf("variable of width %d found %d slots below the top", v.size, stackPos+1)
	}
	for i := 0; i < v.size; i++ {
		v.ctx.Append(asm.DupN(stackPos + 1))
	}
	return nil
}

// Store swaps the value on top of the stack into the variable's slots.
// The value must already have the variable's type; assignments convert
// before constructing the location.
func (v *StackVariable) Store(_ types.Type, loc source.Location, move bool) error {
	stackDiff := v.ctx.BaseToCurrentStackOffset(v.base) - v.size + 1
	switch {
	case stackDiff > StackWindow:
		return comperr.StackTooDeep(loc, stackDiff, StackWindow)
	case stackDiff < 0:
		return comperr.Internalf("variable slots overlap the value being stored, %d slots apart", stackDiff)
	case stackDiff > 0:
		for i := 0; i < v.size; i++ {
			v.ctx.Append(asm.SwapN(stackDiff))
			v.ctx.Append(asm.POP)
		}
	}
	if !move {
		return v.Retrieve(loc, false)
	}
	return nil
}

// Clear overwrites the variable with its type's zero value.
func (v *StackVariable) Clear(loc source.Location, _ bool) error {
	if err := v.ctx.PushZeroValue(v.typ); err != nil {
		return err
	}
	return v.Store(v.typ, loc, true)
}

func (*StackVariable) lvalue() {}
