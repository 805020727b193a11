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
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// TupleObject is an ordered sequence of destinations with optional
// holes. A nil entry is a hole: its source component has already been
// discarded upstream and the position is skipped. Only Store is
// meaningful; a tuple assignment has no retrievable value.
type TupleObject struct {
	ctx     *Context
	lvalues []LValue
}

var _ LValue = (*TupleObject)(nil)

// NewTupleObject returns a tuple destination. The reference slots of all
// non-hole entries are expected on the stack in sequence order, above
// the source component values.
func NewTupleObject(c *Context, lvalues []LValue) *TupleObject {
	return &TupleObject{ctx: c, lvalues: lvalues}
}

// SizeOnStack sums the reference slots of the non-hole entries.
func (t *TupleObject) SizeOnStack() int {
	size := 0
	for _, lv := range t.lvalues {
		if lv != nil {
			size += lv.SizeOnStack()
		}
	}
	return size
}

// Retrieve is not defined for tuples.
func (t *TupleObject) Retrieve(source.Location, bool) error {
	return comperr.Internalf("retrieving a tuple as a value")
}

// Store assigns each source component to its destination, right to
// left so the working values stay nearest the top of the stack. The
// source components of the non-hole entries sit below the references;
// they are consumed along with the references regardless of move.
func (t *TupleObject) Store(sourceType types.Type, loc source.Location, _ bool) error {
	src, ok := types.Bare(sourceType).(*types.Tuple)
	if !ok {
		return comperr.Internalf("assigning %s to a tuple", sourceType)
	}
	if len(src.Components) != len(t.lvalues) {
		return comperr.Internalf("tuple assignment of %d components to %d destinations", len(src.Components), len(t.lvalues))
	}
	valuePos := t.SizeOnStack()
	for i := len(t.lvalues) - 1; i >= 0; i-- {
		lv, valType := t.lvalues[i], src.Components[i]
		if (valType == nil) != (lv == nil) {
			return comperr.Internalf("tuple hole mismatch at component %d", i)
		}
		if lv == nil {
			continue
		}
		heightBefore := t.ctx.StackHeight()
		valSize := valType.SizeOnStack()
		valuePos += valSize
		if err := t.ctx.CopyToStackTop(loc, valuePos, valSize); err != nil {
			return err
		}
		if err := t.ctx.MoveToStackTop(loc, valSize, lv.SizeOnStack()); err != nil {
			return err
		}
		if err := lv.Store(valType, loc, true); err != nil {
			return err
		}
		valuePos += t.ctx.StackHeight() - heightBefore
	}
	t.ctx.PopStackElement(src)
	return nil
}

// Clear is not defined for tuples.
func (t *TupleObject) Clear(source.Location, bool) error {
	return comperr.Internalf("clearing a tuple")
}

func (*TupleObject) lvalue() {}
