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

// The tests in this package assemble the emitted code and execute it on
// the reference evaluator, comparing final stacks and storage instead of
// instruction listings.
package codegen_test

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/codegen"
	"github.com/sigil-lang/sigil/contract"
	"github.com/sigil-lang/sigil/internal/vm"
	"github.com/sigil-lang/sigil/settings"
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// here stands in for the source span of the statement under test.
var here = source.Locate("test.sg", 1, 2)

// newContext returns a context emitting into a fresh assembly, with no
// contract layout behind it.
func newContext(t *testing.T) *codegen.Context {
	t.Helper()
	return codegen.NewContext(asm.New(t.Name()), nil, settings.Default(), nil)
}

// newLayoutContext returns a context resolving state variables against
// the layout of def.
func newLayoutContext(t *testing.T, def *contract.Definition) *codegen.Context {
	t.Helper()
	layout, err := contract.NewLayout(def)
	if err != nil {
		t.Fatal(err)
	}
	return codegen.NewContext(asm.New(t.Name()), layout, settings.Default(), nil)
}

// run seals the context's assembly and executes it over state. The code
// under test ends at the appended STOP; utility routine bodies land
// behind it and are reached by explicit jumps only.
func run(t *testing.T, c *codegen.Context, state *vm.State) {
	t.Helper()
	c.Append(asm.STOP)
	if err := c.AppendMissingUtilities(); err != nil {
		t.Fatal(err)
	}
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	p, err := c.Assembly().Assemble(asm.LinkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := vm.Execute(p.Bytecode, state); err != nil {
		t.Fatal(err)
	}
}

func addVariable(t *testing.T, c *codegen.Context, name string, typ types.Type) {
	t.Helper()
	if err := c.AddVariable(name, typ); err != nil {
		t.Fatal(err)
	}
}

func stackVariable(t *testing.T, c *codegen.Context, name string) *codegen.StackVariable {
	t.Helper()
	v, err := codegen.NewStackVariable(c, name)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// wantStack compares the final stack, bottom first, against small words.
func wantStack(t *testing.T, state *vm.State, want ...uint64) {
	t.Helper()
	if len(state.Stack) != len(want) {
		t.Fatalf("stack has %d words, want %d", len(state.Stack), len(want))
	}
	for i, w := range want {
		if got := &state.Stack[i]; !got.Eq(uint256.NewInt(w)) {
			t.Errorf("stack[%d] = %s, want %d", i, got, w)
		}
	}
}

func wantTop(t *testing.T, state *vm.State, want *uint256.Int) {
	t.Helper()
	if len(state.Stack) == 0 {
		t.Fatal("stack is empty")
	}
	if got := state.Top(0); !got.Eq(want) {
		t.Errorf("top of stack = %s, want %s", got, want)
	}
}

func wantStorage(t *testing.T, state *vm.State, slot uint64, want *uint256.Int) {
	t.Helper()
	if got := state.StorageAt(slot); !got.Eq(want) {
		t.Errorf("storage slot %d = %s, want %s", slot, got, want)
	}
}

// word returns v shifted left by bits, for building packed slot images.
func word(v uint64, bits uint) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(v), bits)
}
