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

package codegen_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/codegen"
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/contract"
	"github.com/sigil-lang/sigil/internal/vm"
	"github.com/sigil-lang/sigil/types"
)

// tokenDefinition packs three value fields into slot 0, fills slot 1,
// packs two more into slot 2 and the function fields into slot 3, and
// declares one transient flag.
func tokenDefinition() *contract.Definition {
	return &contract.Definition{
		Name: "Token",
		Variables: []*contract.Variable{
			{Name: "flag", Type: &types.Bool{}},
			{Name: "owner", Type: &types.Address{}},
			{Name: "rate", Type: types.Uint(64)},
			{Name: "supply", Type: types.Uint(256)},
			{Name: "debt", Type: types.Int(64)},
			{Name: "mark", Type: types.Bytes(4)},
			{Name: "callback", Type: &types.Function{Signature: "notify(uint256)", External: true}},
			{Name: "handler", Type: &types.Function{Signature: "step()", External: false}},
			{Name: "lock", Type: &types.Bool{}, Location: contract.LocationTransient},
		},
	}
}

func pairStruct() *types.Struct {
	return types.NewStruct("Pair",
		types.Member{Name: "a", Type: types.Uint(256)},
		types.Member{Name: "b", Type: types.Uint(64)},
	)
}

func TestStorageFullWordStore(t *testing.T) {
	c := newLayoutContext(t, tokenDefinition())
	c.AppendPushInt(1000)
	item, err := codegen.NewStorageItemFor(c, "supply")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.Uint(256), here, true); err != nil {
		t.Fatal(err)
	}
	state := vm.NewState()
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 1, uint256.NewInt(1000))
}

func TestStoragePackedStorePreservesNeighbours(t *testing.T) {
	state := vm.NewState()
	// flag, owner and rate packed into slot 0.
	old := uint256.NewInt(1)
	old.Or(old, word(0xaaaa, 8))
	old.Or(old, word(0x1234, 8*21))
	state.SetStorage(0, old)

	c := newLayoutContext(t, tokenDefinition())
	c.AppendPushInt(0x5678)
	item, err := codegen.NewStorageItemFor(c, "rate")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.Uint(64), here, true); err != nil {
		t.Fatal(err)
	}
	run(t, c, state)
	wantStack(t, state)

	want := uint256.NewInt(1)
	want.Or(want, word(0xaaaa, 8))
	want.Or(want, word(0x5678, 8*21))
	wantStorage(t, state, 0, want)
}

func TestStoragePackedRetrieve(t *testing.T) {
	state := vm.NewState()
	w := uint256.NewInt(1)
	w.Or(w, word(0xaaaa, 8))
	w.Or(w, word(0x1234, 8*21))
	state.SetStorage(0, w)

	c := newLayoutContext(t, tokenDefinition())
	rate, err := codegen.NewStorageItemFor(c, "rate")
	if err != nil {
		t.Fatal(err)
	}
	if err := rate.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}
	// Keeping the reference leaves it below the value.
	owner, err := codegen.NewStorageItemFor(c, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.Retrieve(here, false); err != nil {
		t.Fatal(err)
	}

	run(t, c, state)
	wantStack(t, state, 0x1234, 0, 1, 0xaaaa)
}

func TestStorageStoreKeepsSourceValue(t *testing.T) {
	// The kept copy is the expression's original value, before the
	// codec chops it to the field's width.
	c := newLayoutContext(t, tokenDefinition())
	dirty := word(1, 64)
	dirty.Add(dirty, uint256.NewInt(5))
	c.AppendPush(dirty)
	item, err := codegen.NewStorageItemFor(c, "rate")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.Uint(64), here, false); err != nil {
		t.Fatal(err)
	}
	state := vm.NewState()
	run(t, c, state)
	if len(state.Stack) != 1 {
		t.Fatalf("stack has %d words, want 1", len(state.Stack))
	}
	wantTop(t, state, dirty)
	wantStorage(t, state, 0, word(5, 8*21))
}

func TestStorageSignedField(t *testing.T) {
	state := vm.NewState()
	state.SetStorage(2, word(0xcafebabe, 64)) // mark shares the slot

	c := newLayoutContext(t, tokenDefinition())
	minusTwo := new(uint256.Int).Not(uint256.NewInt(1))
	c.AppendPush(minusTwo)
	item, err := codegen.NewStorageItemFor(c, "debt")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.Int(64), here, true); err != nil {
		t.Fatal(err)
	}
	back, err := codegen.NewStorageItemFor(c, "debt")
	if err != nil {
		t.Fatal(err)
	}
	if err := back.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}

	run(t, c, state)
	if len(state.Stack) != 1 {
		t.Fatalf("stack has %d words, want 1", len(state.Stack))
	}
	// Sign-extended back to the full word.
	wantTop(t, state, minusTwo)

	want := word(0xcafebabe, 64)
	want.Or(want, uint256.NewInt(0xfffffffffffffffe))
	wantStorage(t, state, 2, want)
}

func TestStorageLeftAlignedField(t *testing.T) {
	c := newLayoutContext(t, tokenDefinition())
	canonical := word(0xdeadbeef, 256-32)
	c.AppendPush(canonical)
	item, err := codegen.NewStorageItemFor(c, "mark")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.Bytes(4), here, true); err != nil {
		t.Fatal(err)
	}
	back, err := codegen.NewStorageItemFor(c, "mark")
	if err != nil {
		t.Fatal(err)
	}
	if err := back.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}

	state := vm.NewState()
	run(t, c, state)
	if len(state.Stack) != 1 {
		t.Fatalf("stack has %d words, want 1", len(state.Stack))
	}
	wantTop(t, state, canonical)
	// Right-aligned in the slot at the field's byte offset.
	wantStorage(t, state, 2, word(0xdeadbeef, 64))
}

func TestStorageClears(t *testing.T) {
	state := vm.NewState()
	full := uint256.NewInt(1)
	full.Or(full, word(0xaaaa, 8))
	full.Or(full, word(0x1234, 8*21))
	state.SetStorage(0, full)
	state.SetStorage(1, uint256.NewInt(777))

	c := newLayoutContext(t, tokenDefinition())
	owner, err := codegen.NewStorageItemFor(c, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.Clear(here, true); err != nil {
		t.Fatal(err)
	}
	rate, err := codegen.NewStorageItemFor(c, "rate")
	if err != nil {
		t.Fatal(err)
	}
	if err := rate.Clear(here, false); err != nil {
		t.Fatal(err)
	}
	supply, err := codegen.NewStorageItemFor(c, "supply")
	if err != nil {
		t.Fatal(err)
	}
	if err := supply.Clear(here, true); err != nil {
		t.Fatal(err)
	}

	run(t, c, state)
	// rate's reference was kept.
	wantStack(t, state, 0, 21)
	wantStorage(t, state, 0, uint256.NewInt(1))
	wantStorage(t, state, 1, uint256.NewInt(0))
}

func TestStorageExternalFunctionRoundTrip(t *testing.T) {
	state := vm.NewState()
	state.SetStorage(3, word(0x42, 8*24)) // handler shares the slot

	c := newLayoutContext(t, tokenDefinition())
	fn := &types.Function{Signature: "notify(uint256)", External: true}
	c.AppendPushInt(0x1111)     // target address
	c.AppendPushInt(0xaabbccdd) // selector
	item, err := codegen.NewStorageItemFor(c, "callback")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(fn, here, true); err != nil {
		t.Fatal(err)
	}
	back, err := codegen.NewStorageItemFor(c, "callback")
	if err != nil {
		t.Fatal(err)
	}
	if err := back.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}

	run(t, c, state)
	wantStack(t, state, 0x1111, 0xaabbccdd)

	want := word(0x42, 8*24)
	want.Or(want, word(0x1111, 32))
	want.Or(want, uint256.NewInt(0xaabbccdd))
	wantStorage(t, state, 3, want)
}

func TestStorageInternalFunctionZeroTraps(t *testing.T) {
	// A never-assigned internal reference retrieves as the trap routine's
	// offset; calling through it aborts execution.
	c := newLayoutContext(t, tokenDefinition())
	item, err := codegen.NewStorageItemFor(c, "handler")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}
	c.Append(asm.JUMP)
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
	if _, err := vm.Execute(p.Bytecode, vm.NewState()); err == nil {
		t.Fatal("calling a never-assigned internal reference did not abort")
	}
}

func TestStorageInternalFunctionRoundTrip(t *testing.T) {
	state := vm.NewState()
	callbackBits := word(0x1111, 32)
	callbackBits.Or(callbackBits, uint256.NewInt(0xaabbccdd))
	state.SetStorage(3, callbackBits)

	c := newLayoutContext(t, tokenDefinition())
	fn := &types.Function{Signature: "step()", External: false}
	c.AppendPushInt(0x77)
	item, err := codegen.NewStorageItemFor(c, "handler")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(fn, here, true); err != nil {
		t.Fatal(err)
	}
	back, err := codegen.NewStorageItemFor(c, "handler")
	if err != nil {
		t.Fatal(err)
	}
	if err := back.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}

	run(t, c, state)
	wantStack(t, state, 0x77)

	want := word(0x77, 8*24)
	want.Or(want, word(0x1111, 32))
	want.Or(want, uint256.NewInt(0xaabbccdd))
	wantStorage(t, state, 3, want)
}

func TestTransientStorageIsSeparate(t *testing.T) {
	state := vm.NewState()
	state.SetStorage(0, uint256.NewInt(0xff)) // the persistent slot stays untouched

	c := newLayoutContext(t, tokenDefinition())
	c.AppendPushInt(1)
	lock, err := codegen.NewStorageItemFor(c, "lock")
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.Store(&types.Bool{}, here, true); err != nil {
		t.Fatal(err)
	}
	back, err := codegen.NewStorageItemFor(c, "lock")
	if err != nil {
		t.Fatal(err)
	}
	if err := back.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}

	// An unnamed transient word, reference pushed by hand.
	c.AppendPushInt(9)
	c.AppendPushInt(4)
	c.AppendPushInt(0)
	direct, err := codegen.NewTransientStorageItem(c, types.Uint(256))
	if err != nil {
		t.Fatal(err)
	}
	if err := direct.Store(types.Uint(256), here, true); err != nil {
		t.Fatal(err)
	}

	run(t, c, state)
	wantStack(t, state, 1)
	wantStorage(t, state, 0, uint256.NewInt(0xff))
	if got := state.TransientAt(0); !got.Eq(uint256.NewInt(1)) {
		t.Errorf("transient slot 0 = %s, want 1", got)
	}
	if got := state.TransientAt(4); !got.Eq(uint256.NewInt(9)) {
		t.Errorf("transient slot 4 = %s, want 9", got)
	}
}

func TestByteArrayElementStore(t *testing.T) {
	c := newContext(t)
	el := codegen.NewStorageByteArrayElement(c)
	// One left-aligned byte, written at index 5 of slot 7.
	c.AppendPush(word(0xab, 248))
	c.AppendPushInt(7)
	c.AppendPushInt(5)
	if err := el.Store(el.Type(), here, true); err != nil {
		t.Fatal(err)
	}
	state := vm.NewState()
	run(t, c, state)
	wantStack(t, state)

	w := state.StorageAt(7).Bytes32()
	for i, b := range w {
		switch {
		case i == 5 && b != 0xab:
			t.Errorf("byte 5 of slot 7 = %#x, want 0xab", b)
		case i != 5 && b != 0:
			t.Errorf("byte %d of slot 7 = %#x, want 0", i, b)
		}
	}
}

func TestByteArrayElementRetrieve(t *testing.T) {
	state := vm.NewState()
	w := word(0xab, 8*26)
	w.Or(w, word(0x99, 8*25))
	state.SetStorage(7, w)

	c := newContext(t)
	el := codegen.NewStorageByteArrayElement(c)
	c.AppendPushInt(7)
	c.AppendPushInt(5)
	if err := el.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}
	c.AppendPushInt(7)
	c.AppendPushInt(6)
	if err := el.Retrieve(here, false); err != nil {
		t.Fatal(err)
	}

	run(t, c, state)
	if len(state.Stack) != 4 {
		t.Fatalf("stack has %d words, want 4", len(state.Stack))
	}
	if got := &state.Stack[0]; !got.Eq(word(0xab, 248)) {
		t.Errorf("byte 5 = %s, want 0xab left-aligned", got)
	}
	if !state.Stack[1].Eq(uint256.NewInt(7)) || !state.Stack[2].Eq(uint256.NewInt(6)) {
		t.Error("kept reference slots were disturbed")
	}
	wantTop(t, state, word(0x99, 248))
}

func TestByteArrayElementClear(t *testing.T) {
	state := vm.NewState()
	state.SetStorage(7, new(uint256.Int).Not(uint256.NewInt(0)))

	c := newContext(t)
	el := codegen.NewStorageByteArrayElement(c)
	c.AppendPushInt(7)
	c.AppendPushInt(5)
	if err := el.Clear(here, true); err != nil {
		t.Fatal(err)
	}
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 7, new(uint256.Int).Not(word(0xff, 8*26)))

	if err := el.Clear(here, false); !errors.Is(err, comperr.ErrInternal) {
		t.Errorf("clear keeping the reference = %v, want internal error", err)
	}
}

func TestStructCopyWithinStorage(t *testing.T) {
	// All members are value types: the copy runs through one fused
	// slot-copy routine.
	pair := pairStruct()
	state := vm.NewState()
	state.SetStorage(0, uint256.NewInt(111))
	state.SetStorage(1, uint256.NewInt(222))

	c := newContext(t)
	c.AppendPushInt(0) // source reference
	c.AppendPushInt(2) // target key
	c.AppendPushInt(0) // target byte offset
	item, err := codegen.NewStorageItem(c, pair)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.InLocation(pair, types.StorageLocation), here, true); err != nil {
		t.Fatal(err)
	}
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 2, uint256.NewInt(111))
	wantStorage(t, state, 3, uint256.NewInt(222))
}

func TestStructCopyPerMember(t *testing.T) {
	// A reference member forces the member-by-member walk.
	holder := types.NewStruct("Holder",
		types.Member{Name: "n", Type: types.Uint(64)},
		types.Member{Name: "arr", Type: types.StaticArray(types.Uint(256), 2)},
	)
	state := vm.NewState()
	state.SetStorage(10, uint256.NewInt(5))
	state.SetStorage(11, uint256.NewInt(77))
	state.SetStorage(12, uint256.NewInt(88))

	c := newContext(t)
	c.AppendPushInt(10)
	c.AppendPushInt(20)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, holder)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.InLocation(holder, types.StorageLocation), here, true); err != nil {
		t.Fatal(err)
	}
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 20, uint256.NewInt(5))
	wantStorage(t, state, 21, uint256.NewInt(77))
	wantStorage(t, state, 22, uint256.NewInt(88))
}

func TestStructCopyFromMemory(t *testing.T) {
	pair := pairStruct()
	c := newContext(t)
	// One padded word per member.
	c.AppendPushInt(111)
	c.AppendPushInt(0x80)
	c.Append(asm.MSTORE)
	c.AppendPushInt(222)
	c.AppendPushInt(0xa0)
	c.Append(asm.MSTORE)

	c.AppendPushInt(0x80) // source address
	c.AppendPushInt(5)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, pair)
	if err != nil {
		t.Fatal(err)
	}
	// Keeping the expression's value keeps the target reference.
	if err := item.Store(types.InLocation(pair, types.MemoryLocation), here, false); err != nil {
		t.Fatal(err)
	}
	state := vm.NewState()
	run(t, c, state)
	wantStack(t, state, 5)
	wantStorage(t, state, 5, uint256.NewInt(111))
	wantStorage(t, state, 6, uint256.NewInt(222))
}

func TestStructCopyFromCalldata(t *testing.T) {
	pair := pairStruct()
	state := vm.NewState()
	data := make([]byte, 64)
	a := uint256.NewInt(111).Bytes32()
	copy(data[0:32], a[:])
	b := uint256.NewInt(222).Bytes32()
	copy(data[32:64], b[:])
	state.Calldata = data

	c := newContext(t)
	c.AppendPushInt(0) // offset into the call input
	c.AppendPushInt(5)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, pair)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.InLocation(pair, types.CalldataLocation), here, true); err != nil {
		t.Fatal(err)
	}
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 5, uint256.NewInt(111))
	wantStorage(t, state, 6, uint256.NewInt(222))

	// Reference members have no calldata representation here.
	deep := types.NewStruct("Deep", types.Member{Name: "inner", Type: pairStruct()})
	c2 := newContext(t)
	c2.AppendPushInt(0)
	c2.AppendPushInt(5)
	c2.AppendPushInt(0)
	item2, err := codegen.NewStorageItem(c2, deep)
	if err != nil {
		t.Fatal(err)
	}
	if err := item2.Store(types.InLocation(deep, types.CalldataLocation), here, true); !errors.Is(err, comperr.ErrUnsupported) {
		t.Errorf("calldata copy with a reference member = %v, want unsupported", err)
	}
}

func TestStructStoreRejects(t *testing.T) {
	// Structurally identical but distinct definitions do not assign.
	c := newContext(t)
	c.AppendPushInt(0)
	c.AppendPushInt(2)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, pairStruct())
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.InLocation(pairStruct(), types.StorageLocation), here, true); !errors.Is(err, comperr.ErrInternal) {
		t.Errorf("assigning a distinct definition = %v, want internal error", err)
	}

	withMap := types.NewStruct("Vault",
		types.Member{Name: "balances", Type: &types.Mapping{Key: &types.Address{}, Value: types.Uint(256)}},
		types.Member{Name: "total", Type: types.Uint(256)},
	)
	c2 := newContext(t)
	c2.AppendPushInt(0)
	c2.AppendPushInt(2)
	c2.AppendPushInt(0)
	item2, err := codegen.NewStorageItem(c2, withMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := item2.Store(types.InLocation(withMap, types.StorageLocation), here, true); !errors.Is(err, comperr.ErrInternal) {
		t.Errorf("copying a struct holding a mapping = %v, want internal error", err)
	}
}

func TestStructClearSkipsMappings(t *testing.T) {
	withMap := types.NewStruct("Vault",
		types.Member{Name: "balances", Type: &types.Mapping{Key: &types.Address{}, Value: types.Uint(256)}},
		types.Member{Name: "total", Type: types.Uint(256)},
	)
	state := vm.NewState()
	state.SetStorage(30, uint256.NewInt(0xdead)) // the mapping's root slot
	state.SetStorage(31, uint256.NewInt(999))

	c := newContext(t)
	c.AppendPushInt(30)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, withMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Clear(here, true); err != nil {
		t.Fatal(err)
	}
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 30, uint256.NewInt(0xdead))
	wantStorage(t, state, 31, uint256.NewInt(0))
}

func TestStorageReferenceRetrieve(t *testing.T) {
	arr := types.StaticArray(types.Uint(256), 2)
	c := newContext(t)
	c.AppendPushInt(9)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, arr)
	if err != nil {
		t.Fatal(err)
	}
	// The retrieved value of a reference type is its slot key.
	if err := item.Retrieve(here, true); err != nil {
		t.Fatal(err)
	}
	c.AppendPushInt(4)
	c.AppendPushInt(0)
	if err := item.Retrieve(here, false); err != nil {
		t.Fatal(err)
	}
	state := vm.NewState()
	run(t, c, state)
	wantStack(t, state, 9, 4, 0, 4)
}

func TestArrayClear(t *testing.T) {
	t.Run("unrolled", func(t *testing.T) {
		arr := types.StaticArray(types.Uint(256), 4)
		state := vm.NewState()
		for slot := uint64(40); slot <= 44; slot++ {
			state.SetStorage(slot, uint256.NewInt(slot))
		}
		c := newContext(t)
		c.AppendPushInt(40)
		c.AppendPushInt(0)
		item, err := codegen.NewStorageItem(c, arr)
		if err != nil {
			t.Fatal(err)
		}
		if err := item.Clear(here, true); err != nil {
			t.Fatal(err)
		}
		run(t, c, state)
		wantStack(t, state)
		for slot := uint64(40); slot < 44; slot++ {
			wantStorage(t, state, slot, uint256.NewInt(0))
		}
		wantStorage(t, state, 44, uint256.NewInt(44)) // one past the end
	})

	t.Run("loop", func(t *testing.T) {
		arr := types.StaticArray(types.Uint(256), 6)
		state := vm.NewState()
		for slot := uint64(40); slot <= 46; slot++ {
			state.SetStorage(slot, uint256.NewInt(slot))
		}
		c := newContext(t)
		c.AppendPushInt(40)
		c.AppendPushInt(0)
		item, err := codegen.NewStorageItem(c, arr)
		if err != nil {
			t.Fatal(err)
		}
		if err := item.Clear(here, true); err != nil {
			t.Fatal(err)
		}
		run(t, c, state)
		wantStack(t, state)
		for slot := uint64(40); slot < 46; slot++ {
			wantStorage(t, state, slot, uint256.NewInt(0))
		}
		wantStorage(t, state, 46, uint256.NewInt(46))
	})
}

func TestArrayCopyWithinStorage(t *testing.T) {
	// Packed elements lay out identically on both sides, so whole slots
	// move.
	arr := types.StaticArray(types.Uint(64), 8)
	state := vm.NewState()
	state.SetStorage(10, uint256.NewInt(0xdeadbeef))
	state.SetStorage(11, uint256.NewInt(0xcafe))

	c := newContext(t)
	c.AppendPushInt(10)
	c.AppendPushInt(20)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, arr)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.InLocation(arr, types.StorageLocation), here, true); err != nil {
		t.Fatal(err)
	}
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 20, uint256.NewInt(0xdeadbeef))
	wantStorage(t, state, 21, uint256.NewInt(0xcafe))
}

func TestArrayCopyFromMemory(t *testing.T) {
	arr := types.StaticArray(types.Uint(256), 2)
	c := newContext(t)
	c.AppendPushInt(7)
	c.AppendPushInt(0x80)
	c.Append(asm.MSTORE)
	c.AppendPushInt(9)
	c.AppendPushInt(0xa0)
	c.Append(asm.MSTORE)

	c.AppendPushInt(0x80)
	c.AppendPushInt(60)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, arr)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.InLocation(arr, types.MemoryLocation), here, true); err != nil {
		t.Fatal(err)
	}
	state := vm.NewState()
	run(t, c, state)
	wantStack(t, state)
	wantStorage(t, state, 60, uint256.NewInt(7))
	wantStorage(t, state, 61, uint256.NewInt(9))

	// Packed elements do not map word-for-word onto memory words.
	packed := types.StaticArray(types.Uint(64), 4)
	c2 := newContext(t)
	c2.AppendPushInt(0x80)
	c2.AppendPushInt(60)
	c2.AppendPushInt(0)
	item2, err := codegen.NewStorageItem(c2, packed)
	if err != nil {
		t.Fatal(err)
	}
	if err := item2.Store(types.InLocation(packed, types.MemoryLocation), here, true); !errors.Is(err, comperr.ErrUnsupported) {
		t.Errorf("memory copy of a packed array = %v, want unsupported", err)
	}
}

func TestArrayRejects(t *testing.T) {
	dyn := types.DynamicArray(types.Uint(256))
	c := newContext(t)
	c.AppendPushInt(0)
	c.AppendPushInt(1)
	c.AppendPushInt(0)
	item, err := codegen.NewStorageItem(c, dyn)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Store(types.InLocation(dyn, types.StorageLocation), here, true); !errors.Is(err, comperr.ErrUnsupported) {
		t.Errorf("copying a dynamic array = %v, want unsupported", err)
	}

	c2 := newContext(t)
	c2.AppendPushInt(1)
	c2.AppendPushInt(0)
	item2, err := codegen.NewStorageItem(c2, dyn)
	if err != nil {
		t.Fatal(err)
	}
	if err := item2.Clear(here, true); !errors.Is(err, comperr.ErrUnsupported) {
		t.Errorf("clearing a dynamic array = %v, want unsupported", err)
	}

	arr := types.StaticArray(types.Uint(256), 2)
	c3 := newContext(t)
	c3.AppendPushInt(0)
	c3.AppendPushInt(1)
	c3.AppendPushInt(0)
	item3, err := codegen.NewStorageItem(c3, arr)
	if err != nil {
		t.Fatal(err)
	}
	if err := item3.Store(types.InLocation(arr, types.CalldataLocation), here, true); !errors.Is(err, comperr.ErrUnsupported) {
		t.Errorf("copying an array from calldata = %v, want unsupported", err)
	}
}

func TestStorageItemConstructorRejects(t *testing.T) {
	if _, err := codegen.NewStorageItemFor(newContext(t), "supply"); !errors.Is(err, comperr.ErrInternal) {
		t.Errorf("resolving without a layout = %v, want internal error", err)
	}
	c := newLayoutContext(t, tokenDefinition())
	if _, err := codegen.NewStorageItemFor(c, "ghost"); !errors.Is(err, comperr.ErrInternal) {
		t.Errorf("resolving an unknown variable = %v, want internal error", err)
	}
	if _, err := codegen.NewTransientStorageItem(c, pairStruct()); !errors.Is(err, comperr.ErrUnsupported) {
		t.Errorf("transient reference type = %v, want unsupported", err)
	}
	imm := newLayoutContext(t, immutableDefinition())
	if _, err := codegen.NewStorageItemFor(imm, "fee"); !errors.Is(err, comperr.ErrInternal) {
		t.Errorf("resolving an immutable as storage = %v, want internal error", err)
	}
}
