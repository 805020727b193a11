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

package types_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sigil-lang/sigil/types"
)

func TestWidths(t *testing.T) {
	tests := []struct {
		typ          types.Type
		stack        int
		storageBytes int
		slots        uint64
		leftAligned  bool
		value        bool
	}{
		{typ: types.Uint(8), stack: 1, storageBytes: 1, slots: 1, value: true},
		{typ: types.Uint(256), stack: 1, storageBytes: 32, slots: 1, value: true},
		{typ: types.Int(64), stack: 1, storageBytes: 8, slots: 1, value: true},
		{typ: &types.Bool{}, stack: 1, storageBytes: 1, slots: 1, value: true},
		{typ: &types.Address{}, stack: 1, storageBytes: 20, slots: 1, value: true},
		{typ: types.Bytes(4), stack: 1, storageBytes: 4, slots: 1, leftAligned: true, value: true},
		{typ: types.Bytes(32), stack: 1, storageBytes: 32, slots: 1, leftAligned: true, value: true},
		{typ: &types.Function{Signature: "f()", External: true}, stack: 2, storageBytes: 24, slots: 1, value: true},
		{typ: &types.Function{Signature: "f()"}, stack: 1, storageBytes: 8, slots: 1, value: true},
		{typ: &types.UserDefined{Name: "Price", Underlying: types.Uint(128)}, stack: 1, storageBytes: 16, slots: 1, value: true},
		{typ: &types.Mapping{Key: &types.Address{}, Value: types.Uint(256)}, stack: 1, storageBytes: 32, slots: 1},
		{typ: types.DynamicArray(types.Uint(8)), stack: 1, storageBytes: 32, slots: 1},
		{typ: types.StaticArray(types.Uint(256), 3), stack: 1, storageBytes: 32, slots: 3},
		{typ: types.StaticArray(types.Uint(64), 9), stack: 1, storageBytes: 32, slots: 3},
		{typ: types.StaticArray(&types.Address{}, 2), stack: 1, storageBytes: 32, slots: 2},
	}
	for _, test := range tests {
		t.Run(test.typ.String(), func(t *testing.T) {
			if got := test.typ.SizeOnStack(); got != test.stack {
				t.Errorf("SizeOnStack() = %d, want %d", got, test.stack)
			}
			if got := test.typ.StorageBytes(); got != test.storageBytes {
				t.Errorf("StorageBytes() = %d, want %d", got, test.storageBytes)
			}
			if got := test.typ.StorageSlots(); got != test.slots {
				t.Errorf("StorageSlots() = %d, want %d", got, test.slots)
			}
			if got := test.typ.LeftAligned(); got != test.leftAligned {
				t.Errorf("LeftAligned() = %t, want %t", got, test.leftAligned)
			}
			if got := test.typ.IsValueType(); got != test.value {
				t.Errorf("IsValueType() = %t, want %t", got, test.value)
			}
		})
	}
}

func TestStructStorageLayout(t *testing.T) {
	// One word shared by a, b, c; d starts its own word because it does
	// not fit next to c; the mapping takes a fresh full word.
	s := types.NewStruct("Account",
		types.Member{Name: "a", Type: types.Uint(64)},
		types.Member{Name: "b", Type: &types.Bool{}},
		types.Member{Name: "c", Type: &types.Address{}},
		types.Member{Name: "d", Type: types.Uint(128)},
		types.Member{Name: "m", Type: &types.Mapping{Key: &types.Address{}, Value: types.Uint(256)}},
		types.Member{Name: "e", Type: types.Uint(8)},
	)
	type pos struct {
		Slot uint64
		Off  int
	}
	want := map[string]pos{
		"a": {Slot: 0, Off: 0},
		"b": {Slot: 0, Off: 8},
		"c": {Slot: 0, Off: 9},
		"d": {Slot: 1, Off: 0},
		"m": {Slot: 2, Off: 0},
		"e": {Slot: 3, Off: 0},
	}
	got := map[string]pos{}
	for _, m := range s.Members {
		slot, off, ok := s.StorageOffsetsOf(m.Name)
		if !ok {
			t.Fatalf("StorageOffsetsOf(%q): missing member", m.Name)
		}
		got[m.Name] = pos{Slot: slot, Off: off}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("storage offsets mismatch (-want +got):\n%s", diff)
	}
	if got := s.StorageSlots(); got != 4 {
		t.Errorf("StorageSlots() = %d, want 4", got)
	}
	if !s.ContainsMapping() {
		t.Errorf("ContainsMapping() = false, want true")
	}
}

func TestStructWordBoundary(t *testing.T) {
	// Two 16-byte members fill a word exactly; the third starts word 1.
	s := types.NewStruct("Pair",
		types.Member{Name: "lo", Type: types.Uint(128)},
		types.Member{Name: "hi", Type: types.Uint(128)},
		types.Member{Name: "next", Type: types.Uint(8)},
	)
	slot, off, _ := s.StorageOffsetsOf("next")
	if slot != 1 || off != 0 {
		t.Errorf("next placed at (%d,%d), want (1,0)", slot, off)
	}
	if got := s.StorageSlots(); got != 2 {
		t.Errorf("StorageSlots() = %d, want 2", got)
	}
}

func TestMemoryAndCalldataOffsets(t *testing.T) {
	s := types.NewStruct("Header",
		types.Member{Name: "tag", Type: types.Bytes(4)},
		types.Member{Name: "size", Type: types.Uint(64)},
		types.Member{Name: "owner", Type: &types.Address{}},
	)
	for i, m := range s.Members {
		memOff, ok := s.MemoryOffsetOf(m.Name)
		if !ok || memOff != i*types.WordBytes {
			t.Errorf("MemoryOffsetOf(%q) = %d, %t, want %d, true", m.Name, memOff, ok, i*types.WordBytes)
		}
		cdOff, ok := s.CalldataOffsetOf(m.Name)
		if !ok || cdOff != i*types.WordBytes {
			t.Errorf("CalldataOffsetOf(%q) = %d, %t, want %d, true", m.Name, cdOff, ok, i*types.WordBytes)
		}
	}
}

func TestImplicitConversions(t *testing.T) {
	price := &types.UserDefined{Name: "Price", Underlying: types.Uint(128)}
	tests := []struct {
		from, to types.Type
		want     bool
	}{
		{from: types.Uint(8), to: types.Uint(256), want: true},
		{from: types.Uint(256), to: types.Uint(8), want: false},
		{from: types.Int(8), to: types.Int(16), want: true},
		{from: types.Int(8), to: types.Uint(16), want: false},
		{from: types.Uint(8), to: types.Int(16), want: true},
		{from: types.Uint(16), to: types.Int(16), want: false},
		{from: types.Bytes(1), to: types.Bytes(2), want: true},
		{from: types.Bytes(2), to: types.Bytes(1), want: false},
		{from: types.Bytes(1), to: types.Uint(8), want: false},
		{from: &types.Address{}, to: &types.Address{}, want: true},
		{from: price, to: price, want: true},
		{from: price, to: types.Uint(128), want: false},
		{
			from: &types.Function{Signature: "f()", External: true},
			to:   &types.Function{Signature: "f()", External: true},
			want: true,
		},
		{
			from: &types.Function{Signature: "f()", External: true},
			to:   &types.Function{Signature: "f()"},
			want: false,
		},
	}
	for _, test := range tests {
		name := fmt.Sprintf("%s->%s", test.from, test.to)
		if got := test.from.IsImplicitlyConvertibleTo(test.to); got != test.want {
			t.Errorf("%s: IsImplicitlyConvertibleTo = %t, want %t", name, got, test.want)
		}
	}
}

func TestStructIdentity(t *testing.T) {
	mk := func() *types.Struct {
		return types.NewStruct("P", types.Member{Name: "x", Type: types.Uint(8)})
	}
	a, b := mk(), mk()
	if !a.IsImplicitlyConvertibleTo(a) {
		t.Errorf("struct not convertible to itself")
	}
	if a.IsImplicitlyConvertibleTo(b) {
		t.Errorf("structurally equal but distinct definitions must not convert")
	}
}

func TestSelector(t *testing.T) {
	f := &types.Function{Signature: "transfer(address,uint256)", External: true}
	got := f.Selector()
	want := [4]byte{0xa9, 0x05, 0x9c, 0xbb}
	if got != want {
		t.Errorf("Selector() = %x, want %x", got, want)
	}
}

func TestEncoding(t *testing.T) {
	u := types.Uint(128)
	wrapped := &types.UserDefined{Name: "Price", Underlying: u}
	if got := types.Encoding(wrapped); got != types.Type(u) {
		t.Errorf("Encoding(Price) = %v, want %v", got, u)
	}
	if got := types.Encoding(u); got != types.Type(u) {
		t.Errorf("Encoding(uint128) = %v, want identity", got)
	}
}

func TestTuple(t *testing.T) {
	ext := &types.Function{Signature: "f()", External: true}
	tu := types.NewTuple(types.Uint(8), nil, ext)
	if got := tu.SizeOnStack(); got != 3 {
		t.Errorf("SizeOnStack() = %d, want 3", got)
	}
	if tu.IsValueType() {
		t.Errorf("IsValueType() = true, want false")
	}
}
