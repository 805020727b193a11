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

package types

import "fmt"

type (
	// Member is one named field of a struct.
	Member struct {
		Name string
		Type Type
	}

	memberOffsets struct {
		slot     uint64
		byteOff  int
		memory   int
		calldata int
	}

	// Struct is a named sequence of members. Two struct types are the
	// same type only if they are the same descriptor: assignment between
	// distinct definitions is rejected even when the members match.
	Struct struct {
		Name    string
		Members []Member

		offsets map[string]memberOffsets
		slots   uint64
	}

	// Array is a sequence of elements. A static array occupies a block of
	// consecutive slots with small elements packed per word; a dynamic
	// array occupies a single length slot with the payload elsewhere.
	Array struct {
		Elem    Type
		Len     uint64
		Dynamic bool
	}

	// Mapping is a keyed collection. Its contents are addressed by hashing
	// and have no enumerable extent, so a mapping can never be copied or
	// cleared as a value.
	Mapping struct {
		Key   Type
		Value Type
	}

	// Tuple is the source type of a tuple assignment. A nil component
	// matches a destination hole: the value is produced upstream but has
	// no type and no destination.
	Tuple struct {
		Components []Type
	}
)

// NewStruct returns a struct descriptor with its storage, memory and
// call-input layouts computed.
//
// Storage packing: members are placed in declaration order; a value-type
// member shares the current word if it fits in the remaining bytes,
// otherwise it starts the next word; reference-type members always start
// a fresh word and occupy whole words.
func NewStruct(name string, members ...Member) *Struct {
	s := &Struct{
		Name:    name,
		Members: members,
		offsets: make(map[string]memberOffsets, len(members)),
	}
	var slot uint64
	byteOff := 0
	memOff := 0
	cdOff := 0
	for _, m := range members {
		off := memberOffsets{memory: memOff, calldata: cdOff}
		if m.Type.IsValueType() && m.Type.StorageBytes() < WordBytes {
			if byteOff+m.Type.StorageBytes() > WordBytes {
				slot++
				byteOff = 0
			}
			off.slot, off.byteOff = slot, byteOff
			byteOff += m.Type.StorageBytes()
			if byteOff == WordBytes {
				slot++
				byteOff = 0
			}
		} else {
			if byteOff > 0 {
				slot++
				byteOff = 0
			}
			off.slot, off.byteOff = slot, 0
			slot += m.Type.StorageSlots()
		}
		s.offsets[m.Name] = off
		memOff += WordBytes
		cdOff += staticCalldataSize(m.Type)
	}
	s.slots = slot
	if byteOff > 0 {
		s.slots++
	}
	return s
}

// staticCalldataSize is the head size of a member in the call-input
// encoding: dynamic members contribute a one-word offset, static members
// their full inline encoding.
func staticCalldataSize(t Type) int {
	switch t := t.(type) {
	case *Struct:
		total := 0
		for _, m := range t.Members {
			total += staticCalldataSize(m.Type)
		}
		return total
	case *Array:
		if t.Dynamic {
			return WordBytes
		}
		return int(t.Len) * staticCalldataSize(t.Elem)
	default:
		return t.CalldataEncodedSize(true)
	}
}

// Kind returns StructKind.
func (t *Struct) Kind() Kind { return StructKind }

// SizeOnStack returns 1: a struct is handled through a reference.
func (t *Struct) SizeOnStack() int { return 1 }

// StorageBytes returns a full word: a struct reference never shares one.
func (t *Struct) StorageBytes() int { return WordBytes }

// StorageSlots returns the number of words the packed members occupy.
func (t *Struct) StorageSlots() uint64 { return t.slots }

// IsValueType returns false.
func (t *Struct) IsValueType() bool { return false }

// LeftAligned returns false.
func (t *Struct) LeftAligned() bool { return false }

// CalldataEncodedSize returns the static inline encoding size.
func (t *Struct) CalldataEncodedSize(bool) int { return staticCalldataSize(t) }

// IsImplicitlyConvertibleTo allows only the identical descriptor.
func (t *Struct) IsImplicitlyConvertibleTo(other Type) bool { return t == other }

// StorageOffsetsOf returns the (word, byte-offset) position of a member
// relative to the start of the struct.
func (t *Struct) StorageOffsetsOf(member string) (slot uint64, byteOff int, ok bool) {
	off, ok := t.offsets[member]
	return off.slot, off.byteOff, ok
}

// MemoryOffsetOf returns the byte offset of a member within the struct's
// memory layout, where every member occupies one padded word.
func (t *Struct) MemoryOffsetOf(member string) (int, bool) {
	off, ok := t.offsets[member]
	return off.memory, ok
}

// CalldataOffsetOf returns the byte offset of a member's head within the
// struct's call-input encoding.
func (t *Struct) CalldataOffsetOf(member string) (int, bool) {
	off, ok := t.offsets[member]
	return off.calldata, ok
}

// ContainsMapping reports whether the struct transitively holds a member
// that cannot be copied by value.
func (t *Struct) ContainsMapping() bool {
	for _, m := range t.Members {
		if containsMapping(m.Type) {
			return true
		}
	}
	return false
}

func containsMapping(t Type) bool {
	switch t := t.(type) {
	case *Mapping:
		return true
	case *Struct:
		return t.ContainsMapping()
	case *Array:
		return containsMapping(t.Elem)
	}
	return false
}

func (t *Struct) String() string { return "struct " + t.Name }

// StaticArray returns a fixed-length array descriptor.
func StaticArray(elem Type, n uint64) *Array {
	return &Array{Elem: elem, Len: n}
}

// DynamicArray returns a dynamically-sized array descriptor.
func DynamicArray(elem Type) *Array {
	return &Array{Elem: elem, Dynamic: true}
}

// Kind returns ArrayKind.
func (t *Array) Kind() Kind { return ArrayKind }

// SizeOnStack returns 1: an array is handled through a reference.
func (t *Array) SizeOnStack() int { return 1 }

// StorageBytes returns a full word.
func (t *Array) StorageBytes() int { return WordBytes }

// StorageSlots returns the words occupied by a static array block, or the
// single length slot of a dynamic array.
func (t *Array) StorageSlots() uint64 {
	if t.Dynamic {
		return 1
	}
	if t.Elem.IsValueType() && t.Elem.StorageBytes() < WordBytes {
		perWord := uint64(WordBytes / t.Elem.StorageBytes())
		return (t.Len + perWord - 1) / perWord
	}
	return t.Len * t.Elem.StorageSlots()
}

// IsValueType returns false.
func (t *Array) IsValueType() bool { return false }

// LeftAligned returns false.
func (t *Array) LeftAligned() bool { return false }

// CalldataEncodedSize returns the static inline size, or the one-word
// offset head for dynamic arrays.
func (t *Array) CalldataEncodedSize(bool) int { return staticCalldataSize(t) }

// IsImplicitlyConvertibleTo allows only an identical element layout.
func (t *Array) IsImplicitlyConvertibleTo(other Type) bool {
	o, ok := other.(*Array)
	if !ok || t.Dynamic != o.Dynamic || t.Len != o.Len {
		return false
	}
	return t.Elem.IsImplicitlyConvertibleTo(o.Elem) && o.Elem.IsImplicitlyConvertibleTo(t.Elem)
}

func (t *Array) String() string {
	if t.Dynamic {
		return t.Elem.String() + "[]"
	}
	return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
}

// Kind returns MappingKind.
func (t *Mapping) Kind() Kind { return MappingKind }

// SizeOnStack returns 1.
func (t *Mapping) SizeOnStack() int { return 1 }

// StorageBytes returns a full word.
func (t *Mapping) StorageBytes() int { return WordBytes }

// StorageSlots returns 1: only the root slot is materialized.
func (t *Mapping) StorageSlots() uint64 { return 1 }

// IsValueType returns false.
func (t *Mapping) IsValueType() bool { return false }

// LeftAligned returns false.
func (t *Mapping) LeftAligned() bool { return false }

// CalldataEncodedSize returns 0: mappings never appear in call input.
func (t *Mapping) CalldataEncodedSize(bool) int { return 0 }

// IsImplicitlyConvertibleTo returns false: mappings cannot be assigned.
func (t *Mapping) IsImplicitlyConvertibleTo(Type) bool { return false }

func (t *Mapping) String() string {
	return fmt.Sprintf("mapping(%s => %s)", t.Key, t.Value)
}

// NewTuple returns the source type of a tuple assignment. Nil components
// mark positions whose value is discarded.
func NewTuple(components ...Type) *Tuple {
	return &Tuple{Components: components}
}

// Kind returns TupleKind.
func (t *Tuple) Kind() Kind { return TupleKind }

// SizeOnStack returns the summed width of all components.
func (t *Tuple) SizeOnStack() int {
	size := 0
	for _, c := range t.Components {
		if c != nil {
			size += c.SizeOnStack()
		}
	}
	return size
}

// StorageBytes returns 0: tuples are not storable.
func (t *Tuple) StorageBytes() int { return 0 }

// StorageSlots returns 0: tuples are not storable.
func (t *Tuple) StorageSlots() uint64 { return 0 }

// IsValueType returns false.
func (t *Tuple) IsValueType() bool { return false }

// LeftAligned returns false.
func (t *Tuple) LeftAligned() bool { return false }

// CalldataEncodedSize returns 0.
func (t *Tuple) CalldataEncodedSize(bool) int { return 0 }

// IsImplicitlyConvertibleTo requires equal arity and component-wise
// convertibility; holes match anything.
func (t *Tuple) IsImplicitlyConvertibleTo(other Type) bool {
	o, ok := other.(*Tuple)
	if !ok || len(o.Components) != len(t.Components) {
		return false
	}
	for i, c := range t.Components {
		if c == nil || o.Components[i] == nil {
			continue
		}
		if !c.IsImplicitlyConvertibleTo(o.Components[i]) {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	s := "("
	for i, c := range t.Components {
		if i > 0 {
			s += ","
		}
		if c != nil {
			s += c.String()
		}
	}
	return s + ")"
}
