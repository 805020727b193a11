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

// Package types describes the values a contract can hold, as seen by the
// code generator: how wide a value is on the evaluation stack, how many
// bytes it occupies inside a 32-byte storage word, which end of the word
// it is aligned to, and how members of a compound value are laid out.
//
// The frontend performs type checking; the descriptors here only answer
// layout and encoding questions.
package types

// WordBytes is the width of a storage word and of a machine stack slot.
const WordBytes = 32

// Type describes the layout of one value.
type Type interface {
	// Kind is the category the codecs dispatch on.
	Kind() Kind
	// SizeOnStack is the number of evaluation-stack slots the value
	// occupies. External function references occupy two.
	SizeOnStack() int
	// StorageBytes is the width of the value inside a storage word,
	// between 1 and 32. Reference types occupy full words.
	StorageBytes() int
	// StorageSlots is the number of 32-byte storage words the value
	// occupies when it starts a fresh slot.
	StorageSlots() uint64
	// IsValueType reports whether the value is copied by value. Reference
	// types (structs, arrays, mappings) live in storage or memory and are
	// handled through references.
	IsValueType() bool
	// LeftAligned reports whether a narrower-than-word encoding occupies
	// the high-order bytes of its word rather than the low-order ones.
	LeftAligned() bool
	// CalldataEncodedSize is the number of bytes of the call-input
	// encoding: the padded form always fills whole words, the unpadded
	// form is the bare byte width.
	CalldataEncodedSize(padded bool) int
	// IsImplicitlyConvertibleTo reports whether a value of this type may
	// be stored into a location of type other without an explicit
	// conversion.
	IsImplicitlyConvertibleTo(other Type) bool

	String() string
}

// Encoding returns the type a value is encoded as in storage and memory:
// the underlying type for user-defined value types, the type itself
// otherwise.
func Encoding(t Type) Type {
	if u, ok := t.(*UserDefined); ok {
		return u.Underlying
	}
	return t
}

// fullWords returns the number of words needed for n bytes.
func fullWords(n uint64) uint64 {
	return (n + WordBytes - 1) / WordBytes
}
