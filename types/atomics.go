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
	// Integer is a signed or unsigned integer of 8..256 bits.
	Integer struct {
		Bits   int
		Signed bool
	}

	// Bool is the boolean type, stored as one byte.
	Bool struct{}

	// Address is a 160-bit account address.
	Address struct{}

	// FixedBytes is a byte sequence of fixed length 1..32, left-aligned
	// within its word.
	FixedBytes struct {
		N int
	}

	// UserDefined is a named value type wrapping another value type. It
	// shares the underlying type's encoding but converts to nothing else.
	UserDefined struct {
		Name       string
		Underlying Type
	}
)

// Uint returns an unsigned integer type of the given bit width.
// The width must be a multiple of 8 between 8 and 256.
func Uint(bits int) *Integer {
	return newInteger(bits, false)
}

// Int returns a signed integer type of the given bit width.
// The width must be a multiple of 8 between 8 and 256.
func Int(bits int) *Integer {
	return newInteger(bits, true)
}

func newInteger(bits int, signed bool) *Integer {
	if bits < 8 || bits > 256 || bits%8 != 0 {
		panic(fmt.Sprintf("types: invalid integer width %d", bits))
	}
	return &Integer{Bits: bits, Signed: signed}
}

// Kind returns IntegerKind.
func (t *Integer) Kind() Kind { return IntegerKind }

// SizeOnStack returns 1.
func (t *Integer) SizeOnStack() int { return 1 }

// StorageBytes returns the byte width of the integer.
func (t *Integer) StorageBytes() int { return t.Bits / 8 }

// StorageSlots returns 1.
func (t *Integer) StorageSlots() uint64 { return 1 }

// IsValueType returns true.
func (t *Integer) IsValueType() bool { return true }

// LeftAligned returns false: integers sit in the low-order bytes.
func (t *Integer) LeftAligned() bool { return false }

// CalldataEncodedSize returns a full word when padded.
func (t *Integer) CalldataEncodedSize(padded bool) int {
	if padded {
		return WordBytes
	}
	return t.StorageBytes()
}

// IsImplicitlyConvertibleTo allows widening that preserves every value.
func (t *Integer) IsImplicitlyConvertibleTo(other Type) bool {
	o, ok := other.(*Integer)
	if !ok {
		return false
	}
	if t.Signed == o.Signed {
		return o.Bits >= t.Bits
	}
	if !t.Signed && o.Signed {
		return o.Bits > t.Bits
	}
	return false
}

func (t *Integer) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}

// Kind returns BoolKind.
func (t *Bool) Kind() Kind { return BoolKind }

// SizeOnStack returns 1.
func (t *Bool) SizeOnStack() int { return 1 }

// StorageBytes returns 1.
func (t *Bool) StorageBytes() int { return 1 }

// StorageSlots returns 1.
func (t *Bool) StorageSlots() uint64 { return 1 }

// IsValueType returns true.
func (t *Bool) IsValueType() bool { return true }

// LeftAligned returns false.
func (t *Bool) LeftAligned() bool { return false }

// CalldataEncodedSize returns a full word when padded.
func (t *Bool) CalldataEncodedSize(padded bool) int {
	if padded {
		return WordBytes
	}
	return 1
}

// IsImplicitlyConvertibleTo allows only bool itself.
func (t *Bool) IsImplicitlyConvertibleTo(other Type) bool {
	_, ok := other.(*Bool)
	return ok
}

func (t *Bool) String() string { return "bool" }

// Kind returns AddressKind.
func (t *Address) Kind() Kind { return AddressKind }

// SizeOnStack returns 1.
func (t *Address) SizeOnStack() int { return 1 }

// StorageBytes returns 20.
func (t *Address) StorageBytes() int { return 20 }

// StorageSlots returns 1.
func (t *Address) StorageSlots() uint64 { return 1 }

// IsValueType returns true.
func (t *Address) IsValueType() bool { return true }

// LeftAligned returns false.
func (t *Address) LeftAligned() bool { return false }

// CalldataEncodedSize returns a full word when padded.
func (t *Address) CalldataEncodedSize(padded bool) int {
	if padded {
		return WordBytes
	}
	return 20
}

// IsImplicitlyConvertibleTo allows only address itself.
func (t *Address) IsImplicitlyConvertibleTo(other Type) bool {
	_, ok := other.(*Address)
	return ok
}

func (t *Address) String() string { return "address" }

// Bytes returns a fixed-bytes type of the given length 1..32.
func Bytes(n int) *FixedBytes {
	if n < 1 || n > WordBytes {
		panic(fmt.Sprintf("types: invalid fixed bytes length %d", n))
	}
	return &FixedBytes{N: n}
}

// Kind returns FixedBytesKind.
func (t *FixedBytes) Kind() Kind { return FixedBytesKind }

// SizeOnStack returns 1.
func (t *FixedBytes) SizeOnStack() int { return 1 }

// StorageBytes returns the declared length.
func (t *FixedBytes) StorageBytes() int { return t.N }

// StorageSlots returns 1.
func (t *FixedBytes) StorageSlots() uint64 { return 1 }

// IsValueType returns true.
func (t *FixedBytes) IsValueType() bool { return true }

// LeftAligned returns true: the data occupies the high-order bytes.
func (t *FixedBytes) LeftAligned() bool { return true }

// CalldataEncodedSize returns a full word when padded.
func (t *FixedBytes) CalldataEncodedSize(padded bool) int {
	if padded {
		return WordBytes
	}
	return t.N
}

// IsImplicitlyConvertibleTo allows widening: the extra low-order bytes of
// the wider type are zero.
func (t *FixedBytes) IsImplicitlyConvertibleTo(other Type) bool {
	o, ok := other.(*FixedBytes)
	return ok && o.N >= t.N
}

func (t *FixedBytes) String() string { return fmt.Sprintf("bytes%d", t.N) }

// Kind returns UserDefinedKind.
func (t *UserDefined) Kind() Kind { return UserDefinedKind }

// SizeOnStack returns the underlying width.
func (t *UserDefined) SizeOnStack() int { return t.Underlying.SizeOnStack() }

// StorageBytes returns the underlying width.
func (t *UserDefined) StorageBytes() int { return t.Underlying.StorageBytes() }

// StorageSlots returns the underlying count.
func (t *UserDefined) StorageSlots() uint64 { return t.Underlying.StorageSlots() }

// IsValueType returns true: only value types may be wrapped.
func (t *UserDefined) IsValueType() bool { return true }

// LeftAligned returns the underlying alignment.
func (t *UserDefined) LeftAligned() bool { return t.Underlying.LeftAligned() }

// CalldataEncodedSize returns the underlying size.
func (t *UserDefined) CalldataEncodedSize(padded bool) int {
	return t.Underlying.CalldataEncodedSize(padded)
}

// IsImplicitlyConvertibleTo allows only the exact same named type.
func (t *UserDefined) IsImplicitlyConvertibleTo(other Type) bool {
	o, ok := other.(*UserDefined)
	return ok && o.Name == t.Name && t.Underlying.IsImplicitlyConvertibleTo(o.Underlying)
}

func (t *UserDefined) String() string { return t.Name }
