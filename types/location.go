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

// DataLocation names the data space a reference value currently occupies.
// Assignment into storage copies field-wise from any space, so the codec
// needs to know where the source lives, not just what shape it has.
type DataLocation uint8

const (
	// StorageLocation is the persistent keyed word store.
	StorageLocation DataLocation = iota
	// MemoryLocation is the linear scratch space, one padded word per
	// member.
	MemoryLocation
	// CalldataLocation is the read-only call input.
	CalldataLocation
)

// String returns a string representation of a data location.
func (l DataLocation) String() string {
	switch l {
	case StorageLocation:
		return "storage"
	case MemoryLocation:
		return "memory"
	case CalldataLocation:
		return "calldata"
	}
	return "invalid"
}

// Located qualifies a reference type with its data space. Value types
// have the same representation everywhere and never need one.
type Located struct {
	Type
	Location DataLocation
}

// InLocation wraps a reference type with the space its value lives in.
func InLocation(t Type, loc DataLocation) *Located {
	return &Located{Type: t, Location: loc}
}

// Bare strips a location qualifier.
func Bare(t Type) Type {
	if l, ok := t.(*Located); ok {
		return l.Type
	}
	return t
}

// LocationOf returns the data space of a reference value. Unqualified
// types default to storage, the space reference-typed state variables
// live in.
func LocationOf(t Type) DataLocation {
	if l, ok := t.(*Located); ok {
		return l.Location
	}
	return StorageLocation
}
