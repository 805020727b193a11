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

// Kind is the category of a type. The set is closed: the code generator
// dispatches on it exhaustively and has no extension mechanism.
type Kind uint8

// Categories of types the storage and memory codecs know about.
const (
	Invalid Kind = iota

	IntegerKind
	BoolKind
	AddressKind
	FixedBytesKind
	FunctionKind
	UserDefinedKind

	StructKind
	ArrayKind
	MappingKind

	// TupleKind only appears as the source type of a tuple assignment.
	// Tuples are not storable and have no scalar encoding.
	TupleKind
)

// String returns a string representation of a kind.
func (k Kind) String() string {
	switch k {
	case IntegerKind:
		return "integer"
	case BoolKind:
		return "bool"
	case AddressKind:
		return "address"
	case FixedBytesKind:
		return "fixed bytes"
	case FunctionKind:
		return "function"
	case UserDefinedKind:
		return "user-defined value"
	case StructKind:
		return "struct"
	case ArrayKind:
		return "array"
	case MappingKind:
		return "mapping"
	case TupleKind:
		return "tuple"
	}
	return "invalid"
}
