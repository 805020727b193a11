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

import "golang.org/x/crypto/sha3"

// Function is a callable reference.
//
// An external reference crosses the contract boundary and is represented
// by two stack slots: the target address below, the 32-bit selector on
// top. In storage both collapse into a single 24-byte field,
// address*2^32 | selector. An internal reference stays within the program
// image and is a single 8-byte code offset.
type Function struct {
	// Signature is the canonical signature the selector is derived from,
	// e.g. "transfer(address,uint256)".
	Signature string
	// External reports whether the reference crosses the contract
	// boundary.
	External bool
}

const (
	externalFunctionStorageBytes = 24
	internalFunctionStorageBytes = 8
)

// Kind returns FunctionKind.
func (t *Function) Kind() Kind { return FunctionKind }

// SizeOnStack returns 2 for external references, 1 for internal ones.
func (t *Function) SizeOnStack() int {
	if t.External {
		return 2
	}
	return 1
}

// StorageBytes returns 24 for external references (20 address bytes and 4
// selector bytes), 8 for internal ones.
func (t *Function) StorageBytes() int {
	if t.External {
		return externalFunctionStorageBytes
	}
	return internalFunctionStorageBytes
}

// StorageSlots returns 1: both representations fit one word.
func (t *Function) StorageSlots() uint64 { return 1 }

// IsValueType returns true.
func (t *Function) IsValueType() bool { return true }

// LeftAligned returns false.
func (t *Function) LeftAligned() bool { return false }

// CalldataEncodedSize returns a full word when padded.
func (t *Function) CalldataEncodedSize(padded bool) int {
	if padded {
		return WordBytes
	}
	return t.StorageBytes()
}

// IsImplicitlyConvertibleTo allows only the same signature with the same
// visibility.
func (t *Function) IsImplicitlyConvertibleTo(other Type) bool {
	o, ok := other.(*Function)
	return ok && o.Signature == t.Signature && o.External == t.External
}

// Selector returns the 4-byte dispatch selector: the leading bytes of the
// keccak256 digest of the canonical signature.
func (t *Function) Selector() [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(t.Signature))
	var sel [4]byte
	copy(sel[:], h.Sum(nil))
	return sel
}

func (t *Function) String() string {
	visibility := "internal"
	if t.External {
		visibility = "external"
	}
	return "function " + t.Signature + " " + visibility
}
