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

package contract

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/types"
)

// ImmutableScratchBase is the memory address of the first immutable's
// scratch word during constructor execution. The words below it are
// reserved for the allocator state.
const ImmutableScratchBase = 128

type (
	// Placement is where a storage-backed state variable lives: the
	// slot index and the byte offset of the value within the slot's
	// word.
	Placement struct {
		Slot   uint64
		Offset int
	}

	// Immutable is the placement of an immutable state variable: a
	// scratch word while the constructor runs, and a named placeholder
	// in the runtime image that the linker substitutes.
	Immutable struct {
		Variable     *Variable
		MemoryOffset uint64
		Placeholder  string
	}

	// Layout fixes the placement of every state variable of one
	// contract. Persistent and transient variables pack with the same
	// rule as struct members, each in its own slot space.
	Layout struct {
		def *Definition

		storage        map[string]Placement
		transient      map[string]Placement
		immutables     []Immutable
		immutableIndex map[string]int

		storageSlots   uint64
		transientSlots uint64
	}

	// packer runs the word-packing walk for one slot space.
	packer struct {
		slot    uint64
		byteOff int
	}
)

func (p *packer) place(t types.Type) Placement {
	if t.IsValueType() && t.StorageBytes() < types.WordBytes {
		if p.byteOff+t.StorageBytes() > types.WordBytes {
			p.slot++
			p.byteOff = 0
		}
		placed := Placement{Slot: p.slot, Offset: p.byteOff}
		p.byteOff += t.StorageBytes()
		if p.byteOff == types.WordBytes {
			p.slot++
			p.byteOff = 0
		}
		return placed
	}
	if p.byteOff > 0 {
		p.slot++
		p.byteOff = 0
	}
	placed := Placement{Slot: p.slot}
	p.slot += t.StorageSlots()
	return placed
}

func (p *packer) slots() uint64 {
	if p.byteOff > 0 {
		return p.slot + 1
	}
	return p.slot
}

// NewLayout places every state variable of the definition and reports
// all invalid declarations, not only the first.
func NewLayout(def *Definition) (*Layout, error) {
	l := &Layout{
		def:            def,
		storage:        make(map[string]Placement),
		transient:      make(map[string]Placement),
		immutableIndex: make(map[string]int),
	}
	var errs error
	var persistent, transient packer
	seen := make(map[string]bool, len(def.Variables))
	for _, v := range def.Variables {
		switch {
		case v.Name == "":
			errs = multierr.Append(errs, comperr.Positioned(v.Loc, comperr.Internalf("state variable of %s has no name", def.Name)))
			continue
		case v.Type == nil:
			errs = multierr.Append(errs, comperr.Positioned(v.Loc, comperr.Internalf("state variable %s has no type", v.Name)))
			continue
		case seen[v.Name]:
			errs = multierr.Append(errs, comperr.Positioned(v.Loc, errors.Errorf("state variable %s declared twice", v.Name)))
			continue
		}
		seen[v.Name] = true

		switch v.Location {
		case LocationDefault, LocationStorage:
			l.storage[v.Name] = persistent.place(v.Type)
		case LocationTransient:
			l.transient[v.Name] = transient.place(v.Type)
		case LocationImmutable:
			if !v.Type.IsValueType() {
				errs = multierr.Append(errs, comperr.Positioned(v.Loc, comperr.Unsupportedf("immutable %s has reference type %s, only value types can be immutable", v.Name, v.Type)))
				continue
			}
			if v.Type.SizeOnStack() != 1 {
				errs = multierr.Append(errs, comperr.Positioned(v.Loc, comperr.Unsupportedf("immutable %s of type %s occupies %d stack slots", v.Name, v.Type, v.Type.SizeOnStack())))
				continue
			}
			l.immutableIndex[v.Name] = len(l.immutables)
			l.immutables = append(l.immutables, Immutable{
				Variable:     v,
				MemoryOffset: ImmutableScratchBase + uint64(len(l.immutables))*types.WordBytes,
				Placeholder:  v.Name,
			})
		case LocationMemory:
			errs = multierr.Append(errs, comperr.Positioned(v.Loc, errors.Errorf("state variable %s cannot live in memory", v.Name)))
		default:
			errs = multierr.Append(errs, comperr.Positioned(v.Loc, comperr.Internalf("state variable %s has unknown location %d", v.Name, v.Location)))
		}
	}
	if errs != nil {
		return nil, errs
	}
	l.storageSlots = persistent.slots()
	l.transientSlots = transient.slots()
	return l, nil
}

// Contract returns the definition the layout was computed for.
func (l *Layout) Contract() *Definition { return l.def }

// StorageSlots returns the number of persistent slots the contract
// occupies, counting a partially filled trailing word as one.
func (l *Layout) StorageSlots() uint64 { return l.storageSlots }

// TransientSlots is StorageSlots for the transient slot space.
func (l *Layout) TransientSlots() uint64 { return l.transientSlots }

// StorageOf returns the placement of a persistent state variable.
func (l *Layout) StorageOf(name string) (Placement, bool) {
	p, ok := l.storage[name]
	return p, ok
}

// TransientOf returns the placement of a transient state variable.
func (l *Layout) TransientOf(name string) (Placement, bool) {
	p, ok := l.transient[name]
	return p, ok
}

// ImmutableOf returns the placement of an immutable state variable.
func (l *Layout) ImmutableOf(name string) (Immutable, bool) {
	i, ok := l.immutableIndex[name]
	if !ok {
		return Immutable{}, false
	}
	return l.immutables[i], true
}

// Immutables returns the immutable placements in declaration order.
func (l *Layout) Immutables() []Immutable {
	out := make([]Immutable, len(l.immutables))
	copy(out, l.immutables)
	return out
}

// Description renders the layout canonically: the contract name followed
// by one line per state variable in declaration order. Two contracts
// that differ in any name, type or placement have different
// descriptions. The metadata fingerprint hashes this.
func (l *Layout) Description() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "contract %s\n", l.def.Name)
	for _, v := range l.def.Variables {
		switch v.Location {
		case LocationDefault, LocationStorage:
			p := l.storage[v.Name]
			fmt.Fprintf(&b, "storage %s %s %d %d\n", v.Name, v.Type, p.Slot, p.Offset)
		case LocationTransient:
			p := l.transient[v.Name]
			fmt.Fprintf(&b, "transient %s %s %d %d\n", v.Name, v.Type, p.Slot, p.Offset)
		case LocationImmutable:
			imm := l.immutables[l.immutableIndex[v.Name]]
			fmt.Fprintf(&b, "immutable %s %s %d\n", v.Name, v.Type, imm.MemoryOffset)
		}
	}
	return b.Bytes()
}
