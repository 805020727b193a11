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

// Package contract describes the unit the code generator compiles: a
// contract definition with its state variables, and the layout that
// assigns each variable a place in storage, transient storage, or the
// constructor's scratch memory.
package contract

import (
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// VarLocation is the declared data location of a state variable.
type VarLocation uint8

const (
	// LocationDefault leaves the placement to the compiler. State
	// variables default to persistent storage.
	LocationDefault VarLocation = iota

	// LocationStorage pins the variable to persistent storage.
	LocationStorage

	// LocationTransient places the variable in transient storage,
	// cleared at the end of every transaction.
	LocationTransient

	// LocationImmutable makes the variable assignable only during
	// construction; its value is baked into the runtime image.
	LocationImmutable

	// LocationMemory is valid for locals and parameters only. A state
	// variable declared in memory is rejected by the layout.
	LocationMemory
)

func (l VarLocation) String() string {
	switch l {
	case LocationDefault:
		return "default"
	case LocationStorage:
		return "storage"
	case LocationTransient:
		return "transient"
	case LocationImmutable:
		return "immutable"
	case LocationMemory:
		return "memory"
	}
	return "location(invalid)"
}

type (
	// Variable is one declared state variable.
	Variable struct {
		Name     string
		Type     types.Type
		Location VarLocation

		// Loc is the declaration site, carried into diagnostics.
		Loc source.Location
	}

	// Definition is a contract as handed over by the front end:
	// a name and state variables in declaration order. Function bodies
	// are not part of the definition; they reach the compiler as a
	// code generator callback.
	Definition struct {
		Name string
		Loc  source.Location

		Variables []*Variable
	}
)

// VariableNamed returns the state variable with the given name.
func (d *Definition) VariableNamed(name string) (*Variable, bool) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}
