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

// Package source defines source locations threaded through the backend.
//
// The frontend owns files and positions; the code generator only carries
// spans along so that user-facing errors can point back at the code that
// triggered them.
package source

import "fmt"

// Location is a byte span within a named source unit.
// The zero value means "no location known".
type Location struct {
	File  string
	Start int
	End   int
}

// Locate returns a location covering [start, end) in file.
func Locate(file string, start, end int) Location {
	return Location{File: file, Start: start, End: end}
}

// Valid reports whether the location refers to an actual span.
func (l Location) Valid() bool {
	return l.File != "" || l.End > l.Start
}

// String renders the location as file:start-end.
func (l Location) String() string {
	if !l.Valid() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d-%d", l.File, l.Start, l.End)
}
