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

// Package comperr defines the error taxonomy of the code generator.
//
// Three kinds of failure unwind out of a contract compilation:
//
//   - ErrStackTooDeep: a value moved outside the reachable window of the
//     machine's DUP/SWAP instructions. A user-facing error with a source
//     location and a remediation hint.
//   - ErrUnsupported: a legitimate program hit a combination the compiler
//     does not implement yet. A compiler limitation, not a user error.
//   - ErrInternal: a broken invariant between compiler phases. Always a
//     compiler bug.
//
// There is no partial output: any of the three aborts the whole contract.
package comperr

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sigil-lang/sigil/source"
)

// Sentinels matchable with errors.Is through any amount of wrapping.
var (
	ErrStackTooDeep = errors.New("stack too deep")
	ErrUnsupported  = errors.New("unimplemented feature")
	ErrInternal     = errors.New("internal invariant violated")
)

// StackTooDeepHint tells the user what to try when a value becomes
// unreachable. Kept in one place so every report suggests the same fix.
const StackTooDeepHint = "try removing local variables or compiling through the IR pipeline"

// ErrorWithLocation is an error attached to a span of contract source.
type ErrorWithLocation interface {
	error
	Location() source.Location
}

type errorWithLocation struct {
	loc source.Location
	err error
}

// Positioned attaches a source location to an error.
func Positioned(loc source.Location, err error) error {
	if err == nil {
		return nil
	}
	return &errorWithLocation{loc: loc, err: err}
}

// Error returns the location-prefixed description.
func (e *errorWithLocation) Error() string {
	return e.loc.String() + ": " + e.err.Error()
}

// Unwrap returns the underlying error.
func (e *errorWithLocation) Unwrap() error {
	return e.err
}

// Location returns the span the error points at.
func (e *errorWithLocation) Location() source.Location {
	return e.loc
}

// Format keeps the %+v stack trace of the cause available.
func (e *errorWithLocation) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.loc, e.err)
		return
	}
	fmt.Fprintf(s, fmt.Sprintf("%%%c", verb), e.Error())
}

// StackTooDeep reports slot unreachable within the DUP/SWAP window.
// The distance is how many slots down the target sits; window is the
// machine's reach (16).
func StackTooDeep(loc source.Location, distance, window int) error {
	return Positioned(loc, errors.WithStack(fmt.Errorf(
		"%w: value is %d slots below the top but only %d are reachable; %s",
		ErrStackTooDeep, distance, window, StackTooDeepHint,
	)))
}

// Unsupportedf reports a feature the compiler does not implement yet.
func Unsupportedf(format string, a ...any) error {
	return errors.WithStack(fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, a...)))
}

// Internalf reports a violated compiler invariant.
func Internalf(format string, a ...any) error {
	return errors.WithStack(fmt.Errorf(
		"%w: %s (this is a bug in the sigil compiler, please report it)",
		ErrInternal, fmt.Sprintf(format, a...),
	))
}
