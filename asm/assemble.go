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

package asm

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/sigil-lang/sigil/comperr"
)

// Tag and sub-assembly references are encoded as PUSH2, so no referenced
// offset may exceed two bytes.
const maxImageSize = 1 << 16

// LinkOptions carries the values that are only known when an assembly is
// turned into a byte image.
type LinkOptions struct {
	// Immutables provides the word substituted for each named
	// immutable referenced by the assembly or any of its subs.
	Immutables map[string]*uint256.Int
}

// Program is the result of assembling: the byte image together with the
// resolved positions of its parts.
type Program struct {
	// Bytecode is the complete image: code, sub-assembly images, then
	// auxiliary data.
	Bytecode []byte

	// TagOffsets maps each placed tag to the offset of its JUMPDEST.
	TagOffsets map[Tag]int

	// SubOffsets holds the offset at which each sub-assembly's image
	// starts, in the order the subs were attached.
	SubOffsets []int

	// AuxOffset is the offset at which the auxiliary data starts. It
	// equals len(Bytecode) when there is none.
	AuxOffset int
}

func itemSize(it Item) int {
	switch it.Kind {
	case Operation, TagDef:
		return 1
	case Push:
		return 1 + (it.Value.BitLen()+7)/8
	case PushTag, PushSubOffset, PushSubSize:
		return 1 + 2
	case PushImmutable:
		return 1 + 32
	}
	return 0
}

// Assemble resolves tags, sub-assembly positions and immutable values
// and returns the byte image. Sub-assemblies are assembled recursively
// with the same options; their images follow the code, and auxiliary
// data comes last. All unresolved references are reported, not only the
// first.
func (a *Assembly) Assemble(opts LinkOptions) (*Program, error) {
	if a.err != nil {
		return nil, a.err
	}
	var errs error

	subImages := make([][]byte, len(a.subs))
	for i, sub := range a.subs {
		p, err := sub.Assemble(opts)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "sub %d (%s)", i, sub.name))
			continue
		}
		subImages[i] = p.Bytecode
	}

	offset := 0
	tagOffsets := make(map[Tag]int)
	for _, it := range a.items {
		if it.Kind == TagDef {
			tagOffsets[it.Tag] = offset
		}
		offset += itemSize(it)
	}
	subOffsets := make([]int, len(a.subs))
	for i := range a.subs {
		subOffsets[i] = offset
		offset += len(subImages[i])
	}
	auxOffset := offset
	if total := auxOffset + len(a.aux); total > maxImageSize {
		errs = multierr.Append(errs, errors.Errorf("image of %s is %d bytes, the reference encoding carries at most %d", a.name, total, maxImageSize))
	}

	out := make([]byte, 0, auxOffset+len(a.aux))
	ref := func(off int) {
		out = append(out, byte(PUSH2), byte(off>>8), byte(off))
	}
	for _, it := range a.items {
		switch it.Kind {
		case Operation:
			out = append(out, byte(it.Op))
		case Push:
			n := (it.Value.BitLen() + 7) / 8
			out = append(out, byte(PushN(n)))
			if n > 0 {
				word := it.Value.Bytes32()
				out = append(out, word[32-n:]...)
			}
		case PushTag:
			off, ok := tagOffsets[it.Tag]
			if !ok {
				errs = multierr.Append(errs, comperr.Internalf("%s referenced but never placed in %s", it.Tag, a.name))
			}
			ref(off)
		case TagDef:
			out = append(out, byte(JUMPDEST))
		case PushImmutable:
			word := [32]byte{}
			if v, ok := opts.Immutables[it.Name]; ok {
				word = v.Bytes32()
			} else {
				errs = multierr.Append(errs, errors.Errorf("immutable %q has no value at link time", it.Name))
			}
			out = append(out, byte(PUSH32))
			out = append(out, word[:]...)
		case PushSubOffset:
			ref(subOffsets[it.Sub])
		case PushSubSize:
			ref(len(subImages[it.Sub]))
		default:
			errs = multierr.Append(errs, comperr.Internalf("unknown item kind %d in %s", it.Kind, a.name))
		}
	}
	if errs != nil {
		return nil, errs
	}
	for _, img := range subImages {
		out = append(out, img...)
	}
	out = append(out, a.aux...)

	return &Program{
		Bytecode:   out,
		TagOffsets: tagOffsets,
		SubOffsets: subOffsets,
		AuxOffset:  auxOffset,
	}, nil
}
