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

// Package metadata produces the fingerprint a compiled contract carries
// in the auxiliary data of its runtime image.
//
// The fingerprint ties a deployed image back to the compiler version and
// to a digest of the contract it was compiled from. It sits behind the
// executable code, is never reachable by execution, and ends with its own
// length so tools can strip it from the back of an image without
// disassembling.
package metadata

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
	"golang.org/x/mod/semver"
)

// Version of the compiler, embedded into every fingerprint.
const Version = "v0.4.0"

// magic starts every fingerprint payload.
var magic = []byte("sigil")

// DigestSize is the size of the contract digest inside a fingerprint.
const DigestSize = 32

// Info is the decoded content of a fingerprint.
type Info struct {
	// Version of the compiler that produced the image.
	Version string

	// Digest of the canonical description of the compiled contract.
	Digest [DigestSize]byte
}

// Digest hashes the canonical description of a contract.
func Digest(description []byte) [DigestSize]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(description)
	var d [DigestSize]byte
	h.Sum(d[:0])
	return d
}

// Fingerprint encodes a trailer for the given compiler version and
// contract description. The version must be a valid semantic version.
func Fingerprint(version string, description []byte) ([]byte, error) {
	if !semver.IsValid(version) {
		return nil, errors.Errorf("compiler version %q is not a semantic version", version)
	}
	digest := Digest(description)

	var payload bytes.Buffer
	payload.Write(magic)
	payload.WriteByte(0)
	payload.WriteString(version)
	payload.WriteByte(0)
	payload.Write(digest[:])

	out := payload.Bytes()
	return binary.BigEndian.AppendUint16(out, uint16(len(out))), nil
}

// Extract splits an image into executable code and the decoded
// fingerprint appended behind it.
func Extract(image []byte) (code []byte, info Info, err error) {
	if len(image) < 2 {
		return nil, Info{}, errors.New("image too short to carry a fingerprint")
	}
	payloadLen := int(binary.BigEndian.Uint16(image[len(image)-2:]))
	end := len(image) - 2
	if payloadLen > end {
		return nil, Info{}, errors.Errorf("fingerprint claims %d bytes, image has %d before the length", payloadLen, end)
	}
	payload := image[end-payloadLen : end]
	code = image[:end-payloadLen]

	rest, ok := bytes.CutPrefix(payload, magic)
	if !ok || len(rest) == 0 || rest[0] != 0 {
		return nil, Info{}, errors.New("image carries no sigil fingerprint")
	}
	version, digest, ok := bytes.Cut(rest[1:], []byte{0})
	if !ok || len(digest) != DigestSize {
		return nil, Info{}, errors.New("malformed sigil fingerprint")
	}
	info.Version = string(version)
	copy(info.Digest[:], digest)
	if !semver.IsValid(info.Version) {
		return nil, Info{}, errors.Errorf("fingerprint carries invalid version %q", info.Version)
	}
	return code, info, nil
}
