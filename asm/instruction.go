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

import "fmt"

// Instruction is a single opcode of the target machine. The numeric value
// of the constant is the byte written into the assembled image.
type Instruction byte

// The instruction set of the target machine.
const (
	STOP       Instruction = 0x00
	ADD        Instruction = 0x01
	MUL        Instruction = 0x02
	SUB        Instruction = 0x03
	DIV        Instruction = 0x04
	SDIV       Instruction = 0x05
	MOD        Instruction = 0x06
	SMOD       Instruction = 0x07
	ADDMOD     Instruction = 0x08
	MULMOD     Instruction = 0x09
	EXP        Instruction = 0x0a
	SIGNEXTEND Instruction = 0x0b

	LT     Instruction = 0x10
	GT     Instruction = 0x11
	SLT    Instruction = 0x12
	SGT    Instruction = 0x13
	EQ     Instruction = 0x14
	ISZERO Instruction = 0x15
	AND    Instruction = 0x16
	OR     Instruction = 0x17
	XOR    Instruction = 0x18
	NOT    Instruction = 0x19
	BYTE   Instruction = 0x1a

	KECCAK256 Instruction = 0x20

	CALLDATALOAD Instruction = 0x35
	CALLDATASIZE Instruction = 0x36
	CODECOPY     Instruction = 0x39

	POP      Instruction = 0x50
	MLOAD    Instruction = 0x51
	MSTORE   Instruction = 0x52
	MSTORE8  Instruction = 0x53
	SLOAD    Instruction = 0x54
	SSTORE   Instruction = 0x55
	JUMP     Instruction = 0x56
	JUMPI    Instruction = 0x57
	JUMPDEST Instruction = 0x5b
	TLOAD    Instruction = 0x5c
	TSTORE   Instruction = 0x5d

	PUSH0  Instruction = 0x5f
	PUSH1  Instruction = 0x60
	PUSH2  Instruction = 0x61
	PUSH3  Instruction = 0x62
	PUSH4  Instruction = 0x63
	PUSH5  Instruction = 0x64
	PUSH6  Instruction = 0x65
	PUSH7  Instruction = 0x66
	PUSH8  Instruction = 0x67
	PUSH9  Instruction = 0x68
	PUSH10 Instruction = 0x69
	PUSH11 Instruction = 0x6a
	PUSH12 Instruction = 0x6b
	PUSH13 Instruction = 0x6c
	PUSH14 Instruction = 0x6d
	PUSH15 Instruction = 0x6e
	PUSH16 Instruction = 0x6f
	PUSH17 Instruction = 0x70
	PUSH18 Instruction = 0x71
	PUSH19 Instruction = 0x72
	PUSH20 Instruction = 0x73
	PUSH21 Instruction = 0x74
	PUSH22 Instruction = 0x75
	PUSH23 Instruction = 0x76
	PUSH24 Instruction = 0x77
	PUSH25 Instruction = 0x78
	PUSH26 Instruction = 0x79
	PUSH27 Instruction = 0x7a
	PUSH28 Instruction = 0x7b
	PUSH29 Instruction = 0x7c
	PUSH30 Instruction = 0x7d
	PUSH31 Instruction = 0x7e
	PUSH32 Instruction = 0x7f

	DUP1  Instruction = 0x80
	DUP2  Instruction = 0x81
	DUP3  Instruction = 0x82
	DUP4  Instruction = 0x83
	DUP5  Instruction = 0x84
	DUP6  Instruction = 0x85
	DUP7  Instruction = 0x86
	DUP8  Instruction = 0x87
	DUP9  Instruction = 0x88
	DUP10 Instruction = 0x89
	DUP11 Instruction = 0x8a
	DUP12 Instruction = 0x8b
	DUP13 Instruction = 0x8c
	DUP14 Instruction = 0x8d
	DUP15 Instruction = 0x8e
	DUP16 Instruction = 0x8f

	SWAP1  Instruction = 0x90
	SWAP2  Instruction = 0x91
	SWAP3  Instruction = 0x92
	SWAP4  Instruction = 0x93
	SWAP5  Instruction = 0x94
	SWAP6  Instruction = 0x95
	SWAP7  Instruction = 0x96
	SWAP8  Instruction = 0x97
	SWAP9  Instruction = 0x98
	SWAP10 Instruction = 0x99
	SWAP11 Instruction = 0x9a
	SWAP12 Instruction = 0x9b
	SWAP13 Instruction = 0x9c
	SWAP14 Instruction = 0x9d
	SWAP15 Instruction = 0x9e
	SWAP16 Instruction = 0x9f

	RETURN  Instruction = 0xf3
	REVERT  Instruction = 0xfd
	INVALID Instruction = 0xfe
)

type opInfo struct {
	name string
	args int // words popped from the stack
	rets int // words pushed onto the stack
}

var ops = buildOps()

func buildOps() [256]opInfo {
	var t [256]opInfo
	def := func(op Instruction, name string, args, rets int) {
		t[op] = opInfo{name: name, args: args, rets: rets}
	}

	def(STOP, "STOP", 0, 0)
	def(ADD, "ADD", 2, 1)
	def(MUL, "MUL", 2, 1)
	def(SUB, "SUB", 2, 1)
	def(DIV, "DIV", 2, 1)
	def(SDIV, "SDIV", 2, 1)
	def(MOD, "MOD", 2, 1)
	def(SMOD, "SMOD", 2, 1)
	def(ADDMOD, "ADDMOD", 3, 1)
	def(MULMOD, "MULMOD", 3, 1)
	def(EXP, "EXP", 2, 1)
	def(SIGNEXTEND, "SIGNEXTEND", 2, 1)

	def(LT, "LT", 2, 1)
	def(GT, "GT", 2, 1)
	def(SLT, "SLT", 2, 1)
	def(SGT, "SGT", 2, 1)
	def(EQ, "EQ", 2, 1)
	def(ISZERO, "ISZERO", 1, 1)
	def(AND, "AND", 2, 1)
	def(OR, "OR", 2, 1)
	def(XOR, "XOR", 2, 1)
	def(NOT, "NOT", 1, 1)
	def(BYTE, "BYTE", 2, 1)

	def(KECCAK256, "KECCAK256", 2, 1)

	def(CALLDATALOAD, "CALLDATALOAD", 1, 1)
	def(CALLDATASIZE, "CALLDATASIZE", 0, 1)
	def(CODECOPY, "CODECOPY", 3, 0)

	def(POP, "POP", 1, 0)
	def(MLOAD, "MLOAD", 1, 1)
	def(MSTORE, "MSTORE", 2, 0)
	def(MSTORE8, "MSTORE8", 2, 0)
	def(SLOAD, "SLOAD", 1, 1)
	def(SSTORE, "SSTORE", 2, 0)
	def(JUMP, "JUMP", 1, 0)
	def(JUMPI, "JUMPI", 2, 0)
	def(JUMPDEST, "JUMPDEST", 0, 0)
	def(TLOAD, "TLOAD", 1, 1)
	def(TSTORE, "TSTORE", 2, 0)

	def(PUSH0, "PUSH0", 0, 1)
	for n := 1; n <= 32; n++ {
		def(PUSH0+Instruction(n), fmt.Sprintf("PUSH%d", n), 0, 1)
	}
	for n := 1; n <= 16; n++ {
		def(DUP1+Instruction(n-1), fmt.Sprintf("DUP%d", n), n, n+1)
		def(SWAP1+Instruction(n-1), fmt.Sprintf("SWAP%d", n), n+1, n+1)
	}

	def(RETURN, "RETURN", 2, 0)
	def(REVERT, "REVERT", 2, 0)
	def(INVALID, "INVALID", 0, 0)
	return t
}

// Valid reports whether the byte is an opcode of the target machine.
func (i Instruction) Valid() bool {
	return ops[i].name != ""
}

func (i Instruction) String() string {
	if !i.Valid() {
		return fmt.Sprintf("opcode(%#02x)", byte(i))
	}
	return ops[i].name
}

// StackArgs returns the number of words the instruction pops.
func (i Instruction) StackArgs() int {
	return ops[i].args
}

// StackRets returns the number of words the instruction pushes.
func (i Instruction) StackRets() int {
	return ops[i].rets
}

// StackDelta returns the net change in stack height caused by the
// instruction.
func (i Instruction) StackDelta() int {
	return ops[i].rets - ops[i].args
}

// IsPush reports whether the instruction is PUSH0 through PUSH32.
func (i Instruction) IsPush() bool {
	return i >= PUSH0 && i <= PUSH32
}

// PushSize returns the number of immediate bytes following a push
// instruction, from 0 for PUSH0 up to 32 for PUSH32.
func (i Instruction) PushSize() int {
	if !i.IsPush() {
		return 0
	}
	return int(i - PUSH0)
}

// PushN returns the push instruction with n immediate bytes.
// It panics if n is outside [0, 32].
func PushN(n int) Instruction {
	if n < 0 || n > 32 {
		panic(fmt.Sprintf("asm: no push instruction with %d immediate bytes", n))
	}
	return PUSH0 + Instruction(n)
}

// DupN returns the instruction duplicating the n-th stack word, where
// DUP1 duplicates the top. It panics if n is outside [1, 16].
func DupN(n int) Instruction {
	if n < 1 || n > 16 {
		panic(fmt.Sprintf("asm: no dup instruction for depth %d", n))
	}
	return DUP1 + Instruction(n-1)
}

// SwapN returns the instruction exchanging the top with the word n
// positions below it. It panics if n is outside [1, 16].
func SwapN(n int) Instruction {
	if n < 1 || n > 16 {
		panic(fmt.Sprintf("asm: no swap instruction for depth %d", n))
	}
	return SWAP1 + Instruction(n-1)
}
