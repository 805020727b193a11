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

// Package vm is a reference evaluator for assembled images, used by the
// compiler's own tests to execute emitted code against real machine
// semantics. It models the stack, memory, persistent and transient
// storage and call input. It does not meter gas.
package vm

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/sigil-lang/sigil/asm"
)

// Word is the storage key and value width.
const Word = 32

// defaultMaxSteps bounds one execution so a looping program fails the
// test instead of hanging it.
const defaultMaxSteps = 1 << 20

// memoryCap bounds addressable memory. Programs under test touch a few
// hundred bytes; anything larger is a miscomputed offset.
const memoryCap = 1 << 24

type (
	// State is the machine state an execution reads and mutates. The
	// stack may be preloaded and is left as the program ends.
	State struct {
		Stack     []uint256.Int
		Memory    []byte
		Storage   map[[Word]byte][Word]byte
		Transient map[[Word]byte][Word]byte
		Calldata  []byte
	}

	// Result describes a halted execution.
	Result struct {
		// ReturnData is what a RETURN or REVERT handed back.
		ReturnData []byte

		// Reverted is true when the program ended in REVERT.
		Reverted bool

		// Steps is the number of instructions executed.
		Steps int
	}

	machine struct {
		code  []byte
		dests []bool
		state *State
		pc    int
	}
)

// NewState returns a State with empty storage maps.
func NewState() *State {
	return &State{
		Storage:   make(map[[Word]byte][Word]byte),
		Transient: make(map[[Word]byte][Word]byte),
	}
}

// Key is the storage key of a small slot index.
func Key(slot uint64) [Word]byte {
	return uint256.NewInt(slot).Bytes32()
}

// SetStorage writes a word to a small persistent slot.
func (s *State) SetStorage(slot uint64, v *uint256.Int) {
	s.Storage[Key(slot)] = v.Bytes32()
}

// StorageAt reads a word from a small persistent slot.
func (s *State) StorageAt(slot uint64) *uint256.Int {
	w := s.Storage[Key(slot)]
	return new(uint256.Int).SetBytes(w[:])
}

// SetTransient writes a word to a small transient slot.
func (s *State) SetTransient(slot uint64, v *uint256.Int) {
	s.Transient[Key(slot)] = v.Bytes32()
}

// TransientAt reads a word from a small transient slot.
func (s *State) TransientAt(slot uint64) *uint256.Int {
	w := s.Transient[Key(slot)]
	return new(uint256.Int).SetBytes(w[:])
}

// Top returns the n-th word from the top of the stack, 0 being the top.
func (s *State) Top(n int) *uint256.Int {
	return &s.Stack[len(s.Stack)-1-n]
}

// Execute runs an image over the state until it halts. A STOP, a RETURN,
// a REVERT or running off the end of the code halts normally; everything
// else is an error.
func Execute(code []byte, state *State) (*Result, error) {
	if state.Storage == nil {
		state.Storage = make(map[[Word]byte][Word]byte)
	}
	if state.Transient == nil {
		state.Transient = make(map[[Word]byte][Word]byte)
	}
	m := &machine{code: code, dests: validDests(code), state: state}
	return m.run()
}

// validDests marks the offsets that hold a JUMPDEST opcode outside of
// push immediates.
func validDests(code []byte) []bool {
	dests := make([]bool, len(code))
	for i := 0; i < len(code); {
		op := asm.Instruction(code[i])
		if op == asm.JUMPDEST {
			dests[i] = true
		}
		i += 1 + op.PushSize()
	}
	return dests
}

func (m *machine) errorf(format string, a ...any) error {
	return errors.Errorf("pc %d: "+format, append([]any{m.pc}, a...)...)
}

func (m *machine) push(v *uint256.Int) {
	m.state.Stack = append(m.state.Stack, *v)
}

func (m *machine) pop() (*uint256.Int, error) {
	st := m.state
	if len(st.Stack) == 0 {
		return nil, m.errorf("stack underflow")
	}
	v := st.Stack[len(st.Stack)-1]
	st.Stack = st.Stack[:len(st.Stack)-1]
	return &v, nil
}

func (m *machine) pop2() (*uint256.Int, *uint256.Int, error) {
	a, err := m.pop()
	if err != nil {
		return nil, nil, err
	}
	b, err := m.pop()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// offset narrows a word to a memory offset.
func (m *machine) offset(v *uint256.Int) (int, error) {
	if !v.IsUint64() || v.Uint64() > memoryCap {
		return 0, m.errorf("memory offset %s out of range", v)
	}
	return int(v.Uint64()), nil
}

func (m *machine) ensureMemory(end int) {
	if end > len(m.state.Memory) {
		m.state.Memory = append(m.state.Memory, make([]byte, end-len(m.state.Memory))...)
	}
}

func (m *machine) run() (*Result, error) {
	res := &Result{}
	for m.pc < len(m.code) {
		res.Steps++
		if res.Steps > defaultMaxSteps {
			return nil, m.errorf("step budget exhausted")
		}
		op := asm.Instruction(m.code[m.pc])
		switch {
		case op.IsPush():
			n := op.PushSize()
			if m.pc+1+n > len(m.code) {
				return nil, m.errorf("push immediate runs past the code end")
			}
			m.push(new(uint256.Int).SetBytes(m.code[m.pc+1 : m.pc+1+n]))
			m.pc += 1 + n
			continue
		case op >= asm.DUP1 && op <= asm.DUP16:
			n := int(op-asm.DUP1) + 1
			if len(m.state.Stack) < n {
				return nil, m.errorf("%s on a stack of %d", op, len(m.state.Stack))
			}
			v := *m.state.Top(n - 1)
			m.push(&v)
			m.pc++
			continue
		case op >= asm.SWAP1 && op <= asm.SWAP16:
			n := int(op-asm.SWAP1) + 1
			if len(m.state.Stack) < n+1 {
				return nil, m.errorf("%s on a stack of %d", op, len(m.state.Stack))
			}
			top, deep := m.state.Top(0), m.state.Top(n)
			*top, *deep = *deep, *top
			m.pc++
			continue
		}

		halt, err := m.step(op, res)
		if err != nil {
			return nil, err
		}
		if halt {
			return res, nil
		}
	}
	return res, nil
}

// step executes one non-push, non-dup, non-swap instruction and advances
// the program counter.
func (m *machine) step(op asm.Instruction, res *Result) (halt bool, err error) {
	st := m.state
	switch op {
	case asm.STOP:
		return true, nil

	case asm.ADD, asm.MUL, asm.SUB, asm.DIV, asm.SDIV, asm.MOD, asm.SMOD, asm.EXP, asm.SIGNEXTEND,
		asm.AND, asm.OR, asm.XOR, asm.BYTE:
		a, b, err := m.pop2()
		if err != nil {
			return false, err
		}
		out := new(uint256.Int)
		switch op {
		case asm.ADD:
			out.Add(a, b)
		case asm.MUL:
			out.Mul(a, b)
		case asm.SUB:
			out.Sub(a, b)
		case asm.DIV:
			out.Div(a, b)
		case asm.SDIV:
			out.SDiv(a, b)
		case asm.MOD:
			out.Mod(a, b)
		case asm.SMOD:
			out.SMod(a, b)
		case asm.EXP:
			out.Exp(a, b)
		case asm.SIGNEXTEND:
			out.ExtendSign(b, a)
		case asm.AND:
			out.And(a, b)
		case asm.OR:
			out.Or(a, b)
		case asm.XOR:
			out.Xor(a, b)
		case asm.BYTE:
			out.Set(b)
			out.Byte(a)
		}
		m.push(out)

	case asm.ADDMOD, asm.MULMOD:
		a, b, err := m.pop2()
		if err != nil {
			return false, err
		}
		n, err := m.pop()
		if err != nil {
			return false, err
		}
		out := new(uint256.Int)
		if op == asm.ADDMOD {
			out.AddMod(a, b, n)
		} else {
			out.MulMod(a, b, n)
		}
		m.push(out)

	case asm.LT, asm.GT, asm.SLT, asm.SGT, asm.EQ:
		a, b, err := m.pop2()
		if err != nil {
			return false, err
		}
		var truth bool
		switch op {
		case asm.LT:
			truth = a.Lt(b)
		case asm.GT:
			truth = a.Gt(b)
		case asm.SLT:
			truth = a.Slt(b)
		case asm.SGT:
			truth = a.Sgt(b)
		case asm.EQ:
			truth = a.Eq(b)
		}
		m.push(boolWord(truth))

	case asm.ISZERO:
		a, err := m.pop()
		if err != nil {
			return false, err
		}
		m.push(boolWord(a.IsZero()))

	case asm.NOT:
		a, err := m.pop()
		if err != nil {
			return false, err
		}
		m.push(new(uint256.Int).Not(a))

	case asm.KECCAK256:
		off, size, err := m.memRange()
		if err != nil {
			return false, err
		}
		h := sha3.NewLegacyKeccak256()
		h.Write(st.Memory[off : off+size])
		m.push(new(uint256.Int).SetBytes(h.Sum(nil)))

	case asm.CALLDATALOAD:
		a, err := m.pop()
		if err != nil {
			return false, err
		}
		var word [Word]byte
		if a.IsUint64() && a.Uint64() < uint64(len(st.Calldata)) {
			copy(word[:], st.Calldata[a.Uint64():])
		}
		m.push(new(uint256.Int).SetBytes(word[:]))

	case asm.CALLDATASIZE:
		m.push(uint256.NewInt(uint64(len(st.Calldata))))

	case asm.CODECOPY:
		dest, err1 := m.pop()
		src, err2 := m.pop()
		size, err3 := m.pop()
		if err := firstErr(err1, err2, err3); err != nil {
			return false, err
		}
		d, err := m.offset(dest)
		if err != nil {
			return false, err
		}
		n, err := m.offset(size)
		if err != nil {
			return false, err
		}
		s, err := m.offset(src)
		if err != nil {
			return false, err
		}
		m.ensureMemory(d + n)
		for i := 0; i < n; i++ {
			var c byte
			if s+i < len(m.code) {
				c = m.code[s+i]
			}
			st.Memory[d+i] = c
		}

	case asm.POP:
		if _, err := m.pop(); err != nil {
			return false, err
		}

	case asm.MLOAD:
		a, err := m.pop()
		if err != nil {
			return false, err
		}
		off, err := m.offset(a)
		if err != nil {
			return false, err
		}
		m.ensureMemory(off + Word)
		m.push(new(uint256.Int).SetBytes(st.Memory[off : off+Word]))

	case asm.MSTORE, asm.MSTORE8:
		addr, value, err := m.pop2()
		if err != nil {
			return false, err
		}
		off, err := m.offset(addr)
		if err != nil {
			return false, err
		}
		if op == asm.MSTORE {
			m.ensureMemory(off + Word)
			word := value.Bytes32()
			copy(st.Memory[off:], word[:])
		} else {
			m.ensureMemory(off + 1)
			st.Memory[off] = byte(value.Uint64())
		}

	case asm.SLOAD, asm.TLOAD:
		a, err := m.pop()
		if err != nil {
			return false, err
		}
		space := st.Storage
		if op == asm.TLOAD {
			space = st.Transient
		}
		w := space[a.Bytes32()]
		m.push(new(uint256.Int).SetBytes(w[:]))

	case asm.SSTORE, asm.TSTORE:
		key, value, err := m.pop2()
		if err != nil {
			return false, err
		}
		space := st.Storage
		if op == asm.TSTORE {
			space = st.Transient
		}
		space[key.Bytes32()] = value.Bytes32()

	case asm.JUMP, asm.JUMPI:
		dest, err := m.pop()
		if err != nil {
			return false, err
		}
		taken := true
		if op == asm.JUMPI {
			cond, err := m.pop()
			if err != nil {
				return false, err
			}
			taken = !cond.IsZero()
		}
		if taken {
			if !dest.IsUint64() || dest.Uint64() >= uint64(len(m.dests)) || !m.dests[dest.Uint64()] {
				return false, m.errorf("jump to %s is not a JUMPDEST", dest)
			}
			m.pc = int(dest.Uint64())
			return false, nil
		}

	case asm.JUMPDEST:
		// No effect.

	case asm.RETURN, asm.REVERT:
		off, size, err := m.memRange()
		if err != nil {
			return false, err
		}
		res.ReturnData = append([]byte(nil), st.Memory[off:off+size]...)
		res.Reverted = op == asm.REVERT
		return true, nil

	case asm.INVALID:
		return false, m.errorf("invalid instruction executed")

	default:
		return false, m.errorf("unhandled opcode %s", op)
	}
	m.pc++
	return false, nil
}

// memRange pops an offset and a size and grows memory to cover them.
func (m *machine) memRange() (off, size int, err error) {
	a, b, err := m.pop2()
	if err != nil {
		return 0, 0, err
	}
	if off, err = m.offset(a); err != nil {
		return 0, 0, err
	}
	if size, err = m.offset(b); err != nil {
		return 0, 0, err
	}
	m.ensureMemory(off + size)
	return off, size, nil
}

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return uint256.NewInt(0)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
