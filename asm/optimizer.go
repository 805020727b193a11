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

const defaultOptimizeRounds = 10

// OptimizeOptions configures Optimize.
type OptimizeOptions struct {
	// Enabled turns the optimizer on. When false, Optimize does
	// nothing.
	Enabled bool

	// MaxRounds bounds the number of passes over the items. Zero
	// selects a default.
	MaxRounds int
}

// Optimize rewrites the item sequence with a conservative peephole pass
// and recurses into sub-assemblies. Only adjacent items are considered,
// and every rewrite preserves both the machine state and the stack
// deposit, so tags and the tracked height stay valid. It returns the
// number of items removed.
//
// The rules are deliberately small: a push or dup cancelled by an
// immediately following POP is dropped, paired identical swaps are
// dropped, a double NOT is dropped, and a triple ISZERO collapses into
// one.
func (a *Assembly) Optimize(opts OptimizeOptions) int {
	if !opts.Enabled || a.err != nil {
		return 0
	}
	rounds := opts.MaxRounds
	if rounds <= 0 {
		rounds = defaultOptimizeRounds
	}
	removed := 0
	for r := 0; r < rounds; r++ {
		n := a.peepholeRound()
		if n == 0 {
			break
		}
		removed += n
	}
	for _, sub := range a.subs {
		removed += sub.Optimize(opts)
	}
	return removed
}

func (a *Assembly) peepholeRound() int {
	out := make([]Item, 0, len(a.items))
	removed := 0
	for i := 0; i < len(a.items); {
		if i+2 < len(a.items) &&
			isOp(a.items[i], ISZERO) && isOp(a.items[i+1], ISZERO) && isOp(a.items[i+2], ISZERO) {
			out = append(out, a.items[i])
			i += 3
			removed += 2
			continue
		}
		if i+1 < len(a.items) {
			next := a.items[i+1]
			cur := a.items[i]
			switch {
			case (pushesValue(cur) || isDup(cur)) && isOp(next, POP),
				isSwap(cur) && next.Kind == Operation && next.Op == cur.Op,
				isOp(cur, NOT) && isOp(next, NOT):
				i += 2
				removed += 2
				continue
			}
		}
		out = append(out, a.items[i])
		i++
	}
	a.items = out
	return removed
}

func isOp(it Item, op Instruction) bool {
	return it.Kind == Operation && it.Op == op
}

func isDup(it Item) bool {
	return it.Kind == Operation && it.Op >= DUP1 && it.Op <= DUP16
}

func isSwap(it Item) bool {
	return it.Kind == Operation && it.Op >= SWAP1 && it.Op <= SWAP16
}

func pushesValue(it Item) bool {
	switch it.Kind {
	case Push, PushTag, PushImmutable, PushSubOffset, PushSubSize:
		return true
	}
	return false
}
