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

// Package codegen emits stack-machine code that reads, writes and zeroes
// typed values wherever they live: on the evaluation stack, in memory,
// packed into a storage word, or baked into the program image as an
// immutable.
//
// A Context wraps one asm.Assembly and tracks everything the emitters
// need between instructions: the stack height, the base offsets of
// declared variables, the contract's state layout, and the registry of
// shared utility routines. The location variants implementing LValue
// borrow a Context and emit through it; none of them outlives the
// compilation pass that created it.
//
// The Compiler at the top sequences two passes over one contract: the
// runtime code first, then the constructor, which embeds the runtime
// image and returns it at deployment.
package codegen

import (
	"io"
	"log/slog"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/contract"
	"github.com/sigil-lang/sigil/settings"
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"

	"github.com/holiman/uint256"
)

// StackWindow is how far the machine's DUP and SWAP instructions reach
// below the top of the stack. A value deeper than this is unreachable
// and code generation fails with comperr.ErrStackTooDeep.
const StackWindow = 16

type (
	// Context is the mutable state of one code-generation pass. It owns
	// nothing: the assembly, layout and logger are shared with the
	// Compiler driving the pass.
	Context struct {
		asm      *asm.Assembly
		layout   *contract.Layout
		settings settings.Settings
		log      *slog.Logger

		// runtime links the constructor pass to the already compiled
		// runtime pass. Nil in the runtime pass itself.
		runtime *Context

		siblings map[*contract.Definition]*Compiler

		vars map[string]stackVar

		utilities     map[string]asm.Tag
		pendingUtils  map[string]utilityRoutine
		utilitiesDone bool
	}

	stackVar struct {
		base int
		typ  types.Type
	}

	utilityRoutine struct {
		tag        asm.Tag
		args, rets int
		generate   func(*Context) error
	}
)

// NewContext returns the context of a runtime code-generation pass.
// layout may be nil when the code touches no state variables; logger may
// be nil to discard debug traces.
func NewContext(a *asm.Assembly, layout *contract.Layout, s settings.Settings, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		asm:       a,
		layout:    layout,
		settings:  s,
		log:       logger,
		vars:      make(map[string]stackVar),
		utilities: make(map[string]asm.Tag),
	}
}

// NewCreationContext returns the context of a constructor pass, which can
// reach the compiled runtime pass behind it.
func NewCreationContext(a *asm.Assembly, layout *contract.Layout, s settings.Settings, logger *slog.Logger, runtime *Context) *Context {
	c := NewContext(a, layout, s, logger)
	c.runtime = runtime
	return c
}

// Assembly returns the instruction stream the context emits into.
func (c *Context) Assembly() *asm.Assembly { return c.asm }

// Layout returns the contract's state layout, or nil.
func (c *Context) Layout() *contract.Layout { return c.layout }

// Settings returns the configuration of this pass. The constructor pass
// sees the creation variant of the contract's settings.
func (c *Context) Settings() settings.Settings { return c.settings }

// Logger returns the debug logger of this pass.
func (c *Context) Logger() *slog.Logger { return c.log }

// RuntimeContext returns the compiled runtime pass a constructor pass
// refers to, or nil in the runtime pass itself.
func (c *Context) RuntimeContext() *Context { return c.runtime }

// Err returns the first defect recorded by the underlying assembly.
func (c *Context) Err() error { return c.asm.Err() }

// StackHeight returns the net number of words pushed so far, the height
// of the evaluation stack relative to the start of the pass.
func (c *Context) StackHeight() int { return c.asm.Deposit() }

// Append emits a single instruction.
func (c *Context) Append(op asm.Instruction) { c.asm.Append(op) }

// AppendPush emits a push of the given word.
func (c *Context) AppendPush(v *uint256.Int) { c.asm.AppendPush(v) }

// AppendPushInt emits a push of a small constant.
func (c *Context) AppendPushInt(v uint64) { c.asm.AppendPushInt(v) }

// NewTag reserves a fresh jump tag.
func (c *Context) NewTag() asm.Tag { return c.asm.NewTag() }

// AppendPushTag emits a push of the tag's eventual code offset.
func (c *Context) AppendPushTag(t asm.Tag) { c.asm.AppendPushTag(t) }

// PlaceTag marks the current position as the destination of t.
func (c *Context) PlaceTag(t asm.Tag) { c.asm.PlaceTag(t) }

// AppendJumpTo emits an unconditional jump to t.
func (c *Context) AppendJumpTo(t asm.Tag) { c.asm.AppendJumpTo(t) }

// AppendConditionalJumpTo emits a jump to t consuming the condition word
// on top of the stack.
func (c *Context) AppendConditionalJumpTo(t asm.Tag) { c.asm.AppendConditionalJumpTo(t) }

// AppendPushImmutable emits a push of a named link-time value.
func (c *Context) AppendPushImmutable(name string) { c.asm.AppendPushImmutable(name) }

// AdjustDeposit corrects the tracked stack height across a jump boundary.
func (c *Context) AdjustDeposit(delta int) { c.asm.AdjustDeposit(delta) }

func (c *Context) setDeposit(n int) {
	c.asm.AdjustDeposit(n - c.asm.Deposit())
}

// AddVariable registers a declared variable whose value will occupy the
// next slots pushed. Call it immediately before pushing the initial
// value.
func (c *Context) AddVariable(name string, t types.Type) error {
	return c.AddVariableAt(name, t, 0)
}

// AddVariableAt registers a variable whose value already sits
// offsetToCurrent slots below the current stack height, the way function
// parameters do when a body starts.
func (c *Context) AddVariableAt(name string, t types.Type, offsetToCurrent int) error {
	if _, ok := c.vars[name]; ok {
		return comperr.Internalf("variable %s registered twice", name)
	}
	if offsetToCurrent < 0 || c.asm.Deposit() < offsetToCurrent {
		return comperr.Internalf("variable %s registered %d slots below a stack of height %d", name, offsetToCurrent, c.asm.Deposit())
	}
	c.vars[name] = stackVar{base: c.asm.Deposit() - offsetToCurrent, typ: t}
	return nil
}

// RemoveVariable forgets a variable at scope exit. Popping its slots is
// the caller's business.
func (c *Context) RemoveVariable(name string) error {
	if _, ok := c.vars[name]; !ok {
		return comperr.Internalf("removal of unregistered variable %s", name)
	}
	delete(c.vars, name)
	return nil
}

// BaseStackOffsetOf returns the slot index, counted from the stack base,
// of the deepest slot a variable occupies.
func (c *Context) BaseStackOffsetOf(name string) (int, error) {
	v, err := c.variable(name)
	if err != nil {
		return 0, err
	}
	return v.base, nil
}

func (c *Context) variable(name string) (stackVar, error) {
	v, ok := c.vars[name]
	if !ok {
		return stackVar{}, comperr.Internalf("variable %s is not registered", name)
	}
	return v, nil
}

// BaseToCurrentStackOffset converts a base-relative slot index to its
// distance below the current top of the stack, 0 being the top.
func (c *Context) BaseToCurrentStackOffset(base int) int {
	return c.asm.Deposit() - base - 1
}

func (c *Context) immutable(name string) (contract.Immutable, error) {
	if c.layout == nil {
		return contract.Immutable{}, comperr.Internalf("immutable %s used without a contract layout", name)
	}
	imm, ok := c.layout.ImmutableOf(name)
	if !ok {
		return contract.Immutable{}, comperr.Internalf("unknown immutable %s", name)
	}
	return imm, nil
}

// UtilityTag returns the entry tag of the shared routine name. The first
// request records generate; AppendMissingUtilities emits every recorded
// body exactly once. args and rets describe the routine's stack effect.
func (c *Context) UtilityTag(name string, args, rets int, generate func(*Context) error) asm.Tag {
	if tag, ok := c.utilities[name]; ok {
		return tag
	}
	tag := c.asm.NewTag()
	c.utilities[name] = tag
	if c.pendingUtils == nil {
		c.pendingUtils = make(map[string]utilityRoutine)
	}
	c.pendingUtils[name] = utilityRoutine{
		tag:      tag,
		args:     args,
		rets:     rets,
		generate: generate,
	}
	return tag
}

// CallUtility emits a call to the shared routine name, which consumes the
// args words on top of the stack and leaves rets words. The return
// address is pushed below the arguments, so the routine body ends with
// ReturnFromUtility.
func (c *Context) CallUtility(loc source.Location, name string, args, rets int, generate func(*Context) error) error {
	ret := c.asm.NewTag()
	c.asm.AppendPushTag(ret)
	if err := c.MoveIntoStack(loc, args, 1); err != nil {
		return err
	}
	c.asm.AppendJumpTo(c.UtilityTag(name, args, rets, generate))
	c.asm.AdjustDeposit(rets - 1 - args)
	c.asm.PlaceTag(ret)
	return nil
}

// ReturnFromUtility ends a utility routine body: it brings the return
// address, sitting below the rets result words, to the top and jumps
// back to the caller.
func (c *Context) ReturnFromUtility(rets int) error {
	if err := c.MoveToStackTop(source.Location{}, rets, 1); err != nil {
		return err
	}
	c.asm.Append(asm.JUMP)
	return nil
}

// AppendMissingUtilities emits the body of every utility routine
// requested so far. Each pass calls it exactly once after its main code:
// routine bodies sit behind the halting instructions and are reached by
// explicit jumps only. Bodies may request further routines; the loop
// drains them all, each wave in name order so the image does not depend
// on call-site order.
func (c *Context) AppendMissingUtilities() error {
	for len(c.pendingUtils) > 0 {
		queue := c.pendingUtils
		c.pendingUtils = nil
		names := maps.Keys(queue)
		sort.Strings(names)
		for _, name := range names {
			u := queue[name]
			c.log.Debug("emitting utility routine", "assembly", c.asm.Name(), "utility", name, "args", u.args, "rets", u.rets)
			c.setDeposit(u.args + 1)
			c.asm.PlaceTag(u.tag)
			if err := u.generate(c); err != nil {
				return errors.Wrapf(err, "utility routine %s", name)
			}
		}
	}
	c.utilitiesDone = true
	return nil
}

// UtilitiesAppended reports whether AppendMissingUtilities ran and no
// routine was requested after it. The Compiler asserts this before
// finalizing: a pass that skipped it would silently drop routine bodies
// from the image.
func (c *Context) UtilitiesAppended() bool {
	return c.utilitiesDone && len(c.pendingUtils) == 0
}

// InvalidFunctionTag returns the tag of the shared trap routine that
// aborts execution. Its code offset doubles as the canonical zero of
// internal function references: calling a never-assigned reference lands
// on the trap.
func (c *Context) InvalidFunctionTag() asm.Tag {
	return c.UtilityTag("$invalidFunction", 0, 0, func(c *Context) error {
		c.asm.Append(asm.INVALID)
		return nil
	})
}

// CompiledContract returns the creation assembly of a sibling contract,
// for embedding its deploy code.
func (c *Context) CompiledContract(def *contract.Definition) (*asm.Assembly, error) {
	comp, err := c.sibling(def)
	if err != nil {
		return nil, err
	}
	return comp.CreationAssembly(), nil
}

// CompiledContractRuntime returns the runtime assembly of a sibling
// contract.
func (c *Context) CompiledContractRuntime(def *contract.Definition) (*asm.Assembly, error) {
	comp, err := c.sibling(def)
	if err != nil {
		return nil, err
	}
	return comp.RuntimeAssembly()
}

func (c *Context) sibling(def *contract.Definition) (*Compiler, error) {
	comp, ok := c.siblings[def]
	if !ok || comp == nil {
		return nil, comperr.Internalf("contract %s is not among the compiled siblings", def.Name)
	}
	if comp.runtimeCtx == nil {
		return nil, comperr.Internalf("sibling contract %s was compiled out of order", def.Name)
	}
	return comp, nil
}
