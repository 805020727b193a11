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

package codegen

import (
	"github.com/pkg/errors"

	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/contract"
	"github.com/sigil-lang/sigil/metadata"
	"github.com/sigil-lang/sigil/settings"
)

// CodeGenerator produces a contract's code. The expression and statement
// compilers sit behind this interface; the contract compiler hands each
// phase a prepared context.
type CodeGenerator interface {
	// GenerateRuntime emits the callable half of the contract.
	GenerateRuntime(*Context) error

	// GenerateConstructor emits the constructor. The runtime half is
	// already compiled and reachable through the context.
	GenerateConstructor(*Context) error
}

// Compiler drives the two-phase compilation of one contract: first the
// runtime half into its own assembly, then the creation half into a root
// assembly that embeds the runtime image as a sub-assembly and returns
// it at deploy time.
type Compiler struct {
	settings    settings.Settings
	layout      *contract.Layout
	runtimeAsm  *asm.Assembly
	creationAsm *asm.Assembly
	runtimeCtx  *Context
	creationCtx *Context
	runtimeSub  int
}

// NewCompiler returns a compiler for the given settings.
func NewCompiler(s settings.Settings) *Compiler {
	return &Compiler{settings: s, runtimeSub: -1}
}

// CompileContract compiles def and finalizes both halves. siblings maps
// the already-compiled contracts of the same build, letting generated
// code embed or reference their images; it may be nil.
func (c *Compiler) CompileContract(def *contract.Definition, siblings map[*contract.Definition]*Compiler, gen CodeGenerator) error {
	for _, v := range def.Variables {
		if v.Location != contract.LocationTransient {
			continue
		}
		if !c.settings.SupportsTransientStorage() {
			return comperr.Positioned(v.Loc, comperr.Unsupportedf(
				"transient storage requires the %s machine revision, targeting %s",
				settings.VersionCancun, c.settings.EVMVersion))
		}
		if !v.Type.IsValueType() {
			return comperr.Positioned(v.Loc, comperr.Unsupportedf("transient storage of reference type %s", v.Type))
		}
	}
	layout, err := contract.NewLayout(def)
	if err != nil {
		return err
	}
	c.layout = layout
	log := settings.NewLogger()

	c.runtimeAsm = asm.New(def.Name + ".runtime")
	runtimeCtx := NewContext(c.runtimeAsm, layout, c.settings, log)
	runtimeCtx.siblings = siblings
	if err := gen.GenerateRuntime(runtimeCtx); err != nil {
		return errors.Wrapf(err, "compiling the runtime of %s", def.Name)
	}
	if err := runtimeCtx.AppendMissingUtilities(); err != nil {
		return err
	}
	meta, err := metadata.Fingerprint(metadata.Version, layout.Description())
	if err != nil {
		return errors.Wrapf(err, "fingerprinting %s", def.Name)
	}
	c.runtimeAsm.AppendAuxiliaryData(meta)
	c.runtimeCtx = runtimeCtx
	log.Debug("compiled runtime half", "contract", def.Name)

	// The constructor may reach into the compiled runtime half, and its
	// code runs exactly once per deployment.
	c.creationAsm = asm.New(def.Name + ".creation")
	creationCtx := NewCreationContext(c.creationAsm, layout, c.settings.ForCreation(), log, runtimeCtx)
	creationCtx.siblings = siblings
	if err := gen.GenerateConstructor(creationCtx); err != nil {
		return errors.Wrapf(err, "compiling the constructor of %s", def.Name)
	}
	c.runtimeSub = c.creationAsm.AppendSub(c.runtimeAsm)
	c.appendDeployEpilogue(c.runtimeSub)
	if err := creationCtx.AppendMissingUtilities(); err != nil {
		return err
	}
	c.creationCtx = creationCtx
	log.Debug("compiled creation half", "contract", def.Name)

	removed := c.creationAsm.Optimize(asm.OptimizeOptions{Enabled: c.settings.Optimizer.Enabled})
	if removed > 0 {
		log.Debug("optimized contract", "contract", def.Name, "removed", removed)
	}
	if err := c.runtimeAsm.Err(); err != nil {
		return errors.Wrapf(err, "assembling the runtime of %s", def.Name)
	}
	if err := c.creationAsm.Err(); err != nil {
		return errors.Wrapf(err, "assembling the creation code of %s", def.Name)
	}
	if !runtimeCtx.UtilitiesAppended() || !creationCtx.UtilitiesAppended() {
		return comperr.Internalf("utility routines were not materialized before finalization")
	}
	return nil
}

// appendDeployEpilogue copies the runtime image to memory and returns it
// as the deployed code.
func (c *Compiler) appendDeployEpilogue(sub int) {
	a := c.creationAsm
	a.AppendPushSubSize(sub)
	a.AppendPushSubOffset(sub)
	a.AppendPushInt(0)
	a.Append(asm.CODECOPY)
	a.AppendPushSubSize(sub)
	a.AppendPushInt(0)
	a.Append(asm.RETURN)
}

// RuntimeAssembly returns the runtime half for separate packaging.
func (c *Compiler) RuntimeAssembly() (*asm.Assembly, error) {
	if c.runtimeCtx == nil {
		return nil, comperr.Internalf("the contract has not been compiled")
	}
	return c.runtimeAsm, nil
}

// CreationAssembly returns the root assembly embedding the constructor
// and the runtime image. It is nil before CompileContract runs.
func (c *Compiler) CreationAssembly() *asm.Assembly { return c.creationAsm }

// RuntimeSub returns the index of the runtime image among the creation
// assembly's sub-assemblies, or -1 before compilation.
func (c *Compiler) RuntimeSub() int { return c.runtimeSub }

// Layout returns the compiled contract's state layout, or nil before
// compilation.
func (c *Compiler) Layout() *contract.Layout { return c.layout }
