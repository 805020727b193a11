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
	"fmt"

	"github.com/sigil-lang/sigil/asm"
	"github.com/sigil-lang/sigil/comperr"
	"github.com/sigil-lang/sigil/contract"
	"github.com/sigil-lang/sigil/source"
	"github.com/sigil-lang/sigil/types"
)

// StorageKind selects which of the machine's two word-addressed stores a
// StorageItem reads and writes. The packing algorithm is identical for
// both; only the load/store instruction pair differs.
type StorageKind uint8

const (
	// PersistentStorage survives across calls.
	PersistentStorage StorageKind = iota
	// TransientStorage is discarded at the end of the transaction.
	TransientStorage
)

func (k StorageKind) String() string {
	switch k {
	case PersistentStorage:
		return "storage"
	case TransientStorage:
		return "transient storage"
	}
	return fmt.Sprintf("StorageKind(%d)", uint8(k))
}

func (k StorageKind) loadOp() asm.Instruction {
	if k == TransientStorage {
		return asm.TLOAD
	}
	return asm.SLOAD
}

func (k StorageKind) storeOp() asm.Instruction {
	if k == TransientStorage {
		return asm.TSTORE
	}
	return asm.SSTORE
}

// StorageItem is a field in one of the word-addressed stores. Its
// reference is two stack slots, the slot key below the byte offset of
// the field within that word. Values narrower than a word share their
// slot with neighbouring fields; reads isolate the field and writes
// preserve the neighbours.
type StorageItem struct {
	ctx  *Context
	typ  types.Type
	kind StorageKind
}

var _ LValue = (*StorageItem)(nil)

func newStorageItem(c *Context, t types.Type, kind StorageKind) (*StorageItem, error) {
	bare := types.Bare(t)
	if kind == TransientStorage && !bare.IsValueType() {
		return nil, comperr.Unsupportedf("transient storage of reference type %s", bare)
	}
	if bare.IsValueType() {
		if _, isFn := types.Encoding(bare).(*types.Function); !isFn {
			if int(bare.StorageSlots()) != bare.SizeOnStack() {
				return nil, comperr.Internalf("value type %s occupies %d slots but %d stack slots", bare, bare.StorageSlots(), bare.SizeOnStack())
			}
		}
		if bare.StorageSlots() != 1 {
			return nil, comperr.Internalf("value type %s does not fit one storage slot", bare)
		}
	}
	return &StorageItem{ctx: c, typ: bare, kind: kind}, nil
}

// NewStorageItem returns the location of a persistent-storage value of
// type t whose slot key and byte offset are already on the stack.
func NewStorageItem(c *Context, t types.Type) (*StorageItem, error) {
	return newStorageItem(c, t, PersistentStorage)
}

// NewTransientStorageItem is NewStorageItem for the transaction-scoped
// store. Only value types are accepted.
func NewTransientStorageItem(c *Context, t types.Type) (*StorageItem, error) {
	return newStorageItem(c, t, TransientStorage)
}

// NewStorageItemFor resolves the named state variable in the contract
// layout and pushes its slot key and byte offset.
func NewStorageItemFor(c *Context, name string) (*StorageItem, error) {
	layout := c.Layout()
	if layout == nil {
		return nil, comperr.Internalf("no contract layout to resolve state variable %s", name)
	}
	v, ok := layout.Contract().VariableNamed(name)
	if !ok {
		return nil, comperr.Internalf("unknown state variable %s", name)
	}
	var (
		placement contract.Placement
		kind      StorageKind
	)
	switch v.Location {
	case contract.LocationDefault, contract.LocationStorage:
		placement, ok = layout.StorageOf(name)
		kind = PersistentStorage
	case contract.LocationTransient:
		placement, ok = layout.TransientOf(name)
		kind = TransientStorage
	default:
		return nil, comperr.Internalf("state variable %s lives in %s, not in storage", name, v.Location)
	}
	if !ok {
		return nil, comperr.Internalf("state variable %s missing from the %s layout", name, kind)
	}
	item, err := newStorageItem(c, v.Type, kind)
	if err != nil {
		return nil, err
	}
	c.AppendPushInt(placement.Slot)
	c.AppendPushInt(uint64(placement.Offset))
	return item, nil
}

// SizeOnStack returns 2, the slot key and the byte offset.
func (s *StorageItem) SizeOnStack() int { return 2 }

// Retrieve loads the field and leaves it in canonical stack form. For
// reference types the retrieved value is the slot key itself; the byte
// offset is folded away since reference fields always start a word.
func (s *StorageItem) Retrieve(loc source.Location, remove bool) error {
	if !s.typ.IsValueType() {
		if s.typ.SizeOnStack() != 1 {
			return comperr.Internalf("storage reference to %s does not fit one stack slot", s.typ)
		}
		if remove {
			s.ctx.Append(asm.POP)
		} else {
			s.ctx.Append(asm.DUP2)
		}
		return nil
	}
	if !remove {
		if err := s.ctx.CopyToStackTop(loc, s.SizeOnStack(), s.SizeOnStack()); err != nil {
			return err
		}
	}
	if s.typ.StorageBytes() == types.WordBytes {
		// Full-word fields have byte offset zero.
		s.ctx.Append(asm.POP)
		s.ctx.Append(s.kind.loadOp())
		return nil
	}

	// Divide the loaded word by 256^offset to shift the field down.
	enc := types.Encoding(s.typ)
	s.ctx.Append(asm.SWAP1)
	s.ctx.Append(s.kind.loadOp())
	s.ctx.Append(asm.SWAP1)
	s.ctx.AppendPushInt(0x100)
	s.ctx.Append(asm.EXP)
	s.ctx.Append(asm.SWAP1)
	s.ctx.Append(asm.DIV)

	cleaned := false
	switch t := enc.(type) {
	case *types.Function:
		if t.External {
			s.ctx.SplitExternalFunction()
			cleaned = true
		} else {
			// An all-zero field denotes an unassigned function value;
			// substitute the canonical zero, which traps when called.
			s.ctx.Append(asm.DUP1)
			s.ctx.Append(asm.ISZERO)
			if err := s.ctx.PushZeroValue(t); err != nil {
				return err
			}
			s.ctx.Append(asm.MUL)
			s.ctx.Append(asm.OR)
		}
	case *types.Integer:
		if t.Signed {
			s.ctx.AppendPushInt(uint64(t.StorageBytes() - 1))
			s.ctx.Append(asm.SIGNEXTEND)
			cleaned = true
		}
	default:
		if enc.LeftAligned() {
			s.ctx.LeftShiftNumberOnStack(256 - 8*enc.StorageBytes())
			cleaned = true
		}
	}
	if !cleaned {
		if enc.SizeOnStack() != 1 {
			return comperr.Internalf("masked storage value of %s is wider than one stack slot", enc)
		}
		s.ctx.AppendPush(lowMask(enc.StorageBytes()))
		s.ctx.Append(asm.AND)
	}
	return nil
}

// Store writes the value below the reference into the field. Reference
// types copy field-wise: assignment into storage is a deep copy, never
// a pointer copy.
func (s *StorageItem) Store(sourceType types.Type, loc source.Location, move bool) error {
	if s.typ.IsValueType() {
		return s.storeScalar(sourceType, loc, move)
	}
	switch t := s.typ.(type) {
	case *types.Array:
		return s.storeArray(t, sourceType, loc, move)
	case *types.Struct:
		return s.storeStruct(t, sourceType, loc, move)
	}
	return comperr.Internalf("assignment to storage of non-assignable type %s", s.typ)
}

// storeScalar expects [value..., key, offset].
func (s *StorageItem) storeScalar(sourceType types.Type, loc source.Location, move bool) error {
	sb := s.typ.StorageBytes()
	if sb <= 0 || sb > types.WordBytes {
		return comperr.Internalf("storage width of %s is %d bytes", s.typ, sb)
	}
	if sb == types.WordBytes {
		if s.typ.SizeOnStack() != 1 {
			return comperr.Internalf("full-word value of %s is wider than one stack slot", s.typ)
		}
		// Full-word fields have byte offset zero.
		s.ctx.Append(asm.POP)
		if !move {
			s.ctx.Append(asm.DUP2)
			s.ctx.Append(asm.SWAP1)
		}
		s.ctx.Append(asm.SWAP1)
		if err := s.ctx.ConvertType(sourceType, s.typ, true, false); err != nil {
			return err
		}
		s.ctx.Append(asm.SWAP1)
		s.ctx.Append(s.kind.storeOp())
		return nil
	}

	// Clear the field's bit range in the old word and OR the shifted
	// value into it, leaving the neighbouring fields untouched.
	size := s.typ.SizeOnStack()
	s.ctx.AppendPushInt(0x100)
	s.ctx.Append(asm.EXP)
	// [value, key, multiplier]
	s.ctx.Append(asm.DUP2)
	s.ctx.Append(s.kind.loadOp())
	// [value, key, multiplier, old]
	s.ctx.Append(asm.DUP2)
	s.ctx.AppendPush(lowMask(sb))
	s.ctx.Append(asm.MUL)
	s.ctx.Append(asm.NOT)
	s.ctx.Append(asm.AND)
	s.ctx.Append(asm.SWAP1)
	// [value, key, cleared, multiplier]
	if err := s.ctx.CopyToStackTop(loc, 3+size, size); err != nil {
		return err
	}
	// [value, key, cleared, multiplier, value]
	switch enc := types.Encoding(s.typ).(type) {
	case *types.Function:
		if !types.Bare(sourceType).IsImplicitlyConvertibleTo(s.typ) {
			return comperr.Internalf("storing %s into a field of type %s", sourceType, s.typ)
		}
		if enc.External {
			s.ctx.CombineExternalFunction()
		} else {
			s.ctx.AppendPush(lowMask(sb))
			s.ctx.Append(asm.AND)
		}
	default:
		if s.typ.LeftAligned() {
			if _, isBytes := types.Encoding(types.Bare(sourceType)).(*types.FixedBytes); !isBytes {
				return comperr.Internalf("left-aligned store of %s from %s", s.typ, sourceType)
			}
			s.ctx.RightShiftNumberOnStack(256 - 8*sb)
		} else {
			if s.typ.SizeOnStack() != 1 {
				return comperr.Internalf("packed value of %s is wider than one stack slot", s.typ)
			}
			if err := s.ctx.ConvertType(sourceType, s.typ, true, true); err != nil {
				return err
			}
		}
	}
	s.ctx.Append(asm.MUL)
	s.ctx.Append(asm.OR)
	// [value, key, updated]
	s.ctx.Append(asm.SWAP1)
	s.ctx.Append(s.kind.storeOp())
	if move {
		s.ctx.PopStackElement(s.typ)
	}
	return nil
}

// storeArray expects [source_ref, key, offset].
func (s *StorageItem) storeArray(target *types.Array, sourceType types.Type, loc source.Location, move bool) error {
	src, ok := types.Bare(sourceType).(*types.Array)
	if !ok {
		return comperr.Internalf("assigning %s to a storage array", sourceType)
	}
	// Arrays always start a word.
	s.ctx.Append(asm.POP)
	if err := NewArrayUtils(s.ctx).CopyArrayToStorage(loc, target, src, types.LocationOf(sourceType)); err != nil {
		return err
	}
	if move {
		s.ctx.Append(asm.POP)
	}
	return nil
}

// storeStruct expects [source_ref, key, offset] and copies member by
// member, or slot by slot through a shared routine when the source is
// also in storage and every member is a value type.
func (s *StorageItem) storeStruct(target *types.Struct, sourceType types.Type, loc source.Location, move bool) error {
	src, ok := types.Bare(sourceType).(*types.Struct)
	if !ok || src != target {
		return comperr.Internalf("struct assignment between distinct definitions %s and %s", sourceType, s.typ)
	}
	if target.ContainsMapping() {
		return comperr.Internalf("copying struct %s, which contains a mapping", target)
	}
	// Structs always start a word.
	s.ctx.Append(asm.POP)

	var err error
	switch types.LocationOf(sourceType) {
	case types.StorageLocation:
		err = s.copyStructFromStorage(target, loc)
	case types.MemoryLocation:
		err = s.copyStructFromMemory(target, loc)
	case types.CalldataLocation:
		err = s.copyStructFromCalldata(target, loc)
	default:
		err = comperr.Internalf("struct source %s has no data location", sourceType)
	}
	if err != nil {
		return err
	}
	// [source_ref, target_ref]
	if move {
		s.ctx.PopStackSlots(2)
	} else {
		s.ctx.Append(asm.SWAP1)
		s.ctx.Append(asm.POP)
	}
	return nil
}

func (s *StorageItem) copyStructFromStorage(t *types.Struct, loc source.Location) error {
	if allValueMembers(t) {
		return s.fusedStorageCopy(t, loc)
	}
	for _, m := range t.Members {
		mslot, moff, ok := t.StorageOffsetsOf(m.Name)
		if !ok {
			return comperr.Internalf("member %s missing from the layout of %s", m.Name, t)
		}
		// [source_ref, target_ref]
		s.ctx.AppendPushInt(mslot)
		s.ctx.Append(asm.DUP3)
		s.ctx.Append(asm.ADD)
		s.ctx.AppendPushInt(uint64(moff))
		srcMember, err := newStorageItem(s.ctx, m.Type, s.kind)
		if err != nil {
			return err
		}
		if err := srcMember.Retrieve(loc, true); err != nil {
			return err
		}
		// [source_ref, target_ref, value...]
		srcType := m.Type
		if !m.Type.IsValueType() {
			srcType = types.InLocation(m.Type, types.StorageLocation)
		}
		if err := s.storeMember(t, m, srcType, loc); err != nil {
			return err
		}
	}
	return nil
}

func (s *StorageItem) copyStructFromMemory(t *types.Struct, loc source.Location) error {
	for _, m := range t.Members {
		memOff, ok := t.MemoryOffsetOf(m.Name)
		if !ok {
			return comperr.Internalf("member %s missing from the layout of %s", m.Name, t)
		}
		// [source_ref, target_ref]
		s.ctx.AppendPushInt(uint64(memOff))
		s.ctx.Append(asm.DUP3)
		s.ctx.Append(asm.ADD)
		if err := NewMemoryItem(s.ctx, m.Type, true).Retrieve(loc, true); err != nil {
			return err
		}
		// [source_ref, target_ref, value...]
		srcType := m.Type
		if !m.Type.IsValueType() {
			srcType = types.InLocation(m.Type, types.MemoryLocation)
		}
		if err := s.storeMember(t, m, srcType, loc); err != nil {
			return err
		}
	}
	return nil
}

func (s *StorageItem) copyStructFromCalldata(t *types.Struct, loc source.Location) error {
	for _, m := range t.Members {
		if !m.Type.IsValueType() {
			return comperr.Unsupportedf("copying struct member %s.%s from call input", t.Name, m.Name)
		}
		cdOff, ok := t.CalldataOffsetOf(m.Name)
		if !ok {
			return comperr.Internalf("member %s missing from the layout of %s", m.Name, t)
		}
		// [source_offset, target_ref]
		s.ctx.AppendPushInt(uint64(cdOff))
		s.ctx.Append(asm.DUP3)
		s.ctx.Append(asm.ADD)
		if err := s.ctx.LoadFromMemoryDynamic(m.Type, true, true); err != nil {
			return err
		}
		// [source_offset, target_ref, value...]
		if err := s.storeMember(t, m, m.Type, loc); err != nil {
			return err
		}
	}
	return nil
}

// storeMember expects [source_ref, target_ref, value...] and consumes
// the value into the member's field of the target.
func (s *StorageItem) storeMember(t *types.Struct, m types.Member, srcType types.Type, loc source.Location) error {
	size := m.Type.SizeOnStack()
	mslot, moff, ok := t.StorageOffsetsOf(m.Name)
	if !ok {
		return comperr.Internalf("member %s missing from the layout of %s", m.Name, t)
	}
	s.ctx.Append(asm.DupN(1 + size))
	s.ctx.AppendPushInt(mslot)
	s.ctx.Append(asm.ADD)
	s.ctx.AppendPushInt(uint64(moff))
	// [source_ref, target_ref, value..., member_key, member_offset]
	member, err := newStorageItem(s.ctx, m.Type, s.kind)
	if err != nil {
		return err
	}
	return member.Store(srcType, loc, true)
}

// fusedStorageCopy copies the struct slot by slot through a shared
// routine keyed by slot count. Valid only when every member is a value
// type: whole-slot copies would otherwise drag mapping roots and nested
// reference headers along.
func (s *StorageItem) fusedStorageCopy(t *types.Struct, loc source.Location) error {
	slots := t.StorageSlots()
	load, store := s.kind.loadOp(), s.kind.storeOp()
	name := fmt.Sprintf("$copyStorage%d", slots)
	return s.ctx.CallUtility(loc, name, 2, 2, func(c *Context) error {
		// [return_tag, source_ref, target_ref]
		for i := uint64(0); i < slots; i++ {
			c.Append(asm.DUP2)
			if i > 0 {
				c.AppendPushInt(i)
				c.Append(asm.ADD)
			}
			c.Append(load)
			c.Append(asm.DUP2)
			if i > 0 {
				c.AppendPushInt(i)
				c.Append(asm.ADD)
			}
			c.Append(store)
		}
		return c.ReturnFromUtility(2)
	})
}

func allValueMembers(t *types.Struct) bool {
	for _, m := range t.Members {
		if !m.Type.IsValueType() {
			return false
		}
	}
	return true
}

// Clear zeroes the field. Structs zero every member except mappings,
// whose contents are keyed by arbitrary input and have no enumerable
// extent.
func (s *StorageItem) Clear(loc source.Location, removeRef bool) error {
	switch t := s.typ.(type) {
	case *types.Array:
		if !removeRef {
			if err := s.ctx.CopyToStackTop(loc, s.SizeOnStack(), s.SizeOnStack()); err != nil {
				return err
			}
		}
		return NewArrayUtils(s.ctx).ClearArray(t)
	case *types.Struct:
		for _, m := range t.Members {
			if _, isMapping := m.Type.(*types.Mapping); isMapping {
				continue
			}
			mslot, moff, ok := t.StorageOffsetsOf(m.Name)
			if !ok {
				return comperr.Internalf("member %s missing from the layout of %s", m.Name, t)
			}
			s.ctx.AppendPushInt(mslot)
			s.ctx.Append(asm.DUP3)
			s.ctx.Append(asm.ADD)
			s.ctx.AppendPushInt(uint64(moff))
			member, err := newStorageItem(s.ctx, m.Type, s.kind)
			if err != nil {
				return err
			}
			if err := member.Clear(loc, true); err != nil {
				return err
			}
		}
		if removeRef {
			s.ctx.Append(asm.POP)
			s.ctx.Append(asm.POP)
		}
		return nil
	}
	if !s.typ.IsValueType() {
		return comperr.Internalf("clearing storage of unsupported type %s", s.typ)
	}
	if !removeRef {
		if err := s.ctx.CopyToStackTop(loc, s.SizeOnStack(), s.SizeOnStack()); err != nil {
			return err
		}
	}
	if s.typ.StorageBytes() == types.WordBytes {
		// Full-word fields have byte offset zero.
		s.ctx.Append(asm.POP)
		s.ctx.AppendPushInt(0)
		s.ctx.Append(asm.SWAP1)
		s.ctx.Append(s.kind.storeOp())
		return nil
	}
	s.ctx.AppendPushInt(0x100)
	s.ctx.Append(asm.EXP)
	// [key, multiplier]
	s.ctx.Append(asm.DUP2)
	s.ctx.Append(s.kind.loadOp())
	// [key, multiplier, old]
	s.ctx.Append(asm.SWAP1)
	s.ctx.AppendPush(lowMask(s.typ.StorageBytes()))
	s.ctx.Append(asm.MUL)
	s.ctx.Append(asm.NOT)
	s.ctx.Append(asm.AND)
	// [key, cleared]
	s.ctx.Append(asm.SWAP1)
	s.ctx.Append(s.kind.storeOp())
	return nil
}

func (*StorageItem) lvalue() {}
