// Package state holds a program's register file: the array of tensors a
// running program reads and writes, their ownership, and the allocator
// backing any register this state owns outright.
package state

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/BinaryCat17/sf-spec/internal/cartridge"
	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/shape"
	"github.com/BinaryCat17/sf-spec/internal/tensor"

	"github.com/google/uuid"
)

var (
	// ErrUnknownSymbol is returned by Bind/Read when no symbol has the
	// given name hash.
	ErrUnknownSymbol = errors.New("state: unknown symbol")
	// ErrNotBindable is returned by Bind when the target symbol is not
	// flagged INPUT or OUTPUT.
	ErrNotBindable = errors.New("state: symbol is not an input or output")
)

// ownership records whether a register's Buf is torn down when the state
// is freed, or left for the host/view source to manage.
type ownership uint8

const (
	ownsNothing ownership = iota
	ownsBuffer
)

// State is a program's live register file: every tensor descriptor in the
// program gets exactly one slot, populated at Create time and mutated in
// place by Bind and by the dispatcher during a run.
type State struct {
	RunID uuid.UUID

	Registers  []tensor.Tensor
	owned      []ownership
	alloc      memory.Allocator
	program    *isa.Program
	symByHash  map[uint32]int // nameHash -> symbol index

	// BakedPlan is an opaque per-backend slot; the dispatcher never
	// interprets it. The CPU backend does not set it: its Bake result is
	// passed to Dispatch directly.
	BakedPlan any

	// globalErr is the kill switch: the first kernel error observed by
	// any in-flight tile, CASed in once and never overwritten.
	globalErr atomic.Uint32
}

// Create walks a program's tensor descriptors and allocates a register
// file. ALIAS-flagged tensors are left as empty, non-owning views (a
// later Bind installs their backing data); constant tensors get an
// owning buffer with the descriptor's payload copied in; everything else
// gets an owning, zero-initialised buffer.
func Create(program *isa.Program, alloc memory.Allocator) (*State, error) {
	st := &State{
		RunID:     uuid.New(),
		Registers: make([]tensor.Tensor, len(program.TensorInfos)),
		owned:     make([]ownership, len(program.TensorInfos)),
		alloc:     alloc,
		program:   program,
		symByHash: make(map[uint32]int, len(program.Symbols)),
	}

	for i, td := range program.TensorInfos {
		if td.Flags&isa.TensorFlagAlias != 0 {
			st.Registers[i] = tensor.Tensor{Info: tensor.TypeInfo{Dtype: td.Dtype, Info: shapeInfoOf(td)}}
			st.owned[i] = ownsNothing
			continue
		}

		info := tensor.TypeInfo{Dtype: td.Dtype, Info: shapeInfoOf(td)}
		t, err := tensor.Alloc(info, alloc)

		if err != nil {
			return nil, fmt.Errorf("state: allocating register %d: %w", i, err)
		}

		if td.IsConstant {
			payload := program.TensorData[i]
			if len(payload) > 0 {
				copy(t.Buf.Data[t.ByteOffset:t.ByteOffset+len(payload)], payload)
			}
		}

		st.Registers[i] = t
		st.owned[i] = ownsBuffer
	}

	for i, sym := range program.Symbols {
		st.symByHash[sym.NameHash] = i
	}

	return st, nil
}

func shapeInfoOf(td isa.TensorDesc) shape.Info {
	info := shape.Info{NDim: td.NDim, Shape: td.Shape}
	shape.CalcStrides(&info)
	return info
}

// Bind installs t as the backing tensor for the symbol with the given
// name hash. Only INPUT/OUTPUT-flagged symbols are bindable — the host
// retains ownership of the tensor it hands in, so State never tears it
// down.
func (st *State) Bind(nameHash uint32, t tensor.Tensor) error {
	idx, ok := st.symByHash[nameHash]
	if !ok {
		return fmt.Errorf("%w: hash %#x", ErrUnknownSymbol, nameHash)
	}
	sym := st.program.Symbols[idx]
	if sym.Flags&(isa.SymbolFlagInput|isa.SymbolFlagOutput) == 0 {
		return fmt.Errorf("%w: %q", ErrNotBindable, sym.Name)
	}

	reg := int(sym.RegisterIdx)
	st.Registers[reg] = t
	st.owned[reg] = ownsNothing
	return nil
}

// Read returns the tensor currently bound to the symbol with the given
// name hash.
func (st *State) Read(nameHash uint32) (tensor.Tensor, error) {
	idx, ok := st.symByHash[nameHash]
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("%w: hash %#x", ErrUnknownSymbol, nameHash)
	}
	return st.Registers[st.program.Symbols[idx].RegisterIdx], nil
}

// Free tears down every register this state owns. Registers bound via
// Bind, or installed as ALIAS views, are left untouched.
func (st *State) Free() {
	for i, reg := range st.Registers {
		if st.owned[i] == ownsBuffer && reg.Buf != nil {
			tensor.Free(reg.Buf)
		}
	}
}

// SetError CASes an error kind into the global kill switch; the first
// writer wins, later writers are dropped.
func (st *State) SetError(kind uint32) (wasFirst bool) {
	return st.globalErr.CompareAndSwap(0, kind)
}

// Error returns the kill switch's current value (0 == no error yet).
func (st *State) Error() uint32 {
	return st.globalErr.Load()
}

// LoadProgramSection is a convenience used by cmd/sfrun and cmd/sfbench:
// decode a PROGRAM section straight into a ready-to-Create Program.
func LoadProgramSection(c *cartridge.Cartridge, name string) (*isa.Program, error) {
	body, err := c.SectionBody(name)
	if err != nil {
		return nil, err
	}
	return cartridge.DecodeProgram(body)
}
