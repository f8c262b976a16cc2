package isa

import "github.com/BinaryCat17/sf-spec/internal/tensor"

// MaxSymbolName / MaxTitleName / MaxSections bound the fixed-size string
// and array fields of the cartridge wire format.
const (
	MaxSymbolName = 64
	MaxTitleName  = 128
	MaxSections   = 16
	MaxDims       = 8
)

// Symbol flag bits.
const (
	SymbolFlagInput  uint8 = 1 << 6
	SymbolFlagOutput uint8 = 1 << 7
)

// Tensor flag bits (sf_bin_tensor_desc.flags).
const (
	TensorFlagConstant uint8 = 1 << iota
	TensorFlagReduction
	TensorFlagGenerator
	TensorFlagAlias
	TensorFlagSpatial
)

// Binding flag bits.
const (
	BindingFlagReduction uint16 = 1 << iota
	// BindingFlagWhole marks a binding the compiler deliberately left at a
	// zero byte stride because its kernel needs the register's entire
	// buffer every tile (matmul's A/B, transpose's source) rather than a
	// tile-local slice — as opposed to an ordinary binding a baking step
	// simply hasn't filled in yet. Bake must not overwrite it.
	BindingFlagWhole
)

// Symbol maps a named, externally visible register to a provider and
// builtin binding.
type Symbol struct {
	Name            string
	Provider        string
	NameHash        uint32
	RegisterIdx     uint32
	RelatedNameHash uint32
	Flags           uint8
	BuiltinID       BuiltinID
	BuiltinAxis     uint8
}

// Binding ties a register to a task's domain with a precomputed byte
// stride.
type Binding struct {
	RegIdx     uint16
	Flags      uint16
	ByteStride int32
}

// Task is a single unit of parallel dispatch within a Program.
type Task struct {
	StartInst      uint32
	InstCount      uint32
	DomainReg      uint32
	Strategy       Strategy
	BindingOffset  uint32
	BindingCount   uint32
}

// TensorDesc describes one register's static metadata in the wire format.
type TensorDesc struct {
	Dtype      tensor.Dtype
	NDim       uint8
	IsConstant bool
	Flags      uint8
	Shape      [MaxDims]int32
	DataSize   uint64
}

// Header is the fixed-field header of a PROGRAM section.
type Header struct {
	InstructionCount     uint32
	TensorCount          uint32
	SymbolCount          uint32
	TaskCount            uint32
	BindingCount         uint32
	ReductionScratchSize uint32
	SyncScratchSize      uint32
}

// Program is the in-memory representation of a single compiled program.
type Program struct {
	Meta Header

	Code []Instruction

	TensorInfos []TensorDesc
	TensorData  [][]byte // constant payloads, indexed like TensorInfos; nil when not constant

	Symbols  []Symbol
	Tasks    []Task
	Bindings []Binding
}
