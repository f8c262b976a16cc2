// Package sfgraph parses a .sfg text graph spec into an isa.Program, the
// way the teacher's compiler package parses a .subs spec into a
// model.Graph before the teacher's writeSimpleGraph emits it as binary —
// here the binary emission step is cartridge.EncodeProgram instead of a
// bespoke graph format, since this runtime's on-wire unit is already a
// compiled Program rather than a node graph.
//
// Grammar, one statement per line, blank lines and "#" comments ignored:
//
//	tensor NAME DTYPE DIM... [in|out]
//	op OPNAME DEST SRC1 [SRC2]
//
// DTYPE is f32, i32 or u8. Every "op" line becomes its own task over
// DEST's domain, with the strategy the opcode's metadata names; ordinary operand bindings are left at a zero
// byte stride so Bake fills them in, except the window/random-access
// operands of opcodes like matmul, softmax and transpose, which are
// flagged BindingFlagWhole so Bake leaves their zero stride alone (see
// isa.OperandIsWhole). Symbols are only emitted for in/out tensors; every
// other tensor declared is an internal register with no visible name.
package sfgraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BinaryCat17/sf-spec/internal/cartridge"
	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
)

func parseDtype(s string) (tensor.Dtype, error) {
	switch s {
	case "f32":
		return tensor.DtypeF32, nil
	case "i32":
		return tensor.DtypeI32, nil
	case "u8":
		return tensor.DtypeU8, nil
	default:
		return 0, fmt.Errorf("sfgraph: unknown dtype %q", s)
	}
}

// Parse reads a .sfg source and builds the Program it describes.
func Parse(r io.Reader) (*isa.Program, error) {
	p := &isa.Program{}
	regByName := map[string]uint32{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "tensor":
			if err := parseTensorLine(p, regByName, fields, lineNo); err != nil {
				return nil, err
			}
		case "op":
			if err := parseOpLine(p, regByName, fields, lineNo); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("sfgraph: line %d: unknown statement %q", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sfgraph: reading source: %w", err)
	}

	p.Meta = isa.Header{
		InstructionCount: uint32(len(p.Code)),
		TensorCount:      uint32(len(p.TensorInfos)),
		SymbolCount:      uint32(len(p.Symbols)),
		TaskCount:        uint32(len(p.Tasks)),
		BindingCount:     uint32(len(p.Bindings)),
	}
	return p, nil
}

func parseTensorLine(p *isa.Program, regByName map[string]uint32, fields []string, lineNo int) error {
	if len(fields) < 3 {
		return fmt.Errorf("sfgraph: line %d: tensor needs a name and dtype", lineNo)
	}
	name := fields[1]
	if _, dup := regByName[name]; dup {
		return fmt.Errorf("sfgraph: line %d: tensor %q declared twice", lineNo, name)
	}
	dtype, err := parseDtype(fields[2])
	if err != nil {
		return fmt.Errorf("sfgraph: line %d: %w", lineNo, err)
	}

	var dims []int32
	flag := ""
	for _, f := range fields[3:] {
		if f == "in" || f == "out" {
			flag = f
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("sfgraph: line %d: bad dimension %q", lineNo, f)
		}
		dims = append(dims, int32(n))
	}
	if len(dims) == 0 {
		dims = []int32{1}
	}
	if len(dims) > isa.MaxDims {
		return fmt.Errorf("sfgraph: line %d: tensor %q has more than %d dims", lineNo, name, isa.MaxDims)
	}

	var shape [isa.MaxDims]int32
	copy(shape[:], dims)

	regIdx := uint32(len(p.TensorInfos))
	p.TensorInfos = append(p.TensorInfos, isa.TensorDesc{
		Dtype: dtype,
		NDim:  uint8(len(dims)),
		Shape: shape,
	})
	p.TensorData = append(p.TensorData, nil)
	regByName[name] = regIdx

	if flag != "" {
		symFlags := isa.SymbolFlagInput
		if flag == "out" {
			symFlags = isa.SymbolFlagOutput
		}
		p.Symbols = append(p.Symbols, isa.Symbol{
			Name:        name,
			NameHash:    cartridge.HashSymbolName(name),
			RegisterIdx: regIdx,
			Flags:       symFlags,
		})
	}
	return nil
}

func parseOpLine(p *isa.Program, regByName map[string]uint32, fields []string, lineNo int) error {
	if len(fields) < 3 {
		return fmt.Errorf("sfgraph: line %d: op needs an opcode and a destination", lineNo)
	}
	opcode, ok := isa.ByName(fields[1])
	if !ok {
		return fmt.Errorf("sfgraph: line %d: unknown opcode %q", lineNo, fields[1])
	}

	resolve := func(name string) (uint32, error) {
		idx, ok := regByName[name]
		if !ok {
			return 0, fmt.Errorf("sfgraph: line %d: undeclared tensor %q", lineNo, name)
		}
		return idx, nil
	}

	dest, err := resolve(fields[2])
	if err != nil {
		return err
	}
	var src1, src2 uint32 = 0xFFFF, 0xFFFF
	if len(fields) > 3 {
		if src1, err = resolve(fields[3]); err != nil {
			return err
		}
	}
	if len(fields) > 4 {
		if src2, err = resolve(fields[4]); err != nil {
			return err
		}
	}

	meta := isa.Metadata(opcode)
	strategy := isa.StrategyDefault
	if meta != nil {
		strategy = meta.Strategy
	}

	instIdx := uint32(len(p.Code))
	p.Code = append(p.Code, isa.Instruction{
		Opcode: uint16(opcode),
		Dest:   uint16(dest),
		Src1:   uint16(src1),
		Src2:   uint16(src2),
		Src3:   0xFFFF,
		Src4:   0xFFFF,
		Line:   uint16(lineNo),
	})

	// matmul/softmax's window operands and transpose's random-access source
	// must stay whole (zero byte stride) rather than get Bake's ordinary
	// contiguous-fill treatment; dest is always the task's own tiled
	// domain and never whole.
	wholeSrc := meta != nil && isa.OperandIsWhole(meta.Access)

	bindingOffset := uint32(len(p.Bindings))
	seen := map[uint32]bool{}
	addBinding := func(reg uint32, whole bool) {
		if reg == 0xFFFF || seen[reg] {
			return
		}
		seen[reg] = true
		var flags uint16
		if whole {
			flags |= isa.BindingFlagWhole
		}
		p.Bindings = append(p.Bindings, isa.Binding{RegIdx: uint16(reg), Flags: flags})
	}
	addBinding(dest, false)
	addBinding(src1, wholeSrc)
	addBinding(src2, wholeSrc)

	p.Tasks = append(p.Tasks, isa.Task{
		StartInst:     instIdx,
		InstCount:     1,
		DomainReg:     dest,
		Strategy:      strategy,
		BindingOffset: bindingOffset,
		BindingCount:  uint32(len(p.Bindings)) - bindingOffset,
	})
	return nil
}

// Compile parses src and encodes the result as a cartridge, the on-disk
// format cmd/sfrun and cmd/sfbench load.
func Compile(r io.Reader, title string) ([]byte, error) {
	prog, err := Parse(r)
	if err != nil {
		return nil, err
	}
	progBytes, err := cartridge.EncodeProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("sfgraph: encoding program: %w", err)
	}
	header := cartridge.Header{
		Magic:   cartridge.Magic,
		Version: cartridge.Version,
		AppTitle: title,
		Sections: []cartridge.SectionHeader{
			{Name: "PROGRAM", Type: cartridge.SectionProgram, Size: uint32(len(progBytes))},
		},
	}
	return cartridge.Encode(header, map[string][]byte{"PROGRAM": progBytes})
}
