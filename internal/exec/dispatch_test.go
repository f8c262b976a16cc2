package exec

import (
	"context"
	"testing"

	"github.com/BinaryCat17/sf-spec/internal/backend/cpu"
	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/pool"
	"github.com/BinaryCat17/sf-spec/internal/shape"
	"github.com/BinaryCat17/sf-spec/internal/state"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
	"github.com/BinaryCat17/sf-spec/kernels"
)

func addKernel(c *Context, inst isa.Instruction) {
	af := AsFloat32(c.RegData[inst.Src1])
	bf := AsFloat32(c.RegData[inst.Src2])
	df := AsFloat32(c.RegData[inst.Dest])
	n := int(c.TileSize[0])
	for e := 0; e < n && e < len(df) && e < len(af) && e < len(bf); e++ {
		df[e] = af[e] + bf[e]
	}
}

func buildSumProgram(t *testing.T) (*isa.Program, *state.State) {
	t.Helper()
	p := &isa.Program{
		Code: []isa.Instruction{{Opcode: uint16(isa.OpSum), Dest: 1, Src1: 0, Src2: 0xFFFF, Src3: 0xFFFF, Src4: 0xFFFF}},
		TensorInfos: []isa.TensorDesc{
			{Dtype: tensor.DtypeI32, NDim: 1, Shape: [8]int32{3}},
			{Dtype: tensor.DtypeI32, NDim: 1, Shape: [8]int32{1}},
		},
		TensorData: [][]byte{nil, nil},
		Bindings: []isa.Binding{
			{RegIdx: 0, ByteStride: 4},
			{RegIdx: 1, ByteStride: 0},
		},
		Tasks: []isa.Task{{StartInst: 0, InstCount: 1, DomainReg: 0, Strategy: isa.StrategyReduction, BindingOffset: 0, BindingCount: 2}},
	}
	st, err := state.Create(p, memory.NewArena(4096))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	copy(tensor.AsInt32(st.Registers[0]), []int32{3, 4, 5})
	return p, st
}

func TestDispatchReductionSum(t *testing.T) {
	t.Parallel()
	p, st := buildSumProgram(t)
	defer st.Free()

	pl := pool.New(pool.Desc{NumWorkers: 2})
	defer pl.Shutdown()
	d := &Dispatcher{Pool: pl}

	domain := st.Registers[0].Info.Info
	errKind := d.RunTask(context.Background(), p, st, domain, p.Tasks[0], memory.NewArena(256))
	if errKind != ErrorNone {
		t.Fatalf("RunTask error = %v", errKind)
	}
	got := tensor.AsInt32(st.Registers[1])[0]
	if got != 12 {
		t.Errorf("sum = %d, want 12", got)
	}
}

func buildCumSumProgram(t *testing.T) (*isa.Program, *state.State) {
	t.Helper()
	p := &isa.Program{
		Code: []isa.Instruction{{Opcode: uint16(isa.OpCumSum), Dest: 1, Src1: 0, Src2: 0xFFFF, Src3: 0xFFFF, Src4: 0xFFFF}},
		TensorInfos: []isa.TensorDesc{
			{Dtype: tensor.DtypeI32, NDim: 1, Shape: [8]int32{4}},
			{Dtype: tensor.DtypeI32, NDim: 1, Shape: [8]int32{4}},
		},
		TensorData: [][]byte{nil, nil},
		Bindings: []isa.Binding{
			{RegIdx: 0, ByteStride: 4},
			{RegIdx: 1, ByteStride: 4},
		},
		Tasks: []isa.Task{{StartInst: 0, InstCount: 1, DomainReg: 0, Strategy: isa.StrategyTwoPassSync, BindingOffset: 0, BindingCount: 2}},
	}
	st, err := state.Create(p, memory.NewArena(4096))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	copy(tensor.AsInt32(st.Registers[0]), []int32{1, 1, 1, 1})
	return p, st
}

func TestDispatchTwoPassSyncCumSum(t *testing.T) {
	t.Parallel()
	p, st := buildCumSumProgram(t)
	defer st.Free()

	pl := pool.New(pool.Desc{NumWorkers: 3})
	defer pl.Shutdown()
	d := &Dispatcher{Pool: pl}

	domain := st.Registers[0].Info.Info
	errKind := d.RunTask(context.Background(), p, st, domain, p.Tasks[0], memory.NewArena(256))
	if errKind != ErrorNone {
		t.Fatalf("RunTask error = %v", errKind)
	}
	got := tensor.AsInt32(st.Registers[1])
	want := []int32{1, 2, 3, 4}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("cumsum[%d] = %d, want %d", i, got[i], w)
		}
	}
}

func TestDispatchDefaultAdd(t *testing.T) {
	t.Parallel()
	p := &isa.Program{
		Code: []isa.Instruction{{Opcode: uint16(isa.OpAdd), Dest: 2, Src1: 0, Src2: 1, Src3: 0xFFFF, Src4: 0xFFFF}},
		TensorInfos: []isa.TensorDesc{
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{4}},
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{4}},
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{4}},
		},
		TensorData: [][]byte{nil, nil, nil},
		Bindings: []isa.Binding{
			{RegIdx: 0, ByteStride: 4},
			{RegIdx: 1, ByteStride: 4},
			{RegIdx: 2, ByteStride: 4},
		},
		Tasks: []isa.Task{{StartInst: 0, InstCount: 1, DomainReg: 0, Strategy: isa.StrategyDefault, BindingOffset: 0, BindingCount: 3}},
	}
	st, err := state.Create(p, memory.NewArena(4096))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Free()
	copy(tensor.AsFloat32(st.Registers[0]), []float32{1, 2, 3, 4})
	copy(tensor.AsFloat32(st.Registers[1]), []float32{10, 10, 10, 10})

	var kernels [isa.MaxOpcode]KernelFn
	kernels[isa.OpAdd] = addKernel
	d := &Dispatcher{Pool: pool.New(pool.Desc{NumWorkers: 2}), Kernels: &kernels}
	defer d.Pool.Shutdown()

	domain := st.Registers[0].Info.Info
	errKind := d.RunTask(context.Background(), p, st, domain, p.Tasks[0], memory.NewArena(256))
	if errKind != ErrorNone {
		t.Fatalf("RunTask error = %v", errKind)
	}
	got := tensor.AsFloat32(st.Registers[2])
	want := []float32{11, 12, 13, 14}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("add[%d] = %v, want %v", i, got[i], w)
		}
	}
}

// TestDispatchTransposeThroughBake drives scenario S2 (spec §8) through
// the real cpu.Backend.Bake -> Dispatch path with more workers than the
// transposed matrix has rows, so every tile past the first would read an
// out-of-range source slice if Bake clobbered the source binding's
// deliberate zero stride (isa.BindingFlagWhole) into a tiled one.
func TestDispatchTransposeThroughBake(t *testing.T) {
	t.Parallel()
	p := &isa.Program{
		Code: []isa.Instruction{{Opcode: uint16(isa.OpTranspose), Dest: 1, Src1: 0, Src2: 0xFFFF, Src3: 0xFFFF, Src4: 0xFFFF}},
		TensorInfos: []isa.TensorDesc{
			{Dtype: tensor.DtypeF32, NDim: 2, Shape: [8]int32{4, 3}},
			{Dtype: tensor.DtypeF32, NDim: 2, Shape: [8]int32{3, 4}},
		},
		TensorData: [][]byte{nil, nil},
		Bindings: []isa.Binding{
			{RegIdx: 0, Flags: isa.BindingFlagWhole},
			{RegIdx: 1},
		},
		Tasks: []isa.Task{{StartInst: 0, InstCount: 1, DomainReg: 1, Strategy: isa.StrategyDefault, BindingOffset: 0, BindingCount: 2}},
	}
	st, err := state.Create(p, memory.NewArena(4096))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Free()
	copy(tensor.AsFloat32(st.Registers[0]), []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	be := cpu.New(pool.Desc{NumWorkers: 4}, kernels.Catalog())
	defer be.Shutdown()

	baked, err := be.Bake(p)
	if err != nil {
		t.Fatalf("Bake: %v", err)
	}
	defer be.FreeBaked(baked)

	domain := st.Registers[1].Info.Info
	if errKind := be.Dispatch(context.Background(), p, st, domain, p.Tasks[0], baked); errKind != uint32(ErrorNone) {
		t.Fatalf("Dispatch error = %d", errKind)
	}

	got := tensor.AsFloat32(st.Registers[1])
	want := []float32{1, 4, 7, 10, 2, 5, 8, 11, 3, 6, 9, 12}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("transpose[%d] = %v, want %v", i, got[i], w)
		}
	}
}

// TestDispatchScalarBroadcastMulThroughBake drives scenario S3 (spec §8)
// through the real cpu.Backend.Bake -> Dispatch path: a scalar f32
// operand multiplied against a 1000-element vector across 4 workers. Both
// the kernel's broadcast read (kernels.mulKernel via ctx.RegStrides) and
// Bake's scalar-detection (leaving a count-1 register's stride at zero)
// must hold for every tile, not just the first.
func TestDispatchScalarBroadcastMulThroughBake(t *testing.T) {
	t.Parallel()
	const n = 1000
	p := &isa.Program{
		Code: []isa.Instruction{{Opcode: uint16(isa.OpMul), Dest: 2, Src1: 0, Src2: 1, Src3: 0xFFFF, Src4: 0xFFFF}},
		TensorInfos: []isa.TensorDesc{
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{1}},
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{n}},
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{n}},
		},
		TensorData: [][]byte{nil, nil, nil},
		Bindings: []isa.Binding{
			{RegIdx: 0},
			{RegIdx: 1},
			{RegIdx: 2},
		},
		Tasks: []isa.Task{{StartInst: 0, InstCount: 1, DomainReg: 2, Strategy: isa.StrategyDefault, BindingOffset: 0, BindingCount: 3}},
	}
	st, err := state.Create(p, memory.NewArena(1<<20))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Free()

	tensor.AsFloat32(st.Registers[0])[0] = 2.0
	r1 := tensor.AsFloat32(st.Registers[1])
	for i := range r1 {
		r1[i] = float32(i)
	}

	be := cpu.New(pool.Desc{NumWorkers: 4}, kernels.Catalog())
	defer be.Shutdown()

	baked, err := be.Bake(p)
	if err != nil {
		t.Fatalf("Bake: %v", err)
	}
	defer be.FreeBaked(baked)

	domain := st.Registers[2].Info.Info
	if errKind := be.Dispatch(context.Background(), p, st, domain, p.Tasks[0], baked); errKind != uint32(ErrorNone) {
		t.Fatalf("Dispatch error = %d", errKind)
	}

	got := tensor.AsFloat32(st.Registers[2])
	for i := 0; i < n; i++ {
		want := 2.0 * float32(i)
		if got[i] != want {
			t.Fatalf("mul[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestUnravelRowMajor(t *testing.T) {
	t.Parallel()
	domain := shape.Info{NDim: 2, Shape: [8]int32{2, 3}}
	coords := make([]int32, 2)
	unravel(5, domain, coords)
	if coords[0] != 1 || coords[1] != 2 {
		t.Errorf("coords = %v, want [1 2]", coords)
	}
}
