package state

import (
	"errors"
	"testing"

	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
)

func testProgram() *isa.Program {
	return &isa.Program{
		TensorInfos: []isa.TensorDesc{
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{4}},
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{4}, IsConstant: true, DataSize: 16},
			{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{4}, Flags: isa.TensorFlagAlias},
		},
		TensorData: [][]byte{nil, {0, 0, 128, 63, 0, 0, 0, 64, 0, 0, 64, 64, 0, 0, 128, 64}, nil},
		Symbols: []isa.Symbol{
			{Name: "in", NameHash: 1, RegisterIdx: 0, Flags: isa.SymbolFlagInput},
			{Name: "out", NameHash: 2, RegisterIdx: 2, Flags: isa.SymbolFlagOutput},
		},
	}
}

func TestCreateAllocatesAndLoadsConstants(t *testing.T) {
	t.Parallel()
	p := testProgram()
	arena := memory.NewArena(4096)
	st, err := Create(p, arena)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Free()

	if len(st.Registers) != 3 {
		t.Fatalf("register count = %d, want 3", len(st.Registers))
	}
	floats := tensor.AsFloat32(st.Registers[1])
	want := []float32{1, 2, 3, 4}
	for i, f := range floats {
		if f != want[i] {
			t.Errorf("constant[%d] = %v, want %v", i, f, want[i])
		}
	}
	if st.Registers[2].Buf != nil {
		t.Error("alias register should start with no backing buffer")
	}
}

func TestBindRequiresInputOutputFlag(t *testing.T) {
	t.Parallel()
	p := &isa.Program{
		TensorInfos: []isa.TensorDesc{{Dtype: tensor.DtypeF32, NDim: 1, Shape: [8]int32{2}}},
		TensorData:  [][]byte{nil},
		Symbols:     []isa.Symbol{{Name: "internal", NameHash: 5, RegisterIdx: 0}},
	}
	st, err := Create(p, memory.NewArena(1024))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Free()

	view, err := tensor.Alloc(tensor.InitContiguous(tensor.DtypeF32, []int32{2}), memory.NewArena(64))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := st.Bind(5, view); !errors.Is(err, ErrNotBindable) {
		t.Fatalf("Bind err = %v, want ErrNotBindable", err)
	}
}

func TestBindAndReadRoundTrip(t *testing.T) {
	t.Parallel()
	p := testProgram()
	st, err := Create(p, memory.NewArena(4096))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer st.Free()

	out, err := tensor.Alloc(tensor.InitContiguous(tensor.DtypeF32, []int32{4}), memory.NewArena(64))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := st.Bind(2, out); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := st.Read(2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Buf != out.Buf {
		t.Error("Read should return the just-bound tensor")
	}
}

func TestSetErrorFirstWriterWins(t *testing.T) {
	t.Parallel()
	st := &State{}
	if ok := st.SetError(3); !ok {
		t.Fatal("first SetError should win")
	}
	if ok := st.SetError(7); ok {
		t.Fatal("second SetError should not win")
	}
	if st.Error() != 3 {
		t.Errorf("Error() = %d, want 3", st.Error())
	}
}

func TestReadUnknownSymbol(t *testing.T) {
	t.Parallel()
	st := &State{symByHash: map[uint32]int{}}
	if _, err := st.Read(999); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
}
