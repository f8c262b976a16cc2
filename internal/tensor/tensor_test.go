package tensor

import (
	"testing"

	"github.com/BinaryCat17/sf-spec/internal/memory"
)

func TestTensorAllocBoundsInvariant(t *testing.T) {
	t.Parallel()
	alloc := memory.NewArena(4096)
	info := InitContiguous(DtypeF32, []int32{3, 4})
	tn, err := Alloc(info, alloc)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if int64(tn.ByteOffset)+tn.Info.Bytes() > int64(tn.Buf.SizeBytes) {
		t.Errorf("invariant violated: offset+size exceeds buffer size_bytes")
	}
}

func TestReshapePreservesCountAndOrder(t *testing.T) {
	t.Parallel()
	alloc := memory.NewArena(4096)
	info := InitContiguous(DtypeF32, []int32{2, 3})
	tn, err := Alloc(info, alloc)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	vals := AsFloat32(tn)
	for i := range vals {
		vals[i] = float32(i)
	}

	reshaped, err := Reshape(tn, []int32{3, 2})
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	if reshaped.Info.Count() != tn.Info.Count() {
		t.Fatalf("count mismatch: %d vs %d", reshaped.Info.Count(), tn.Info.Count())
	}
	rv := AsFloat32(reshaped)
	for i := range rv {
		if rv[i] != float32(i) {
			t.Errorf("row-major sequence broken at %d: got %v", i, rv[i])
		}
	}
}

func TestTransposeTwiceIsIdentity(t *testing.T) {
	t.Parallel()
	alloc := memory.NewArena(4096)
	info := InitContiguous(DtypeF32, []int32{4, 3})
	tn, err := Alloc(info, alloc)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	once, err := Transpose(tn)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}
	twice, err := Transpose(once)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}

	if twice.Info.Shape != tn.Info.Shape || twice.Info.Strides != tn.Info.Strides {
		t.Errorf("transpose(transpose(t)) != t at metadata level")
	}
}

func TestTransposeRequiresRank2(t *testing.T) {
	t.Parallel()
	alloc := memory.NewArena(4096)
	info := InitContiguous(DtypeF32, []int32{2, 3, 4})
	tn, _ := Alloc(info, alloc)
	if _, err := Transpose(tn); err != ErrRankMismatch {
		t.Fatalf("expected ErrRankMismatch, got %v", err)
	}
}

func TestCopyStridedHandlesNonContiguous(t *testing.T) {
	t.Parallel()
	alloc := memory.NewArena(4096)
	srcInfo := InitContiguous(DtypeF32, []int32{4, 3})
	src, _ := Alloc(srcInfo, alloc)
	sv := AsFloat32(src)
	for i := range sv {
		sv[i] = float32(i)
	}

	transposed, err := Transpose(src)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}

	dstInfo := InitContiguous(DtypeF32, []int32{3, 4})
	dst, _ := Alloc(dstInfo, alloc)

	if err := CopyStrided(dst, transposed); err != nil {
		t.Fatalf("CopyStrided failed: %v", err)
	}

	dv := AsFloat32(dst)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			want := sv[c*3+r]
			got := dv[r*4+c]
			if got != want {
				t.Errorf("at [%d,%d]: got %v want %v", r, c, got, want)
			}
		}
	}
}

func TestSliceOutOfBounds(t *testing.T) {
	t.Parallel()
	alloc := memory.NewArena(4096)
	info := InitContiguous(DtypeF32, []int32{4})
	tn, _ := Alloc(info, alloc)
	if _, err := Slice(tn, 2, 10); err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}
