package shape

import "testing"

func TestCalcStrides(t *testing.T) {
	t.Parallel()
	info := Info{NDim: 3, Shape: [MaxDims]int32{2, 3, 4}}
	CalcStrides(&info)
	want := [3]int32{12, 4, 1}
	for i, w := range want {
		if info.Strides[i] != w {
			t.Errorf("stride[%d] = %d, want %d", i, info.Strides[i], w)
		}
	}
}

func TestIsScalar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		info Info
		want bool
	}{
		{"rank0", Info{NDim: 0}, true},
		{"all ones", Info{NDim: 3, Shape: [MaxDims]int32{1, 1, 1}}, true},
		{"not scalar", Info{NDim: 2, Shape: [MaxDims]int32{1, 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsScalar(&tt.info); got != tt.want {
				t.Errorf("IsScalar() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBroadcastSymmetric(t *testing.T) {
	t.Parallel()
	a := Info{NDim: 2, Shape: [MaxDims]int32{1, 4}}
	b := Info{NDim: 2, Shape: [MaxDims]int32{3, 4}}

	ab, err := Broadcast(&a, &b)
	if err != nil {
		t.Fatalf("Broadcast(a,b) failed: %v", err)
	}
	ba, err := Broadcast(&b, &a)
	if err != nil {
		t.Fatalf("Broadcast(b,a) failed: %v", err)
	}
	for i := 0; i < int(ab.NDim); i++ {
		if ab.Shape[i] != ba.Shape[i] {
			t.Errorf("shape mismatch at %d: %d vs %d", i, ab.Shape[i], ba.Shape[i])
		}
	}
}

func TestBroadcastIncompatible(t *testing.T) {
	t.Parallel()
	a := Info{NDim: 2, Shape: [MaxDims]int32{2, 3}}
	b := Info{NDim: 2, Shape: [MaxDims]int32{4, 3}}
	if _, err := Broadcast(&a, &b); err == nil {
		t.Fatal("expected incompatible broadcast error")
	}
}

func TestBroadcastStridesScalarIsAllZero(t *testing.T) {
	t.Parallel()
	scalar := Info{NDim: 0}
	domain := Info{NDim: 2, Shape: [MaxDims]int32{3, 4}}
	CalcStrides(&domain)

	strides := BroadcastStrides(&scalar, &domain)
	for i, s := range strides {
		if s != 0 {
			t.Errorf("stride[%d] = %d, want 0", i, s)
		}
	}
}

func TestBroadcastStridesRightAlign(t *testing.T) {
	t.Parallel()
	// Tensor shape [4] (stride 1), domain shape [3,4].
	tensor := Info{NDim: 1, Shape: [MaxDims]int32{4}}
	CalcStrides(&tensor)
	domain := Info{NDim: 2, Shape: [MaxDims]int32{3, 4}}
	CalcStrides(&domain)

	strides := BroadcastStrides(&tensor, &domain)
	if strides[0] != 0 {
		t.Errorf("missing leading domain dim should project to stride 0, got %d", strides[0])
	}
	if strides[1] != tensor.Strides[0] {
		t.Errorf("matching trailing dim should keep native stride, got %d want %d", strides[1], tensor.Strides[0])
	}
}

func TestNormalizeDropsOnes(t *testing.T) {
	t.Parallel()
	info := Info{NDim: 3, Shape: [MaxDims]int32{1, 5, 1}}
	Normalize(&info)
	if info.NDim != 1 || info.Shape[0] != 5 {
		t.Errorf("Normalize() = ndim=%d shape=%v, want ndim=1 shape=[5]", info.NDim, info.Shape[:info.NDim])
	}
}
