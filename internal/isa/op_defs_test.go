package isa

import "testing"

func TestMetadataKnownOpcode(t *testing.T) {
	t.Parallel()
	m := Metadata(OpAdd)
	if m == nil {
		t.Fatal("expected metadata for OpAdd")
	}
	if m.Name != "add" {
		t.Errorf("name = %q, want add", m.Name)
	}
	if m.Flags&FlagCommutative == 0 {
		t.Error("add should be commutative")
	}
}

func TestMetadataUnknownOpcode(t *testing.T) {
	t.Parallel()
	if m := Metadata(Opcode(999)); m != nil {
		t.Errorf("expected nil metadata for unknown opcode, got %+v", m)
	}
}

func TestNameFallback(t *testing.T) {
	t.Parallel()
	if got := Name(Opcode(999)); got != "UNKNOWN" {
		t.Errorf("Name() = %q, want UNKNOWN", got)
	}
}

func TestReductionStrategyAssignment(t *testing.T) {
	t.Parallel()
	for _, op := range []Opcode{OpSum, OpMax} {
		m := Metadata(op)
		if m.Strategy != StrategyReduction {
			t.Errorf("opcode %v: strategy = %v, want REDUCTION", op, m.Strategy)
		}
	}
	if m := Metadata(OpCumSum); m.Strategy != StrategyTwoPassSync {
		t.Errorf("cumsum strategy = %v, want TWO_PASS_SYNC", m.Strategy)
	}
}

func TestFNV1aStable(t *testing.T) {
	t.Parallel()
	a := FNV1a("host.index.0")
	b := FNV1a("host.index.0")
	if a != b {
		t.Error("FNV1a must be deterministic")
	}
	if a == FNV1a("host.index.1") {
		t.Error("distinct names should (almost always) hash differently")
	}
}
