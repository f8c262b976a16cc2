package exec

import (
	"math"
	"sync/atomic"

	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/shape"
	"github.com/BinaryCat17/sf-spec/internal/state"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
)

// runReduction implements the REDUCTION strategy: every worker reduces its
// tile into a disjoint partial slot, then a single-threaded merge pass
// combines partials into the destination register in tile-index order —
// the same order for the same (workers, tiles) shape, as required.
func (d *Dispatcher) runReduction(program *isa.Program, st *state.State, domain shape.Info, task isa.Task, bindings []isa.Binding, tileSize, numTiles int, scratch memory.Allocator) ErrorKind {
	if task.InstCount == 0 {
		return ErrorNone
	}
	domainCount := int(shape.CalcCount(domain.Shape[:domain.NDim]))
	inst := program.Code[task.StartInst]
	opcode := isa.Opcode(inst.Opcode)
	destReg := st.Registers[inst.Dest]
	srcReg := st.Registers[inst.Src1]
	dtype := destReg.Info.Dtype
	isMax := opcode == isa.OpMax

	partials := make([]float64, numTiles)
	var firstErr atomic.Uint32

	job := func(jobIdx uint32, _ any, _ any) {
		c := d.buildContext(st, domain, bindings, int(jobIdx), tileSize, domainCount, scratch)
		start := int(c.LinearOffset)
		n := int(c.TileSize[0])

		acc := 0.0
		if isMax {
			acc = math.Inf(-1)
		}
		switch dtype {
		case tensor.DtypeF32:
			data := tensor.AsFloat32(srcReg)
			for e := 0; e < n; e++ {
				v := float64(data[start+e])
				if isMax {
					if v > acc {
						acc = v
					}
				} else {
					acc += v
				}
			}
		case tensor.DtypeI32:
			data := tensor.AsInt32(srcReg)
			for e := 0; e < n; e++ {
				v := float64(data[start+e])
				if isMax {
					if v > acc {
						acc = v
					}
				} else {
					acc += v
				}
			}
		default:
			c.Fail(ErrorInvalidOp, 0)
		}
		partials[jobIdx] = acc
		if c.Error != ErrorNone {
			firstErr.CompareAndSwap(0, uint32(c.Error))
		}
	}

	if d.Pool != nil {
		d.Pool.Run(uint32(numTiles), job, nil)
	} else {
		for j := 0; j < numTiles; j++ {
			job(uint32(j), nil, nil)
		}
	}
	if e := firstErr.Load(); e != 0 {
		return ErrorKind(e)
	}

	merged := 0.0
	if isMax {
		merged = math.Inf(-1)
	}
	for _, p := range partials {
		if isMax {
			if p > merged {
				merged = p
			}
		} else {
			merged += p
		}
	}

	switch dtype {
	case tensor.DtypeF32:
		out := tensor.AsFloat32(destReg)
		if len(out) > 0 {
			out[0] = float32(merged)
		}
	case tensor.DtypeI32:
		out := tensor.AsInt32(destReg)
		if len(out) > 0 {
			out[0] = int32(merged)
		}
	}
	return ErrorNone
}

// runTwoPassSync implements prefix-style ops (CumSum): phase A computes a
// local running sum per tile directly into dest plus the tile's total;
// phase B is a serial sweep turning per-tile totals into exclusive
// offsets; phase C re-enters every tile with SyncPass=1 to add its offset.
func (d *Dispatcher) runTwoPassSync(program *isa.Program, st *state.State, domain shape.Info, task isa.Task, bindings []isa.Binding, tileSize, numTiles int, scratch memory.Allocator) ErrorKind {
	if task.InstCount == 0 {
		return ErrorNone
	}
	domainCount := int(shape.CalcCount(domain.Shape[:domain.NDim]))
	inst := program.Code[task.StartInst]
	destReg := st.Registers[inst.Dest]
	srcReg := st.Registers[inst.Src1]
	dtype := destReg.Info.Dtype

	localTotals := make([]float64, numTiles)
	var firstErr atomic.Uint32

	phaseA := func(jobIdx uint32, _ any, _ any) {
		c := d.buildContext(st, domain, bindings, int(jobIdx), tileSize, domainCount, scratch)
		start := int(c.LinearOffset)
		n := int(c.TileSize[0])

		switch dtype {
		case tensor.DtypeF32:
			src := tensor.AsFloat32(srcReg)
			dst := tensor.AsFloat32(destReg)
			var running float32
			for e := 0; e < n; e++ {
				running += src[start+e]
				dst[start+e] = running
			}
			localTotals[jobIdx] = float64(running)
		case tensor.DtypeI32:
			src := tensor.AsInt32(srcReg)
			dst := tensor.AsInt32(destReg)
			var running int32
			for e := 0; e < n; e++ {
				running += src[start+e]
				dst[start+e] = running
			}
			localTotals[jobIdx] = float64(running)
		default:
			c.Fail(ErrorInvalidOp, 0)
		}
		if c.Error != ErrorNone {
			firstErr.CompareAndSwap(0, uint32(c.Error))
		}
	}

	if d.Pool != nil {
		d.Pool.Run(uint32(numTiles), phaseA, nil)
	} else {
		for j := 0; j < numTiles; j++ {
			phaseA(uint32(j), nil, nil)
		}
	}
	if e := firstErr.Load(); e != 0 {
		return ErrorKind(e)
	}

	offsets := make([]float64, numTiles)
	running := 0.0
	for i := 0; i < numTiles; i++ {
		offsets[i] = running
		running += localTotals[i]
	}

	phaseC := func(jobIdx uint32, _ any, _ any) {
		c := d.buildContext(st, domain, bindings, int(jobIdx), tileSize, domainCount, scratch)
		c.SyncPass = 1
		start := int(c.LinearOffset)
		n := int(c.TileSize[0])
		off := offsets[jobIdx]

		switch dtype {
		case tensor.DtypeF32:
			dst := tensor.AsFloat32(destReg)
			for e := 0; e < n; e++ {
				dst[start+e] += float32(off)
			}
		case tensor.DtypeI32:
			dst := tensor.AsInt32(destReg)
			for e := 0; e < n; e++ {
				dst[start+e] += int32(off)
			}
		}
	}

	if d.Pool != nil {
		d.Pool.Run(uint32(numTiles), phaseC, nil)
	} else {
		for j := 0; j < numTiles; j++ {
			phaseC(uint32(j), nil, nil)
		}
	}
	return ErrorNone
}
