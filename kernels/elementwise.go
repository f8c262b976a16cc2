package kernels

import (
	"math"

	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
)

// tileBounds returns the element count dest's tile-local byte slice holds,
// clamped to ctx.TileSize — never trust a register's full declared shape
// inside a kernel, only the tile it was handed. A broadcast (stride-0)
// operand must NOT be passed into lens: it deliberately exposes only one
// element (see broadcastElem) and would wrongly truncate the whole tile to
// a single output position.
func tileBounds(c *exec.Context, lens ...int) int {
	n := int(c.TileSize[0])
	for _, l := range lens {
		if l < n {
			n = l
		}
	}
	if n < 0 {
		n = 0
	}
	return n
}

// broadcastElem indexes a tile-local operand slice for tile position i,
// honoring ctx.RegStrides: a stride-0 register (spec §4.2's
// get_broadcast_strides projecting a size-1 dim to stride 0) holds exactly
// one element for the whole tile, so every position reads element 0
// instead of i. This is the "plain strided iteration" the broadcast
// contract promises kernels — without it a scalar operand only ever fills
// the tile's first output element.
func broadcastElem(c *exec.Context, reg uint16, i int) int {
	if c.RegStrides[reg] == 0 {
		return 0
	}
	return i
}

func binaryF32(c *exec.Context, inst isa.Instruction, op func(a, b float32) float32) {
	a := exec.AsFloat32(c.RegData[inst.Src1])
	b := exec.AsFloat32(c.RegData[inst.Src2])
	d := exec.AsFloat32(c.RegData[inst.Dest])
	n := tileBounds(c, len(d))
	batch := BatchWidth()
	for i := 0; i < n; i += batch {
		end := i + batch
		if end > n {
			end = n
		}
		for j := i; j < end; j++ {
			d[j] = op(a[broadcastElem(c, inst.Src1, j)], b[broadcastElem(c, inst.Src2, j)])
		}
	}
}

func binaryI32(c *exec.Context, inst isa.Instruction, op func(a, b int32) int32) {
	a := exec.AsInt32(c.RegData[inst.Src1])
	b := exec.AsInt32(c.RegData[inst.Src2])
	d := exec.AsInt32(c.RegData[inst.Dest])
	n := tileBounds(c, len(d))
	for i := 0; i < n; i++ {
		d[i] = op(a[broadcastElem(c, inst.Src1, i)], b[broadcastElem(c, inst.Src2, i)])
	}
}

func dispatchBinary(c *exec.Context, inst isa.Instruction, f32op func(a, b float32) float32, i32op func(a, b int32) int32) {
	switch c.RegInfo[inst.Dest].Dtype {
	case tensor.DtypeF32:
		binaryF32(c, inst, f32op)
	case tensor.DtypeI32:
		binaryI32(c, inst, i32op)
	default:
		c.Fail(exec.ErrorInvalidOp, 0)
	}
}

// addKernel runs the f32 path through vectorAddInPlace (d = a, then d += b)
// so commutative/associative ops (op_defs.go's FlagCommutative|
// FlagAssociative on "add") share the same vectorized primitive a future
// SIMD build would specialize; i32, non-f32 dest, and any broadcast
// (stride-0) operand fall back to the generic per-element loop, since the
// vectorized path assumes both operands walk the tile 1:1 with dest.
func addKernel(c *exec.Context, inst isa.Instruction) {
	if c.RegInfo[inst.Dest].Dtype == tensor.DtypeF32 &&
		c.RegStrides[inst.Src1] != 0 && c.RegStrides[inst.Src2] != 0 {
		a := exec.AsFloat32(c.RegData[inst.Src1])
		b := exec.AsFloat32(c.RegData[inst.Src2])
		d := exec.AsFloat32(c.RegData[inst.Dest])
		n := tileBounds(c, len(a), len(b), len(d))
		copy(d[:n], a[:n])
		vectorAddInPlace(d[:n], b[:n])
		return
	}
	dispatchBinary(c, inst,
		func(a, b float32) float32 { return a + b },
		func(a, b int32) int32 { return a + b })
}

func subKernel(c *exec.Context, inst isa.Instruction) {
	dispatchBinary(c, inst,
		func(a, b float32) float32 { return a - b },
		func(a, b int32) int32 { return a - b })
}

// mulKernel mirrors addKernel's vectorized f32 path via vectorMulInPlace,
// falling back the same way when either operand broadcasts (spec §4.2
// scenario S3: a scalar operand against a full-size one).
func mulKernel(c *exec.Context, inst isa.Instruction) {
	if c.RegInfo[inst.Dest].Dtype == tensor.DtypeF32 &&
		c.RegStrides[inst.Src1] != 0 && c.RegStrides[inst.Src2] != 0 {
		a := exec.AsFloat32(c.RegData[inst.Src1])
		b := exec.AsFloat32(c.RegData[inst.Src2])
		d := exec.AsFloat32(c.RegData[inst.Dest])
		n := tileBounds(c, len(a), len(b), len(d))
		copy(d[:n], a[:n])
		vectorMulInPlace(d[:n], b[:n])
		return
	}
	dispatchBinary(c, inst,
		func(a, b float32) float32 { return a * b },
		func(a, b int32) int32 { return a * b })
}

func divKernel(c *exec.Context, inst isa.Instruction) {
	dispatchBinary(c, inst,
		func(a, b float32) float32 {
			if b == 0 {
				return 0
			}
			return a / b
		},
		func(a, b int32) int32 {
			if b == 0 {
				return 0
			}
			return a / b
		})
}

// reluKernel implements max(0, x), ported from ops.go's relu.
func reluKernel(c *exec.Context, inst isa.Instruction) {
	x := exec.AsFloat32(c.RegData[inst.Src1])
	d := exec.AsFloat32(c.RegData[inst.Dest])
	n := tileBounds(c, len(x), len(d))
	for i := 0; i < n; i++ {
		if x[i] < 0 {
			d[i] = 0
		} else {
			d[i] = x[i]
		}
	}
}

// sigmoidKernel implements the exact logistic function. The teacher's
// x/(1+|x|) fast approximation is dropped: OutForceF32 kernels in this
// runtime are expected to match a reference numerically, not just be fast.
func sigmoidKernel(c *exec.Context, inst isa.Instruction) {
	x := exec.AsFloat32(c.RegData[inst.Src1])
	d := exec.AsFloat32(c.RegData[inst.Dest])
	n := tileBounds(c, len(x), len(d))
	for i := 0; i < n; i++ {
		d[i] = float32(1 / (1 + math.Exp(-float64(x[i]))))
	}
}

// tanhKernel implements hyperbolic tangent via math.Tanh, dropping the
// teacher's rational approximation for the same reason as sigmoidKernel.
func tanhKernel(c *exec.Context, inst isa.Instruction) {
	x := exec.AsFloat32(c.RegData[inst.Src1])
	d := exec.AsFloat32(c.RegData[inst.Dest])
	n := tileBounds(c, len(x), len(d))
	for i := 0; i < n; i++ {
		d[i] = float32(math.Tanh(float64(x[i])))
	}
}

// broadcastKernel replicates a single source element across dest's tile —
// the generator counterpart to host.index.k: a constant-valued register
// fanned out across the domain rather than computed from position.
func broadcastKernel(c *exec.Context, inst isa.Instruction) {
	switch c.RegInfo[inst.Dest].Dtype {
	case tensor.DtypeF32:
		src := exec.AsFloat32(c.RegData[inst.Src1])
		d := exec.AsFloat32(c.RegData[inst.Dest])
		if len(src) == 0 {
			return
		}
		v := src[0]
		n := tileBounds(c, len(d))
		for i := 0; i < n; i++ {
			d[i] = v
		}
	case tensor.DtypeI32:
		src := exec.AsInt32(c.RegData[inst.Src1])
		d := exec.AsInt32(c.RegData[inst.Dest])
		if len(src) == 0 {
			return
		}
		v := src[0]
		n := tileBounds(c, len(d))
		for i := 0; i < n; i++ {
			d[i] = v
		}
	default:
		c.Fail(exec.ErrorInvalidOp, 0)
	}
}
