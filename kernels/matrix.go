package kernels

import (
	"math"

	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
)

// matMulKernel computes C[row,col] = sum_k A[row,k]*B[k,col] for the
// output elements in this tile, ported from ops.go's matMul but reading
// operand shape from RegInfo instead of a packed byte header — this
// runtime already carries that metadata on every register. FlagForceDom
// (op_defs.go) means the task's domain is the MxN output, and A/B are
// bound with a zero byte stride so every tile sees them whole.
func matMulKernel(c *exec.Context, inst isa.Instruction) {
	aInfo := c.RegInfo[inst.Src1]
	bInfo := c.RegInfo[inst.Src2]
	if aInfo.NDim != 2 || bInfo.NDim != 2 || aInfo.Shape[1] != bInfo.Shape[0] {
		c.Fail(exec.ErrorShapeMismatch, 0)
		return
	}
	m := int(aInfo.Shape[0])
	k := int(aInfo.Shape[1])
	n := int(bInfo.Shape[1])

	a := exec.AsFloat32(c.RegData[inst.Src1])
	b := exec.AsFloat32(c.RegData[inst.Src2])
	d := exec.AsFloat32(c.RegData[inst.Dest])
	if len(a) < m*k || len(b) < k*n {
		c.Fail(exec.ErrorOutOfBounds, 0)
		return
	}

	// B's column isn't contiguous (stride n), so each one is gathered into
	// a per-call buffer before vectorDot. The context's scratch arena is
	// shared by every concurrently running tile of the task, so it is not
	// used here.
	col := make([]float32, k)

	tile := int(c.TileSize[0])
	for e := 0; e < tile && e < len(d); e++ {
		outIdx := int(c.LinearOffset) + e
		row := outIdx / n
		colIdx := outIdx % n
		if row >= m {
			break
		}
		for kk := 0; kk < k; kk++ {
			col[kk] = b[kk*n+colIdx]
		}
		d[e] = vectorDot(a[row*k:row*k+k], col)
	}
}

// transposeKernel swaps a rank-2 tensor's axes, ported from
// core/layout.go's strided-view approach but realized as an actual copy
// since dest is a distinct register, not an aliased view. Src is bound
// with a zero byte stride (whole matrix visible every tile); dest is
// tiled over its own MxN domain.
func transposeKernel(c *exec.Context, inst isa.Instruction) {
	srcInfo := c.RegInfo[inst.Src1]
	dstInfo := c.RegInfo[inst.Dest]
	if srcInfo.NDim != 2 || dstInfo.NDim != 2 {
		c.Fail(exec.ErrorShapeMismatch, 0)
		return
	}
	rows := int(srcInfo.Shape[0])
	cols := int(srcInfo.Shape[1])

	src := exec.AsFloat32(c.RegData[inst.Src1])
	dst := exec.AsFloat32(c.RegData[inst.Dest])

	tile := int(c.TileSize[0])
	for e := 0; e < tile && e < len(dst); e++ {
		outIdx := int(c.LinearOffset) + e
		dr := outIdx / rows
		dc := outIdx % rows
		srcIdx := dc*cols + dr
		if srcIdx < len(src) {
			dst[e] = src[srcIdx]
		}
	}
}

// reshapeKernel is a flat byte copy: reshape only changes the declared
// shape/strides of a contiguous tensor, never element order, so the tile
// already holds exactly the bytes dest needs.
func reshapeKernel(c *exec.Context, inst isa.Instruction) {
	src := c.RegData[inst.Src1]
	dst := c.RegData[inst.Dest]
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	copy(dst[:n], src[:n])
}

// softmaxKernel computes a numerically-stable softmax over a single tile,
// ported from ops.go's three-pass max/exp/normalize. Unlike Sum/Max/CumSum
// this runtime does not give softmax a dedicated multi-tile merge
// strategy (spec's "backend adapters beyond the CPU dispatcher" are out
// of scope; op_defs.go gives softmax the DEFAULT strategy, so its task runs
// this kernel once per tile): a softmax task must be a single tile to
// normalise over the whole vector. A multi-tile softmax task would
// silently compute one softmax per tile instead of one over the whole
// vector — left as a known limitation, not a silent correctness claim.
func softmaxKernel(c *exec.Context, inst isa.Instruction) {
	x := exec.AsFloat32(c.RegData[inst.Src1])
	d := exec.AsFloat32(c.RegData[inst.Dest])
	n := tileBounds(c, len(x), len(d))
	if n == 0 {
		return
	}

	maxVal := x[0]
	for i := 1; i < n; i++ {
		if x[i] > maxVal {
			maxVal = x[i]
		}
	}

	var sum float32
	for i := 0; i < n; i++ {
		e := float32(math.Exp(float64(x[i] - maxVal)))
		d[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := 0; i < n; i++ {
		d[i] /= sum
	}
}
