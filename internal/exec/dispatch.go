package exec

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/pool"
	"github.com/BinaryCat17/sf-spec/internal/shape"
	"github.com/BinaryCat17/sf-spec/internal/state"
)

var tracer = otel.Tracer("github.com/BinaryCat17/sf-spec/internal/exec")

// Dispatcher owns the worker pool and the opcode->kernel table a CPU
// backend resolves at bake time. The kernel table's type lives here
// (not in package kernels) so kernels can depend on exec's Context
// without creating an import cycle.
type Dispatcher struct {
	Pool    *pool.Pool
	Kernels *[isa.MaxOpcode]KernelFn
}

func ceilDiv(n, d int) int {
	if d <= 0 {
		return n
	}
	return (n + d - 1) / d
}

func numWorkers(p *pool.Pool) int {
	if p == nil {
		return 1
	}
	return p.NumWorkers()
}

// RunTask dispatches one task to completion, returning the first error
// observed by any tile (ErrorNone if none).
func (d *Dispatcher) RunTask(ctx context.Context, program *isa.Program, st *state.State, domain shape.Info, task isa.Task, scratch memory.Allocator) ErrorKind {
	spanCtx, span := tracer.Start(ctx, "exec.RunTask")
	defer span.End()

	workers := numWorkers(d.Pool)
	domainCount := int(shape.CalcCount(domain.Shape[:domain.NDim]))
	tileSize := ceilDiv(domainCount, workers)
	if tileSize < 1 {
		tileSize = 1
	}
	numTiles := ceilDiv(domainCount, tileSize)
	if numTiles < 1 {
		numTiles = 1
	}

	span.SetAttributes(
		attribute.String("strategy", task.Strategy.String()),
		attribute.Int("workers", workers),
		attribute.Int("tiles", numTiles),
	)
	_ = spanCtx

	bindings := program.Bindings[task.BindingOffset : task.BindingOffset+task.BindingCount]

	var errKind ErrorKind
	switch task.Strategy {
	case isa.StrategyDefault:
		errKind = d.runDefault(program, st, domain, task, bindings, tileSize, numTiles, scratch)
	case isa.StrategyReduction:
		errKind = d.runReduction(program, st, domain, task, bindings, tileSize, numTiles, scratch)
	case isa.StrategyTwoPassSync:
		errKind = d.runTwoPassSync(program, st, domain, task, bindings, tileSize, numTiles, scratch)
	default:
		errKind = ErrorInvalidOp
	}

	if errKind != ErrorNone {
		st.SetError(uint32(errKind))
		span.SetStatus(codes.Error, errKind.String())
	}
	return errKind
}

// buildContext fills a fresh Context for tile jobIdx: register pointers
// rebased to the tile's linear offset, tile/domain shape, and the
// allocator kernels use for scratch (one allocator shared by every tile
// of the task; the CPU backend resets it once per Dispatch, not per tile).
func (d *Dispatcher) buildContext(st *state.State, domain shape.Info, bindings []isa.Binding, jobIdx, tileSize, domainCount int, scratch memory.Allocator) *Context {
	c := &Context{Allocator: scratch, NDim: domain.NDim, JobIdx: uint32(jobIdx)}
	copy(c.DomainShape[:], domain.Shape[:domain.NDim])

	linearOffset := jobIdx * tileSize
	activeSize := tileSize
	if linearOffset+activeSize > domainCount {
		activeSize = domainCount - linearOffset
	}
	if activeSize < 0 {
		activeSize = 0
	}
	c.LinearOffset = uint32(linearOffset)
	c.TileSize[0] = int32(activeSize)
	c.TileOffset[0] = int32(linearOffset)

	for _, b := range bindings {
		reg := st.Registers[b.RegIdx]
		c.RegInfo[b.RegIdx] = reg.Info
		c.RegStrides[b.RegIdx] = b.ByteStride
		if reg.Buf == nil {
			continue
		}

		byteStart := reg.ByteOffset + linearOffset*int(b.ByteStride)
		elemSize := reg.Info.Dtype.Size()
		tileBytes := activeSize * elemSize
		if b.ByteStride == 0 {
			// A zero stride means this register never advances per domain
			// element: every tile sees the same, full view, not a
			// per-tile slice. Covers both a scalar reduction accumulator
			// (whose buffer is exactly one element) and a whole-tensor
			// operand (matmul's A/B) that every tile must see in full.
			byteStart = reg.ByteOffset
			tileBytes = len(reg.Buf.Data) - byteStart
		}
		end := byteStart + tileBytes

		if byteStart < 0 || byteStart > len(reg.Buf.Data) {
			continue
		}
		if end > len(reg.Buf.Data) {
			end = len(reg.Buf.Data)
		}
		c.RegData[b.RegIdx] = reg.Buf.Data[byteStart:end]
	}
	return c
}

// fillBuiltins writes host.index.k provider values into their bound
// symbol registers, once per tile, before a DEFAULT-strategy instruction
// walk.
func (d *Dispatcher) fillBuiltins(c *Context, program *isa.Program, domain shape.Info) {
	for _, sym := range program.Symbols {
		if sym.BuiltinID != isa.BuiltinIndex {
			continue
		}
		data := c.RegData[sym.RegisterIdx]
		if data == nil {
			continue
		}
		out := AsInt32(data)
		n := int(c.TileSize[0])
		coords := make([]int32, domain.NDim)
		for e := 0; e < n && e < len(out); e++ {
			unravel(int(c.LinearOffset)+e, domain, coords)
			axis := int(sym.BuiltinAxis)
			if axis < len(coords) {
				out[e] = coords[axis]
			}
		}
	}
}

func unravel(linear int, domain shape.Info, coords []int32) {
	rem := linear
	for k := int(domain.NDim) - 1; k >= 0; k-- {
		d := int(domain.Shape[k])
		if d <= 0 {
			d = 1
		}
		coords[k] = int32(rem % d)
		rem /= d
	}
}

func (d *Dispatcher) walkInstructions(c *Context, program *isa.Program, task isa.Task) {
	for i := task.StartInst; i < task.StartInst+task.InstCount; i++ {
		if c.Error != ErrorNone {
			return
		}
		inst := program.Code[i]
		fn := d.Kernels[inst.Opcode]
		if fn == nil {
			c.Fail(ErrorInvalidOp, 0)
			return
		}
		fn(c, inst)
	}
}

func (d *Dispatcher) runDefault(program *isa.Program, st *state.State, domain shape.Info, task isa.Task, bindings []isa.Binding, tileSize, numTiles int, scratch memory.Allocator) ErrorKind {
	domainCount := int(shape.CalcCount(domain.Shape[:domain.NDim]))
	var firstErr atomic.Uint32

	job := func(jobIdx uint32, threadLocal any, userData any) {
		c := d.buildContext(st, domain, bindings, int(jobIdx), tileSize, domainCount, scratch)
		d.fillBuiltins(c, program, domain)
		d.walkInstructions(c, program, task)
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
	return ErrorKind(firstErr.Load())
}
