// Package kernels provides the opcode->kernel catalog an exec.Dispatcher
// resolves opcodes through at bake time, and the built-in kernel
// implementations behind it.
//
// Ported from the teacher's flat Catalog [256]KernelFn array
// (kernels/ops.go), widened to [isa.MaxOpcode]Fn and given the richer
// (ctx, inst) signature exec.Context mandates — a kernel's only error
// channel is ctx.Fail, never a return value, so Fn is a plain alias of
// exec.KernelFn rather than the teacher's func([]byte).
package kernels

import (
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
)

// Fn is the kernel function signature: one opcode's unit of per-tile work.
type Fn = exec.KernelFn

// Catalog builds the opcode->kernel table. Sum/Max/CumSum are dispatched
// by exec.Dispatcher's REDUCTION/TWO_PASS_SYNC strategies directly against
// the full register (runReduction/runTwoPassSync) rather than through this
// table — their tile-local arithmetic doesn't fit the generic
// independent-tile kernel contract, so their slots are left nil here. A
// task whose Strategy is DEFAULT but whose opcode is one of those three
// fails with ErrorInvalidOp, matching "no kernel registered" for any other
// unimplemented opcode.
func Catalog() *[isa.MaxOpcode]Fn {
	var c [isa.MaxOpcode]Fn
	c[isa.OpNoop] = noopKernel
	c[isa.OpAdd] = addKernel
	c[isa.OpSub] = subKernel
	c[isa.OpMul] = mulKernel
	c[isa.OpDiv] = divKernel
	c[isa.OpRelu] = reluKernel
	c[isa.OpSigmoid] = sigmoidKernel
	c[isa.OpTanh] = tanhKernel
	c[isa.OpSoftmax] = softmaxKernel
	c[isa.OpMatMul] = matMulKernel
	c[isa.OpTranspose] = transposeKernel
	c[isa.OpReshape] = reshapeKernel
	c[isa.OpBroadcast] = broadcastKernel
	return &c
}

// BatchWidth returns the element count a vectorized elementwise kernel
// should process per unrolled iteration, mirroring the teacher's
// optimize.go BatchSize() table — but driven by actual CPU feature
// detection (golang.org/x/sys/cpu) rather than a GOARCH-only guess, since
// an amd64 build without AVX2 should still fall back to a safe width.
func BatchWidth() int {
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX2 {
			return 8
		}
		return 4
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return 4
		}
		return 2
	default:
		return 1
	}
}

func noopKernel(_ *exec.Context, _ isa.Instruction) {}
