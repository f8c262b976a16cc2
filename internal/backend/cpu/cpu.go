// Package cpu is the mandated CPU backend: the only backend.Backend this
// runtime ships. It owns the persistent worker pool and an
// exec.Dispatcher, and bakes a program's bindings/scratch sizing once so
// repeated RunTask calls never recompute them.
package cpu

import (
	"context"
	"fmt"

	"github.com/BinaryCat17/sf-spec/internal/backend"
	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/pool"
	"github.com/BinaryCat17/sf-spec/internal/shape"
	"github.com/BinaryCat17/sf-spec/internal/state"
)

// Backend is the CPU realization of backend.Backend: a persistent
// pool.Pool driving an exec.Dispatcher.
type Backend struct {
	pool       *pool.Pool
	dispatcher *exec.Dispatcher
	ownsPool   bool
}

// New builds a CPU backend with its own worker pool sized desc.NumWorkers
// (0 = one per logical CPU, see pool.DefaultWorkerCount). kernels is the
// opcode->kernel table the dispatcher resolves opcodes through; nil
// entries fail a task with ErrorInvalidOp the first time that opcode is
// reached.
func New(desc pool.Desc, kernels *[isa.MaxOpcode]exec.KernelFn) *Backend {
	p := pool.New(desc)
	return &Backend{
		pool:       p,
		dispatcher: &exec.Dispatcher{Pool: p, Kernels: kernels},
		ownsPool:   true,
	}
}

// baked is the CPU backend's Bake result: a scratch arena sized from the
// program's header and reset before every dispatch, plus the binding
// table with any zero strides filled in.
type baked struct {
	program *isa.Program
	scratch *memory.Arena
}

const minScratchBytes = 4096

// Bake fills in any binding whose ByteStride was left zero by the
// compiler — assuming a contiguous layout, one element of the bound
// register's own dtype per domain position — and pre-allocates a scratch arena sized by the
// program header's reduction/sync scratch fields (spec §4.5), with a
// floor so a program that declares zero scratch still gets room for a
// kernel's incidental temporaries.
//
// Two kinds of zero stride must survive Bake untouched rather than being
// filled in as if merely unbaked:
//
//   - BindingFlagWhole — a deliberate "see the whole register every tile"
//     request (matmul's A/B, transpose's source — see isa.OperandIsWhole);
//     these kernels index the operand by their own formula, not a tiled
//     1:1 walk.
//   - A register whose own element count is 1 — a true scalar being
//     broadcast against a larger domain (spec §4.2's
//     get_broadcast_strides: a size-1 dim projects to stride 0). Filling
//     its stride to dtype.Size() would make buildContext try to
//     tile-slice a one-element buffer, leaving every tile past the first
//     with a nil RegData slice.
func (b *Backend) Bake(program *isa.Program) (backend.Baked, error) {
	if program == nil {
		return nil, fmt.Errorf("cpu: Bake: nil program")
	}
	for ti := range program.Tasks {
		task := program.Tasks[ti]
		bindings := program.Bindings[task.BindingOffset : task.BindingOffset+task.BindingCount]
		for bi := range bindings {
			bnd := &bindings[bi]
			if bnd.ByteStride != 0 {
				continue
			}
			if bnd.Flags&isa.BindingFlagWhole != 0 {
				continue
			}
			if int(bnd.RegIdx) >= len(program.TensorInfos) {
				return nil, fmt.Errorf("cpu: Bake: task %d binding %d register %d out of range", ti, bi, bnd.RegIdx)
			}
			td := program.TensorInfos[bnd.RegIdx]
			if td.Flags&isa.TensorFlagAlias == 0 && td.NDim > 0 && shape.CalcCount(td.Shape[:td.NDim]) > 1 {
				bnd.ByteStride = int32(td.Dtype.Size())
			}
		}
	}

	scratchSize := int(program.Meta.ReductionScratchSize)
	if int(program.Meta.SyncScratchSize) > scratchSize {
		scratchSize = int(program.Meta.SyncScratchSize)
	}
	if scratchSize < minScratchBytes {
		scratchSize = minScratchBytes
	}

	return &baked{program: program, scratch: memory.NewArena(scratchSize)}, nil
}

// FreeBaked is a no-op: the scratch arena is backed by a plain Go slice,
// released by the garbage collector once the Baked value is dropped.
func (b *Backend) FreeBaked(_ backend.Baked) {}

// Dispatch resets the baked scratch arena and runs task to completion.
func (b *Backend) Dispatch(ctx context.Context, program *isa.Program, st *state.State, domain shape.Info, task isa.Task, bk backend.Baked) uint32 {
	bp, ok := bk.(*baked)
	if !ok || bp == nil {
		bp = &baked{program: program, scratch: memory.NewArena(minScratchBytes)}
	}
	bp.scratch.Reset()
	return uint32(b.dispatcher.RunTask(ctx, program, st, domain, task, bp.scratch))
}

// Shutdown stops the backend's worker pool. The backend must not be used
// afterward.
func (b *Backend) Shutdown() {
	if b.ownsPool && b.pool != nil {
		b.pool.Shutdown()
	}
}

// OnMap is a no-op: CPU-resident tensors are always host-visible, there
// is no device-side mapping step to perform.
func (b *Backend) OnMap(_ any, _ backend.AccessMode) {}
