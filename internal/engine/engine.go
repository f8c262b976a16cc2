// Package engine ties program, state and backend together: Run walks a
// program's tasks in order and drives each one through a backend.Backend,
// the way the teacher's Engine.Run/Execute drives its own TaskGroups
// through a StreamScheduler, but against this runtime's task/binding
// model instead of the teacher's dependency-graph scheduler.
package engine

import (
	"context"

	"github.com/BinaryCat17/sf-spec/internal/backend"
	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/sflog"
	"github.com/BinaryCat17/sf-spec/internal/state"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
)

// Run executes every task in program, in program order, against st. ctx
// cancellation is checked once per task boundary: a task already
// in-flight always runs to completion (kernels never suspend), but a
// cancelled context stops the next task from starting. This is additive
// to, not a replacement for, the kill switch in st: once any task writes
// a non-NONE error, Run stops dispatching before either check matters,
// since the failing Dispatch call's own return value short-circuits the
// loop.
//
// domain is the caller's top-level iteration domain, used only as a
// fallback for a task whose DomainReg does not resolve to a live
// register (malformed program); ordinarily a task's domain comes from
// the register st.Registers[task.DomainReg] was bound or allocated with,
// since that is what DEFAULT/REDUCTION/TWO_PASS_SYNC tasks actually tile
// over.
func Run(ctx context.Context, st *state.State, program *isa.Program, be backend.Backend, domain tensor.Tensor) exec.ErrorKind {
	baked, err := be.Bake(program)
	if err != nil {
		sflog.L().Error("engine: bake failed", "run_id", st.RunID, "error", err)
		return exec.ErrorRuntime
	}
	defer be.FreeBaked(baked)

	for i, task := range program.Tasks {
		select {
		case <-ctx.Done():
			sflog.L().Warn("engine: context cancelled before task", "run_id", st.RunID, "task", i)
			return exec.ErrorRuntime
		default:
		}

		if kind := exec.ErrorKind(st.Error()); kind != exec.ErrorNone {
			return kind
		}

		taskDomain := domain.Info.Info
		if int(task.DomainReg) < len(st.Registers) {
			taskDomain = st.Registers[task.DomainReg].Info.Info
		}

		if errKind := exec.ErrorKind(be.Dispatch(ctx, program, st, taskDomain, task, baked)); errKind != exec.ErrorNone {
			sflog.L().Error("engine: task failed", "run_id", st.RunID, "task", i, "kind", errKind.String())
			return errKind
		}
	}
	return exec.ErrorNone
}
