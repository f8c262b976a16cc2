// Package backend defines the vtable a compute backend implements: bake a
// program into backend-private scheduling state, dispatch tasks against
// it, and tear both down. internal/backend/cpu is the only implementation
// this runtime ships; the interface exists so a future GPU or remote
// backend can be swapped in without touching internal/state or the
// cartridge loader.
package backend

import (
	"context"

	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/shape"
	"github.com/BinaryCat17/sf-spec/internal/state"
)

// AccessMode describes how a caller intends to touch a mapped tensor.
type AccessMode uint8

const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessReadWrite
)

// Baked is the opaque result of Backend.Bake: whatever per-task scheduling
// state a backend precomputes (binding strides, scratch sizing) against a
// specific program. Callers never inspect it; they pass it back into
// Dispatch and eventually FreeBaked.
type Baked any

// Backend is the vtable every compute backend implements. A single
// Backend value is shared across concurrent RunTask callers; Bake/Dispatch
// must be safe for concurrent use once baked.
type Backend interface {
	// Bake precomputes whatever per-task scheduling state a backend wants
	// ahead of dispatch: binding byte strides against the task's domain
	// register, reduction/sync scratch sizing from the program header.
	Bake(program *isa.Program) (Baked, error)

	// FreeBaked releases resources Bake allocated. Safe to call with a nil
	// Baked from a failed Bake.
	FreeBaked(baked Baked)

	// Dispatch runs one task to completion against st, returning the
	// first error observed by any tile (exec.ErrorNone if none).
	Dispatch(ctx context.Context, program *isa.Program, st *state.State, domain shape.Info, task isa.Task, baked Baked) uint32

	// Shutdown releases the backend's own long-lived resources (worker
	// pool). The backend must not be used after Shutdown returns.
	Shutdown()

	// OnMap is called when a tensor transitions between host/device
	// visibility. The CPU backend implements it as a no-op: CPU memory is
	// always host-visible.
	OnMap(t any, mode AccessMode)
}
