// Package sionflow is a data-flow tensor runtime: it compiles a graph of
// tensor operations into a flat bytecode program and executes that program
// over an N-dimensional iteration domain on a pool of worker goroutines.
//
// # Architecture Overview
//
// The runtime consists of several leaf-first components:
//
//   - internal/memory: a bump arena and a split/coalesce free-list heap
//     backing both compile-time and run-time allocation.
//   - internal/shape: element counts, stride derivation, NumPy-style
//     broadcasting and broadcast-aware stride projection onto a domain.
//   - internal/tensor: buffers (owned byte storage) and tensors (typed
//     shape+stride views into a buffer), with O(1) view/slice/reshape/
//     transpose and both contiguous and strided copy.
//   - internal/pool: a persistent worker pool driven by atomic job-index
//     dispatch and a done-count condition variable.
//   - internal/isa + internal/cartridge: the instruction set, opcode
//     metadata tables and the on-disk cartridge container a compiled
//     program is loaded from.
//   - internal/state: the live register file a running program reads and
//     writes, with ownership tracking and the global kill-switch atomic.
//   - internal/exec: the per-tile execution context and the dispatcher
//     driving the three dispatch strategies (default, reduction,
//     two-pass-sync).
//   - internal/backend: the pluggable backend interface, with
//     internal/backend/cpu as the mandated CPU implementation.
//   - kernels: the opcode -> kernel catalog and the built-in kernel
//     implementations behind it.
//
// # Basic usage
//
//	// Compile a .sfg graph spec to a cartridge.
//	sfc --title demo examples/vecadd.sfg demo.sfcart
//
//	// Load and run it.
//	sfrun --workers 4 demo.sfcart
//
// # Package structure
//
//   - internal/memory, internal/shape, internal/tensor: the data model.
//   - internal/pool: parallel dispatch primitive.
//   - internal/isa, internal/cartridge: program representation and the
//     binary container format.
//   - internal/state, internal/exec, internal/backend: execution.
//   - kernels: opcode implementations.
//   - internal/sfgraph: a minimal text graph front end used by cmd/sfc.
//   - cmd/sfc, cmd/sfrun, cmd/sfbench: compiler, runtime and benchmark
//     driver binaries.
package sionflow
