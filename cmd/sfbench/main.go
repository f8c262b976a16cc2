// Command sfbench times repeated dispatch of small in-memory programs
// through the real engine/backend/dispatcher stack, the sionflow analogue
// of the teacher's sublperf. Unlike sublperf, which calls kernel functions
// directly, sfbench always goes through cartridge encode/decode, state
// creation and engine.Run, so the numbers it reports include dispatch and
// tiling overhead rather than measuring a kernel in isolation.
package main

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BinaryCat17/sf-spec/internal/backend/cpu"
	"github.com/BinaryCat17/sf-spec/internal/cartridge"
	"github.com/BinaryCat17/sf-spec/internal/engine"
	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/pool"
	"github.com/BinaryCat17/sf-spec/internal/sfgraph"
	"github.com/BinaryCat17/sf-spec/internal/state"
	"github.com/BinaryCat17/sf-spec/kernels"
)

// benchProgram is a named .sfg source plus the element count its domain
// register carries, used to report throughput in elements/second.
type benchProgram struct {
	name   string
	source string
	domain int
}

func programsFor(size int) []benchProgram {
	return []benchProgram{
		{
			name:   "vector-add",
			domain: size,
			source: fmt.Sprintf("tensor a f32 %d in\ntensor b f32 %d in\ntensor c f32 %d out\nop add c a b\n", size, size, size),
		},
		{
			name:   "vector-mul",
			domain: size,
			source: fmt.Sprintf("tensor a f32 %d in\ntensor b f32 %d in\ntensor c f32 %d out\nop mul c a b\n", size, size, size),
		},
		{
			name:   "relu",
			domain: size,
			source: fmt.Sprintf("tensor a f32 %d in\ntensor c f32 %d out\nop relu c a\n", size, size),
		},
		{
			name:   "sum-reduce",
			domain: size,
			source: fmt.Sprintf("tensor a f32 %d in\ntensor c f32 1 out\nop sum c a\n", size),
		},
		{
			name:   "cumsum",
			domain: size,
			source: fmt.Sprintf("tensor a f32 %d in\ntensor c f32 %d out\nop cumsum c a\n", size, size),
		},
	}
}

func main() {
	var (
		size    int
		iter    int
		workers int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "sfbench",
		Short: "Time dispatch of built-in benchmark programs through the real engine",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(size, iter, workers, verbose)
		},
	}
	cmd.Flags().IntVar(&size, "size", 1<<16, "domain element count")
	cmd.Flags().IntVar(&iter, "iter", 100, "dispatch iterations per program")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "dispatch worker count")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print per-iteration timing")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(size, iter, workers int, verbose bool) error {
	fmt.Printf("SionFlow Dispatch Benchmark\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("Workers: %d\n", workers)
	fmt.Printf("Domain size: %d elements\n", size)
	fmt.Printf("Iterations: %d\n\n", iter)

	catalog := kernels.Catalog()
	be := cpu.New(pool.Desc{NumWorkers: workers}, catalog)
	defer be.Shutdown()

	for _, bp := range programsFor(size) {
		if err := runOne(be, bp, iter, verbose); err != nil {
			return fmt.Errorf("sfbench: %s: %w", bp.name, err)
		}
	}
	return nil
}

func runOne(be *cpu.Backend, bp benchProgram, iter int, verbose bool) error {
	cartBytes, err := sfgraph.Compile(strings.NewReader(bp.source), "sfbench")
	if err != nil {
		return fmt.Errorf("compiling: %w", err)
	}
	cart, err := cartridge.Decode(cartBytes)
	if err != nil {
		return fmt.Errorf("decoding cartridge: %w", err)
	}
	program, err := state.LoadProgramSection(cart, "PROGRAM")
	if err != nil {
		return fmt.Errorf("loading PROGRAM section: %w", err)
	}

	start := time.Now()
	for i := 0; i < iter; i++ {
		st, err := state.Create(program, memory.NewArena(4*bp.domain+4096))
		if err != nil {
			return fmt.Errorf("creating state: %w", err)
		}
		kind := engine.Run(context.Background(), st, program, be, st.Registers[0])
		st.Free()
		if kind != exec.ErrorNone {
			return fmt.Errorf("task failed: %s", kind)
		}
		if verbose {
			fmt.Printf("  %s iter %d: %s\n", bp.name, i, time.Since(start))
		}
	}
	elapsed := time.Since(start)
	elementsPerSecond := float64(bp.domain*iter) / elapsed.Seconds()
	fmt.Printf("%-14s %v (%.2f Mops/s)\n", bp.name, elapsed, elementsPerSecond/1e6)
	return nil
}
