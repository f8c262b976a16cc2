// Command sfrun loads a cartridge and runs its program, the sionflow
// analogue of the teacher's sublrun. Unlike sublrun's implicit single
// Payload input, symbol inputs are bound explicitly by name via -input.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/BinaryCat17/sf-spec/internal/backend/cpu"
	"github.com/BinaryCat17/sf-spec/internal/cartridge"
	"github.com/BinaryCat17/sf-spec/internal/engine"
	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/pool"
	"github.com/BinaryCat17/sf-spec/internal/sflog"
	"github.com/BinaryCat17/sf-spec/internal/state"
	"github.com/BinaryCat17/sf-spec/internal/tensor"
	"github.com/BinaryCat17/sf-spec/kernels"
)

// setupTracing installs a real SDK-backed TracerProvider as the global
// otel provider, so internal/exec.Dispatcher's per-task spans (opened via
// the global otel.Tracer) are actually sampled and ended by an SDK
// pipeline rather than the no-op default — sfrun is the long-running
// driver process, the natural place to own that lifecycle. No exporter is
// attached: spec §1 puts backend adapters beyond the CPU dispatcher out of
// scope, and nothing here needs an external collector for the spans to be
// real SDK spans.
func setupTracing() *sdktrace.TracerProvider {
	res := sdkresource.NewSchemaless(attribute.String("service.name", "sfrun"))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp
}

func main() {
	tp := setupTracing()
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("sfrun: tracer shutdown: %v", err)
		}
	}()

	var (
		workers     int
		arenaBytes  int
		verbose     bool
		interactive bool
		inputs      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "sfrun <cartridge>",
		Short: "Load and run a SionFlow cartridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if verbose {
				sflog.SetLevel(slog.LevelDebug)
			}
			return run(args[0], workers, arenaBytes, interactive, inputs)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of dispatch workers")
	cmd.Flags().IntVar(&arenaBytes, "arena", 1<<20, "register arena size in bytes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "step through tasks one at a time")
	cmd.Flags().StringToStringVar(&inputs, "input", nil, "name=path binding for an input symbol, repeatable")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cartPath string, workers, arenaBytes int, interactive bool, inputs map[string]string) error {
	data, err := os.ReadFile(cartPath)
	if err != nil {
		return fmt.Errorf("sfrun: reading %s: %w", cartPath, err)
	}
	cart, err := cartridge.Decode(data)
	if err != nil {
		return fmt.Errorf("sfrun: decoding cartridge: %w", err)
	}
	program, err := state.LoadProgramSection(cart, "PROGRAM")
	if err != nil {
		return fmt.Errorf("sfrun: loading PROGRAM section: %w", err)
	}

	st, err := state.Create(program, memory.NewArena(arenaBytes))
	if err != nil {
		return fmt.Errorf("sfrun: creating state: %w", err)
	}
	defer st.Free()

	for _, sym := range program.Symbols {
		if sym.Flags&isa.SymbolFlagInput == 0 {
			continue
		}
		path, ok := inputs[sym.Name]
		if !ok {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("sfrun: reading input %s: %w", path, err)
		}
		td := program.TensorInfos[sym.RegisterIdx]
		view, err := tensor.Alloc(tensor.TypeInfo{Dtype: td.Dtype, Info: st.Registers[sym.RegisterIdx].Info.Info}, memory.NewArena(len(raw)+64))
		if err != nil {
			return fmt.Errorf("sfrun: allocating input %s: %w", sym.Name, err)
		}
		copy(view.Buf.Data, raw)
		if err := st.Bind(sym.NameHash, view); err != nil {
			return fmt.Errorf("sfrun: binding input %s: %w", sym.Name, err)
		}
	}

	be := cpu.New(pool.Desc{NumWorkers: workers}, kernels.Catalog())
	defer be.Shutdown()

	if interactive {
		return runInteractive(st, program, be)
	}

	kind := engine.Run(context.Background(), st, program, be, st.Registers[0])
	if kind != exec.ErrorNone {
		return fmt.Errorf("sfrun: run failed: %s", kind)
	}

	for _, sym := range program.Symbols {
		if sym.Flags&isa.SymbolFlagOutput == 0 {
			continue
		}
		reg := st.Registers[sym.RegisterIdx]
		fmt.Printf("%s: %d bytes\n", sym.Name, reg.Info.Bytes())
	}
	return nil
}

// runInteractive steps through a program's tasks one at a time: any input
// line other than "quit"/"q" (including a bare Enter) dispatches the next
// task and prints its index, strategy and resulting error kind; "quit"
// stops early. Register contents are not printed. Mirrors the
// teacher's own step debugger shell style (golang-debug), built on the
// same readline library.
func runInteractive(st *state.State, program *isa.Program, be *cpu.Backend) error {
	baked, err := be.Bake(program)
	if err != nil {
		return fmt.Errorf("sfrun: bake: %w", err)
	}
	defer be.FreeBaked(baked)

	rl, err := readline.New("sfrun> ")
	if err != nil {
		return fmt.Errorf("sfrun: starting readline: %w", err)
	}
	defer rl.Close()

	ctx := context.Background()
	for i, task := range program.Tasks {
		line, err := rl.Readline()
		if err != nil {
			return nil // EOF / Ctrl-D ends the session cleanly
		}
		switch line {
		case "quit", "q":
			return nil
		default:
		}

		taskDomain := st.Registers[0].Info.Info
		if int(task.DomainReg) < len(st.Registers) {
			taskDomain = st.Registers[task.DomainReg].Info.Info
		}
		errKind := exec.ErrorKind(be.Dispatch(ctx, program, st, taskDomain, task, baked))
		fmt.Printf("task %d (strategy=%s): %s\n", i, task.Strategy, errKind)
		if errKind != exec.ErrorNone {
			return fmt.Errorf("sfrun: task %d failed: %s", i, errKind)
		}
	}
	fmt.Println("program complete")
	return nil
}
