// Command sfc compiles a .sfg text graph spec into a cartridge file, the
// sionflow analogue of the teacher's sublc.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/BinaryCat17/sf-spec/internal/sfgraph"
)

func main() {
	var title string

	cmd := &cobra.Command{
		Use:   "sfc <src.sfg> <out.sfcart>",
		Short: "Compile a .sfg graph spec to a SionFlow cartridge",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			srcPath, outPath := args[0], args[1]

			src, err := os.Open(srcPath)
			if err != nil {
				return fmt.Errorf("sfc: opening %s: %w", srcPath, err)
			}
			defer src.Close()

			out, err := sfgraph.Compile(src, title)
			if err != nil {
				return fmt.Errorf("sfc: compiling %s: %w", srcPath, err)
			}

			if err := os.WriteFile(outPath, out, 0o644); err != nil {
				return fmt.Errorf("sfc: writing %s: %w", outPath, err)
			}
			fmt.Printf("compiled %s -> %s (%d bytes)\n", srcPath, outPath, len(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "sfc", "cartridge app title")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
