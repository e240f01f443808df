// The pe-parser command statically decodes a PE/PE32+ image: DOS stub,
// NT headers, file header, optional header, and section table. Read-only;
// its output never feeds the tracing path.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/config"
	"github.com/0xWelsh/rekit/internal/image"
	"github.com/0xWelsh/rekit/internal/pebin"
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "pe-parser <file>",
		Short:         "Decode a PE/PE32+ image and print its header and section table",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], cfg)
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pe-parser:", err)
		os.Exit(1)
	}
}

func run(path string, cfg config.Config) error {
	im, err := image.Open(path, cfg.MaxImageBytes)
	if err != nil {
		return err
	}
	defer im.Close()

	view, err := pebin.Parse(im)
	if err != nil {
		return err
	}

	kind := "EXE"
	if view.IsDLL {
		kind = "DLL"
	}
	format := "PE32"
	if view.IsPE32Plus() {
		format = "PE32+"
	}

	fmt.Printf("File:          %s\n", path)
	fmt.Printf("Machine:       %s\n", view.Machine)
	fmt.Printf("Kind:          %s\n", kind)
	fmt.Printf("Format:        %s\n", format)
	fmt.Printf("Entry point:   %#x\n", view.EntryPoint)
	fmt.Printf("Image base:    %#x\n", view.ImageBase)
	fmt.Printf("Size of code:  %d\n", view.SizeOfCode)
	fmt.Printf("Sections:      %d\n", view.NumberOfSections)

	fmt.Println("\nSections:")
	fmt.Printf("%-10s %-12s %-12s %-10s %-10s %s\n", "Name", "VirtAddr", "VirtSize", "RawOffset", "RawSize", "Flags")
	for _, s := range view.Sections {
		fmt.Printf("%-10s %#-12x %#-12x %#-10x %-10d %s\n", s.Name, s.VirtualAddr, s.VirtualSize, s.RawOffset, s.RawSize, s.Flags)
	}
	return nil
}
