// The elf-parser command statically decodes an ELF image: header, program
// headers, section headers, and symbol table, mirroring the reference
// parser's table-printed report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/config"
	"github.com/0xWelsh/rekit/internal/elfbin"
	"github.com/0xWelsh/rekit/internal/image"
)

// maxSymbolsListed caps the static symbol listing per spec: the first 50
// non-trivial symbols plus a truncation count.
const maxSymbolsListed = 50

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "elf-parser <file>",
		Short:         "Decode an ELF64/ELF32 image and print its header, sections, and symbols",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], cfg)
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "elf-parser:", err)
		os.Exit(1)
	}
}

func run(path string, cfg config.Config) error {
	im, err := image.Open(path, cfg.MaxImageBytes)
	if err != nil {
		return err
	}
	defer im.Close()

	view, err := elfbin.Parse(im)
	if err != nil {
		return err
	}

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Class:      %s\n", view.Class)
	fmt.Printf("Machine:    %s\n", view.Machine)
	fmt.Printf("Type:       %s\n", view.Type)
	fmt.Printf("Entry:      %#x\n", view.Entry)
	fmt.Printf("Sections:   %d\n", len(view.Sections))
	fmt.Printf("Programs:   %d\n", len(view.Programs))

	fmt.Println("\nProgram headers:")
	fmt.Printf("%-10s %-10s %-18s %-10s %-6s\n", "Type", "Offset", "VAddr", "FileSize", "Flags")
	for _, p := range view.Programs {
		fmt.Printf("%-10d %#-10x %#-18x %-10d %-6d\n", p.Type, p.Offset, p.Vaddr, p.FileSize, p.Flags)
	}

	fmt.Println("\nSections:")
	fmt.Printf("%-20s %-18s %-10s %-10s %s\n", "Name", "Addr", "Offset", "Size", "Flags")
	for _, s := range view.Sections {
		fmt.Printf("%-20s %#-18x %#-10x %-10d %s\n", s.Name, s.Addr, s.Offset, s.Size, s.Flags)
	}

	if view.Class == elfbin.Class64 {
		syms, err := view.Symbols()
		if err != nil {
			return err
		}
		listed := 0
		fmt.Println("\nSymbols:")
		fmt.Printf("%-30s %-18s %-10s %-8s %-8s %s\n", "Name", "Value", "Size", "Type", "Bind", "Table")
		for _, s := range syms {
			if s.Name == "" || s.Value == 0 {
				continue
			}
			if listed >= maxSymbolsListed {
				break
			}
			table := "SYMTAB"
			if s.Table == elfbin.TableDynsym {
				table = "DYNSYM"
			}
			fmt.Printf("%-30s %#-18x %-10d %-8s %-8d %s\n", s.Name, s.Value, s.Size, s.Type, s.Binding, table)
			listed++
		}
		if nontrivial := countNontrivial(syms); nontrivial > listed {
			fmt.Printf("... %d more symbols truncated\n", nontrivial-listed)
		}
	}
	return nil
}

func countNontrivial(syms []elfbin.Symbol) int {
	n := 0
	for _, s := range syms {
		if s.Name != "" && s.Value != 0 {
			n++
		}
	}
	return n
}
