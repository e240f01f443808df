// The memdump command attaches to a running process, reads a byte range
// out of its address space, and either hex-dumps it to the console or
// writes the raw bytes to a file.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/memdump"
	"github.com/0xWelsh/rekit/internal/rekiterr"
)

func main() {
	root := &cobra.Command{
		Use:           "memdump <pid> <hex_addr> <hex_size> [out_file]",
		Short:         "Dump a byte range out of a running process's address space",
		Args:          cobra.RangeArgs(3, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "memdump:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid pid %q", args[0])
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q", args[1])
	}
	size, err := strconv.ParseUint(strings.TrimPrefix(args[2], "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q", args[2])
	}

	data, err := memdump.Dump(pid, addr, int(size))
	if err != nil {
		return err
	}

	if len(args) == 4 {
		if err := os.WriteFile(args[3], data, 0o644); err != nil {
			return &rekiterr.OutputError{Err: err}
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), args[3])
		return nil
	}

	fmt.Print(memdump.HexDump(data, addr))
	return nil
}
