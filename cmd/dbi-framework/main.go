// The dbi-framework command spawns a program and sets one software
// breakpoint at a caller-given raw address, reporting each hit and
// letting the tracee run to completion.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/breakpoint"
	"github.com/0xWelsh/rekit/internal/console"
	"github.com/0xWelsh/rekit/internal/tracer"
)

func main() {
	var interactive bool

	root := &cobra.Command{
		Use:           "dbi-framework <program> <hex_addr>",
		Short:         "Spawn a program and set one software breakpoint at a raw address",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(args[0], args[1], interactive)
			if err != nil {
				fmt.Fprintln(os.Stderr, "dbi-framework:", err)
				os.Exit(1)
			}
			os.Exit(code)
			return nil
		},
	}
	root.Flags().BoolVar(&interactive, "interactive", false, "drop into an interactive console at each stop")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dbi-framework:", err)
		os.Exit(1)
	}
}

func run(program, hexAddr string, interactive bool) (int, error) {
	addr, err := strconv.ParseUint(strings.TrimPrefix(hexAddr, "0x"), 16, 64)
	if err != nil {
		return 1, fmt.Errorf("invalid address %q: %w", hexAddr, err)
	}

	t, err := tracer.Spawn(program, nil)
	if err != nil {
		return 1, err
	}

	bp := breakpoint.NewManager(t)
	id, err := bp.Set(addr)
	if err != nil {
		return 1, err
	}
	fmt.Printf("breakpoint set at %#x\n", addr)

	if err := t.Continue(); err != nil {
		return 1, err
	}

	for {
		reason, err := t.Wait()
		if err != nil {
			return 1, err
		}

		switch reason.Kind {
		case tracer.StopExited:
			return reason.ExitCode, nil
		case tracer.StopSignaled:
			fmt.Printf("terminated by signal %d\n", reason.TermSignal)
			return 128 + reason.TermSignal, nil
		}

		hitID, hit, err := bp.Classify(reason)
		if err != nil {
			return 1, err
		}
		if !hit {
			if interactive {
				action, err := console.Run(os.Stdout, t, reason)
				if err != nil {
					return 1, err
				}
				if action == console.ActionQuit {
					return 1, nil
				}
			}
			if err := t.Continue(); err != nil {
				return 1, err
			}
			continue
		}

		fmt.Printf("hit breakpoint %#x\n", uint64(hitID))
		if interactive {
			action, err := console.Run(os.Stdout, t, reason)
			if err != nil {
				return 1, err
			}
			if action == console.ActionQuit {
				return 1, nil
			}
		}
		if err := bp.StepOver(id); err != nil {
			return 1, err
		}
		if err := t.Continue(); err != nil {
			return 1, err
		}
	}
}
