// The dbi-advanced command spawns a program and installs symbolic hooks
// on one or more named functions, reporting the hook label and first six
// integer argument registers on every hit.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/breakpoint"
	"github.com/0xWelsh/rekit/internal/console"
	"github.com/0xWelsh/rekit/internal/hook"
	"github.com/0xWelsh/rekit/internal/tracer"
)

func main() {
	var interactive bool

	root := &cobra.Command{
		Use:           "dbi-advanced <program> <symbol...>",
		Short:         "Spawn a program and hook one or more functions by symbol name",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(args[0], args[1:], interactive)
			if err != nil {
				fmt.Fprintln(os.Stderr, "dbi-advanced:", err)
				os.Exit(1)
			}
			os.Exit(code)
			return nil
		},
	}
	root.Flags().BoolVar(&interactive, "interactive", false, "drop into an interactive console at each stop")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dbi-advanced:", err)
		os.Exit(1)
	}
}

func run(program string, symbols []string, interactive bool) (int, error) {
	t, err := tracer.Spawn(program, nil)
	if err != nil {
		return 1, err
	}

	bp := breakpoint.NewManager(t)
	engine := hook.NewEngine(t, bp)

	installed := 0
	for _, sym := range symbols {
		if _, err := engine.Hook(program, sym); err != nil {
			fmt.Fprintf(os.Stderr, "dbi-advanced: could not resolve %q: %v\n", sym, err)
			continue
		}
		fmt.Printf("hooked %s\n", sym)
		installed++
	}
	if installed == 0 {
		return 1, fmt.Errorf("no symbols resolved")
	}

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

		hit, id, ok, err := engine.Classify(reason)
		if err != nil {
			return 1, err
		}
		if !ok {
			if interactive {
				if action, err := console.Run(os.Stdout, t, reason); err != nil {
					return 1, err
				} else if action == console.ActionQuit {
					return 1, nil
				}
			}
			if err := t.Continue(); err != nil {
				return 1, err
			}
			continue
		}

		fmt.Println(hit.String())
		if interactive {
			if action, err := console.Run(os.Stdout, t, reason); err != nil {
				return 1, err
			} else if action == console.ActionQuit {
				return 1, nil
			}
		}
		if err := engine.StepOver(id); err != nil {
			return 1, err
		}
		if err := t.Continue(); err != nil {
			return 1, err
		}
	}
}
