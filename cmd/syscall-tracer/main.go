// The syscall-tracer command spawns a program under the tracing facility
// and renders every syscall entry/exit boundary it crosses, alternating
// per the per-tracee SyscallState toggle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/console"
	"github.com/0xWelsh/rekit/internal/syscalltrace"
	"github.com/0xWelsh/rekit/internal/tracer"
)

func main() {
	var interactive bool

	root := &cobra.Command{
		Use:           "syscall-tracer <program> [args...]",
		Short:         "Trace a program's syscall entry/exit boundaries",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(args[0], args[1:], interactive)
			if err != nil {
				fmt.Fprintln(os.Stderr, "syscall-tracer:", err)
				os.Exit(1)
			}
			os.Exit(code)
			return nil
		},
	}
	root.Flags().BoolVar(&interactive, "interactive", false, "drop into an interactive console at each stop")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "syscall-tracer:", err)
		os.Exit(1)
	}
}

func run(program string, args []string, interactive bool) (int, error) {
	t, err := tracer.Spawn(program, args)
	if err != nil {
		return 1, err
	}

	st := syscalltrace.New(t)
	st.OnSignal = func(sig int) {
		fmt.Printf("signal %d received mid-trace, forwarding and continuing\n", sig)
	}
	for {
		ev, reason, ok, err := st.Step()
		if err != nil {
			return 1, err
		}
		if !ok {
			switch reason.Kind {
			case tracer.StopExited:
				return reason.ExitCode, nil
			case tracer.StopSignaled:
				fmt.Printf("terminated by signal %d\n", reason.TermSignal)
				return 128 + reason.TermSignal, nil
			default:
				return 1, fmt.Errorf("unexpected syscall-trace termination: %v", reason)
			}
		}

		if ev.State == syscalltrace.StateEntry {
			fmt.Printf("-> %s(%#x, %#x, %#x, %#x, %#x, %#x)\n", ev.Name,
				ev.Args[0], ev.Args[1], ev.Args[2], ev.Args[3], ev.Args[4], ev.Args[5])
		} else {
			fmt.Printf("<- %s = %#x\n", ev.Name, ev.Ret)
		}

		if interactive {
			action, err := console.Run(os.Stdout, t, reason)
			if err != nil {
				return 1, err
			}
			if action == console.ActionQuit {
				return 1, nil
			}
		}
	}
}
