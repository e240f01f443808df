// Package console implements the interactive session console: when a DBI
// or syscall-tracer command is invoked with --interactive, its resume loop
// hands control here at each stop instead of auto-resuming.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/0xWelsh/rekit/internal/tracer"
)

// Action is what the caller's resume loop should do after Run returns.
type Action int

const (
	ActionContinue Action = iota
	ActionQuit
)

// Run prints the stop reason and drives a small command loop: `c`
// resumes (returning ActionContinue), `regs` dumps the general-purpose
// registers, `mem <addr> <len>` hex-dumps a window of the tracee's memory
// (capped at 4 KiB), and `q` kills the tracee and returns ActionQuit.
func Run(out io.Writer, t *tracer.Tracee, reason tracer.StopReason) (Action, error) {
	fmt.Fprintf(out, "stop: %s (pid %d)\n", reason, t.Pid())

	rl, err := readline.New("rekit> ")
	if err != nil {
		return ActionContinue, err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return ActionQuit, nil
		}
		if err != nil {
			return ActionContinue, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "c", "continue":
			return ActionContinue, nil
		case "regs":
			printRegs(out, t)
		case "mem":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: mem <addr> <len>")
				continue
			}
			if err := printMem(out, t, fields[1], fields[2]); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		case "q", "quit":
			if err := t.Kill(); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			return ActionQuit, nil
		default:
			fmt.Fprintln(out, "commands: c, regs, mem <addr> <len>, q")
		}
	}
}

func printRegs(out io.Writer, t *tracer.Tracee) {
	regs, err := t.Regs()
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	fmt.Fprintf(out, "rip=%#x rsp=%#x rbp=%#x\n", regs.Rip, regs.Rsp, regs.Rbp)
	fmt.Fprintf(out, "rax=%#x rbx=%#x rcx=%#x rdx=%#x\n", regs.Rax, regs.Rbx, regs.Rcx, regs.Rdx)
	fmt.Fprintf(out, "rsi=%#x rdi=%#x r8=%#x r9=%#x\n", regs.Rsi, regs.Rdi, regs.R8, regs.R9)
}

const maxMemWindow = 4096

func printMem(out io.Writer, t *tracer.Tracee, addrStr, lenStr string) error {
	addr, err := strconv.ParseUint(strings.TrimPrefix(addrStr, "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("bad address %q", addrStr)
	}
	n, err := strconv.Atoi(lenStr)
	if err != nil || n <= 0 {
		return fmt.Errorf("bad length %q", lenStr)
	}
	if n > maxMemWindow {
		n = maxMemWindow
	}
	for off := 0; off < n; off += 8 {
		word, err := t.PeekWord(addr + uint64(off))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%#08x: %016x\n", addr+uint64(off), word)
	}
	return nil
}
