// Package syscalltrace implements the Syscall Tracer: an orthogonal
// tracee mode that resumes with syscall-step and alternately tags each
// resulting stop as a syscall entry or exit. Grounded on the teacher's
// ptrace-driven resume loop (program/server/ptrace.go), generalized from
// a single fixed breakpoint to the PTRACE_SYSCALL boundary stop.
package syscalltrace

import (
	"fmt"

	"github.com/0xWelsh/rekit/internal/rekiterr"
	"github.com/0xWelsh/rekit/internal/tracer"
)

// SyscallState is the per-tracee entry/exit toggle (spec §4.8).
type SyscallState int

const (
	StateEntry SyscallState = iota
	StateExit
)

// Event describes one observed syscall boundary.
type Event struct {
	State  SyscallState
	Number uint64
	Name   string
	Args   [6]uint64 // valid on entry: rdi, rsi, rdx, r10, r8, r9
	Ret    uint64    // valid on exit: rax
}

// Tracer drives a tracee through alternating syscall-entry/exit stops.
// A Tracer must not be used on a tracee with breakpoints installed, and
// vice versa (spec §4.8's mutual exclusion).
type Tracer struct {
	t     *tracer.Tracee
	state SyscallState

	// OnSignal, if set, is called for every ordinary (non-SIGTRAP) signal
	// observed mid-trace before it is forwarded back to the tracee and
	// tracing resumes. Per spec §7 this stop is non-fatal: log and
	// continue, rather than abort the trace.
	OnSignal func(sig int)
}

// New returns a Tracer for an already attached-stopped tracee.
func New(t *tracer.Tracee) *Tracer {
	return &Tracer{t: t, state: StateEntry}
}

// Step resumes the tracee to its next syscall boundary and classifies
// the stop. ok is false once the tracee has exited or been signaled;
// reason carries the terminal detail in that case. An ordinary signal
// delivered mid-trace is reported via OnSignal, re-injected into the
// tracee, and does not end the loop.
func (tr *Tracer) Step() (Event, tracer.StopReason, bool, error) {
	sig := 0
	for {
		if err := tr.t.SyscallStepSignal(sig); err != nil {
			return Event{}, tracer.StopReason{}, false, err
		}
		reason, err := tr.t.Wait()
		if err != nil {
			return Event{}, tracer.StopReason{}, false, err
		}
		switch reason.Kind {
		case tracer.StopExited, tracer.StopSignaled:
			return Event{}, reason, false, nil
		case tracer.StopTrap:
			ev, err := tr.classify()
			if err != nil {
				return Event{}, reason, false, err
			}
			return ev, reason, true, nil
		case tracer.StopSignal:
			if tr.OnSignal != nil {
				tr.OnSignal(reason.Signal)
			}
			sig = reason.Signal
			continue
		default:
			return Event{}, reason, false, &rekiterr.TracingError{Op: "syscall-step", Err: fmt.Errorf("unexpected stop %v mid-trace", reason)}
		}
	}
}

func (tr *Tracer) classify() (Event, error) {
	regs, err := tr.t.Regs()
	if err != nil {
		return Event{}, err
	}
	nr := regs.Orig_rax
	ev := Event{State: tr.state, Number: nr, Name: Name(nr)}
	switch tr.state {
	case StateEntry:
		ev.Args = [6]uint64{regs.Rdi, regs.Rsi, regs.Rdx, regs.R10, regs.R8, regs.R9}
		tr.state = StateExit
	case StateExit:
		ev.Ret = regs.Rax
		tr.state = StateEntry
	}
	return ev, nil
}
