// Package tracer implements the Tracee Controller: it owns a child
// process under the kernel's tracing facility and offers spawn/attach,
// continue, single-step, syscall-step, register and word-granular memory
// access, wait-for-stop, and detach/kill.
//
// Every ptrace call for a given tracee must issue from the same OS thread
// that attached it. This is the teacher's ptraceRun pattern
// (program/server/ptrace.go in the reference tree): a goroutine pinned
// with runtime.LockOSThread drains an unbuffered channel of closures and
// returns each closure's error on a second unbuffered channel, so every
// exported method here is really just "send a closure, read back the
// error" regardless of which goroutine calls it.
package tracer

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/0xWelsh/rekit/arch"
	"github.com/0xWelsh/rekit/internal/rekiterr"
)

// State is a tracee's position in the state machine from spec §4.5.
type State int

const (
	StateRunning State = iota
	StateStopped
	StateExited
	StateSignaled
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "attached-stopped"
	case StateExited:
		return "exited"
	case StateSignaled:
		return "signaled"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// StopKind is the coarse classification Tracee.Wait can make on its own.
// SIGTRAP is ambiguous at this layer — it covers a breakpoint trap, a
// single-step completion, and a syscall entry/exit boundary alike — so
// StopTrap is resolved further by whichever higher layer is in control
// (internal/breakpoint or internal/syscalltrace); see spec §4.5/§4.6/§4.8.
type StopKind int

const (
	StopTrap StopKind = iota
	StopSignal
	StopExited
	StopSignaled
)

// StopReason is the result of a Wait call.
type StopReason struct {
	Kind       StopKind
	Signal     int
	ExitCode   int
	TermSignal int
}

func (r StopReason) String() string {
	switch r.Kind {
	case StopTrap:
		return "trap"
	case StopSignal:
		return fmt.Sprintf("signal(%d)", r.Signal)
	case StopExited:
		return fmt.Sprintf("exited(%d)", r.ExitCode)
	case StopSignaled:
		return fmt.Sprintf("terminated(%d)", r.TermSignal)
	default:
		return "unknown"
	}
}

// Tracee is an opaque process handle plus its cached register snapshot.
type Tracee struct {
	pid        int
	executable string
	state      State
	regs       unix.PtraceRegs

	fc chan func() error
	ec chan error
}

func ptraceRun(fc chan func() error, ec chan error) {
	runtime.LockOSThread()
	for f := range fc {
		ec <- f()
	}
}

func newTracee(executable string) *Tracee {
	t := &Tracee{
		executable: executable,
		fc:         make(chan func() error),
		ec:         make(chan error),
	}
	go ptraceRun(t.fc, t.ec)
	return t
}

func (t *Tracee) do(f func() error) error {
	t.fc <- f
	return <-t.ec
}

// Pid returns the tracee's process id.
func (t *Tracee) Pid() int { return t.pid }

// Executable returns the path used to spawn the tracee, or the path
// supplied by the caller of Attach.
func (t *Tracee) Executable() string { return t.executable }

// State reports the tracee's current position in the state machine.
func (t *Tracee) State() State { return t.state }

// Spawn forks and execs path under the tracing facility, returning a
// Tracee stopped at the first instruction after exec (spawned-new →
// running → attached-stopped per spec §4.5).
func Spawn(path string, args []string) (*Tracee, error) {
	t := newTracee(path)
	var proc *os.Process
	err := t.do(func() error {
		var err1 error
		argv := append([]string{path}, args...)
		proc, err1 = os.StartProcess(path, argv, &os.ProcAttr{
			Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
			Sys: &syscall.SysProcAttr{
				Ptrace:    true,
				Pdeathsig: syscall.SIGKILL,
			},
		})
		return err1
	})
	if err != nil {
		close(t.fc)
		return nil, &rekiterr.TracingError{Op: "spawn", Err: err}
	}
	t.pid = proc.Pid

	if _, err := t.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

// Attach asks the kernel to attach to an already-running process,
// returning a Tracee once the induced stop has been observed. Requires
// the host's ptrace policy to permit the attach.
func Attach(pid int, executable string) (*Tracee, error) {
	t := newTracee(executable)
	t.pid = pid
	err := t.do(func() error { return unix.PtraceAttach(pid) })
	if err != nil {
		close(t.fc)
		return nil, &rekiterr.TracingError{Op: "attach", Err: err}
	}
	if _, err := t.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracee) requireStopped(op string) error {
	if t.state != StateStopped {
		return &rekiterr.TracingError{Op: op, Err: fmt.Errorf("misuse: tracee is %s, not attached-stopped", t.state)}
	}
	return nil
}

// Continue resumes the tracee until its next stop.
func (t *Tracee) Continue() error {
	if err := t.requireStopped("cont"); err != nil {
		return err
	}
	if err := t.do(func() error { return unix.PtraceCont(t.pid, 0) }); err != nil {
		return &rekiterr.TracingError{Op: "cont", Err: err}
	}
	t.state = StateRunning
	return nil
}

// SingleStep resumes the tracee for exactly one instruction.
func (t *Tracee) SingleStep() error {
	if err := t.requireStopped("singlestep"); err != nil {
		return err
	}
	if err := t.do(func() error { return unix.PtraceSingleStep(t.pid) }); err != nil {
		return &rekiterr.TracingError{Op: "singlestep", Err: err}
	}
	t.state = StateRunning
	return nil
}

// SyscallStep resumes the tracee until the next syscall entry or exit
// boundary.
func (t *Tracee) SyscallStep() error {
	return t.SyscallStepSignal(0)
}

// SyscallStepSignal resumes the tracee until the next syscall entry or
// exit boundary, re-injecting sig (0 for none) into the tracee as it
// resumes. Used to forward an ordinary signal the tracer observed but
// does not itself act on (spec §7: "a single syscall stop with an
// unrecognized signal is non-fatal").
func (t *Tracee) SyscallStepSignal(sig int) error {
	if err := t.requireStopped("syscallstep"); err != nil {
		return err
	}
	if err := t.do(func() error { return unix.PtraceSyscall(t.pid, sig) }); err != nil {
		return &rekiterr.TracingError{Op: "syscallstep", Err: err}
	}
	t.state = StateRunning
	return nil
}

// Wait blocks until the tracee stops or terminates and classifies the
// reason. On a stop it also refreshes the cached register snapshot so
// Regs() is immediately usable.
func (t *Tracee) Wait() (StopReason, error) {
	var ws unix.WaitStatus
	err := t.do(func() error {
		_, err1 := unix.Wait4(t.pid, &ws, 0, nil)
		return err1
	})
	if err != nil {
		return StopReason{}, &rekiterr.TracingError{Op: "wait", Err: err}
	}

	switch {
	case ws.Exited():
		t.state = StateExited
		return StopReason{Kind: StopExited, ExitCode: ws.ExitStatus()}, nil
	case ws.Signaled():
		t.state = StateSignaled
		return StopReason{Kind: StopSignaled, TermSignal: int(ws.Signal())}, nil
	case ws.Stopped():
		t.state = StateStopped
		if err := t.refreshRegs(); err != nil {
			return StopReason{}, err
		}
		sig := ws.StopSignal()
		if sig == unix.SIGTRAP {
			return StopReason{Kind: StopTrap, Signal: int(sig)}, nil
		}
		return StopReason{Kind: StopSignal, Signal: int(sig)}, nil
	default:
		return StopReason{}, &rekiterr.TracingError{Op: "wait", Err: fmt.Errorf("unrecognized wait status %#x", uint32(ws))}
	}
}

func (t *Tracee) refreshRegs() error {
	return t.do(func() error { return unix.PtraceGetRegs(t.pid, &t.regs) })
}

// Regs returns the cached general-purpose register snapshot. Valid only
// while the tracee is attached-stopped.
func (t *Tracee) Regs() (unix.PtraceRegs, error) {
	if err := t.requireStopped("getregs"); err != nil {
		return unix.PtraceRegs{}, err
	}
	return t.regs, nil
}

// SetRegs writes back the full register file.
func (t *Tracee) SetRegs(regs unix.PtraceRegs) error {
	if err := t.requireStopped("setregs"); err != nil {
		return err
	}
	if err := t.do(func() error { return unix.PtraceSetRegs(t.pid, &regs) }); err != nil {
		return &rekiterr.TracingError{Op: "setregs", Err: err}
	}
	t.regs = regs
	return nil
}

// PeekWord reads one architecture-word (8 bytes on AMD64) at addr.
func (t *Tracee) PeekWord(addr uint64) (uint64, error) {
	if err := t.requireStopped("peek"); err != nil {
		return 0, err
	}
	var buf [8]byte
	var n int
	err := t.do(func() error {
		var e error
		n, e = unix.PtracePeekData(t.pid, uintptr(addr), buf[:])
		return e
	})
	if err != nil {
		return 0, &rekiterr.MemoryError{Addr: addr, Op: "peek", Err: err}
	}
	if n != len(buf) {
		return 0, &rekiterr.MemoryError{Addr: addr, Op: "peek", Err: fmt.Errorf("short read: %d of %d bytes", n, len(buf))}
	}
	return arch.AMD64.Uint(buf[:]), nil
}

// PokeWord writes one architecture-word at addr. Atomicity is per-word.
func (t *Tracee) PokeWord(addr uint64, word uint64) error {
	if err := t.requireStopped("poke"); err != nil {
		return err
	}
	var buf [8]byte
	arch.AMD64.PutUint(buf[:], word)
	var n int
	err := t.do(func() error {
		var e error
		n, e = unix.PtracePokeData(t.pid, uintptr(addr), buf[:])
		return e
	})
	if err != nil {
		return &rekiterr.MemoryError{Addr: addr, Op: "poke", Err: err}
	}
	if n != len(buf) {
		return &rekiterr.MemoryError{Addr: addr, Op: "poke", Err: fmt.Errorf("short write: %d of %d bytes", n, len(buf))}
	}
	return nil
}

// Detach restores the tracee to independent execution. Callers must have
// already lifted every active breakpoint (§5: "detach must first restore
// every active breakpoint's original byte").
func (t *Tracee) Detach() error {
	if err := t.requireStopped("detach"); err != nil {
		return err
	}
	if err := t.do(func() error { return unix.PtraceDetach(t.pid) }); err != nil {
		return &rekiterr.TracingError{Op: "detach", Err: err}
	}
	t.state = StateDetached
	close(t.fc)
	return nil
}

// Kill terminates the tracee unconditionally.
func (t *Tracee) Kill() error {
	err := t.do(func() error { return unix.Kill(t.pid, unix.SIGKILL) })
	close(t.fc)
	if err != nil {
		return &rekiterr.TracingError{Op: "kill", Err: err}
	}
	return nil
}
