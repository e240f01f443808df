// Package hook implements the Hook Engine: a thin layer of
// hook(name) = set(resolve(name)) with a label retained for display.
// On classified breakpoint-trap stops it reports the hook label plus the
// first six integer argument registers before delegating servicing to
// the Breakpoint Manager.
package hook

import (
	"fmt"

	"github.com/0xWelsh/rekit/internal/breakpoint"
	"github.com/0xWelsh/rekit/internal/resolver"
	"github.com/0xWelsh/rekit/internal/tracer"
)

// Args are the first six integer argument registers, read at a hook hit
// per the System V AMD64 calling convention.
type Args struct {
	Rdi, Rsi, Rdx, Rcx, R8, R9 uint64
}

// Hit describes one observed call into a hooked function.
type Hit struct {
	Label string
	Addr  uint64
	Args  Args
}

// Engine maps symbol names to breakpoints and remembers their labels.
type Engine struct {
	t      *tracer.Tracee
	bp     *breakpoint.Manager
	labels map[breakpoint.BpId]string
}

// NewEngine returns a Hook Engine servicing breakpoints through bp.
func NewEngine(t *tracer.Tracee, bp *breakpoint.Manager) *Engine {
	return &Engine{t: t, bp: bp, labels: make(map[breakpoint.BpId]string)}
}

// Hook resolves name in the tracee's address space and installs a
// breakpoint there. Failure to resolve does not install anything.
func (e *Engine) Hook(exePath, name string) (breakpoint.BpId, error) {
	addr, err := resolver.Resolve(e.t.Pid(), exePath, name)
	if err != nil {
		return 0, err
	}
	id, err := e.bp.Set(addr)
	if err != nil {
		return 0, err
	}
	e.labels[id] = name
	return id, nil
}

// Unhook removes a previously installed hook.
func (e *Engine) Unhook(id breakpoint.BpId) error {
	if err := e.bp.Clear(id); err != nil {
		return err
	}
	delete(e.labels, id)
	return nil
}

// Classify checks whether stop belongs to one of this engine's hooks and,
// if so, returns the Hit describing it. The breakpoint is not yet
// serviced; callers must call StepOver(id) afterward to resume execution
// past the trap.
func (e *Engine) Classify(stop tracer.StopReason) (Hit, breakpoint.BpId, bool, error) {
	id, ok, err := e.bp.Classify(stop)
	if err != nil || !ok {
		return Hit{}, 0, ok, err
	}
	label, known := e.labels[id]
	if !known {
		// A breakpoint installed outside this engine; not ours to report.
		return Hit{}, 0, false, nil
	}
	regs, err := e.t.Regs()
	if err != nil {
		return Hit{}, 0, false, err
	}
	hit := Hit{
		Label: label,
		Addr:  uint64(id),
		Args: Args{
			Rdi: regs.Rdi,
			Rsi: regs.Rsi,
			Rdx: regs.Rdx,
			Rcx: regs.Rcx,
			R8:  regs.R8,
			R9:  regs.R9,
		},
	}
	return hit, id, true, nil
}

// StepOver delegates servicing to the underlying Breakpoint Manager.
func (e *Engine) StepOver(id breakpoint.BpId) error {
	return e.bp.StepOver(id)
}

// String renders a Hit the way the CLI front-ends print a hook hit line.
func (h Hit) String() string {
	return fmt.Sprintf("%s@%#x rdi=%#x rsi=%#x rdx=%#x rcx=%#x r8=%#x r9=%#x",
		h.Label, h.Addr, h.Args.Rdi, h.Args.Rsi, h.Args.Rdx, h.Args.Rcx, h.Args.R8, h.Args.R9)
}
