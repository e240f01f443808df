// Package breakpoint implements the Breakpoint Manager: install, detect,
// service, and reinstall software breakpoints over a tracer.Tracee.
//
// Installing a breakpoint at address A replaces the byte at A with 0xCC
// and records the displaced byte. When the tracee stops with rip = A+1
// after the trap, StepOver restores the displaced byte, rewinds rip by
// one, single-steps to execute the original instruction, and reinstalls
// 0xCC unless the breakpoint was cleared in the meantime. Every memory
// access is word-granular (read-splice-write an aligned 8-byte word, not
// a bare single-byte poke) so bytes neighboring A survive bit-exact.
// Breakpoints are kept in a set keyed by address.
package breakpoint

import (
	"fmt"

	"github.com/0xWelsh/rekit/arch"
	"github.com/0xWelsh/rekit/internal/rekiterr"
	"github.com/0xWelsh/rekit/internal/tracer"
)

// BpId identifies an installed breakpoint. Two breakpoints at the same
// address are rejected at Set, so the address itself is already a valid
// unique identifier.
type BpId uint64

type breakpoint struct {
	addr      uint64
	orig      byte
	installed bool
}

// Manager owns the active-breakpoint set for one tracee.
type Manager struct {
	t      *tracer.Tracee
	active map[uint64]*breakpoint

	// trapped is the breakpoint most recently identified by Classify,
	// kept around so StepOver can still finish servicing it even if the
	// caller calls Clear in between (the "cleared during the intervening
	// step" case).
	trapped *breakpoint
}

// NewManager returns a Manager with no active breakpoints.
func NewManager(t *tracer.Tracee) *Manager {
	return &Manager{t: t, active: make(map[uint64]*breakpoint)}
}

// Set installs a breakpoint at addr.
func (m *Manager) Set(addr uint64) (BpId, error) {
	if _, exists := m.active[addr]; exists {
		return 0, &rekiterr.TracingError{Op: "breakpoint set", Err: fmt.Errorf("breakpoint already active at %#x", addr)}
	}
	orig, err := m.patch(addr, arch.BreakpointInstr)
	if err != nil {
		return 0, err
	}
	m.active[addr] = &breakpoint{addr: addr, orig: orig, installed: true}
	return BpId(addr), nil
}

// Clear removes a breakpoint, restoring the original byte if it is
// currently installed in the tracee's memory.
func (m *Manager) Clear(id BpId) error {
	addr := uint64(id)
	bp, ok := m.active[addr]
	if !ok {
		return &rekiterr.TracingError{Op: "breakpoint clear", Err: fmt.Errorf("no active breakpoint at %#x", addr)}
	}
	if bp.installed {
		if _, err := m.patch(addr, bp.orig); err != nil {
			return err
		}
		bp.installed = false
	}
	delete(m.active, addr)
	return nil
}

// Classify examines a trap-class stop and reports whether it belongs to
// one of this manager's breakpoints, per rip-1 membership in the active
// set.
func (m *Manager) Classify(stop tracer.StopReason) (BpId, bool, error) {
	if stop.Kind != tracer.StopTrap {
		return 0, false, nil
	}
	regs, err := m.t.Regs()
	if err != nil {
		return 0, false, err
	}
	candidate := regs.Rip - 1
	bp, ok := m.active[candidate]
	if !ok {
		return 0, false, nil
	}
	m.trapped = bp
	return BpId(candidate), true, nil
}

// StepOver rewinds rip to the breakpoint address, restores the original
// byte, single-steps across the real instruction, and — unless the
// breakpoint was cleared since Classify identified it — reinstalls the
// trap.
func (m *Manager) StepOver(id BpId) error {
	addr := uint64(id)
	bp, stillActive := m.active[addr]
	if !stillActive {
		if m.trapped == nil || m.trapped.addr != addr {
			return &rekiterr.TracingError{Op: "step-over", Err: fmt.Errorf("no breakpoint pending service at %#x", addr)}
		}
		bp = m.trapped
	}
	defer func() { m.trapped = nil }()

	regs, err := m.t.Regs()
	if err != nil {
		return err
	}
	regs.Rip = bp.addr
	if err := m.t.SetRegs(regs); err != nil {
		return err
	}

	if bp.installed {
		if _, err := m.patch(bp.addr, bp.orig); err != nil {
			return err
		}
		bp.installed = false
	}

	if err := m.t.SingleStep(); err != nil {
		return err
	}
	if _, err := m.t.Wait(); err != nil {
		return err
	}

	if _, stillWanted := m.active[addr]; stillWanted {
		if _, err := m.patch(bp.addr, arch.BreakpointInstr); err != nil {
			return err
		}
		bp.installed = true
	}
	return nil
}

// Active lists the addresses of currently installed breakpoints.
func (m *Manager) Active() []uint64 {
	addrs := make([]uint64, 0, len(m.active))
	for a := range m.active {
		addrs = append(addrs, a)
	}
	return addrs
}

func (m *Manager) patch(addr uint64, b byte) (byte, error) {
	wordSize := uint64(arch.AMD64.PointerSize)
	aligned := addr &^ (wordSize - 1)
	off := addr - aligned

	word, err := m.t.PeekWord(aligned)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, wordSize)
	arch.AMD64.PutUint(buf, word)
	orig := buf[off]
	buf[off] = b
	if err := m.t.PokeWord(aligned, arch.AMD64.Uint(buf)); err != nil {
		return 0, err
	}
	return orig, nil
}
