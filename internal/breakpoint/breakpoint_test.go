package breakpoint

import (
	"os/exec"
	"testing"

	"github.com/0xWelsh/rekit/arch"
	"github.com/0xWelsh/rekit/internal/tracer"
)

func spawnOrSkip(t *testing.T) *tracer.Tracee {
	t.Helper()
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no /bin/true on this host:", err)
	}
	tr, err := tracer.Spawn(path, nil)
	if err != nil {
		t.Skip("ptrace unavailable in this environment:", err)
	}
	return tr
}

func peekByte(t *testing.T, tr *tracer.Tracee, addr uint64) byte {
	t.Helper()
	wordSize := uint64(arch.AMD64.PointerSize)
	aligned := addr &^ (wordSize - 1)
	off := addr - aligned
	word, err := tr.PeekWord(aligned)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, wordSize)
	arch.AMD64.PutUint(buf, word)
	return buf[off]
}

// Exercises invariants 1 and 2, and the S3-shaped service sequence:
// install, one trap at rip-1, step-over, remove leaves memory unchanged.
func TestBreakpointTransparency(t *testing.T) {
	tr := spawnOrSkip(t)
	defer tr.Kill()

	regs, err := tr.Regs()
	if err != nil {
		t.Fatal(err)
	}
	addr := regs.Rip

	origByte := peekByte(t, tr, addr)

	mgr := NewManager(tr)
	id, err := mgr.Set(addr)
	if err != nil {
		t.Fatal(err)
	}
	if got := peekByte(t, tr, addr); got != arch.BreakpointInstr {
		t.Fatalf("byte at A after Set = %#x, want %#x", got, arch.BreakpointInstr)
	}

	if err := tr.Continue(); err != nil {
		t.Fatal(err)
	}
	reason, err := tr.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if reason.Kind != tracer.StopTrap {
		t.Fatalf("StopReason = %v, want trap", reason)
	}

	hitID, ok, err := mgr.Classify(reason)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || hitID != id {
		t.Fatalf("Classify = (%v, %v), want (%v, true)", hitID, ok, id)
	}

	if err := mgr.StepOver(id); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Clear(id); err != nil {
		t.Fatal(err)
	}
	if got := peekByte(t, tr, addr); got != origByte {
		t.Errorf("byte at A after remove = %#x, want original %#x", got, origByte)
	}

	if err := tr.Continue(); err != nil {
		t.Fatal(err)
	}
	if reason, err := tr.Wait(); err != nil {
		t.Fatal(err)
	} else if reason.Kind != tracer.StopExited {
		t.Errorf("final StopReason = %v, want exited", reason)
	}
}

func TestDuplicateBreakpointRejected(t *testing.T) {
	tr := spawnOrSkip(t)
	defer tr.Kill()

	regs, err := tr.Regs()
	if err != nil {
		t.Fatal(err)
	}
	mgr := NewManager(tr)
	if _, err := mgr.Set(regs.Rip); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Set(regs.Rip); err == nil {
		t.Error("Set at an already-active address succeeded, want an error")
	}
}

func TestClassifyIgnoresForeignTrap(t *testing.T) {
	tr := spawnOrSkip(t)
	defer tr.Kill()

	mgr := NewManager(tr)
	_, ok, err := mgr.Classify(tracer.StopReason{Kind: tracer.StopSignal, Signal: 5})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Classify matched a non-trap stop")
	}
}
