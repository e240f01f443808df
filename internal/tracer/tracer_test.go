package tracer

import (
	"os/exec"
	"testing"
)

func trueBinary(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no /bin/true on this host:", err)
	}
	return path
}

func spawnOrSkip(t *testing.T, path string, args []string) *Tracee {
	t.Helper()
	tr, err := Spawn(path, args)
	if err != nil {
		t.Skip("ptrace unavailable in this environment:", err)
	}
	return tr
}

func TestSpawnReachesInitialStop(t *testing.T) {
	path := trueBinary(t)
	tr := spawnOrSkip(t, path, nil)

	if tr.State() != StateStopped {
		t.Fatalf("State() = %v, want attached-stopped", tr.State())
	}
	if tr.Pid() <= 0 {
		t.Fatalf("Pid() = %d, want positive", tr.Pid())
	}

	if err := tr.Continue(); err != nil {
		t.Fatal(err)
	}
	reason, err := tr.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if reason.Kind != StopExited {
		t.Fatalf("StopReason = %v, want exited", reason)
	}
}

func TestMisuseWhileRunning(t *testing.T) {
	path := trueBinary(t)
	tr := spawnOrSkip(t, path, nil)

	if err := tr.Continue(); err != nil {
		t.Fatal(err)
	}
	// tr.state is now StateRunning; a second Continue before Wait is misuse.
	if err := tr.Continue(); err == nil {
		t.Error("Continue while running succeeded, want a misuse error")
	}
	tr.Wait()
}

func TestPeekPokeRoundTrip(t *testing.T) {
	path := trueBinary(t)
	tr := spawnOrSkip(t, path, nil)
	defer tr.Kill()

	regs, err := tr.Regs()
	if err != nil {
		t.Fatal(err)
	}
	addr := regs.Rip &^ 7

	word, err := tr.PeekWord(addr)
	if err != nil {
		t.Fatal(err)
	}
	// invariant 5 — word-level poke idempotence.
	if err := tr.PokeWord(addr, word); err != nil {
		t.Fatal(err)
	}
	again, err := tr.PeekWord(addr)
	if err != nil {
		t.Fatal(err)
	}
	if again != word {
		t.Errorf("poke(peek(A)) changed memory: got %#x, want %#x", again, word)
	}
}
