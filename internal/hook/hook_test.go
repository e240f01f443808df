package hook

import (
	"os/exec"
	"testing"

	"github.com/0xWelsh/rekit/internal/breakpoint"
	"github.com/0xWelsh/rekit/internal/tracer"
)

func TestHitString(t *testing.T) {
	h := Hit{
		Label: "target_fn",
		Addr:  0x401000,
		Args:  Args{Rdi: 1, Rsi: 2, Rdx: 3, Rcx: 4, R8: 5, R9: 6},
	}
	got := h.String()
	want := "target_fn@0x401000 rdi=0x1 rsi=0x2 rdx=0x3 rcx=0x4 r8=0x5 r9=0x6"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

// A name that cannot be resolved must not install a breakpoint.
func TestHookUnresolvedNameInstallsNothing(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no /bin/true on this host:", err)
	}
	tr, err := tracer.Spawn(path, nil)
	if err != nil {
		t.Skip("ptrace unavailable in this environment:", err)
	}
	defer tr.Kill()

	bp := breakpoint.NewManager(tr)
	engine := NewEngine(tr, bp)

	if _, err := engine.Hook(path, "definitely_not_a_real_symbol_xyz"); err == nil {
		t.Fatal("Hook resolved a nonexistent symbol, want an error")
	}
	if active := bp.Active(); len(active) != 0 {
		t.Errorf("Active() = %v, want none installed after a failed resolve", active)
	}
}
