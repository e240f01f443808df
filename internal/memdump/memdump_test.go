package memdump

import (
	"os/exec"
	"testing"
	"time"

	"github.com/0xWelsh/rekit/internal/procmap"
)

func TestDumpAndHexDump(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("no sleep binary on this host:", err)
	}
	cmd := exec.Command(path, "5")
	if err := cmd.Start(); err != nil {
		t.Skip("could not start subject process:", err)
	}
	defer cmd.Process.Kill()
	time.Sleep(50 * time.Millisecond)

	entries, err := procmap.Read(cmd.Process.Pid)
	if err != nil {
		t.Skip("could not read /proc maps in this environment:", err)
	}
	var addr uint64
	for _, e := range entries {
		if e.Perm&procmap.Execute != 0 {
			addr = e.Start
			break
		}
	}
	if addr == 0 {
		t.Skip("no executable mapping found for subject process")
	}

	data, err := Dump(cmd.Process.Pid, addr, 32)
	if err != nil {
		t.Skip("ptrace unavailable in this environment:", err)
	}
	if len(data) != 32 {
		t.Fatalf("len(data) = %d, want 32", len(data))
	}

	out := HexDump(data, addr)
	if len(out) == 0 {
		t.Error("HexDump produced no output")
	}
}

func TestDumpRejectsOversizeRequest(t *testing.T) {
	if _, err := Dump(1, 0x1000, MaxSize+1); err == nil {
		t.Error("Dump accepted a request over MaxSize, want an error")
	}
}

func TestHexDumpLayout(t *testing.T) {
	data := []byte("0123456789abcdef0123456789abcdef")
	out := HexDump(data, 0x1000)
	if got := out[:12]; got != "0x00001000: " {
		t.Errorf("first line prefix = %q, want %q", got, "0x00001000: ")
	}
}
