package arch

import "testing"

func TestUintRoundTrip(t *testing.T) {
	buf := make([]byte, AMD64.PointerSize)
	AMD64.PutUint(buf, 0x0102030405060708)
	if got := AMD64.Uint(buf); got != 0x0102030405060708 {
		t.Errorf("Uint(PutUint(v)) = %#x, want %#x", got, 0x0102030405060708)
	}
}

func TestUintPanicsOnBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Uint did not panic on a mis-sized buffer")
		}
	}()
	AMD64.Uint(make([]byte, 4))
}

func TestBreakpointInstrIsInt3(t *testing.T) {
	if BreakpointInstr != 0xCC {
		t.Errorf("BreakpointInstr = %#x, want 0xCC", BreakpointInstr)
	}
	if BreakpointSize != 1 {
		t.Errorf("BreakpointSize = %d, want 1", BreakpointSize)
	}
}
