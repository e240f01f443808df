package console

import (
	"bytes"
	"testing"
)

func TestPrintMemRejectsBadAddress(t *testing.T) {
	var out bytes.Buffer
	if err := printMem(&out, nil, "zzzz", "16"); err == nil {
		t.Error("printMem accepted a malformed address, want an error")
	}
}

func TestPrintMemRejectsBadLength(t *testing.T) {
	var out bytes.Buffer
	if err := printMem(&out, nil, "0x1000", "-1"); err == nil {
		t.Error("printMem accepted a non-positive length, want an error")
	}
	if err := printMem(&out, nil, "0x1000", "abc"); err == nil {
		t.Error("printMem accepted a non-numeric length, want an error")
	}
}

func TestActionConstants(t *testing.T) {
	if ActionContinue == ActionQuit {
		t.Error("ActionContinue and ActionQuit must be distinct")
	}
}

