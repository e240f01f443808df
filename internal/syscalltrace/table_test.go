package syscalltrace

import "testing"

func TestNameKnownSyscall(t *testing.T) {
	if got := Name(1); got != "write" {
		t.Errorf("Name(1) = %q, want %q", got, "write")
	}
	if got := Name(231); got != "exit_group" {
		t.Errorf("Name(231) = %q, want %q", got, "exit_group")
	}
}

func TestNameFallsBackToNumber(t *testing.T) {
	if got := Name(999999); got != "999999" {
		t.Errorf("Name(999999) = %q, want %q", got, "999999")
	}
}
