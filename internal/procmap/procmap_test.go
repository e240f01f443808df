package procmap

import (
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	line := "00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/target"
	e, err := parseLine(line)
	if err != nil {
		t.Fatal(err)
	}
	if e.Start != 0x400000 || e.End != 0x452000 {
		t.Errorf("range = %#x-%#x, want 0x400000-0x452000", e.Start, e.End)
	}
	if e.Perm != Readable|Execute|Private {
		t.Errorf("perm = %v, want r-xp", e.Perm)
	}
	if e.Path != "/usr/bin/target" {
		t.Errorf("path = %q, want %q", e.Path, "/usr/bin/target")
	}
	if e.Inode != 173521 {
		t.Errorf("inode = %d, want 173521", e.Inode)
	}
}

func TestParseLineNoPath(t *testing.T) {
	line := "7f1234500000-7f1234521000 rw-p 00000000 00:00 0"
	e, err := parseLine(line)
	if err != nil {
		t.Fatal(err)
	}
	if e.Path != "" {
		t.Errorf("path = %q, want empty", e.Path)
	}
	if e.Perm != Readable|Write|Private {
		t.Errorf("perm = %v, want rw-p", e.Perm)
	}
}

func TestParseLineMalformed(t *testing.T) {
	if _, err := parseLine("not a maps line"); err == nil {
		t.Error("expected an error for a malformed line")
	}
}

func TestParse(t *testing.T) {
	text := strings.Join([]string{
		"00400000-00401000 r-xp 00000000 08:02 1 /bin/ld-interp",
		"00600000-00700000 r-xp 00000000 08:02 2 /usr/bin/target",
		"00700000-00710000 rw-p 00100000 08:02 2 /usr/bin/target",
	}, "\n") + "\n"

	entries, err := parse(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	base, ok := ExecutableBase(entries, "/usr/bin/target")
	if !ok {
		t.Fatal("ExecutableBase did not find a match")
	}
	if base != 0x600000 {
		t.Errorf("base = %#x, want %#x (the interpreter entry filtered out by path)", base, 0x600000)
	}
}

func TestExecutableBaseNoMatch(t *testing.T) {
	entries := []Entry{{Start: 0x1000, Perm: Readable | Execute, Path: "/bin/other"}}
	if _, ok := ExecutableBase(entries, "/bin/target"); ok {
		t.Error("ExecutableBase matched an unrelated path")
	}
}
