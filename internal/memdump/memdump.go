// Package memdump reads a byte range out of a running process's address
// space, backing the `memdump` CLI. Grounded on tools/memdump.c: attach,
// wait for the induced stop, word-granular PTRACE_PEEKDATA loop, detach —
// built here atop internal/tracer instead of raw ptrace(2) calls.
package memdump

import (
	"fmt"
	"strings"

	"github.com/0xWelsh/rekit/internal/rekiterr"
	"github.com/0xWelsh/rekit/internal/tracer"
)

// MaxSize caps a single dump request, matching the reference tool's 10MiB
// ceiling.
const MaxSize = 10 * 1024 * 1024

// Dump attaches to pid, reads size bytes starting at addr, and detaches.
func Dump(pid int, addr uint64, size int) ([]byte, error) {
	if size <= 0 {
		return nil, &rekiterr.InputError{Op: "memdump", Err: fmt.Errorf("invalid size")}
	}
	if size > MaxSize {
		return nil, &rekiterr.InputError{Op: "memdump", Err: fmt.Errorf("size too large (max %d bytes)", MaxSize)}
	}

	t, err := tracer.Attach(pid, "")
	if err != nil {
		return nil, err
	}
	defer t.Detach()

	out := make([]byte, 0, size)
	for off := 0; off < size; off += 8 {
		word, err := t.PeekWord(addr + uint64(off))
		if err != nil {
			return nil, err
		}
		var buf [8]byte
		for i := range buf {
			buf[i] = byte(word >> (8 * i))
		}
		n := 8
		if off+8 > size {
			n = size - off
		}
		out = append(out, buf[:n]...)
	}
	return out, nil
}

// HexDump renders data the way the reference tool's hex_dump does: 16
// bytes per line, hex columns, then an ASCII gutter with non-printable
// bytes shown as '.'.
func HexDump(data []byte, baseAddr uint64) string {
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[i:end]
		fmt.Fprintf(&b, "%#08x: ", baseAddr+uint64(i))
		for j := 0; j < 16; j++ {
			if j < len(row) {
				fmt.Fprintf(&b, "%02x ", row[j])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString(" |")
		for _, c := range row {
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}
