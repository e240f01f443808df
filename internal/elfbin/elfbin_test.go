package elfbin

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xWelsh/rekit/internal/image"
)

// buildELF64 synthesizes a minimal little-endian ELF64 executable with a
// single SYMTAB entry named "target_fn" at the given value, so tests don't
// depend on any real system binary.
func buildELF64(t *testing.T, etype uint16, symValue uint64) []byte {
	t.Helper()
	bo := binary.LittleEndian

	const (
		ehSize = 64
		shSize = 64
		symEnt = 24
	)

	shstrtab := []byte("\x00.shstrtab\x00.strtab\x00.symtab\x00")
	strtab := []byte("\x00target_fn\x00")

	nullSym := make([]byte, symEnt)
	fnSym := make([]byte, symEnt)
	bo.PutUint32(fnSym[0:4], 1) // offset of "target_fn" in strtab
	fnSym[4] = (1 << 4) | 2     // STB_GLOBAL, STT_FUNC
	bo.PutUint16(fnSym[6:8], 1) // st_shndx: arbitrary non-zero section
	bo.PutUint64(fnSym[8:16], symValue)
	bo.PutUint64(fnSym[16:24], 16)
	symtab := append(append([]byte{}, nullSym...), fnSym...)

	shstrtabOff := uint64(ehSize)
	strtabOff := shstrtabOff + uint64(len(shstrtab))
	symtabOff := strtabOff + uint64(len(strtab))
	shoff := symtabOff + uint64(len(symtab))

	buf := make([]byte, shoff+shSize*4)

	// e_ident
	copy(buf[0:4], []byte{0x7F, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB

	bo.PutUint16(buf[16:18], etype)
	bo.PutUint16(buf[18:20], 62) // EM_X86_64
	bo.PutUint64(buf[24:32], 0x401000)
	bo.PutUint64(buf[32:40], 0) // e_phoff
	bo.PutUint64(buf[40:48], shoff)
	bo.PutUint16(buf[54:56], 56) // e_phentsize
	bo.PutUint16(buf[56:58], 0)  // e_phnum
	bo.PutUint16(buf[58:60], shSize)
	bo.PutUint16(buf[60:62], 4) // e_shnum: null, shstrtab, strtab, symtab
	bo.PutUint16(buf[62:64], 1) // e_shstrndx

	copy(buf[shstrtabOff:], shstrtab)
	copy(buf[strtabOff:], strtab)
	copy(buf[symtabOff:], symtab)

	writeSH := func(idx int, nameOff uint32, shtype uint32, offset, size uint64, link uint32) {
		off := int(shoff) + idx*shSize
		bo.PutUint32(buf[off:off+4], nameOff)
		bo.PutUint32(buf[off+4:off+8], shtype)
		bo.PutUint64(buf[off+24:off+32], offset)
		bo.PutUint64(buf[off+32:off+40], size)
		bo.PutUint32(buf[off+40:off+44], link)
	}
	// section 0: NULL
	writeSH(0, 0, 0, 0, 0, 0)
	// section 1: .shstrtab
	writeSH(1, 1, 3 /* SHT_STRTAB */, shstrtabOff, uint64(len(shstrtab)), 0)
	// section 2: .strtab
	writeSH(2, 11, 3, strtabOff, uint64(len(strtab)), 0)
	// section 3: .symtab, sh_link -> section 2 (.strtab)
	writeSH(3, 19, 2 /* SHT_SYMTAB */, symtabOff, uint64(len(symtab)), 2)

	return buf
}

func openBuf(t *testing.T, data []byte) *image.Image {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "elf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	im, err := image.Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { im.Close() })
	return im
}

// S1 — static ELF header.
func TestParseHeader(t *testing.T) {
	im := openBuf(t, buildELF64(t, uint16(TypeExec), 0x401234))
	v, err := Parse(im)
	if err != nil {
		t.Fatal(err)
	}
	if v.Class != Class64 {
		t.Errorf("Class = %v, want ELF64", v.Class)
	}
	if v.Machine != MachX86_64 {
		t.Errorf("Machine = %v, want x86-64", v.Machine)
	}
	if v.Type != TypeExec {
		t.Errorf("Type = %v, want Executable", v.Type)
	}
	if v.Entry == 0 {
		t.Error("Entry is zero, want non-zero")
	}
	if len(v.Sections) == 0 {
		t.Error("Sections is empty, want non-zero section count")
	}
}

// S2 — symbol resolve.
func TestResolve(t *testing.T) {
	im := openBuf(t, buildELF64(t, uint16(TypeExec), 0x401234))
	v, err := Parse(im)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := v.Resolve("target_fn")
	if err != nil {
		t.Fatalf("Resolve(target_fn) = %v", err)
	}
	if addr != 0x401234 {
		t.Errorf("Resolve(target_fn) = %#x, want %#x", addr, 0x401234)
	}
	if _, err := v.Resolve("nonexistent"); err == nil {
		t.Error("Resolve(nonexistent) = nil error, want NotFound")
	}
}

// invariant 3 — symbol round-trip.
func TestSymbolRoundTrip(t *testing.T) {
	im := openBuf(t, buildELF64(t, uint16(TypeExec), 0x401234))
	v, err := Parse(im)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := v.Resolve("target_fn")
	if err != nil {
		t.Fatal(err)
	}
	syms, err := v.Symbols()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, s := range syms {
		if s.Name == "target_fn" && s.Value == addr {
			found = true
		}
	}
	if !found {
		t.Error("symbol iterator does not contain target_fn at its resolved value")
	}
}

// invariant 4 — PIE base composition (ET_DYN vs ET_EXEC distinction).
func TestTypeDistinguishesPIE(t *testing.T) {
	imDyn := openBuf(t, buildELF64(t, uint16(TypeDyn), 0x1234))
	vDyn, err := Parse(imDyn)
	if err != nil {
		t.Fatal(err)
	}
	if vDyn.Type != TypeDyn {
		t.Errorf("Type = %v, want Shared Object", vDyn.Type)
	}

	imExec := openBuf(t, buildELF64(t, uint16(TypeExec), 0x401234))
	vExec, err := Parse(imExec)
	if err != nil {
		t.Fatal(err)
	}
	if vExec.Type != TypeExec {
		t.Errorf("Type = %v, want Executable", vExec.Type)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := buildELF64(t, uint16(TypeExec), 0x401234)
	data[1] = 'X'
	im := openBuf(t, data)
	if _, err := Parse(im); err == nil {
		t.Error("Parse accepted a corrupted magic, want FormatError")
	}
}

func TestSectionFlagsString(t *testing.T) {
	f := FlagAlloc | FlagExecute
	if got := f.String(); got != "AX" {
		t.Errorf("String() = %q, want %q", got, "AX")
	}
	if got := SectionFlag(0).String(); got != "-" {
		t.Errorf("String() = %q, want %q", got, "-")
	}
}
