// Package elfbin decodes ELF32/ELF64 images for static reporting and, for
// ELF64 little-endian images, symbol resolution feeding the dynamic
// tracing path. Every field fetch bounds-checks through image.Image.Bytes
// rather than indexing a raw pointer.
package elfbin

import (
	"encoding/binary"
	"fmt"

	"github.com/0xWelsh/rekit/internal/image"
	"github.com/0xWelsh/rekit/internal/rekiterr"
)

// Class identifies 32- vs 64-bit ELF.
type Class uint8

const (
	Class32 Class = 1
	Class64 Class = 2
)

func (c Class) String() string {
	switch c {
	case Class32:
		return "ELF32"
	case Class64:
		return "ELF64"
	default:
		return "Unknown"
	}
}

// Type is the ELF object type (e_type).
type Type uint16

const (
	TypeNone Type = 0
	TypeRel  Type = 1
	TypeExec Type = 2
	TypeDyn  Type = 3
	TypeCore Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeExec:
		return "Executable"
	case TypeDyn:
		return "Shared Object"
	case TypeRel:
		return "Relocatable"
	case TypeCore:
		return "Core"
	default:
		return fmt.Sprintf("Unknown (%#x)", uint16(t))
	}
}

// Machine is the e_machine field.
type Machine uint16

const (
	Mach386    Machine = 3
	MachARM    Machine = 40
	MachX86_64 Machine = 62
	MachAArch  Machine = 183
)

func (m Machine) String() string {
	switch m {
	case Mach386:
		return "x86"
	case MachX86_64:
		return "x86-64"
	case MachARM:
		return "ARM"
	case MachAArch:
		return "ARM64"
	default:
		return fmt.Sprintf("Unknown (%#x)", uint16(m))
	}
}

// Section permission flags, a subset of sh_flags.
type SectionFlag uint32

const (
	FlagWrite   SectionFlag = 1 << 0
	FlagAlloc   SectionFlag = 1 << 1
	FlagExecute SectionFlag = 1 << 2
)

func (f SectionFlag) String() string {
	s := ""
	if f&FlagWrite != 0 {
		s += "W"
	}
	if f&FlagAlloc != 0 {
		s += "A"
	}
	if f&FlagExecute != 0 {
		s += "X"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Section is a decoded section header.
type Section struct {
	Name   string
	Type   uint32
	Addr   uint64
	Offset uint64
	Size   uint64
	Flags  SectionFlag
	Link   uint32
}

// Program is a decoded program header.
type Program struct {
	Type     uint32
	Offset   uint64
	Vaddr    uint64
	FileSize uint64
	Flags    uint32
}

const (
	ProgLoad   = 1
	ProgInterp = 3
)

// SymbolType is the ELF64_ST_TYPE of a symbol.
type SymbolType uint8

const (
	SymNone    SymbolType = 0
	SymObject  SymbolType = 1
	SymFunc    SymbolType = 2
	SymSection SymbolType = 3
	SymFile    SymbolType = 4
)

func (t SymbolType) String() string {
	switch t {
	case SymNone:
		return "NOTYPE"
	case SymObject:
		return "OBJECT"
	case SymFunc:
		return "FUNC"
	case SymSection:
		return "SECTION"
	case SymFile:
		return "FILE"
	default:
		return fmt.Sprintf("%d", uint8(t))
	}
}

// Binding is the ELF64_ST_BIND of a symbol.
type Binding uint8

const (
	BindLocal  Binding = 0
	BindGlobal Binding = 1
	BindWeak   Binding = 2
)

// Table names which symbol section a Symbol was read from.
type Table int

const (
	TableSymtab Table = iota
	TableDynsym
)

// Symbol is a decoded entry from SYMTAB or DYNSYM.
type Symbol struct {
	Name    string
	Value   uint64
	Size    uint64
	Type    SymbolType
	Binding Binding
	Table   Table
}

const (
	sht_symtab = 2
	sht_strtab = 3
	sht_dynsym = 11
)

// View is a parsed ELF handle over an Image.
type View struct {
	img       *image.Image
	Class     Class
	ByteOrder binary.ByteOrder
	Machine   Machine
	Type      Type
	Entry     uint64
	Sections  []Section
	Programs  []Program

	symtab *Section
	dynsym *Section
}

var elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}

// Parse decodes an ELF image header, program headers, and section headers.
func Parse(im *image.Image) (*View, error) {
	ident, err := im.Bytes(0, 16)
	if err != nil {
		return nil, &rekiterr.FormatError{Op: "elf header", Err: err}
	}
	if [4]byte{ident[0], ident[1], ident[2], ident[3]} != elfMagic {
		return nil, &rekiterr.FormatError{Op: "elf magic", Err: fmt.Errorf("not an ELF file")}
	}
	class := Class(ident[4])
	if class != Class32 && class != Class64 {
		return nil, &rekiterr.FormatError{Op: "elf class", Err: fmt.Errorf("unrecognized EI_CLASS %d", ident[4])}
	}
	var bo binary.ByteOrder
	switch ident[5] {
	case 1:
		bo = binary.LittleEndian
	case 2:
		bo = binary.BigEndian
	default:
		return nil, &rekiterr.FormatError{Op: "elf data", Err: fmt.Errorf("unrecognized EI_DATA %d", ident[5])}
	}

	v := &View{img: im, Class: class, ByteOrder: bo}

	if class == Class64 {
		if err := v.parse64(); err != nil {
			return nil, err
		}
	} else {
		if err := v.parse32(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *View) parse64() error {
	hdr, err := v.img.Bytes(0, 64)
	if err != nil {
		return &rekiterr.FormatError{Op: "elf64 header", Err: err}
	}
	bo := v.ByteOrder
	v.Type = Type(bo.Uint16(hdr[16:18]))
	v.Machine = Machine(bo.Uint16(hdr[18:20]))
	v.Entry = bo.Uint64(hdr[24:32])
	phoff := bo.Uint64(hdr[32:40])
	shoff := bo.Uint64(hdr[40:48])
	phentsize := bo.Uint16(hdr[54:56])
	phnum := bo.Uint16(hdr[56:58])
	shentsize := bo.Uint16(hdr[58:60])
	shnum := bo.Uint16(hdr[60:62])
	shstrndx := bo.Uint16(hdr[62:64])

	if shnum > 0 && shstrndx >= shnum {
		return &rekiterr.FormatError{Op: "elf64 shstrndx", Err: fmt.Errorf("e_shstrndx %d >= e_shnum %d", shstrndx, shnum)}
	}

	progs := make([]Program, 0, phnum)
	for i := uint16(0); i < phnum; i++ {
		off := phoff + uint64(i)*uint64(phentsize)
		ph, err := v.img.Bytes(int64(off), 56)
		if err != nil {
			return &rekiterr.FormatError{Op: "elf64 program header", Err: err}
		}
		progs = append(progs, Program{
			Type:     bo.Uint32(ph[0:4]),
			Flags:    bo.Uint32(ph[4:8]),
			Offset:   bo.Uint64(ph[8:16]),
			Vaddr:    bo.Uint64(ph[16:24]),
			FileSize: bo.Uint64(ph[32:40]),
		})
	}
	v.Programs = progs

	type rawSection struct {
		nameIdx uint32
		typ     uint32
		flags   uint64
		addr    uint64
		offset  uint64
		size    uint64
		link    uint32
	}
	raws := make([]rawSection, 0, shnum)
	for i := uint16(0); i < shnum; i++ {
		off := shoff + uint64(i)*uint64(shentsize)
		sh, err := v.img.Bytes(int64(off), 64)
		if err != nil {
			return &rekiterr.FormatError{Op: "elf64 section header", Err: err}
		}
		rs := rawSection{
			nameIdx: bo.Uint32(sh[0:4]),
			typ:     bo.Uint32(sh[4:8]),
			flags:   bo.Uint64(sh[8:16]),
			addr:    bo.Uint64(sh[16:24]),
			offset:  bo.Uint64(sh[24:32]),
			size:    bo.Uint64(sh[32:40]),
			link:    bo.Uint32(sh[40:44]),
		}
		if rs.offset+rs.size > uint64(v.img.Len()) && rs.typ != 8 /* NOBITS */ {
			return &rekiterr.FormatError{Op: "elf64 section bounds", Err: fmt.Errorf("section %d sh_offset+sh_size exceeds image", i)}
		}
		raws = append(raws, rs)
	}

	var shstrtab []byte
	if shnum > 0 {
		s := raws[shstrndx]
		shstrtab, err = v.img.Bytes(int64(s.offset), int64(s.size))
		if err != nil {
			return &rekiterr.FormatError{Op: "elf64 shstrtab", Err: err}
		}
	}

	sections := make([]Section, 0, shnum)
	for i, rs := range raws {
		sections = append(sections, Section{
			Name:   cstr(shstrtab, rs.nameIdx),
			Type:   rs.typ,
			Addr:   rs.addr,
			Offset: rs.offset,
			Size:   rs.size,
			Flags:  decodeFlags(rs.flags),
			Link:   rs.link,
		})
		if rs.typ == sht_symtab && v.symtab == nil {
			sec := sections[i]
			v.symtab = &sec
		}
		if rs.typ == sht_dynsym && v.dynsym == nil {
			sec := sections[i]
			v.dynsym = &sec
		}
	}
	v.Sections = sections
	return nil
}

// parse32 decodes just enough of an ELF32 header for static reporting;
// ELF32 is not used by the dynamic tracing path (spec: x86-64 only).
func (v *View) parse32() error {
	hdr, err := v.img.Bytes(0, 52)
	if err != nil {
		return &rekiterr.FormatError{Op: "elf32 header", Err: err}
	}
	bo := v.ByteOrder
	v.Type = Type(bo.Uint16(hdr[16:18]))
	v.Machine = Machine(bo.Uint16(hdr[18:20]))
	v.Entry = uint64(bo.Uint32(hdr[24:28]))
	phoff := uint64(bo.Uint32(hdr[28:32]))
	shoff := uint64(bo.Uint32(hdr[32:36]))
	phentsize := bo.Uint16(hdr[42:44])
	phnum := bo.Uint16(hdr[44:46])
	shentsize := bo.Uint16(hdr[46:48])
	shnum := bo.Uint16(hdr[48:50])
	shstrndx := bo.Uint16(hdr[50:52])

	if shnum > 0 && shstrndx >= shnum {
		return &rekiterr.FormatError{Op: "elf32 shstrndx", Err: fmt.Errorf("e_shstrndx %d >= e_shnum %d", shstrndx, shnum)}
	}

	progs := make([]Program, 0, phnum)
	for i := uint16(0); i < phnum; i++ {
		off := phoff + uint64(i)*uint64(phentsize)
		ph, err := v.img.Bytes(int64(off), 32)
		if err != nil {
			return &rekiterr.FormatError{Op: "elf32 program header", Err: err}
		}
		progs = append(progs, Program{
			Type:     bo.Uint32(ph[0:4]),
			Offset:   uint64(bo.Uint32(ph[4:8])),
			Vaddr:    uint64(bo.Uint32(ph[8:12])),
			FileSize: uint64(bo.Uint32(ph[16:20])),
			Flags:    bo.Uint32(ph[24:28]),
		})
	}
	v.Programs = progs

	type rawSection struct {
		nameIdx uint32
		typ     uint32
		flags   uint64
		addr    uint64
		offset  uint64
		size    uint64
		link    uint32
	}
	raws := make([]rawSection, 0, shnum)
	for i := uint16(0); i < shnum; i++ {
		off := shoff + uint64(i)*uint64(shentsize)
		sh, err := v.img.Bytes(int64(off), 40)
		if err != nil {
			return &rekiterr.FormatError{Op: "elf32 section header", Err: err}
		}
		raws = append(raws, rawSection{
			nameIdx: bo.Uint32(sh[0:4]),
			typ:     bo.Uint32(sh[4:8]),
			flags:   uint64(bo.Uint32(sh[8:12])),
			addr:    uint64(bo.Uint32(sh[12:16])),
			offset:  uint64(bo.Uint32(sh[16:20])),
			size:    uint64(bo.Uint32(sh[20:24])),
			link:    bo.Uint32(sh[24:28]),
		})
	}

	var shstrtab []byte
	var err2 error
	if shnum > 0 {
		s := raws[shstrndx]
		shstrtab, err2 = v.img.Bytes(int64(s.offset), int64(s.size))
		if err2 != nil {
			return &rekiterr.FormatError{Op: "elf32 shstrtab", Err: err2}
		}
	}

	sections := make([]Section, 0, shnum)
	for i, rs := range raws {
		sections = append(sections, Section{
			Name:   cstr(shstrtab, rs.nameIdx),
			Type:   rs.typ,
			Addr:   rs.addr,
			Offset: rs.offset,
			Size:   rs.size,
			Flags:  decodeFlags(rs.flags),
			Link:   rs.link,
		})
		if rs.typ == sht_symtab && v.symtab == nil {
			sec := sections[i]
			v.symtab = &sec
		}
		if rs.typ == sht_dynsym && v.dynsym == nil {
			sec := sections[i]
			v.dynsym = &sec
		}
	}
	v.Sections = sections
	return nil
}

func decodeFlags(raw uint64) SectionFlag {
	var f SectionFlag
	if raw&0x1 != 0 {
		f |= FlagWrite
	}
	if raw&0x2 != 0 {
		f |= FlagAlloc
	}
	if raw&0x4 != 0 {
		f |= FlagExecute
	}
	return f
}

func cstr(b []byte, off uint32) string {
	if int(off) >= len(b) {
		return ""
	}
	end := int(off)
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}

// Symbols returns every SYMTAB entry followed by every DYNSYM entry,
// preserving zero-name/zero-value entries (needed for static listing; the
// dynamic hook path filters those out itself, see Resolve).
func (v *View) Symbols() ([]Symbol, error) {
	if v.Class != Class64 {
		return nil, &rekiterr.FormatError{Op: "symbols", Err: fmt.Errorf("symbol table decode requires ELF64")}
	}
	var out []Symbol
	if v.symtab != nil {
		syms, err := v.readSymtab(v.symtab, TableSymtab)
		if err != nil {
			return nil, err
		}
		out = append(out, syms...)
	}
	if v.dynsym != nil {
		syms, err := v.readSymtab(v.dynsym, TableDynsym)
		if err != nil {
			return nil, err
		}
		out = append(out, syms...)
	}
	return out, nil
}

func (v *View) readSymtab(sec *Section, table Table) ([]Symbol, error) {
	if int(sec.Link) >= len(v.Sections) {
		return nil, &rekiterr.FormatError{Op: "symtab sh_link", Err: fmt.Errorf("sh_link %d out of range", sec.Link)}
	}
	strSec := v.Sections[sec.Link]
	strtab, err := v.img.Bytes(int64(strSec.Offset), int64(strSec.Size))
	if err != nil {
		return nil, &rekiterr.FormatError{Op: "symtab strtab", Err: err}
	}

	const entSize = 24
	count := int(sec.Size / entSize)
	out := make([]Symbol, 0, count)
	for i := 0; i < count; i++ {
		off := int64(sec.Offset) + int64(i)*entSize
		raw, err := v.img.Bytes(off, entSize)
		if err != nil {
			return nil, &rekiterr.FormatError{Op: "symtab entry", Err: err}
		}
		nameIdx := v.ByteOrder.Uint32(raw[0:4])
		info := raw[4]
		value := v.ByteOrder.Uint64(raw[8:16])
		size := v.ByteOrder.Uint64(raw[16:24])
		out = append(out, Symbol{
			Name:    cstr(strtab, nameIdx),
			Value:   value,
			Size:    size,
			Type:    SymbolType(info & 0xF),
			Binding: Binding(info >> 4),
			Table:   table,
		})
	}
	return out, nil
}

// Resolve returns the virtual address of the named symbol, preferring
// SYMTAB over DYNSYM when both tables carry an entry, and skipping entries
// with a zero name or zero value (those aren't externally meaningful
// function/object symbols).
func (v *View) Resolve(name string) (uint64, error) {
	syms, err := v.Symbols()
	if err != nil {
		return 0, err
	}
	var dynMatch *uint64
	for _, s := range syms {
		if s.Name != name || s.Value == 0 {
			continue
		}
		if s.Table == TableSymtab {
			val := s.Value
			return val, nil
		}
		if dynMatch == nil {
			val := s.Value
			dynMatch = &val
		}
	}
	if dynMatch != nil {
		return *dynMatch, nil
	}
	return 0, &rekiterr.ResolutionError{Symbol: name, Err: fmt.Errorf("not found")}
}
