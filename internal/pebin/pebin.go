// Package pebin decodes the DOS stub, NT headers, file header, optional
// header, and section table of a PE/PE32+ image for static reporting.
// Read-only: its output is never consumed by the tracing path.
package pebin

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/0xWelsh/rekit/internal/image"
	"github.com/0xWelsh/rekit/internal/rekiterr"
)

const (
	dosMagic = 0x5A4D
	peSig    = 0x00004550
	magicPE32  = 0x10B
	magicPE32p = 0x20B
)

// Machine identifies the COFF file header's target machine.
type Machine uint16

const (
	MachineUnknown Machine = 0x0
	MachineI386    Machine = 0x14c
	MachineAMD64   Machine = 0x8664
)

func (m Machine) String() string {
	switch m {
	case MachineI386:
		return "x86"
	case MachineAMD64:
		return "x64"
	default:
		return "Unknown"
	}
}

// SectionFlag is a decoded subset of a section's Characteristics bits.
type SectionFlag uint32

const (
	FlagExecute SectionFlag = 1 << iota
	FlagRead
	FlagWrite
)

func (f SectionFlag) String() string {
	var parts []string
	if f&FlagExecute != 0 {
		parts = append(parts, "Execute")
	}
	if f&FlagRead != 0 {
		parts = append(parts, "Read")
	}
	if f&FlagWrite != 0 {
		parts = append(parts, "Write")
	}
	if len(parts) == 0 {
		return "-"
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += "(" + p + ")"
	}
	return out
}

// Section is a decoded section header entry.
type Section struct {
	Name          string
	VirtualSize   uint32
	VirtualAddr   uint32
	RawSize       uint32
	RawOffset     uint32
	Characteristics uint32
	Flags         SectionFlag
}

// View is a parsed PE handle over an Image.
type View struct {
	Machine         Machine
	IsDLL           bool
	NumberOfSections uint16
	TimeDateStamp   uint32
	OptionalMagic   uint16
	EntryPoint      uint32
	ImageBase       uint64
	SizeOfCode      uint32
	Sections        []Section
}

// IsPE32Plus reports whether the optional header magic is PE32+ (0x20B).
func (v *View) IsPE32Plus() bool { return v.OptionalMagic == magicPE32p }

const (
	characteristicDLL = 0x2000
	secExecute        = 0x20000000
	secRead           = 0x40000000
	secWrite          = 0x80000000
)

// Parse decodes a PE image through its section table.
func Parse(im *image.Image) (*View, error) {
	dos, err := im.Bytes(0, 64)
	if err != nil {
		return nil, &rekiterr.FormatError{Op: "dos header", Err: err}
	}
	magic := binary.LittleEndian.Uint16(dos[0:2])
	if magic != dosMagic {
		return nil, &rekiterr.FormatError{Op: "dos magic", Err: fmt.Errorf("missing MZ signature")}
	}
	lfanew := binary.LittleEndian.Uint32(dos[60:64])

	sig, err := im.Bytes(int64(lfanew), 4)
	if err != nil {
		return nil, &rekiterr.FormatError{Op: "pe signature", Err: err}
	}
	if binary.LittleEndian.Uint32(sig) != peSig {
		return nil, &rekiterr.FormatError{Op: "pe signature", Err: fmt.Errorf("invalid PE signature")}
	}

	fh, err := im.Bytes(int64(lfanew)+4, 20)
	if err != nil {
		return nil, &rekiterr.FormatError{Op: "file header", Err: err}
	}
	v := &View{}
	v.Machine = Machine(binary.LittleEndian.Uint16(fh[0:2]))
	v.NumberOfSections = binary.LittleEndian.Uint16(fh[2:4])
	v.TimeDateStamp = binary.LittleEndian.Uint32(fh[4:8])
	sizeOfOptionalHeader := binary.LittleEndian.Uint16(fh[16:18])
	characteristics := binary.LittleEndian.Uint16(fh[18:20])
	v.IsDLL = characteristics&characteristicDLL != 0

	optOff := int64(lfanew) + 4 + 20
	if sizeOfOptionalHeader >= 2 {
		opt, err := im.Bytes(optOff, 2)
		if err != nil {
			return nil, &rekiterr.FormatError{Op: "optional header magic", Err: err}
		}
		v.OptionalMagic = binary.LittleEndian.Uint16(opt)
		if v.OptionalMagic != magicPE32 && v.OptionalMagic != magicPE32p {
			return nil, &rekiterr.FormatError{Op: "optional header magic", Err: fmt.Errorf("unrecognized magic %#x", v.OptionalMagic)}
		}
		if sizeOfOptionalHeader >= 28 {
			rest, err := im.Bytes(optOff, 28)
			if err == nil {
				v.EntryPoint = binary.LittleEndian.Uint32(rest[16:20])
				v.SizeOfCode = binary.LittleEndian.Uint32(rest[4:8])
				if v.OptionalMagic == magicPE32p && sizeOfOptionalHeader >= 32 {
					ib, err := im.Bytes(optOff+24, 8)
					if err == nil {
						v.ImageBase = binary.LittleEndian.Uint64(ib)
					}
				} else if sizeOfOptionalHeader >= 32 {
					ib, err := im.Bytes(optOff+28, 4)
					if err == nil {
						v.ImageBase = uint64(binary.LittleEndian.Uint32(ib))
					}
				}
			}
		}
	}

	secOff := optOff + int64(sizeOfOptionalHeader)
	sections := make([]Section, 0, v.NumberOfSections)
	for i := uint16(0); i < v.NumberOfSections; i++ {
		raw, err := im.Bytes(secOff+int64(i)*40, 40)
		if err != nil {
			return nil, &rekiterr.FormatError{Op: "section header", Err: err}
		}
		name := strings.TrimRight(string(raw[0:8]), "\x00")
		chars := binary.LittleEndian.Uint32(raw[36:40])
		sections = append(sections, Section{
			Name:            name,
			VirtualSize:     binary.LittleEndian.Uint32(raw[8:12]),
			VirtualAddr:     binary.LittleEndian.Uint32(raw[12:16]),
			RawSize:         binary.LittleEndian.Uint32(raw[16:20]),
			RawOffset:       binary.LittleEndian.Uint32(raw[20:24]),
			Characteristics: chars,
			Flags:           decodeSectionFlags(chars),
		})
	}
	v.Sections = sections
	return v, nil
}

func decodeSectionFlags(c uint32) SectionFlag {
	var f SectionFlag
	if c&secExecute != 0 {
		f |= FlagExecute
	}
	if c&secRead != 0 {
		f |= FlagRead
	}
	if c&secWrite != 0 {
		f |= FlagWrite
	}
	return f
}
