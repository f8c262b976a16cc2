// Package cartridge implements the outer container binary format: a fixed
// header plus a table of typed sections (PROGRAM, PIPELINE, IMAGE, FONT,
// RAW), and the PROGRAM section's packed instruction/tensor/symbol/task/
// binding layout.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the fixed cartridge magic number, "MFLW" read little-endian.
const Magic uint32 = 0x4D464C57

// Version is the cartridge format version this package reads and writes.
const Version uint32 = 20

// SectionType identifies the payload kind of one section.
type SectionType uint32

const (
	SectionProgram  SectionType = 0x01
	SectionPipeline SectionType = 0x02
	SectionImage    SectionType = 0x03
	SectionFont     SectionType = 0x04
	SectionRaw      SectionType = 0x05
)

// Compression flags stored in a section header's first reserved word.
const (
	CompressionNone uint32 = 0
	CompressionZstd uint32 = 1
)

var (
	// ErrBadMagic is returned when a cartridge's magic number does not match.
	ErrBadMagic = errors.New("cartridge: bad magic number")
	// ErrBadVersion is returned when a cartridge's version is unsupported.
	ErrBadVersion = errors.New("cartridge: unsupported version")
	// ErrSectionBounds is returned when a section's offset/size exceed the file.
	ErrSectionBounds = errors.New("cartridge: section exceeds file bounds")
	// ErrTooManySections is returned when section_count exceeds MaxSections.
	ErrTooManySections = errors.New("cartridge: too many sections")
)

const maxSections = 16

// SectionHeader describes one section's location and type within the file.
type SectionHeader struct {
	Name   string // at most 64 bytes on the wire
	Type   SectionType
	Offset uint32
	Size   uint32
	// Reserved[0] carries the compression flag (CompressionNone/Zstd) for
	// RAW/IMAGE/FONT sections; PROGRAM and PIPELINE sections are never
	// compressed so the loader can random-access them without a full
	// decompress pass.
	Reserved [4]uint32
}

// Header is the cartridge's fixed-size leading header.
type Header struct {
	Magic   uint32
	Version uint32

	AppTitle     string
	WindowWidth  uint32
	WindowHeight uint32
	NumThreads   uint32 // 0 = auto
	VSync        bool
	Fullscreen   bool
	Resizable    bool

	Sections []SectionHeader
}

// Cartridge is a fully loaded container: its header plus the raw bytes of
// every section, ready for type-specific decoding.
type Cartridge struct {
	Header   Header
	Sections map[string][]byte
}

func writeFixedString(buf *bytes.Buffer, s string, width int) error {
	b := make([]byte, width)
	copy(b, s)
	_, err := buf.Write(b)
	return err
}

func readFixedString(r *bytes.Reader, width int) (string, error) {
	b := make([]byte, width)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = width
	}
	return string(b[:n]), nil
}

// Encode serializes a cartridge header and its sections into the on-wire
// format: header, section bodies back to back in section-table order.
func Encode(h Header, sections map[string][]byte) ([]byte, error) {
	if len(h.Sections) > maxSections {
		return nil, ErrTooManySections
	}

	var buf bytes.Buffer
	le := binary.LittleEndian

	if err := binary.Write(&buf, le, Magic); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, le, Version); err != nil {
		return nil, err
	}
	if err := writeFixedString(&buf, h.AppTitle, 128); err != nil {
		return nil, err
	}
	binary.Write(&buf, le, h.WindowWidth)
	binary.Write(&buf, le, h.WindowHeight)
	binary.Write(&buf, le, h.NumThreads)
	binary.Write(&buf, le, boolToByte(h.VSync))
	binary.Write(&buf, le, boolToByte(h.Fullscreen))
	binary.Write(&buf, le, boolToByte(h.Resizable))
	binary.Write(&buf, le, byte(0)) // reserved_flags[1]
	binary.Write(&buf, le, uint32(len(h.Sections)))

	// Header occupies a fixed 4(magic)+4(version)+128(title)+4+4+4+1+1+1+1
	// +4(count) = 156 bytes, then maxSections*headers, then 8*4 reserved.
	const sectionHeaderSize = 64 + 4 + 4 + 4 + 4*4
	headerFixedSize := buf.Len() + maxSections*sectionHeaderSize + 8*4

	bodyOffset := headerFixedSize
	offsets := make([]uint32, len(h.Sections))
	for i, sh := range h.Sections {
		offsets[i] = uint32(bodyOffset)
		bodyOffset += int(sh.Size)
	}

	for i := 0; i < maxSections; i++ {
		if i < len(h.Sections) {
			sh := h.Sections[i]
			writeFixedString(&buf, sh.Name, 64)
			binary.Write(&buf, le, uint32(sh.Type))
			binary.Write(&buf, le, offsets[i])
			binary.Write(&buf, le, sh.Size)
			binary.Write(&buf, le, sh.Reserved)
		} else {
			writeFixedString(&buf, "", 64)
			binary.Write(&buf, le, uint32(0))
			binary.Write(&buf, le, uint32(0))
			binary.Write(&buf, le, uint32(0))
			binary.Write(&buf, le, [4]uint32{})
		}
	}
	binary.Write(&buf, le, [8]uint32{})

	if buf.Len() != headerFixedSize {
		return nil, fmt.Errorf("cartridge: internal header size mismatch: %d != %d", buf.Len(), headerFixedSize)
	}

	for _, sh := range h.Sections {
		body := sections[sh.Name]
		if uint32(len(body)) != sh.Size {
			return nil, fmt.Errorf("cartridge: section %q size mismatch: header says %d, body is %d", sh.Name, sh.Size, len(body))
		}
		buf.Write(body)
	}

	return buf.Bytes(), nil
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Decode parses and validates a cartridge file, returning its header and
// section bodies. Validation failures (bad magic/version/bounds) leave no
// partial Cartridge exposed — the zero value is returned alongside the
// error.
func Decode(data []byte) (*Cartridge, error) {
	r := bytes.NewReader(data)
	le := binary.LittleEndian

	var magic, version uint32
	if err := binary.Read(r, le, &magic); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}
	if err := binary.Read(r, le, &version); err != nil {
		return nil, err
	}
	if version != Version {
		return nil, ErrBadVersion
	}

	title, err := readFixedString(r, 128)
	if err != nil {
		return nil, err
	}

	var width, height, threads uint32
	binary.Read(r, le, &width)
	binary.Read(r, le, &height)
	binary.Read(r, le, &threads)

	var vsync, fullscreen, resizable, reservedFlag byte
	binary.Read(r, le, &vsync)
	binary.Read(r, le, &fullscreen)
	binary.Read(r, le, &resizable)
	binary.Read(r, le, &reservedFlag)

	var sectionCount uint32
	if err := binary.Read(r, le, &sectionCount); err != nil {
		return nil, err
	}
	if sectionCount > maxSections {
		return nil, ErrTooManySections
	}

	sections := make([]SectionHeader, 0, sectionCount)
	for i := uint32(0); i < maxSections; i++ {
		name, err := readFixedString(r, 64)
		if err != nil {
			return nil, err
		}
		var typ, offset, size uint32
		var reserved [4]uint32
		binary.Read(r, le, &typ)
		binary.Read(r, le, &offset)
		binary.Read(r, le, &size)
		binary.Read(r, le, &reserved)

		if i < sectionCount {
			if int64(offset)+int64(size) > int64(len(data)) {
				return nil, ErrSectionBounds
			}
			sections = append(sections, SectionHeader{
				Name: name, Type: SectionType(typ), Offset: offset, Size: size, Reserved: reserved,
			})
		}
	}
	var reservedTail [8]uint32
	binary.Read(r, le, &reservedTail)

	c := &Cartridge{
		Header: Header{
			Magic: magic, Version: version, AppTitle: title,
			WindowWidth: width, WindowHeight: height, NumThreads: threads,
			VSync: vsync != 0, Fullscreen: fullscreen != 0, Resizable: resizable != 0,
			Sections: sections,
		},
		Sections: make(map[string][]byte, len(sections)),
	}
	for _, sh := range sections {
		c.Sections[sh.Name] = data[sh.Offset : sh.Offset+sh.Size]
	}
	return c, nil
}
