// Package image memory-maps a file read-only and hands out bounds-checked
// views of it. Parsers (ELF, PE) only ever read through Bytes; no parser
// holds a raw pointer into the mapping, so every offset dereferenced by a
// parser is validated against the mapping's length before use.
package image

import (
	"bytes"
	"fmt"
	"os"
	"syscall"

	"github.com/0xWelsh/rekit/internal/rekiterr"
)

// DefaultMaxBytes is the mapping ceiling used when the caller does not
// supply one (see internal/config for the override).
const DefaultMaxBytes = 100 * 1024 * 1024

// Image is an immutable, bounded byte view of a file.
type Image struct {
	Path string
	data []byte
}

// Open maps path read-only. maxBytes <= 0 selects DefaultMaxBytes.
func Open(path string, maxBytes int64) (*Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &rekiterr.InputError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, &rekiterr.InputError{Op: "stat", Path: path, Err: err}
	}
	size := st.Size()
	if size == 0 {
		return nil, &rekiterr.InputError{Op: "open", Path: path, Err: fmt.Errorf("empty file")}
	}
	if size > maxBytes {
		return nil, &rekiterr.InputError{Op: "open", Path: path, Err: fmt.Errorf("file too large (max %d bytes)", maxBytes)}
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_PRIVATE)
	if err != nil {
		return nil, &rekiterr.InputError{Op: "mmap", Path: path, Err: err}
	}
	return &Image{Path: path, data: data}, nil
}

// Close releases the mapping. Safe to call on a nil Image.
func (im *Image) Close() error {
	if im == nil || im.data == nil {
		return nil
	}
	err := syscall.Munmap(im.data)
	im.data = nil
	return err
}

// Len reports the mapping's length in bytes.
func (im *Image) Len() int64 { return int64(len(im.data)) }

// BoundsError reports an out-of-range read attempt through Bytes.
type BoundsError struct {
	Offset, Len, ImageLen int64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("offset %d len %d exceeds image length %d", e.Offset, e.Len, e.ImageLen)
}

// Bytes returns a read-only view [offset, offset+n) of the image, or a
// BoundsError if any byte of it would fall outside the mapping.
func (im *Image) Bytes(offset, n int64) ([]byte, error) {
	if offset < 0 || n < 0 || offset+n > im.Len() {
		return nil, &BoundsError{Offset: offset, Len: n, ImageLen: im.Len()}
	}
	return im.data[offset : offset+n], nil
}

// Find returns the file offsets of every (possibly overlapping) occurrence
// of needle in the image.
func (im *Image) Find(needle []byte) []int64 {
	var offs []int64
	if len(needle) == 0 {
		return offs
	}
	start := 0
	for {
		idx := bytes.Index(im.data[start:], needle)
		if idx < 0 {
			return offs
		}
		offs = append(offs, int64(start+idx))
		start += idx + 1
		if start >= len(im.data) {
			return offs
		}
	}
}
