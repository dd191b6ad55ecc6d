/*
Copyright 2021 Hewlett Packard Enterprise Development LP

Permission is hereby granted, free of charge, to any person obtaining a
copy of this software and associated documentation files (the "Software"),
to deal in the Software without restriction, including without limitation
the rights to use, copy, modify, merge, publish, distribute, sublicense,
and/or sell copies of the Software, and to permit persons to whom the
Software is furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.

IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM,
DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR
OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE
USE OR OTHER DEALINGS IN THE SOFTWARE.
*/
package binform

import (
	"fmt"
	"io"
)

// Buffer is an in-memory, growable Stream that also satisfies
// io.Seeker, making it the natural target for fields that declare an
// absolute Offset or need Tell() for lazy resolution. It generalizes
// the teacher's fixed-size Buffer (sized up front from a struct's
// reflected size) into one that grows on Write, since a Structure's
// encoded size is often itself data-dependent.
type Buffer struct {
	bytes  []byte
	offset int
}

// NewBuffer returns an empty, growable Buffer ready for encoding into.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFromBytes wraps existing bytes for decoding from.
func NewBufferFromBytes(b []byte) *Buffer {
	return &Buffer{bytes: append([]byte{}, b...)}
}

// Bytes returns the raw bytes backing the Buffer.
func (buf *Buffer) Bytes() []byte {
	return buf.bytes
}

func (buf *Buffer) Read(p []byte) (int, error) {
	if buf.offset >= len(buf.bytes) {
		return 0, io.EOF
	}
	n := copy(p, buf.bytes[buf.offset:])
	buf.offset += n
	return n, nil
}

func (buf *Buffer) Write(p []byte) (int, error) {
	end := buf.offset + len(p)
	if end > len(buf.bytes) {
		grown := make([]byte, end)
		copy(grown, buf.bytes)
		buf.bytes = grown
	}
	copy(buf.bytes[buf.offset:end], p)
	buf.offset = end
	return len(p), nil
}

// Seek implements io.Seeker; SeekEnd/SeekCurrent are relative to the
// buffer's current length and offset respectively.
func (buf *Buffer) Seek(off int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = off
	case io.SeekCurrent:
		abs = int64(buf.offset) + off
	case io.SeekEnd:
		abs = int64(len(buf.bytes)) + off
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position %d", abs)
	}
	buf.offset = int(abs)
	return abs, nil
}

// Reset clears the buffer for reuse.
func (buf *Buffer) Reset() {
	buf.bytes = buf.bytes[:0]
	buf.offset = 0
}

// DebugDump prints the buffer in raw byte format, 16 bytes per line --
// kept from the teacher's debugging helper of the same name.
func (buf *Buffer) DebugDump() {
	for offset := 0; offset < len(buf.bytes); offset += 16 {
		fmt.Printf("%08x: ", offset)
		for i := 0; i < 16; i++ {
			if offset+i < len(buf.bytes) {
				fmt.Printf("%02x ", buf.bytes[offset+i])
			} else {
				fmt.Printf("-- ")
			}
		}
		fmt.Printf("\n")
	}
}
