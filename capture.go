package binform

import "io"

// CaptureStream wraps a Stream and records every byte that passes
// through it, in the order the bytes pass; a Seek moves the underlying
// stream but not the record, so record indices match stream offsets
// only while no seek has happened. A
// CRC/checksum field reaches back into the capture to re-read the raw
// bytes of a prior span without needing the underlying stream to be
// seekable -- grounded in destructify's parsing.context capture_raw
// option, which backs the Constant+CRC scenario (spec.md §8.4).
type CaptureStream struct {
	under  Stream
	offset int64
	buf    []byte
}

func NewCaptureStream(under Stream) *CaptureStream {
	return &CaptureStream{under: under}
}

func (c *CaptureStream) Read(p []byte) (int, error) {
	n, err := c.under.Read(p)
	if n > 0 {
		c.buf = append(c.buf, p[:n]...)
		c.offset += int64(n)
	}
	return n, err
}

func (c *CaptureStream) Write(p []byte) (int, error) {
	n, err := c.under.Write(p)
	if n > 0 {
		c.buf = append(c.buf, p[:n]...)
		c.offset += int64(n)
	}
	return n, err
}

// Span returns the captured bytes in [start, end), counted from the
// first byte this CaptureStream recorded.
func (c *CaptureStream) Span(start, end int64) ([]byte, error) {
	if start < 0 || end > int64(len(c.buf)) || start > end {
		return nil, newError(KindDefinitionError, "capture span [%d,%d) out of recorded range [0,%d)", start, end, len(c.buf))
	}
	return c.buf[start:end], nil
}

// Offset reports how many bytes have passed through the capture so far.
func (c *CaptureStream) Offset() int64 { return c.offset }

// Seek delegates to the underlying stream when it is itself seekable,
// so FieldRecord offset tracking works the same whether or not a
// CaptureStream sits between the Structure driver and the backing
// Buffer.
func (c *CaptureStream) Seek(offset int64, whence int) (int64, error) {
	seeker, ok := c.under.(io.Seeker)
	if !ok {
		return 0, newError(KindDefinitionError, "capture stream's underlying stream is not seekable")
	}
	return seeker.Seek(offset, whence)
}
