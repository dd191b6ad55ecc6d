package binform

import (
	"errors"
	"io"
)

// Stream is the minimal duck-typed surface the engine needs from the
// wrapped transport. Not every stream supports every capability:
// seekability is detected with an io.Seeker interface assertion the
// way the teacher detects io.ByteReader/io.ByteWriter.
type Stream interface {
	io.Reader
	io.Writer
}

// Tell reports the current stream offset, or an error if the stream
// isn't seekable.
func Tell(s Stream) (int64, error) {
	seeker, ok := s.(io.Seeker)
	if !ok {
		return 0, newError(KindDefinitionError, "stream is not seekable")
	}
	return seeker.Seek(0, io.SeekCurrent)
}

// IsSeekable reports whether s can be asked for its current offset
// and seeked to an absolute position.
func IsSeekable(s Stream) bool {
	_, ok := s.(io.Seeker)
	return ok
}

// Substream is a bounded view over an underlying stream: reads beyond
// its declared length return io.EOF (which the reading field reports
// as STREAM_EXHAUSTED) and writes beyond it return WRITE_ERROR, instead
// of reaching into the parent stream's remainder.
// It mirrors destructify's parsing.substream.Substream.
type Substream struct {
	parent   Stream
	length   int64 // -1 means unbounded (read until parent EOF)
	consumed int64
}

// NewSubstream wraps parent with a read/write cap of length bytes.
// Pass -1 for an unbounded substream (still tracks bytes consumed).
func NewSubstream(parent Stream, length int64) *Substream {
	return &Substream{parent: parent, length: length}
}

func (s *Substream) Remaining() int64 {
	if s.length < 0 {
		return -1
	}
	return s.length - s.consumed
}

func (s *Substream) Read(p []byte) (int, error) {
	if s.length >= 0 {
		remaining := s.length - s.consumed
		if remaining <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := s.parent.Read(p)
	s.consumed += int64(n)
	return n, err
}

func (s *Substream) Write(p []byte) (int, error) {
	if s.length >= 0 {
		remaining := s.length - s.consumed
		if int64(len(p)) > remaining {
			n, err := s.parent.Write(p[:remaining])
			s.consumed += int64(n)
			if err != nil {
				return n, err
			}
			return n, newError(KindWriteError, "write exceeds substream bound of %d bytes", s.length)
		}
	}
	n, err := s.parent.Write(p)
	s.consumed += int64(n)
	return n, err
}

// Skip advances past any unconsumed bytes up to the substream's
// declared length, discarding them. Used after a nested structure
// parses short of its declared outer length (the truncation policy
// from the Open Question resolution).
func (s *Substream) Skip() error {
	if s.length < 0 {
		return nil
	}
	remaining := s.length - s.consumed
	if remaining <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, s, remaining); err != nil {
		return newError(KindStreamExhausted, "could not skip %d trailing bytes: %v", remaining, err)
	}
	return nil
}

// Pad writes n zero bytes, used to fill a declared substream length
// the encoder didn't reach.
func (s *Substream) Pad(n int64) error {
	if n <= 0 {
		return nil
	}
	zeros := make([]byte, 4096)
	for n > 0 {
		chunk := n
		if chunk > int64(len(zeros)) {
			chunk = int64(len(zeros))
		}
		if _, err := s.Write(zeros[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

var errNotSeekable = errors.New("stream does not support seeking")
