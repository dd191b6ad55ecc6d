package binform

import (
	"bytes"
	"io"
)

// FixedLengthField reads/writes an exact number of raw bytes, padding
// or truncating on encode per Strict. A negative Length means "read
// to EOF / write as is" (spec §4.3.1); StripPadding, if set, trims a
// trailing run of Padding bytes off the decoded value the way it was
// appended on encode. Grounded on destructify's FixedLengthField
// (fields/common.py) and the teacher's raw-array copy path in
// decoder.go/encoder.go's array handling.
type FixedLengthField struct {
	BaseField
	Length       Param // required; bytes. A literal negative value means "to EOF" on decode, "as-is" on encode.
	Padding      byte  // pad byte used when the value is shorter than Length
	StripPadding bool  // strip a trailing run of Padding bytes from the decoded value
	Strict       bool  // error instead of truncating an over-length value
}

func NewFixedLengthField(name string, length Param) *FixedLengthField {
	return &FixedLengthField{BaseField: BaseField{Name: name}, Length: length}
}

func (f *FixedLengthField) Len(acc *Accessor) (int64, error) {
	n, err := f.Length.ResolveInt(acc)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newError(KindImpossibleLength, "field %q reads to EOF, length is not statically known", f.Name)
	}
	return n, nil
}

func (f *FixedLengthField) Decode(acc *Accessor, s Stream) (Value, error) {
	n, err := f.Length.ResolveInt(acc)
	if err != nil {
		return nil, wrapPath(f.Name, err)
	}
	var buf []byte
	if n < 0 {
		buf, err = io.ReadAll(s)
		if err != nil {
			return nil, wrapPath(f.Name, newError(KindStreamExhausted, "%v", err))
		}
	} else {
		buf = make([]byte, n)
		if _, err := io.ReadFull(s, buf); err != nil {
			return nil, wrapPath(f.Name, newError(KindStreamExhausted, "expected %d bytes: %v", n, err))
		}
	}
	if f.StripPadding {
		end := len(buf)
		for end > 0 && buf[end-1] == f.Padding {
			end--
		}
		buf = buf[:end]
	}
	return buf, nil
}

func (f *FixedLengthField) Encode(acc *Accessor, s Stream, v Value) error {
	b, ok := v.([]byte)
	if !ok {
		return wrapPath(f.Name, newError(KindDefinitionError, "value is not []byte"))
	}
	n, err := f.Length.ResolveInt(acc)
	if err != nil {
		return wrapPath(f.Name, err)
	}
	if n < 0 {
		if _, err := s.Write(b); err != nil {
			return wrapPath(f.Name, newError(KindWriteError, "%v", err))
		}
		return nil
	}
	if int64(len(b)) > n {
		if f.Strict {
			return wrapPath(f.Name, newError(KindWriteError, "value of %d bytes exceeds declared length %d", len(b), n))
		}
		b = b[:n]
	}
	if _, err := s.Write(b); err != nil {
		return wrapPath(f.Name, newError(KindWriteError, "%v", err))
	}
	if int64(len(b)) < n {
		pad := bytes.Repeat([]byte{f.Padding}, int(n)-len(b))
		if _, err := s.Write(pad); err != nil {
			return wrapPath(f.Name, newError(KindWriteError, "%v", err))
		}
	}
	return nil
}

// TerminatorMode picks what a TerminatedField does with the matched
// terminator once it's found, per destructify's TerminatedField
// include/consume handling (fields/common.py).
type TerminatorMode int

const (
	// TerminatorConsume strips the terminator from the decoded value
	// and appends it again on encode. The default.
	TerminatorConsume TerminatorMode = iota
	// TerminatorInclude keeps the terminator as part of the decoded
	// value, and expects it already present in the value on encode.
	TerminatorInclude
	// TerminatorUntil stops decoding before the terminator and rewinds
	// the stream back over it, leaving it unread for whatever comes
	// next; requires a seekable Stream. On encode it behaves like
	// TerminatorConsume's payload handling but writes no terminator at
	// all, since the field after it owns those bytes.
	TerminatorUntil
)

// TerminatedField reads raw bytes up to a terminator sequence, reading
// Step bytes at a time. Grounded on destructify's TerminatedField
// (fields/common.py), which reads step-sized chunks looking for a
// terminator tail.
type TerminatedField struct {
	BaseField
	Terminator []byte // defaults to a single NUL if nil
	Step       int    // defaults to 1
	Mode       TerminatorMode
	Strict     bool // STREAM_EXHAUSTED if the terminator is never found
}

func NewTerminatedField(name string) *TerminatedField {
	return &TerminatedField{BaseField: BaseField{Name: name}, Terminator: []byte{0}, Step: 1}
}

func (f *TerminatedField) terminator() []byte {
	if len(f.Terminator) == 0 {
		return []byte{0}
	}
	return f.Terminator
}

func (f *TerminatedField) step() int {
	if f.Step <= 0 {
		return 1
	}
	return f.Step
}

func (f *TerminatedField) Decode(acc *Accessor, s Stream) (Value, error) {
	term := f.terminator()
	step := f.step()
	var out []byte
	chunk := make([]byte, step)
	for {
		n, err := io.ReadFull(s, chunk)
		if n > 0 {
			out = append(out, chunk[:n]...)
		}
		if bytes.HasSuffix(out, term) {
			switch f.Mode {
			case TerminatorInclude:
				return out, nil
			case TerminatorUntil:
				seeker, ok := s.(io.Seeker)
				if !ok {
					return nil, wrapPath(f.Name, newError(KindDefinitionError, "until mode requires a seekable stream"))
				}
				if _, err := seeker.Seek(-int64(len(term)), io.SeekCurrent); err != nil {
					return nil, wrapPath(f.Name, newError(KindStreamExhausted, "rewinding past terminator: %v", err))
				}
				return out[:len(out)-len(term)], nil
			default:
				return out[:len(out)-len(term)], nil
			}
		}
		if err != nil {
			if f.Strict {
				return nil, wrapPath(f.Name, newError(KindStreamExhausted, "terminator %x not found: %v", term, err))
			}
			return out, nil
		}
	}
}

func (f *TerminatedField) Encode(acc *Accessor, s Stream, v Value) error {
	b, ok := v.([]byte)
	if !ok {
		if str, ok2 := v.(string); ok2 {
			b = []byte(str)
		} else {
			return wrapPath(f.Name, newError(KindDefinitionError, "value is not []byte or string"))
		}
	}
	switch f.Mode {
	case TerminatorInclude, TerminatorUntil:
		// Include expects the terminator already present in the value;
		// Until never owns the terminator bytes at all.
	default:
		b = append(append([]byte{}, b...), f.terminator()...)
	}
	if _, err := s.Write(b); err != nil {
		return wrapPath(f.Name, newError(KindWriteError, "%v", err))
	}
	return nil
}

// TextField decodes/encodes a FixedLengthField's raw bytes as a Go
// string. destructify's common.py StringField is the direct source;
// there is no encoding setting: bytes pass through unchanged (UTF-8/
// ASCII passthrough), since the Go standard library doesn't carry a
// generic codec registry the way Python's codecs module does.
type TextField struct {
	*FixedLengthField
	Terminator []byte // not consulted by Decode/Encode, which always use the fixed Length
}

func NewTextField(name string, length Param) *TextField {
	return &TextField{FixedLengthField: NewFixedLengthField(name, length)}
}

func (f *TextField) Decode(acc *Accessor, s Stream) (Value, error) {
	v, err := f.FixedLengthField.Decode(acc, s)
	if err != nil {
		return nil, err
	}
	return string(v.([]byte)), nil
}

func (f *TextField) Encode(acc *Accessor, s Stream, v Value) error {
	str, ok := v.(string)
	if !ok {
		return wrapPath(f.Name, newError(KindDefinitionError, "value is not a string"))
	}
	return f.FixedLengthField.Encode(acc, s, []byte(str))
}
