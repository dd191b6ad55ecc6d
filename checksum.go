package binform

import "hash/crc32"

// ChecksumField wraps an IntegerField so that, on encode, the
// written value is always recomputed from a CaptureStream span
// rather than taken from the caller -- the only way a crc field can
// be write-correct without forcing every caller to precompute it by
// hand (destructify relies on its own finalize hook reaching into
// parsing.context capture_raw for the same reason). Decode still
// reads the raw stored value; a Structure Check (CRC32Check) compares
// it against the recomputed one to catch corruption.
type ChecksumField struct {
	*IntegerField
	Capture *CaptureStream
	Hash    func(data []byte) uint64
	Span    func(acc *Accessor) (start, end int64, err error)
}

// NewCRC32Field builds a ChecksumField computing a CRC-32 (IEEE) over
// the bytes captured by capture within [start, end), as given by span.
func NewCRC32Field(name string, capture *CaptureStream, span func(acc *Accessor) (start, end int64, err error)) *ChecksumField {
	return &ChecksumField{
		IntegerField: NewIntegerField(name, 4),
		Capture:      capture,
		Hash:         func(data []byte) uint64 { return uint64(crc32.ChecksumIEEE(data)) },
		Span:         span,
	}
}

// GetDefault lets a ChecksumField be omitted from the caller's value
// map entirely: Encode recomputes the real value from the capture
// span regardless of what's resolved here, and stores it back into
// the field's record.
func (f *ChecksumField) GetDefault(acc *Accessor) (Value, error) {
	return int64(0), nil
}

func (f *ChecksumField) Encode(acc *Accessor, s Stream, v Value) error {
	start, end, err := f.Span(acc)
	if err != nil {
		return wrapPath(f.Name, err)
	}
	data, err := f.Capture.Span(start, end)
	if err != nil {
		return wrapPath(f.Name, err)
	}
	sum := f.Hash(data)
	if fr := acc.Context().Record(f.Name); fr != nil {
		fr.value = sum
	}
	return f.IntegerField.Encode(acc, s, sum)
}

// CRC32Check builds a Structure Check that recomputes a CRC-32 (IEEE
// polynomial) over the raw bytes captured between start and end and
// compares it against the value of an already-decoded integer field.
// ChecksumField computes the CRC on encode; this Check is the
// decode-side half that validates it. Pairing a CaptureStream with a
// Check this way is how destructify's capture_raw
// option plus a custom Field.validate are composed for the CRC
// scenario in spec.md §8.4; Go's hash/crc32 stands in for Python's
// zlib.crc32.
func CRC32Check(capture *CaptureStream, crcFieldName string, span func(inst *Instance) (start, end int64, err error)) Check {
	return func(inst *Instance) error {
		start, end, err := span(inst)
		if err != nil {
			return err
		}
		data, err := capture.Span(start, end)
		if err != nil {
			return err
		}
		want := crc32.ChecksumIEEE(data)
		got, err := inst.Get(crcFieldName)
		if err != nil {
			return err
		}
		gotInt, err := toInt64(got)
		if err != nil {
			return err
		}
		if uint32(gotInt) != want {
			return newError(KindCheckError, "crc32 mismatch on %q: stored %#08x, computed %#08x", crcFieldName, uint32(gotInt), want)
		}
		return nil
	}
}
