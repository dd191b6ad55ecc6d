package binform

import (
	"bytes"
	"testing"
)

// Scenario: a length-prefixed blob whose length field auto-overrides
// to len(data) on encode, and drives a bounded read on decode.
func TestLengthPrefixedBlob(t *testing.T) {
	st := NewStructure("blob")
	lenField := NewIntegerField("len", 2)
	lenField.Order = BigEndian
	st.AddField(lenField)
	st.AddField(NewFixedLengthField("data", Ref("len")))
	st.AutoLengthOf("len", "data")

	encoded, err := st.ToBytes(map[string]Value{
		"data": []byte("hello"),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("got % x, want % x", encoded, want)
	}

	inst, err := st.FromBytes(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := inst.MustGet("len"); toInt64Must(t, got) != 5 {
		t.Fatalf("len = %v, want 5", got)
	}
	if got := string(inst.MustGet("data").([]byte)); got != "hello" {
		t.Fatalf("data = %q, want %q", got, "hello")
	}
}

// Scenario: a big-endian and a little-endian integer, back to back.
func TestByteOrderPair(t *testing.T) {
	st := NewStructure("pair")
	be := NewIntegerField("be", 4)
	be.Order = BigEndian
	le := NewIntegerField("le", 4)
	le.Order = LittleEndian
	st.AddField(be)
	st.AddField(le)

	encoded, err := st.ToBytes(map[string]Value{
		"be": int64(0x01020304),
		"le": int64(0x01020304),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("got % x, want % x", encoded, want)
	}

	inst, err := st.FromBytes(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := toInt64Must(t, inst.MustGet("be")); v != 0x01020304 {
		t.Fatalf("be = %#x", v)
	}
	if v := toInt64Must(t, inst.MustGet("le")); v != 0x01020304 {
		t.Fatalf("le = %#x", v)
	}
}

// Scenario: three bit flags packed into one byte, followed by a
// byte-aligned field -- the structure driver must flush/realign the
// shared BitStream once the run of BitFields ends.
func TestBitFlagsRealign(t *testing.T) {
	st := NewStructure("flags")
	st.AddField(NewBitField("a", 1))
	st.AddField(NewBitField("b", 1))
	st.AddField(NewBitField("c", 6))
	st.AddField(NewIntegerField("tail", 1))

	encoded, err := st.ToBytes(map[string]Value{
		"a":    int64(1),
		"b":    int64(0),
		"c":    int64(0x2a),
		"tail": int64(0xff),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0xaa, 0xff} // 1 0 101010 = 0xaa
	if !bytes.Equal(encoded, want) {
		t.Fatalf("got % x, want % x", encoded, want)
	}

	inst, err := st.FromBytes(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := toInt64Must(t, inst.MustGet("a")); v != 1 {
		t.Fatalf("a = %v", v)
	}
	if v := toInt64Must(t, inst.MustGet("c")); v != 0x2a {
		t.Fatalf("c = %v", v)
	}
	if v := toInt64Must(t, inst.MustGet("tail")); v != 0xff {
		t.Fatalf("tail = %v", v)
	}
}

// Scenario: a magic constant, a length-prefixed body, and a trailing
// CRC-32 over [kind, body) computed from a CaptureStream span -- and
// mutating any byte of kind or body and re-encoding updates the crc.
func TestConstantAndCRC(t *testing.T) {
	buildStructure := func(capture *CaptureStream) *Structure {
		st := NewStructure("record")
		st.AddField(NewConstantField("magic", NewIntegerField("magic", 4), int64(0xcafef00d)))
		st.AddField(NewIntegerField("len", 2))
		st.AddField(NewFixedLengthField("body", Ref("len")))
		st.AutoLengthOf("len", "body")
		crcSpan := func(acc *Accessor) (int64, int64, error) {
			magicLen := int64(4)
			lenLen := int64(2)
			bodyLen, err := acc.ctx.Get("len")
			if err != nil {
				return 0, 0, err
			}
			n, err := toInt64(bodyLen)
			if err != nil {
				return 0, 0, err
			}
			return 0, magicLen + lenLen + n, nil
		}
		st.AddField(NewCRC32Field("crc", capture, crcSpan))
		st.AddCheck(CRC32Check(capture, "crc", func(inst *Instance) (int64, int64, error) {
			return crcSpan(inst.Accessor())
		}))
		return st
	}

	capture := NewCaptureStream(NewBuffer())
	st := buildStructure(capture)
	_, err := st.Encode(nil, capture, map[string]Value{
		"body": []byte("payload"),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	encoded := capture.under.(*Buffer).Bytes()

	decodeCapture := NewCaptureStream(NewBufferFromBytes(encoded))
	decodeSt := buildStructure(decodeCapture)
	if _, err := decodeSt.Decode(nil, decodeCapture); err != nil {
		t.Fatalf("decode with valid crc should pass: %v", err)
	}

	corrupted := append([]byte{}, encoded...)
	corrupted[6] ^= 0xff // flip a byte inside the body
	badCapture := NewCaptureStream(NewBufferFromBytes(corrupted))
	badSt := buildStructure(badCapture)
	if _, err := badSt.Decode(nil, badCapture); err == nil || !IsKind(err, KindCheckError) {
		t.Fatalf("expected CHECK_ERROR on corrupted body, got %v", err)
	}
}

// Scenario: a tag byte selects which alternative decodes the payload.
func TestSwitchOnEnum(t *testing.T) {
	st := NewStructure("tagged")
	st.AddField(NewIntegerField("tag", 1))
	st.AddField(NewSwitchField("payload", This().Field("tag"), map[Value]Field{
		int64(1): NewIntegerField("int_payload", 4),
		int64(2): NewFixedLengthField("text_payload", Lit(int64(3))),
	}))

	intEncoded, err := st.ToBytes(map[string]Value{
		"tag":     int64(1),
		"payload": int64(42),
	})
	if err != nil {
		t.Fatalf("encode int case: %v", err)
	}
	inst, err := st.FromBytes(intEncoded)
	if err != nil {
		t.Fatalf("decode int case: %v", err)
	}
	if v := toInt64Must(t, inst.MustGet("payload")); v != 42 {
		t.Fatalf("payload = %v, want 42", v)
	}

	textEncoded, err := st.ToBytes(map[string]Value{
		"tag":     int64(2),
		"payload": []byte("abc"),
	})
	if err != nil {
		t.Fatalf("encode text case: %v", err)
	}
	inst, err = st.FromBytes(textEncoded)
	if err != nil {
		t.Fatalf("decode text case: %v", err)
	}
	if got := string(inst.MustGet("payload").([]byte)); got != "abc" {
		t.Fatalf("payload = %q, want %q", got, "abc")
	}

	if _, err := st.ToBytes(map[string]Value{"tag": int64(9), "payload": int64(0)}); err == nil {
		t.Fatalf("expected an error for an unmatched switch case")
	}
}

// Scenario: an array read until stream exhaustion (negative length),
// stopping early if Until fires first.
func TestArrayUntilAndNegativeLength(t *testing.T) {
	elem := NewIntegerField("_", 1)
	st := NewStructure("tail")
	arr := NewArrayField("items", elem)
	arr.Length = Lit(int64(-1))
	st.AddField(arr)

	inst, err := st.FromBytes([]byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	items := inst.MustGet("items").(arrayValues)
	if len(items.Items) != 5 {
		t.Fatalf("len(items) = %d, want 5", len(items.Items))
	}

	untilArr := NewArrayField("items", elem)
	untilArr.Length = Lit(int64(-1))
	untilArr.Until = func(v Value, acc *Accessor) (bool, error) {
		n, err := toInt64(v)
		return n == 3, err
	}
	stopSt := NewStructure("tail_until")
	stopSt.AddField(untilArr)

	inst, err = stopSt.FromBytes([]byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("decode with until: %v", err)
	}
	items = inst.MustGet("items").(arrayValues)
	if len(items.Items) != 3 {
		t.Fatalf("len(items) = %d, want 3 (stopped at the until element)", len(items.Items))
	}
}

// Array elements decode into a flat child context carrying synthetic
// "0".."i" names, so a later element (or a dependent formula) can look
// an earlier one up by index, and that context hangs off the array
// field's own value for the Structure driver to expose as a
// subcontext, the same treatment a lone StructureField gets.
func TestArrayElementFlatContextIndexLookup(t *testing.T) {
	st := NewStructure("indexed")
	arr := NewArrayField("items", NewIntegerField("_", 1))
	arr.Count = Lit(int64(3))
	st.AddField(arr)

	inst, err := st.FromBytes([]byte{7, 8, 9})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	items := inst.MustGet("items").(arrayValues)
	if !items.Ctx.Flat {
		t.Fatalf("array element context is not flat")
	}
	first, err := items.Ctx.Get("0")
	if err != nil {
		t.Fatalf("looking up element 0: %v", err)
	}
	if toInt64Must(t, first) != 7 {
		t.Fatalf("items[0] = %v, want 7", first)
	}
	last, err := items.Ctx.Get("2")
	if err != nil {
		t.Fatalf("looking up element 2: %v", err)
	}
	if toInt64Must(t, last) != 9 {
		t.Fatalf("items[2] = %v, want 9", last)
	}
}

// An array of nested structures decodes each element into an
// *Instance and populates a Sub context for each element's record
// the same way a bare StructureField does.
func TestArrayOfStructuresSubcontext(t *testing.T) {
	point := NewStructure("point")
	point.AddField(NewIntegerField("x", 1))
	point.AddField(NewIntegerField("y", 1))

	st := NewStructure("path")
	arr := NewArrayField("points", NewStructureField("_", point))
	arr.Count = Lit(int64(2))
	st.AddField(arr)

	inst, err := st.FromBytes([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	items := inst.MustGet("points").(arrayValues)
	if len(items.Items) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(items.Items))
	}
	second, ok := items.Items[1].(*Instance)
	if !ok {
		t.Fatalf("points[1] is %T, want *Instance", items.Items[1])
	}
	if toInt64Must(t, second.MustGet("x")) != 3 || toInt64Must(t, second.MustGet("y")) != 4 {
		t.Fatalf("points[1] = %v, want x=3 y=4", second)
	}

	rec := items.Ctx.Record("1")
	if rec == nil || rec.Sub == nil {
		t.Fatalf("element 1 has no subcontext recorded")
	}
}

// TerminatorUntil stops before the terminator and rewinds past it
// instead of consuming it, leaving it for whatever field reads next.
func TestTerminatedFieldUntilMode(t *testing.T) {
	st := NewStructure("tagged")
	name := NewTerminatedField("name")
	name.Mode = TerminatorUntil
	st.AddField(name)
	st.AddField(NewFixedLengthField("rest", Lit(int64(-1))))

	inst, err := st.FromBytes([]byte{'a', 'b', 0, 'c', 'd'})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := string(inst.MustGet("name").([]byte)); got != "ab" {
		t.Fatalf("name = %q, want %q", got, "ab")
	}
	if got := inst.MustGet("rest").([]byte); !bytes.Equal(got, []byte{0, 'c', 'd'}) {
		t.Fatalf("rest = % x, want the terminator plus trailing bytes", got)
	}
}

// A count-bound array must reject a value slice whose length disagrees
// with the declared count, per spec's "On write with count set and
// value.len() != count, fails WRITE_ERROR".
func TestArrayCountMismatchIsWriteError(t *testing.T) {
	st := NewStructure("fixed3")
	arr := NewArrayField("items", NewIntegerField("_", 1))
	arr.Count = Lit(int64(3))
	st.AddField(arr)

	_, err := st.ToBytes(map[string]Value{
		"items": arrayValues{Items: []Value{int64(1), int64(2)}},
	})
	if err == nil || !IsKind(err, KindWriteError) {
		t.Fatalf("expected WRITE_ERROR for a short array, got %v", err)
	}
}

// A ConstantField must reject a caller-supplied value that disagrees
// with its expected literal, per spec's "On encode, requires the
// supplied value equal the expected literal"; omitting the value
// entirely still falls back to GetDefault.
func TestConstantFieldRejectsMismatchedValue(t *testing.T) {
	st := NewStructure("magic")
	magic := NewIntegerField("magic", 4)
	magic.Order = BigEndian
	st.AddField(NewConstantField("magic", magic, int64(0xcafef00d)))

	if _, err := st.ToBytes(map[string]Value{"magic": int64(0xdeadbeef)}); err == nil || !IsKind(err, KindWriteError) {
		t.Fatalf("expected WRITE_ERROR for a mismatched constant, got %v", err)
	}

	encoded, err := st.ToBytes(nil)
	if err != nil {
		t.Fatalf("encode with omitted value: %v", err)
	}
	if want := []byte{0xca, 0xfe, 0xf0, 0x0d}; !bytes.Equal(encoded, want) {
		t.Fatalf("got % x, want % x", encoded, want)
	}
}

// An unmatched switch reports PARSE_ERROR on decode and WRITE_ERROR on
// encode, not the same kind for both directions.
func TestSwitchUnmatchedErrorKinds(t *testing.T) {
	st := NewStructure("tagged")
	st.AddField(NewIntegerField("tag", 1))
	st.AddField(NewSwitchField("payload", This().Field("tag"), map[Value]Field{
		int64(1): NewIntegerField("int_payload", 4),
	}))

	if _, err := st.ToBytes(map[string]Value{"tag": int64(9), "payload": int64(0)}); err == nil || !IsKind(err, KindWriteError) {
		t.Fatalf("expected WRITE_ERROR on encode, got %v", err)
	}
	if _, err := st.FromBytes([]byte{9, 0, 0, 0, 0}); err == nil || !IsKind(err, KindParseError) {
		t.Fatalf("expected PARSE_ERROR on decode, got %v", err)
	}
}

// Scenario: a single realigning bit field mid-run forces a flush
// before the next bit field starts, so two bit fields on either side
// of a Realign=true field land in separate bytes instead of packing
// together.
func TestBitFieldRealignMidRun(t *testing.T) {
	st := NewStructure("split")
	a := NewBitField("a", 3)
	a.Realign = true
	st.AddField(a)
	st.AddField(NewBitField("b", 3))

	encoded, err := st.ToBytes(map[string]Value{
		"a": int64(0x5), // 101
		"b": int64(0x3), // 011
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// "a" (3 bits) pads+flushes alone into byte 0; "b" (3 bits) pads+
	// flushes alone into byte 1.
	want := []byte{0b10100000, 0b01100000}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("got % x, want % x", encoded, want)
	}

	inst, err := st.FromBytes(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := toInt64Must(t, inst.MustGet("a")); v != 0x5 {
		t.Fatalf("a = %v, want 5", v)
	}
	if v := toInt64Must(t, inst.MustGet("b")); v != 0x3 {
		t.Fatalf("b = %v, want 3", v)
	}
}

func toInt64Must(t *testing.T, v Value) int64 {
	t.Helper()
	n, err := toInt64(v)
	if err != nil {
		t.Fatalf("toInt64(%v): %v", v, err)
	}
	return n
}
