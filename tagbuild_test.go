package binform

import (
	"bytes"
	"reflect"
	"testing"
)

// Plain, untagged fields decode/encode using each type's natural width
// and the default (little-endian) byte order.
func TestDecodeEncodeBasicIntegers(t *testing.T) {
	type record struct {
		A uint8
		B uint16
		C uint32
		D int64
	}
	src := record{A: 0x7f, B: 0x1234, C: 0xdeadbeef, D: -5}

	buf := NewBuffer()
	if _, err := EncodeStruct(buf, &src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var dst record
	if _, err := DecodeStruct(&dst, NewBufferFromBytes(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst != src {
		t.Fatalf("got %+v, want %+v", dst, src)
	}
}

// The big/little tag keys pick IntegerField.Order the way endian tags
// pick it in the teacher's own engine.
func TestByteOrderTags(t *testing.T) {
	type pair struct {
		Be uint32 `binform:"big"`
		Le uint32 `binform:"little"`
	}
	src := pair{Be: 0x01020304, Le: 0x01020304}

	buf := NewBuffer()
	if _, err := EncodeStruct(buf, &src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	var dst pair
	if _, err := DecodeStruct(&dst, NewBufferFromBytes(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst != src {
		t.Fatalf("got %+v, want %+v", dst, src)
	}
}

// A bitfield tag narrower than the field's natural width packs it
// alongside a bool into a single byte, exercising the same BitStream
// run/realign machinery a hand-built Structure uses.
func TestBitfieldTag(t *testing.T) {
	type flags struct {
		Urgent bool
		Rest   uint8 `binform:"bitfield=7"`
	}
	src := flags{Urgent: true, Rest: 0x2a}

	buf := NewBuffer()
	if _, err := EncodeStruct(buf, &src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0xaa} // 1 0101010
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	var dst flags
	if _, err := DecodeStruct(&dst, NewBufferFromBytes(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst != src {
		t.Fatalf("got %+v, want %+v", dst, src)
	}
}

// sizeof wires a controller field to Structure.AutoLengthOf the target
// slice, overriding whatever the caller put in the controller field.
func TestSizeofTag(t *testing.T) {
	type blob struct {
		Size uint16 `binform:"sizeof=Data,big"`
		Data []byte
	}
	src := blob{Data: []byte("hello")}

	buf := NewBuffer()
	if _, err := EncodeStruct(buf, &src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	var dst blob
	if _, err := DecodeStruct(&dst, NewBufferFromBytes(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Size != 5 || string(dst.Data) != "hello" {
		t.Fatalf("got %+v", dst)
	}
}

// countof wires a controller field to Structure.AutoCountOf the
// target slice's element count.
func TestCountofTag(t *testing.T) {
	type table struct {
		Count uint8 `binform:"countof=Items"`
		Items []uint32
	}
	src := table{Items: []uint32{1, 2, 3}}

	buf := NewBuffer()
	if _, err := EncodeStruct(buf, &src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var dst table
	if _, err := DecodeStruct(&dst, NewBufferFromBytes(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Count != 3 || len(dst.Items) != 3 || dst.Items[0] != 1 || dst.Items[2] != 3 {
		t.Fatalf("got %+v", dst)
	}
}

// A countof-bound slice of nested structs exercises the array's
// element-building path together with the flat per-index context the
// ArrayField/Structure driver wires for structure elements.
func TestCountofTagWithNestedStructSlice(t *testing.T) {
	type point struct {
		X int16 `binform:"big"`
		Y int16 `binform:"big"`
	}
	type shape struct {
		Count  uint8 `binform:"countof=Points"`
		Points []point
	}
	src := shape{Points: []point{{X: 1, Y: 2}, {X: -3, Y: 4}}}

	buf := NewBuffer()
	if _, err := EncodeStruct(buf, &src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{2, 0, 1, 0, 2, 0xff, 0xfd, 0, 4}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	var dst shape
	if _, err := DecodeStruct(&dst, NewBufferFromBytes(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Count != 2 || len(dst.Points) != 2 {
		t.Fatalf("got %+v", dst)
	}
	if dst.Points[0] != src.Points[0] || dst.Points[1] != src.Points[1] {
		t.Fatalf("points = %+v, want %+v", dst.Points, src.Points)
	}
}

// A nested struct field (not inside a slice) builds and walks its own
// Structure the same way StructureField does for a hand-built one.
func TestNestedStructField(t *testing.T) {
	type header struct {
		Magic uint32 `binform:"big"`
	}
	type packet struct {
		Header header
		Tag    uint8
	}
	src := packet{Header: header{Magic: 0xcafef00d}, Tag: 7}

	buf := NewBuffer()
	if _, err := EncodeStruct(buf, &src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0xca, 0xfe, 0xf0, 0x0d, 7}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	var dst packet
	if _, err := DecodeStruct(&dst, NewBufferFromBytes(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst != src {
		t.Fatalf("got %+v, want %+v", dst, src)
	}
}

// BuildStructure caches by reflect.Type, so repeated calls for the
// same Go type return the identical *Structure rather than re-walking
// its tags.
func TestBuildStructureIsCached(t *testing.T) {
	type small struct {
		A uint8
	}
	st1, err := BuildStructure(reflect.TypeOf(small{}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	st2, err := BuildStructure(reflect.TypeOf(small{}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if st1 != st2 {
		t.Fatalf("expected the same cached *Structure, got distinct instances")
	}
}

// An unsupported field kind (a map has no wire representation here)
// is rejected at build time as a DEFINITION_ERROR.
func TestBuildStructureRejectsUnsupportedKind(t *testing.T) {
	type bad struct {
		M map[string]int
	}
	_, err := BuildStructure(reflect.TypeOf(bad{}))
	if err == nil || !IsKind(err, KindDefinitionError) {
		t.Fatalf("expected DEFINITION_ERROR for an unsupported field kind, got %v", err)
	}
}
