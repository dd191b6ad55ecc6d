package binform

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// BuildStructure turns a tagged Go struct type into a Structure
// descriptor: a construction-time convenience over the same runtime
// engine NewStructure/AddField build by hand, the way the teacher's
// struct tags configure a pack/unpack pass in its own reflect engine.
// Here the tags configure a real Structure/Field
// graph instead of driving a second, parallel codec, so a tagged
// struct and a hand-built Structure decode/encode through the exact
// same driver. Built structures are cached per reflect.Type, since a
// repeated DecodeStruct/EncodeStruct call for the same Go type would
// otherwise re-walk the same tags on every call.
//
// Supported field tag ("binform"), comma-separated key[=value] pairs:
//
//	big / little      byte order for an integer field
//	bitfield=N         pack as an N-bit BitField instead of a full-width int
//	sizeof=Name         this field always encodes len(Name) in bytes
//	countof=Name        this field always encodes len(Name) in elements
//	align=N             byte alignment applied before this field
//
// Grounded on the teacher's tags.go grammar (endian/bitfield/layout/
// alignment keys, comma-separated clauses) and decoder.go/encoder.go's
// reflect-kind dispatch, re-targeted from "transcode this struct
// directly" to "describe a Structure once, then let binform drive it".
var structureCache sync.Map // reflect.Type -> *Structure

func BuildStructure(t reflect.Type) (*Structure, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, newError(KindDefinitionError, "tagbuild: %s is not a struct type", t)
	}
	if cached, ok := structureCache.Load(t); ok {
		return cached.(*Structure), nil
	}
	st, err := buildStructureUncached(t)
	if err != nil {
		return nil, err
	}
	structureCache.Store(t, st)
	return st, nil
}

type layoutKind int

const (
	layoutNone layoutKind = iota
	layoutSizeOf
	layoutCountOf
)

type tagAttrs struct {
	hasOrder     bool
	order        ByteOrder
	hasBits      bool
	bits         int
	layoutKind   layoutKind
	layoutTarget string
	align        int
}

type layoutLink struct {
	kind       layoutKind
	controller string
	target     string
}

func buildStructureUncached(t reflect.Type) (*Structure, error) {
	st := NewStructure(t.Name())
	var links []layoutLink

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}
		raw := sf.Tag.Get("binform")
		attrs, err := parseTagString(raw)
		if err != nil {
			return nil, newError(KindDefinitionError, "tagbuild: field %q: %v", sf.Name, err)
		}
		f, err := fieldForStructField(sf, attrs)
		if err != nil {
			return nil, newError(KindDefinitionError, "tagbuild: field %q: %v", sf.Name, err)
		}
		if attrs.align > 0 {
			if bf, ok := fieldBase(f); ok {
				bf.Align = attrs.align
			}
		}
		st.AddField(f)
		if attrs.layoutKind != layoutNone {
			links = append(links, layoutLink{attrs.layoutKind, sf.Name, attrs.layoutTarget})
		}
	}

	for _, link := range links {
		target := findField(st, link.target)
		if target == nil {
			return nil, newError(KindDefinitionError, "tagbuild: %q references unknown field %q", link.controller, link.target)
		}
		switch tf := target.(type) {
		case *FixedLengthField:
			tf.Length = Ref(link.controller)
		case *ArrayField:
			if link.kind == layoutCountOf {
				tf.Count = Ref(link.controller)
			} else {
				tf.Length = Ref(link.controller)
			}
		default:
			return nil, newError(KindDefinitionError, "tagbuild: field %q is not length/count-addressable", link.target)
		}
		switch link.kind {
		case layoutSizeOf:
			st.AutoLengthOf(link.controller, link.target)
		case layoutCountOf:
			st.AutoCountOf(link.controller, link.target)
		}
	}
	return st, nil
}

func findField(st *Structure, name string) Field {
	for _, f := range st.Fields {
		if f.FieldName() == name {
			return f
		}
	}
	return nil
}

// parseTagString is a simpler, purpose-built replacement for the
// teacher's rune-by-rune tag parser (tags.go): the grammar
// here has no nested/quoted sub-clauses, so comma-split plus a single
// "=" split per clause covers it.
func parseTagString(raw string) (tagAttrs, error) {
	var attrs tagAttrs
	if raw == "" {
		return attrs, nil
	}
	for _, clause := range strings.Split(raw, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		key, val := clause, ""
		if i := strings.IndexByte(clause, '='); i >= 0 {
			key, val = clause[:i], strings.Trim(clause[i+1:], `'"`)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "big":
			attrs.hasOrder, attrs.order = true, BigEndian
		case "little":
			attrs.hasOrder, attrs.order = true, LittleEndian
		case "bitfield":
			n, err := strconv.Atoi(val)
			if err != nil {
				return attrs, fmt.Errorf("bitfield: %v", err)
			}
			attrs.hasBits, attrs.bits = true, n
		case "sizeof":
			attrs.layoutKind, attrs.layoutTarget = layoutSizeOf, val
		case "countof":
			attrs.layoutKind, attrs.layoutTarget = layoutCountOf, val
		case "align":
			n, err := strconv.Atoi(val)
			if err != nil {
				return attrs, fmt.Errorf("align: %v", err)
			}
			attrs.align = n
		default:
			return attrs, fmt.Errorf("unknown tag key %q", key)
		}
	}
	return attrs, nil
}

func fieldForStructField(sf reflect.StructField, attrs tagAttrs) (Field, error) {
	switch sf.Type.Kind() {
	case reflect.Struct:
		nested, err := BuildStructure(sf.Type)
		if err != nil {
			return nil, err
		}
		return NewStructureField(sf.Name, nested), nil

	case reflect.Array:
		return fieldForSequence(sf.Name, sf.Type, sf.Type.Len(), true, attrs)

	case reflect.Slice:
		return fieldForSequence(sf.Name, sf.Type, 0, false, attrs)

	case reflect.Bool:
		return NewBitField(sf.Name, 1), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return integerOrBitField(sf.Name, sf.Type, attrs), nil

	default:
		return nil, fmt.Errorf("unsupported field kind %s", sf.Type.Kind())
	}
}

func isSignedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func integerOrBitField(name string, t reflect.Type, attrs tagAttrs) Field {
	natural := int(t.Bits())
	signed := isSignedKind(t.Kind())
	if attrs.hasBits && attrs.bits != natural {
		bf := NewBitField(name, attrs.bits)
		bf.Signed = signed
		return bf
	}
	intf := NewIntegerField(name, natural/8)
	intf.Signed = signed
	if attrs.hasOrder {
		intf.Order = attrs.order
	}
	return intf
}

func fieldForSequence(name string, t reflect.Type, fixedLen int, isArray bool, attrs tagAttrs) (Field, error) {
	elem := t.Elem()
	if elem.Kind() == reflect.Uint8 {
		ff := NewFixedLengthField(name, NoParam)
		switch {
		case isArray:
			ff.Length = Lit(int64(fixedLen))
		case attrs.layoutKind == layoutNone:
			ff.Length = Lit(int64(-1))
		}
		return ff, nil
	}

	elemField, err := fieldForElem(elem)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}
	arr := NewArrayField(name, elemField)
	switch {
	case isArray:
		arr.Count = Lit(int64(fixedLen))
	case attrs.layoutKind == layoutNone:
		arr.Length = Lit(int64(-1))
	}
	return arr, nil
}

func fieldForElem(t reflect.Type) (Field, error) {
	switch t.Kind() {
	case reflect.Struct:
		nested, err := BuildStructure(t)
		if err != nil {
			return nil, err
		}
		return NewStructureField("_", nested), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f := NewIntegerField("_", int(t.Bits())/8)
		f.Signed = isSignedKind(t.Kind())
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported array/slice element kind %s", t.Kind())
	}
}

// DecodeStruct builds (or reuses a cached) Structure for dst's element
// type and decodes s directly into dst's fields via reflection -- the
// construction-path analogue of the teacher's reflect-driven Decode,
// but backed by the same Structure/Field engine a hand-built
// descriptor uses.
func DecodeStruct(dst interface{}, s Stream) (*Instance, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, newError(KindDefinitionError, "tagbuild: DecodeStruct requires a non-nil pointer to a struct")
	}
	elem := rv.Elem()
	st, err := BuildStructure(elem.Type())
	if err != nil {
		return nil, err
	}
	inst, err := st.Decode(nil, s)
	if err != nil {
		return nil, err
	}
	if err := assignStruct(elem, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func assignStruct(structVal reflect.Value, inst *Instance) error {
	t := structVal.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		v, err := inst.Get(sf.Name)
		if err != nil {
			return err
		}
		if err := assignValue(structVal.Field(i), v); err != nil {
			return wrapPath(sf.Name, err)
		}
	}
	return nil
}

func assignValue(fv reflect.Value, v Value) error {
	switch fv.Kind() {
	case reflect.Struct:
		sub, ok := v.(*Instance)
		if !ok {
			return newError(KindDefinitionError, "expected nested structure value, got %T", v)
		}
		return assignStruct(fv, sub)

	case reflect.Bool:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		fv.SetBool(n != 0)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		fv.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		fv.SetUint(uint64(n))

	case reflect.Array:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := v.([]byte)
			if !ok {
				return newError(KindDefinitionError, "expected []byte, got %T", v)
			}
			reflect.Copy(fv, reflect.ValueOf(b))
			return nil
		}
		elems, err := toValueSlice(v)
		if err != nil {
			return err
		}
		for i := 0; i < fv.Len() && i < len(elems); i++ {
			if err := assignValue(fv.Index(i), elems[i]); err != nil {
				return err
			}
		}

	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := v.([]byte)
			if !ok {
				return newError(KindDefinitionError, "expected []byte, got %T", v)
			}
			fv.SetBytes(append([]byte{}, b...))
			return nil
		}
		elems, err := toValueSlice(v)
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(fv.Type(), len(elems), len(elems))
		for i, e := range elems {
			if err := assignValue(out.Index(i), e); err != nil {
				return err
			}
		}
		fv.Set(out)

	default:
		return newError(KindDefinitionError, "tagbuild: cannot assign into field kind %s", fv.Kind())
	}
	return nil
}

// EncodeStruct builds (or reuses a cached) Structure for src's type
// and encodes src's fields into s.
func EncodeStruct(s Stream, src interface{}) (*Instance, error) {
	rv := reflect.ValueOf(src)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, newError(KindDefinitionError, "tagbuild: EncodeStruct requires a struct or struct pointer")
	}
	st, err := BuildStructure(rv.Type())
	if err != nil {
		return nil, err
	}
	values, err := valuesFromStruct(rv)
	if err != nil {
		return nil, err
	}
	return st.Encode(nil, s, values)
}

func valuesFromStruct(structVal reflect.Value) (map[string]Value, error) {
	t := structVal.Type()
	out := make(map[string]Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		v, err := valueFromReflect(structVal.Field(i))
		if err != nil {
			return nil, wrapPath(sf.Name, err)
		}
		out[sf.Name] = v
	}
	return out, nil
}

func valueFromReflect(fv reflect.Value) (Value, error) {
	switch fv.Kind() {
	case reflect.Struct:
		return valuesFromStruct(fv)
	case reflect.Bool:
		return fv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(fv.Uint()), nil
	case reflect.Array:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, fv.Len())
			reflect.Copy(reflect.ValueOf(b), fv)
			return b, nil
		}
		items := make([]Value, fv.Len())
		for i := range items {
			v, err := valueFromReflect(fv.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return arrayValues{Items: items}, nil
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte{}, fv.Bytes()...), nil
		}
		items := make([]Value, fv.Len())
		for i := range items {
			v, err := valueFromReflect(fv.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return arrayValues{Items: items}, nil
	default:
		return nil, newError(KindDefinitionError, "tagbuild: cannot read field kind %s", fv.Kind())
	}
}
