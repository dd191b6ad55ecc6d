package binform

import "strconv"

// arrayValues is the dynamic value an ArrayField resolves to: the
// decoded elements plus the flat per-index Context they were decoded
// into. Carrying the Context alongside the elements is what lets a
// structure element further down the array see an earlier element's
// fields by numeric index (spec's synthetic "0".."i" names), and lets
// the Structure driver record a subcontext for the array field the
// same way it already does for a lone StructureField. Ctx is nil for
// a value the caller hand-built to pass into Encode.
type arrayValues struct {
	Items []Value
	Ctx   *Context
}

func (a arrayValues) Len() int { return len(a.Items) }

// UntilFunc decides, after decoding each element, whether the array is
// complete. acc is the array's own flat context, so a formula can
// reference an earlier element by index ("0", "1", ...) as well as
// fields of the enclosing structure. Grounded on destructify's
// ArrayField(until=...).
type UntilFunc func(elem Value, acc *Accessor) (bool, error)

// ArrayField repeats Element according to exactly one of Count,
// Length, or (if neither is set) "until stream exhaustion" -- the
// three branches destructify's ArrayField supports. Until, if set, is
// evaluated after every element regardless of which branch is active.
// Every element decodes against a *flat* child Context carrying
// synthetic integer field names "0".."i" (spec §4.3.6), so an element
// can reference a sibling element by index or, via Context.Flat, fall
// through to the enclosing structure's own fields. Grounded on
// destructify's ArrayField (fields/struct.py) and the teacher's
// array/slice handlers (decoder.go/encoder.go), generalized from
// reflect.Value slices to a Field template repeated over a dynamic
// []Value.
type ArrayField struct {
	BaseField
	Element Field
	Count   Param // exact element count
	Length  Param // total byte length of the array (bounded substream)
	Until   UntilFunc
}

func NewArrayField(name string, element Field) *ArrayField {
	return &ArrayField{BaseField: BaseField{Name: name}, Element: element}
}

func (f *ArrayField) Len(acc *Accessor) (int64, error) {
	if f.Length.IsSet() {
		return f.Length.ResolveInt(acc)
	}
	if f.Count.IsSet() {
		lf, ok := f.Element.(LenField)
		if !ok {
			return 0, newError(KindImpossibleLength, "array %q: element type has no statically known length", f.Name)
		}
		n, err := f.Count.ResolveInt(acc)
		if err != nil {
			return 0, err
		}
		elemLen, err := lf.Len(acc)
		if err != nil {
			return 0, err
		}
		return n * elemLen, nil
	}
	return 0, newError(KindImpossibleLength, "array %q has neither a count nor a length", f.Name)
}

// elementContext opens the flat child context array elements decode
// (or encode) into, parented on the array field's own enclosing
// context so Context.Flat lets an unqualified lookup fall through.
func (f *ArrayField) elementContext(acc *Accessor) *Context {
	ctx := NewContext(acc.Context())
	ctx.Flat = true
	return ctx
}

// addElement records the i-th element into ctx under its synthetic
// index name, capturing a subcontext when the element is itself a
// nested structure.
func addElement(ctx *Context, i int, v Value) {
	fr := &FieldRecord{Name: strconv.Itoa(i), Offset: -1, Length: -1, value: v, parsed: true}
	if sub, ok := v.(*Instance); ok {
		fr.Sub = sub.ctx
	}
	ctx.Add(fr)
}

func (f *ArrayField) Decode(acc *Accessor, s Stream) (Value, error) {
	ctx := f.elementContext(acc)
	elemAcc := ctx.Accessor()

	runUntil := func(v Value) (bool, error) {
		if f.Until == nil {
			return false, nil
		}
		return f.Until(v, elemAcc)
	}

	switch {
	case f.Count.IsSet():
		n, err := f.Count.ResolveInt(acc)
		if err != nil {
			return nil, err
		}
		out := make([]Value, 0, n)
		for i := int64(0); i < n; i++ {
			v, err := f.Element.Decode(elemAcc, s)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			addElement(ctx, len(out)-1, v)
			stop, err := runUntil(v)
			if err != nil {
				return nil, err
			}
			if stop {
				break
			}
		}
		return arrayValues{Items: out, Ctx: ctx}, nil

	case f.Length.IsSet():
		n, err := f.Length.ResolveInt(acc)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			// "until end of stream or error": same unbounded loop as
			// the no-length-no-count case, reading straight off s.
			var out []Value
			for {
				v, err := f.Element.Decode(elemAcc, s)
				if err != nil {
					if IsKind(err, KindStreamExhausted) {
						return arrayValues{Items: out, Ctx: ctx}, nil
					}
					return nil, err
				}
				out = append(out, v)
				addElement(ctx, len(out)-1, v)
				stop, err := runUntil(v)
				if err != nil {
					return nil, err
				}
				if stop {
					return arrayValues{Items: out, Ctx: ctx}, nil
				}
			}
		}
		sub := NewSubstream(s, n)
		var out []Value
		for sub.Remaining() > 0 {
			v, err := f.Element.Decode(elemAcc, sub)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			addElement(ctx, len(out)-1, v)
			stop, err := runUntil(v)
			if err != nil {
				return nil, err
			}
			if stop {
				break
			}
		}
		if err := sub.Skip(); err != nil {
			return nil, err
		}
		return arrayValues{Items: out, Ctx: ctx}, nil

	default:
		// Unbounded: read until the stream is exhausted. A short
		// remainder that can't form one more full element is
		// swallowed silently rather than surfaced as an error, per
		// the Open Question resolution matching the source's
		// behavior exactly.
		var out []Value
		for {
			v, err := f.Element.Decode(elemAcc, s)
			if err != nil {
				if IsKind(err, KindStreamExhausted) {
					return arrayValues{Items: out, Ctx: ctx}, nil
				}
				return nil, err
			}
			out = append(out, v)
			addElement(ctx, len(out)-1, v)
			stop, err := runUntil(v)
			if err != nil {
				return nil, err
			}
			if stop {
				return arrayValues{Items: out, Ctx: ctx}, nil
			}
		}
	}
}

func (f *ArrayField) Encode(acc *Accessor, s Stream, v Value) error {
	elems, err := toValueSlice(v)
	if err != nil {
		return err
	}
	if f.Count.IsSet() {
		n, err := f.Count.ResolveInt(acc)
		if err != nil {
			return err
		}
		if int64(len(elems)) != n {
			return newError(KindWriteError, "array %q: value has %d elements, count requires %d", f.Name, len(elems), n)
		}
	}

	ctx := f.elementContext(acc)
	elemAcc := ctx.Accessor()

	if f.Length.IsSet() {
		n, err := f.Length.ResolveInt(acc)
		if err != nil {
			return err
		}
		sub := NewSubstream(s, n)
		for i, e := range elems {
			if err := f.Element.Encode(elemAcc, sub, e); err != nil {
				return err
			}
			addElement(ctx, i, e)
		}
		return sub.Pad(sub.Remaining())
	}
	for i, e := range elems {
		if err := f.Element.Encode(elemAcc, s, e); err != nil {
			return err
		}
		addElement(ctx, i, e)
	}
	return nil
}

func toValueSlice(v Value) ([]Value, error) {
	switch t := v.(type) {
	case arrayValues:
		return t.Items, nil
	case []Value:
		return t, nil
	default:
		return nil, newError(KindDefinitionError, "array field value must be a slice, got %T", v)
	}
}
