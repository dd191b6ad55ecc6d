package binform

import "io"

// Check validates a fully-decoded instance, returning a CHECK_ERROR
// wrapped error on failure. Hook runs a side-effecting step before
// (Initialize) or after (Finalize) the field pass.
type Check func(inst *Instance) error
type Hook func(ctx *Context) error

// Structure is the declarative metaobject describing one record: an
// ordered field list plus the checks/hooks the driver runs around it.
// Built with NewStructure(...).AddField(...); this is the "Descriptor
// construction API" the specification calls for, generalizing the
// teacher's reflect+struct-tag configuration into runtime-built
// descriptors.
type Structure struct {
	Name      string
	Fields    []Field
	Checks    []Check
	OnInit    []Hook
	OnDone    []Hook
	Strict    bool // recorded on the descriptor only; Decode/Encode do not read it (strictness is set per field, e.g. FixedLengthField.Strict)
	Alignment int  // byte modulus enforced before every field that doesn't set its own Align/Offset
	Encoding  string
}

func NewStructure(name string) *Structure {
	return &Structure{Name: name, Strict: true}
}

// WithAlignment sets the structure-level default alignment (spec §3's
// Structure.alignment) and back-fills it onto fields already added
// that didn't declare a per-field Align. Call before AddField for
// fields added afterward to inherit it automatically.
func (st *Structure) WithAlignment(n int) *Structure {
	st.Alignment = n
	for _, f := range st.Fields {
		if bf, ok := fieldBase(f); ok && bf.Align == 0 {
			bf.Align = n
		}
	}
	return st
}

// AddField appends f to the structure's declaration order. A field
// with no per-field Align inherits the structure's default Alignment.
func (st *Structure) AddField(f Field) *Structure {
	if bf, ok := fieldBase(f); ok && bf.Align == 0 && st.Alignment > 0 {
		bf.Align = st.Alignment
	}
	st.Fields = append(st.Fields, f)
	return st
}

func (st *Structure) AddCheck(c Check) *Structure {
	st.Checks = append(st.Checks, c)
	return st
}

func (st *Structure) AddInitHook(h Hook) *Structure {
	st.OnInit = append(st.OnInit, h)
	return st
}

func (st *Structure) AddFinalizeHook(h Hook) *Structure {
	st.OnDone = append(st.OnDone, h)
	return st
}

func (st *Structure) WithStrict(strict bool) *Structure {
	st.Strict = strict
	return st
}

// AutoOverride installs formula as fieldName's Override, evaluated
// during the write-prep pass before any bytes are encoded. This is
// how a length or count field is wired to auto-derive its value from
// a sibling field's contents (spec's "when N/count is a name, the
// named field's override is auto-installed"), e.g.:
//
//	st.AutoLengthOf("len", "data")
func (st *Structure) AutoOverride(fieldName string, formula Expr) *Structure {
	for _, f := range st.Fields {
		if f.FieldName() == fieldName {
			if bf, ok := fieldBase(f); ok {
				bf.Override = FormulaParam(formula)
			}
			break
		}
	}
	return st
}

// AutoLengthOf wires lengthField to always encode len(dataField),
// matching FixedLengthField's length-by-name convention.
func (st *Structure) AutoLengthOf(lengthField, dataField string) *Structure {
	return st.AutoOverride(lengthField, LenOf(This().Field(dataField)))
}

// AutoCountOf wires countField to always encode len(arrayField),
// matching ArrayField's count-by-name convention.
func (st *Structure) AutoCountOf(countField, arrayField string) *Structure {
	return st.AutoOverride(countField, LenOf(This().Field(arrayField)))
}

// Decode runs the read driver described in spec §4.4: a preparse pass
// for lazily-resolvable fields with a known literal offset, then a
// sequential pass over the remaining fields in declaration order,
// grouping consecutive BitFields under a shared BitStream, followed
// by checks and the finalize hooks.
func (st *Structure) Decode(parent *Context, s Stream) (*Instance, error) {
	ctx := NewContext(parent)

	for _, h := range st.OnInit {
		if err := h(ctx); err != nil {
			return nil, wrapPath(st.Name, err)
		}
	}

	handled := make(map[Field]bool)
	if IsSeekable(s) {
		for _, f := range st.Fields {
			if !preparsable(f) {
				continue
			}
			bf, _ := fieldBase(f)
			off, err := bf.Offset.ResolveInt(ctx.Accessor())
			if err != nil {
				return nil, wrapPath(st.Name, wrapPath(f.FieldName(), err))
			}
			field := f
			fr := &FieldRecord{
				Name:   field.FieldName(),
				Field:  field,
				Offset: off,
				Length: -1,
				lazy:   true,
				resolve: func() (Value, error) {
					cur, err := Tell(s)
					if err != nil {
						return nil, err
					}
					if err := field.SeekStart(ctx.Accessor(), s); err != nil {
						return nil, err
					}
					v, err := field.Decode(ctx.Accessor(), s)
					if err != nil {
						return nil, wrapPath(field.FieldName(), err)
					}
					if _, err := s.(io.Seeker).Seek(cur, io.SeekStart); err != nil {
						return nil, err
					}
					return v, nil
				},
			}
			ctx.Add(fr)
			handled[f] = true
		}
	}

	var bw *BitStream
	for _, f := range st.Fields {
		if handled[f] {
			continue
		}
		bitField, isBit := f.(*BitField)
		var target Stream = s
		if isBit {
			if bw == nil {
				bw = NewBitStream(s)
			}
			target = bw
		} else if bw != nil {
			if err := bw.Align(); err != nil {
				return nil, wrapPath(st.Name, err)
			}
			bw = nil
		}

		if err := f.SeekStart(ctx.Accessor(), target); err != nil {
			return nil, wrapPath(st.Name, err)
		}
		var offset int64 = -1
		if IsSeekable(s) {
			if o, err := Tell(s); err == nil {
				offset = o
			}
		}
		v, err := f.Decode(ctx.Accessor(), target)
		if err != nil {
			return nil, wrapPath(st.Name, wrapPath(f.FieldName(), err))
		}
		if err := f.SeekEnd(ctx.Accessor(), target); err != nil {
			return nil, wrapPath(st.Name, err)
		}
		if isBit && bitField.Realign {
			if err := bw.Align(); err != nil {
				return nil, wrapPath(st.Name, err)
			}
			bw = nil
		}

		fr := &FieldRecord{Name: f.FieldName(), Field: f, Offset: offset, Length: -1, value: v, parsed: true}
		switch val := v.(type) {
		case *Instance:
			fr.Sub = val.ctx
		case arrayValues:
			fr.Sub = val.Ctx
		}
		ctx.Add(fr)
	}
	if bw != nil {
		if err := bw.Align(); err != nil {
			return nil, wrapPath(st.Name, err)
		}
	}

	inst := newInstance(ctx)

	for _, c := range st.Checks {
		if err := c(inst); err != nil {
			return nil, wrapPath(st.Name, &Error{Kind: KindCheckError, Cause: err})
		}
	}
	for _, h := range st.OnDone {
		if err := h(ctx); err != nil {
			return nil, wrapPath(st.Name, err)
		}
	}

	return inst, nil
}

// Encode runs the write driver (spec §4.4 write path): every field's
// value is resolved (from values, falling back to GetDefault) and
// registered up front so formulas can see the whole record, then
// Override formulas run over that complete set -- letting a field
// declared *before* the one it depends on (e.g. a leading length
// field auto-deriving len(data)) see a value that isn't written until
// later -- and only then does the sequential seek/encode pass run,
// grouping consecutive BitFields under a shared BitStream and
// flushing it on every non-bit field and at the end.
func (st *Structure) Encode(parent *Context, s Stream, values map[string]Value) (*Instance, error) {
	ctx := NewContext(parent)

	for _, h := range st.OnInit {
		if err := h(ctx); err != nil {
			return nil, wrapPath(st.Name, err)
		}
	}

	for _, f := range st.Fields {
		v, has := values[f.FieldName()]
		if !has {
			var err error
			v, err = f.GetDefault(ctx.Accessor())
			if err != nil {
				if !hasOverride(f) {
					return nil, wrapPath(st.Name, wrapPath(f.FieldName(), err))
				}
				// The Override pass below supplies the real value;
				// this placeholder only needs to exist long enough
				// for other fields' formulas to not trip over a
				// missing record.
				v = nil
			}
		}
		ctx.Add(&FieldRecord{Name: f.FieldName(), Field: f, Offset: -1, Length: -1, value: v, parsed: true})
	}

	for _, f := range st.Fields {
		ov, has, err := overrideOf(f, ctx.Accessor())
		if err != nil {
			return nil, wrapPath(st.Name, wrapPath(f.FieldName(), err))
		}
		if has {
			ctx.Record(f.FieldName()).value = ov
		}
	}

	var bw *BitStream
	for _, f := range st.Fields {
		v, err := ctx.Get(f.FieldName())
		if err != nil {
			return nil, wrapPath(st.Name, err)
		}

		bitField, isBit := f.(*BitField)
		var target Stream = s
		if isBit {
			if bw == nil {
				bw = NewBitStream(s)
			}
			target = bw
		} else if bw != nil {
			if err := bw.Finalize(); err != nil {
				return nil, wrapPath(st.Name, err)
			}
			bw = nil
		}

		if err := f.SeekStart(ctx.Accessor(), target); err != nil {
			return nil, wrapPath(st.Name, err)
		}
		var startOff int64 = -1
		if IsSeekable(s) {
			if o, err := Tell(s); err == nil {
				startOff = o
			}
		}
		if err := f.Encode(ctx.Accessor(), target, v); err != nil {
			return nil, wrapPath(st.Name, wrapPath(f.FieldName(), err))
		}
		if err := f.SeekEnd(ctx.Accessor(), target); err != nil {
			return nil, wrapPath(st.Name, err)
		}
		if isBit && bitField.Realign {
			if err := bw.Finalize(); err != nil {
				return nil, wrapPath(st.Name, err)
			}
			bw = nil
		}
		if fr := ctx.Record(f.FieldName()); fr != nil {
			switch val := v.(type) {
			case *Instance:
				fr.Sub = val.ctx
			case arrayValues:
				fr.Sub = val.Ctx
			}
			if startOff >= 0 {
				if endOff, err := Tell(s); err == nil {
					fr.Offset = startOff
					fr.Length = endOff - startOff
				}
			}
		}
	}
	if bw != nil {
		if err := bw.Finalize(); err != nil {
			return nil, wrapPath(st.Name, err)
		}
	}

	inst := newInstance(ctx)
	for _, c := range st.Checks {
		if err := c(inst); err != nil {
			return nil, wrapPath(st.Name, &Error{Kind: KindCheckError, Cause: err})
		}
	}
	for _, h := range st.OnDone {
		if err := h(ctx); err != nil {
			return nil, wrapPath(st.Name, err)
		}
	}
	return inst, nil
}

// FromBytes is the convenience entry point for decoding a standalone
// buffer: Structure.Decode(stream[, context]) with the stream wired to
// an in-memory Buffer and no parent context.
func (st *Structure) FromBytes(b []byte) (*Instance, error) {
	return st.Decode(nil, NewBufferFromBytes(b))
}

// ToBytes is the convenience entry point for encoding into a fresh
// in-memory buffer, returning the written bytes directly.
func (st *Structure) ToBytes(values map[string]Value) ([]byte, error) {
	buf := NewBuffer()
	if _, err := st.Encode(nil, buf, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Len computes the structure's total encoded byte length without
// performing I/O, summing each field's LenField/BitLenField result.
// A field exposing neither, or a leftover bit remainder that doesn't
// land on a byte boundary, is an IMPOSSIBLE_LENGTH error -- mirroring
// the teacher's size.go sizer / CannotDeductSliceLengthError.
func (st *Structure) Len(acc *Accessor) (int64, error) {
	var total int64
	var bits int64
	for _, f := range st.Fields {
		if blf, ok := f.(BitLenField); ok {
			n, err := blf.LenBits(acc)
			if err != nil {
				return 0, wrapPath(f.FieldName(), err)
			}
			bits += n
			continue
		}
		if bits%8 != 0 {
			return 0, newError(KindImpossibleLength, "bit fields before %q do not fill a whole byte (%d bits left over)", f.FieldName(), bits%8)
		}
		total += bits / 8
		bits = 0
		if lf, ok := f.(LenField); ok {
			n, err := lf.Len(acc)
			if err != nil {
				return 0, wrapPath(f.FieldName(), err)
			}
			total += n
			continue
		}
		return 0, newError(KindImpossibleLength, "field %q has no statically known length", f.FieldName())
	}
	if bits%8 != 0 {
		return 0, newError(KindImpossibleLength, "trailing bit fields do not fill a whole byte (%d bits left over)", bits%8)
	}
	total += bits / 8
	return total, nil
}
