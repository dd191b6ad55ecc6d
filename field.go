package binform

import "io"

// Field is the contract every field kind (fixed/terminated/bit/integer/
// enum/array/switch/conditional/constant/structure) implements. The
// Structure driver calls through this interface, the way the teacher's
// transcoder drives every kind through its single handler interface;
// the one concrete kind it singles out is *BitField, whose consecutive
// runs share a BitStream.
type Field interface {
	FieldName() string
	IsLazy() bool

	// SeekStart positions the stream before decode/encode if the field
	// declares an explicit offset or alignment; SeekEnd is called right
	// after decode/encode. BaseField's SeekEnd does nothing, and no
	// field kind in this package overrides it, so the stream is not
	// restored after an Offset seek.
	SeekStart(acc *Accessor, s Stream) error
	SeekEnd(acc *Accessor, s Stream) error

	Decode(acc *Accessor, s Stream) (Value, error)
	Encode(acc *Accessor, s Stream, v Value) error

	// GetDefault supplies a value when encoding and no value was
	// provided by the caller (e.g. a ConstantField's expected literal).
	// A length field derived from a sibling's contents gets its value
	// from an Override instead (see Structure.AutoOverride).
	GetDefault(acc *Accessor) (Value, error)
}

// LenField is implemented by fields that can report their own encoded
// byte length without performing I/O, letting Structure.Len() sum a
// whole record's size up front.
type LenField interface {
	Len(acc *Accessor) (int64, error)
}

// BitLenField is implemented by fields whose natural unit is bits
// rather than whole bytes (BitField). Structure.Len() accumulates
// these separately and only coalesces to a byte count once the
// running bit total lands back on a byte boundary; a structure left
// with a fractional byte is an IMPOSSIBLE_LENGTH error.
type BitLenField interface {
	LenBits(acc *Accessor) (int64, error)
}

// Param represents a field attribute that may be a literal value or a
// formula evaluated against the current parsing context -- spec's
// "value or formula" attributes (length, offset, count, switch-on,
// condition, default, ...).
type Param struct {
	expr Expr
	set  bool
}

// NoParam is the zero value: an unset parameter.
var NoParam = Param{}

// Lit wraps a literal value as a Param.
func Lit(v Value) Param { return Param{expr: Const{v}, set: true} }

// Ref is shorthand for a Param formula referencing a sibling field by
// name (this.<name>).
func Ref(name string) Param { return Param{expr: This().Field(name), set: true} }

// FormulaParam wraps an arbitrary Expr as a Param.
func FormulaParam(e Expr) Param { return Param{expr: e, set: true} }

func (p Param) IsSet() bool { return p.set }

// Resolve evaluates the parameter's formula against acc. Calling
// Resolve on an unset Param is a programming error and panics, the
// same way indexing past a slice does -- callers must guard with
// IsSet first.
func (p Param) Resolve(acc *Accessor) (Value, error) {
	if !p.set {
		panic("binform: Resolve called on an unset Param")
	}
	return p.expr.Eval(acc)
}

// ResolveInt resolves the parameter and coerces it to an int64.
func (p Param) ResolveInt(acc *Accessor) (int64, error) {
	v, err := p.Resolve(acc)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// BaseField implements the plumbing common to every field kind:
// naming, lazy/offset bookkeeping, and the default/no-op Seek/GetDefault
// behavior. Concrete field kinds embed it and override Decode/Encode
// (and Len/LenBits where applicable).
type BaseField struct {
	Name     string
	Offset   Param // absolute seek position before decode/encode, if set
	Lazy     bool  // with a literal non-negative Offset, defer Decode until first access (see preparsable, Context.Get); a lazy field without one is decoded in sequence like any other
	Def      Param // default value used by GetDefault when encoding
	Align    int   // byte alignment applied when Offset is unset, if > 1
	Override Param // formula applied to the supplied value at write time, e.g. a length field auto-deriving len(data)
}

func (b *BaseField) FieldName() string { return b.Name }
func (b *BaseField) IsLazy() bool      { return b.Lazy }

func (b *BaseField) SeekStart(acc *Accessor, s Stream) error {
	if b.Offset.IsSet() {
		if !IsSeekable(s) {
			return newError(KindDefinitionError, "field %q declares an offset but the stream is not seekable", b.Name)
		}
		off, err := b.Offset.ResolveInt(acc)
		if err != nil {
			return wrapPath(b.Name, err)
		}
		if _, err := s.(io.Seeker).Seek(off, io.SeekStart); err != nil {
			return wrapPath(b.Name, newError(KindStreamExhausted, "could not seek to offset %d: %v", off, err))
		}
		return nil
	}
	if b.Align > 1 && IsSeekable(s) {
		cur, err := Tell(s)
		if err != nil {
			return wrapPath(b.Name, err)
		}
		if rem := cur % int64(b.Align); rem != 0 {
			pad := int64(b.Align) - rem
			if _, err := s.(io.Seeker).Seek(pad, io.SeekCurrent); err != nil {
				return wrapPath(b.Name, newError(KindMisaligned, "could not pad to %d-byte alignment: %v", b.Align, err))
			}
		}
	}
	return nil
}

func (b *BaseField) SeekEnd(acc *Accessor, s Stream) error { return nil }

func (b *BaseField) base() *BaseField { return b }

func (b *BaseField) GetDefault(acc *Accessor) (Value, error) {
	if !b.Def.IsSet() {
		return nil, newError(KindDefinitionError, "field %q has no value and no default", b.Name)
	}
	return b.Def.Resolve(acc)
}

// preparsable reports whether the field can be resolved out of
// sequential order during the preparse pass: lazy and with a known,
// non-negative literal offset. Non-lazy or dependently-offset fields
// must wait for the sequential pass.
func preparsable(f Field) bool {
	bf, ok := fieldBase(f)
	if !ok || !bf.Lazy || !bf.Offset.IsSet() {
		return false
	}
	c, ok := bf.Offset.expr.(Const)
	if !ok {
		return false
	}
	n, err := toInt64(c.V)
	return err == nil && n >= 0
}

// hasOverride reports whether f declares an Override formula, without
// evaluating it.
func hasOverride(f Field) bool {
	bf, ok := fieldBase(f)
	return ok && bf.Override.IsSet()
}

// overrideOf resolves f's Override formula against acc, if one is
// set. Fields with no Override (the common case) report unset.
func overrideOf(f Field, acc *Accessor) (Value, bool, error) {
	bf, ok := fieldBase(f)
	if !ok || !bf.Override.IsSet() {
		return nil, false, nil
	}
	v, err := bf.Override.Resolve(acc)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// fieldBase extracts the *BaseField from a Field that embeds one, so
// shared helpers (preparsable, the override helpers, alignment
// back-fill) can inspect common
// attributes without every field kind re-exposing them.
func fieldBase(f Field) (*BaseField, bool) {
	type baser interface{ base() *BaseField }
	if b, ok := f.(baser); ok {
		return b.base(), true
	}
	return nil, false
}
