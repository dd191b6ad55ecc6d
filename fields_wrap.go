package binform

// ConditionalField decodes/encodes an underlying field only when
// Condition evaluates truthy; otherwise it consumes no bytes and
// resolves to nil. Grounded on destructify's common.py "Conditional"
// wrapper and the teacher's optional-field discussions in tags.go.
type ConditionalField struct {
	BaseField
	Under     Field
	Condition Expr
}

func NewConditionalField(name string, under Field, cond Expr) *ConditionalField {
	return &ConditionalField{BaseField: BaseField{Name: name}, Under: under, Condition: cond}
}

func (f *ConditionalField) test(acc *Accessor) (bool, error) {
	v, err := f.Condition.Eval(acc)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func (f *ConditionalField) Decode(acc *Accessor, s Stream) (Value, error) {
	ok, err := f.test(acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return f.Under.Decode(acc, s)
}

func (f *ConditionalField) Encode(acc *Accessor, s Stream, v Value) error {
	ok, err := f.test(acc)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return f.Under.Encode(acc, s, v)
}

func (f *ConditionalField) GetDefault(acc *Accessor) (Value, error) {
	ok, err := f.test(acc)
	if err != nil || !ok {
		return nil, err
	}
	return f.Under.GetDefault(acc)
}

// EnumField maps an underlying field's raw decoded value to a
// symbolic one (and back on encode) through a closed mapping. An
// unmapped raw value is either passed through unchanged or rejected,
// per Strict. Grounded on destructify's EnumField (fields/common.py),
// which wraps Python's Enum the same way.
type EnumField struct {
	BaseField
	Under   Field
	Mapping map[Value]Value
	Strict  bool
}

func NewEnumField(name string, under Field, mapping map[Value]Value) *EnumField {
	return &EnumField{BaseField: BaseField{Name: name}, Under: under, Mapping: mapping}
}

func (f *EnumField) Len(acc *Accessor) (int64, error) {
	if lf, ok := f.Under.(LenField); ok {
		return lf.Len(acc)
	}
	return 0, newError(KindImpossibleLength, "enum %q: underlying field has no statically known length", f.Name)
}

func (f *EnumField) reverse(symbolic Value) (Value, bool) {
	for raw, sym := range f.Mapping {
		if valuesEqual(sym, symbolic) {
			return raw, true
		}
	}
	return nil, false
}

func (f *EnumField) Decode(acc *Accessor, s Stream) (Value, error) {
	raw, err := f.Under.Decode(acc, s)
	if err != nil {
		return nil, err
	}
	for k, sym := range f.Mapping {
		if valuesEqual(k, raw) {
			return sym, nil
		}
	}
	if f.Strict {
		return nil, wrapPath(f.Name, newError(KindParseError, "value %v is not a member of the enum", raw))
	}
	return raw, nil
}

func (f *EnumField) Encode(acc *Accessor, s Stream, v Value) error {
	if raw, ok := f.reverse(v); ok {
		return f.Under.Encode(acc, s, raw)
	}
	if f.Strict {
		return wrapPath(f.Name, newError(KindDefinitionError, "value %v is not a member of the enum", v))
	}
	return f.Under.Encode(acc, s, v)
}

// SwitchField picks one of several field alternatives based on a
// selector expression resolved against the current context -- a
// tagged union, grounded on destructify's SwitchField (fields/struct.py)
// and the teacher's sizeOf/countOf dependent-field resolution idiom.
type SwitchField struct {
	BaseField
	On      Expr
	Cases   map[Value]Field
	Default Field // used when no Cases entry matches; nil means error
}

func NewSwitchField(name string, on Expr, cases map[Value]Field) *SwitchField {
	return &SwitchField{BaseField: BaseField{Name: name}, On: on, Cases: cases}
}

func (f *SwitchField) pick(acc *Accessor, onUnmatched Kind) (Field, error) {
	key, err := f.On.Eval(acc)
	if err != nil {
		return nil, err
	}
	for k, field := range f.Cases {
		if valuesEqual(k, key) {
			return field, nil
		}
	}
	if f.Default != nil {
		return f.Default, nil
	}
	return nil, newError(onUnmatched, "switch %q: no case matches %v", f.Name, key)
}

func (f *SwitchField) Decode(acc *Accessor, s Stream) (Value, error) {
	field, err := f.pick(acc, KindParseError)
	if err != nil {
		return nil, wrapPath(f.Name, err)
	}
	return field.Decode(acc, s)
}

func (f *SwitchField) Encode(acc *Accessor, s Stream, v Value) error {
	field, err := f.pick(acc, KindWriteError)
	if err != nil {
		return wrapPath(f.Name, err)
	}
	return field.Encode(acc, s, v)
}

// ConstantField wraps an underlying field whose decoded value must
// equal Expected exactly -- a magic number or fixed marker -- raising
// WRONG_MAGIC on mismatch. On encode Expected is always written; a
// supplied value that differs from it is rejected with WRITE_ERROR,
// and an omitted value falls back to GetDefault (Expected). Grounded on destructify's ConstantField (fields/common.py)
// and the spec's Constant+CRC scenario.
type ConstantField struct {
	BaseField
	Under    Field
	Expected Value
}

func NewConstantField(name string, under Field, expected Value) *ConstantField {
	return &ConstantField{BaseField: BaseField{Name: name}, Under: under, Expected: expected}
}

func (f *ConstantField) Len(acc *Accessor) (int64, error) {
	if lf, ok := f.Under.(LenField); ok {
		return lf.Len(acc)
	}
	return 0, newError(KindImpossibleLength, "constant %q: underlying field has no statically known length", f.Name)
}

func (f *ConstantField) Decode(acc *Accessor, s Stream) (Value, error) {
	v, err := f.Under.Decode(acc, s)
	if err != nil {
		return nil, err
	}
	if !valuesEqual(v, f.Expected) {
		return nil, wrapPath(f.Name, newError(KindWrongMagic, "expected %v, got %v", f.Expected, v))
	}
	return v, nil
}

func (f *ConstantField) Encode(acc *Accessor, s Stream, v Value) error {
	if v != nil && !valuesEqual(v, f.Expected) {
		return wrapPath(f.Name, newError(KindWriteError, "value %v does not match expected constant %v", v, f.Expected))
	}
	return f.Under.Encode(acc, s, f.Expected)
}

func (f *ConstantField) GetDefault(acc *Accessor) (Value, error) {
	return f.Expected, nil
}
