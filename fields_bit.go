package binform

// BitField reads/writes an N-bit span MSB-first, sharing a single
// *BitStream across a run of consecutive bit fields the way the
// teacher's decoder/encoder carry a currentByte/bitOffset pair across
// adjacent bitfield struct tags. The Structure driver is responsible
// for opening a BitStream before the first BitField in a run and
// aligning it (flushing/discarding the partial byte) once a
// non-bit field follows.
type BitField struct {
	BaseField
	Bits    int  // width in bits, 1..64
	Signed  bool
	Realign bool // drop (read) / pad-and-flush (write) pending bits right after this field
}

func NewBitField(name string, bits int) *BitField {
	return &BitField{BaseField: BaseField{Name: name}, Bits: bits}
}

func (f *BitField) LenBits(acc *Accessor) (int64, error) { return int64(f.Bits), nil }

func (f *BitField) Decode(acc *Accessor, s Stream) (Value, error) {
	bs, ok := s.(*BitStream)
	if !ok {
		return nil, wrapPath(f.Name, newError(KindDefinitionError, "bit field used outside a bit-level decode context"))
	}
	u, err := bs.ReadBits(f.Bits)
	if err != nil {
		return nil, wrapPath(f.Name, err)
	}
	if !f.Signed {
		return u, nil
	}
	shift := 64 - uint(f.Bits)
	return int64(u<<shift) >> shift, nil
}

func (f *BitField) Encode(acc *Accessor, s Stream, v Value) error {
	bs, ok := s.(*BitStream)
	if !ok {
		return wrapPath(f.Name, newError(KindDefinitionError, "bit field used outside a bit-level encode context"))
	}
	n, err := toInt64(v)
	if err != nil {
		return wrapPath(f.Name, err)
	}
	mask := uint64(1)<<uint(f.Bits) - 1
	if err := bs.WriteBits(uint64(n)&mask, f.Bits); err != nil {
		return wrapPath(f.Name, err)
	}
	return nil
}
