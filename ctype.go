package binform

import "fmt"

// Typed is implemented by field kinds that can describe themselves as
// a C type, the way destructify's Field.ctype property lets a
// structure render as a C struct for interop documentation. The
// teacher's own tag system has no such property; this is carried over
// directly from the Python original (fields/base_field.py) since the
// teacher's ctype-shaped convention (a descriptive string per field)
// fits naturally alongside its `tags.print()` debug helper.
type Typed interface {
	CType() string
}

func (f *IntegerField) CType() string {
	width := f.Size * 8
	if f.Signed {
		return fmt.Sprintf("int%d_t", width)
	}
	return fmt.Sprintf("uint%d_t", width)
}

func (f *FixedLengthField) CType() string {
	return "uint8_t[]"
}

func (f *BitField) CType() string {
	if f.Signed {
		return fmt.Sprintf("int : %d", f.Bits)
	}
	return fmt.Sprintf("unsigned int : %d", f.Bits)
}

func (f *TerminatedField) CType() string { return "char[]" }

func (f *TextField) CType() string { return "char[]" }

// AsCStruct renders the structure's fields as a best-effort C struct
// declaration, using each field's CType() where available and falling
// back to a comment for field kinds that don't describe themselves
// (nested structures, switches, conditionals -- anything whose shape
// depends on runtime data).
func (st *Structure) AsCStruct() string {
	out := fmt.Sprintf("struct %s {\n", st.Name)
	for _, f := range st.Fields {
		if t, ok := f.(Typed); ok {
			out += fmt.Sprintf("\t%s %s;\n", t.CType(), f.FieldName())
		} else {
			out += fmt.Sprintf("\t/* %s: runtime-dependent layout */\n", f.FieldName())
		}
	}
	out += "};\n"
	return out
}
