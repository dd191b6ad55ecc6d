/*
Copyright 2021 Hewlett Packard Enterprise Development LP

Permission is hereby granted, free of charge, to any person obtaining a
copy of this software and associated documentation files (the "Software"),
to deal in the Software without restriction, including without limitation
the rights to use, copy, modify, merge, publish, distribute, sublicense,
and/or sell copies of the Software, and to permit persons to whom the
Software is furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.

IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM,
DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR
OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE
USE OR OTHER DEALINGS IN THE SOFTWARE.
*/
package binform

import "fmt"

// Kind classifies the way a parse or write operation failed.
type Kind int

const (
	KindDefinitionError Kind = iota
	KindStreamExhausted
	KindWriteError
	KindWrongMagic
	KindMisaligned
	KindUnknownDependentField
	KindCheckError
	KindImpossibleLength
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindDefinitionError:
		return "DEFINITION_ERROR"
	case KindStreamExhausted:
		return "STREAM_EXHAUSTED"
	case KindWriteError:
		return "WRITE_ERROR"
	case KindWrongMagic:
		return "WRONG_MAGIC"
	case KindMisaligned:
		return "MISALIGNED"
	case KindUnknownDependentField:
		return "UNKNOWN_DEPENDENT_FIELD"
	case KindCheckError:
		return "CHECK_ERROR"
	case KindImpossibleLength:
		return "IMPOSSIBLE_LENGTH"
	case KindParseError:
		return "PARSE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is the single structured failure surface the engine returns: a
// kind, the dotted field path that raised it, and an optional wrapped
// cause (usually an underlying I/O error).
type Error struct {
	Kind  Kind
	Path  string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Msg)
		}
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// wrapPath re-raises err with the offending field's name attached. A
// *Error that already carries a path gets path prepended, so the
// dotted path reads from the outermost to the innermost field; any
// other error is wrapped as a PARSE_ERROR.
func wrapPath(path string, err error) error {
	if err == nil {
		return nil
	}
	if be, ok := err.(*Error); ok {
		if be.Path == "" {
			be.Path = path
		} else {
			be.Path = path + "." + be.Path
		}
		return be
	}
	return &Error{Kind: KindParseError, Path: path, Cause: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	be, ok := err.(*Error)
	return ok && be.Kind == kind
}
