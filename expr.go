package binform

import "fmt"

// Expr is a small, pure formula tree evaluated against a parsing
// Accessor. Every node is callable: given an accessor it resolves to a
// value by walking the context tree. Expressions must be side-effect
// free; the engine may evaluate them more than once.
type Expr interface {
	Eval(acc *Accessor) (Value, error)
}

// Const wraps a literal value as an Expr.
type Const struct{ V Value }

func (c Const) Eval(*Accessor) (Value, error) { return c.V, nil }

// Path resolves an attribute access rooted at `this`, `this._` (parent),
// or `this._root`. Build one with This()/Parent()/Root() and chain
// .Field(name) calls to walk into nested structures.
type Path struct {
	root  func(*Accessor) (*Accessor, error)
	names []string
}

// This refers to the current (field-owning) context.
func This() Path {
	return Path{root: func(a *Accessor) (*Accessor, error) { return a, nil }}
}

// Parent refers to this._, the enclosing structure's context.
func Parent() Path {
	return Path{root: func(a *Accessor) (*Accessor, error) { return a.Parent() }}
}

// Root refers to this._root, the outermost context in the parse tree.
func Root() Path {
	return Path{root: func(a *Accessor) (*Accessor, error) { return a.Root(), nil }}
}

// Field chains an attribute access onto the path.
func (p Path) Field(name string) Path {
	names := make([]string, len(p.names)+1)
	copy(names, p.names)
	names[len(p.names)] = name
	return Path{root: p.root, names: names}
}

func (p Path) Eval(acc *Accessor) (Value, error) {
	cur, err := p.root(acc)
	if err != nil {
		return nil, err
	}
	if len(p.names) == 0 {
		return nil, fmt.Errorf("path expression has no field selected")
	}
	var v Value
	for i, name := range p.names {
		v, err = cur.Get(name)
		if err != nil {
			return nil, err
		}
		if i != len(p.names)-1 {
			sub, ok := v.(*Instance)
			if !ok {
				return nil, fmt.Errorf("cannot descend into field %q: not a structure", name)
			}
			cur = sub.Accessor()
		}
	}
	return v, nil
}

// FuncExpr adapts a plain Go closure to the Expr interface -- the escape
// hatch mentioned in the design notes for cases formulas can't express.
type FuncExpr func(acc *Accessor) (Value, error)

func (f FuncExpr) Eval(acc *Accessor) (Value, error) { return f(acc) }

// BinaryExpr applies a named binary operator over two sub-expressions.
type BinaryExpr struct {
	Op   string
	L, R Expr
}

func (b BinaryExpr) Eval(acc *Accessor) (Value, error) {
	lv, err := b.L.Eval(acc)
	if err != nil {
		return nil, err
	}
	rv, err := b.R.Eval(acc)
	if err != nil {
		return nil, err
	}
	return applyBinary(b.Op, lv, rv)
}

// UnaryExpr applies a named unary operator to a sub-expression.
type UnaryExpr struct {
	Op string
	X  Expr
}

func (u UnaryExpr) Eval(acc *Accessor) (Value, error) {
	xv, err := u.X.Eval(acc)
	if err != nil {
		return nil, err
	}
	return applyUnary(u.Op, xv)
}

func applyBinary(op string, lv, rv Value) (Value, error) {
	switch op {
	case "==":
		return valuesEqual(lv, rv), nil
	case "!=":
		return !valuesEqual(lv, rv), nil
	}

	lf, lerr := toFloat64(lv)
	rf, rerr := toFloat64(rv)
	if lerr != nil || rerr != nil {
		return nil, fmt.Errorf("operator %s requires numeric operands", op)
	}

	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	case "+":
		return toMatchingNumeric(lv, rv, lf+rf), nil
	case "-":
		return toMatchingNumeric(lv, rv, lf-rf), nil
	case "*":
		return toMatchingNumeric(lv, rv, lf*rf), nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		li, _ := toInt64(lv)
		ri, _ := toInt64(rv)
		if ri == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return li % ri, nil
	case "&":
		li, _ := toInt64(lv)
		ri, _ := toInt64(rv)
		return li & ri, nil
	case "|":
		li, _ := toInt64(lv)
		ri, _ := toInt64(rv)
		return li | ri, nil
	case "^":
		li, _ := toInt64(lv)
		ri, _ := toInt64(rv)
		return li ^ ri, nil
	case "<<":
		li, _ := toInt64(lv)
		ri, _ := toInt64(rv)
		return li << uint(ri), nil
	case ">>":
		li, _ := toInt64(lv)
		ri, _ := toInt64(rv)
		return li >> uint(ri), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func applyUnary(op string, xv Value) (Value, error) {
	switch op {
	case "-":
		xf, err := toFloat64(xv)
		if err != nil {
			return nil, err
		}
		return toMatchingNumeric(xv, xv, -xf), nil
	case "not":
		return !truthy(xv), nil
	case "~":
		xi, err := toInt64(xv)
		if err != nil {
			return nil, err
		}
		return ^xi, nil
	default:
		return nil, fmt.Errorf("unknown unary operator %q", op)
	}
}

// Add, Sub, Mul, Div, Mod and the comparison, Not and Neg builders
// below are convenience constructors over BinaryExpr/UnaryExpr; the
// bitwise operators are reached through BinaryExpr/UnaryExpr directly.
func Add(l, r Expr) Expr { return BinaryExpr{"+", l, r} }
func Sub(l, r Expr) Expr { return BinaryExpr{"-", l, r} }
func Mul(l, r Expr) Expr { return BinaryExpr{"*", l, r} }
func Div(l, r Expr) Expr { return BinaryExpr{"/", l, r} }
func Mod(l, r Expr) Expr { return BinaryExpr{"%", l, r} }
func Eq(l, r Expr) Expr  { return BinaryExpr{"==", l, r} }
func Ne(l, r Expr) Expr  { return BinaryExpr{"!=", l, r} }
func Lt(l, r Expr) Expr  { return BinaryExpr{"<", l, r} }
func Le(l, r Expr) Expr  { return BinaryExpr{"<=", l, r} }
func Gt(l, r Expr) Expr  { return BinaryExpr{">", l, r} }
func Ge(l, r Expr) Expr  { return BinaryExpr{">=", l, r} }
func Not(x Expr) Expr    { return UnaryExpr{"not", x} }
func Neg(x Expr) Expr    { return UnaryExpr{"-", x} }

// LenOf evaluates to the length of whatever x resolves to: a []byte,
// string, []Value slice, or anything implementing Lener.
func LenOf(x Expr) Expr {
	return FuncExpr(func(acc *Accessor) (Value, error) {
		v, err := x.Eval(acc)
		if err != nil {
			return nil, err
		}
		return lengthOf(v)
	})
}

func lengthOf(v Value) (Value, error) {
	switch t := v.(type) {
	case []byte:
		return int64(len(t)), nil
	case string:
		return int64(len(t)), nil
	case []Value:
		return int64(len(t)), nil
	case Lener:
		return int64(t.Len()), nil
	default:
		return nil, fmt.Errorf("cannot take length of %T", v)
	}
}

// Lener is implemented by dynamic values (arrays) that know their own
// element count.
type Lener interface {
	Len() int
}
