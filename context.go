package binform

// FieldRecord is the per-field provenance the Structure driver keeps
// while decoding: where the field's bytes sat in the stream, whether
// it has been parsed yet, and (for lazily-resolved fields) how to
// resolve it on first access. Mirrors destructify's ParsingContext
// per-field bookkeeping plus the lazy "Proxy" wrapper it returns for
// preparsable fields that defer decode.
type FieldRecord struct {
	Name    string
	Field   Field
	Offset  int64 // -1 if unknown
	Length  int64 // -1 if unknown
	Raw     []byte
	value   Value
	parsed  bool
	lazy    bool
	resolve func() (Value, error)
	Sub     *Context // set for a StructureField value (*Instance) or an ArrayField value carrying its element context
}

// Resolve returns the field's value, running the deferred decode on
// first access for lazy fields. Idempotent: repeated calls return the
// cached value without re-invoking the resolver.
func (fr *FieldRecord) Resolve() (Value, error) {
	if fr.parsed {
		return fr.value, nil
	}
	if !fr.lazy || fr.resolve == nil {
		return fr.value, nil
	}
	v, err := fr.resolve()
	if err != nil {
		return nil, err
	}
	fr.value = v
	fr.parsed = true
	return v, nil
}

// Context is one node of the parsing-context tree: one per Structure
// instance being built, parent-linked so formulas can walk up to an
// enclosing structure (this._) or the outermost one (this._root).
// Array element contexts set Flat so that unqualified name lookups
// fall through to the array's own enclosing context, matching
// destructify's ParsingContext(flat=True) used for array items.
type Context struct {
	parent  *Context
	Flat    bool
	order   []string
	records map[string]*FieldRecord
	inst    *Instance
}

func NewContext(parent *Context) *Context {
	return &Context{parent: parent, records: make(map[string]*FieldRecord)}
}

// Add registers a new field record in field declaration order.
func (c *Context) Add(fr *FieldRecord) {
	if _, exists := c.records[fr.Name]; !exists {
		c.order = append(c.order, fr.Name)
	}
	c.records[fr.Name] = fr
}

// Record looks up a field record by name in this context only (no
// parent fallthrough); returns nil if absent.
func (c *Context) Record(name string) *FieldRecord {
	return c.records[name]
}

// Get resolves a field's value by name, walking to the parent context
// when Flat is set and the name isn't found locally -- the array
// element fallthrough behavior.
func (c *Context) Get(name string) (Value, error) {
	if fr, ok := c.records[name]; ok {
		return fr.Resolve()
	}
	if c.Flat && c.parent != nil {
		return c.parent.Get(name)
	}
	return nil, newError(KindUnknownDependentField, "no such field %q in this context", name)
}

// Parent returns the enclosing context (this._), or an error if this
// is already the root.
func (c *Context) Parent() (*Context, error) {
	if c.parent == nil {
		return nil, newError(KindDefinitionError, "context has no parent (already at root)")
	}
	return c.parent, nil
}

// Root walks to the outermost context (this._root).
func (c *Context) Root() *Context {
	cur := c
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Accessor returns the Expr-facing view of this context.
func (c *Context) Accessor() *Accessor { return &Accessor{ctx: c} }

// Names returns field names in declaration order.
func (c *Context) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Accessor is the read-only view Expr.Eval walks. It exists
// separately from Context so expression code never mutates parse
// state directly.
type Accessor struct {
	ctx *Context
}

func (a *Accessor) Get(name string) (Value, error) { return a.ctx.Get(name) }

func (a *Accessor) Parent() (*Accessor, error) {
	p, err := a.ctx.Parent()
	if err != nil {
		return nil, err
	}
	return p.Accessor(), nil
}

func (a *Accessor) Root() *Accessor { return a.ctx.Root().Accessor() }

// Context exposes the underlying Context, for code (Structure driver,
// Field implementations) that needs direct record access rather than
// the Expr-facing read path.
func (a *Accessor) Context() *Context { return a.ctx }

// Instance is a decoded structure: its field values plus the Context
// that produced them. This is the Value a StructureField resolves to,
// and what Path.Eval descends into for nested attribute access.
type Instance struct {
	ctx   *Context
	Order []string
}

func newInstance(ctx *Context) *Instance {
	inst := &Instance{ctx: ctx, Order: ctx.Names()}
	ctx.inst = inst
	return inst
}

// Get returns a single field's resolved value by name.
func (i *Instance) Get(name string) (Value, error) { return i.ctx.Get(name) }

// MustGet panics if the named field can't be resolved. Intended for
// call sites (tests, formulas built with FuncExpr) that already know
// the field exists.
func (i *Instance) MustGet(name string) Value {
	v, err := i.ctx.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Accessor returns the Expr-facing view of this instance's context.
func (i *Instance) Accessor() *Accessor { return i.ctx.Accessor() }

// Values snapshots every resolved field into a plain map, forcing
// resolution of any still-lazy fields.
func (i *Instance) Values() (map[string]Value, error) {
	out := make(map[string]Value, len(i.Order))
	for _, name := range i.Order {
		v, err := i.ctx.Get(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
