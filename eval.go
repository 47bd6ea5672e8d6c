package formula

// GridAccessor supplies cell values during evaluation. a formula cell
// whose accessor evaluates recursively must do so through the context
// it receives so the resolution stack stays shared.
type GridAccessor func(ctx *EvalContext, addr CellAddress) Value

// EvalContext carries everything a formula needs while it evaluates:
// the grid to read from, the function catalog, the grid bounds, and the
// stack of cells currently being resolved.
type EvalContext struct {
	grid   GridAccessor
	funcs  *Funcs
	bounds Bounds
	stack  *resolutionStack
}

// Option configures an EvalContext
type Option func(*EvalContext)

// WithBounds limits references to the given grid extent. references
// outside it resolve to #REF!.
func WithBounds(b Bounds) Option {
	return func(ctx *EvalContext) {
		ctx.bounds = b
	}
}

// WithFuncs substitutes the function catalog
func WithFuncs(f *Funcs) Option {
	return func(ctx *EvalContext) {
		ctx.funcs = f
	}
}

// NewEvalContext creates an evaluation context over the given grid.
// a nil grid reads every cell as blank.
func NewEvalContext(grid GridAccessor, opts ...Option) *EvalContext {
	ctx := &EvalContext{
		grid:  grid,
		stack: newResolutionStack(),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.funcs == nil {
		ctx.funcs = NewFuncs()
	}
	return ctx
}

// resolve reads one cell through the cycle guard. a cell already on the
// resolution stack is in the middle of its own evaluation, so reading
// it again is a cycle and comes back as #CYCLE! without unwinding the
// rest of the evaluation.
func (ctx *EvalContext) resolve(addr CellAddress) Value {
	if !ctx.unbounded() && !ctx.bounds.Contains(addr) {
		return NewCellError(ErrorCodeRef, "reference outside grid: "+addr.String())
	}
	if ctx.stack.isActive(addr) {
		return NewCellError(ErrorCodeCycle, "circular reference through "+addr.String())
	}
	if ctx.grid == nil {
		return nil
	}

	ctx.stack.push(addr)
	defer ctx.stack.pop()

	return ctx.grid(ctx, addr)
}

// EvalAt evaluates a parsed formula as the cell at addr. the address
// goes on the resolution stack first so a formula that references its
// own cell is caught as a cycle.
func (ctx *EvalContext) EvalAt(node Node, addr CellAddress) Value {
	ctx.stack.push(addr)
	defer ctx.stack.pop()

	return node.Eval(ctx)
}

// Eval evaluates a parsed formula with no owning cell, for ad hoc
// queries
func (ctx *EvalContext) Eval(node Node) Value {
	return node.Eval(ctx)
}

func (ctx *EvalContext) unbounded() bool {
	return ctx.bounds == Bounds{}
}

// Evaluate parses and evaluates a formula source string as the cell at
// addr. the error return covers lex and syntax failures only; runtime
// problems come back inside the Value as a *CellError.
func Evaluate(source string, addr CellAddress, grid GridAccessor, opts ...Option) (Value, error) {
	node, err := ParseFormula(source)
	if err != nil {
		return nil, err
	}
	ctx := NewEvalContext(grid, opts...)
	return ctx.EvalAt(node, addr), nil
}

// resolutionStack tracks the chain of cells being resolved, for cycle
// detection
type resolutionStack struct {
	items  []CellAddress            // resolution order, for diagnostics
	active map[CellAddress]struct{} // membership for O(1) cycle checks
}

func newResolutionStack() *resolutionStack {
	return &resolutionStack{
		items:  make([]CellAddress, 0),
		active: make(map[CellAddress]struct{}),
	}
}

// push adds a cell to the stack
func (rs *resolutionStack) push(addr CellAddress) {
	rs.items = append(rs.items, addr)
	rs.active[addr] = struct{}{}
}

// pop removes the top cell from the stack
func (rs *resolutionStack) pop() (CellAddress, bool) {
	if len(rs.items) == 0 {
		return CellAddress{}, false
	}
	addr := rs.items[len(rs.items)-1]
	rs.items = rs.items[:len(rs.items)-1]
	delete(rs.active, addr)
	return addr, true
}

// isActive checks if a cell is currently being resolved
func (rs *resolutionStack) isActive(addr CellAddress) bool {
	_, exists := rs.active[addr]
	return exists
}

// depth returns the number of cells currently being resolved
func (rs *resolutionStack) depth() int {
	return len(rs.items)
}
