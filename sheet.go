package formula

import (
	"fmt"
	"sort"
	"strings"
)

// AppErrorCode represents gRPC-style error codes for application-level
// errors. note that we are skipping error codes that don't make sense
// for our use-case, like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error. Errors raised by APIs that do not return enough error
	// information may be converted to this error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., a cell) was not found.
	NotFound AppErrorCode = 5

	// OutOfRange means operation was attempted past the valid range.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not formula
// error values)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// DefaultBounds is the grid extent a Sheet gets when none is given
var DefaultBounds = Bounds{Rows: 1048576, Columns: 16384}

// sheetCell holds one occupied cell. a cell is either a plain value
// (formula == "") or a formula with its parsed AST and last result.
type sheetCell struct {
	value   Value
	formula string
	ast     Node
	result  Value
}

// Sheet combines cell storage, formula parsing, dependency tracking,
// and evaluation into a unified grid API. formulas are re-evaluated
// lazily: setting a cell marks its dependents dirty, and dirty cells
// compute on read or on Recalculate.
type Sheet struct {
	bounds Bounds
	cells  map[CellAddress]*sheetCell
	funcs  *Funcs
	cache  *FormulaCache
	graph  *DependencyGraph
}

// NewSheet creates a sheet with the default grid bounds
func NewSheet() *Sheet {
	return NewSheetWithBounds(DefaultBounds)
}

// NewSheetWithBounds creates a sheet with an explicit grid extent
func NewSheetWithBounds(bounds Bounds) *Sheet {
	return &Sheet{
		bounds: bounds,
		cells:  make(map[CellAddress]*sheetCell),
		funcs:  NewFuncs(),
		cache:  NewFormulaCache(),
		graph:  NewDependencyGraph(),
	}
}

// Bounds returns the sheet's grid extent
func (s *Sheet) Bounds() Bounds {
	return s.bounds
}

// Funcs returns the sheet's function catalog, for registering delegates
func (s *Sheet) Funcs() *Funcs {
	return s.funcs
}

// Graph returns the dependency graph for diagnostic purposes
func (s *Sheet) Graph() *DependencyGraph {
	return s.graph
}

func (s *Sheet) resolveAddress(address string) (CellAddress, error) {
	addr, err := ParseCellAddress(address)
	if err != nil {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid address %q: %v", address, err))
	}
	if !s.bounds.Contains(addr) {
		return CellAddress{}, NewApplicationError(OutOfRange, fmt.Sprintf("address %s is outside the grid", address))
	}
	return addr, nil
}

// Set stores a value or formula in a cell. strings starting with '='
// are formulas; a formula that fails to lex or parse is rejected here
// and the cell keeps its previous content. dependents of the cell are
// marked dirty for lazy recalculation.
func (s *Sheet) Set(address string, value Value) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}

	if source, ok := value.(string); ok && strings.HasPrefix(source, "=") {
		return s.setFormula(addr, source)
	}

	switch value.(type) {
	case float64, string, bool, nil:
	case int:
		value = float64(value.(int))
	case int64:
		value = float64(value.(int64))
	default:
		return NewApplicationError(InvalidArgument, fmt.Sprintf("unsupported value type %T", value))
	}

	s.graph.ClearDependencies(addr)
	s.cache.Invalidate(addr)
	s.cells[addr] = &sheetCell{value: value}
	s.markAffectedDirty(addr)
	return nil
}

func (s *Sheet) setFormula(addr CellAddress, source string) error {
	ast, cached := s.cache.Lookup(addr, source)
	if !cached {
		var err error
		ast, err = ParseFormula(source)
		if err != nil {
			// bad formulas are rejected at entry, never stored
			return NewApplicationError(InvalidArgument, err.Error())
		}
		s.cache.Store(addr, source, ast)
	}

	s.graph.ExtractDependencies(ast, addr)
	s.graph.SetFormula(addr, source)
	s.cells[addr] = &sheetCell{formula: source, ast: ast}
	s.graph.MarkDirty(addr)
	s.markAffectedDirty(addr)
	return nil
}

// markAffectedDirty marks every dependent of addr dirty, transitively,
// including observers of ranges that cover it
func (s *Sheet) markAffectedDirty(addr CellAddress) {
	for _, dep := range s.graph.GetAffectedCells(addr) {
		s.graph.MarkDirty(dep)
	}
}

// Remove clears a cell
func (s *Sheet) Remove(address string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}

	if _, exists := s.cells[addr]; !exists {
		return nil
	}

	s.graph.ClearDependencies(addr)
	s.cache.Invalidate(addr)
	delete(s.cells, addr)
	s.markAffectedDirty(addr)
	s.graph.RemoveNode(addr)
	return nil
}

// Get returns the current value of a cell. formula cells evaluate on
// demand if dirty; plain cells return their stored value; absent cells
// return nil. error values come back as *CellError inside the Value.
func (s *Sheet) Get(address string) (Value, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	ctx := s.newContext()
	return ctx.resolve(addr), nil
}

// Formula returns the formula source of a cell, if it has one
func (s *Sheet) Formula(address string) (string, bool) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return "", false
	}
	cell, exists := s.cells[addr]
	if !exists || cell.formula == "" {
		return "", false
	}
	return cell.formula, true
}

// Display renders a cell the way a grid would show it
func (s *Sheet) Display(address string) string {
	value, err := s.Get(address)
	if err != nil {
		return ""
	}
	return DisplayString(value)
}

// Eval parses and evaluates a formula against the sheet without
// storing it in any cell
func (s *Sheet) Eval(source string) (Value, error) {
	ast, err := ParseFormula(source)
	if err != nil {
		return nil, err
	}
	return s.newContext().Eval(ast), nil
}

// Recalculate evaluates every dirty formula cell in deterministic
// order (row-major). cells involved in cycles settle to #CYCLE!.
func (s *Sheet) Recalculate() {
	dirty := s.graph.DirtyCells()
	sort.Slice(dirty, func(i, j int) bool {
		if dirty[i].Row != dirty[j].Row {
			return dirty[i].Row < dirty[j].Row
		}
		return dirty[i].Column < dirty[j].Column
	})

	for _, addr := range dirty {
		if !s.graph.IsDirty(addr) {
			continue // settled while evaluating an earlier cell
		}
		cell, exists := s.cells[addr]
		if !exists || cell.ast == nil {
			s.graph.ClearDirty(addr)
			continue
		}
		ctx := s.newContext()
		cell.result = ctx.EvalAt(cell.ast, addr)
		s.graph.ClearDirty(addr)
	}
}

// Cells returns the addresses of all occupied cells in row-major order
func (s *Sheet) Cells() []CellAddress {
	result := make([]CellAddress, 0, len(s.cells))
	for addr := range s.cells {
		result = append(result, addr)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Row != result[j].Row {
			return result[i].Row < result[j].Row
		}
		return result[i].Column < result[j].Column
	})
	return result
}

// newContext builds an evaluation context wired to this sheet's cells
func (s *Sheet) newContext() *EvalContext {
	return NewEvalContext(s.cellValue, WithFuncs(s.funcs), WithBounds(s.bounds))
}

// cellValue is the sheet's GridAccessor. the context has already
// pushed addr on the resolution stack, so evaluating a formula cell
// here keeps the cycle guard intact.
func (s *Sheet) cellValue(ctx *EvalContext, addr CellAddress) Value {
	cell, exists := s.cells[addr]
	if !exists {
		return nil
	}

	if cell.ast == nil {
		return cell.value
	}

	if !s.graph.IsDirty(addr) && cell.result != nil {
		return cell.result
	}

	cell.result = cell.ast.Eval(ctx)
	s.graph.ClearDirty(addr)
	return cell.result
}

// SheetRunner provides a chainable interface for sheet operations.
// wraps the standard Sheet and tracks errors internally.
type SheetRunner struct {
	sheet *Sheet
	err   error
}

// NewSheetRunner creates a new SheetRunner over a fresh sheet
func NewSheetRunner() *SheetRunner {
	return &SheetRunner{
		sheet: NewSheet(),
	}
}

// Set sets a cell value (chainable)
func (r *SheetRunner) Set(address string, value Value) *SheetRunner {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.sheet.Set(address, value)
	return r
}

// SetBatch sets multiple cells at once (chainable)
func (r *SheetRunner) SetBatch(cells map[string]Value) *SheetRunner {
	if r.err != nil {
		return r
	}
	for address, value := range cells {
		if err := r.sheet.Set(address, value); err != nil {
			r.err = err
			return r
		}
	}
	return r
}

// Remove removes a cell (chainable)
func (r *SheetRunner) Remove(address string) *SheetRunner {
	if r.err != nil {
		return r
	}
	r.err = r.sheet.Remove(address)
	return r
}

// Recalculate evaluates all dirty formulas (chainable)
func (r *SheetRunner) Recalculate() *SheetRunner {
	if r.err != nil {
		return r
	}
	r.sheet.Recalculate()
	return r
}

// Value reads a single cell value from the chain
func (r *SheetRunner) Value(address string) Value {
	if r.err != nil {
		return nil
	}
	val, err := r.sheet.Get(address)
	if err != nil {
		r.err = err
		return nil
	}
	return val
}

// Values reads multiple cell values from the chain
func (r *SheetRunner) Values(addresses ...string) []Value {
	if r.err != nil {
		return nil
	}
	values := make([]Value, len(addresses))
	for i, address := range addresses {
		val, err := r.sheet.Get(address)
		if err != nil {
			r.err = err
			return nil
		}
		values[i] = val
	}
	return values
}

// Error returns the current error state
func (r *SheetRunner) Error() error {
	return r.err
}

// Must panics if there's an error (chainable). useful for ensuring
// critical operations succeed
func (r *SheetRunner) Must() *SheetRunner {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// Run executes a final recalculation and returns the sheet and any
// error. typically the last method in the chain.
func (r *SheetRunner) Run() (*Sheet, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.sheet.Recalculate()
	return r.sheet, nil
}

// Sheet returns the underlying sheet. use with caution as it bypasses
// error tracking.
func (r *SheetRunner) Sheet() *Sheet {
	return r.sheet
}
