package formula

import "iter"

// RangeAddress represents a normalized rectangular range of cells:
// StartRow <= EndRow and StartColumn <= EndColumn always hold
type RangeAddress struct {
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

// NewRangeAddress builds a normalized range from two corner cells in
// any order
func NewRangeAddress(a, b CellAddress) RangeAddress {
	return RangeAddress{
		StartRow:    min(a.Row, b.Row),
		StartColumn: min(a.Column, b.Column),
		EndRow:      max(a.Row, b.Row),
		EndColumn:   max(a.Column, b.Column),
	}
}

// String renders the range in A1:B2 notation
func (r RangeAddress) String() string {
	start := CellAddress{Row: r.StartRow, Column: r.StartColumn}
	end := CellAddress{Row: r.EndRow, Column: r.EndColumn}
	return start.String() + ":" + end.String()
}

// Contains checks whether a cell falls inside the range
func (r RangeAddress) Contains(addr CellAddress) bool {
	return addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Column >= r.StartColumn && addr.Column <= r.EndColumn
}

// CellCount returns the number of cells the range covers
func (r RangeAddress) CellCount() int {
	rows := int(r.EndRow-r.StartRow) + 1
	cols := int(r.EndColumn-r.StartColumn) + 1
	return rows * cols
}

// Cells iterates the addresses in the range in row-major order
func (r RangeAddress) Cells() iter.Seq[CellAddress] {
	return func(yield func(CellAddress) bool) {
		for row := r.StartRow; row <= r.EndRow; row++ {
			for col := r.StartColumn; col <= r.EndColumn; col++ {
				if !yield(CellAddress{Row: row, Column: col}) {
					return
				}
			}
		}
	}
}

// ParseRangeAddress parses a range like "A1:B3" into a normalized
// RangeAddress
func ParseRangeAddress(input string) (RangeAddress, error) {
	node, err := parseReference(input)
	if err != nil {
		return RangeAddress{}, err
	}
	switch n := node.(type) {
	case *RangeRefNode:
		return n.Addr, nil
	case *CellRefNode:
		// a single cell is a 1x1 range
		return NewRangeAddress(n.Addr, n.Addr), nil
	}
	return RangeAddress{}, &SyntaxError{Pos: 0, Message: "not a range reference: " + input}
}

// parseReference lexes and parses a standalone cell or range reference
func parseReference(input string) (Node, error) {
	tokens, err := NewLexerForReference(input).Tokenize()
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &SyntaxError{Pos: 0, Message: "empty reference"}
	}
	p := NewParser(tokens)
	tok := tokens[0]
	switch tok.Type {
	case TokenCell:
		p.pos++
		return p.parseCellReference(tok)
	case TokenRange:
		p.pos++
		return p.parseRange(tok)
	}
	return nil, &SyntaxError{Pos: tok.Pos, Message: "not a cell or range reference: " + input}
}

// Range is the lazy view of a range that built-in functions iterate.
// values come out one at a time so a large range never materializes as
// a slice.
type Range interface {
	Bounds() RangeAddress
	Values() iter.Seq[Value]
}

// cellRange implements Range against the active evaluation context.
// each cell resolves individually: out-of-bounds cells yield #REF!,
// cells already being resolved yield #CYCLE!, and everything else goes
// through the normal cycle-guarded resolution path.
type cellRange struct {
	addr RangeAddress
	ctx  *EvalContext
}

func (r *cellRange) Bounds() RangeAddress {
	return r.addr
}

func (r *cellRange) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for addr := range r.addr.Cells() {
			if !yield(r.ctx.resolve(addr)) {
				return
			}
		}
	}
}
