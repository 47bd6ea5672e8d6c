package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CellAddress identifies a cell by zero-based row and column
type CellAddress struct {
	Row    uint32
	Column uint32
}

// String renders the address in A1 notation
func (a CellAddress) String() string {
	return columnName(a.Column) + strconv.FormatUint(uint64(a.Row)+1, 10)
}

// columnName converts a zero-based column index to its letter form
// (A=0, ..., Z=25, AA=26)
func columnName(col uint32) string {
	name := make([]byte, 0, 4)
	n := int64(col)
	for {
		name = append(name, byte('A'+n%26))
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	// reverse
	for i, j := 0, len(name)-1; i < j; i, j = i+1, j-1 {
		name[i], name[j] = name[j], name[i]
	}
	return string(name)
}

// ParseCellAddress parses an address like "A1" or "bc12" into a
// CellAddress. the reference lexer rejects anything that is not a
// plain cell token.
func ParseCellAddress(input string) (CellAddress, error) {
	lexer := NewLexerForReference(input)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return CellAddress{}, err
	}
	if len(tokens) == 0 || tokens[0].Type != TokenCell {
		return CellAddress{}, fmt.Errorf("not a cell reference: %s", input)
	}
	// the lexer may accept a cell token followed by junk in relaxed mode;
	// require the token to cover the whole input
	if len(tokens[0].Value) != len(strings.TrimSpace(input)) {
		return CellAddress{}, fmt.Errorf("not a cell reference: %s", input)
	}
	return cellFromToken(tokens[0].Value)
}

// cellFromToken converts a validated cell token like "A1" into an address
func cellFromToken(cell string) (CellAddress, error) {
	letterEnd := 0
	for i, ch := range cell {
		if ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' {
			letterEnd = i + 1
		} else {
			break
		}
	}

	if letterEnd == 0 || letterEnd == len(cell) {
		return CellAddress{}, fmt.Errorf("invalid cell reference: %s", cell)
	}

	// parse column (A=0, B=1, ..., Z=25, AA=26, AB=27, ...)
	colStr := strings.ToUpper(cell[:letterEnd])
	col := int64(0)
	for i, ch := range colStr {
		col = col*26 + int64(ch-'A')
		if i < len(colStr)-1 {
			col++ // account for positional notation
		}
		if col > math.MaxUint32 {
			return CellAddress{}, fmt.Errorf("column out of range: %s", colStr)
		}
	}

	// parse row (1-based in notation, but we want 0-based)
	rowStr := cell[letterEnd:]
	rowNum, err := strconv.ParseInt(rowStr, 10, 32)
	if err != nil {
		return CellAddress{}, fmt.Errorf("invalid row number: %s", rowStr)
	}
	if rowNum < 1 {
		return CellAddress{}, fmt.Errorf("row number must be positive: %d", rowNum)
	}

	return CellAddress{Row: uint32(rowNum - 1), Column: uint32(col)}, nil
}

// Bounds describes the valid extent of a grid
type Bounds struct {
	Rows    uint32
	Columns uint32
}

// Contains reports whether the address falls inside the bounds
func (b Bounds) Contains(addr CellAddress) bool {
	return addr.Row < b.Rows && addr.Column < b.Columns
}
