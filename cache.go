package formula

import (
	"github.com/segmentio/fasthash/fnv1a"
)

// cachedFormula is one parsed formula held by the cache
type cachedFormula struct {
	hash   uint64
	source string
	ast    Node
}

// FormulaCache keeps parsed ASTs per cell so re-entering an unchanged
// formula skips the lexer and parser. sources compare by fnv1a hash
// first, full string second to rule out collisions.
type FormulaCache struct {
	byCell map[CellAddress]*cachedFormula
	hits   uint64
	misses uint64
}

// NewFormulaCache creates an empty cache
func NewFormulaCache() *FormulaCache {
	return &FormulaCache{
		byCell: make(map[CellAddress]*cachedFormula),
	}
}

// Lookup returns the cached AST for addr if the stored source matches
func (fc *FormulaCache) Lookup(addr CellAddress, source string) (Node, bool) {
	entry, exists := fc.byCell[addr]
	if !exists {
		fc.misses++
		return nil, false
	}

	hash := fnv1a.HashString64(source)
	if entry.hash != hash || entry.source != source {
		fc.misses++
		return nil, false
	}

	fc.hits++
	return entry.ast, true
}

// Store records the parsed AST for addr
func (fc *FormulaCache) Store(addr CellAddress, source string, ast Node) {
	fc.byCell[addr] = &cachedFormula{
		hash:   fnv1a.HashString64(source),
		source: source,
		ast:    ast,
	}
}

// Invalidate drops the entry for addr
func (fc *FormulaCache) Invalidate(addr CellAddress) {
	delete(fc.byCell, addr)
}

// Len returns the number of cached formulas
func (fc *FormulaCache) Len() int {
	return len(fc.byCell)
}

// Stats returns hit and miss counts since creation
func (fc *FormulaCache) Stats() (hits, misses uint64) {
	return fc.hits, fc.misses
}

// Clear drops every entry but keeps the counters
func (fc *FormulaCache) Clear() {
	fc.byCell = make(map[CellAddress]*cachedFormula)
}
