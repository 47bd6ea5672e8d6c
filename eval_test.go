package formula

import (
	"testing"
)

// mapGrid builds a GridAccessor over a fixed set of plain values keyed
// by address string
func mapGrid(t *testing.T, cells map[string]Value) GridAccessor {
	t.Helper()
	byAddr := make(map[CellAddress]Value, len(cells))
	for address, value := range cells {
		addr, err := ParseCellAddress(address)
		if err != nil {
			t.Fatalf("bad address %q: %v", address, err)
		}
		byAddr[addr] = value
	}
	return func(ctx *EvalContext, addr CellAddress) Value {
		return byAddr[addr]
	}
}

func mustAddr(t *testing.T, address string) CellAddress {
	t.Helper()
	addr, err := ParseCellAddress(address)
	if err != nil {
		t.Fatalf("bad address %q: %v", address, err)
	}
	return addr
}

func TestEvaluateStandalone(t *testing.T) {
	grid := mapGrid(t, map[string]Value{
		"A1": 10.0,
		"A2": 20.0,
		"B1": "text",
	})

	cases := map[string]Value{
		"=A1+A2":        30.0,
		"=A1*2":         20.0,
		"=SUM(A1:A2)":   30.0,
		"=B1":           "text",
		"=C1":           nil,
		`=B1&"!"`:       "text!",
		"=IF(A1>5, 1)":  1.0,
		"=COUNT(A1:B2)": 2.0,
	}

	for source, expected := range cases {
		t.Run(source, func(t *testing.T) {
			result, err := Evaluate(source, mustAddr(t, "Z1"), grid)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result != expected {
				t.Errorf("result = %v, want %v", result, expected)
			}
		})
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	grid := mapGrid(t, nil)
	if _, err := Evaluate("=1+", mustAddr(t, "A1"), grid); err == nil {
		t.Error("expected a syntax error")
	}
	if _, err := Evaluate("=bogus", mustAddr(t, "A1"), grid); err == nil {
		t.Error("expected a lex error")
	}
}

func TestEvaluateNilGrid(t *testing.T) {
	result, err := Evaluate("=A1+5", mustAddr(t, "B1"), nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	// a nil grid reads every cell as blank
	if result != 5.0 {
		t.Errorf("result = %v, want 5", result)
	}
}

func TestEvaluateBounds(t *testing.T) {
	grid := mapGrid(t, map[string]Value{"A1": 1.0})

	result, err := Evaluate("=Z100", mustAddr(t, "A2"), grid,
		WithBounds(Bounds{Rows: 10, Columns: 10}))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	cellErr, ok := result.(*CellError)
	if !ok || cellErr.ErrorCode != ErrorCodeRef {
		t.Errorf("result = %v, want #REF!", result)
	}

	// without bounds the same reference reads as blank
	result, err = Evaluate("=Z100", mustAddr(t, "A2"), grid)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestEvaluateSelfReference(t *testing.T) {
	grid := mapGrid(t, map[string]Value{"A1": 1.0})

	// the owning address is on the resolution stack during evaluation
	result, err := Evaluate("=A1", mustAddr(t, "A1"), grid)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	cellErr, ok := result.(*CellError)
	if !ok || cellErr.ErrorCode != ErrorCodeCycle {
		t.Errorf("result = %v, want #CYCLE!", result)
	}
}

func TestEvaluateWithFuncs(t *testing.T) {
	funcs := NewFuncs()
	funcs.Register("TRIPLE", func(args ...Value) Value {
		num, ok := toNumber(args[0])
		if !ok {
			return NewCellError(ErrorCodeValue, "TRIPLE requires a number")
		}
		return num * 3
	})

	result, err := Evaluate("=TRIPLE(7)", mustAddr(t, "A1"), nil, WithFuncs(funcs))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result != 21.0 {
		t.Errorf("result = %v, want 21", result)
	}
}

func TestResolutionStack(t *testing.T) {
	rs := newResolutionStack()
	a1 := mustAddr(t, "A1")
	b1 := mustAddr(t, "B1")

	if rs.isActive(a1) {
		t.Error("empty stack should have no active cells")
	}
	rs.push(a1)
	rs.push(b1)
	if !rs.isActive(a1) || !rs.isActive(b1) {
		t.Error("pushed cells should be active")
	}
	rs.pop()
	if rs.isActive(b1) {
		t.Error("popped cell should not be active")
	}
	if !rs.isActive(a1) {
		t.Error("A1 should still be active")
	}
}

func TestRangeIterationResolvesPerCell(t *testing.T) {
	// one cell erroring does not stop the range walk; the aggregate
	// sees the error value in place
	grid := func(ctx *EvalContext, addr CellAddress) Value {
		if addr == (CellAddress{Row: 1, Column: 0}) {
			return NewCellError(ErrorCodeDiv0, "boom")
		}
		return 1.0
	}

	result, err := Evaluate("=COUNTA(A1:A3)", mustAddr(t, "B1"), grid)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	// COUNTA counts error cells rather than propagating them
	if result != 3.0 {
		t.Errorf("result = %v, want 3", result)
	}

	result, err = Evaluate("=SUM(A1:A3)", mustAddr(t, "B1"), grid)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	cellErr, ok := result.(*CellError)
	if !ok || cellErr.ErrorCode != ErrorCodeDiv0 {
		t.Errorf("result = %v, want #DIV/0!", result)
	}
}
