package formula

import (
	"testing"
)

func TestParserValidFormulas(t *testing.T) {
	valid := []string{
		"=1+2",
		"=A1",
		"=a1",
		"=SUM(A1:A10)",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=SUM(A1:Z1000)",
		"=SUM()",
		"=PI()",
		"=IF(A1>10, 1, 2)",
		"=SUM(A1:A3, B1, 5)",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
		`="he said ""hi"""`,
		"=1.5E3",
		"=1.5e-3",
		"=-A1^2",
		"=(1+2)*(3-4)",
		"=TRUE",
		"=NOT(FALSE)",
		`="a"&"b"="ab"`,
		"=1++2",
		"=--5",
	}

	for _, source := range valid {
		t.Run(source, func(t *testing.T) {
			if _, err := ParseFormula(source); err != nil {
				t.Errorf("Failed to parse valid formula %s: %v", source, err)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalid := []string{
		"",
		"1+2", // missing leading equals
		"=",
		"=SUM(",
		"=A1:",
		`="hello`,
		"=1+",
		"=*2",
		"=(1+2",
		"=1+2)",
		"=SUM(1,)",
		"=SUM(,1)",
		"=foo",
		"=A1 B1",
		"=1 2",
		"=5%",
		"=1!=2",
		"=Sheet1!A1",
		"=A1:B2",        // range outside an argument position
		"=A1:B2+1",      // range as an operand
		"=SUM(A1:B2+1)", // range inside a larger argument expression
		"=SUM((A1:B2))",
	}

	for _, source := range invalid {
		t.Run(source, func(t *testing.T) {
			if _, err := ParseFormula(source); err == nil {
				t.Errorf("Expected formula to fail but it succeeded: %s", source)
			}
		})
	}
}

func TestParserShapes(t *testing.T) {
	shapes := map[string]string{
		"=1+2":                "(1+2)",
		"=2+3*4":              "(2+(3*4))",
		"=(2+3)*4":            "((2+3)*4)",
		"=2^3^2":              "(2^(3^2))",
		"=1<2=TRUE":           "((1<2)=TRUE)",
		`="a"&"b"&"c"`:        `(("a"&"b")&"c")`,
		"=-2+5":               "(-2+5)",
		"=1-2-3":              "((1-2)-3)",
		"=SUM(A1:B2, 5)":      "SUM(A1:B2,5)",
		"=IF(A1>10, 1, 2)":    "IF((A1>10),1,2)",
		"=a1+b2":              "(A1+B2)",
		`="he said ""hi"""`:   `"he said ""hi"""`,
		"=5<>3":               "(5<>3)",
		"=SUM(B2:A1)":         "SUM(A1:B2)", // ranges normalize corner order
		"=CONCATENATE(1, -2)": "CONCATENATE(1,-2)",
	}

	for source, expected := range shapes {
		t.Run(source, func(t *testing.T) {
			node, err := ParseFormula(source)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got := node.ToString(); got != expected {
				t.Errorf("ToString() = %s, want %s", got, expected)
			}
		})
	}
}

func TestParserFunctionNames(t *testing.T) {
	node, err := ParseFormula("=sum(1, 2)")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	call, ok := node.(*FunctionCallNode)
	if !ok {
		t.Fatalf("expected FunctionCallNode, got %T", node)
	}
	// function names normalize to upper case at lex time
	if call.Name != "SUM" {
		t.Errorf("Name = %s, want SUM", call.Name)
	}
	if len(call.Args) != 2 {
		t.Errorf("len(Args) = %d, want 2", len(call.Args))
	}
}

func TestParserCellAddresses(t *testing.T) {
	cases := map[string]CellAddress{
		"=A1":     {Row: 0, Column: 0},
		"=B3":     {Row: 2, Column: 1},
		"=Z10":    {Row: 9, Column: 25},
		"=AA1":    {Row: 0, Column: 26},
		"=AZ5":    {Row: 4, Column: 51},
		"=BA1":    {Row: 0, Column: 52},
		"=ZZ1":    {Row: 0, Column: 701},
		"=AAA1":   {Row: 0, Column: 702},
		"=D100":   {Row: 99, Column: 3},
		"=XFD1":   {Row: 0, Column: 16383},
		"=A10000": {Row: 9999, Column: 0},
	}

	for source, expected := range cases {
		t.Run(source, func(t *testing.T) {
			node, err := ParseFormula(source)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			ref, ok := node.(*CellRefNode)
			if !ok {
				t.Fatalf("expected CellRefNode, got %T", node)
			}
			if ref.Addr != expected {
				t.Errorf("Addr = %+v, want %+v", ref.Addr, expected)
			}
		})
	}
}

func TestParserRangeNormalization(t *testing.T) {
	node, err := ParseFormula("=SUM(C3:A1)")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	call := node.(*FunctionCallNode)
	rangeRef, ok := call.Args[0].(*RangeRefNode)
	if !ok {
		t.Fatalf("expected RangeRefNode argument, got %T", call.Args[0])
	}
	want := RangeAddress{StartRow: 0, StartColumn: 0, EndRow: 2, EndColumn: 2}
	if rangeRef.Addr != want {
		t.Errorf("Addr = %+v, want %+v", rangeRef.Addr, want)
	}
	if rangeRef.Addr.String() != "A1:C3" {
		t.Errorf("String() = %s, want A1:C3", rangeRef.Addr.String())
	}
}

func TestSyntaxErrorPositions(t *testing.T) {
	_, err := ParseFormula("=1+")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	synErr, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("expected *SyntaxError, got %T: %v", err, err)
	}
	if synErr.Pos <= 0 {
		t.Errorf("Pos = %d, want a position past the operator", synErr.Pos)
	}
}
