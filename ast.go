package formula

import (
	"fmt"
	"math"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// AST enables dependency extraction and formula display through tree
// traversal rather than regex/string manipulation. Eval never fails in
// the Go sense: runtime problems come back as *CellError values.
type Node interface {
	Eval(ctx *EvalContext) Value
	GetPosition() NodePosition
	ToString() string
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(ctx *EvalContext) Value {
	return n.Value
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(ctx *EvalContext) Value {
	return n.Value
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return formatNumber(n.Value)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(ctx *EvalContext) Value {
	return n.Value
}

func (n *BooleanNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// CellRefNode represents an absolute cell reference
type CellRefNode struct {
	Addr     CellAddress
	Position NodePosition
}

func (n *CellRefNode) Eval(ctx *EvalContext) Value {
	return ctx.resolve(n.Addr)
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return n.Addr.String()
}

// RangeRefNode represents a rectangular range of cells. the parser only
// produces one as a whole function argument, so Eval yields the lazy
// Range for the function to iterate.
type RangeRefNode struct {
	Addr     RangeAddress
	Position NodePosition
}

func (n *RangeRefNode) Eval(ctx *EvalContext) Value {
	return &cellRange{addr: n.Addr, ctx: ctx}
}

func (n *RangeRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeRefNode) ToString() string {
	return n.Addr.String()
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     Node
	Right    Node
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ctx *EvalContext) Value {
	leftVal := n.Left.Eval(ctx)
	if err, ok := leftVal.(*CellError); ok {
		return err
	}

	rightVal := n.Right.Eval(ctx)
	if err, ok := rightVal.(*CellError); ok {
		return err
	}

	switch n.Op {
	case BinOpAdd:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return NewCellError(ErrorCodeValue, "addition requires numeric values")
		}
		return leftNum + rightNum

	case BinOpSubtract:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return NewCellError(ErrorCodeValue, "subtraction requires numeric values")
		}
		return leftNum - rightNum

	case BinOpMultiply:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return NewCellError(ErrorCodeValue, "multiplication requires numeric values")
		}
		return leftNum * rightNum

	case BinOpDivide:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return NewCellError(ErrorCodeValue, "division requires numeric values")
		}
		if rightNum == 0 {
			return NewCellError(ErrorCodeDiv0, "division by zero")
		}
		return leftNum / rightNum

	case BinOpPower:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return NewCellError(ErrorCodeValue, "power requires numeric values")
		}
		result := math.Pow(leftNum, rightNum)
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return NewCellError(ErrorCodeNum, "power result out of range")
		}
		return result

	case BinOpConcat:
		return toText(leftVal) + toText(rightVal)

	case BinOpEqual:
		return compareValues(leftVal, rightVal) == 0

	case BinOpNotEqual:
		return compareValues(leftVal, rightVal) != 0

	case BinOpLess:
		return compareValues(leftVal, rightVal) < 0

	case BinOpLessEqual:
		return compareValues(leftVal, rightVal) <= 0

	case BinOpGreater:
		return compareValues(leftVal, rightVal) > 0

	case BinOpGreaterEqual:
		return compareValues(leftVal, rightVal) >= 0

	default:
		return NewCellError(ErrorCodeValue, "unknown operator")
	}
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	opStr := ""
	switch n.Op {
	case BinOpAdd:
		opStr = "+"
	case BinOpSubtract:
		opStr = "-"
	case BinOpMultiply:
		opStr = "*"
	case BinOpDivide:
		opStr = "/"
	case BinOpPower:
		opStr = "^"
	case BinOpConcat:
		opStr = "&"
	case BinOpEqual:
		opStr = "="
	case BinOpNotEqual:
		opStr = "<>"
	case BinOpLess:
		opStr = "<"
	case BinOpLessEqual:
		opStr = "<="
	case BinOpGreater:
		opStr = ">"
	case BinOpGreaterEqual:
		opStr = ">="
	}
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), opStr, n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  Node
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ctx *EvalContext) Value {
	val := n.Operand.Eval(ctx)
	if err, ok := val.(*CellError); ok {
		return err
	}

	switch n.Op {
	case UnaryOpPlus:
		num, ok := toNumber(val)
		if !ok {
			return NewCellError(ErrorCodeValue, "unary plus requires a numeric value")
		}
		return num

	case UnaryOpMinus:
		num, ok := toNumber(val)
		if !ok {
			return NewCellError(ErrorCodeValue, "negation requires a numeric value")
		}
		return -num

	default:
		return NewCellError(ErrorCodeValue, "unknown unary operator")
	}
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	opStr := "+"
	if n.Op == UnaryOpMinus {
		opStr = "-"
	}
	return fmt.Sprintf("%s%s", opStr, n.Operand.ToString())
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name     string
	Args     []Node
	Position NodePosition
}

func (n *FunctionCallNode) Eval(ctx *EvalContext) Value {
	// IF selects its branch before evaluating it, so a rejected branch
	// never runs and never produces an error. a registered IF delegate
	// takes the eager path below instead.
	if n.Name == "IF" && !ctx.funcs.hasDelegate("IF") {
		return evalIf(ctx, n.Args)
	}

	args := make([]Value, len(n.Args))
	for i, argNode := range n.Args {
		args[i] = argNode.Eval(ctx)
	}

	return ctx.funcs.Call(n.Name, args...)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}
