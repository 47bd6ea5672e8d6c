package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports a structurally invalid token sequence
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Message)
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser with the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
	}
}

// ParseFormula tokenizes and parses a formula source string in one step
func ParseFormula(source string) (Node, error) {
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (Node, error) {
	if len(p.tokens) == 0 {
		return nil, &SyntaxError{Pos: 0, Message: "no tokens to parse"}
	}

	// expect and skip the equals prefix
	if p.tokens[p.pos].Type != TokenEquals {
		return nil, &SyntaxError{Pos: p.tokens[p.pos].Pos, Message: "formula must start with '='"}
	}
	p.pos++ // consume the equals token

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		tok := p.tokens[p.pos]
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected token after expression: %s", tok.Value)}
	}

	return node, nil
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (Node, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			break
		}

		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       BinOpConcat,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (Node, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parsePower handles exponentiation
func (p *Parser) parsePower() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenBinaryOp && p.tokens[p.pos].Value == "^" {
		p.pos++
		right, err := p.parsePower() // recursive for right-associativity
		if err != nil {
			return nil, err
		}

		return &BinaryOpNode{
			Op:       BinOpPower,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}, nil
	}

	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (Node, error) {
	if p.pos >= len(p.tokens) {
		return nil, &SyntaxError{Pos: p.endPos(), Message: "unexpected end of expression"}
	}

	tok := p.tokens[p.pos]

	if tok.Type == TokenUnaryPrefixOp {
		var op UnaryOp
		switch tok.Value {
		case "+":
			op = UnaryOpPlus
		case "-":
			op = UnaryOpMinus
		default:
			return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unknown unary operator: %s", tok.Value)}
		}

		startPos := tok.Pos
		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
		if err != nil {
			return nil, err
		}

		return &UnaryOpNode{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: startPos, End: operand.GetPosition().End},
		}, nil
	}

	return p.parsePrimary()
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses). range references are rejected here: they
// are only legal as whole function arguments, which parseFunctionCall
// handles before descending.
func (p *Parser) parsePrimary() (Node, error) {
	if p.pos >= len(p.tokens) {
		return nil, &SyntaxError{Pos: p.endPos(), Message: "unexpected end of expression"}
	}

	tok := p.tokens[p.pos]

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("invalid number: %s", tok.Value)}
		}
		return &NumberNode{
			Value:    val,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenString:
		p.pos++
		return &StringNode{
			Value:    tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value) + 2}, // +2 for quotes
		}, nil

	case TokenBoolean:
		p.pos++
		value := tok.Value == "TRUE"
		return &BooleanNode{
			Value:    value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenCell:
		p.pos++
		return p.parseCellReference(tok)

	case TokenRange:
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("range %s is only allowed as a function argument", tok.Value)}

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, &SyntaxError{Pos: p.endPos(), Message: "expected closing parenthesis"}
		}
		p.pos++

		return node, nil

	default:
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected token: %s", tok.Value)}
	}
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (Node, error) {
	funcTok := p.tokens[p.pos]
	funcName := funcTok.Value
	startPos := funcTok.Pos
	p.pos++

	// expect opening parenthesis
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, &SyntaxError{Pos: p.endPos(), Message: "expected '(' after function name"}
	}
	p.pos++

	args := []Node{}

	// check for empty argument list
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     funcName,
			Args:     args,
			Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
		}, nil
	}

	for {
		arg, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.pos >= len(p.tokens) {
			return nil, &SyntaxError{Pos: p.endPos(), Message: "unexpected end in function arguments"}
		}

		if p.tokens[p.pos].Type == TokenRightParen {
			p.pos++
			break
		}

		if p.tokens[p.pos].Type != TokenComma {
			return nil, &SyntaxError{Pos: p.tokens[p.pos].Pos, Message: "expected ',' or ')' in function arguments"}
		}
		p.pos++
	}

	return &FunctionCallNode{
		Name:     funcName,
		Args:     args,
		Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}

// parseArgument parses a single function argument. a range reference is
// accepted only when it makes up the whole argument; a range mixed into
// a larger expression falls through to parsePrimary and is rejected.
func (p *Parser) parseArgument() (Node, error) {
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRange {
		next := p.pos + 1
		if next < len(p.tokens) && (p.tokens[next].Type == TokenComma || p.tokens[next].Type == TokenRightParen) {
			tok := p.tokens[p.pos]
			p.pos++
			return p.parseRange(tok)
		}
	}
	return p.parseComparison()
}

// parseCellReference parses a cell reference token into a CellRefNode
func (p *Parser) parseCellReference(tok Token) (Node, error) {
	addr, err := cellFromToken(tok.Value)
	if err != nil {
		return nil, &SyntaxError{Pos: tok.Pos, Message: err.Error()}
	}

	return &CellRefNode{
		Addr:     addr,
		Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
	}, nil
}

// parseRange parses a range token into a RangeRefNode
func (p *Parser) parseRange(tok Token) (Node, error) {
	parts := strings.Split(tok.Value, ":")
	if len(parts) != 2 {
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("invalid range format: %s", tok.Value)}
	}

	start, err := cellFromToken(parts[0])
	if err != nil {
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("invalid start cell in range: %s", parts[0])}
	}

	end, err := cellFromToken(parts[1])
	if err != nil {
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("invalid end cell in range: %s", parts[1])}
	}

	return &RangeRefNode{
		Addr:     NewRangeAddress(start, end),
		Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
	}, nil
}

// endPos reports the position just past the last real token, for errors
// at end of input
func (p *Parser) endPos() int {
	if len(p.tokens) == 0 {
		return 0
	}
	last := p.tokens[len(p.tokens)-1]
	return last.Pos + len(last.Value)
}
