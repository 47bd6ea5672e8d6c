package formula

import (
	"math"
	"strconv"
	"strings"
)

// Value represents basic formula value types.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - nil: empty/blank cells
//   - *CellError: error values (#DIV/0!, #VALUE!, etc.)
type Value = any

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions, plus #CYCLE! for circular references
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - reference outside grid bounds
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized function name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large or small to be represented
	ErrorCodeNA    ErrorCode = 7 // #N/A - not enough arguments for function
	ErrorCodeCycle ErrorCode = 8 // #CYCLE! - circular reference
	ErrorCodeOther ErrorCode = 9 // #ERROR! - all other errors
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeCycle: "#CYCLE!",
	ErrorCodeOther: "#ERROR!",
}

// CellError is an error value that flows through evaluation like any
// other value. It is never returned through Go error channels.
type CellError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *CellError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

// Display returns the cell-visible form, like "#DIV/0!"
func (e *CellError) Display() string {
	return ErrorMapper[e.ErrorCode]
}

func NewCellError(code ErrorCode, message string) *CellError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &CellError{
		ErrorCode: code,
		Message:   message,
	}
}

// IsError reports whether v carries a *CellError
func IsError(v Value) bool {
	_, ok := v.(*CellError)
	return ok
}

// toNumber attempts to convert a value to float64. booleans convert as
// TRUE=1, FALSE=0. strings convert only when the whole string parses as
// a number. blanks convert to 0.
func toNumber(v Value) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		num, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// toText converts a value to its text form for concatenation and the
// text functions
func toText(v Value) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return formatNumber(val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case *CellError:
		return val.Display()
	case nil:
		return ""
	default:
		return ""
	}
}

// formatNumber renders a float without unnecessary decimals
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// isTruthy converts a value to a condition result. numbers are true when
// nonzero, strings "TRUE"/"FALSE" (any case) convert, anything else is
// not coercible.
func isTruthy(v Value) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(val)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
		return false, false
	case nil:
		return false, true
	default:
		return false, false
	}
}

// valueKind orders value types for cross-type comparison:
// numbers sort before text, text before booleans
func valueKind(v Value) int {
	switch v.(type) {
	case float64, nil:
		return 0
	case string:
		return 1
	case bool:
		return 2
	default:
		return 3
	}
}

// compareValues compares two values under a total order. same-type
// pairs compare naturally (text case-insensitively, FALSE before TRUE);
// mixed-type pairs order by kind: Number < Text < Boolean. blanks
// compare as the zero of the other operand's type. returns -1, 0, or 1.
func compareValues(left, right Value) int {
	if left == nil && right == nil {
		return 0
	}
	// a blank takes the neutral value of the other side's type
	if left == nil {
		left = zeroOf(right)
	}
	if right == nil {
		right = zeroOf(left)
	}

	leftKind := valueKind(left)
	rightKind := valueKind(right)
	if leftKind != rightKind {
		if leftKind < rightKind {
			return -1
		}
		return 1
	}

	switch l := left.(type) {
	case float64:
		r := right.(float64)
		if l < r {
			return -1
		} else if l > r {
			return 1
		}
		return 0
	case string:
		r := right.(string)
		lf := strings.ToUpper(l)
		rf := strings.ToUpper(r)
		if lf < rf {
			return -1
		} else if lf > rf {
			return 1
		}
		return 0
	case bool:
		r := right.(bool)
		if l == r {
			return 0
		} else if !l && r {
			return -1
		}
		return 1
	}
	return 0
}

// zeroOf returns the neutral value matching v's type
func zeroOf(v Value) Value {
	switch v.(type) {
	case float64:
		return float64(0)
	case string:
		return ""
	case bool:
		return false
	default:
		return float64(0)
	}
}

// DisplayString renders a value the way a cell would show it
func DisplayString(v Value) string {
	if err, ok := v.(*CellError); ok {
		return err.Display()
	}
	return toText(v)
}
