package formula

import (
	"fmt"
	"math"
	"strings"
)

// Delegate is a caller-supplied function. it receives evaluated
// argument values (ranges arrive as Range) and returns a single value;
// failures come back as *CellError values.
type Delegate func(args ...Value) Value

// Funcs is the built-in function catalog plus any registered delegates
type Funcs struct {
	delegates map[string]Delegate
}

// NewFuncs creates the default function catalog
func NewFuncs() *Funcs {
	return &Funcs{
		delegates: make(map[string]Delegate),
	}
}

// Register adds or replaces a delegate function. names are
// case-insensitive and shadow built-ins of the same name.
func (f *Funcs) Register(name string, fn Delegate) {
	f.delegates[strings.ToUpper(name)] = fn
}

// hasDelegate reports whether a delegate is registered under the name
func (f *Funcs) hasDelegate(name string) bool {
	_, ok := f.delegates[strings.ToUpper(name)]
	return ok
}

// Has reports whether a function name is callable
func (f *Funcs) Has(name string) bool {
	upper := strings.ToUpper(name)
	if _, ok := f.delegates[upper]; ok {
		return true
	}
	return builtinNames[upper]
}

var builtinNames = map[string]bool{
	"SUM": true, "AVERAGE": true, "COUNT": true, "COUNTA": true,
	"MIN": true, "MAX": true, "MEDIAN": true, "IF": true, "AND": true,
	"OR": true, "NOT": true, "CONCATENATE": true, "LEFT": true,
	"RIGHT": true, "MID": true, "TEXTJOIN": true, "LEN": true,
	"UPPER": true, "LOWER": true, "TRIM": true, "ABS": true,
	"ROUND": true, "FLOOR": true, "CEILING": true, "SQRT": true,
	"POWER": true, "MOD": true, "PI": true,
}

// checkForError returns the error if value is a *CellError, nil otherwise
func checkForError(value Value) *CellError {
	if err, ok := value.(*CellError); ok {
		return err
	}
	return nil
}

// Call invokes a function by name with already evaluated arguments
func (f *Funcs) Call(name string, args ...Value) Value {
	upper := strings.ToUpper(name)
	if fn, ok := f.delegates[upper]; ok {
		return fn(args...)
	}

	switch upper {
	case "SUM":
		return f.sum(args...)
	case "AVERAGE":
		return f.average(args...)
	case "COUNT":
		return f.count(args...)
	case "COUNTA":
		return f.counta(args...)
	case "MIN":
		return f.minOf(args...)
	case "MAX":
		return f.maxOf(args...)
	case "MEDIAN":
		return f.median(args...)
	case "IF":
		// the evaluator selects IF branches lazily before calling here;
		// direct calls get the eager equivalent
		return f.ifEager(args...)
	case "AND":
		return f.and(args...)
	case "OR":
		return f.or(args...)
	case "NOT":
		return f.not(args...)
	case "CONCATENATE":
		return f.concatenate(args...)
	case "LEFT":
		return f.left(args...)
	case "RIGHT":
		return f.right(args...)
	case "MID":
		return f.mid(args...)
	case "TEXTJOIN":
		return f.textjoin(args...)
	case "LEN":
		return f.lenOf(args...)
	case "UPPER":
		return f.upper(args...)
	case "LOWER":
		return f.lower(args...)
	case "TRIM":
		return f.trim(args...)
	case "ABS":
		return f.abs(args...)
	case "ROUND":
		return f.round(args...)
	case "FLOOR":
		return f.floor(args...)
	case "CEILING":
		return f.ceiling(args...)
	case "SQRT":
		return f.sqrt(args...)
	case "POWER":
		return f.power(args...)
	case "MOD":
		return f.mod(args...)
	case "PI":
		return f.pi(args...)
	default:
		return NewCellError(ErrorCodeName, fmt.Sprintf("unknown function: %s", name))
	}
}

// evalIf implements IF with lazy branches: only the selected branch is
// evaluated, so an error in the rejected branch never surfaces
func evalIf(ctx *EvalContext, args []Node) Value {
	if len(args) < 2 || len(args) > 3 {
		return NewCellError(ErrorCodeNA, "IF requires 2 or 3 arguments")
	}

	cond := args[0].Eval(ctx)
	if err := checkForError(cond); err != nil {
		return err
	}

	truthy, ok := conditionTruthy(cond)
	if !ok {
		return NewCellError(ErrorCodeValue, "IF condition is not a boolean")
	}

	if truthy {
		return args[1].Eval(ctx)
	}
	if len(args) == 3 {
		return args[2].Eval(ctx)
	}
	return false
}

// forEachNumber walks the numeric content of an argument list. direct
// scalar arguments must be numeric; range cells that are not numeric
// are skipped. errors stop the walk and come back as the result.
func forEachNumber(args []Value, visit func(num float64)) *CellError {
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}

		if r, ok := arg.(Range); ok {
			for value := range r.Values() {
				if err := checkForError(value); err != nil {
					return err
				}
				if num, ok := toNumber(value); ok && value != nil && !math.IsNaN(num) {
					visit(num)
				}
			}
		} else {
			if arg == nil {
				continue
			}
			num, ok := toNumber(arg)
			if !ok || math.IsNaN(num) {
				return NewCellError(ErrorCodeValue, "argument is not numeric")
			}
			visit(num)
		}
	}
	return nil
}

func (f *Funcs) sum(args ...Value) Value {
	sum := 0.0
	if err := forEachNumber(args, func(num float64) {
		sum += num
	}); err != nil {
		return err
	}
	return sum
}

func (f *Funcs) average(args ...Value) Value {
	sum := 0.0
	count := 0
	if err := forEachNumber(args, func(num float64) {
		sum += num
		count++
	}); err != nil {
		return err
	}

	if count == 0 {
		return NewCellError(ErrorCodeDiv0, "AVERAGE has no numeric values")
	}
	return sum / float64(count)
}

func (f *Funcs) count(args ...Value) Value {
	count := 0

	// COUNT only counts numeric values: booleans, text, blanks and
	// errors inside ranges are skipped rather than propagated
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}

		if r, ok := arg.(Range); ok {
			for value := range r.Values() {
				if _, isNum := value.(float64); isNum {
					count++
				}
			}
		} else if _, isNum := arg.(float64); isNum {
			count++
		}
	}

	return float64(count)
}

func (f *Funcs) counta(args ...Value) Value {
	count := 0

	// COUNTA counts all non-blank values regardless of type. errors in
	// ranges are counted, not propagated.
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}

		if r, ok := arg.(Range); ok {
			for value := range r.Values() {
				if value != nil {
					count++
				}
			}
		} else if arg != nil {
			count++
		}
	}

	return float64(count)
}

func (f *Funcs) maxOf(args ...Value) Value {
	best := math.Inf(-1)
	hasValues := false
	if err := forEachNumber(args, func(num float64) {
		if num > best {
			best = num
		}
		hasValues = true
	}); err != nil {
		return err
	}

	if hasValues {
		return best
	}
	return 0.0
}

func (f *Funcs) minOf(args ...Value) Value {
	best := math.Inf(1)
	hasValues := false
	if err := forEachNumber(args, func(num float64) {
		if num < best {
			best = num
		}
		hasValues = true
	}); err != nil {
		return err
	}

	if hasValues {
		return best
	}
	return 0.0
}

func (f *Funcs) median(args ...Value) Value {
	values := []float64{}
	if err := forEachNumber(args, func(num float64) {
		values = append(values, num)
	}); err != nil {
		return err
	}

	if len(values) == 0 {
		return NewCellError(ErrorCodeNum, "MEDIAN has no numeric values")
	}

	// insertion sort. argument lists are short.
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			if values[j] < values[i] {
				values[i], values[j] = values[j], values[i]
			}
		}
	}

	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}

func (f *Funcs) ifEager(args ...Value) Value {
	if len(args) < 2 || len(args) > 3 {
		return NewCellError(ErrorCodeNA, "IF requires 2 or 3 arguments")
	}
	if err := checkForError(args[0]); err != nil {
		return err
	}
	truthy, ok := conditionTruthy(args[0])
	if !ok {
		return NewCellError(ErrorCodeValue, "IF condition is not a boolean")
	}
	if truthy {
		return args[1]
	}
	if len(args) == 3 {
		return args[2]
	}
	return false
}

// conditionTruthy coerces an IF condition. empty text counts as false,
// unlike the general boolean coercion.
func conditionTruthy(v Value) (bool, bool) {
	if text, ok := v.(string); ok && strings.TrimSpace(text) == "" {
		return false, true
	}
	return isTruthy(v)
}

func (f *Funcs) and(args ...Value) Value {
	if len(args) == 0 {
		return NewCellError(ErrorCodeNA, "AND requires at least 1 argument")
	}
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
		truthy, ok := isTruthy(arg)
		if !ok {
			return NewCellError(ErrorCodeValue, "AND argument is not a boolean")
		}
		if !truthy {
			return false
		}
	}
	return true
}

func (f *Funcs) or(args ...Value) Value {
	if len(args) == 0 {
		return NewCellError(ErrorCodeNA, "OR requires at least 1 argument")
	}
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
		truthy, ok := isTruthy(arg)
		if !ok {
			return NewCellError(ErrorCodeValue, "OR argument is not a boolean")
		}
		if truthy {
			return true
		}
	}
	return false
}

func (f *Funcs) not(args ...Value) Value {
	if len(args) != 1 {
		return NewCellError(ErrorCodeNA, "NOT requires exactly 1 argument")
	}
	if err := checkForError(args[0]); err != nil {
		return err
	}
	truthy, ok := isTruthy(args[0])
	if !ok {
		return NewCellError(ErrorCodeValue, "NOT argument is not a boolean")
	}
	return !truthy
}

func (f *Funcs) concatenate(args ...Value) Value {
	var result strings.Builder
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
		if _, isRange := arg.(Range); isRange {
			return NewCellError(ErrorCodeValue, "CONCATENATE does not accept ranges")
		}
		result.WriteString(toText(arg))
	}
	return result.String()
}

func (f *Funcs) left(args ...Value) Value {
	if len(args) < 1 || len(args) > 2 {
		return NewCellError(ErrorCodeNA, "LEFT requires 1 or 2 arguments")
	}
	text, n, errVal := textAndCount(args, "LEFT")
	if errVal != nil {
		return errVal
	}
	runes := []rune(text)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n])
}

func (f *Funcs) right(args ...Value) Value {
	if len(args) < 1 || len(args) > 2 {
		return NewCellError(ErrorCodeNA, "RIGHT requires 1 or 2 arguments")
	}
	text, n, errVal := textAndCount(args, "RIGHT")
	if errVal != nil {
		return errVal
	}
	runes := []rune(text)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[len(runes)-n:])
}

// textAndCount extracts the (text, count) argument pair shared by LEFT
// and RIGHT. count defaults to 1 and must be a non-negative whole
// number.
func textAndCount(args []Value, name string) (string, int, Value) {
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return "", 0, err
		}
	}

	text := toText(args[0])
	n := 1
	if len(args) == 2 {
		num, ok := toNumber(args[1])
		if !ok || num != math.Trunc(num) {
			return "", 0, NewCellError(ErrorCodeValue, name+" count must be a whole number")
		}
		if num < 0 {
			return "", 0, NewCellError(ErrorCodeValue, name+" count must not be negative")
		}
		n = int(num)
	}
	return text, n, nil
}

func (f *Funcs) mid(args ...Value) Value {
	if len(args) != 3 {
		return NewCellError(ErrorCodeNA, "MID requires exactly 3 arguments")
	}
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
	}

	text := toText(args[0])
	start, ok := toNumber(args[1])
	if !ok || start != math.Trunc(start) || start < 1 {
		return NewCellError(ErrorCodeValue, "MID start must be a positive whole number")
	}
	count, ok := toNumber(args[2])
	if !ok || count != math.Trunc(count) || count < 0 {
		return NewCellError(ErrorCodeValue, "MID count must be a non-negative whole number")
	}

	runes := []rune(text)
	from := int(start) - 1 // 1-based in formulas
	if from >= len(runes) {
		return ""
	}
	to := from + int(count)
	if to > len(runes) {
		to = len(runes)
	}
	return string(runes[from:to])
}

func (f *Funcs) textjoin(args ...Value) Value {
	if len(args) < 3 {
		return NewCellError(ErrorCodeNA, "TEXTJOIN requires at least 3 arguments")
	}
	if err := checkForError(args[0]); err != nil {
		return err
	}
	if err := checkForError(args[1]); err != nil {
		return err
	}

	delim := toText(args[0])
	ignoreEmpty, ok := isTruthy(args[1])
	if !ok {
		return NewCellError(ErrorCodeValue, "TEXTJOIN ignore_empty is not a boolean")
	}

	parts := []string{}
	appendValue := func(value Value) *CellError {
		if err := checkForError(value); err != nil {
			return err
		}
		text := toText(value)
		if ignoreEmpty && text == "" {
			return nil
		}
		parts = append(parts, text)
		return nil
	}

	for _, arg := range args[2:] {
		if err := checkForError(arg); err != nil {
			return err
		}
		if r, isRange := arg.(Range); isRange {
			for value := range r.Values() {
				if err := appendValue(value); err != nil {
					return err
				}
			}
		} else {
			if err := appendValue(arg); err != nil {
				return err
			}
		}
	}

	return strings.Join(parts, delim)
}

func (f *Funcs) lenOf(args ...Value) Value {
	if len(args) != 1 {
		return NewCellError(ErrorCodeNA, "LEN requires exactly 1 argument")
	}
	if err := checkForError(args[0]); err != nil {
		return err
	}
	return float64(len([]rune(toText(args[0]))))
}

func (f *Funcs) upper(args ...Value) Value {
	if len(args) != 1 {
		return NewCellError(ErrorCodeNA, "UPPER requires exactly 1 argument")
	}
	if err := checkForError(args[0]); err != nil {
		return err
	}
	return strings.ToUpper(toText(args[0]))
}

func (f *Funcs) lower(args ...Value) Value {
	if len(args) != 1 {
		return NewCellError(ErrorCodeNA, "LOWER requires exactly 1 argument")
	}
	if err := checkForError(args[0]); err != nil {
		return err
	}
	return strings.ToLower(toText(args[0]))
}

func (f *Funcs) trim(args ...Value) Value {
	if len(args) != 1 {
		return NewCellError(ErrorCodeNA, "TRIM requires exactly 1 argument")
	}
	if err := checkForError(args[0]); err != nil {
		return err
	}
	return strings.TrimSpace(toText(args[0]))
}

func (f *Funcs) abs(args ...Value) Value {
	num, errVal := singleNumber(args, "ABS")
	if errVal != nil {
		return errVal
	}
	return math.Abs(num)
}

func (f *Funcs) round(args ...Value) Value {
	if len(args) < 1 || len(args) > 2 {
		return NewCellError(ErrorCodeNA, "ROUND requires 1 or 2 arguments")
	}
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
	}

	num, ok := toNumber(args[0])
	if !ok {
		return NewCellError(ErrorCodeValue, "ROUND requires a numeric first argument")
	}

	places := 0.0
	if len(args) == 2 {
		places, ok = toNumber(args[1])
		if !ok {
			return NewCellError(ErrorCodeValue, "ROUND requires a numeric second argument")
		}
	}

	multiplier := math.Pow(10, places)
	return math.Round(num*multiplier) / multiplier
}

func (f *Funcs) floor(args ...Value) Value {
	num, errVal := singleNumber(args, "FLOOR")
	if errVal != nil {
		return errVal
	}
	return math.Floor(num)
}

func (f *Funcs) ceiling(args ...Value) Value {
	num, errVal := singleNumber(args, "CEILING")
	if errVal != nil {
		return errVal
	}
	return math.Ceil(num)
}

func (f *Funcs) sqrt(args ...Value) Value {
	num, errVal := singleNumber(args, "SQRT")
	if errVal != nil {
		return errVal
	}
	if num < 0 {
		return NewCellError(ErrorCodeNum, "SQRT requires a non-negative argument")
	}
	return math.Sqrt(num)
}

func (f *Funcs) power(args ...Value) Value {
	if len(args) != 2 {
		return NewCellError(ErrorCodeNA, "POWER requires exactly 2 arguments")
	}
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
	}
	base, ok1 := toNumber(args[0])
	exp, ok2 := toNumber(args[1])
	if !ok1 || !ok2 {
		return NewCellError(ErrorCodeValue, "POWER requires numeric arguments")
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return NewCellError(ErrorCodeNum, "POWER result out of range")
	}
	return result
}

func (f *Funcs) mod(args ...Value) Value {
	if len(args) != 2 {
		return NewCellError(ErrorCodeNA, "MOD requires exactly 2 arguments")
	}
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
	}
	dividend, ok1 := toNumber(args[0])
	divisor, ok2 := toNumber(args[1])
	if !ok1 || !ok2 {
		return NewCellError(ErrorCodeValue, "MOD requires numeric arguments")
	}
	if divisor == 0 {
		return NewCellError(ErrorCodeDiv0, "division by zero")
	}
	return math.Mod(dividend, divisor)
}

func (f *Funcs) pi(args ...Value) Value {
	if len(args) != 0 {
		return NewCellError(ErrorCodeNA, "PI takes no arguments")
	}
	return math.Pi
}

// singleNumber extracts the numeric value of an exactly-one-argument
// call
func singleNumber(args []Value, name string) (float64, Value) {
	if len(args) != 1 {
		return 0, NewCellError(ErrorCodeNA, name+" requires exactly 1 argument")
	}
	if err := checkForError(args[0]); err != nil {
		return 0, err
	}
	num, ok := toNumber(args[0])
	if !ok {
		return 0, NewCellError(ErrorCodeValue, name+" requires a numeric argument")
	}
	return num, nil
}
