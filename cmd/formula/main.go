package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/softgrid/formula"
)

const (
	appName     = "formula"
	historyFile = ".formula_history"
	prompt      = "f> "
)

var banner = fmt.Sprintf("%s REPL\nCtrl+D exits. Type :help for commands.", appName)

const helpText = `Input forms:
  A1 = 42           set a literal value
  A1 = =SUM(B1:B3)  set a formula
  A1                show the value of a cell
  =2+3*4            evaluate an expression without storing it

Commands:
  :cells   List all populated cells
  :clear   Remove every cell
  :help    Show this help
  :quit    Exit the REPL
`

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-e expr] [-s file]\n", appName)
	fmt.Fprintln(os.Stderr, "  -e expr  evaluate one expression and exit")
	fmt.Fprintln(os.Stderr, "  -s file  run a script of REPL inputs before the prompt")
}

func main() {
	opts, optind, err := getopt.Getopts(os.Args, "e:s:h")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	}

	var expr, script string
	for _, optV := range opts {
		switch optV.Option {
		case 'e':
			expr = optV.Value
		case 's':
			script = optV.Value
		case 'h':
			usage()
			os.Exit(0)
		}
	}
	if optind < len(os.Args) {
		usage()
		os.Exit(2)
	}

	sheet := formula.NewSheet()

	if script != "" {
		if code := runScript(sheet, script); code != 0 {
			os.Exit(code)
		}
	}

	if expr != "" {
		result, err := sheet.Eval(expr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(formula.DisplayString(result))
		return
	}

	os.Exit(repl(sheet))
}

func runScript(sheet *formula.Sheet, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := execSet(sheet, line); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			return 1
		}
	}
	return 0
}

func repl(sheet *formula.Sheet) int {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return 0
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		ln.AppendHistory(input)

		if strings.HasPrefix(input, ":") {
			if quit := command(sheet, input); quit {
				return 0
			}
			continue
		}

		eval(sheet, input)
	}
}

func command(sheet *formula.Sheet, input string) (quit bool) {
	switch strings.ToLower(input) {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Print(helpText)
	case ":cells":
		listCells(sheet)
	case ":clear":
		for _, addr := range sheet.Cells() {
			_ = sheet.Remove(addr.String())
		}
	default:
		fmt.Printf("unknown command %q. Type :help for commands.\n", input)
	}
	return false
}

func eval(sheet *formula.Sheet, input string) {
	// Leading '=' means an ad hoc expression, not stored in the grid.
	if strings.HasPrefix(input, "=") {
		result, err := sheet.Eval(input)
		if err != nil {
			color.Red("%v", err)
			return
		}
		printValue(result)
		return
	}

	if strings.ContainsRune(input, '=') {
		if err := execSet(sheet, input); err != nil {
			color.Red("%v", err)
		}
		return
	}

	value, err := sheet.Get(input)
	if err != nil {
		color.Red("%v", err)
		return
	}
	printValue(value)
}

// execSet handles "ADDR = value" and "ADDR = =FORMULA" inputs.
func execSet(sheet *formula.Sheet, input string) error {
	left, right, found := strings.Cut(input, "=")
	if !found {
		return fmt.Errorf("expected ADDR = value, got %q", input)
	}
	return sheet.Set(strings.TrimSpace(left), parseLiteral(strings.TrimSpace(right)))
}

// parseLiteral maps raw REPL text to a cell value. Formulas keep their
// "=" prefix, quoted text loses its quotes, numbers and booleans get
// their native types, and everything else stays a string.
func parseLiteral(raw string) any {
	if strings.HasPrefix(raw, "=") {
		return raw
	}
	if len(raw) >= 2 && strings.HasPrefix(raw, "\"") && strings.HasSuffix(raw, "\"") {
		return strings.ReplaceAll(raw[1:len(raw)-1], "\"\"", "\"")
	}
	switch strings.ToUpper(raw) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

func listCells(sheet *formula.Sheet) {
	addrs := sheet.Cells()
	if len(addrs) == 0 {
		fmt.Println("(empty)")
		return
	}
	faint := color.New(color.Faint)
	for _, addr := range addrs {
		label := addr.String()
		display := sheet.Display(label)
		if f, ok := sheet.Formula(label); ok {
			fmt.Printf("%-6s %s  %s\n", label, display, faint.Sprint(f))
		} else {
			fmt.Printf("%-6s %s\n", label, display)
		}
	}
}

func printValue(v formula.Value) {
	if formula.IsError(v) {
		color.Red("%s", formula.DisplayString(v))
		return
	}
	color.Cyan("%s", formula.DisplayString(v))
}
