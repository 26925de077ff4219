package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/tomaskala/wisp"
)

// Exit codes per spec.md §6, matching original_source/src/main.c's table.
const (
	exitUsage    = 64
	exitData     = 65
	exitSoftware = 70
	exitIO       = 74
)

// maxLineLength mirrors original_source/src/main.c's run_repl, which reads
// each line into a fixed `char line[1024]` via fgets: input past the cap is
// silently truncated to this buffer rather than rejected, and whatever
// didn't fit stays in stdin for the next read.
const maxLineLength = 1024

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	switch len(args) {
	case 0:
		repl()
		return 0
	case 1:
		return runFile(args[0])
	default:
		fmt.Fprintln(os.Stderr, "Usage: wisp [path]")
		return exitUsage
	}
}

func repl() {
	interp := wisp.NewInterpreter(false, false)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")

		line, err := readLine(reader)
		if line == "" && err != nil {
			fmt.Println()
			return
		}

		report(interp.Interpret(line))
	}
}

// readLine reads up to maxLineLength-1 bytes or a trailing newline,
// whichever comes first, leaving any excess unread for the next call
// (fgets-style truncation, see maxLineLength).
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte

	for len(buf) < maxLineLength-1 {
		b, err := r.ReadByte()
		if err != nil {
			if len(buf) > 0 {
				return string(buf), nil
			}
			return "", err
		}

		buf = append(buf, b)
		if b == '\n' {
			break
		}
	}

	return string(buf), nil
}

func runFile(path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open %s\n", path)
		return exitIO
	}

	interp := wisp.NewInterpreter(false, false)
	outcome := interp.Interpret(string(source))

	switch outcome.Kind {
	case wisp.OutcomeOK:
		fmt.Println(outcome.Result.String())
		return 0
	case wisp.OutcomeParseError:
		report(outcome)
		return exitData
	case wisp.OutcomeRuntimeError:
		report(outcome)
		return exitSoftware
	}

	return 0
}

func report(outcome wisp.Outcome) {
	switch outcome.Kind {
	case wisp.OutcomeOK:
		fmt.Println(outcome.Result.String())
	case wisp.OutcomeParseError:
		for _, e := range outcome.ParseErrors {
			fmt.Fprintln(os.Stderr, e.Error())
		}
	case wisp.OutcomeRuntimeError:
		fmt.Fprintln(os.Stderr, outcome.RuntimeErr.Error())
	}
}
