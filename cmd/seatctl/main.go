// Command seatctl inspects level files and recorded seat history.
//
//	seatctl check <level>                 parse a level and report problems
//	seatctl format                        print the seat line layout
//	seatctl sort [-o out] <level>         rewrite a level with seats in save order
//	seatctl history [--session N] [--json] <db> <seatId>
//	seatctl dumps <dir>                   list SQLite dumps in dir
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const usage = `usage: seatctl <command> [flags] [args]

commands:
  check <level>                  parse a level and report problems
  format                         print the seat line layout
  sort [-o out] <level>          rewrite a level with seats in save order
  history [--session N] [--json] <db> <seatId>
                                 print the recorded turns of one seat
  dumps <dir>                    list SQLite dumps in dir
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "check":
		err = checkCmd(args[1:], stdout, stderr)
	case "format":
		err = formatCmd(stdout)
	case "sort":
		err = sortCmd(args[1:], stdout, stderr)
	case "history":
		err = historyCmd(args[1:], stdout, stderr)
	case "dumps":
		err = dumpsCmd(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "seatctl: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "seatctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}
