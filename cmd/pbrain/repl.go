package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/pbrainLang/pbrain/pkg/debugger"
	"github.com/pbrainLang/pbrain/pkg/interpreter"
	"github.com/pbrainLang/pbrain/pkg/types"
)

// debugREPL drives a session from line commands.
type debugREPL struct {
	session *debugger.Session
	out     io.Writer
	printed int // stdout characters already echoed
}

// repl reads commands until quit or end of input and returns the last
// snapshot, nil if the script never ran.
func repl(ctx context.Context, s *debugger.Session, in io.Reader, out io.Writer) *interpreter.Result {
	r := &debugREPL{session: s, out: out}

	fmt.Fprintln(out, "PBrain debugger")
	fmt.Fprintln(out, "Type 'help' for commands, 'quit' to exit")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "pb[%s]> ", r.where())
		if !scanner.Scan() {
			break
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit", "q":
			return s.Result()
		case "help", "h":
			printHelp(out)
		case "continue", "c", "run", "r":
			if r.terminal() {
				continue
			}
			r.show(s.Advance(ctx))
		case "step", "s":
			if r.terminal() {
				continue
			}
			n := 1
			if len(fields) > 1 {
				if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
					n = v
				}
			}
			var res *interpreter.Result
			for range n {
				res = s.Step(ctx)
				if res.Exit.Code != types.StepCompleted {
					break
				}
			}
			r.show(res)
		case "break", "b":
			r.editBreakpoint(fields, true)
		case "clear":
			r.editBreakpoint(fields, false)
		case "breakpoints", "bp":
			fmt.Fprintln(out, "Breakpoints:", s.Breakpoints())
		case "stack", "bt":
			fmt.Fprint(out, s.StackTrace())
		case "funcs":
			r.printFunctions()
		case "mem":
			fmt.Fprintln(out, s.State().Dump())
		case "status":
			fmt.Fprintln(out, "Status:", s.Status())
		default:
			fmt.Fprintf(out, "Unknown command %q (try 'help')\n", fields[0])
		}
	}
	return s.Result()
}

// where names the position shown in the prompt.
func (r *debugREPL) where() string {
	if off := r.session.CurrentOffset(); off >= 0 && !r.session.Status().IsTerminal() {
		return strconv.Itoa(off)
	}
	return r.session.Status().String()
}

func (r *debugREPL) terminal() bool {
	if r.session.Status().IsTerminal() {
		fmt.Fprintf(r.out, "Session %s\n", r.session.Status())
		return true
	}
	return false
}

func (r *debugREPL) show(res *interpreter.Result) {
	if fresh := []rune(res.Stdout); len(fresh) > r.printed {
		fmt.Fprintf(r.out, "%s\n", string(fresh[r.printed:]))
		r.printed = len(fresh)
	}

	switch code := res.Exit.Code; {
	case code == types.Success:
		fmt.Fprintf(r.out, "Completed: %d operations in %s\n", res.TotalOperations, elapsed(res.Elapsed))
	case code.IsFault():
		printFault(r.out, res)
	case res.Exit.Halted != nil:
		h := res.Exit.Halted
		fmt.Fprintf(r.out, "%s at offset %d: %s  %s\n", code, h.Offset, h.Operator, res.State.Dump())
	}
}

func (r *debugREPL) editBreakpoint(fields []string, set bool) {
	if len(fields) < 2 {
		fmt.Fprintln(r.out, "Usage:", fields[0], "OFFSET")
		return
	}
	off, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Fprintf(r.out, "Bad offset %q\n", fields[1])
		return
	}
	if !set {
		r.session.ClearBreakpoint(off)
		return
	}
	if !r.session.SetBreakpoint(off) {
		fmt.Fprintf(r.out, "No operator at offset %d\n", off)
	}
}

func (r *debugREPL) printFunctions() {
	funcs := r.session.Functions()
	keys := make([]int, 0, len(funcs))
	for k := range funcs {
		keys = append(keys, int(k))
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(r.out, "%5d: %s\n", k, funcs[uint16(k)])
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  continue, c     - Run to the next breakpoint or the end
  step, s [N]     - Execute N operators (default 1)
  break, b OFF    - Set a breakpoint at a source offset
  clear OFF       - Remove a breakpoint
  breakpoints, bp - List breakpoints
  stack, bt       - Show the call stack
  funcs           - Show defined functions
  mem             - Show the tape
  status          - Show the session status
  quit            - Exit

Program stdin comes from -input in debug mode.
`)
}
