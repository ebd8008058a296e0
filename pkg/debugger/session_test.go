package debugger

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pbrainLang/pbrain/pkg/interpreter"
	"github.com/pbrainLang/pbrain/pkg/memory"
	"github.com/pbrainLang/pbrain/pkg/parser"
	"github.com/pbrainLang/pbrain/pkg/types"
)

func newSession(t *testing.T, source, stdin string, policy memory.Overflow, opts Options) *Session {
	t.Helper()
	prog, err := parser.Parse(source)
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	state, err := memory.New(64, memory.Bits8, policy)
	if err != nil {
		t.Fatal(err)
	}
	return NewSession(prog, stdin, state, opts)
}

func expectExit(t *testing.T, res *interpreter.Result, code types.ExitCode) {
	t.Helper()
	if res.Exit.Code != code {
		t.Fatalf("exit: got %v want %v", res.Exit, code)
	}
}

func TestBreakpointPausesAndResumes(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, "+++.+++", "", memory.Wrap, Options{Breakpoints: []int{3}})

	if s.Status() != NotStarted || s.Result() != nil {
		t.Fatalf("fresh session: %s", s.Status())
	}

	res := s.Advance(ctx)
	expectExit(t, res, types.BreakpointReached)
	if s.Status() != Paused {
		t.Errorf("status: %s", s.Status())
	}
	if res.State.Current() != 3 || res.TotalOperations != 3 || res.Stdout != "" {
		t.Errorf("paused snapshot: cell %d ops %d stdout %q", res.State.Current(), res.TotalOperations, res.Stdout)
	}
	if res.Exit.Halted.Offset != 3 || s.CurrentOffset() != 3 {
		t.Errorf("paused at offset %d, current %d", res.Exit.Halted.Offset, s.CurrentOffset())
	}

	res = s.Advance(ctx)
	expectExit(t, res, types.Success)
	if s.Status() != Completed {
		t.Errorf("status: %s", s.Status())
	}
	if res.Stdout != "\x03" || res.State.Current() != 6 || res.TotalOperations != 7 {
		t.Errorf("final: stdout %q cell %d ops %d", res.Stdout, res.State.Current(), res.TotalOperations)
	}
	if s.CurrentOffset() != -1 {
		t.Errorf("finished session offset: %d", s.CurrentOffset())
	}

	if again := s.Advance(ctx); again != res {
		t.Error("advancing a completed session must return the final result")
	}
}

func TestBreakpointAtStart(t *testing.T) {
	s := newSession(t, "+", "", memory.Wrap, Options{Breakpoints: []int{0}})
	res := s.Advance(context.Background())
	expectExit(t, res, types.BreakpointReached)
	if res.TotalOperations != 0 {
		t.Errorf("nothing should run before the first breakpoint, ran %d", res.TotalOperations)
	}
}

func TestBreakpointOnCommentIsIgnored(t *testing.T) {
	s := newSession(t, "+ +", "", memory.Wrap, Options{Breakpoints: []int{1}})
	res := s.Advance(context.Background())
	expectExit(t, res, types.Success)
	if res.State.Current() != 2 {
		t.Errorf("cell: %d", res.State.Current())
	}
}

func TestBreakpointInsideLoop(t *testing.T) {
	s := newSession(t, "+++[-]", "", memory.Wrap, Options{Breakpoints: []int{4}})

	var cells []uint16
	var codes []types.ExitCode
	for res := range s.Steps(context.Background()) {
		cells = append(cells, res.State.Current())
		codes = append(codes, res.Exit.Code)
	}

	wantCodes := []types.ExitCode{types.BreakpointReached, types.BreakpointReached, types.BreakpointReached, types.Success}
	if !reflect.DeepEqual(codes, wantCodes) {
		t.Errorf("codes: got %v want %v", codes, wantCodes)
	}
	if !reflect.DeepEqual(cells, []uint16{3, 2, 1, 0}) {
		t.Errorf("cells: %v", cells)
	}
}

func TestStepsStopsWhenConsumerBreaks(t *testing.T) {
	s := newSession(t, "+++[-]", "", memory.Wrap, Options{Breakpoints: []int{4}})
	n := 0
	for range s.Steps(context.Background()) {
		n++
		break
	}
	if n != 1 || s.Status() != Paused {
		t.Errorf("got %d results, status %s", n, s.Status())
	}
}

func TestStep(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, "+>+", "", memory.Wrap, Options{})

	res := s.Step(ctx)
	expectExit(t, res, types.StepCompleted)
	if res.TotalOperations != 1 || s.CurrentOffset() != 1 {
		t.Errorf("after one step: ops %d offset %d", res.TotalOperations, s.CurrentOffset())
	}
	if s.Status() != Paused {
		t.Errorf("status: %s", s.Status())
	}

	expectExit(t, s.Step(ctx), types.StepCompleted)
	res = s.Step(ctx)
	expectExit(t, res, types.Success)
	if s.Status() != Completed {
		t.Errorf("status: %s", s.Status())
	}
	if res.State.At(0) != 1 || res.State.At(1) != 1 || res.State.Pointer() != 1 {
		t.Errorf("state: %s", res.State.Dump())
	}
}

func TestStepOntoBreakpoint(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, "++", "", memory.Wrap, Options{Breakpoints: []int{1}})

	expectExit(t, s.Step(ctx), types.BreakpointReached)
	res := s.Step(ctx)
	expectExit(t, res, types.Success)
	if res.State.Current() != 2 {
		t.Errorf("cell: %d", res.State.Current())
	}
}

func TestFaultEndsSession(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, "+--+", "", memory.NoWrap, Options{})

	res := s.Advance(ctx)
	expectExit(t, res, types.NegativeValue)
	if s.Status() != Faulted {
		t.Errorf("status: %s", s.Status())
	}
	if res.Exit.Halted.Offset != 2 || res.TotalOperations != 2 {
		t.Errorf("fault at %d after %d ops", res.Exit.Halted.Offset, res.TotalOperations)
	}
	if s.Step(ctx) != res {
		t.Error("stepping a faulted session must return the fault again")
	}
}

func TestCancelledSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := Options{}
	opts.CheckInterval = 1
	s := newSession(t, "+[]", "", memory.Wrap, opts)
	expectExit(t, s.Advance(ctx), types.Cancelled)
	if s.Status() != Faulted {
		t.Errorf("status: %s", s.Status())
	}
}

func TestCallStackWhilePaused(t *testing.T) {
	s := newSession(t, "(++):", "", memory.Wrap, Options{Breakpoints: []int{2}})
	expectExit(t, s.Advance(context.Background()), types.BreakpointReached)

	stack := s.CallStack()
	if len(stack) != 2 {
		t.Fatalf("frames: %+v", stack)
	}
	if stack[1] != (interpreter.Frame{Start: 1, End: 3, Current: 2}) {
		t.Errorf("inner frame: %+v", stack[1])
	}
	if stack[1].Relative() != 1 {
		t.Errorf("relative: %d", stack[1].Relative())
	}

	got := s.StackTrace().Expand()
	if strings.Join(got, "|") != "(++):|++" {
		t.Errorf("trace: %q", got)
	}
}

func TestFunctions(t *testing.T) {
	s := newSession(t, "+(>)-(<)", "", memory.Wrap, Options{})
	expectExit(t, s.Advance(context.Background()), types.Success)

	want := map[uint16]string{1: ">", 0: "<"}
	if got := s.Functions(); !reflect.DeepEqual(got, want) {
		t.Errorf("functions: got %v want %v", got, want)
	}
}

func TestSnapshotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, "+.+.", "", memory.Wrap, Options{Breakpoints: []int{2}})

	first := s.Advance(ctx)
	second := s.Advance(ctx)
	if first.State.Current() != 1 || second.State.Current() != 2 {
		t.Errorf("cells: %d then %d", first.State.Current(), second.State.Current())
	}
	if first.Stdout != "\x01" || second.Stdout != "\x01\x02" {
		t.Errorf("stdout: %q then %q", first.Stdout, second.Stdout)
	}
}

// The debugger and the release engine must agree on every observable.
func TestMatchesReleaseEngine(t *testing.T) {
	hello, err := os.ReadFile(filepath.Join("..", "..", "testdata", "scripts", "hello.b"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		source string
		stdin  string
		policy memory.Overflow
		opts   interpreter.Options
	}{
		{"hello", string(hello), "", memory.Wrap, interpreter.Options{}},
		{"echo", "(>,.<):::", "xyz", memory.Wrap, interpreter.Options{}},
		{"max value", strings.Repeat("+", 300), "", memory.NoWrap, interpreter.Options{}},
		{"negative", "+--", "", memory.NoWrap, interpreter.Options{}},
		{"upper bound", strings.Repeat(">", 70), "", memory.Wrap, interpreter.Options{}},
		{"lower bound", ">><<<", "", memory.Wrap, interpreter.Options{}},
		{"stdin", ",,", "q", memory.Wrap, interpreter.Options{}},
		{"stdout", "+[.]", "", memory.Wrap, interpreter.Options{StdoutLimit: 5}},
		{"duplicate", "(+)(-)", "", memory.Wrap, interpreter.Options{}},
		{"undefined", "(+:):", "", memory.Wrap, interpreter.Options{}},
		{"recursion", "(:):", "", memory.Wrap, interpreter.Options{}},
		{"mutual recursion", "(+:)+(-:)-:", "", memory.Wrap, interpreter.Options{}},
		{"threshold in run", "++++++++++", "", memory.Wrap, interpreter.Options{Threshold: 4}},
		{"threshold in loop", "+[]", "", memory.Wrap, interpreter.Options{Threshold: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := memory.New(64, memory.Bits8, tt.policy)
			if err != nil {
				t.Fatal(err)
			}
			exe, err := parser.CompileRelease(tt.source)
			if err != nil {
				t.Fatal(err)
			}
			prog, err := parser.Parse(tt.source)
			if err != nil {
				t.Fatal(err)
			}

			release := interpreter.Run(context.Background(), exe, tt.stdin, state, tt.opts)
			debug := NewSession(prog, tt.stdin, state, Options{Options: tt.opts}).Advance(context.Background())

			if release.Exit.Code != debug.Exit.Code {
				t.Fatalf("exit: release %v debug %v", release.Exit, debug.Exit)
			}
			if release.Stdout != debug.Stdout {
				t.Errorf("stdout: release %q debug %q", release.Stdout, debug.Stdout)
			}
			if release.TotalOperations != debug.TotalOperations {
				t.Errorf("operations: release %d debug %d", release.TotalOperations, debug.TotalOperations)
			}
			if release.State.Dump() != debug.State.Dump() {
				t.Errorf("state: release %s debug %s", release.State.Dump(), debug.State.Dump())
			}
			if (release.Exit.Halted == nil) != (debug.Exit.Halted == nil) {
				t.Fatalf("halt info: release %v debug %v", release.Exit, debug.Exit)
			}
			if release.Exit.Halted == nil {
				return
			}
			r, d := release.Exit.Halted, debug.Exit.Halted
			if r.Offset != d.Offset || r.OperatorIndex != d.OperatorIndex || r.Operator != d.Operator {
				t.Errorf("halt: release %+v debug %+v", *r, *d)
			}
			if r.StackTrace.String() != d.StackTrace.String() {
				t.Errorf("trace:\nrelease:\n%s\ndebug:\n%s", r.StackTrace, d.StackTrace)
			}
		})
	}
}

func TestEditBreakpoints(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, "+ + +", "", memory.Wrap, Options{Breakpoints: []int{2}})

	if s.SetBreakpoint(1) {
		t.Error("offset 1 is a comment")
	}
	if !s.SetBreakpoint(4) {
		t.Error("offset 4 is an operator")
	}
	if got := s.Breakpoints(); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("breakpoints: %v", got)
	}

	s.ClearBreakpoint(2)
	res := s.Advance(ctx)
	expectExit(t, res, types.BreakpointReached)
	if res.Exit.Halted.Offset != 4 || res.State.Current() != 2 {
		t.Errorf("paused at %d with cell %d", res.Exit.Halted.Offset, res.State.Current())
	}
}
