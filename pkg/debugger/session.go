// Package debugger runs uncompressed PBrain programs inside a resumable
// session that pauses at breakpoints and faults, and reconstructs the
// call stack for diagnostics.
package debugger

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/tliron/commonlog"

	"github.com/pbrainLang/pbrain/pkg/interpreter"
	"github.com/pbrainLang/pbrain/pkg/memory"
	"github.com/pbrainLang/pbrain/pkg/parser"
	"github.com/pbrainLang/pbrain/pkg/types"
)

var log = commonlog.GetLogger("pbrain.debugger")

// Status is the session state.
type Status int

const (
	NotStarted Status = iota
	Running
	Paused
	Faulted
	Completed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Faulted:
		return "faulted"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsTerminal reports whether no further advance can change the session.
func (s Status) IsTerminal() bool { return s == Faulted || s == Completed }

// Options configure a session.
type Options struct {
	interpreter.Options

	// Breakpoints are source byte offsets. Execution pauses before the
	// operator at each offset.
	Breakpoints []int
}

// Session is a step-driven execution of one program. It is not safe for
// concurrent use: callers must not advance it from two goroutines.
type Session struct {
	opts        interpreter.Options
	prog        *parser.Program
	state       *memory.State
	input       *interpreter.Input
	output      *interpreter.Output
	functions   interpreter.FunctionTable
	stack       []interpreter.Frame
	breakpoints map[int]bool // operator indices

	status    Status
	pc        int
	resumed   bool // skip the breakpoint at pc once after a pause
	executed  int64
	countdown int
	elapsed   time.Duration
	last      *interpreter.Result
}

// NewSession prepares a debug session. The initial state is cloned.
// Breakpoint offsets that do not fall on an operator are ignored.
func NewSession(prog *parser.Program, stdin string, initial *memory.State, opts Options) *Session {
	base := opts.Options
	if base.StdoutLimit <= 0 {
		base.StdoutLimit = interpreter.DefaultStdoutLimit
	}
	if base.CheckInterval <= 0 {
		base.CheckInterval = interpreter.DefaultCheckInterval
	}

	s := &Session{
		opts:        base,
		prog:        prog,
		state:       initial.Clone(),
		input:       interpreter.NewInput(stdin),
		output:      interpreter.NewOutput(base.StdoutLimit),
		functions:   make(interpreter.FunctionTable),
		stack:       []interpreter.Frame{{Start: 0, End: len(prog.Operators)}},
		breakpoints: make(map[int]bool),
		countdown:   base.CheckInterval,
	}
	for _, offset := range opts.Breakpoints {
		if i, ok := prog.IndexOf(offset); ok {
			s.breakpoints[i] = true
		} else {
			log.Warningf("ignoring breakpoint at offset %d: no operator there", offset)
		}
	}
	return s
}

// SetBreakpoint adds a breakpoint at a source offset. It reports false when
// no operator sits at that offset.
func (s *Session) SetBreakpoint(offset int) bool {
	i, ok := s.prog.IndexOf(offset)
	if ok {
		s.breakpoints[i] = true
	}
	return ok
}

// ClearBreakpoint removes the breakpoint at a source offset, if any.
func (s *Session) ClearBreakpoint(offset int) {
	if i, ok := s.prog.IndexOf(offset); ok {
		delete(s.breakpoints, i)
	}
}

// Breakpoints returns the source offsets of the active breakpoints in order.
func (s *Session) Breakpoints() []int {
	out := make([]int, 0, len(s.breakpoints))
	for i := range s.prog.Operators {
		if s.breakpoints[i] {
			out = append(out, s.prog.Offsets[i])
		}
	}
	return out
}

// Status returns the session state.
func (s *Session) Status() Status { return s.status }

// Advance runs until a breakpoint, a fault, or completion, and returns a
// snapshot. Advancing a terminal session returns its final result again.
func (s *Session) Advance(ctx context.Context) *interpreter.Result {
	return s.run(ctx, false)
}

// Step executes exactly one operator, still stopping at faults.
func (s *Session) Step(ctx context.Context) *interpreter.Result {
	return s.run(ctx, true)
}

// Steps enumerates Advance results until the session terminates.
func (s *Session) Steps(ctx context.Context) iter.Seq[*interpreter.Result] {
	return func(yield func(*interpreter.Result) bool) {
		for !s.status.IsTerminal() {
			if !yield(s.Advance(ctx)) {
				return
			}
		}
	}
}

func (s *Session) run(ctx context.Context, single bool) (res *interpreter.Result) {
	if s.status.IsTerminal() {
		return s.last
	}
	if s.status == NotStarted {
		log.Debugf("debug session started: %d operators, %d breakpoints", len(s.prog.Operators), len(s.breakpoints))
	}
	s.status = Running
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("debug session panicked: %v", r)
			s.status = Faulted
			res = s.snapshot(interpreter.ExitCondition{Code: types.InternalFault}, start)
		}
	}()

	exit := s.execute(ctx, single)
	switch {
	case exit.Code == types.Success && s.pc >= len(s.prog.Operators):
		s.status = Completed
	case exit.Code.IsFault():
		s.status = Faulted
	default:
		s.status = Paused
	}
	log.Debugf("debug session %s: %s", s.status, exit)
	return s.snapshot(exit, start)
}

func (s *Session) snapshot(exit interpreter.ExitCondition, start time.Time) *interpreter.Result {
	s.elapsed += time.Since(start)
	s.last = &interpreter.Result{
		Stdout:          s.output.String(),
		Exit:            exit,
		State:           s.state.Clone(),
		Elapsed:         s.elapsed,
		TotalOperations: s.executed,
	}
	return s.last
}

// execute runs operators from the current position. A single step stops
// after one operator with StepCompleted.
func (s *Session) execute(ctx context.Context, single bool) interpreter.ExitCondition {
	ops := s.prog.Operators
	jumps := s.prog.Jumps
	m := s.state

	for s.pc < len(ops) {
		pc := s.pc

		if s.breakpoints[pc] && !s.resumed {
			s.resumed = true
			return s.halt(types.BreakpointReached)
		}
		s.resumed = false

		s.countdown--
		if s.countdown == 0 {
			s.countdown = s.opts.CheckInterval
			if ctx.Err() != nil {
				return s.halt(types.Cancelled)
			}
		}
		if s.opts.Threshold > 0 && s.executed >= s.opts.Threshold {
			return s.halt(types.ThresholdExceeded)
		}

		next := pc + 1
		switch ops[pc] {
		case types.OpPlus:
			if !m.Increment() {
				return s.halt(types.MaxValueExceeded)
			}
		case types.OpMinus:
			if !m.Decrement() {
				return s.halt(types.NegativeValue)
			}
		case types.OpForward:
			if !m.MoveForward() {
				return s.halt(types.UpperBoundExceeded)
			}
		case types.OpBack:
			if !m.MoveBack() {
				return s.halt(types.LowerBoundExceeded)
			}

		case types.OpPrint:
			if !s.output.Write(m.Current()) {
				return s.halt(types.StdoutBufferLimitExceeded)
			}

		case types.OpRead:
			r, ok := s.input.Next()
			if !ok {
				return s.halt(types.StdinBufferExhausted)
			}
			if !m.Input(r) {
				return s.halt(types.MaxValueExceeded)
			}

		case types.OpLoopStart:
			if m.Current() == 0 {
				next = jumps[pc] + 1
			}

		case types.OpLoopEnd:
			if m.Current() != 0 {
				next = jumps[pc] + 1
			}

		case types.OpFunctionStart:
			v := m.Current()
			if _, exists := s.functions[v]; exists {
				return s.halt(types.DuplicateFunctionDefinition)
			}
			s.functions[v] = interpreter.Function{Start: pc + 1, End: jumps[pc]}
			next = jumps[pc] + 1

		case types.OpFunctionEnd:
			s.stack = s.stack[:len(s.stack)-1]
			next = s.stack[len(s.stack)-1].Current + 1

		case types.OpFunctionCall:
			f, ok := s.functions[m.Current()]
			if !ok {
				return s.halt(types.UndefinedFunctionCalled)
			}
			if len(s.stack) >= interpreter.MaxStackFrames {
				return s.halt(types.StackLimitExceeded)
			}
			s.stack = append(s.stack, interpreter.Frame{Start: f.Start, End: f.End, Current: f.Start})
			next = f.Start
		}

		s.executed++
		s.pc = next
		// callers keep pointing at their ':'; only the top frame moves
		s.stack[len(s.stack)-1].Current = next

		if single {
			if s.pc >= len(ops) {
				break
			}
			if s.breakpoints[s.pc] {
				s.resumed = true
				return s.halt(types.BreakpointReached)
			}
			return s.halt(types.StepCompleted)
		}
	}

	return interpreter.ExitCondition{Code: types.Success}
}

// halt reports the operator at pc together with the reconstructed stack.
func (s *Session) halt(code types.ExitCode) interpreter.ExitCondition {
	return interpreter.ExitCondition{
		Code: code,
		Halted: &interpreter.HaltedExecutionInfo{
			StackTrace:    s.StackTrace(),
			Operator:      s.prog.Operators[s.pc],
			Offset:        s.prog.Offsets[s.pc],
			OperatorIndex: s.pc,
		},
	}
}

// CallStack returns a copy of the live frames, root first.
func (s *Session) CallStack() []interpreter.Frame {
	out := make([]interpreter.Frame, len(s.stack))
	copy(out, s.stack)
	return out
}

// StackTrace renders the live call stack, each frame from its start through
// its current operator, with recursive repeats collapsed.
func (s *Session) StackTrace() interpreter.StackTrace {
	frames := make([]string, len(s.stack))
	for k, f := range s.stack {
		end := min(f.Current+1, len(s.prog.Operators))
		frames[k] = s.prog.Slice(f.Start, end)
	}
	return interpreter.CompressStackTrace(frames)
}

// Functions returns the defined functions as cell value to body source.
func (s *Session) Functions() map[uint16]string {
	out := make(map[uint16]string, len(s.functions))
	for v, f := range s.functions {
		out[v] = s.prog.Slice(f.Start, f.End)
	}
	return out
}

// CurrentOffset returns the source offset of the next operator to execute,
// or -1 once the program has finished.
func (s *Session) CurrentOffset() int {
	if s.pc >= len(s.prog.Operators) {
		return -1
	}
	return s.prog.Offsets[s.pc]
}

// State returns a copy of the live tape.
func (s *Session) State() *memory.State { return s.state.Clone() }

// Result returns the most recent snapshot, nil before the first advance.
func (s *Session) Result() *interpreter.Result { return s.last }
