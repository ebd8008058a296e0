// Package interpreter provides the PBrain release execution engine.
// It runs a run-length compressed program to completion against a tape,
// and defines the result, call-stack and stack-trace types shared with
// the debugger.
package interpreter

import (
	"context"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/pbrainLang/pbrain/pkg/memory"
	"github.com/pbrainLang/pbrain/pkg/parser"
	"github.com/pbrainLang/pbrain/pkg/types"
)

var log = commonlog.GetLogger("pbrain.interpreter")

// DefaultCheckInterval is how many executed units pass between two
// cancellation checks.
const DefaultCheckInterval = 4096

// Options bound a run.
type Options struct {
	// Threshold is the operation budget (0 = unlimited). Exceeding it is
	// treated as a suspected infinite loop.
	Threshold int64
	// StdoutLimit caps printed characters (0 = DefaultStdoutLimit).
	StdoutLimit int
	// CheckInterval is the cancellation cadence (0 = DefaultCheckInterval).
	CheckInterval int
}

func (o Options) withDefaults() Options {
	if o.StdoutLimit <= 0 {
		o.StdoutLimit = DefaultStdoutLimit
	}
	if o.CheckInterval <= 0 {
		o.CheckInterval = DefaultCheckInterval
	}
	return o
}

// Interpreter is the release engine for one run
type Interpreter struct {
	Options

	exe       *parser.Executable
	state     *memory.State
	input     *Input
	output    *Output
	functions FunctionTable
	stack     []Frame

	// executed counts operators, each repetition of a run included
	executed int64
}

// New prepares a run. The initial state is cloned, so the caller's state is
// never modified.
func New(exe *parser.Executable, stdin string, initial *memory.State, opts Options) *Interpreter {
	opts = opts.withDefaults()
	return &Interpreter{
		Options:   opts,
		exe:       exe,
		state:     initial.Clone(),
		input:     NewInput(stdin),
		output:    NewOutput(opts.StdoutLimit),
		functions: make(FunctionTable),
		stack:     make([]Frame, 1, 16),
	}
}

// Run executes exe against a clone of initial until it completes or faults.
func Run(ctx context.Context, exe *parser.Executable, stdin string, initial *memory.State, opts Options) *Result {
	return New(exe, stdin, initial, opts).Run(ctx)
}

// Run executes the program. Faults are reported in the result's exit
// condition together with the machine state at the fault.
func (i *Interpreter) Run(ctx context.Context) (res *Result) {
	start := time.Now()
	log.Debugf("release run: %d operations, %d cells, %s, %s",
		len(i.exe.Operations), i.state.Size(), i.state.Width(), i.state.Policy())

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("release run panicked: %v", r)
			res = i.result(ExitCondition{Code: types.InternalFault}, start)
		}
	}()

	exit := i.execute(ctx)
	res = i.result(exit, start)
	log.Debugf("release run finished: %s after %d operations in %s", exit, res.TotalOperations, res.Elapsed)
	return res
}

func (i *Interpreter) result(exit ExitCondition, start time.Time) *Result {
	return &Result{
		Stdout:          i.output.String(),
		Exit:            exit,
		State:           i.state,
		Elapsed:         time.Since(start),
		TotalOperations: i.executed,
	}
}

// execute is the hot loop. Every memory operation reports success
// explicitly; a failure becomes the terminal exit condition.
func (i *Interpreter) execute(ctx context.Context) ExitCondition {
	ops := i.exe.Operations
	jumps := i.exe.Jumps
	s := i.state
	i.stack[0] = Frame{Start: 0, End: len(ops)}

	countdown := i.CheckInterval
	pc := 0

	for pc < len(ops) {
		countdown--
		if countdown == 0 {
			countdown = i.CheckInterval
			if ctx.Err() != nil {
				return i.halt(types.Cancelled, pc, 0)
			}
		}

		op := &ops[pc]

		if op.Op.IsCompressible() {
			n := op.Count
			limited := false
			if i.Threshold > 0 && i.executed+int64(n) > i.Threshold {
				n = int(i.Threshold - i.executed)
				limited = true
			}

			var done int
			var ok bool
			switch op.Op {
			case types.OpPlus:
				done, ok = s.IncrementBy(n)
			case types.OpMinus:
				done, ok = s.DecrementBy(n)
			case types.OpForward:
				done, ok = s.MoveForwardBy(n)
			case types.OpBack:
				done, ok = s.MoveBackBy(n)
			}
			i.executed += int64(done)
			if !ok {
				return i.halt(BoundaryFault(op.Op), pc, done)
			}
			if limited {
				return i.halt(types.ThresholdExceeded, pc, done)
			}
			pc++
			continue
		}

		if i.Threshold > 0 && i.executed >= i.Threshold {
			return i.halt(types.ThresholdExceeded, pc, 0)
		}

		switch op.Op {
		case types.OpPrint:
			if !i.output.Write(s.Current()) {
				return i.halt(types.StdoutBufferLimitExceeded, pc, 0)
			}

		case types.OpRead:
			r, ok := i.input.Next()
			if !ok {
				return i.halt(types.StdinBufferExhausted, pc, 0)
			}
			if !s.Input(r) {
				return i.halt(types.MaxValueExceeded, pc, 0)
			}

		case types.OpLoopStart:
			if s.Current() == 0 {
				pc = jumps[pc]
			}

		case types.OpLoopEnd:
			if s.Current() != 0 {
				pc = jumps[pc]
			}

		case types.OpFunctionStart:
			v := s.Current()
			if _, exists := i.functions[v]; exists {
				return i.halt(types.DuplicateFunctionDefinition, pc, 0)
			}
			i.functions[v] = Function{Start: pc + 1, End: jumps[pc]}
			pc = jumps[pc]

		case types.OpFunctionEnd:
			// only reachable inside a call: return to the caller's ':'
			i.stack = i.stack[:len(i.stack)-1]
			pc = i.stack[len(i.stack)-1].Current

		case types.OpFunctionCall:
			f, ok := i.functions[s.Current()]
			if !ok {
				return i.halt(types.UndefinedFunctionCalled, pc, 0)
			}
			if len(i.stack) >= MaxStackFrames {
				return i.halt(types.StackLimitExceeded, pc, 0)
			}
			i.stack[len(i.stack)-1].Current = pc
			i.stack = append(i.stack, Frame{Start: f.Start, End: f.End, Current: f.Start})
			i.executed++
			pc = f.Start
			continue
		}

		i.executed++
		pc++
	}

	return ExitCondition{Code: types.Success}
}

// halt converts a failure at operation pc into an exit condition. done is
// the number of repetitions of a compressed run that completed first.
func (i *Interpreter) halt(code types.ExitCode, pc, done int) ExitCondition {
	i.stack[len(i.stack)-1].Current = pc
	op := i.exe.Operations[pc]
	index := op.Index + done

	frames := make([]string, len(i.stack))
	for k, f := range i.stack {
		if k == len(i.stack)-1 {
			frames[k] = i.exe.Slice(f.Start, f.Current) + strings.Repeat(op.Op.String(), done+1)
		} else {
			frames[k] = i.exe.Slice(f.Start, f.Current+1)
		}
	}

	return ExitCondition{
		Code: code,
		Halted: &HaltedExecutionInfo{
			StackTrace:    CompressStackTrace(frames),
			Operator:      op.Op,
			Offset:        i.exe.Offsets[index],
			OperatorIndex: index,
		},
	}
}

// Functions returns the function table defined so far.
func (i *Interpreter) Functions() FunctionTable { return i.functions }

// State returns the live machine state of the run.
func (i *Interpreter) State() *memory.State { return i.state }
