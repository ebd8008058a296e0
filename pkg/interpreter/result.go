package interpreter

import (
	"fmt"
	"time"

	"github.com/pbrainLang/pbrain/pkg/memory"
	"github.com/pbrainLang/pbrain/pkg/types"
)

// HaltedExecutionInfo locates the operator at which a run stopped.
type HaltedExecutionInfo struct {
	StackTrace    StackTrace
	Operator      types.Operator
	Offset        int // source byte offset of the operator
	OperatorIndex int // index in the uncompressed operator stream
}

// ExitCondition is the terminal state of a run. Halted is set for faults,
// cancellation and breakpoints.
type ExitCondition struct {
	Code   types.ExitCode
	Halted *HaltedExecutionInfo
}

func (e ExitCondition) String() string {
	if e.Halted == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s at offset %d (%s)", e.Code, e.Halted.Offset, e.Halted.Operator)
}

// Result is the outcome of a run, or a snapshot of a paused debug session.
// State is owned by the result and never aliases the caller's input state.
type Result struct {
	Stdout          string
	Exit            ExitCondition
	State           *memory.State
	Elapsed         time.Duration
	TotalOperations int64
}

// Succeeded reports whether the script ran to completion.
func (r *Result) Succeeded() bool {
	return r.Exit.Code == types.Success
}

// Function is a PBrain function body: operator or operation indices
// [Start, End), where End is the index of the closing ')'.
type Function struct {
	Start int
	End   int
}

// FunctionTable maps a cell value to the function defined for it.
type FunctionTable map[uint16]Function

// BoundaryFault returns the exit code raised when op fails against a tape or
// cell bound.
func BoundaryFault(op types.Operator) types.ExitCode {
	switch op {
	case types.OpPlus, types.OpRead:
		return types.MaxValueExceeded
	case types.OpMinus:
		return types.NegativeValue
	case types.OpForward:
		return types.UpperBoundExceeded
	case types.OpBack:
		return types.LowerBoundExceeded
	}
	return types.InternalFault
}
