// Package types defines the PBrain lexicon: the operator alphabet,
// syntax error kinds and run-time exit codes shared by every package.
package types

import "fmt"

// Operator is one lexical unit of a script.
type Operator byte

// Classic Brainf*ck operators plus the three PBrain function operators.
const (
	OpPlus          Operator = '+' // increment current cell
	OpMinus         Operator = '-' // decrement current cell
	OpForward       Operator = '>' // move pointer right
	OpBack          Operator = '<' // move pointer left
	OpPrint         Operator = '.' // write current cell to stdout
	OpRead          Operator = ',' // read one stdin character into current cell
	OpLoopStart     Operator = '[' // jump past matching ] if cell is zero
	OpLoopEnd       Operator = ']' // jump back to matching [ if cell is non-zero
	OpFunctionStart Operator = '(' // define function keyed by current cell value
	OpFunctionEnd   Operator = ')' // end of function body / return
	OpFunctionCall  Operator = ':' // call function keyed by current cell value
)

// Operators lists the whole alphabet in a stable order.
var Operators = []Operator{
	OpPlus, OpMinus, OpForward, OpBack, OpPrint, OpRead,
	OpLoopStart, OpLoopEnd, OpFunctionStart, OpFunctionEnd, OpFunctionCall,
}

// IsOperator reports whether r belongs to the alphabet.
func IsOperator(r rune) bool {
	switch Operator(r) {
	case OpPlus, OpMinus, OpForward, OpBack, OpPrint, OpRead,
		OpLoopStart, OpLoopEnd, OpFunctionStart, OpFunctionEnd, OpFunctionCall:
		return r < 0x80
	}
	return false
}

func (o Operator) String() string { return string(rune(o)) }

// IsCompressible reports whether adjacent runs of o may be collapsed into a
// single counted operation.
func (o Operator) IsCompressible() bool {
	switch o {
	case OpPlus, OpMinus, OpForward, OpBack:
		return true
	}
	return false
}

// Name returns a descriptive name for listings.
func (o Operator) Name() string {
	switch o {
	case OpPlus:
		return "inc"
	case OpMinus:
		return "dec"
	case OpForward:
		return "fwd"
	case OpBack:
		return "back"
	case OpPrint:
		return "out"
	case OpRead:
		return "in"
	case OpLoopStart:
		return "loop"
	case OpLoopEnd:
		return "endloop"
	case OpFunctionStart:
		return "def"
	case OpFunctionEnd:
		return "ret"
	case OpFunctionCall:
		return "call"
	}
	return "?"
}

// SyntaxError identifies why a script could not be compiled.
type SyntaxError int

const (
	SyntaxOK SyntaxError = iota
	MismatchedSquareBracket
	IncompleteLoop
	MismatchedParenthesis
	InvalidFunctionDeclaration
	NestedFunctionDeclaration
	EmptyFunctionDeclaration
	IncompleteFunctionDeclaration
	MissingOperators
)

func (e SyntaxError) String() string {
	switch e {
	case SyntaxOK:
		return "no error"
	case MismatchedSquareBracket:
		return "mismatched square bracket"
	case IncompleteLoop:
		return "incomplete loop"
	case MismatchedParenthesis:
		return "mismatched parenthesis"
	case InvalidFunctionDeclaration:
		return "invalid function declaration"
	case NestedFunctionDeclaration:
		return "nested function declaration"
	case EmptyFunctionDeclaration:
		return "empty function declaration"
	case IncompleteFunctionDeclaration:
		return "incomplete function declaration"
	case MissingOperators:
		return "missing operators"
	default:
		return fmt.Sprintf("unknown syntax error %d", int(e))
	}
}

// ExitCode is the terminal condition of a run.
type ExitCode int

const (
	Success ExitCode = iota
	LowerBoundExceeded
	UpperBoundExceeded
	NegativeValue
	MaxValueExceeded
	StdinBufferExhausted
	StdoutBufferLimitExceeded
	DuplicateFunctionDefinition
	UndefinedFunctionCalled
	StackLimitExceeded
	ThresholdExceeded
	Cancelled
	BreakpointReached
	StepCompleted
	InternalFault
)

// IsFault reports whether c ends a run abnormally.
func (c ExitCode) IsFault() bool {
	return c != Success && c != BreakpointReached && c != StepCompleted
}

func (c ExitCode) String() string {
	switch c {
	case Success:
		return "Success"
	case LowerBoundExceeded:
		return "LowerBoundExceeded"
	case UpperBoundExceeded:
		return "UpperBoundExceeded"
	case NegativeValue:
		return "NegativeValue"
	case MaxValueExceeded:
		return "MaxValueExceeded"
	case StdinBufferExhausted:
		return "StdinBufferExhausted"
	case StdoutBufferLimitExceeded:
		return "StdoutBufferLimitExceeded"
	case DuplicateFunctionDefinition:
		return "DuplicateFunctionDefinition"
	case UndefinedFunctionCalled:
		return "UndefinedFunctionCalled"
	case StackLimitExceeded:
		return "StackLimitExceeded"
	case ThresholdExceeded:
		return "ThresholdExceeded"
	case Cancelled:
		return "Cancelled"
	case BreakpointReached:
		return "BreakpointReached"
	case StepCompleted:
		return "StepCompleted"
	case InternalFault:
		return "InternalFault"
	default:
		return fmt.Sprintf("ExitCode(%d)", int(c))
	}
}

// ErrorMessage returns a human-readable message for an exit code
func ErrorMessage(c ExitCode) string {
	switch c {
	case Success:
		return "script completed"
	case LowerBoundExceeded:
		return "pointer moved below the first cell"
	case UpperBoundExceeded:
		return "pointer moved past the last cell"
	case NegativeValue:
		return "cell decremented below zero"
	case MaxValueExceeded:
		return "cell incremented above its maximum value"
	case StdinBufferExhausted:
		return "stdin buffer exhausted"
	case StdoutBufferLimitExceeded:
		return "stdout buffer limit exceeded"
	case DuplicateFunctionDefinition:
		return "function already defined for this value"
	case UndefinedFunctionCalled:
		return "no function defined for this value"
	case StackLimitExceeded:
		return "function call stack limit exceeded"
	case ThresholdExceeded:
		return "operation threshold exceeded, possible infinite loop"
	case Cancelled:
		return "execution cancelled"
	case BreakpointReached:
		return "breakpoint reached"
	case StepCompleted:
		return "single step completed"
	case InternalFault:
		return "internal interpreter fault"
	default:
		return fmt.Sprintf("unknown exit code %d", int(c))
	}
}
