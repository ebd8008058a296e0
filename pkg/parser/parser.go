// Package parser validates PBrain scripts and compiles them into the two
// executable forms: one operator per unit for debugging, and run-length
// compressed operations for release runs.
// Tokenization uses the Participle v2 lexer.
package parser

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pbrainLang/pbrain/pkg/types"
)

// Mode selects the compiled representation.
type Mode int

const (
	// Debug keeps one operator per source character.
	Debug Mode = iota
	// Release collapses runs of + - > < into counted operations.
	Release
)

func (m Mode) String() string {
	if m == Release {
		return "release"
	}
	return "debug"
}

// PBrain lexer definition: every operator character is its own token, any
// other run of characters is a comment.
var pbrainLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Operator", Pattern: `[+\-<>.,\[\]():]`},
	{Name: "Comment", Pattern: `[^+\-<>.,\[\]():]+`},
})

var operatorToken = pbrainLexer.Symbols()["Operator"]

// token is one operator with its byte offset in the source.
type token struct {
	op     types.Operator
	offset int
}

// lex strips comments and returns the operator tokens.
func lex(source string) ([]token, error) {
	l, err := pbrainLexer.LexString("", source)
	if err != nil {
		return nil, err
	}
	raw, err := lexer.ConsumeAll(l)
	if err != nil {
		return nil, err
	}
	tokens := make([]token, 0, len(raw))
	for _, t := range raw {
		if t.Type != operatorToken {
			continue
		}
		tokens = append(tokens, token{op: types.Operator(t.Value[0]), offset: t.Pos.Offset})
	}
	return tokens, nil
}

// ValidationResult reports the outcome of syntax validation. It is also
// the error returned by the compile functions.
type ValidationResult struct {
	Succeeded     bool
	Kind          types.SyntaxError
	Offset        int // byte offset of the first offending character
	OperatorCount int
}

func (r ValidationResult) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", r.Offset, r.Kind)
}

func failure(kind types.SyntaxError, offset, count int) ValidationResult {
	return ValidationResult{Kind: kind, Offset: offset, OperatorCount: count}
}

// validate runs the single forward pass. It returns the jump table indexed
// by token: for [ ] ( ) the index of the matching token, -1 otherwise.
// The first error found wins.
func validate(tokens []token) (ValidationResult, []int) {
	jumps := make([]int, len(tokens))
	for i := range jumps {
		jumps[i] = -1
	}

	var loops []int
	fnOpen := -1 // index of the open (, -1 outside a function
	fnDepth := 0 // loop depth at which the open function started
	n := len(tokens)

	for i, t := range tokens {
		switch t.op {
		case types.OpLoopStart:
			loops = append(loops, i)

		case types.OpLoopEnd:
			if len(loops) == 0 {
				return failure(types.MismatchedSquareBracket, t.offset, n), nil
			}
			if fnOpen >= 0 && len(loops) == fnDepth {
				// would close a loop opened outside the function body
				return failure(types.InvalidFunctionDeclaration, t.offset, n), nil
			}
			open := loops[len(loops)-1]
			loops = loops[:len(loops)-1]
			jumps[open] = i
			jumps[i] = open

		case types.OpFunctionStart:
			if fnOpen >= 0 {
				return failure(types.NestedFunctionDeclaration, t.offset, n), nil
			}
			fnOpen = i
			fnDepth = len(loops)

		case types.OpFunctionEnd:
			if fnOpen < 0 {
				return failure(types.MismatchedParenthesis, t.offset, n), nil
			}
			if len(loops) != fnDepth {
				return failure(types.InvalidFunctionDeclaration, t.offset, n), nil
			}
			if i == fnOpen+1 {
				return failure(types.EmptyFunctionDeclaration, t.offset, n), nil
			}
			jumps[fnOpen] = i
			jumps[i] = fnOpen
			fnOpen = -1
		}
	}

	if len(loops) > 0 {
		return failure(types.IncompleteLoop, tokens[loops[0]].offset, n), nil
	}
	if fnOpen >= 0 {
		return failure(types.IncompleteFunctionDeclaration, tokens[fnOpen].offset, n), nil
	}
	if n == 0 {
		return failure(types.MissingOperators, 0, 0), nil
	}
	return ValidationResult{Succeeded: true, OperatorCount: n}, jumps
}

// Validate checks the syntax of source without building a program.
func Validate(source string) ValidationResult {
	tokens, err := lex(source)
	if err != nil {
		return failure(types.MissingOperators, 0, 0)
	}
	result, _ := validate(tokens)
	return result
}

// Compiled is implemented by both executable forms.
type Compiled interface {
	// Source returns the normalized script: operators only.
	Source() string
	// OperatorCount is the number of operators before compression.
	OperatorCount() int
	// Mode identifies the representation.
	Mode() Mode
}

// Compile validates source and emits the representation requested by mode.
// Syntax failures are returned as a ValidationResult error.
func Compile(source string, mode Mode) (Compiled, error) {
	if mode == Release {
		e, err := CompileRelease(source)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	p, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func analyze(source string) ([]token, []int, error) {
	tokens, err := lex(source)
	if err != nil {
		return nil, nil, fmt.Errorf("lexing script: %w", err)
	}
	result, jumps := validate(tokens)
	if !result.Succeeded {
		return nil, nil, result
	}
	return tokens, jumps, nil
}

// Parse compiles source into the uncompressed debug form.
func Parse(source string) (*Program, error) {
	tokens, jumps, err := analyze(source)
	if err != nil {
		return nil, err
	}
	p := &Program{
		Operators: make([]types.Operator, len(tokens)),
		Offsets:   make([]int, len(tokens)),
		Jumps:     jumps,
	}
	for i, t := range tokens {
		p.Operators[i] = t.op
		p.Offsets[i] = t.offset
	}
	return p, nil
}

// CompileRelease compiles source into the run-length compressed form.
func CompileRelease(source string) (*Executable, error) {
	tokens, jumps, err := analyze(source)
	if err != nil {
		return nil, err
	}

	e := &Executable{
		Operations: make([]Operation, 0, len(tokens)),
		Offsets:    make([]int, len(tokens)),
		operators:  len(tokens),
	}
	// opIndex maps a bracket token to its operation index
	opIndex := make([]int, len(tokens))

	for i, t := range tokens {
		e.Offsets[i] = t.offset
		if last := len(e.Operations) - 1; t.op.IsCompressible() && last >= 0 && e.Operations[last].Op == t.op {
			e.Operations[last].Count++
			continue
		}
		opIndex[i] = len(e.Operations)
		e.Operations = append(e.Operations, Operation{Op: t.op, Count: 1, Index: i})
	}

	e.Jumps = make([]int, len(e.Operations))
	for i, op := range e.Operations {
		e.Jumps[i] = -1
		if target := jumps[op.Index]; target >= 0 {
			e.Jumps[i] = opIndex[target]
		}
	}
	return e, nil
}
