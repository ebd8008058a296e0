package interpreter

import "strings"

// DefaultStdoutLimit is the largest number of characters a run may print.
const DefaultStdoutLimit = 8 * 1024

// Input is the in-memory stdin consumed left to right by ','.
type Input struct {
	runes []rune
	pos   int
}

// NewInput wraps stdin text.
func NewInput(stdin string) *Input {
	return &Input{runes: []rune(stdin)}
}

// Next returns the next character, or false once exhausted.
func (in *Input) Next() (rune, bool) {
	if in.pos >= len(in.runes) {
		return 0, false
	}
	r := in.runes[in.pos]
	in.pos++
	return r, true
}

// Remaining returns the unread part of stdin.
func (in *Input) Remaining() string { return string(in.runes[in.pos:]) }

// Output collects the characters written by '.' up to a limit.
type Output struct {
	sb    strings.Builder
	n     int
	limit int
}

// NewOutput creates a buffer holding at most limit characters.
func NewOutput(limit int) *Output {
	if limit <= 0 {
		limit = DefaultStdoutLimit
	}
	return &Output{limit: limit}
}

// Write appends a cell value as a character. It fails once the limit is
// reached.
func (o *Output) Write(v uint16) bool {
	if o.n >= o.limit {
		return false
	}
	o.sb.WriteRune(rune(v))
	o.n++
	return true
}

// Len returns the number of characters written.
func (o *Output) Len() int { return o.n }

func (o *Output) String() string { return o.sb.String() }
