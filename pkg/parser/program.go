package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pbrainLang/pbrain/pkg/types"
)

// Program is the uncompressed debug form: one operator per unit, 1:1 with
// the operator characters of the source.
type Program struct {
	Operators []types.Operator
	Offsets   []int // source byte offset of each operator
	Jumps     []int // matching index for [ ] ( ), -1 otherwise
}

func (p *Program) Mode() Mode         { return Debug }
func (p *Program) OperatorCount() int { return len(p.Operators) }

// Source returns the normalized script.
func (p *Program) Source() string {
	return p.Slice(0, len(p.Operators))
}

// Slice renders operators [start, end).
func (p *Program) Slice(start, end int) string {
	var sb strings.Builder
	sb.Grow(end - start)
	for _, op := range p.Operators[start:end] {
		sb.WriteByte(byte(op))
	}
	return sb.String()
}

// IndexOf returns the operator index at a source offset.
func (p *Program) IndexOf(offset int) (int, bool) {
	i := sort.SearchInts(p.Offsets, offset)
	if i < len(p.Offsets) && p.Offsets[i] == offset {
		return i, true
	}
	return 0, false
}

// Operation is a compressed (operator, count) unit.
type Operation struct {
	Op    types.Operator
	Count int
	Index int // operator index of the first repetition
}

func (o Operation) String() string {
	return strings.Repeat(o.Op.String(), o.Count)
}

// Executable is the run-length compressed release form.
type Executable struct {
	Operations []Operation
	Jumps      []int // matching operation index for [ ] ( ), -1 otherwise
	Offsets    []int // source byte offset of each operator (uncompressed index)

	operators int
}

func (e *Executable) Mode() Mode         { return Release }
func (e *Executable) OperatorCount() int { return e.operators }

// Source returns the normalized script, expanding every run.
func (e *Executable) Source() string {
	return e.Slice(0, len(e.Operations))
}

// Slice renders operations [start, end) expanded to operators.
func (e *Executable) Slice(start, end int) string {
	var sb strings.Builder
	for _, op := range e.Operations[start:end] {
		for n := 0; n < op.Count; n++ {
			sb.WriteByte(byte(op.Op))
		}
	}
	return sb.String()
}

// Disassemble converts a compiled program to a numbered listing.
func Disassemble(c Compiled) string {
	var sb strings.Builder

	switch prog := c.(type) {
	case *Program:
		for i, op := range prog.Operators {
			fmt.Fprintf(&sb, "%04d @%-5d %s %-7s", i, prog.Offsets[i], op, op.Name())
			if j := prog.Jumps[i]; j >= 0 {
				fmt.Fprintf(&sb, " -> %04d", j)
			}
			sb.WriteByte('\n')
		}

	case *Executable:
		for i, op := range prog.Operations {
			fmt.Fprintf(&sb, "%04d @%-5d %s %-7s", i, prog.Offsets[op.Index], op.Op, op.Op.Name())
			if op.Count > 1 {
				fmt.Fprintf(&sb, " x%d", op.Count)
			}
			if j := prog.Jumps[i]; j >= 0 {
				fmt.Fprintf(&sb, " -> %04d", j)
			}
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}
