// Package report encodes run results as canonical CBOR for tooling.
package report

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/pbrainLang/pbrain/pkg/interpreter"
	"github.com/pbrainLang/pbrain/pkg/parser"
	"github.com/pbrainLang/pbrain/pkg/types"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Report is the serialized outcome of one run.
type Report struct {
	Script     [32]byte `cbor:"1,keyasint"` // sha256 of the normalized source
	Mode       string   `cbor:"2,keyasint"`
	Exit       string   `cbor:"3,keyasint"`
	Message    string   `cbor:"4,keyasint"`
	Stdout     string   `cbor:"5,keyasint"`
	Operations int64    `cbor:"6,keyasint"`
	Elapsed    int64    `cbor:"7,keyasint"` // nanoseconds
	Memory     Memory   `cbor:"8,keyasint"`
	Halt       *Halt    `cbor:"9,keyasint,omitempty"`
}

// Memory is the final tape. Cells stops at the last non-zero cell.
type Memory struct {
	Size     int      `cbor:"1,keyasint"`
	Width    int      `cbor:"2,keyasint"`
	Overflow string   `cbor:"3,keyasint"`
	Pointer  int      `cbor:"4,keyasint"`
	Cells    []uint16 `cbor:"5,keyasint,omitempty"`
}

// Halt locates the operator a run stopped at.
type Halt struct {
	Offset   int          `cbor:"1,keyasint"`
	Index    int          `cbor:"2,keyasint"`
	Operator string       `cbor:"3,keyasint"`
	Stack    []StackEntry `cbor:"4,keyasint"`
}

// StackEntry is one compressed stack trace entry.
type StackEntry struct {
	Frames []string `cbor:"1,keyasint"`
	Repeat int      `cbor:"2,keyasint"`
}

// New builds a report for res, produced by running c.
func New(c parser.Compiled, res *interpreter.Result) *Report {
	r := &Report{
		Script:     sha256.Sum256([]byte(c.Source())),
		Mode:       c.Mode().String(),
		Exit:       res.Exit.Code.String(),
		Message:    types.ErrorMessage(res.Exit.Code),
		Stdout:     res.Stdout,
		Operations: res.TotalOperations,
		Elapsed:    res.Elapsed.Nanoseconds(),
	}

	if s := res.State; s != nil {
		cells := s.Cells()
		last := len(cells)
		for last > 0 && cells[last-1] == 0 {
			last--
		}
		r.Memory = Memory{
			Size:     s.Size(),
			Width:    int(s.Width()),
			Overflow: s.Policy().String(),
			Pointer:  s.Pointer(),
			Cells:    cells[:last],
		}
	}

	if h := res.Exit.Halted; h != nil {
		r.Halt = &Halt{
			Offset:   h.Offset,
			Index:    h.OperatorIndex,
			Operator: h.Operator.String(),
		}
		for _, e := range h.StackTrace {
			r.Halt.Stack = append(r.Halt.Stack, StackEntry{Frames: e.Frames, Repeat: e.Repeat})
		}
	}
	return r
}

// Marshal serializes a Report to CBOR bytes.
func Marshal(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// Unmarshal deserializes a Report from CBOR bytes.
func Unmarshal(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: unmarshal: %w", err)
	}
	return &r, nil
}
