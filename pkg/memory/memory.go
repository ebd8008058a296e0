// Package memory implements the PBrain machine state: a fixed-size tape
// of unsigned cells, a pointer, and the overflow policy applied to cell
// arithmetic.
package memory

import (
	"fmt"
	"iter"
	"strings"
)

// Tape size bounds. Offsets and cell values reported back to callers fit in
// the same 16-bit width class.
const (
	MinSize = 32
	MaxSize = 32768
)

// Width is the number of bits in a cell.
type Width int

const (
	Bits8  Width = 8
	Bits16 Width = 16
)

// Max returns the largest value a cell of this width can hold.
func (w Width) Max() uint16 {
	if w == Bits16 {
		return 0xFFFF
	}
	return 0xFF
}

func (w Width) String() string { return fmt.Sprintf("%d-bit", int(w)) }

// Overflow selects how cell arithmetic behaves at the bounds.
type Overflow int

const (
	// Wrap performs arithmetic modulo the cell width and never fails.
	Wrap Overflow = iota
	// NoWrap saturates at the bound and reports failure.
	NoWrap
)

func (o Overflow) String() string {
	if o == NoWrap {
		return "no-wrap"
	}
	return "wrap"
}

// State is the tape plus pointer. It is owned by one run at a time; use
// Clone to hand a copy to another run.
type State struct {
	cells  []uint16
	ptr    int
	max    uint16
	mod    int
	width  Width
	policy Overflow
}

// New creates a zeroed tape of the given size.
func New(size int, width Width, policy Overflow) (*State, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("memory size %d out of range [%d, %d]", size, MinSize, MaxSize)
	}
	if width != Bits8 && width != Bits16 {
		return nil, fmt.Errorf("unsupported cell width %d", int(width))
	}
	if policy != Wrap && policy != NoWrap {
		return nil, fmt.Errorf("unsupported overflow policy %d", int(policy))
	}
	return &State{
		cells:  make([]uint16, size),
		max:    width.Max(),
		mod:    int(width.Max()) + 1,
		width:  width,
		policy: policy,
	}, nil
}

// Size returns the number of cells.
func (s *State) Size() int { return len(s.cells) }

// Pointer returns the index of the active cell.
func (s *State) Pointer() int { return s.ptr }

// Width returns the cell width.
func (s *State) Width() Width { return s.width }

// Policy returns the overflow policy.
func (s *State) Policy() Overflow { return s.policy }

// Max returns the largest cell value.
func (s *State) Max() uint16 { return s.max }

// Current returns the value under the pointer.
func (s *State) Current() uint16 { return s.cells[s.ptr] }

// At returns the value of cell i.
func (s *State) At(i int) uint16 { return s.cells[i] }

// Cells returns a copy of the tape.
func (s *State) Cells() []uint16 {
	out := make([]uint16, len(s.cells))
	copy(out, s.cells)
	return out
}

// All iterates over (index, value) pairs of the tape.
func (s *State) All() iter.Seq2[int, uint16] {
	return func(yield func(int, uint16) bool) {
		for i, v := range s.cells {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Clone returns an independent deep copy.
func (s *State) Clone() *State {
	c := *s
	c.cells = make([]uint16, len(s.cells))
	copy(c.cells, s.cells)
	return &c
}

// === Pointer movement ===

// MoveForward moves the pointer one cell right. It fails at the last cell.
func (s *State) MoveForward() bool {
	if s.ptr == len(s.cells)-1 {
		return false
	}
	s.ptr++
	return true
}

// MoveBack moves the pointer one cell left. It fails at cell 0.
func (s *State) MoveBack() bool {
	if s.ptr == 0 {
		return false
	}
	s.ptr--
	return true
}

// MoveForwardBy moves right n cells. On failure the pointer stops at the
// last cell and done reports how many moves succeeded.
func (s *State) MoveForwardBy(n int) (done int, ok bool) {
	room := len(s.cells) - 1 - s.ptr
	if n <= room {
		s.ptr += n
		return n, true
	}
	s.ptr += room
	return room, false
}

// MoveBackBy moves left n cells, stopping at cell 0 on failure.
func (s *State) MoveBackBy(n int) (done int, ok bool) {
	if n <= s.ptr {
		s.ptr -= n
		return n, true
	}
	done = s.ptr
	s.ptr = 0
	return done, false
}

// === Cell arithmetic ===

// Increment adds one to the current cell.
func (s *State) Increment() bool {
	v := s.cells[s.ptr]
	if v == s.max {
		if s.policy == NoWrap {
			return false
		}
		s.cells[s.ptr] = 0
		return true
	}
	s.cells[s.ptr] = v + 1
	return true
}

// Decrement subtracts one from the current cell.
func (s *State) Decrement() bool {
	v := s.cells[s.ptr]
	if v == 0 {
		if s.policy == NoWrap {
			return false
		}
		s.cells[s.ptr] = s.max
		return true
	}
	s.cells[s.ptr] = v - 1
	return true
}

// IncrementBy adds n to the current cell. Under NoWrap the cell saturates at
// the maximum and done reports how many increments succeeded.
func (s *State) IncrementBy(n int) (done int, ok bool) {
	v := int(s.cells[s.ptr])
	if s.policy == Wrap {
		s.cells[s.ptr] = uint16((v + n) % s.mod)
		return n, true
	}
	room := int(s.max) - v
	if n <= room {
		s.cells[s.ptr] = uint16(v + n)
		return n, true
	}
	s.cells[s.ptr] = s.max
	return room, false
}

// DecrementBy subtracts n from the current cell. Under NoWrap the cell
// stops at zero and done reports how many decrements succeeded.
func (s *State) DecrementBy(n int) (done int, ok bool) {
	v := int(s.cells[s.ptr])
	if s.policy == Wrap {
		s.cells[s.ptr] = uint16(((v-n%s.mod)%s.mod + s.mod) % s.mod)
		return n, true
	}
	if n <= v {
		s.cells[s.ptr] = uint16(v - n)
		return n, true
	}
	s.cells[s.ptr] = 0
	return v, false
}

// Input stores a stdin character in the current cell. Characters beyond the
// cell range are truncated under Wrap and rejected under NoWrap.
func (s *State) Input(r rune) bool {
	if r < 0 {
		return false
	}
	if int64(r) > int64(s.max) {
		if s.policy == NoWrap {
			return false
		}
		s.cells[s.ptr] = uint16(int(r) % s.mod)
		return true
	}
	s.cells[s.ptr] = uint16(r)
	return true
}

// Dump renders the tape up to the last non-zero cell or the pointer,
// whichever is further, marking the active cell.
func (s *State) Dump() string {
	last := s.ptr
	for i := len(s.cells) - 1; i > last; i-- {
		if s.cells[i] != 0 {
			last = i
			break
		}
	}
	var sb strings.Builder
	sb.WriteString("[ ")
	for i := 0; i <= last; i++ {
		if i == s.ptr {
			fmt.Fprintf(&sb, "*%d ", s.cells[i])
		} else {
			fmt.Fprintf(&sb, "%d ", s.cells[i])
		}
	}
	return sb.String() + "]"
}
