package interpreter

import (
	"fmt"
	"strings"

	"github.com/pbrainLang/pbrain/pkg/types"
)

// MaxStackFrames bounds the live call stack, root frame included.
const MaxStackFrames = 512

// maxPatternLength is the longest run of frames considered when collapsing
// recursive calls.
const maxPatternLength = 4

// Frame is one live call-stack entry: a range [Start, End) of the compiled
// program and the index of the operator being executed in it.
type Frame struct {
	Start   int
	End     int
	Current int
}

// Relative returns the current position within the frame.
func (f Frame) Relative() int { return f.Current - f.Start }

// StackEntry is a sequence of frames, outermost first, that occurred Repeat
// times back to back.
type StackEntry struct {
	Frames []string
	Repeat int
}

// StackTrace is a compressed call stack, outermost entry first.
type StackTrace []StackEntry

// Depth returns the number of frames the trace represents.
func (t StackTrace) Depth() int {
	n := 0
	for _, e := range t {
		n += len(e.Frames) * e.Repeat
	}
	return n
}

// Expand returns every frame, undoing the compression.
func (t StackTrace) Expand() []string {
	out := make([]string, 0, t.Depth())
	for _, e := range t {
		for r := 0; r < e.Repeat; r++ {
			out = append(out, e.Frames...)
		}
	}
	return out
}

func (t StackTrace) String() string {
	var sb strings.Builder
	for _, e := range t {
		sb.WriteString(strings.Join(e.Frames, " | "))
		if e.Repeat > 1 {
			fmt.Fprintf(&sb, "  (repeated %d times)", e.Repeat)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// CompressStackTrace collapses immediately repeated call sequences in a
// rendered stack, given outermost frame first. Patterns of up to four frames
// are matched from the innermost frame outward; only patterns that contain
// a function call are collapsed.
func CompressStackTrace(frames []string) StackTrace {
	var reversed StackTrace
	i := len(frames)

	for i > 0 {
		bestLen, bestRepeat := 1, 1
		for l := 1; l <= maxPatternLength && l <= i; l++ {
			pattern := frames[i-l : i]
			if !containsCall(pattern) {
				continue
			}
			repeat := 1
			for start := i - (repeat+1)*l; start >= 0 && equalFrames(frames[start:start+l], pattern); start = i - (repeat+1)*l {
				repeat++
			}
			if repeat > 1 && l*repeat > bestLen*bestRepeat {
				bestLen, bestRepeat = l, repeat
			}
		}
		reversed = append(reversed, StackEntry{
			Frames: append([]string(nil), frames[i-bestLen:i]...),
			Repeat: bestRepeat,
		})
		i -= bestLen * bestRepeat
	}

	trace := make(StackTrace, len(reversed))
	for k, e := range reversed {
		trace[len(reversed)-1-k] = e
	}
	return trace
}

func containsCall(frames []string) bool {
	for _, f := range frames {
		if strings.IndexByte(f, byte(types.OpFunctionCall)) >= 0 {
			return true
		}
	}
	return false
}

func equalFrames(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
