package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"

	"github.com/pbrainLang/pbrain/pkg/interpreter"
	"github.com/pbrainLang/pbrain/pkg/memory"
	"github.com/pbrainLang/pbrain/pkg/parser"
)

func run(t *testing.T, source string) (*parser.Executable, *interpreter.Result) {
	t.Helper()
	exe, err := parser.CompileRelease(source)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	state, err := memory.New(32, memory.Bits8, memory.Wrap)
	if err != nil {
		t.Fatal(err)
	}
	return exe, interpreter.Run(context.Background(), exe, "", state, interpreter.Options{})
}

func TestReport_CBORRoundTrip(t *testing.T) {
	exe, res := run(t, "++>+++ done (+:):")

	data, err := Marshal(New(exe, res))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Script != sha256.Sum256([]byte("++>+++(+:):")) {
		t.Error("Script hash mismatch")
	}
	if got.Mode != "release" {
		t.Errorf("Mode: got %q", got.Mode)
	}
	if got.Exit != "UndefinedFunctionCalled" {
		t.Errorf("Exit: got %q", got.Exit)
	}
	if got.Memory.Size != 32 || got.Memory.Pointer != 1 || got.Memory.Overflow != "wrap" {
		t.Errorf("Memory: %+v", got.Memory)
	}
	if len(got.Memory.Cells) != 2 || got.Memory.Cells[0] != 2 || got.Memory.Cells[1] != 4 {
		t.Errorf("Cells: %v", got.Memory.Cells)
	}
	if got.Halt == nil {
		t.Fatal("Halt missing")
	}
	if got.Halt.Offset != 14 || got.Halt.Operator != ":" {
		t.Errorf("Halt: %+v", *got.Halt)
	}
	if len(got.Halt.Stack) != 2 || got.Halt.Stack[1].Frames[0] != "+:" {
		t.Errorf("Stack: %+v", got.Halt.Stack)
	}
}

func TestReport_SuccessOmitsHalt(t *testing.T) {
	exe, res := run(t, "+.")
	got, err := Unmarshal(mustMarshal(t, New(exe, res)))
	if err != nil {
		t.Fatal(err)
	}
	if got.Halt != nil {
		t.Errorf("Halt: %+v", *got.Halt)
	}
	if got.Stdout != "\x01" || got.Operations != 2 {
		t.Errorf("Stdout %q Operations %d", got.Stdout, got.Operations)
	}
}

func TestReport_Deterministic(t *testing.T) {
	exe, res := run(t, "+++[>+<-]")
	r := New(exe, res)
	a := mustMarshal(t, r)
	b := mustMarshal(t, r)
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding should be stable")
	}
}

func TestUnmarshal_Garbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error")
	}
}

func mustMarshal(t *testing.T, r *Report) []byte {
	t.Helper()
	data, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}
