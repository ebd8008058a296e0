// pbrain runs PBrain scripts: Brainfuck extended with procedures.
// Scripts run compressed by default; -debug opens a stepping session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"github.com/pbrainLang/pbrain/pkg/config"
	"github.com/pbrainLang/pbrain/pkg/debugger"
	"github.com/pbrainLang/pbrain/pkg/interpreter"
	"github.com/pbrainLang/pbrain/pkg/parser"
	"github.com/pbrainLang/pbrain/pkg/report"
	"github.com/pbrainLang/pbrain/pkg/types"
)

var log = commonlog.GetLogger("pbrain.cli")

var (
	flagVerbose    = flag.Int("v", 0, "Log verbosity (0 = quiet, 1 = info, 2 = debug)")
	flagConfig     = flag.String("config", "", "Config file (default: nearest pbrain.toml)")
	flagSize       = flag.Int("size", 0, "Number of cells")
	flagWidth      = flag.Int("width", 0, "Cell width in bits (8 or 16)")
	flagNoWrap     = flag.Bool("nowrap", false, "Fault on cell overflow instead of wrapping")
	flagThreshold  = flag.Int64("threshold", 0, "Operation budget (0 = unlimited)")
	flagTimeout    = flag.Duration("timeout", 0, "Wall clock limit (0 = none)")
	flagInput      = flag.String("input", "", "Program stdin text (default: piped stdin)")
	flagDebug      = flag.Bool("debug", false, "Run in an interactive debug session")
	flagBreak      = flag.String("break", "", "Comma separated breakpoint offsets")
	flagDisasm     = flag.Bool("disasm", false, "Disassemble instead of run")
	flagReport     = flag.String("report", "", "Write a CBOR run report to this file")
	flagStackTrace = flag.Bool("trace", true, "Print the stack trace on faults")
)

// exit statuses
const (
	exitOK     = 0
	exitFault  = 1
	exitSyntax = 2
	exitUsage  = 3
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] script.pb\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	commonlog.Configure(*flagVerbose, nil)

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(exitUsage)
	}

	os.Exit(run(args[0]))
}

func run(filename string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading %s: %v\n", filename, err)
		return exitUsage
	}
	source := string(data)

	mode := parser.Release
	if *flagDebug {
		mode = parser.Debug
	}
	compiled, err := parser.Compile(source, mode)
	if err != nil {
		var syntax parser.ValidationResult
		if errors.As(err, &syntax) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", filename, syntaxMessage(source, syntax))
			return exitSyntax
		}
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", filename, err)
		return exitSyntax
	}
	log.Infof("compiled %s: %d operators (%s)", filename, compiled.OperatorCount(), mode)

	if *flagDisasm {
		fmt.Print(parser.Disassemble(compiled))
		return exitOK
	}

	state, err := cfg.NewState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	ctx := context.Background()
	if d := cfg.Limits.Timeout.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var res *interpreter.Result
	switch prog := compiled.(type) {
	case *parser.Program:
		session := debugger.NewSession(prog, *flagInput, state, debugger.Options{
			Options:     cfg.Options(),
			Breakpoints: cfg.Debug.Breakpoints,
		})
		res = repl(ctx, session, os.Stdin, os.Stdout)
	case *parser.Executable:
		stdin, err := programInput()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsage
		}
		res = interpreter.Run(ctx, prog, stdin, state, cfg.Options())
		fmt.Print(res.Stdout)
	}

	if res == nil {
		return exitOK
	}
	if *flagReport != "" {
		if err := writeReport(*flagReport, compiled, res); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	if res.Exit.Code.IsFault() {
		printFault(os.Stderr, res)
		return exitFault
	}
	log.Infof("finished in %s after %d operations", res.Elapsed, res.TotalOperations)
	return exitOK
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *flagConfig != "" {
		cfg, err = config.LoadFile(*flagConfig)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	} else {
		log.Debugf("using config from %s", cfg.Dir)
	}

	var breakErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "size":
			cfg.Memory.Size = *flagSize
		case "width":
			cfg.Memory.CellWidth = *flagWidth
		case "nowrap":
			if *flagNoWrap {
				cfg.Memory.Overflow = "no-wrap"
			} else {
				cfg.Memory.Overflow = "wrap"
			}
		case "threshold":
			cfg.Limits.Threshold = *flagThreshold
		case "timeout":
			cfg.Limits.Timeout.Duration = *flagTimeout
		case "break":
			cfg.Debug.Breakpoints, breakErr = parseOffsets(*flagBreak)
		}
	})
	if breakErr != nil {
		return nil, breakErr
	}
	return cfg, cfg.Validate()
}

func parseOffsets(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("bad breakpoint %q: %w", field, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// programInput returns the text consumed by ','. Piped stdin is used when
// -input is not given; an interactive terminal is never read.
func programInput() (string, error) {
	if *flagInput != "" || term.IsTerminal(int(os.Stdin.Fd())) {
		return *flagInput, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func syntaxMessage(source string, r parser.ValidationResult) string {
	line, col := position(source, r.Offset)
	return fmt.Sprintf("%d:%d: %s (offset %d)", line, col, r.Kind, r.Offset)
}

// position converts a byte offset to a 1-based line and column.
func position(source string, offset int) (int, int) {
	offset = min(offset, len(source))
	before := source[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return line, col
}

func printFault(w io.Writer, res *interpreter.Result) {
	fmt.Fprintf(w, "\nError: %s", types.ErrorMessage(res.Exit.Code))
	h := res.Exit.Halted
	if h == nil {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, " at offset %d (%s)\n", h.Offset, h.Operator.Name())
	if *flagStackTrace {
		fmt.Fprint(w, "Stack trace:\n", h.StackTrace)
	}
}

func writeReport(path string, c parser.Compiled, res *interpreter.Result) error {
	data, err := report.Marshal(report.New(c, res))
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	log.Infof("report written to %s (%d bytes)", path, len(data))
	return nil
}

// elapsed formats durations for the REPL.
func elapsed(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
