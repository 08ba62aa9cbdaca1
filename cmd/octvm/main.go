// Command octvm is the CLI harness for running OctaneVM bytecode: load a
// raw bytecode file (or, with no file argument, a small embedded demo
// program built with pkg/octasm), run it to completion, and optionally
// print a disassembly trace first. Grounded on cmd/funxy/main.go's CLI
// entry-point shape (deleted file per DESIGN.md; hand-rolled flag parsing,
// panic-recover-with-friendly-message in main, os.Exit(1) on error).
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/octanevm/octane/internal/octfunc"
	"github.com/octanevm/octane/internal/octisa"
	"github.com/octanevm/octane/internal/octvm"
	"github.com/octanevm/octane/pkg/octasm"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "octvm: internal error: %v\n", r)
			os.Exit(1)
		}
	}()

	var trace bool
	var configPath string
	var bytecodePath string

	for _, arg := range os.Args[1:] {
		switch {
		case arg == "--trace" || arg == "-trace":
			trace = true
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			configPath = arg[len("--config="):]
		case bytecodePath == "":
			bytecodePath = arg
		default:
			fmt.Fprintf(os.Stderr, "octvm: unexpected argument %q\n", arg)
			os.Exit(1)
		}
	}

	cfg := octvm.DefaultConfig()
	if configPath != "" {
		loaded, err := octvm.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "octvm: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if trace {
		cfg.Trace = true
	}

	vm := octvm.New(cfg, nil)

	fn, err := loadProgram(vm, bytecodePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "octvm: %v\n", err)
		os.Exit(1)
	}
	defer fn.Release()

	if cfg.Trace {
		printTrace(fn)
	}

	state := vm.Run(fn)
	if state.Faulted {
		fmt.Fprintf(os.Stderr, "octvm: program faulted\n")
		os.Exit(1)
	}
	fmt.Printf("result: %d\n", state.Result.AsU64())
}

// loadProgram reads a raw bytecode file (instruction words back-to-back,
// no shared data) when path is non-empty, or builds the embedded demo
// program when it is empty.
func loadProgram(vm *octvm.VM, path string) (*octfunc.Function, error) {
	if path == "" {
		return demoProgram(vm)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bytecode file %q: %w", path, err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("bytecode file %q is not a whole number of 4-byte instruction words", path)
	}
	count := uint16(len(data) / 4)
	fn, code := octfunc.NewBytecode(vm.Allocator(), nil, count, 0)
	if code != 0 {
		return nil, fmt.Errorf("allocate function region: %v", code)
	}
	copy(fn.Code(), data)
	return fn, nil
}

// demoProgram sums 1..10 into r0 via a counted loop, exercising movimm,
// add, dec, and a backward conditional jump — small enough to read as a
// --trace example, substantial enough to be more than a no-op.
func demoProgram(vm *octvm.VM) (*octfunc.Function, error) {
	lines := []octasm.Line{
		octasm.Imm16Line("movimm", 0, 0),  // r0 = accumulator
		octasm.Imm16Line("movimm", 1, 10), // r1 = counter
		octasm.Labeled("loop", octasm.Reg3("add", 0, 1, 0)),
		octasm.Reg1("dec", 1),
		octasm.JumpTo("jmpnot0", 1, octisa.UnusedReg, "loop"),
		{Mnemonic: "ret"},
	}
	return octasm.Build(vm.Allocator(), nil, lines, 0)
}

func printTrace(fn *octfunc.Function) {
	text := octisa.Disassemble(fn.CodeWithPadding())
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Print(text)
		return
	}
	const (
		colorCyan  = "\x1b[36m"
		colorReset = "\x1b[0m"
	)
	for _, line := range splitLines(text) {
		fmt.Println(colorCyan + line + colorReset)
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
