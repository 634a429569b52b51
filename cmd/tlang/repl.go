package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/chazu/tlang/compiler"
	"github.com/chazu/tlang/pkg/bytecode"
)

const replHelp = `Enter assembly; each line is assembled and run on its own.
  CONST 1; CONST 2; ADD; RETURN

Commands:
  :trace    toggle instruction tracing
  :dis      toggle printing the listing before running
  :help     show this help
  exit      leave the shell`

// repl is the interactive shell. One VM is reused; every line becomes a
// fresh chunk.
func (a *app) repl() int {
	fmt.Fprintln(a.stdout, "tshell (type 'exit' to quit, ':help' for commands)")

	opts := append(a.vmOptions(), bytecode.WithReport(a.stdout))
	vm := bytecode.NewVM(nil, opts...)
	trace := a.cfg.VM.Trace
	dis := false

	scanner := bufio.NewScanner(a.stdin)
	for {
		fmt.Fprint(a.stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.stdout)
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "exit", "quit":
			return bytecode.ExitOK
		case ":help":
			fmt.Fprintln(a.stdout, replHelp)
			continue
		case ":trace":
			trace = !trace
			vm.SetTrace(trace)
			fmt.Fprintf(a.stdout, "trace %s\n", onOff(trace))
			continue
		case ":dis":
			dis = !dis
			fmt.Fprintf(a.stdout, "listing %s\n", onOff(dis))
			continue
		}
		if strings.HasPrefix(line, ":") {
			fmt.Fprintf(a.stdout, "unknown command %s (try :help)\n", line)
			continue
		}

		chunk, err := compiler.Assemble(line)
		if err != nil {
			fmt.Fprintln(a.stdout, err)
			continue
		}
		if dis {
			bytecode.Disassemble(a.stdout, chunk, "input")
		}
		vm.SetChunk(chunk)
		if _, err := vm.Run(); err != nil {
			fmt.Fprintln(a.stdout, err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return bytecode.ExitUsage
	}
	return bytecode.ExitOK
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
