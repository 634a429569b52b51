// tlang CLI - assembles, runs and serves tlang bytecode
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chazu/tlang/manifest"
	"github.com/chazu/tlang/pkg/bytecode"
)

// app carries what every subcommand needs.
type app struct {
	cfg     *manifest.Manifest
	logger  *slog.Logger
	verbose bool
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer, fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(w, "Usage: tlang [options] [script | command args...]\n\n")
		fmt.Fprintf(w, "With no arguments, starts the interactive shell.\n")
		fmt.Fprintf(w, "With a script, scans it and prints its tokens.\n\n")
		fmt.Fprintf(w, "Commands:\n")
		fmt.Fprintf(w, "  asm <in.tasm> [-o out.tbc]   Assemble to the binary chunk format\n")
		fmt.Fprintf(w, "  exec <file>                  Run a .tbc chunk or assembly source\n")
		fmt.Fprintf(w, "  dis <file>                   Disassemble a .tbc chunk or assembly source\n")
		fmt.Fprintf(w, "  serve [-addr host:port]      Start the execution server (Connect + gRPC)\n")
		fmt.Fprintf(w, "  lsp                          Start the language server on stdio\n")
		fmt.Fprintf(w, "\nOptions:\n")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
}

// run is main without the process exit, returning the exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tlang", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to tlang.toml (default: search upward from the working directory)")
	trace := fs.Bool("trace", false, "Trace every instruction")
	stackMax := fs.Int("stack-max", 0, "Maximum operand stack depth (default from config, else 128)")
	verbose := fs.Bool("v", false, "Verbose (debug) logging")
	fs.SetOutput(io.Discard)
	fs.Usage = usage(stderr, fs)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fs.Usage()
			return bytecode.ExitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return bytecode.ExitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return bytecode.ExitUsage
	}
	if *trace {
		cfg.VM.Trace = true
	}
	if *stackMax != 0 {
		cfg.VM.StackMax = *stackMax
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "Error: -stack-max: %v\n", err)
			return bytecode.ExitUsage
		}
	}

	logger, closer, err := newLogger(cfg, *verbose, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return bytecode.ExitUsage
	}
	defer closer.Close()

	a := &app{cfg: cfg, logger: logger, verbose: *verbose, stdin: stdin, stdout: stdout, stderr: stderr}
	if cfg.Dir != "." {
		logger.Debug("loaded config", "dir", cfg.Dir, "project", cfg.Project.Name)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return a.repl()
	}

	switch rest[0] {
	case "asm":
		return a.cmdAsm(rest[1:])
	case "exec":
		return a.cmdExec(rest[1:])
	case "dis":
		return a.cmdDis(rest[1:])
	case "serve":
		return a.cmdServe(rest[1:])
	case "lsp":
		return a.cmdLsp(rest[1:])
	}

	if len(rest) > 1 {
		fmt.Fprintln(stderr, "Usage: tlang [script]")
		return bytecode.ExitUsage
	}
	return a.cmdScan(rest[0])
}

// loadConfig loads the explicit config file, or the nearest tlang.toml,
// or the defaults.
func loadConfig(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	cfg, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = manifest.Default()
	}
	return cfg, nil
}

// vmOptions builds VM options from the configuration. Trace output and
// RETURN reports go to stdout.
func (a *app) vmOptions() []bytecode.Option {
	return []bytecode.Option{
		bytecode.WithStackMax(a.cfg.VM.StackMax),
		bytecode.WithTrace(a.cfg.VM.Trace),
		bytecode.WithTraceOutput(a.stdout),
	}
}
