package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tliron/commonlog"

	"github.com/chazu/tlang/compiler"
	"github.com/chazu/tlang/pkg/bytecode"
	"github.com/chazu/tlang/server"
	"github.com/chazu/tlang/store"
)

// ChunkExt is the extension of binary chunk files.
const ChunkExt = ".tbc"

// readSource reads a file, reporting failure the way every command does.
func (a *app) readSource(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "can't read file '%s': %v\n", path, err)
		return nil, false
	}
	return data, true
}

// loadChunk reads a .tbc chunk or assembles source. The int is the exit
// status to use when the chunk is nil.
func (a *app) loadChunk(path string) (*bytecode.Chunk, int) {
	data, ok := a.readSource(path)
	if !ok {
		return nil, bytecode.ExitUsage
	}

	var (
		chunk *bytecode.Chunk
		err   error
	)
	if strings.EqualFold(filepath.Ext(path), ChunkExt) {
		chunk, err = bytecode.UnmarshalChunk(data)
	} else {
		chunk, err = compiler.Assemble(string(data))
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "%s: %v\n", path, err)
		return nil, bytecode.ExitDataErr
	}
	return chunk, bytecode.ExitOK
}

// parseInterleaved parses flags that may appear before or after the
// positional arguments.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("tlang "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// cmdScan prints the tokens of a script.
func (a *app) cmdScan(path string) int {
	data, ok := a.readSource(path)
	if !ok {
		return bytecode.ExitUsage
	}

	tokens, err := compiler.Scan(string(data))
	for _, tok := range tokens {
		fmt.Fprintf(a.stdout, "%4d:%-3d %s\n", tok.Pos.Line, tok.Pos.Column, tok)
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "%s: %v\n", path, err)
		return bytecode.ResultOf(err).ExitCode()
	}
	return bytecode.ExitOK
}

// cmdAsm assembles a source file into a binary chunk.
func (a *app) cmdAsm(args []string) int {
	fs := a.newFlagSet("asm")
	out := fs.String("o", "", "Output file (default: input with .tbc extension)")
	files, err := parseInterleaved(fs, args)
	if err != nil {
		return bytecode.ExitUsage
	}
	if len(files) != 1 {
		fmt.Fprintln(a.stderr, "Usage: tlang asm <in.tasm> [-o out.tbc]")
		return bytecode.ExitUsage
	}
	in := files[0]

	chunk, code := a.loadChunk(in)
	if chunk == nil {
		return code
	}
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		fmt.Fprintf(a.stderr, "%s: %v\n", in, err)
		return bytecode.ExitSoftware
	}

	dest := *out
	if dest == "" {
		dest = strings.TrimSuffix(in, filepath.Ext(in)) + ChunkExt
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return bytecode.ExitUsage
	}
	a.logger.Debug("assembled", "in", in, "out", dest, "instructions", chunk.Len(), "bytes", len(data))
	return bytecode.ExitOK
}

// cmdExec runs a chunk and prints its RETURN report.
func (a *app) cmdExec(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "Usage: tlang exec <file>")
		return bytecode.ExitUsage
	}
	chunk, code := a.loadChunk(args[0])
	if chunk == nil {
		return code
	}

	opts := append(a.vmOptions(), bytecode.WithReport(a.stdout))
	out, err := bytecode.NewVM(chunk, opts...).Run()
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return bytecode.ResultOf(err).ExitCode()
	}
	a.logger.Debug("executed", "file", args[0], "steps", out.Steps)
	return bytecode.ExitOK
}

// cmdDis prints the listing of a chunk.
func (a *app) cmdDis(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "Usage: tlang dis <file>")
		return bytecode.ExitUsage
	}
	chunk, code := a.loadChunk(args[0])
	if chunk == nil {
		return code
	}
	if err := bytecode.Disassemble(a.stdout, chunk, filepath.Base(args[0])); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return bytecode.ExitSoftware
	}
	return bytecode.ExitOK
}

// cmdServe runs the execution server until interrupted.
func (a *app) cmdServe(args []string) int {
	fs := a.newFlagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "Listen address")
	workers := fs.Int("workers", a.cfg.Server.Workers, "Number of VM workers")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return bytecode.ExitUsage
	}

	opts := []server.ServerOption{
		server.WithWorkers(*workers),
		server.WithVMOptions(bytecode.WithStackMax(a.cfg.VM.StackMax)),
		server.WithLogger(a.logger),
	}
	if path := a.cfg.StorePath(); path != "" {
		chunks, err := store.Open(path)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		defer chunks.Close()
		opts = append(opts, server.WithStore(chunks))
		a.logger.Info("chunk store", "path", path)
	}

	srv := server.New(opts...)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()

	if err := srv.ListenAndServe(*addr); err != nil {
		srv.Stop()
		fmt.Fprintf(a.stderr, "Server error: %v\n", err)
		return 1
	}
	return bytecode.ExitOK
}

// cmdLsp runs the language server on stdio.
func (a *app) cmdLsp(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(a.stderr, "Usage: tlang lsp")
		return bytecode.ExitUsage
	}

	verbosity := 1
	if a.verbose {
		verbosity = 2
	}
	var logPath *string
	if p := a.cfg.LogFilePath(); p != "" {
		logPath = &p
	}
	commonlog.Configure(verbosity, logPath)

	lsp := server.NewLSP(bytecode.WithStackMax(a.cfg.VM.StackMax))
	if err := lsp.Run(); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(a.stderr, "LSP error: %v\n", err)
		return 1
	}
	return bytecode.ExitOK
}
