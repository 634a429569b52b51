package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/tlang/compiler"
	"github.com/chazu/tlang/pkg/bytecode"
	"github.com/chazu/tlang/store"
)

// ExecServiceName is the fully qualified service name.
const ExecServiceName = "tlang.v1.ExecService"

// Procedure paths. Connect, gRPC and gRPC-Web clients all use these.
const (
	ExecuteProcedure       = "/" + ExecServiceName + "/Execute"
	AssembleProcedure      = "/" + ExecServiceName + "/Assemble"
	DisassembleProcedure   = "/" + ExecServiceName + "/Disassemble"
	StoreProcedure         = "/" + ExecServiceName + "/Store"
	ExecuteStoredProcedure = "/" + ExecServiceName + "/ExecuteStored"
)

// ExecService assembles, stores and runs chunks. Chunks travel in their
// CBOR wire form inside BytesValue messages.
type ExecService struct {
	pool   *WorkerPool
	store  *store.ChunkStore // nil disables Store and ExecuteStored
	logger *slog.Logger
}

// NewExecService creates an ExecService. chunks may be nil.
func NewExecService(pool *WorkerPool, chunks *store.ChunkStore, logger *slog.Logger) *ExecService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecService{
		pool:   pool,
		store:  chunks,
		logger: logger,
	}
}

// Handlers returns the procedure paths and handlers to mount on a mux.
func (s *ExecService) Handlers(opts ...connect.HandlerOption) map[string]http.Handler {
	return map[string]http.Handler{
		ExecuteProcedure:       connect.NewUnaryHandler(ExecuteProcedure, s.Execute, opts...),
		AssembleProcedure:      connect.NewUnaryHandler(AssembleProcedure, s.Assemble, opts...),
		DisassembleProcedure:   connect.NewUnaryHandler(DisassembleProcedure, s.Disassemble, opts...),
		StoreProcedure:         connect.NewUnaryHandler(StoreProcedure, s.Store, opts...),
		ExecuteStoredProcedure: connect.NewUnaryHandler(ExecuteStoredProcedure, s.ExecuteStored, opts...),
	}
}

// Execute decodes and runs a chunk. Runtime failures are reported in the
// result struct, not as RPC errors.
func (s *ExecService) Execute(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[structpb.Struct], error) {
	chunk, err := decodeChunk(req.Msg.GetValue())
	if err != nil {
		return nil, err
	}
	return s.run(ctx, chunk, "")
}

// Assemble compiles assembler source into wire bytes.
func (s *ExecService) Assemble(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.BytesValue], error) {
	source := req.Msg.GetValue()
	if strings.TrimSpace(source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	chunk, err := compiler.Assemble(source)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wrapperspb.Bytes(data)), nil
}

// Disassemble renders a chunk listing.
func (s *ExecService) Disassemble(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	chunk, err := decodeChunk(req.Msg.GetValue())
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.String(chunk.Disassemble())), nil
}

// Store saves a chunk and returns its hash.
func (s *ExecService) Store(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("no chunk store configured"))
	}
	if len(req.Msg.GetValue()) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("chunk is required"))
	}

	h, err := s.store.PutEncoded(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.logger.Info("stored chunk", "hash", h.Short(), "bytes", len(req.Msg.GetValue()))
	return connect.NewResponse(wrapperspb.String(h.String())), nil
}

// ExecuteStored runs a chunk previously saved with Store.
func (s *ExecService) ExecuteStored(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("no chunk store configured"))
	}
	h, err := store.ParseHash(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	chunk, err := s.store.Get(h)
	if errors.Is(err, store.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return s.run(ctx, chunk, h)
}

func (s *ExecService) run(ctx context.Context, chunk *bytecode.Chunk, h store.Hash) (*connect.Response[structpb.Struct], error) {
	id := uuid.NewString()
	logger := s.logger.With("id", id)
	if h != "" {
		logger = logger.With("hash", h.Short())
	}

	out, err := s.pool.Run(ctx, chunk)
	if err != nil && !bytecode.IsRuntimeError(err) {
		// The pool failed, not the program.
		if ctxErr := ctx.Err(); ctxErr != nil {
			code := connect.CodeCanceled
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				code = connect.CodeDeadlineExceeded
			}
			return nil, connect.NewError(code, ctxErr)
		}
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}

	result, err := executionStruct(id, out, err)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if msg := result.Fields["error"].GetStringValue(); msg != "" {
		logger.Warn("execution failed", "error", msg, "steps", out.Steps)
	} else {
		logger.Debug("execution finished", "result", out.String(), "steps", out.Steps)
	}
	return connect.NewResponse(result), nil
}

// executionStruct builds the Execute response:
// {id, ok, empty, kind, value, steps, error, result, exit_code}.
func executionStruct(id string, out bytecode.Outcome, runErr error) (*structpb.Struct, error) {
	res := bytecode.ResultOf(runErr)
	fields := map[string]any{
		"id":        id,
		"ok":        runErr == nil,
		"empty":     runErr == nil && out.Empty,
		"kind":      "",
		"value":     "",
		"steps":     out.Steps,
		"error":     "",
		"result":    res.String(),
		"exit_code": res.ExitCode(),
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
	} else if !out.Empty {
		fields["kind"] = out.Value.Kind().String()
		fields["value"] = out.Value.String()
	}
	return structpb.NewStruct(fields)
}

func decodeChunk(data []byte) (*bytecode.Chunk, error) {
	if len(data) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("chunk is required"))
	}
	chunk, err := bytecode.UnmarshalChunk(data)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return chunk, nil
}
