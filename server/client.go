package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/tlang/pkg/bytecode"
)

// Client calls ExecService over gRPC.
type Client struct {
	conn   *grpc.ClientConn
	target string
}

// Dial creates a client for the server at target ("host:port"). The
// connection is plaintext HTTP/2 and is established lazily.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &Client{conn: conn, target: target}, nil
}

// Target returns the address the client was created for.
func (c *Client) Target() string { return c.target }

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Execution is the decoded result of Execute and ExecuteStored.
type Execution struct {
	ID       string
	OK       bool
	Empty    bool
	Kind     string
	Value    string
	Steps    int
	Error    string
	Result   string
	ExitCode int
}

func executionFrom(s *structpb.Struct) Execution {
	f := s.GetFields()
	return Execution{
		ID:       f["id"].GetStringValue(),
		OK:       f["ok"].GetBoolValue(),
		Empty:    f["empty"].GetBoolValue(),
		Kind:     f["kind"].GetStringValue(),
		Value:    f["value"].GetStringValue(),
		Steps:    int(f["steps"].GetNumberValue()),
		Error:    f["error"].GetStringValue(),
		Result:   f["result"].GetStringValue(),
		ExitCode: int(f["exit_code"].GetNumberValue()),
	}
}

// Execute runs chunk on the server.
func (c *Client) Execute(ctx context.Context, chunk *bytecode.Chunk) (Execution, error) {
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return Execution{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ExecuteProcedure, wrapperspb.Bytes(data), resp); err != nil {
		return Execution{}, err
	}
	return executionFrom(resp), nil
}

// ExecuteStored runs a chunk previously stored on the server.
func (c *Client) ExecuteStored(ctx context.Context, hash string) (Execution, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ExecuteStoredProcedure, wrapperspb.String(hash), resp); err != nil {
		return Execution{}, err
	}
	return executionFrom(resp), nil
}

// Store saves chunk on the server and returns its hash.
func (c *Client) Store(ctx context.Context, chunk *bytecode.Chunk) (string, error) {
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return "", err
	}
	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, StoreProcedure, wrapperspb.Bytes(data), resp); err != nil {
		return "", err
	}
	return resp.GetValue(), nil
}

// Assemble compiles source on the server.
func (c *Client) Assemble(ctx context.Context, source string) (*bytecode.Chunk, error) {
	resp := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, AssembleProcedure, wrapperspb.String(source), resp); err != nil {
		return nil, err
	}
	return bytecode.UnmarshalChunk(resp.GetValue())
}

// Disassemble returns the server's listing of chunk.
func (c *Client) Disassemble(ctx context.Context, chunk *bytecode.Chunk) (string, error) {
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return "", err
	}
	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, DisassembleProcedure, wrapperspb.Bytes(data), resp); err != nil {
		return "", err
	}
	return resp.GetValue(), nil
}
