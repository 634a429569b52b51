package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/tlang/pkg/bytecode"
)

func fields(resp *connect.Response[structpb.Struct]) map[string]*structpb.Value {
	return resp.Msg.GetFields()
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func TestExecute_Arithmetic(t *testing.T) {
	svc := newTestExecService(t)
	chunk := assemble(t, "CONST 1.2\nCONST 3.4\nADD\nCONST 5.6\nDIVIDE\nNEGATE\nRETURN")

	resp, err := svc.Execute(bg(), connectReq(wrapperspb.Bytes(encode(t, chunk))))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	f := fields(resp)
	if !f["ok"].GetBoolValue() {
		t.Fatalf("Execute was not successful: %s", f["error"].GetStringValue())
	}
	if f["kind"].GetStringValue() != "double" {
		t.Errorf("kind = %q, want double", f["kind"].GetStringValue())
	}
	a, b, c := 1.2, 3.4, 5.6
	want := bytecode.Double(-((a + b) / c)).String()
	if f["value"].GetStringValue() != want {
		t.Errorf("value = %q, want %q", f["value"].GetStringValue(), want)
	}
	if f["result"].GetStringValue() != bytecode.InterpretOK.String() {
		t.Errorf("result = %q", f["result"].GetStringValue())
	}
	if f["exit_code"].GetNumberValue() != 0 {
		t.Errorf("exit_code = %v, want 0", f["exit_code"].GetNumberValue())
	}
	if f["steps"].GetNumberValue() != 7 {
		t.Errorf("steps = %v, want 7", f["steps"].GetNumberValue())
	}
	if len(f["id"].GetStringValue()) != 36 {
		t.Errorf("id = %q, want a UUID", f["id"].GetStringValue())
	}
}

func TestExecute_StringConcat(t *testing.T) {
	svc := newTestExecService(t)
	chunk := assemble(t, `CONST "foo"; CONST "bar"; ADD; RETURN`)

	resp, err := svc.Execute(bg(), connectReq(wrapperspb.Bytes(encode(t, chunk))))
	if err != nil {
		t.Fatal(err)
	}
	f := fields(resp)
	if f["kind"].GetStringValue() != "string" || f["value"].GetStringValue() != "foobar" {
		t.Errorf("got %s %q", f["kind"].GetStringValue(), f["value"].GetStringValue())
	}
}

func TestExecute_EmptyStack(t *testing.T) {
	svc := newTestExecService(t)
	resp, err := svc.Execute(bg(), connectReq(wrapperspb.Bytes(encode(t, assemble(t, "RETURN")))))
	if err != nil {
		t.Fatal(err)
	}
	f := fields(resp)
	if !f["ok"].GetBoolValue() || !f["empty"].GetBoolValue() {
		t.Errorf("ok=%v empty=%v, want both true", f["ok"].GetBoolValue(), f["empty"].GetBoolValue())
	}
}

func TestExecute_RuntimeErrorIsReported(t *testing.T) {
	svc := newTestExecService(t)
	chunk := assemble(t, "CONST 1\nADD\nRETURN")

	resp, err := svc.Execute(bg(), connectReq(wrapperspb.Bytes(encode(t, chunk))))
	if err != nil {
		t.Fatalf("runtime failures should not be RPC errors: %v", err)
	}
	f := fields(resp)
	if f["ok"].GetBoolValue() {
		t.Fatal("expected ok=false")
	}
	if msg := f["error"].GetStringValue(); !strings.Contains(msg, "stack underflow") || !strings.Contains(msg, "[line 2]") {
		t.Errorf("error = %q", msg)
	}
	if f["exit_code"].GetNumberValue() != float64(bytecode.ExitSoftware) {
		t.Errorf("exit_code = %v, want %d", f["exit_code"].GetNumberValue(), bytecode.ExitSoftware)
	}
}

func TestExecute_EmptyProgram(t *testing.T) {
	svc := newTestExecService(t)
	resp, err := svc.Execute(bg(), connectReq(wrapperspb.Bytes(encode(t, bytecode.NewChunk()))))
	if err != nil {
		t.Fatal(err)
	}
	if msg := fields(resp)["error"].GetStringValue(); !strings.Contains(msg, "no program") {
		t.Errorf("error = %q", msg)
	}
}

func TestExecute_BadPayload(t *testing.T) {
	svc := newTestExecService(t)

	_, err := svc.Execute(bg(), connectReq(wrapperspb.Bytes(nil)))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = svc.Execute(bg(), connectReq(wrapperspb.Bytes([]byte("not cbor"))))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestExecute_StoppedPool(t *testing.T) {
	svc := newTestExecService(t)
	svc.pool.Stop()

	_, err := svc.Execute(bg(), connectReq(wrapperspb.Bytes(encode(t, assemble(t, "RETURN")))))
	assertCode(t, err, connect.CodeUnavailable)
}

// ---------------------------------------------------------------------------
// Assemble / Disassemble
// ---------------------------------------------------------------------------

func TestExecute_ContextDoneWhileWorkersBusy(t *testing.T) {
	pool := newTestPool(t, 1)
	svc := NewExecService(pool, nil, quietLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	go pool.Do(bg(), func(*bytecode.VM) any {
		close(started)
		<-release
		return nil
	})
	<-started
	defer close(release)

	req := connectReq(wrapperspb.Bytes(encode(t, assemble(t, "RETURN"))))

	ctx, cancel := context.WithTimeout(bg(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Execute(ctx, req)
	assertCode(t, err, connect.CodeDeadlineExceeded)

	ctx, cancel = context.WithCancel(bg())
	cancel()
	_, err = svc.Execute(ctx, req)
	assertCode(t, err, connect.CodeCanceled)
}

func TestAssemble_RoundTrip(t *testing.T) {
	svc := newTestExecService(t)

	resp, err := svc.Assemble(bg(), connectReq(wrapperspb.String("CONST 2\nNEGATE\nRETURN")))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	chunk, err := bytecode.UnmarshalChunk(resp.Msg.GetValue())
	if err != nil {
		t.Fatal(err)
	}
	if chunk.Len() != 3 {
		t.Errorf("Len() = %d, want 3", chunk.Len())
	}

	dis, err := svc.Disassemble(bg(), connectReq(wrapperspb.Bytes(resp.Msg.GetValue())))
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if dis.Msg.GetValue() != chunk.Disassemble() {
		t.Errorf("listing mismatch:\n%s", dis.Msg.GetValue())
	}
}

func TestAssemble_Errors(t *testing.T) {
	svc := newTestExecService(t)

	_, err := svc.Assemble(bg(), connectReq(wrapperspb.String("   ")))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = svc.Assemble(bg(), connectReq(wrapperspb.String("JUMP 1")))
	assertCode(t, err, connect.CodeInvalidArgument)
	if !strings.Contains(err.Error(), "unknown instruction") {
		t.Errorf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Store / ExecuteStored
// ---------------------------------------------------------------------------

func TestStoreAndExecuteStored(t *testing.T) {
	svc := newTestExecService(t)
	data := encode(t, assemble(t, "CONST 6; CONST 7; MULTIPLY; RETURN"))

	stored, err := svc.Store(bg(), connectReq(wrapperspb.Bytes(data)))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	hash := stored.Msg.GetValue()
	if len(hash) != 64 {
		t.Fatalf("hash = %q", hash)
	}

	again, err := svc.Store(bg(), connectReq(wrapperspb.Bytes(data)))
	if err != nil || again.Msg.GetValue() != hash {
		t.Errorf("second Store = %q, %v; want same hash", again.Msg.GetValue(), err)
	}

	resp, err := svc.ExecuteStored(bg(), connectReq(wrapperspb.String(hash)))
	if err != nil {
		t.Fatalf("ExecuteStored: %v", err)
	}
	if v := fields(resp)["value"].GetStringValue(); v != "42" {
		t.Errorf("value = %q, want 42", v)
	}
}

func TestExecuteStored_Errors(t *testing.T) {
	svc := newTestExecService(t)

	_, err := svc.ExecuteStored(bg(), connectReq(wrapperspb.String("abc")))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = svc.ExecuteStored(bg(), connectReq(wrapperspb.String(strings.Repeat("0", 64))))
	assertCode(t, err, connect.CodeNotFound)

	_, err = svc.Store(bg(), connectReq(wrapperspb.Bytes([]byte{1, 2, 3})))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestStore_Unconfigured(t *testing.T) {
	svc := NewExecService(newTestPool(t, 1), nil, quietLogger())

	_, err := svc.Store(bg(), connectReq(wrapperspb.Bytes([]byte{1})))
	assertCode(t, err, connect.CodeUnimplemented)

	_, err = svc.ExecuteStored(bg(), connectReq(wrapperspb.String(strings.Repeat("0", 64))))
	assertCode(t, err, connect.CodeUnimplemented)
}
