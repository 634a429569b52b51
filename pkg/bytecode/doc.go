// Package bytecode provides the execution core of tlang: a compact chunk
// format and a stack-based virtual machine that interprets it.
//
// # Architecture Overview
//
//   - Value: a closed variant (double, string, null) with type-checked
//     arithmetic. Mixing kinds, or dividing by zero, yields Null rather than
//     an error.
//
//   - Opcodes: seven fixed-size instructions (RETURN, CONST, NEGATE, ADD,
//     SUBTRACT, MULTIPLY, DIVIDE). CONST carries an index into the constant
//     pool.
//
//   - Chunk: an append-only instruction sequence, a constant pool and a
//     run-length encoded line index. The index stores one (offset, line)
//     entry per change of source line and is binary searched, so long runs
//     of instructions from one line cost a single entry.
//
//   - Disassembler: renders chunks as text for tracing and tooling.
//
//   - VM: fetches instructions, maintains a bounded operand stack and
//     applies each instruction's effect. The only failures are structural
//     (empty program, stack underflow or overflow, bad fetch); they are
//     returned as *RuntimeError.
//
// # Wire Format
//
// Chunks serialize to canonical CBOR (MarshalChunk/UnmarshalChunk) so they
// can be written to .tbc files, sent over RPC and stored by content hash.
//
// # Concurrency
//
// A VM owns its stack and borrows its chunk for the duration of Run; it is
// not safe for concurrent use. Chunks are safe to share between VMs once
// they are no longer being appended to.
package bytecode
