package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/tlang/compiler"
	"github.com/chazu/tlang/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "tlang-lsp"

// opcodeDocs is the hover text for each instruction.
var opcodeDocs = map[bytecode.Opcode]string{
	bytecode.OpReturn:   "Pops the top of the stack and ends the program with it. An empty stack ends it with no value.",
	bytecode.OpConst:    "Pushes a constant: a number, a string, or null.",
	bytecode.OpNegate:   "Negates the number on top of the stack. Fails on strings and null.",
	bytecode.OpAdd:      "Adds two numbers, or concatenates two strings. Mixed kinds give null.",
	bytecode.OpSubtract: "Subtracts the top number from the one below it. Mixed kinds give null.",
	bytecode.OpMultiply: "Multiplies two numbers. Mixed kinds give null.",
	bytecode.OpDivide:   "Divides the second number by the top one. Division by zero gives null.",
}

// LspServer provides editor support for tlang assembly: diagnostics,
// hover and mnemonic completion. Documents are also run on a worker VM so
// runtime failures show up as warnings.
type LspServer struct {
	pool *WorkerPool
	log  commonlog.Logger

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server with its own single-worker pool.
func NewLSP(opts ...bytecode.Option) *LspServer {
	s := &LspServer{
		pool:    NewWorkerPool(1, opts...),
		log:     commonlog.GetLogger(lspName),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	defer s.pool.Stop()
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Info("tlang LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.pool.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// document returns the stored text for uri.
func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(extractPrefix(text, params.Position)), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(word), nil
}

// complete lists mnemonics starting with prefix. An empty prefix lists
// them all.
func complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	upper := strings.ToUpper(prefix)
	for _, op := range bytecode.AllOpcodes() {
		info := bytecode.GetOpcodeInfo(op)
		label := strings.TrimPrefix(info.Name, "OP_")
		if !strings.HasPrefix(label, upper) && !strings.HasPrefix(info.Name, upper) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		detail := stackEffect(info)
		insert := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &insert,
		})
	}
	return items
}

// hover describes the instruction named by word.
func hover(word string) *protocol.Hover {
	op, ok := compiler.LookupMnemonic(word)
	if !ok {
		return nil
	}
	info := bytecode.GetOpcodeInfo(op)

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", info.Name)
	if info.HasOperand {
		b.WriteString(" `operand`")
	}
	fmt.Fprintf(&b, "\n\nStack: %s\n\n", stackEffect(info))
	if doc := opcodeDocs[op]; doc != "" {
		b.WriteString(doc)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func stackEffect(info bytecode.OpcodeInfo) string {
	return fmt.Sprintf("pops %d, pushes %d", info.StackPop, info.StackPush)
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := s.diagnose(context.Background(), text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose assembles text and, when that succeeds, runs it. Compile
// errors are reported as errors and a runtime failure as a warning.
func (s *LspServer) diagnose(ctx context.Context, text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	chunk, err := compiler.Assemble(text)
	if err != nil {
		var list compiler.ErrorList
		if !errors.As(err, &list) {
			return append(diagnostics, newDiagnostic(0, 0, protocol.DiagnosticSeverityError, err.Error()))
		}
		for _, e := range list {
			diagnostics = append(diagnostics,
				newDiagnostic(e.Pos.Line-1, e.Pos.Column-1, protocol.DiagnosticSeverityError, e.Msg))
		}
		return diagnostics
	}
	if chunk.Len() == 0 {
		return diagnostics
	}

	_, runErr := s.pool.Run(ctx, chunk)
	var rerr *bytecode.RuntimeError
	if errors.As(runErr, &rerr) {
		line := max(rerr.Line-1, 0)
		diagnostics = append(diagnostics,
			newDiagnostic(line, 0, protocol.DiagnosticSeverityWarning, rerr.Error()))
	} else if runErr != nil {
		s.log.Warningf("running document: %s", runErr)
	}
	return diagnostics
}

func newDiagnostic(line, col int, severity protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	source := lspName
	pos := protocol.Position{Line: protocol.UInteger(max(line, 0)), Character: protocol.UInteger(max(col, 0))}
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: pos},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// --- Text extraction helpers ---

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
