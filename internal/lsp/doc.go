// Package lsp serves lexwork documents over the Language Server Protocol.
//
// The server keeps one workspace.Document per open text document. Changes
// are applied incrementally, classification is exposed through
// textDocument/semanticTokens/full, and each published background parse
// becomes a textDocument/publishDiagnostics notification stamped with the
// client's document version.
package lsp
