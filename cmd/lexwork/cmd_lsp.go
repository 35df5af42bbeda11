package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/lsp"
)

func newLSPCmd(a *app) *cobra.Command {
	var (
		tcp   string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: "Serve semantic tokens and parse diagnostics over LSP.\n" +
			"Logs go to stderr or --log-file; stdout carries the protocol.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := a.newWorkspace()
			defer ws.CloseAll()

			server := lsp.New(ws, version, lsp.WithDebug(debug), lsp.WithLogger(logging.Get("lsp")))
			if tcp != "" {
				return server.RunTCP(tcp)
			}
			return server.RunStdio()
		},
	}
	cmd.Flags().StringVar(&tcp, "tcp", "", "listen on this address instead of stdio")
	cmd.Flags().BoolVar(&debug, "debug", false, "log JSON-RPC messages")
	return cmd
}
