package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/workspace"
)

var errParseErrors = errors.New("document has parse errors")

type jsonParseError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

type jsonParseResult struct {
	File      string           `json:"file"`
	Language  string           `json:"language"`
	Version   uint64           `json:"version"`
	RequestID string           `json:"request_id"`
	Duration  string           `json:"duration"`
	Tokens    int              `json:"tokens"`
	Errors    []jsonParseError `json:"errors"`
}

func newParseCmd(a *app) *cobra.Command {
	var (
		language string
		asJSON   bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a file in the background and report syntax errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, content, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			ws := a.newWorkspace()
			defer ws.CloseAll()
			doc, err := ws.Open(uri, language, content)
			if err != nil {
				return err
			}

			res, err := waitForResult(doc, timeout)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				jr := jsonParseResult{
					File:      args[0],
					Language:  doc.Language(),
					Version:   res.Version(),
					RequestID: res.RequestID().String(),
					Duration:  res.Duration().String(),
					Tokens:    len(res.Tokens()),
					Errors:    []jsonParseError{},
				}
				for _, e := range res.Errors() {
					jr.Errors = append(jr.Errors, jsonParseError{
						Line:    e.Range.Start.Line + 1,
						Column:  e.Range.Start.Column + 1,
						Message: e.Message,
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(jr); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
			} else {
				for _, e := range res.Errors() {
					fmt.Fprintf(out, "%s:%s\n", args[0], e)
				}
				fmt.Fprintf(out, "%s: %d errors (%s, v%d, %s)\n",
					args[0], res.ErrorCount(), doc.Language(), res.Version(), res.Duration())
			}

			if res.ErrorCount() > 0 {
				return errParseErrors
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language name (default: by file extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up waiting for the parse after this long")
	return cmd
}

// waitForResult returns the first published result for the document's
// current version.
func waitForResult(doc *workspace.Document, timeout time.Duration) (*parse.Result, error) {
	events := make(chan background.Event, 1)
	sub := doc.Subscribe(func(ev background.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer sub.Unsubscribe()

	if r := doc.LatestResult(); r != nil && r.Version() == doc.Version() {
		return r, nil
	}
	if err := doc.Reparse(false); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-events:
			if ev.Failure != nil {
				return nil, ev.Failure
			}
			if ev.Version == doc.Version() {
				return ev.Result, nil
			}
		case <-timer.C:
			return nil, fmt.Errorf("no parse result after %s", timeout)
		}
	}
}
