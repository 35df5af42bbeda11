package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	var (
		language string
		stats    bool
	)
	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Print the classification of every token in a file",
		Long: "Classify lexes the file line by line and prints one span per line:\n" +
			"  line:start-end kind \"text\"\n" +
			"Lines and byte columns are 1-based. Use - to read stdin.",
		Args: cobra.ExactArgs(1),
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

			out := cmd.OutOrStdout()
			snap := doc.Snapshot()
			for _, sp := range doc.Spans(0, snap.LineCount()) {
				line := snap.Line(sp.Line)
				fmt.Fprintf(out, "%d:%d-%d %s %q\n", sp.Line+1, sp.Start+1, sp.End, sp.Kind, line[sp.Start:sp.End])
			}
			if stats {
				st := doc.ClassifierStats()
				fmt.Fprintf(out, "# language=%s lines=%d passes=%d resets=%d\n",
					doc.Language(), snap.LineCount(), st.Passes, st.Resets)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language name (default: by file extension)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print classifier statistics")
	return cmd
}
