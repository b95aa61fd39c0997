package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codesoul/internal/indexer"
)

func newIndexCmd(a *app) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Scan, chunk and embed a source tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(optionalArg(args, 0))
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			stats, err := sess.Ingest(cmd.Context(), reset, narrate(out))
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%d files scanned, %d indexed, %d skipped in %s.\n",
				stats.FilesScanned, stats.FilesIndexed, stats.FilesSkipped+stats.ScanSkipped, stats.Duration.Round(time.Millisecond))
			for _, skip := range stats.Skipped {
				fmt.Fprintf(out, "  skipped %s\n", skip.Error())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "drop the existing index before indexing")
	return cmd
}

// narrate prints each ingestion event as a line of w
func narrate(w io.Writer) indexer.ProgressFunc {
	return func(ev indexer.Event) {
		fmt.Fprintln(w, ev.Message)
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
