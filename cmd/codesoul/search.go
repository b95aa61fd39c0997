package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		k       int
		asJSON  bool
		preview int
	)

	cmd := &cobra.Command{
		Use:   "search [root] <query>",
		Short: "Show the indexed chunks closest to a query",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, query := "", args[0]
			if len(args) == 2 {
				root, query = args[0], args[1]
			}
			if k <= 0 {
				k = a.cfg.TopK
			}

			sess, err := a.openSession(root)
			if err != nil {
				return err
			}
			defer sess.Close()

			results, err := sess.Search(cmd.Context(), query, k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Fprintln(out, "No results. Has this root been indexed?")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s:%d-%d (distance %.4f)\n", i+1, r.FilePath, r.StartLine, r.EndLine, r.Distance)
				for _, line := range firstLines(r.Content, preview) {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 0, "number of results (default top_k from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().IntVar(&preview, "preview", 3, "content lines shown per result")
	return cmd
}

func firstLines(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return lines
}
