package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [root] <question>",
		Short: "Ask the codebase a question",
		Long:  "Ask indexes the root first if its index is empty, then answers in the voice of the codebase's persona.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, question := "", args[0]
			if len(args) == 2 {
				root, question = args[0], args[1]
			}
			question = strings.TrimSpace(question)
			if question == "" {
				return fmt.Errorf("question must not be empty")
			}

			sess, err := a.openSession(root)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			status := cmd.ErrOrStderr()
			if _, err := sess.EnsureIndexed(ctx, narrate(status)); err != nil {
				return err
			}
			p, err := sess.InitPersona(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(status, "%s:\n", p.Name)

			out := cmd.OutOrStdout()
			for frag := range sess.Answer(ctx, question) {
				fmt.Fprint(out, frag)
			}
			fmt.Fprintln(out)
			return ctx.Err()
		},
	}
}
