package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [root]",
		Short: "Delete every indexed chunk for a root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(optionalArg(args, 0))
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index for %s cleared.\n", sess.Root())
			return nil
		},
	}
}
