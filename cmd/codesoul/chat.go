package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/codesoul/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "chat [root]",
		Short: "Chat with the codebase in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(optionalArg(args, 0))
			if err != nil {
				return err
			}
			defer sess.Close()

			return tui.Run(cmd.Context(), sess, reset)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "rebuild the index before chatting")
	return cmd
}
