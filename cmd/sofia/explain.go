package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "explain <message>",
		Short: "Show which intent a message routes to and why",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, logger, err := build(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer func() {
				_ = res.Cleanup()
				_ = logger.Sync()
			}()

			decision := res.Assistant.Explain(userID, strings.Join(args, " "))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "terminal", "user id whose session state is consulted")
	return cmd
}
