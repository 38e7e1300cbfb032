package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the registration service self-test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, rc, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res := client.CheckAPI(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API server test response: %s\n", res.Outcome)
			fmt.Fprintf(out, "environment: %s\n", rc.Environment)
			if res.Check != nil {
				fmt.Fprintf(out, "source_ip: %s\nserver_version: %s\n", res.Check.SourceIP, res.Check.ServerVersion)
			}
			if res.Outcome != registration.CheckPassed {
				return fmt.Errorf("api check %s: %s (status %d)", res.Outcome, res.StatusMessage, res.StatusCode)
			}
			return nil
		},
	}
}
