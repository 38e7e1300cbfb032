package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
	"github.com/id-gotta-bike/gottabike-bot/internal/render"
)

var errLookupSubject = errors.New("exactly one of --discord-id or --zwift-id is required")

func newLookupCmd(opts *rootOptions) *cobra.Command {
	var (
		discordID string
		zwiftID   int64
	)
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up an athlete in the registration service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, subject, err := lookupSubject(discordID, zwiftID, cmd.Flags().Changed("zwift-id"))
			if err != nil {
				return err
			}
			client, _, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res := client.LookupAthlete(ctx, id)
			if !res.OK() {
				return fmt.Errorf("lookup failed: %s (status %d)", res.StatusMessage, res.StatusCode)
			}
			printEmbed(cmd.OutOrStdout(), render.LookupMessage(subject, res, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&discordID, "discord-id", "", "Discord user id")
	cmd.Flags().Int64Var(&zwiftID, "zwift-id", 0, "Zwift id")
	return cmd
}

func lookupSubject(discordID string, zwiftID int64, zwiftSet bool) (registration.AthleteIdentifier, render.LookupSubject, error) {
	switch {
	case discordID != "" && !zwiftSet:
		return registration.ByDiscordUser(discordID), render.LookupSubject{MemberMention: discordID}, nil
	case discordID == "" && zwiftSet:
		return registration.ByZwiftID(zwiftID), render.LookupSubject{ZwiftID: &zwiftID}, nil
	default:
		return nil, render.LookupSubject{}, errLookupSubject
	}
}

// printEmbed writes a message as plain text lines.
func printEmbed(w io.Writer, msg render.Message) {
	if msg.Content != "" {
		fmt.Fprintln(w, msg.Content)
	}
	for _, embed := range msg.Embeds {
		fmt.Fprintf(w, "== %s ==\n", embed.Title)
		for _, f := range embed.Fields {
			fmt.Fprintf(w, "%s: %s\n", f.Name, f.Value)
		}
	}
}
