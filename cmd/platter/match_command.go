package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"platter/internal/api"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match <photo>",
		Short: "Identify a record from a cover photo",
		Long:  "Uploads a photo of a record cover and matches it against the stored cover embeddings. Prints the identified record when the match is confident, or a ranked candidate list otherwise.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			var raw json.RawMessage
			if err := client.postFile(cmd.Context(), "/api/cover-match", args[0], &raw); err != nil {
				return err
			}

			// The endpoint serves two shapes; the confident one carries a
			// "match" field.
			var confident api.MatchConfidentResponse
			if err := json.Unmarshal(raw, &confident); err == nil && confident.Match != 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "matched record %d (score %.3f)\n", confident.Match, confident.Score)
				return nil
			}

			var list api.MatchListResponse
			if err := json.Unmarshal(raw, &list); err != nil {
				return fmt.Errorf("decode match response: %w", err)
			}
			if len(list.Candidates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no embeddings to match against; run 'platter embeddings rebuild' first")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "no confident match; closest candidates:")
			rows := make([][]string, 0, len(list.Candidates))
			for _, candidate := range list.Candidates {
				rows = append(rows, []string{
					strconv.FormatInt(candidate.ID, 10),
					candidate.Artist,
					candidate.Title,
					fmt.Sprintf("%.3f", candidate.Score),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Artist", "Title", "Score"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}
