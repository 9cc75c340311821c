package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"platter/internal/api"
)

func newEmbeddingsCommand(ctx *commandContext) *cobra.Command {
	embeddingsCmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Manage cover embeddings",
	}

	embeddingsCmd.AddCommand(newEmbeddingsRebuildCommand(ctx, "rebuild",
		"Re-embed every record with a resolvable cover", "/api/cover-embeddings/rebuild"))
	embeddingsCmd.AddCommand(newEmbeddingsRebuildCommand(ctx, "build-missing",
		"Embed only records without a stored embedding", "/api/cover-embeddings/build-missing"))

	return embeddingsCmd
}

func newEmbeddingsRebuildCommand(ctx *commandContext, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			fmt.Fprintln(cmd.OutOrStdout(), "running embedding job, this may take a while...")
			var summary api.RebuildResponse
			if err := client.postJSON(cmd.Context(), path, nil, &summary); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, skipped (no image) %d, errors %d\n",
				summary.Processed, summary.SkippedNoImage, summary.Errors)
			if summary.Errors > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "some records failed; re-run build-missing after fixing covers")
			}
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			var status api.StatusResponse
			if err := client.getJSON(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			encoder := "unhealthy"
			if status.EncoderHealthy {
				encoder = "healthy"
			}
			job := "idle"
			if status.JobRunning {
				job = "running"
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKV([][2]string{
				{"Records", fmt.Sprintf("%d", status.Records)},
				{"Embeddings", fmt.Sprintf("%d (%d current)", status.Embeddings, status.EmbeddingsCurrent)},
				{"Model", status.ModelVersion},
				{"Encoder", encoder},
				{"Embedding job", job},
			}))
			return nil
		},
	}
}
