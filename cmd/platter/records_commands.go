package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"platter/internal/api"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Browse and edit the catalog",
	}

	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))
	recordsCmd.AddCommand(newRecordsAddCommand(ctx))
	recordsCmd.AddCommand(newRecordsDeleteCommand(ctx))
	recordsCmd.AddCommand(newRecordsImportCommand(ctx))
	recordsCmd.AddCommand(newRecordsExportCommand(ctx))

	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var (
		search string
		sort   string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			query := url.Values{}
			query.Set("limit", strconv.Itoa(limit))
			if search != "" {
				query.Set("q", search)
			}
			if sort != "" {
				query.Set("sort", sort)
			}
			path := "/api/records?" + query.Encode()
			var resp api.RecordListResponse
			if err := client.getJSON(cmd.Context(), path, &resp); err != nil {
				return err
			}

			rows := make([][]string, 0, len(resp.Items))
			for _, record := range resp.Items {
				year := ""
				if record.Year > 0 {
					year = strconv.Itoa(record.Year)
				}
				rows = append(rows, []string{
					strconv.FormatInt(record.ID, 10),
					record.Artist,
					record.Title,
					year,
					record.Label,
					record.Location,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Artist", "Title", "Year", "Label", "Location"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d records\n", len(resp.Items), resp.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by artist, title, label, catalog number, or barcode")
	cmd.Flags().StringVar(&sort, "sort", "", "sort key (artist, title, year, label, created_at)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to list")
	return cmd
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record with its tracklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			client := newAPIClient(cfg)

			var record api.RecordPayload
			if err := client.getJSON(cmd.Context(), fmt.Sprintf("/api/records/%d", id), &record); err != nil {
				return err
			}
			var tracks []api.TrackPayload
			if err := client.getJSON(cmd.Context(), fmt.Sprintf("/api/records/%d/tracks", id), &tracks); err != nil {
				return err
			}

			pairs := [][2]string{
				{"Artist", record.Artist},
				{"Title", record.Title},
			}
			if record.Year > 0 {
				pairs = append(pairs, [2]string{"Year", strconv.Itoa(record.Year)})
			}
			for _, pair := range [][2]string{
				{"Label", record.Label},
				{"Format", record.Format},
				{"Country", record.Country},
				{"Location", record.Location},
				{"Catalog #", record.CatalogNumber},
				{"Barcode", record.Barcode},
				{"Cover URL", record.CoverURL},
				{"Local cover", record.CoverLocal},
			} {
				if pair[1] != "" {
					pairs = append(pairs, pair)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKV(pairs))

			if len(tracks) > 0 {
				rows := make([][]string, 0, len(tracks))
				for _, track := range tracks {
					rows = append(rows, []string{track.Position, track.Title, track.Duration})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Pos", "Title", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight}))
			}
			return nil
		},
	}
}

func newRecordsAddCommand(ctx *commandContext) *cobra.Command {
	var payload api.RecordPayload

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			var created api.RecordPayload
			if err := client.postJSON(cmd.Context(), "/api/records", payload, &created); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created record %d: %s - %s\n", created.ID, created.Artist, created.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload.Artist, "artist", "", "artist name (required)")
	cmd.Flags().StringVar(&payload.Title, "title", "", "album title (required)")
	cmd.Flags().IntVar(&payload.Year, "year", 0, "release year")
	cmd.Flags().StringVar(&payload.Label, "label", "", "record label")
	cmd.Flags().StringVar(&payload.Location, "location", "", "shelf location")
	cmd.Flags().StringVar(&payload.CatalogNumber, "catno", "", "catalog number")
	cmd.Flags().StringVar(&payload.Barcode, "barcode", "", "barcode")
	cmd.Flags().StringVar(&payload.CoverURL, "cover-url", "", "manual cover image URL")
	_ = cmd.MarkFlagRequired("artist")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newRecordsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete records by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid record id %q", arg)
				}
				ids = append(ids, id)
			}
			client := newAPIClient(cfg)

			var resp api.DeleteResponse
			body := map[string][]int64{"ids": ids}
			if err := client.postJSON(cmd.Context(), "/api/records/bulk/delete", body, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d record(s)\n", resp.Deleted)
			return nil
		},
	}
}

func newRecordsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import records from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			var resp api.ImportResponse
			if err := client.postFile(cmd.Context(), "/api/import/csv", args[0], &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s), skipped %d\n", resp.Imported, resp.Skipped)
			return nil
		},
	}
}

func newRecordsExportCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			out := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer file.Close()
				out = file
			}
			return client.getRaw(cmd.Context(), "/api/records-export", out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to a file instead of stdout")
	return cmd
}
