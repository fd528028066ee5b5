package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/entrylog/internal/db"
	"github.com/entrylog/internal/service"
	"github.com/spf13/cobra"
)

type seedEntry struct {
	Title     string
	Content   string
	Published bool
}

// 示例条目，用于本地开发
var sampleEntries = []seedEntry{
	{
		Title:     "Welcome to the blog",
		Content:   "This is the first entry.\n\nEntries are written in **Markdown** and can embed videos:\n\nhttps://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Published: true,
	},
	{
		Title:     "Writing with Markdown",
		Content:   "| Feature | Supported |\n|---|---|\n| Tables | yes |\n| Footnotes | yes[^1] |\n\n[^1]: Rendered at the bottom of the entry.",
		Published: true,
	},
	{
		Title:     "Searching entries",
		Content:   "Use the search box to find entries by any word in their title or body. The most relevant entries are listed first.",
		Published: true,
	},
	{
		Title:     "Unfinished thoughts",
		Content:   "Drafts are only visible after logging in.",
		Published: false,
	},
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample entries for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			created, err := seedEntries(cmd.Context(), service.NewEntryService(gdb, a.logger), sampleEntries, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entries\n", created)
			return nil
		},
	}
}

// seedEntries saves each sample, skipping those whose slug already exists.
func seedEntries(ctx context.Context, svc *service.EntryService, entries []seedEntry, out io.Writer) (int, error) {
	created := 0
	for _, sample := range entries {
		entry := service.NewEntry()
		_, err := svc.Save(ctx, entry, service.EntryForm{
			Title:     sample.Title,
			Content:   sample.Content,
			Published: sample.Published,
		})
		switch {
		case err == nil:
			created++
			fmt.Fprintf(out, "created %s\n", entry.Slug)
		case errors.Is(err, service.ErrDuplicateSlug):
			fmt.Fprintf(out, "skipped %q: already exists\n", sample.Title)
		default:
			return created, fmt.Errorf("seed %q: %w", sample.Title, err)
		}
	}
	return created, nil
}
