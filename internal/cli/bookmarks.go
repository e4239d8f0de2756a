package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logweave/logweave/internal/emoji"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/session"
)

func newBookmarksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmarks <log files...>",
		Short: "List the bookmarks saved for the given logs",
		Long: `Bookmarks reads each log's sidecar file and prints the bookmarks it
holds, with the bookmarked line's text. Bookmarks whose line no longer
exists (for example after the file was truncated and rewritten) are
listed as broken.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookmarks(cmd.Context(), args)
		},
	}
	return cmd
}

func runBookmarks(ctx context.Context, paths []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New("bookmarks", isVerbose)
	sources, err := openSources(ctx, cfg, log, paths, nil, false)
	if err != nil {
		return err
	}
	sources.waitLoaded()

	store := session.NewStore(sources.idx, log.WithComponent("session"))
	valid, broken, filters, err := store.Load()
	if err != nil {
		return err
	}

	names := make(map[int]string)
	for _, info := range sources.idx.Sources() {
		names[info.ID] = info.Name
	}

	if len(valid) == 0 && len(broken) == 0 {
		fmt.Println("no bookmarks")
	}
	for _, b := range valid {
		line, err := sources.idx.Get(b.ID)
		if err != nil {
			continue
		}
		fmt.Printf("%s %s:%d  %s  %s\n",
			emoji.GetEmoji("bookmark"),
			names[b.ID.SourceID], b.ID.LineNumber,
			b.Label, line.Message)
	}
	for _, b := range broken {
		fmt.Printf("%s %s:%d  %s  (line no longer exists)\n",
			emoji.GetEmoji("warning"),
			names[b.ID.SourceID], b.ID.LineNumber, b.Label)
	}

	if len(filters) > 0 {
		fmt.Printf("\n%s saved filters:\n", emoji.GetEmoji("filter"))
		for _, f := range filters {
			sensitivity := "case-insensitive"
			if f.CaseSensitive {
				sensitivity = "case-sensitive"
			}
			fmt.Printf("  %s  (%s)\n", f.Pattern, sensitivity)
		}
	}
	return nil
}
