package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/session"
	"github.com/logweave/logweave/internal/ui"
)

func newViewCommand() *cobra.Command {
	var (
		useStdin    bool
		followPaths []string
		resort      bool
		noScores    bool
	)

	cmd := &cobra.Command{
		Use:   "view [log files...]",
		Short: "Open logs in the interactive merged viewer",
		Long: `View opens one or more logs as a single time-ordered sequence in an
interactive terminal viewer. Files load progressively, so even very large
logs become navigable immediately.

Use -f to keep following a file as it grows, and --stdin to weave in an
unbounded stream. Bookmarks and saved filters load from each file's
sidecar and are written back on save.`,
		Example: `  logweave view api.log db.log
  logweave view api.log -f worker.log
  kubectl logs -f pod | logweave view --stdin api.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), args, followPaths, useStdin, resort, !noScores)
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "read a stream source from stdin")
	cmd.Flags().StringArrayVarP(&followPaths, "follow", "f", nil, "load a file and keep following it (repeatable)")
	cmd.Flags().BoolVarP(&resort, "sort", "s", false, "re-sort sources after loading (for files written out of time order)")
	cmd.Flags().BoolVar(&noScores, "no-scores", false, "skip the anomaly scoring pass")

	return cmd
}

func runView(ctx context.Context, paths, followPaths []string, useStdin, resort, score bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.New("view", isVerbose)
	sources, err := openSources(ctx, cfg, log, paths, followPaths, useStdin)
	if err != nil {
		return err
	}

	// File loads finish in the background; the viewer shows their
	// progress. Followed files are handed to the watcher once their
	// initial load completes, and scoring runs after that.
	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		sources.waitLoaded()
		if resort {
			sources.resortAll()
		}
		if score && cfg.Scoring.Enabled {
			sources.scoreAll(ctx)
		}
	}()
	if len(followPaths) > 0 {
		go func() {
			if err := sources.watcher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("watcher stopped", logger.Err(err))
			}
		}()
	}

	// Sidecar bookmarks resolve against loaded lines, so the session load
	// waits for the initial loads and reaches the viewer as a message.
	sessions := session.NewStore(sources.idx, log.WithComponent("session"))
	loadSession := func() ui.SessionLoadedMsg {
		<-loaded
		bookmarks, broken, filters, err := sessions.Load()
		if err != nil {
			log.Warn("session load incomplete", logger.Err(err))
		}
		return ui.SessionLoadedMsg{Bookmarks: bookmarks, Filters: filters, Broken: len(broken)}
	}

	opts := ui.Options{
		PageSize:   cfg.Viewer.PageSize,
		ShowScores: cfg.Viewer.ShowScores,
		Timestamp:  cfg.Output.TimestampFormat,
		Live:       sources.following() || useStdin,
	}
	if err := ui.Run(sources.idx, sessions, opts, loadSession); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}
