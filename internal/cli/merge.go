package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logweave/logweave/internal/formatter"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/logline"
	"github.com/logweave/logweave/internal/view"
)

func newMergeCommand() *cobra.Command {
	var (
		useStdin      bool
		resort        bool
		pattern       string
		caseSensitive bool
		withScores    bool
	)

	cmd := &cobra.Command{
		Use:   "merge [log files...]",
		Short: "Merge logs into one time-ordered sequence and print it",
		Long: `Merge loads the given logs completely, weaves them into a single
sequence ordered by timestamp (ties broken by source, then line number),
and writes the result to stdout in the selected output format.`,
		Example: `  logweave merge api.log db.log
  logweave merge --filter 'ERROR|FATAL' api.log db.log
  logweave merge --scores -o json api.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.Context(), args, useStdin, resort, pattern, caseSensitive, withScores)
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "read a stream source from stdin")
	cmd.Flags().BoolVarP(&resort, "sort", "s", false, "re-sort sources after loading")
	cmd.Flags().StringVar(&pattern, "filter", "", "only print lines whose message matches this pattern")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "match the filter pattern case-sensitively")
	cmd.Flags().BoolVar(&withScores, "scores", false, "run anomaly scoring and include scores in the output")

	return cmd
}

func runMerge(ctx context.Context, paths []string, useStdin, resort bool, pattern string, caseSensitive, withScores bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New("merge", isVerbose)
	sources, err := openSources(ctx, cfg, log, paths, nil, useStdin)
	if err != nil {
		return err
	}

	// Merge output is a complete snapshot: wait for every source,
	// including the stream if one was requested.
	sources.waitLoaded()
	if sources.stream != nil {
		if res := <-sources.stream; res.Err != nil {
			log.Warn("stream ended with error", logger.Err(res.Err))
		}
	}
	if resort {
		sources.resortAll()
	}
	if withScores {
		sources.scoreAll(ctx)
	}

	filtered := view.NewFilteredView(sources.idx)
	if pattern != "" {
		if err := filtered.SetPattern(pattern, caseSensitive); err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}
	filtered.RefreshIfNeeded()

	result := &formatter.Result{
		Filter:          pattern,
		ShowScores:      withScores,
		TimestampFormat: cfg.Output.TimestampFormat,
	}

	matched := make(map[int]int)
	result.Lines = make([]*logline.Line, 0, filtered.Len())
	for pos := 0; pos < filtered.Len(); pos++ {
		line, ok := filtered.Get(pos)
		if !ok {
			continue
		}
		result.Lines = append(result.Lines, line)
		matched[line.ID.SourceID]++
	}

	for _, info := range sources.idx.Sources() {
		store, err := sources.idx.Source(info.ID)
		if err != nil {
			continue
		}
		result.Sources = append(result.Sources, formatter.SourceSummary{
			Info:    info,
			Lines:   store.Len(),
			Matched: matched[info.ID],
		})
	}

	f, err := formatter.New(cfg.Output.DefaultFormat, colorEnabled(cfg))
	if err != nil {
		return err
	}
	out, err := f.Format(result)
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
