package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [file...]",
		Short: "Index the whole project, or only the given files (relative to the project root), and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				a.watcher.InitialIndex(ctx)
			} else {
				for _, path := range args {
					a.sync.IndexFile(ctx, path)
				}
			}

			s := a.sync.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "indexed files:  %d\n", s.Indexed)
			fmt.Fprintf(out, "skipped files:  %d\n", s.Skipped)
			fmt.Fprintf(out, "errors:         %d\n", s.Errors)
			fmt.Fprintf(out, "chunks stored:  %d\n", s.ChunksStored)
			if count, err := a.store.Count(ctx); err == nil {
				fmt.Fprintf(out, "collection %s: %d chunks\n", a.store.Collection(), count)
			}

			if s.Errors > 0 {
				return fmt.Errorf("%d files failed to index", s.Errors)
			}
			return nil
		},
	}
}
