package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"coderag/internal/rag"
	"coderag/internal/service"
)

const previewLines = 3

func newQueryCmd() *cobra.Command {
	var req service.SearchRequest

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the index for chunks similar to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req.Query = strings.Join(args, " ")
			resp, err := service.NewSearchService(a.store).Search(ctx, req)
			if err != nil {
				return err
			}

			printResults(cmd.OutOrStdout(), resp.Results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&req.K, "top-k", "k", service.DefaultK, "Number of results")
	cmd.Flags().StringVar(&req.Language, "language", "", "Only return chunks of this language")
	cmd.Flags().StringVar(&req.Source, "source", "", "Only return chunks of this file")
	cmd.Flags().BoolVar(&req.Rerank, "rerank", false, "Rerank results by lexical overlap with the query")
	return cmd
}

func printResults(w io.Writer, results []rag.QueryResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s\n", i+1, r)
		for _, line := range preview(r.Document, previewLines) {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// preview returns the first n non-blank lines of doc.
func preview(doc string, n int) []string {
	var lines []string
	for _, line := range strings.Split(doc, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t\r"))
		if len(lines) == n {
			break
		}
	}
	return lines
}
