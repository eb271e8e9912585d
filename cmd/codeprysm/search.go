package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeprysm/codeprysm/internal/search"
	"github.com/spf13/cobra"
)

var (
	searchMode        string
	searchLimit       int
	searchEntityTypes []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "run a hybrid semantic/lexical search over the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "", `search mode: "" (hybrid), "code", or "info"`)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results to return")
	searchCmd.Flags().StringSliceVar(&searchEntityTypes, "entity-type", nil, "restrict to entity types (Container, Callable, Data)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := rootCtx
	a, err := newApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args, " ")
	results, err := a.newSearcher().Search(ctx, query, search.Options{
		Mode:        search.Mode(searchMode),
		EntityTypes: searchEntityTypes,
		Limit:       searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for i, r := range results {
		name, _ := r.Payload["name"].(string)
		file, _ := r.Payload["file_path"].(string)
		fmt.Printf("%2d. %-40s %.3f  %s\n", i+1, name, r.Score, file)
	}
	return nil
}
