package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "report graph and vector-index health for the workspace",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := rootCtx
	a, err := newApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer a.close()

	gStats := a.manager.Stats()
	fmt.Printf("graph:  %d/%d partitions loaded, %d nodes, %d edges (%d cross-partition)\n",
		gStats.LoadedPartitions, gStats.TotalPartitions, gStats.LoadedNodes, gStats.LoadedEdges, gStats.CrossPartitionEdges)
	fmt.Printf("cache:  %d/%d bytes, hit rate %.1f%%, %d evictions\n",
		gStats.MemoryUsageBytes, gStats.MemoryBudgetBytes, gStats.CacheHitRate*100, gStats.CacheEvictions)

	idxStatus, err := a.newSearcher().IndexStatus(ctx)
	if err != nil {
		return fmt.Errorf("index status: %w", err)
	}
	fmt.Printf("index:  %d semantic points, %d code points (empty=%v)\n",
		idxStatus.SemanticPoints, idxStatus.CodePoints, idxStatus.IsIndexEmpty())
	return nil
}
