package main

import (
	"fmt"
	"path/filepath"

	"github.com/codeprysm/codeprysm/internal/graphsource"
	"github.com/codeprysm/codeprysm/internal/merkle"
	"github.com/codeprysm/codeprysm/internal/partitioner"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "build or rebuild the code graph and hybrid search index",
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := rootCtx
	a, err := newApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer a.close()

	policy := merkle.DefaultExclusionPolicy()
	if err := policy.LoadIgnoreFiles(workspaceDir); err != nil {
		a.logger.Warn("load ignore files", "error", err)
	}

	tree, err := merkle.Build(ctx, workspaceDir, policy, a.logger)
	if err != nil {
		return fmt.Errorf("walk workspace: %w", err)
	}
	if err := tree.Save(filepath.Join(a.manager.PrismDir(), merkleFilename)); err != nil {
		return fmt.Errorf("save merkle tree: %w", err)
	}

	var producer graphsource.Producer = graphsource.FileGraphProducer{}
	if err := producer.BuildGraph(ctx, a.manager.Graph(), tree); err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	root := partitioner.DefaultRoot(a.manager.RootDiscovererFor(""))
	if root.Name == "" {
		root.Name = filepath.Base(absPath(workspaceDir))
	}

	stats, err := partitioner.Partition(ctx, a.manager.Graph(), a.manager.PrismDir(),
		a.manager.Manifest(), a.manager.CrossRefStore(), a.manager.CrossRefIndex(), root, a.logger)
	if err != nil {
		return fmt.Errorf("partition graph: %w", err)
	}
	if err := a.manager.SaveManifest(); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	idx := a.newIndexer()
	idxStats, err := idx.IndexGraph(ctx, a.manager.Graph())
	if err != nil {
		return fmt.Errorf("index graph: %w", err)
	}

	fmt.Printf("partitioned %d nodes, %d edges across %d partitions (%d cross-partition)\n",
		stats.TotalNodes, stats.TotalEdges, stats.PartitionCount, stats.CrossPartitionEdges)
	fmt.Printf("indexed %d/%d entities (%d semantic, %d code, %d skipped, %d failed)\n",
		idxStats.TotalIndexed, idxStats.TotalProcessed, idxStats.SemanticIndexed, idxStats.CodeIndexed,
		idxStats.TotalSkipped, idxStats.TotalFailed)
	return nil
}
