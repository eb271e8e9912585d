package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/codeprysm/codeprysm/internal/config"
	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/manifest"
	"github.com/codeprysm/codeprysm/internal/merkle"
	"github.com/codeprysm/codeprysm/internal/partitioner"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "watch the workspace and incrementally reindex on change",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "delay after a burst of events before reindexing")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := rootCtx
	a, err := newApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer a.close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(absPath(workspaceDir)); err != nil {
		return fmt.Errorf("watch workspace: %w", err)
	}

	reindex := func() {
		if err := reindexChanges(ctx, a); err != nil {
			a.logger.Error("incremental reindex failed", "error", err)
			return
		}
		a.logger.Info("reindex complete")
	}
	reindex()

	fmt.Fprintln(cmd.OutOrStdout(), "watching for changes (press Ctrl+C to exit)...")

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if filepath.Base(filepath.Dir(event.Name)) == config.ConfigDirName {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, reindex)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", "error", watchErr)
		}
	}
}

// reindexChanges re-walks the workspace, diffs the result against the
// last saved merkle tree, rewrites every partition the changeset
// touches, and reindexes only the affected nodes (spec §2 "Update"
// data flow: C10 -> changeset -> re-partition affected files via C9 +
// delete-by-file in C13, re-embed affected nodes via C15).
func reindexChanges(ctx context.Context, a *app) error {
	merklePath := filepath.Join(a.manager.PrismDir(), merkleFilename)

	prior, err := merkle.LoadTree(merklePath)
	if err != nil {
		prior = merkle.NewTree()
	}

	policy := merkle.DefaultExclusionPolicy()
	if err := policy.LoadIgnoreFiles(workspaceDir); err != nil {
		a.logger.Warn("load ignore files", "error", err)
	}
	next, err := merkle.Build(ctx, workspaceDir, policy, a.logger)
	if err != nil {
		return fmt.Errorf("walk workspace: %w", err)
	}

	changes := merkle.DetectChanges(prior, next)
	if len(changes.Added) == 0 && len(changes.Modified) == 0 && len(changes.Deleted) == 0 {
		return next.Save(merklePath)
	}

	root := partitioner.DefaultRoot(a.manager.RootDiscovererFor(""))
	if root.Name == "" {
		root.Name = filepath.Base(absPath(workspaceDir))
	}

	touched := make(map[string]bool)
	g := a.manager.Graph()

	g.Lock()
	for _, file := range changes.Deleted {
		g.RemoveNodesLocked([]string{file})
		touched[manifest.ComputePartitionID(root.Name, file)] = true
	}
	for _, file := range changes.Added {
		hash := next.Hashes[file]
		g.InsertNodeLocked(&graph.Node{
			ID: file, NodeType: graph.Container, Kind: "file",
			File: file, Line: 1, EndLine: 1, Hash: hash,
		})
		touched[manifest.ComputePartitionID(root.Name, file)] = true
	}
	for _, file := range changes.Modified {
		hash := next.Hashes[file]
		g.InsertNodeLocked(&graph.Node{
			ID: file, NodeType: graph.Container, Kind: "file",
			File: file, Line: 1, EndLine: 1, Hash: hash,
		})
		touched[manifest.ComputePartitionID(root.Name, file)] = true
	}
	g.Unlock()

	for partitionID := range touched {
		if err := partitioner.UpdatePartition(ctx, g, a.manager.PrismDir(), partitionID, root); err != nil {
			return fmt.Errorf("update partition %s: %w", partitionID, err)
		}
		a.manager.Manifest().RegisterPartition(partitionID, manifest.SanitizeFilename(partitionID))
	}
	for _, file := range changes.Added {
		a.manager.Manifest().SetFile(file, manifest.ComputePartitionID(root.Name, file), next.Hashes[file])
	}
	for _, file := range changes.Modified {
		a.manager.Manifest().SetFile(file, manifest.ComputePartitionID(root.Name, file), next.Hashes[file])
	}
	if err := a.manager.SaveManifest(); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	idx := a.newIndexer()
	if _, err := idx.IndexChanges(ctx, g, changes); err != nil {
		return fmt.Errorf("index changes: %w", err)
	}

	return next.Save(merklePath)
}
