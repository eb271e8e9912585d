// Package partitioner splits a fully materialized in-memory graph into
// on-disk partition databases, a cross-ref store, and a manifest
// (spec §3.3, §4.7).
package partitioner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codeprysm/codeprysm/internal/crossref"
	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/manifest"
	"github.com/codeprysm/codeprysm/internal/partition"
)

// Stats reports the shape of a partitioning pass, mirroring the
// original implementation's partition_with_stats sibling.
type Stats struct {
	TotalNodes          int
	TotalEdges          int
	PartitionCount      int
	CrossPartitionEdges int
	IntraPartitionEdges int
}

// RootOptions carries the root metadata registered alongside a
// partitioning pass (spec §4.7 step 6).
type RootOptions struct {
	Name         string
	RootType     manifest.RootType
	RelativePath string
	RemoteURL    string
	Branch       string
	Commit       string
}

// DefaultRoot returns a RootOptions describing a plain code root with
// no git metadata, used when callers don't care about root identity.
func DefaultRoot(name string) RootOptions {
	return RootOptions{Name: name, RootType: manifest.RootCode, RelativePath: "."}
}

// Partition splits g into per-directory partition databases under
// prismDir, persists cross-partition edges to the cross-ref store, and
// registers everything in man. It returns aggregate stats.
func Partition(ctx context.Context, g *graph.Graph, prismDir string, man *manifest.Manifest, crossStore *crossref.Store, crossIdx *crossref.Index, root RootOptions, logger *slog.Logger) (Stats, error) {
	nodes := g.IterNodes()
	edges := g.IterEdges()
	return partitionNodesAndEdges(ctx, nodes, edges, prismDir, man, crossStore, crossIdx, root, logger)
}

func partitionNodesAndEdges(ctx context.Context, nodes []*graph.Node, edges []*graph.Edge, prismDir string, man *manifest.Manifest, crossStore *crossref.Store, crossIdx *crossref.Index, root RootOptions, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Step 1/2: group nodes by partition ID, and build the
	// node_id -> partition_id map used for edge classification.
	nodeToPartition := make(map[string]string, len(nodes))
	byPartition := make(map[string][]*graph.Node)
	fileHashes := make(map[string]string)

	for _, n := range nodes {
		pid := manifest.ComputePartitionID(root.Name, n.File)
		nodeToPartition[n.ID] = pid
		byPartition[pid] = append(byPartition[pid], n)
		if n.Hash != "" {
			fileHashes[n.File] = n.Hash
		}
	}

	// Step 3: classify edges as intra, cross, or dropped.
	intraByPartition := make(map[string][]*graph.Edge)
	var crossRefs []crossref.CrossRef
	stats := Stats{TotalNodes: len(nodes)}

	for _, e := range edges {
		srcPID, srcOK := nodeToPartition[e.Source]
		dstPID, dstOK := nodeToPartition[e.Target]
		if !srcOK || !dstOK {
			// External reference; drop silently.
			continue
		}
		stats.TotalEdges++
		if srcPID == dstPID {
			intraByPartition[srcPID] = append(intraByPartition[srcPID], e)
			stats.IntraPartitionEdges++
			continue
		}
		crossRefs = append(crossRefs, crossref.CrossRef{
			SourceID:        e.Source,
			SourcePartition: srcPID,
			TargetID:        e.Target,
			TargetPartition: dstPID,
			EdgeType:        e.EdgeType,
			RefLine:         e.RefLine,
			Ident:           e.Ident,
			VersionSpec:     e.VersionSpec,
			IsDevDependency: e.IsDevDependency,
		})
		stats.CrossPartitionEdges++
	}

	partitionsDir := filepath.Join(prismDir, manifest.PartitionsDirName)
	if err := os.MkdirAll(partitionsDir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("create partitions dir: %w", err)
	}

	// Step 4: create each partition DB, bulk-insert its nodes and
	// intra edges, and register it plus its files in the manifest.
	for pid, pnodes := range byPartition {
		filename := manifest.SanitizeFilename(pid)
		path := filepath.Join(partitionsDir, filename)

		store, err := partition.Create(path, pid, logger)
		if err != nil {
			return Stats{}, fmt.Errorf("create partition %s: %w", pid, err)
		}
		if err := store.BulkInsert(ctx, pnodes, intraByPartition[pid]); err != nil {
			store.Close()
			return Stats{}, fmt.Errorf("bulk insert partition %s: %w", pid, err)
		}
		if err := store.Close(); err != nil {
			return Stats{}, fmt.Errorf("close partition %s: %w", pid, err)
		}

		man.RegisterPartition(pid, filename)
		for _, n := range pnodes {
			man.SetFile(n.File, pid, fileHashes[n.File])
		}
		stats.PartitionCount++
		logger.Debug("partitioned directory", "partition_id", pid, "nodes", len(pnodes), "edges", len(intraByPartition[pid]))
	}

	// Step 5: persist cross-partition edges.
	if crossStore != nil {
		if err := crossStore.SaveAll(ctx, crossRefs); err != nil {
			return Stats{}, fmt.Errorf("save cross-refs: %w", err)
		}
	}
	if crossIdx != nil {
		crossIdx.Clear()
		crossIdx.AddAll(crossRefs)
	}

	// Step 6: register the root.
	man.RegisterRoot(manifest.RootInfo{
		Name:         root.Name,
		RootType:     root.RootType,
		RelativePath: root.RelativePath,
		RemoteURL:    root.RemoteURL,
		Branch:       root.Branch,
		Commit:       root.Commit,
	})

	return stats, nil
}

// UpdatePartition rewrites one partition database end-to-end (clear
// then bulk-insert) from the current contents of g, restricted to the
// nodes and intra-partition edges that belong to partitionID. It does
// not touch the cross-ref store; callers must separately remove and
// re-emit that partition's cross-refs via the cross-ref index/store
// (spec §4.7).
func UpdatePartition(ctx context.Context, g *graph.Graph, prismDir, partitionID string, root RootOptions) error {
	nodes := g.IterNodes()
	edges := g.IterEdges()

	nodeToPartition := make(map[string]string, len(nodes))
	var ownNodes []*graph.Node
	for _, n := range nodes {
		pid := manifest.ComputePartitionID(root.Name, n.File)
		nodeToPartition[n.ID] = pid
		if pid == partitionID {
			ownNodes = append(ownNodes, n)
		}
	}

	var ownEdges []*graph.Edge
	for _, e := range edges {
		srcPID, srcOK := nodeToPartition[e.Source]
		dstPID, dstOK := nodeToPartition[e.Target]
		if !srcOK || !dstOK || srcPID != dstPID || srcPID != partitionID {
			continue
		}
		ownEdges = append(ownEdges, e)
	}

	filename := manifest.SanitizeFilename(partitionID)
	path := filepath.Join(prismDir, manifest.PartitionsDirName, filename)

	store, err := partition.Open(path, partitionID, nil)
	if err != nil {
		return fmt.Errorf("open partition %s for update: %w", partitionID, err)
	}
	defer store.Close()

	if err := store.ClearDataKeepSchema(ctx); err != nil {
		return fmt.Errorf("clear partition %s: %w", partitionID, err)
	}
	if err := store.BulkInsert(ctx, ownNodes, ownEdges); err != nil {
		return fmt.Errorf("rewrite partition %s: %w", partitionID, err)
	}
	return nil
}

// GetUniqueFiles returns the distinct file paths referenced by nodes
// in g.
func GetUniqueFiles(g *graph.Graph) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range g.IterNodes() {
		if n.File == "" || seen[n.File] {
			continue
		}
		seen[n.File] = true
		out = append(out, n.File)
	}
	return out
}
