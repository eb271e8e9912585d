// Package lazygraph is the central orchestrator (C8): it materializes
// partitions into an in-memory graph on demand, evicts under a
// byte-budgeted LRU, and answers node/edge queries with partition
// faulting transparent to the caller (spec §4.6).
package lazygraph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/codeprysm/codeprysm/internal/cache"
	"github.com/codeprysm/codeprysm/internal/codeerr"
	"github.com/codeprysm/codeprysm/internal/crossref"
	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/manifest"
	"github.com/codeprysm/codeprysm/internal/partition"
	"github.com/codeprysm/codeprysm/internal/registry"
)

// Stats aggregates manager-wide counters (spec §4.6.5).
type Stats struct {
	LoadedPartitions    int
	TotalPartitions     int
	LoadedNodes         int
	LoadedEdges         int
	CrossPartitionEdges int
	TotalFiles          int
	MemoryUsageBytes    int
	MemoryBudgetBytes   int
	CacheHitRate        float64
	CacheEvictions      int
}

// RootDiscoverer resolves which root owns a given repo-relative file
// path. Most workspaces have exactly one root; multi-root workspaces
// (spec §3.4, §4.5) implement a richer discoverer.
type RootDiscoverer interface {
	RootForFile(file string) string
}

// SingleRootDiscoverer always attributes every file to one fixed root
// name, the default for single-root workspaces.
type SingleRootDiscoverer struct {
	RootName string
}

// RootForFile implements RootDiscoverer.
func (d SingleRootDiscoverer) RootForFile(string) string { return d.RootName }

// Manager is the lazy graph manager. It owns the in-memory graph, the
// partition registry, the byte-budget cache, the manifest, and the
// cross-ref store/index, and is safe for concurrent use.
type Manager struct {
	prismDir string

	graph    *graph.Graph
	registry *registry.Registry
	cache    *cache.Cache
	manifest *manifest.Manifest
	crossRef *crossref.Index
	store    *crossref.Store

	discoverer RootDiscoverer
	logger     *slog.Logger
}

// Options configures a new Manager.
type Options struct {
	PrismDir   string
	Budget     *cache.Cache
	Discoverer RootDiscoverer
	Logger     *slog.Logger
}

// New constructs a Manager over an already-populated manifest and
// cross-ref store at prismDir. The in-memory graph starts empty; call
// LoadPartition or LoadAllPartitions to materialize partitions.
func New(opts Options) (*Manager, error) {
	if opts.PrismDir == "" {
		return nil, fmt.Errorf("lazygraph: PrismDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	man, err := manifest.Load(manifestPath(opts.PrismDir))
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	crossStore, err := crossref.Open(filepath.Join(opts.PrismDir, manifest.CrossRefsFilename))
	if err != nil {
		return nil, fmt.Errorf("open cross-ref store: %w", err)
	}
	crossIdx := crossref.NewIndex()
	refs, err := crossStore.LoadAll(context.Background())
	if err != nil {
		crossStore.Close()
		return nil, fmt.Errorf("load cross-refs: %w", err)
	}
	crossIdx.AddAll(refs)

	budget := opts.Budget
	if budget == nil {
		budget = cache.WithDefaultBudget()
	}
	discoverer := opts.Discoverer
	if discoverer == nil {
		discoverer = SingleRootDiscoverer{RootName: firstRootName(man)}
	}

	return &Manager{
		prismDir:   opts.PrismDir,
		graph:      graph.New(),
		registry:   registry.New(),
		cache:      budget,
		manifest:   man,
		crossRef:   crossIdx,
		store:      crossStore,
		discoverer: discoverer,
		logger:     logger,
	}, nil
}

func firstRootName(m *manifest.Manifest) string {
	names := m.RootNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func manifestPath(prismDir string) string {
	return filepath.Join(prismDir, "manifest.json")
}

// Close releases the cross-ref store handle.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Manifest returns the manifest the manager is operating over, for
// callers (e.g. the partitioner, the indexer) that need to read or
// extend it directly.
func (m *Manager) Manifest() *manifest.Manifest { return m.manifest }

// SaveManifest persists the current manifest to disk.
func (m *Manager) SaveManifest() error {
	return m.manifest.Save(manifestPath(m.prismDir))
}

// partitionPath returns the on-disk path for a partition ID, or false
// if the manifest doesn't know it.
func (m *Manager) partitionPath(partitionID string) (string, bool) {
	filename, ok := m.manifest.GetPartitionFile(partitionID)
	if !ok {
		return "", false
	}
	return filepath.Join(m.prismDir, manifest.PartitionsDirName, filename), true
}

// partitionForNode resolves the owning partition of a node ID: first
// consult the registry, then fall back to the manifest via the file
// prefix (spec §4.6.1).
func (m *Manager) partitionForNode(nodeID string) (string, bool) {
	if pid, ok := m.registry.GetNodePartition(nodeID); ok {
		return pid, true
	}
	file := graph.FilePrefix(nodeID)
	return m.manifest.GetPartitionForFile(file)
}

// EnsureLoaded guarantees the owning partition of nodeID is
// materialized in the in-memory graph, loading it on demand.
func (m *Manager) EnsureLoaded(ctx context.Context, nodeID string) error {
	pid, ok := m.partitionForNode(nodeID)
	if !ok {
		return fmt.Errorf("lazygraph: no partition known for node %q", nodeID)
	}
	return m.LoadPartition(ctx, pid)
}

// LoadPartition materializes partitionID into the in-memory graph
// using the double-checked, per-partition-locked algorithm of spec
// §4.6.2. It is a no-op if the partition is already loaded.
func (m *Manager) LoadPartition(ctx context.Context, partitionID string) error {
	if m.registry.IsLoaded(partitionID) {
		m.cache.Touch(partitionID)
		return nil
	}

	lock := m.registry.GetLoadingLock(partitionID)
	lock.Lock()
	defer lock.Unlock()

	// Double-check: another goroutine may have finished loading while
	// we waited for the lock.
	if m.registry.IsLoaded(partitionID) {
		m.cache.Touch(partitionID)
		return nil
	}
	m.cache.Touch(partitionID) // not yet tracked: records the load's cache miss

	path, ok := m.partitionPath(partitionID)
	if !ok {
		return codeerr.New(codeerr.KindPartitionNotFound, "lazygraph.LoadPartition",
			fmt.Errorf("%w: %s", codeerr.ErrPartitionNotFound, partitionID))
	}

	store, err := partition.Open(path, partitionID, m.logger)
	if err != nil {
		return fmt.Errorf("open partition %s: %w", partitionID, err)
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats partition %s: %w", partitionID, err)
	}
	estimate := cache.EstimateMemory(stats.NodeCount, stats.EdgeCount)

	if m.cache.MemoryNeededFor(estimate) > 0 {
		for _, victim := range m.cache.GetEvictionCandidatesFor(estimate) {
			if victim == partitionID {
				continue
			}
			m.unloadPartitionLocked(victim)
		}
	}

	nodes, err := store.QueryAllNodes(ctx)
	if err != nil {
		return fmt.Errorf("query nodes partition %s: %w", partitionID, err)
	}
	edges, err := store.QueryAllEdges(ctx)
	if err != nil {
		return fmt.Errorf("query edges partition %s: %w", partitionID, err)
	}

	nodeIDs := make([]string, 0, len(nodes))
	m.graph.Lock()
	for _, n := range nodes {
		m.graph.InsertNodeLocked(n)
		nodeIDs = append(nodeIDs, n.ID)
	}
	for _, e := range edges {
		m.graph.InsertEdgeLocked(e)
	}
	m.graph.Unlock()

	m.registry.RegisterLoaded(partitionID, nodeIDs)
	m.cache.RecordLoaded(partitionID, cache.NewPartitionStats(stats.NodeCount, stats.EdgeCount))
	return nil
}

// UnloadPartition removes partitionID's nodes (and their incident
// intra-partition edges) from the in-memory graph, and clears its
// registry/cache bookkeeping. It returns the number of nodes freed.
func (m *Manager) UnloadPartition(partitionID string) int {
	return m.unloadPartitionLocked(partitionID)
}

func (m *Manager) unloadPartitionLocked(partitionID string) int {
	nodeIDs := m.registry.Unregister(partitionID)
	m.cache.Remove(partitionID)
	m.graph.Lock()
	m.graph.RemoveNodesLocked(nodeIDs)
	m.graph.Unlock()
	return len(nodeIDs)
}

// LoadAllPartitions materializes every partition named in the
// manifest, bypassing the memory budget entirely — a documented,
// memory-heavy path (spec §4.6.2, §9).
func (m *Manager) LoadAllPartitions(ctx context.Context) error {
	for _, pid := range m.manifest.PartitionIDs() {
		if err := m.loadPartitionIgnoringBudget(ctx, pid); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) loadPartitionIgnoringBudget(ctx context.Context, partitionID string) error {
	if m.registry.IsLoaded(partitionID) {
		return nil
	}
	lock := m.registry.GetLoadingLock(partitionID)
	lock.Lock()
	defer lock.Unlock()
	if m.registry.IsLoaded(partitionID) {
		return nil
	}

	path, ok := m.partitionPath(partitionID)
	if !ok {
		return fmt.Errorf("lazygraph: partition %q not registered in manifest", partitionID)
	}
	store, err := partition.Open(path, partitionID, m.logger)
	if err != nil {
		return fmt.Errorf("open partition %s: %w", partitionID, err)
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats partition %s: %w", partitionID, err)
	}
	nodes, err := store.QueryAllNodes(ctx)
	if err != nil {
		return fmt.Errorf("query nodes partition %s: %w", partitionID, err)
	}
	edges, err := store.QueryAllEdges(ctx)
	if err != nil {
		return fmt.Errorf("query edges partition %s: %w", partitionID, err)
	}

	nodeIDs := make([]string, 0, len(nodes))
	m.graph.Lock()
	for _, n := range nodes {
		m.graph.InsertNodeLocked(n)
		nodeIDs = append(nodeIDs, n.ID)
	}
	for _, e := range edges {
		m.graph.InsertEdgeLocked(e)
	}
	m.graph.Unlock()

	m.registry.RegisterLoaded(partitionID, nodeIDs)
	m.cache.RecordLoaded(partitionID, cache.NewPartitionStats(stats.NodeCount, stats.EdgeCount))
	return nil
}

// GetNode returns a clone of the node with the given ID, loading its
// owning partition first if necessary.
func (m *Manager) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	if err := m.EnsureLoaded(ctx, id); err != nil {
		return nil, err
	}
	m.graph.RLock()
	defer m.graph.RUnlock()
	n := m.graph.GetNodeLocked(id)
	if n == nil {
		return nil, codeerr.New(codeerr.KindNodeNotFound, "lazygraph.GetNode", fmt.Errorf("%w: %s", codeerr.ErrNodeNotFound, id))
	}
	return n, nil
}

// NodeEdge pairs a resolved source/target node with the edge that
// connects it, for cross-partition-transparent edge queries (spec
// §4.6.3).
type NodeEdge struct {
	Node *graph.Node
	Edge *graph.Edge
}

// GetOutgoingEdges returns every outgoing edge of id, resolving
// cross-partition targets transparently. Ensures id's own partition
// is loaded first.
func (m *Manager) GetOutgoingEdges(ctx context.Context, id string) ([]NodeEdge, error) {
	if err := m.EnsureLoaded(ctx, id); err != nil {
		return nil, err
	}

	m.graph.RLock()
	intra := m.graph.OutgoingLocked(id)
	m.graph.RUnlock()

	out := make([]NodeEdge, 0, len(intra))
	for _, e := range intra {
		m.graph.RLock()
		target := m.graph.GetNodeLocked(e.Target)
		m.graph.RUnlock()
		if target != nil {
			out = append(out, NodeEdge{Node: target, Edge: e})
		}
	}

	for _, ref := range m.crossRef.GetBySource(id) {
		if err := m.LoadPartition(ctx, ref.TargetPartition); err != nil {
			m.logger.Warn("cross-ref target partition failed to load", "partition", ref.TargetPartition, "error", err)
			continue
		}
		m.graph.RLock()
		target := m.graph.GetNodeLocked(ref.TargetID)
		m.graph.RUnlock()
		if target != nil {
			out = append(out, NodeEdge{Node: target, Edge: ref.Edge()})
		}
	}
	return out, nil
}

// GetIncomingEdges returns every incoming edge of id: intra-partition
// edges found directly, plus cross-refs whose source partition is
// faulted in on demand (spec §4.6.3).
func (m *Manager) GetIncomingEdges(ctx context.Context, id string) ([]NodeEdge, error) {
	if err := m.EnsureLoaded(ctx, id); err != nil {
		return nil, err
	}

	m.graph.RLock()
	intra := m.graph.IncomingLocked(id)
	m.graph.RUnlock()

	out := make([]NodeEdge, 0, len(intra))
	for _, e := range intra {
		m.graph.RLock()
		source := m.graph.GetNodeLocked(e.Source)
		m.graph.RUnlock()
		if source != nil {
			out = append(out, NodeEdge{Node: source, Edge: e})
		}
	}

	for _, ref := range m.crossRef.GetByTarget(id) {
		if err := m.LoadPartition(ctx, ref.SourcePartition); err != nil {
			m.logger.Warn("cross-ref source partition failed to load", "partition", ref.SourcePartition, "error", err)
			continue
		}
		m.graph.RLock()
		source := m.graph.GetNodeLocked(ref.SourceID)
		m.graph.RUnlock()
		if source != nil {
			out = append(out, NodeEdge{Node: source, Edge: ref.Edge()})
		}
	}
	return out, nil
}

// AddCrossRef records a single cross-partition edge in the in-memory
// index.
func (m *Manager) AddCrossRef(r crossref.CrossRef) { m.crossRef.Add(r) }

// AddCrossRefs records multiple cross-partition edges.
func (m *Manager) AddCrossRefs(refs []crossref.CrossRef) { m.crossRef.AddAll(refs) }

// RemoveCrossRefsByPartition drops every cross-ref touching
// partitionID from the in-memory index. Callers rebuilding a partition
// must call this before re-emitting its cross-refs (spec §4.6.4).
func (m *Manager) RemoveCrossRefsByPartition(partitionID string) {
	m.crossRef.RemoveByPartition(partitionID)
}

// SaveCrossRefs persists the current in-memory index to the cross-ref
// store, replacing its prior contents.
func (m *Manager) SaveCrossRefs(ctx context.Context) error {
	return m.store.SaveAll(ctx, m.crossRef.Iter())
}

// ReloadCrossRefs discards the in-memory index and reloads it from the
// cross-ref store.
func (m *Manager) ReloadCrossRefs(ctx context.Context) error {
	refs, err := m.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("reload cross-refs: %w", err)
	}
	crossref.LoadInto(m.crossRef, refs)
	return nil
}

// Stats aggregates manager-wide counters (spec §4.6.5).
func (m *Manager) Stats() Stats {
	metrics := m.cache.Metrics()
	m.graph.RLock()
	loadedNodes := m.graph.NodeCountLocked()
	loadedEdges := m.graph.EdgeCountLocked()
	m.graph.RUnlock()

	return Stats{
		LoadedPartitions:    len(m.registry.LoadedPartitionIDs()),
		TotalPartitions:     len(m.manifest.PartitionIDs()),
		LoadedNodes:         loadedNodes,
		LoadedEdges:         loadedEdges,
		CrossPartitionEdges: m.crossRef.Len(),
		TotalFiles:          m.manifest.FileCount(),
		MemoryUsageBytes:    m.cache.CurrentBytes(),
		MemoryBudgetBytes:   m.cache.MaxBytes(),
		CacheHitRate:        metrics.HitRate(),
		CacheEvictions:      int(metrics.Evictions),
	}
}

// Graph exposes the underlying in-memory graph for components (the
// partitioner, the indexer) that operate on a fully materialized
// snapshot rather than through lazy accessors.
func (m *Manager) Graph() *graph.Graph { return m.graph }

// Registry exposes the partition registry for diagnostics.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Cache exposes the byte-budget cache for diagnostics.
func (m *Manager) Cache() *cache.Cache { return m.cache }

// RootDiscovererFor resolves the owning root for a file using the
// manager's configured RootDiscoverer.
func (m *Manager) RootDiscovererFor(file string) string {
	return m.discoverer.RootForFile(file)
}

// CrossRefStore exposes the on-disk cross-ref store so callers (the
// partitioner, the CLI) can persist cross-partition edges alongside a
// (re)partitioning pass.
func (m *Manager) CrossRefStore() *crossref.Store { return m.store }

// CrossRefIndex exposes the in-memory cross-ref index for the same reason.
func (m *Manager) CrossRefIndex() *crossref.Index { return m.crossRef }

// PrismDir returns the workspace's on-disk config directory.
func (m *Manager) PrismDir() string { return m.prismDir }
