package lazygraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codeprysm/codeprysm/internal/cache"
	"github.com/codeprysm/codeprysm/internal/crossref"
	"github.com/codeprysm/codeprysm/internal/graph"
	"github.com/codeprysm/codeprysm/internal/manifest"
	"github.com/codeprysm/codeprysm/internal/registry"
)

// InitWorkspace creates a brand-new, empty workspace at prismDir: an
// empty manifest and an empty cross-ref store, both persisted, ready
// for an initial partitioning pass. It fails if a manifest already
// exists there.
func InitWorkspace(prismDir string) (*Manager, error) {
	path := manifestPath(prismDir)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("lazygraph: workspace already initialized at %s", prismDir)
	}

	if err := os.MkdirAll(filepath.Join(prismDir, manifest.PartitionsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create prism dir: %w", err)
	}

	man := manifest.New()
	if err := man.Save(path); err != nil {
		return nil, fmt.Errorf("save initial manifest: %w", err)
	}

	crossStore, err := crossref.Open(filepath.Join(prismDir, manifest.CrossRefsFilename))
	if err != nil {
		return nil, fmt.Errorf("create cross-ref store: %w", err)
	}

	return &Manager{
		prismDir:   prismDir,
		graph:      graph.New(),
		registry:   registry.New(),
		cache:      cache.WithDefaultBudget(),
		manifest:   man,
		crossRef:   crossref.NewIndex(),
		store:      crossStore,
		discoverer: SingleRootDiscoverer{},
		logger:     slog.Default(),
	}, nil
}

// Open opens an existing workspace at prismDir (manifest and cross-ref
// store must already exist), equivalent to New with PrismDir set.
func Open(ctx context.Context, prismDir string, opts ...func(*Options)) (*Manager, error) {
	o := Options{PrismDir: prismDir}
	for _, apply := range opts {
		apply(&o)
	}
	return New(o)
}

// WithLogger sets the Manager's logger for the Open constructor form.
func WithLogger(logger *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithDiscoverer sets the Manager's RootDiscoverer for the Open
// constructor form.
func WithDiscoverer(d RootDiscoverer) func(*Options) {
	return func(o *Options) { o.Discoverer = d }
}

// WithBudget sets the Manager's cache budget for the Open constructor
// form.
func WithBudget(c *cache.Cache) func(*Options) {
	return func(o *Options) { o.Budget = c }
}
