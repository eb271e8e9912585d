package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codeprysm/codeprysm/internal/config"
	"github.com/codeprysm/codeprysm/internal/embedding"
	"github.com/codeprysm/codeprysm/internal/indexer"
	"github.com/codeprysm/codeprysm/internal/lazygraph"
	"github.com/codeprysm/codeprysm/internal/providerfactory"
	"github.com/codeprysm/codeprysm/internal/search"
	"github.com/codeprysm/codeprysm/internal/vectorstore"
)

// merkleFilename is the file name, inside the prism directory, of the
// persisted change-detection tree, alongside the manifest and cross-ref
// store.
const merkleFilename = "merkle.json"

// app bundles the services every subcommand needs, resolved once from
// the workspace's config.yaml and command-line flags.
type app struct {
	cfg      config.Config
	manager  *lazygraph.Manager
	provider embedding.Provider
	store    *vectorstore.Client
	logger   *slog.Logger
}

func newApp(ctx context.Context, workspaceDir string) (*app, error) {
	logger := slog.Default()

	cfg, err := config.Load(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.RepoID == "" {
		cfg.RepoID = filepath.Base(absPath(workspaceDir))
	}

	prismDir := filepath.Join(workspaceDir, config.ConfigDirName)

	var manager *lazygraph.Manager
	if _, statErr := os.Stat(filepath.Join(prismDir, "manifest.json")); os.IsNotExist(statErr) {
		manager, err = lazygraph.InitWorkspace(prismDir)
	} else {
		manager, err = lazygraph.Open(ctx, prismDir, lazygraph.WithLogger(logger))
	}
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	provider, err := providerfactory.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build embedding provider: %w", err)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Host:   cfg.VectorStore.Host,
		Port:   cfg.VectorStore.Port,
		APIKey: cfg.VectorStore.APIKey,
		UseTLS: cfg.VectorStore.UseTLS,
		RepoID: cfg.RepoID,
	})
	if err != nil {
		return nil, fmt.Errorf("dial vector store: %w", err)
	}

	return &app{cfg: cfg, manager: manager, provider: provider, store: store, logger: logger}, nil
}

func (a *app) close() {
	if a.manager != nil {
		_ = a.manager.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func (a *app) newIndexer() *indexer.Indexer {
	return indexer.New(indexer.Options{
		Store:              a.store,
		Provider:           a.provider,
		RepoID:             a.cfg.RepoID,
		EmbeddingBatchSize: a.cfg.Indexing.EmbeddingBatchSize,
		UpsertBatchSize:    a.cfg.Indexing.UpsertBatchSize,
		Logger:             a.logger,
	})
}

func (a *app) newSearcher() *search.Searcher {
	return search.New(a.store, a.provider)
}

func absPath(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
