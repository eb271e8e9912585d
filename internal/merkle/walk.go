package merkle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// hashChunkSize is the read buffer size used while hashing file
// contents (spec §4.8: "read in 8 KiB chunks").
const hashChunkSize = 8 * 1024

// maxHashWorkers bounds the data-parallel hashing pool.
const maxHashWorkers = 8

// Build walks root, honoring policy, and returns a Tree of
// relative_path -> hex SHA-256 content hash. The walk itself is
// single-threaded; hashing is data-parallel (spec §4.8).
func Build(ctx context.Context, root string, policy *ExclusionPolicy, logger *slog.Logger) (*Tree, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = DefaultExclusionPolicy()
	}

	paths, err := collectPaths(root, policy)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxHashWorkers)

	for i, relPath := range paths {
		i, relPath := i, relPath
		eg.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h, err := hashFile(filepath.Join(root, filepath.FromSlash(relPath)))
			if err != nil {
				logger.Warn("hash file failed, omitting from tree", "path", relPath, "error", err)
				return nil
			}
			hashes[i] = h
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	tree := NewTree()
	for i, relPath := range paths {
		if hashes[i] == "" {
			continue
		}
		tree.Hashes[relPath] = hashes[i]
	}
	return tree, nil
}

// collectPaths performs the single-threaded walk, returning
// POSIX-normalized relative paths that survive policy.
func collectPaths(root string, policy *ExclusionPolicy) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPosix := filepath.ToSlash(rel)

		if d.IsDir() {
			if policy.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if policy.ExcludeFile(relPosix) {
			return nil
		}
		out = append(out, relPosix)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
