package merkle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildSkipsExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.go", "package a")
	writeFile(t, root, "node_modules/dep/index.js", "ignored")
	writeFile(t, root, "build/out.bin", "ignored")

	tree, err := Build(context.Background(), root, DefaultExclusionPolicy(), nil)
	require.NoError(t, err)

	require.Contains(t, tree.Hashes, "src/a.go")
	require.NotContains(t, tree.Hashes, "node_modules/dep/index.js")
	require.NotContains(t, tree.Hashes, "build/out.bin")
}

func TestBuildExcludesBinaryExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "assets/logo.png", "binary")
	writeFile(t, root, "src/b.go", "package b")

	tree, err := Build(context.Background(), root, DefaultExclusionPolicy(), nil)
	require.NoError(t, err)

	require.NotContains(t, tree.Hashes, "assets/logo.png")
	require.Contains(t, tree.Hashes, "src/b.go")
}

func TestExclusionPolicyRespectsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".codeprysmignore", "vendor/**\n*.generated.go\n")
	writeFile(t, root, "vendor/lib/x.go", "package x")
	writeFile(t, root, "pkg/thing.generated.go", "package pkg")
	writeFile(t, root, "pkg/thing.go", "package pkg")

	policy := DefaultExclusionPolicy()
	require.NoError(t, policy.LoadIgnoreFiles(root))

	tree, err := Build(context.Background(), root, policy, nil)
	require.NoError(t, err)

	require.NotContains(t, tree.Hashes, "vendor/lib/x.go")
	require.NotContains(t, tree.Hashes, "pkg/thing.generated.go")
	require.Contains(t, tree.Hashes, "pkg/thing.go")
}

func TestDetectChangesClassifiesCorrectly(t *testing.T) {
	old := NewTree()
	old.Hashes["a.go"] = "hash-a"
	old.Hashes["b.go"] = "hash-b"
	old.Hashes["c.go"] = "hash-c"

	next := NewTree()
	next.Hashes["a.go"] = "hash-a"       // unchanged
	next.Hashes["b.go"] = "hash-b-new"   // modified
	next.Hashes["d.go"] = "hash-d"       // added
	// c.go deleted

	changes := DetectChanges(old, next)

	require.ElementsMatch(t, []string{"b.go"}, changes.Modified)
	require.ElementsMatch(t, []string{"d.go"}, changes.Added)
	require.ElementsMatch(t, []string{"c.go"}, changes.Deleted)
	require.ElementsMatch(t, []string{"b.go", "d.go"}, changes.FilesToProcess())
}

func TestTreeSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	tree := NewTree()
	tree.Hashes["a.go"] = "hash-a"
	require.NoError(t, tree.Save(path))

	loaded, err := LoadTree(path)
	require.NoError(t, err)
	require.Equal(t, tree.Hashes, loaded.Hashes)
}

func TestLoadTreeMissingFileYieldsEmptyTree(t *testing.T) {
	tree, err := LoadTree(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Empty(t, tree.Hashes)
}
