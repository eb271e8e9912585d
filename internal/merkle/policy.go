package merkle

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// defaultExcludedDirs are directory names skipped entirely during the
// walk, regardless of ignore-file contents (spec §4.8).
var defaultExcludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"build":        true,
	"dist":         true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".env":         true,
	".idea":        true,
	".vscode":      true,
}

// defaultBinaryExtensions are object/binary extensions excluded from
// hashing.
var defaultBinaryExtensions = map[string]bool{
	".so": true, ".dylib": true, ".dll": true, ".exe": true, ".o": true,
	".a": true, ".bin": true, ".class": true, ".pyc": true, ".pyo": true,
	".jar": true, ".war": true, ".zip": true, ".tar": true, ".gz": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// IgnoreFileName is the project-specific ignore file honored on top of
// standard VCS ignore files.
const IgnoreFileName = ".codeprysmignore"

// ExclusionPolicy decides which paths the walk considers.
type ExclusionPolicy struct {
	ExcludedDirs     map[string]bool
	BinaryExtensions map[string]bool
	ExcludeHidden    bool
	patterns         []glob.Glob
}

// DefaultExclusionPolicy returns the policy described in spec §4.8.
func DefaultExclusionPolicy() *ExclusionPolicy {
	return &ExclusionPolicy{
		ExcludedDirs:     defaultExcludedDirs,
		BinaryExtensions: defaultBinaryExtensions,
		ExcludeHidden:    false,
	}
}

// LoadIgnoreFiles compiles glob patterns from .gitignore and
// .codeprysmignore files found at root, in addition to the built-in
// exclusions. Missing files are silently skipped.
func (p *ExclusionPolicy) LoadIgnoreFiles(root string) error {
	for _, name := range []string{".gitignore", IgnoreFileName} {
		path := filepath.Join(root, name)
		patterns, err := readIgnorePatterns(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for _, pat := range patterns {
			g, err := glob.Compile(pat, '/')
			if err != nil {
				// Malformed pattern; skip it rather than fail the whole load.
				continue
			}
			p.patterns = append(p.patterns, g)
		}
	}
	return nil
}

func readIgnorePatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

// SkipDir reports whether a directory named name should be pruned
// entirely from the walk.
func (p *ExclusionPolicy) SkipDir(name string) bool {
	if p.ExcludedDirs[name] {
		return true
	}
	if p.ExcludeHidden && strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	return false
}

// ExcludeFile reports whether relPath (POSIX, repo-relative) should be
// omitted from the tree: a binary extension, or a match against any
// loaded ignore pattern.
func (p *ExclusionPolicy) ExcludeFile(relPath string) bool {
	ext := strings.ToLower(filepath.Ext(relPath))
	if p.BinaryExtensions[ext] {
		return true
	}
	if p.ExcludeHidden && strings.HasPrefix(filepath.Base(relPath), ".") {
		return true
	}
	for _, g := range p.patterns {
		if g.Match(relPath) || g.Match(filepath.Base(relPath)) {
			return true
		}
	}
	return false
}
