package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidRoot is returned when the walk root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid validation root")

// prunedDirs are never descended into.
var prunedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
}

// IsPrunedDir reports whether a directory with this name is never walked.
func IsPrunedDir(name string) bool {
	return prunedDirs[name]
}

// File represents a discovered file with its metadata
type File struct {
	Path    string
	RelPath string
	Kind    FileKind
}

// WalkOptions controls the sequential walk.
type WalkOptions struct {
	Exclude []string
	// NoIgnoreFiles disables .gitignore/.agentlintignore handling.
	NoIgnoreFiles bool
}

const probeName = "__agentlint_probe__"

type excludePattern struct {
	glob      string
	dirPrefix string
	probe     bool
}

func compileExcludes(patterns []string) ([]excludePattern, error) {
	out := make([]excludePattern, 0, len(patterns))
	for _, p := range patterns {
		norm := strings.ReplaceAll(p, `\`, "/")
		ep := excludePattern{glob: norm}
		if prefix, ok := strings.CutSuffix(norm, "/"); ok {
			ep.glob = prefix + "/**"
			ep.dirPrefix = prefix
		}
		ep.probe = ep.dirPrefix != "" || strings.Contains(ep.glob, "**")
		if !doublestar.ValidatePattern(ep.glob) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
		out = append(out, ep)
	}
	return out, nil
}

func pruneDir(rel string, excludes []excludePattern) bool {
	probe := rel + "/" + probeName
	for _, ep := range excludes {
		if ok, _ := doublestar.Match(ep.glob, rel); ok {
			return true
		}
		if ep.probe {
			if ok, _ := doublestar.Match(ep.glob, probe); ok {
				return true
			}
		}
	}
	return false
}

func excludedFile(rel string, excludes []excludePattern) bool {
	for _, ep := range excludes {
		if ok, _ := doublestar.Match(ep.glob, rel); ok && ep.dirPrefix != rel {
			return true
		}
	}
	return false
}

// Walk collects every classifiable file under root in lexical order. The walk
// is sequential: ignore files are stateful per directory and exclude globs are
// applied in order. Symlinks are never followed; a symlinked file is still
// returned so the read guard can report it.
func Walk(root string, opts WalkOptions) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	excludes, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}

	var ignores ignoreSet
	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			// Unreadable subtrees are skipped; files inside are reported by the guard when listed.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p != root {
				if prunedDirs[d.Name()] || pruneDir(rel, excludes) {
					return fs.SkipDir
				}
				if !opts.NoIgnoreFiles && ignores.ignored(rel, true) {
					return fs.SkipDir
				}
			} else {
				rel = ""
			}
			if !opts.NoIgnoreFiles {
				ignores.truncate(rel)
				if err := ignores.load(p, rel); err != nil {
					return fmt.Errorf("reading ignore files in %s: %w", p, err)
				}
			}
			return nil
		}

		if excludedFile(rel, excludes) {
			return nil
		}
		if !opts.NoIgnoreFiles {
			ignores.truncate(filepath.ToSlash(filepath.Dir(rel)))
			if ignores.ignored(rel, false) {
				return nil
			}
		}
		kind := DetectKind(rel)
		if kind == KindUnknown {
			return nil
		}
		files = append(files, File{Path: p, RelPath: rel, Kind: kind})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
