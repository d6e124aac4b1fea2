// Package git lists the files a working tree has changed so a run can be
// limited to them.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dotcommander/agentlint/internal/discovery"
)

// StagedFiles returns the validatable files in the staging area, relative
// to rootPath with forward slashes. Outside a repository it returns none.
func StagedFiles(rootPath string) ([]string, error) {
	if !IsRepo(rootPath) {
		return []string{}, nil
	}
	output, err := run(rootPath, "diff", "--name-only", "--relative", "--staged")
	if err != nil {
		return nil, err
	}
	return filterRelevantFiles(output, rootPath), nil
}

// ChangedFiles returns the validatable files with uncommitted changes,
// staged or not. Before the first commit every tracked file counts.
func ChangedFiles(rootPath string) ([]string, error) {
	if !IsRepo(rootPath) {
		return []string{}, nil
	}
	if _, err := run(rootPath, "rev-parse", "HEAD"); err != nil {
		output, err := run(rootPath, "ls-files")
		if err != nil {
			return nil, err
		}
		return filterRelevantFiles(output, rootPath), nil
	}

	output, err := run(rootPath, "diff", "--name-only", "--relative", "HEAD")
	if err != nil {
		return nil, err
	}
	untracked, err := run(rootPath, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return filterRelevantFiles(output+"\n"+untracked, rootPath), nil
}

// IsRepo reports whether rootPath is inside a git work tree.
func IsRepo(rootPath string) bool {
	_, err := run(rootPath, "rev-parse", "--git-dir")
	return err == nil
}

func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// filterRelevantFiles keeps the listed paths that still exist and that
// agentlint validates. The result is sorted and free of duplicates.
func filterRelevantFiles(gitOutput, rootPath string) []string {
	seen := make(map[string]bool)
	files := []string{}
	for _, line := range strings.Split(gitOutput, "\n") {
		rel := filepath.ToSlash(strings.TrimSpace(line))
		if rel == "" || seen[rel] {
			continue
		}
		seen[rel] = true

		// git reports deletions too
		if _, err := os.Stat(filepath.Join(rootPath, filepath.FromSlash(rel))); err != nil {
			continue
		}
		if discovery.DetectKind(rel) == discovery.KindUnknown {
			continue
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files
}
