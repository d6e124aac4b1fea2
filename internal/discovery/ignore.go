package discovery

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFiles are read in every directory during the walk, in this order.
var IgnoreFiles = []string{".gitignore", ".agentlintignore"}

type ignoreRule struct {
	base     string // slash path of the directory holding the ignore file, relative to root
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
}

// ignoreSet is an ordered list of gitignore-style rules. Later rules win.
type ignoreSet struct {
	rules []ignoreRule
}

// load appends the rules found in dir's ignore files. relDir is dir relative to root.
func (s *ignoreSet) load(dir, relDir string) error {
	for _, name := range IgnoreFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if r, ok := parseIgnoreLine(sc.Text(), relDir); ok {
				s.rules = append(s.rules, r)
			}
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func parseIgnoreLine(line, base string) (ignoreRule, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}
	r := ignoreRule{base: base}
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	line = strings.TrimPrefix(line, `\`)
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" || !doublestar.ValidatePattern(line) {
		return ignoreRule{}, false
	}
	r.pattern = line
	return r, true
}

// ignored reports whether rel (slash path relative to root) is ignored.
func (s *ignoreSet) ignored(rel string, isDir bool) bool {
	result := false
	for _, r := range s.rules {
		if r.dirOnly && !isDir {
			continue
		}
		sub := rel
		if r.base != "" {
			if !strings.HasPrefix(rel, r.base+"/") {
				continue
			}
			sub = strings.TrimPrefix(rel, r.base+"/")
		}
		var matched bool
		if r.anchored {
			matched, _ = doublestar.Match(r.pattern, sub)
		} else {
			matched, _ = doublestar.Match(r.pattern, path.Base(sub))
		}
		if matched {
			result = !r.negate
		}
	}
	return result
}

// truncate drops rules loaded for directories that are not ancestors of relDir.
func (s *ignoreSet) truncate(relDir string) {
	kept := s.rules[:0]
	for _, r := range s.rules {
		if r.base == "" || r.base == relDir || strings.HasPrefix(relDir, r.base+"/") {
			kept = append(kept, r)
		}
	}
	s.rules = kept
}
