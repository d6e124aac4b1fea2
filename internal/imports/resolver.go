package imports

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotcommander/agentlint/internal/frontend"
)

// DefaultMaxDepth is the longest import chain followed from a root file.
const DefaultMaxDepth = 5

// Outcome classifies the resolution of one import edge.
type Outcome int

const (
	Found Outcome = iota
	NotFound
	Escapes
	CycleDetected
	DepthExceeded
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not-found"
	case Escapes:
		return "escapes"
	case CycleDetected:
		return "cycle"
	case DepthExceeded:
		return "depth-exceeded"
	default:
		return "unknown"
	}
}

// Resolution is the result of resolving a single token.
type Resolution struct {
	Outcome Outcome
	Path    string
}

// Finding is a problem discovered while walking an import graph.
type Finding struct {
	Outcome Outcome
	// File is the importing file the finding belongs to.
	File   string
	Import frontend.Import
	Target string
	// Chain lists the files involved: the cycle starting and ending at File,
	// or the path from the root that ran too deep.
	Chain []string
	// Key identifies the finding across walks from different roots.
	Key string
}

// Resolver resolves import tokens inside a project root.
type Resolver struct {
	root     string
	maxDepth int
	cache    *Cache
	home     string
}

// NewResolver creates a resolver for the project rooted at root.
func NewResolver(root string, maxDepth int, cache *Cache) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving import root %s: %w", root, err)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if cache == nil {
		cache = NewCache(0)
	}
	home, _ := os.UserHomeDir()
	return &Resolver{root: filepath.Clean(abs), maxDepth: maxDepth, cache: cache, home: home}, nil
}

// Root is the absolute project root.
func (r *Resolver) Root() string { return r.root }

// MaxDepth is the longest chain Walk follows.
func (r *Resolver) MaxDepth() int { return r.maxDepth }

// Cache is the shared import cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve maps token, found in file from, to a canonical path. Tokens are
// relative to the importing file's directory; "~/" expands to the home
// directory. Absolute tokens and anything outside the root are Escapes.
func (r *Resolver) Resolve(from, token string) Resolution {
	token = strings.ReplaceAll(token, `\`, "/")

	var joined string
	switch {
	case strings.HasPrefix(token, "~/"):
		if r.home == "" {
			return Resolution{Outcome: Escapes}
		}
		joined = filepath.Join(r.home, filepath.FromSlash(token[2:]))
	case strings.HasPrefix(token, "/") || filepath.IsAbs(token) || hasDrive(token):
		return Resolution{Outcome: Escapes, Path: filepath.Clean(filepath.FromSlash(token))}
	default:
		joined = filepath.Join(filepath.Dir(from), filepath.FromSlash(token))
	}

	if !r.Within(joined) {
		return Resolution{Outcome: Escapes, Path: joined}
	}
	info, err := os.Lstat(joined)
	if err != nil || info.IsDir() {
		return Resolution{Outcome: NotFound, Path: joined}
	}
	return Resolution{Outcome: Found, Path: joined}
}

// Within reports whether p lies inside the project root.
func (r *Resolver) Within(p string) bool {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasDrive(token string) bool {
	return len(token) >= 2 && token[1] == ':' &&
		((token[0] >= 'a' && token[0] <= 'z') || (token[0] >= 'A' && token[0] <= 'Z'))
}

type walker struct {
	r        *Resolver
	root     string
	visited  map[string]int
	onChain  map[string]int
	stack    []string
	via      []frontend.Import
	findings []Finding
	deep     bool
}

// Walk follows the import graph depth-first from rootFile, whose own imports
// are given. It tracks the current chain, so a file reached twice through
// different branches is fine and only a true back-edge is a cycle.
//
// A cycle is always reported on the edge leaving its lexicographically
// smallest member, so every root that reaches the same cycle produces the
// same finding. Depth is reported once, on the root.
func (r *Resolver) Walk(rootFile string, rootImports []frontend.Import) []Finding {
	rootFile = filepath.Clean(rootFile)
	r.cache.Seed(rootFile, rootImports)
	w := &walker{
		r:       r,
		root:    rootFile,
		visited: make(map[string]int),
		onChain: make(map[string]int),
	}
	w.visit(rootFile, rootImports, 0)
	return w.findings
}

func (w *walker) visit(file string, imps []frontend.Import, depth int) {
	if d, ok := w.visited[file]; ok && d <= depth {
		return
	}
	w.visited[file] = depth

	w.onChain[file] = len(w.stack)
	w.stack = append(w.stack, file)
	w.via = append(w.via, frontend.Import{})
	defer func() {
		delete(w.onChain, file)
		w.stack = w.stack[:len(w.stack)-1]
		w.via = w.via[:len(w.via)-1]
	}()

	for _, imp := range imps {
		res := w.r.Resolve(file, imp.Path)
		switch res.Outcome {
		case NotFound, Escapes:
			w.findings = append(w.findings, Finding{
				Outcome: res.Outcome,
				File:    file,
				Import:  imp,
				Target:  res.Path,
				Key:     fmt.Sprintf("%s|%s|%d", res.Outcome, file, imp.Start),
			})
			continue
		}

		if at, ok := w.onChain[res.Path]; ok {
			w.findings = append(w.findings, w.cycle(at, imp))
			continue
		}

		if depth+1 > w.r.maxDepth {
			if !w.deep {
				w.deep = true
				first := imp
				if len(w.via) > 1 {
					first = w.via[0]
				}
				chain := append(append([]string(nil), w.stack...), res.Path)
				w.findings = append(w.findings, Finding{
					Outcome: DepthExceeded,
					File:    w.root,
					Import:  first,
					Target:  res.Path,
					Chain:   chain,
					Key:     "depth|" + w.root,
				})
			}
			continue
		}

		entry := w.r.cache.Load(res.Path)
		w.via[len(w.via)-1] = imp
		w.visit(res.Path, entry.Imports, depth+1)
	}
}

// cycle builds the canonical finding for the back-edge from the top of the
// stack to stack[at], taken through imp.
func (w *walker) cycle(at int, imp frontend.Import) Finding {
	members := append([]string(nil), w.stack[at:]...)
	edges := append([]frontend.Import(nil), w.via[at:len(w.via)-1]...)
	edges = append(edges, imp)

	lo := 0
	for i, m := range members {
		if m < members[lo] {
			lo = i
		}
	}
	n := len(members)
	chain := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		chain = append(chain, members[(lo+i)%n])
	}
	chain = append(chain, members[lo])

	return Finding{
		Outcome: CycleDetected,
		File:    members[lo],
		Import:  edges[lo],
		Target:  members[(lo+1)%n],
		Chain:   chain,
		Key:     "cycle|" + strings.Join(chain, ">"),
	}
}
