package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Source supplies scenarios to the session engine. Implementations are
// read-only from the engine's perspective.
type Source interface {
	// List returns catalog summaries for every available scenario,
	// sorted by ID.
	List(ctx context.Context) ([]Summary, error)

	// Get returns the scenario with the given ID, or an error satisfying
	// os.ErrNotExist semantics when no such scenario exists.
	Get(ctx context.Context, id string) (*Scenario, error)
}

// cacheSize bounds the number of parsed scenarios kept in memory.
// Catalogs are small; this exists so a mistyped id can't grow the cache
// unboundedly through repeated misses-then-hits cycles.
const cacheSize = 64

// FileSource serves scenarios from a directory of YAML files. Files are
// parsed lazily on first access and cached with their modification time, so
// an edited file is reparsed on the next Get. Safe for concurrent use.
type FileSource struct {
	dir string

	mu    sync.Mutex
	cache *lru.Cache[string, cachedScenario]
}

type cachedScenario struct {
	scenario *Scenario
	modTime  int64
}

// NewFileSource creates a FileSource rooted at dir. The directory must
// exist; emptiness is allowed (List returns no entries).
func NewFileSource(dir string) (*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario: source dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scenario: source path %q is not a directory", dir)
	}

	cache, err := lru.New[string, cachedScenario](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("scenario: create cache: %w", err)
	}
	return &FileSource{dir: dir, cache: cache}, nil
}

// List implements [Source]. Every *.yaml and *.yml file in the directory is
// loaded (through the cache) and summarized.
func (fs *FileSource) List(ctx context.Context) ([]Summary, error) {
	paths, err := fs.scenarioPaths()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := fs.load(path)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s.Summarize())
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}

// Get implements [Source]. The scenario ID must match the ID declared inside
// one of the directory's files; file names are not significant.
func (fs *FileSource) Get(ctx context.Context, id string) (*Scenario, error) {
	paths, err := fs.scenarioPaths()
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := fs.load(path)
		if err != nil {
			return nil, err
		}
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("scenario: %q: %w", id, os.ErrNotExist)
}

// scenarioPaths returns the sorted YAML file paths in the source directory.
func (fs *FileSource) scenarioPaths() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("scenario: read source dir %q: %w", fs.dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(fs.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// load returns the parsed scenario for path, consulting the cache first.
// A file whose mtime changed since it was cached is reparsed.
func (fs *FileSource) load(path string) (*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: stat %q: %w", path, err)
	}
	mod := info.ModTime().UnixNano()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if entry, ok := fs.cache.Get(path); ok && entry.modTime == mod {
		return entry.scenario, nil
	}

	s, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fs.cache.Add(path, cachedScenario{scenario: s, modTime: mod})
	return s, nil
}
