package record

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

const (
	sessionsFile = "sessions.jsonl"
	bestsFile    = "quiz_bests.json"
)

// FileStore persists records under a local directory: finished sessions as
// append-only JSON lines, quiz bests as a single rewritten JSON document.
// Suitable for single-instance deployments and as the fallback target when
// the database is unreachable. Thread-safe for concurrent use.
type FileStore struct {
	mu    sync.Mutex
	dir   string
	bests map[string]QuizBest
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// needed and loading any previously stored quiz bests.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("record: create store dir: %w", err)
	}

	st := &FileStore{dir: dir, bests: make(map[string]QuizBest)}
	if err := st.loadBests(); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveSession appends the record to the sessions file.
func (s *FileStore) SaveSession(_ context.Context, rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record: marshal session: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, sessionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("record: open sessions file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("record: write session: %w", err)
	}
	return nil
}

// SaveQuizBest merges candidate into the stored best for its mode and
// rewrites the bests file when anything improved.
func (s *FileStore) SaveQuizBest(_ context.Context, candidate QuizBest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bests[candidate.Mode]
	merged, improved := current.Merge(candidate)
	merged.Mode = candidate.Mode
	if ok && !improved {
		return nil
	}
	s.bests[candidate.Mode] = merged

	data, err := json.MarshalIndent(s.bests, "", "  ")
	if err != nil {
		return fmt.Errorf("record: marshal bests: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, bestsFile), data, 0o644); err != nil {
		return fmt.Errorf("record: write bests: %w", err)
	}
	return nil
}

// QuizBest returns the stored best for mode.
func (s *FileStore) QuizBest(_ context.Context, mode string) (QuizBest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bests[mode]
	return b, ok, nil
}

// RecentSessions returns up to limit finished sessions, newest first.
func (s *FileStore) RecentSessions(_ context.Context, limit int) ([]SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, sessionsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("record: open sessions file: %w", err)
	}
	defer f.Close()

	var all []SessionRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec SessionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("record: decode session line: %w", err)
		}
		all = append(all, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("record: read sessions file: %w", err)
	}

	// Newest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *FileStore) loadBests() error {
	data, err := os.ReadFile(filepath.Join(s.dir, bestsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("record: read bests: %w", err)
	}
	if err := json.Unmarshal(data, &s.bests); err != nil {
		return fmt.Errorf("record: decode bests: %w", err)
	}
	return nil
}
