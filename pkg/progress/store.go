package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Store loads and mutates a progress state
type Store interface {
	Load(ctx context.Context) (State, error)
	Update(ctx context.Context, fn func(*State) error) error
}

// FileStore keeps the state in a JSON file. Readers take a shared flock, writers an exclusive one,
// and writes truncate and rewrite the file in place under that lock.
type FileStore struct {
	path string
}

// NewFileStore makes a store for path, creating the parent directory
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the state file location
func (f *FileStore) Path() string { return f.path }

// Load reads the state under a shared lock, a missing or empty file is an empty state
func (f *FileStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	fh, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("open progress file: %w", err)
	}
	defer fh.Close()

	if err := flock(fh, unix.LOCK_SH); err != nil {
		return State{}, err
	}
	defer funlock(fh)
	return readState(fh)
}

// Update applies fn to the current state under an exclusive lock and writes the result back
func (f *FileStore) Update(ctx context.Context, fn func(*State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fh, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0o640) //nolint:gosec // path from config
	if err != nil {
		return fmt.Errorf("open progress file: %w", err)
	}
	defer fh.Close()

	if err := flock(fh, unix.LOCK_EX); err != nil {
		return err
	}
	defer funlock(fh)

	st, err := readState(fh)
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := fh.Truncate(0); err != nil {
		return fmt.Errorf("truncate progress file: %w", err)
	}
	if _, err := fh.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write progress file: %w", err)
	}
	if err := fh.Sync(); err != nil {
		return fmt.Errorf("sync progress file: %w", err)
	}
	return nil
}

func readState(fh *os.File) (State, error) {
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return State{}, fmt.Errorf("seek progress file: %w", err)
	}
	data, err := io.ReadAll(fh)
	if err != nil {
		return State{}, fmt.Errorf("read progress file: %w", err)
	}
	var st State
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse progress file: %w", err)
	}
	return st, nil
}

func flock(fh *os.File, how int) error {
	for {
		err := unix.Flock(int(fh.Fd()), how) //nolint:gosec // fd fits int
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("lock progress file: %w", err)
		}
		return nil
	}
}

func funlock(fh *os.File) {
	_ = unix.Flock(int(fh.Fd()), unix.LOCK_UN) //nolint:gosec // fd fits int
}

// MemoryStore keeps the state in memory, for tests and runs without a progress file
type MemoryStore struct {
	mu    sync.RWMutex
	state State
}

// Load returns a copy of the state
func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneState(m.state), nil
}

// Update applies fn to a copy and keeps it only when fn succeeds
func (m *MemoryStore) Update(_ context.Context, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := cloneState(m.state)
	if err := fn(&st); err != nil {
		return err
	}
	m.state = st
	return nil
}

func cloneState(s State) State {
	res := s
	res.RecentErrors = append([]ErrorEntry(nil), s.RecentErrors...)
	if s.SourceStats != nil {
		res.SourceStats = make(map[string]SourceStat, len(s.SourceStats))
		for k, v := range s.SourceStats {
			res.SourceStats[k] = v
		}
	}
	if s.Categories != nil {
		res.Categories = make(map[string]int, len(s.Categories))
		for k, v := range s.Categories {
			res.Categories[k] = v
		}
	}
	return res
}
