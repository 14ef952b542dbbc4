package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/timekeeper/internal/errs"
)

const (
	latestName    = "latest.json"
	historyPrefix = "snapshot-"
	historySuffix = ".json"
)

// FileStore keeps snapshots as files in one directory.
type FileStore struct {
	dir  string
	keep int
	mu   sync.Mutex
}

// NewFileStore creates dir if needed. keep <= 0 means DefaultKeep.
func NewFileStore(dir string, keep int) (*FileStore, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errs.E(errs.KindStorage, "backup.open", err)
	}
	return &FileStore{dir: dir, keep: keep}, nil
}

// Save writes latest.json and snapshot-<ts>.json atomically, then prunes.
func (f *FileStore) Save(_ context.Context, s Snapshot) error {
	const op = "backup.save"
	if s.LastBackup.IsZero() {
		s.LastBackup = time.Now().UTC()
	}
	b, err := Encode(s)
	if err != nil {
		return errs.E(errs.KindStorage, op, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeAtomic(filepath.Join(f.dir, latestName), b); err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	name := historyPrefix + stamp(s.LastBackup) + historySuffix
	if err := writeAtomic(filepath.Join(f.dir, name), b); err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	return f.prune()
}

// Latest reads latest.json.
func (f *FileStore) Latest(_ context.Context) (Snapshot, error) {
	return f.read(latestName)
}

// History lists retained copies, newest first.
func (f *FileStore) History(_ context.Context) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, err := f.list()
	if err != nil {
		return nil, errs.E(errs.KindStorage, "backup.history", err)
	}
	return ts, nil
}

// At loads the copy taken at ts.
func (f *FileStore) At(_ context.Context, ts time.Time) (Snapshot, error) {
	return f.read(historyPrefix + stamp(ts) + historySuffix)
}

func (f *FileStore) read(name string) (Snapshot, error) {
	f.mu.Lock()
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	f.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, errs.E(errs.KindNotFound, "backup.read", fmt.Errorf("%s: %w", name, errs.ErrNotFound))
		}
		return Snapshot{}, errs.E(errs.KindStorage, "backup.read", err)
	}
	return Decode(b)
}

func (f *FileStore) list() ([]time.Time, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, historyPrefix) || !strings.HasSuffix(n, historySuffix) {
			continue
		}
		ts, err := parseStamp(strings.TrimSuffix(strings.TrimPrefix(n, historyPrefix), historySuffix))
		if err != nil {
			continue
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

func (f *FileStore) prune() error {
	ts, err := f.list()
	if err != nil {
		return errs.E(errs.KindStorage, "backup.prune", err)
	}
	for _, old := range ts[min(len(ts), f.keep):] {
		p := filepath.Join(f.dir, historyPrefix+stamp(old)+historySuffix)
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.E(errs.KindStorage, "backup.prune", err)
		}
	}
	return nil
}

func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
