package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

// watchDebounce batches the burst of events an atomic rename produces.
const watchDebounce = 200 * time.Millisecond

// FileStore keeps the document as a JSON file. Writes go to a temp file in
// the same directory and are renamed into place, so readers never observe a
// partial document. Separate processes sharing the file are not coordinated.
type FileStore struct {
	mu   sync.Mutex
	path string
	opts options
}

// NewFileStore creates a file-backed store at path, creating parent directories.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{path: clean, opts: applyOptions(opts)}, nil
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *FileStore) List(ctx context.Context) ([]models.Registration, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Registrations, nil
}

func (s *FileStore) Append(ctx context.Context, reg models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	doc.Registrations = append(doc.Registrations, reg)
	return s.write(doc)
}

func (s *FileStore) Initialize(_ context.Context, seed models.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat store file: %w", err)
	}
	if err := s.write(seed); err != nil {
		return false, err
	}
	return true, nil
}

// load must be called with s.mu held.
func (s *FileStore) load(ctx context.Context) (models.Document, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Document{Registrations: []models.Registration{}}, nil
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("read store file: %w", err)
	}
	return s.opts.decodeOrEmpty(ctx, raw, s.path), nil
}

// write must be called with s.mu held.
func (s *FileStore) write(doc models.Document) error {
	raw, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".africamap-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// Watch calls onChange after the document file is created, written, renamed
// or removed by anyone, this process included. Bursts are debounced. Watch
// blocks until ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: the atomic rename replaces the file's inode.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.opts.logger.InfoContext(ctx, "watching registration store", "path", s.path)

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	stop := func() {
		if debounce != nil {
			debounce.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			stop()
			debounce = time.NewTimer(watchDebounce)
			fire = debounce.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.opts.logger.WarnContext(ctx, "store watcher error", "error", err.Error())
		}
	}
}
