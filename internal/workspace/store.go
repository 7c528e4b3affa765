package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"lumen/internal/logging"
	"lumen/internal/services"
)

// ErrLocked is returned when another process already holds the document lock.
var ErrLocked = errors.New("workspace document is locked by another process")

// Store owns a document on disk. All mutation flows through Mutate, which
// serializes writers and persists atomically, so the on-disk document is
// consistent after every transition.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	lock   *flock.Flock
	locked bool
	doc    *Document
}

// NewStore creates a store for the document at path. Nothing is read or
// locked until Acquire and Load/Create are called.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "workspace"),
		lock:   flock.New(path + ".lock"),
	}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Acquire takes the writer lock. It fails fast with ErrLocked when another
// engine holds it, rather than blocking behind a run of unknown length.
func (s *Store) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "acquire", "create workspace directory", err)
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "acquire", "acquire document lock", err)
	}
	if !locked {
		return ErrLocked
	}
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
	return nil
}

// Release drops the writer lock.
func (s *Store) Release() error {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
	return s.lock.Unlock()
}

// Exists reports whether a document file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the document from disk. A corrupt or newer-versioned document
// is a loud error; the store never overwrites a document it cannot parse.
// When the caller holds the writer lock, interrupted processing items are
// reset to pending; a read-only load reports statuses exactly as persisted,
// so inspecting a live run does not misreport its in-flight items.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "workspace", "load", "document does not exist", err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "load", "read document", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "workspace", "load",
			fmt.Sprintf("document %s is not valid JSON; refusing to touch it", s.path), err)
	}

	if s.locked {
		if reset := doc.ResetProcessing(); reset > 0 {
			s.logger.Info("reset interrupted items to pending",
				logging.Int("reset_count", reset),
				logging.String("path", s.path))
		}
	}

	s.doc = doc
	return doc, nil
}

// Create initializes a fresh document and persists it. It refuses to clobber
// an existing file.
func (s *Store) Create(cfg RunConfig) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil, services.Wrap(services.ErrValidation, "workspace", "create",
			fmt.Sprintf("document %s already exists", s.path), nil)
	}

	doc := NewDocument(cfg)
	if err := s.saveLocked(doc); err != nil {
		return nil, err
	}
	s.doc = doc
	s.logger.Info("created workspace document", logging.String("path", s.path))
	return doc, nil
}

// LoadOrCreate resumes an existing document or starts a fresh one. The
// second return value reports whether a new document was created.
func (s *Store) LoadOrCreate(cfg RunConfig) (*Document, bool, error) {
	if s.Exists() {
		doc, err := s.Load()
		return doc, false, err
	}
	doc, err := s.Create(cfg)
	return doc, true, err
}

// Mutate applies fn to the loaded document under the writer mutex and
// persists the result atomically. A failed fn leaves the disk untouched.
func (s *Store) Mutate(fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return services.Wrap(services.ErrValidation, "workspace", "mutate", "no document loaded", nil)
	}
	if err := fn(s.doc); err != nil {
		return err
	}
	return s.saveLocked(s.doc)
}

// UpdateItem mutates a single item and persists.
func (s *Store) UpdateItem(id string, fn func(*Item)) error {
	return s.Mutate(func(doc *Document) error {
		item := doc.Item(id)
		if item == nil {
			return services.Wrap(services.ErrNotFound, "workspace", "update-item",
				fmt.Sprintf("item %q not found", id), nil)
		}
		fn(item)
		return nil
	})
}

// Document returns the loaded document, or nil before Load/Create.
func (s *Store) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// saveLocked writes the document via a temp file and atomic rename. Callers
// hold s.mu.
func (s *Store) saveLocked(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "workspace", "save", "marshal document", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "save", "create workspace directory", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "workspace", "save", "write temp file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrConfiguration, "workspace", "save", "rename temp file", err)
	}
	return nil
}
