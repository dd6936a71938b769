package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config configures a Store. The zero value of every field except the
// directories falls back to a default; use DefaultConfig to fill the
// directories from the running process.
type Config struct {
	// Location is a document path ending in ".json" or a directory that gets
	// "kvstore/store.json" appended. Empty selects <HomeDir>/kvstore/store.json.
	Location string
	// WorkDir resolves relative locations.
	WorkDir string
	// HomeDir resolves the default location.
	HomeDir string

	// MaxValueSize caps the canonical JSON size of a single value in bytes.
	MaxValueSize int
	// MaxDocumentSize is the document size that triggers the capacity guard.
	MaxDocumentSize int64

	// Logger receives operational failures. Nil uses the global logger with
	// cmp=kvstore.
	Logger *zerolog.Logger
	// Now is the clock used for expiry. Nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns a Config with the size limits set and the working and
// home directories taken from the current process.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	wd, _ := os.Getwd()

	return Config{
		WorkDir:         wd,
		HomeDir:         home,
		MaxValueSize:    DefaultMaxValueSize,
		MaxDocumentSize: DefaultMaxDocumentSize,
	}
}

func (c Config) validate() error {
	var errs criterio.FieldErrorsBuilder
	if c.MaxValueSize < 0 {
		errs = errs.Append("max_value_size", fmt.Errorf("must be positive, got %d", c.MaxValueSize))
	}
	if c.MaxDocumentSize < 0 {
		errs = errs.Append("max_document_size", fmt.Errorf("must be positive, got %d", c.MaxDocumentSize))
	}
	return errs.ToError()
}

// Store is a key-value store persisted as a single JSON document. Every
// operation reads the whole document from disk and mutations write it back in
// full, so external edits between calls are picked up. Calls on one Store are
// serialized; separate processes sharing a file are not coordinated.
type Store struct {
	path            string
	maxValueSize    int
	maxDocumentSize int64
	now             func() time.Time
	log             zerolog.Logger

	mu sync.RWMutex
}

// Open resolves the document location and returns a Store for it. A missing
// document is created, with its parent directories, as an empty object. An
// existing file is used as-is.
func Open(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	path, err := ResolvePath(cfg.Location, cfg.WorkDir, cfg.HomeDir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:            path,
		maxValueSize:    cfg.MaxValueSize,
		maxDocumentSize: cfg.MaxDocumentSize,
		now:             cfg.Now,
	}

	if s.maxValueSize == 0 {
		s.maxValueSize = DefaultMaxValueSize
	}
	if s.maxDocumentSize == 0 {
		s.maxDocumentSize = DefaultMaxDocumentSize
	}
	if s.now == nil {
		s.now = time.Now
	}

	logger := log.With().Str("cmp", "kvstore").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	s.log = logger.With().Str("path", path).Logger()

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat store: %w", err)
		}
		if err := s.save(Document{}); err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
		s.log.Debug().Msg("created empty store")
	}

	return s, nil
}

// Path returns the absolute path of the document.
func (s *Store) Path() string {
	return s.path
}

// Size returns the document's current size on disk in bytes.
func (s *Store) Size(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.size()
}

// Set inserts a value that never expires. See SetTTL.
func (s *Store) Set(ctx context.Context, key string, value any) (bool, error) {
	return s.set(ctx, key, value, 0)
}

// SetTTL inserts a value that expires ttl after now. The key must not exist.
//
// Argument problems and a full store are returned as *ValidationError or
// *CapacityError before anything is written. Operational failures, including
// an existing key, are logged and reported as false.
func (s *Store) SetTTL(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	return s.set(ctx, key, value, ttl)
}

// Get returns the value stored at key. A missing or expired key reports
// false; an expired entry is deleted as a side effect.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, s.fail(ctx, "get", key, err), nil
	}

	raw, ok := doc[key]
	if !ok {
		return nil, s.fail(ctx, "get", key, ErrNotFound), nil
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		return nil, s.fail(ctx, "get", key, err), nil
	}

	if IsExpired(entry, s.now()) {
		if err := s.delete(key); err != nil {
			s.fail(ctx, "delete", key, err)
		}
		return nil, s.fail(ctx, "get", key, ErrNotFound), nil
	}

	return entry.Value, true, nil
}

// Delete removes key. A missing key reports false.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.delete(key); err != nil {
		return s.fail(ctx, "delete", key, err), nil
	}
	return true, nil
}

// Has reports whether key is present in the document. Expiry is not
// evaluated: an expired entry is present until Get, CleanUp or Delete removes
// it.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return s.fail(ctx, "has", key, err), nil
	}

	_, ok := doc[key]
	return ok, nil
}

// All returns the document as stored, including expired entries and their
// expiry metadata.
func (s *Store) All(ctx context.Context) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, s.fail(ctx, "all", "", err)
	}
	return doc, true
}

// Clear replaces the document with an empty one.
func (s *Store) Clear(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(Document{}); err != nil {
		return s.fail(ctx, "clear", "", err)
	}
	return true
}

// CleanUp rewrites the document without its expired entries.
func (s *Store) CleanUp(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cleanUp(ctx); err != nil {
		return s.fail(ctx, "cleanup", "", err)
	}
	return true
}

func (s *Store) set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	canonical, err := validateValue(value, s.maxValueSize)
	if err != nil {
		return false, err
	}

	raw, err := encodeEntry(Wrap(canonical, ttl, s.now()))
	if err != nil {
		return false, &ValidationError{Field: "value", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCapacity(ctx); err != nil {
		var capErr *CapacityError
		if errors.As(err, &capErr) {
			return false, err
		}
		return s.fail(ctx, "set", key, err), nil
	}

	err = s.update(func(doc Document) error {
		if _, ok := doc[key]; ok {
			return ErrConflict
		}
		doc[key] = raw
		return nil
	})
	if err != nil {
		return s.fail(ctx, "set", key, err), nil
	}

	return true, nil
}

// ensureCapacity runs a cleanup when the document is over its ceiling and
// returns a *CapacityError if that did not bring it back under.
func (s *Store) ensureCapacity(ctx context.Context) error {
	size, err := s.size()
	if err != nil {
		return err
	}
	if size <= s.maxDocumentSize {
		return nil
	}

	s.log.Info().Ctx(ctx).
		Int64("size", size).
		Int64("limit", s.maxDocumentSize).
		Msg("store over capacity, cleaning up")

	if err := s.cleanUp(ctx); err != nil {
		s.fail(ctx, "cleanup", "", err)
	}

	size, err = s.size()
	if err != nil {
		return err
	}
	if size > s.maxDocumentSize {
		return &CapacityError{Size: size, Limit: s.maxDocumentSize}
	}
	return nil
}

func (s *Store) delete(key string) error {
	return s.update(func(doc Document) error {
		if _, ok := doc[key]; !ok {
			return ErrNotFound
		}
		delete(doc, key)
		return nil
	})
}

func (s *Store) cleanUp(ctx context.Context) error {
	now := s.now()
	removed := 0

	err := s.update(func(doc Document) error {
		for key, raw := range doc {
			entry, err := decodeEntry(raw)
			if err != nil {
				continue
			}
			if IsExpired(entry, now) {
				delete(doc, key)
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().Ctx(ctx).Int("removed", removed).Msg("cleaned up expired entries")
	return nil
}

// update runs one read-modify-write cycle. The document is only written when
// fn succeeds.
func (s *Store) update(fn func(doc Document) error) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		return err
	}

	return s.save(doc)
}

// fail logs an operational failure and returns false for the caller to pass on.
func (s *Store) fail(ctx context.Context, op, key string, err error) bool {
	var evt *zerolog.Event
	switch {
	case errors.Is(err, ErrNotFound):
		evt = s.log.Debug()
	case errors.Is(err, ErrConflict):
		evt = s.log.Warn()
	default:
		evt = s.log.Error()
	}

	evt = evt.Ctx(ctx).Err(err).Str("op", op)
	if key != "" {
		evt = evt.Str("key", key)
	}
	evt.Msg("kvstore operation failed")

	return false
}

// size returns the document size, treating a missing file as empty.
func (s *Store) size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat store: %w", err)
	}
	return info.Size(), nil
}

// load reads the document from disk. A missing file is an empty document.
func (s *Store) load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}

	return decodeDocument(data)
}

// save writes the document to disk atomically.
func (s *Store) save(doc Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := marshal(doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
