package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	breachFile  = "breach.yaml"
	networkFile = "network.yaml"
)

// breachDoc is the on-disk layout of breach.yaml
type breachDoc struct {
	Counters  map[string]int `yaml:"counters"`
	UpdatedAt time.Time      `yaml:"updated_at"`
}

// networkDoc is the on-disk layout of network.yaml
type networkDoc struct {
	types.NetworkState `yaml:",inline"`
	UpdatedAt          time.Time `yaml:"updated_at"`
}

// Store persists tracker state between invocations as YAML files in one
// directory. It does no locking; callers must not run overlapping cycles of
// the same pipeline.
//
// The directory is the preferred one when it exists or can be created, else
// ~/.hostwatch. Nothing is created until the first save.
type Store struct {
	preferred string
	fallback  string
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	resolved string
}

// NewStore creates a store rooted at dir
func NewStore(dir string, logger zerolog.Logger) *Store {
	s := &Store{
		preferred: dir,
		logger:    logger.With().Str("component", "state").Logger(),
		now:       time.Now,
	}
	if home, err := os.UserHomeDir(); err == nil {
		s.fallback = filepath.Join(home, ".hostwatch")
	}
	if s.preferred == "" {
		s.preferred = s.fallback
	}
	return s
}

// Dir returns the directory state is read from. It never creates anything.
func (s *Store) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved != "" {
		return s.resolved
	}
	if isDir(s.preferred) || s.fallback == "" || !isDir(s.fallback) {
		return s.preferred
	}
	return s.fallback
}

// writeDir returns the directory to save into, creating it if needed
func (s *Store) writeDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved != "" {
		return s.resolved, nil
	}
	err := os.MkdirAll(s.preferred, 0o755)
	if err == nil {
		s.resolved = s.preferred
		return s.resolved, nil
	}
	if s.fallback == "" || s.fallback == s.preferred {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	s.logger.Warn().Err(err).Str("dir", s.preferred).Str("fallback", s.fallback).Msg("State dir not writable, using fallback")
	if err := os.MkdirAll(s.fallback, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	s.resolved = s.fallback
	return s.resolved, nil
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// LoadBreach returns the persisted counters. A missing or unreadable file
// yields zero counters.
func (s *Store) LoadBreach() types.BreachState {
	out := types.BreachState{}

	var doc breachDoc
	if !s.load(breachFile, &doc) {
		return out
	}
	for key, n := range doc.Counters {
		kind, err := types.ParseKind(key)
		if err != nil {
			s.logger.Warn().Str("key", key).Msg("Ignoring unknown resource in state file")
			continue
		}
		if n > 0 {
			out[kind] = n
		}
	}
	return out
}

// SaveBreach persists counters atomically
func (s *Store) SaveBreach(counters types.BreachState) error {
	doc := breachDoc{
		Counters:  make(map[string]int, len(counters)),
		UpdatedAt: s.now().UTC(),
	}
	for kind, n := range counters {
		doc.Counters[kind.Key()] = n
	}
	return s.save(breachFile, doc)
}

// LoadNetwork returns the persisted reachability state, zero when absent or
// unreadable.
func (s *Store) LoadNetwork() types.NetworkState {
	var doc networkDoc
	if !s.load(networkFile, &doc) {
		return types.NetworkState{}
	}
	return doc.NetworkState
}

// SaveNetwork persists the reachability state atomically
func (s *Store) SaveNetwork(st types.NetworkState) error {
	return s.save(networkFile, networkDoc{NetworkState: st, UpdatedAt: s.now().UTC()})
}

func (s *Store) load(name string, out interface{}) bool {
	path := filepath.Join(s.Dir(), name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to read state file, starting fresh")
		}
		return false
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("Corrupt state file, starting fresh")
		return false
	}
	return true
}

func (s *Store) save(name string, doc interface{}) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	dir, err := s.writeDir()
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(filepath.Join(dir, name), data, 0o644); err != nil {
		return err
	}
	s.logger.Debug().Str("dir", dir).Str("file", name).Msg("State saved")
	return nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
