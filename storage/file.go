package storage

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/pkg/errors"
)

//go:embed state.schema.json
var stateSchema []byte

const stateSchemaURL = "state.schema.json"

// Document is the persisted state: the user's searches and, per source, the
// listings already reported.
type Document struct {
	Searches []listing.Search         `json:"searches"`
	Listings map[string][]listing.Car `json:"listings"`
}

// FileStore keeps the Document in a JSON file. The file is validated against
// a JSON Schema on load and replaced atomically on save.
type FileStore struct {
	mu     sync.Mutex
	path   string
	schema *jsonschema.Schema
	log    *logger.Logger
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) (*FileStore, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(stateSchemaURL, bytes.NewReader(stateSchema)); err != nil {
		return nil, fmt.Errorf("add state schema: %w", err)
	}
	schema, err := compiler.Compile(stateSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile state schema: %w", err)
	}

	return &FileStore{
		path:   path,
		schema: schema,
		log:    logger.ForStorage(),
	}, nil
}

// Path returns the state file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file yields an empty document.
func (s *FileStore) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save writes the document
func (s *FileStore) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

// SaveSearches replaces the persisted searches, keeping the listings
func (s *FileStore) SaveSearches(searches []listing.Search) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	doc.Searches = searches
	return s.saveLocked(doc)
}

// LoadSeen implements Ledger
func (s *FileStore) LoadSeen(_ context.Context, source string) ([]listing.Car, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return doc.Listings[source], nil
}

// SaveSeen implements Ledger
func (s *FileStore) SaveSeen(_ context.Context, source string, cars []listing.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	doc.Listings[source] = mergeByIdentity(doc.Listings[source], cars)
	return s.saveLocked(doc)
}

func (s *FileStore) loadLocked() (Document, error) {
	doc := Document{Listings: make(map[string][]listing.Car)}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read state %s: %w", s.path, err)
	}

	if err := s.validate(data); err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, errors.NewParsing("storage", "state "+s.path, err)
	}
	if doc.Listings == nil {
		doc.Listings = make(map[string][]listing.Car)
	}
	return doc, nil
}

func (s *FileStore) validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return errors.NewParsing("storage", "state "+s.path+" is not valid JSON", err)
	}
	if err := s.schema.Validate(v); err != nil {
		return errors.New(errors.ErrorTypeValidation, "storage", "state "+s.path+" does not match its schema", err)
	}
	return nil
}

func (s *FileStore) saveLocked(doc Document) error {
	if doc.Listings == nil {
		doc.Listings = make(map[string][]listing.Car)
	}
	if doc.Searches == nil {
		doc.Searches = []listing.Search{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state %s: %w", s.path, err)
	}

	s.log.Debug().Str("path", s.path).Int("searches", len(doc.Searches)).Msg("State saved")
	return nil
}

// mergeByIdentity appends the cars of add not already in base
func mergeByIdentity(base, add []listing.Car) []listing.Car {
	known := make(map[listing.Identity]struct{}, len(base)+len(add))
	merged := make([]listing.Car, 0, len(base)+len(add))
	for _, list := range [][]listing.Car{base, add} {
		for _, car := range list {
			if _, ok := known[car.Identity()]; ok {
				continue
			}
			known[car.Identity()] = struct{}{}
			merged = append(merged, car)
		}
	}
	return merged
}
