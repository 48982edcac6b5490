// Package storage is the local durable store for record envelopes: a LevelDB
// database mirrored by an in-memory map. Writes are fsynced before Put returns.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

const recordPrefix = "record:"

var (
	ErrNotFound    = errors.New("storage: record not found")
	ErrPersistence = errors.New("storage: persistence failure")
	// ErrQuotaExceeded wraps ErrPersistence.
	ErrQuotaExceeded = fmt.Errorf("%w: quota exceeded", ErrPersistence)
	ErrClosed        = fmt.Errorf("%w: store closed", ErrPersistence)
	// ErrCorrupt is returned by Get for an envelope that was on disk but
	// could not be decoded.
	ErrCorrupt = errors.New("storage: envelope unreadable")
)

// Options bound how much the store may hold. Zero values disable a check.
type Options struct {
	MaxRecords   int
	MinFreeBytes uint64
	Logger       zerolog.Logger
}

// Store maps patient ids to envelopes.
type Store struct {
	mu      sync.RWMutex
	db      *leveldb.DB
	path    string
	opts    Options
	records map[string]record.Envelope
	// corrupt holds the raw bytes of envelopes that failed to decode.
	corrupt map[string][]byte
	logger  zerolog.Logger

	usage func(path string) (*disk.UsageStat, error)
}

// Open opens (or creates) the database at path and loads every envelope.
func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrPersistence, path, err)
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}
	s := &Store{
		db:      db,
		path:    path,
		opts:    opts,
		records: make(map[string]record.Envelope),
		corrupt: make(map[string][]byte),
		logger:  opts.Logger.With().Str("component", "storage").Logger(),
		usage:   disk.Usage,
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(recordPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		id := string(iter.Key()[len(recordPrefix):])
		env, err := decodeEnvelope(id, iter.Value())
		if err != nil {
			s.corrupt[id] = append([]byte(nil), iter.Value()...)
			s.logger.Error().Err(err).Str("patient_id", id).Int("bytes", len(iter.Value())).Msg("unreadable envelope, record quarantined")
			continue
		}
		s.records[id] = env
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("%w: scan: %v", ErrPersistence, err)
	}
	return nil
}

func decodeEnvelope(id string, raw []byte) (record.Envelope, error) {
	var env record.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode: %w", err)
	}
	if env.PatientID != id {
		return env, fmt.Errorf("envelope id %q under key %q", env.PatientID, id)
	}
	if err := env.Validate(); err != nil {
		return env, err
	}
	return env, nil
}

// Put durably writes env, replacing any envelope with the same patient id.
func (s *Store) Put(env record.Envelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	if !s.exists(env.PatientID) {
		if err := s.checkCapacity(); err != nil {
			return err
		}
	}
	if err := s.db.Put(Key(env.PatientID), data, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, env.PatientID, err)
	}
	s.records[env.PatientID] = env
	delete(s.corrupt, env.PatientID)
	return nil
}

func (s *Store) exists(id string) bool {
	if _, ok := s.records[id]; ok {
		return true
	}
	_, ok := s.corrupt[id]
	return ok
}

func (s *Store) checkCapacity() error {
	if n := len(s.records) + len(s.corrupt); s.opts.MaxRecords > 0 && n >= s.opts.MaxRecords {
		return fmt.Errorf("%w: %d records", ErrQuotaExceeded, n)
	}
	if s.opts.MinFreeBytes > 0 {
		st, err := s.usage(s.path)
		if err != nil {
			return fmt.Errorf("%w: disk usage: %v", ErrPersistence, err)
		}
		if st.Free < s.opts.MinFreeBytes {
			return fmt.Errorf("%w: %d bytes free", ErrQuotaExceeded, st.Free)
		}
	}
	return nil
}

// Get returns a copy of the envelope for id. An envelope that could not be
// decoded at load time yields ErrCorrupt.
func (s *Store) Get(id string) (record.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if env, ok := s.records[id]; ok {
		return env, nil
	}
	if raw, ok := s.corrupt[id]; ok {
		return record.Envelope{}, fmt.Errorf("%w: %s (%d bytes)", ErrCorrupt, id, len(raw))
	}
	return record.Envelope{}, ErrNotFound
}


// ListIDs returns a sorted snapshot of the stored patient ids.
func (s *Store) ListIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.records)+len(s.corrupt))
	for id := range s.records {
		ids = append(ids, id)
	}
	for id := range s.corrupt {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) + len(s.corrupt)
}


// Close releases the database. Further writes fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Key returns the database key an envelope for id is stored under.
func Key(id string) []byte {
	return []byte(recordPrefix + id)
}
