// Package audit keeps the access log for patient records: a bounded,
// append-only, hash-chained list of who touched which record and whether it
// was allowed.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCapacity is how many entries the log retains.
const DefaultCapacity = 1000

// Operation is the kind of access being logged.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// Entry is one access event.
type Entry struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patientId"`
	Actor      string    `json:"actor"`
	Operation  Operation `json:"operation"`
	Timestamp  time.Time `json:"timestamp"`
	Authorized bool      `json:"authorized"`
	Outcome    string    `json:"outcome,omitempty"`
	PrevHash   string    `json:"prevHash"`
	EntryHash  string    `json:"entryHash"`
}

// Sink receives every entry after it is appended.
type Sink interface {
	Write(Entry) error
}

// AuditLogger is what the vault records access through and reports from.
type AuditLogger interface {
	Record(Entry) Entry
	Query(patientID string) []Entry
	Len() int
	LastActivity() time.Time
	Verify() error
}

var _ AuditLogger = (*Log)(nil)

// ErrChainBroken is returned by Verify when an entry was altered.
var ErrChainBroken = errors.New("audit: hash chain broken")

type Options struct {
	Capacity int
	Sink     Sink
	Logger   zerolog.Logger
	Now      func() time.Time
	// PrevHash continues an existing chain, such as a reopened journal.
	PrevHash string
}

// Log is a bounded FIFO of entries. It is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	lastHash string
	sink     Sink
	logger   zerolog.Logger
	now      func() time.Time
}

func NewLog(opts Options) *Log {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Log{
		entries:  make([]Entry, 0, opts.Capacity),
		capacity: opts.Capacity,
		lastHash: opts.PrevHash,
		sink:     opts.Sink,
		logger:   opts.Logger.With().Str("component", "audit").Logger(),
		now:      opts.Now,
	}
}

// Record appends e, filling in its id, timestamp and hash chain, and returns
// the stored copy. The oldest entry is dropped once the log is full.
func (l *Log) Record(e Entry) Entry {
	l.mu.Lock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	e.PrevHash = l.lastHash
	e.EntryHash = hashEntry(e)
	l.lastHash = e.EntryHash

	if len(l.entries) >= l.capacity {
		n := copy(l.entries, l.entries[len(l.entries)-l.capacity+1:])
		l.entries = l.entries[:n]
	}
	l.entries = append(l.entries, e)
	sink := l.sink
	l.mu.Unlock()

	ev := l.logger.Debug()
	if !e.Authorized {
		ev = l.logger.Warn()
	}
	ev.Str("patient_id", e.PatientID).
		Str("actor", e.Actor).
		Str("operation", string(e.Operation)).
		Bool("authorized", e.Authorized).
		Str("outcome", e.Outcome).
		Msg("access recorded")

	if sink != nil {
		if err := sink.Write(e); err != nil {
			l.logger.Error().Err(err).Str("entry_id", e.ID).Msg("audit sink write failed")
		}
	}
	return e
}

// Query returns the retained entries for patientID, oldest first.
func (l *Log) Query(patientID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a copy of every retained entry, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// LastActivity is the timestamp of the newest entry, or zero.
func (l *Log) LastActivity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return time.Time{}
	}
	return l.entries[len(l.entries)-1].Timestamp
}

// Verify checks the hash chain across the retained window.
func (l *Log) Verify() error {
	return VerifyChain(l.Entries())
}

// VerifyChain checks that every entry hashes to its EntryHash and links to
// its predecessor. The first entry's PrevHash is not checked, since its
// predecessor may have been evicted.
func VerifyChain(entries []Entry) error {
	for i, e := range entries {
		if hashEntry(e) != e.EntryHash {
			return fmt.Errorf("%w: entry %d (%s) hash mismatch", ErrChainBroken, i, e.ID)
		}
		if i > 0 && e.PrevHash != entries[i-1].EntryHash {
			return fmt.Errorf("%w: entry %d (%s) does not link to its predecessor", ErrChainBroken, i, e.ID)
		}
	}
	return nil
}

func hashEntry(e Entry) string {
	e.EntryHash = ""
	e.Timestamp = e.Timestamp.UTC()
	data, _ := json.Marshal(e)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
