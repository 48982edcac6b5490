package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Journal appends entries to a JSON-lines file. It outlives the in-memory
// window, so the CLI can answer audit queries after a restart.
type Journal struct {
	mu       sync.Mutex
	f        *os.File
	lastHash string
}

func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: journal dir: %w", err)
	}
	existing, err := ReadJournal(path, "")
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open journal: %w", err)
	}
	j := &Journal{f: f}
	if n := len(existing); n > 0 {
		j.lastHash = existing[n-1].EntryHash
	}
	return j, nil
}

// LastHash is the hash of the newest entry present when the journal was
// opened, or "" for a new journal.
func (j *Journal) LastHash() string { return j.lastHash }

func (j *Journal) Write(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return os.ErrClosed
	}
	_, err = j.f.Write(line)
	return err
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

// ReadJournal returns the journaled entries for patientID, oldest first. An
// empty patientID returns every entry. A missing file yields no entries.
func ReadJournal(path, patientID string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open journal: %w", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("audit: journal line %d: %w", n, err)
		}
		if patientID == "" || e.PatientID == patientID {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("audit: read journal: %w", err)
	}
	return out, nil
}
