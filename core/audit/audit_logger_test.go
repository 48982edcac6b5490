package audit

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFillsIdentityAndChain(t *testing.T) {
	l := NewLog(Options{})
	a := l.Record(Entry{PatientID: "p1", Actor: "midwife", Operation: OpWrite, Authorized: true})
	b := l.Record(Entry{PatientID: "p1", Actor: "midwife", Operation: OpRead, Authorized: true})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
	assert.Empty(t, a.PrevHash)
	assert.Equal(t, a.EntryHash, b.PrevHash)
	require.NoError(t, l.Verify())
}

func TestQueryOrdersOldestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	l := NewLog(Options{Now: func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}})
	l.Record(Entry{PatientID: "p1", Operation: OpWrite, Authorized: true})
	l.Record(Entry{PatientID: "p2", Operation: OpWrite, Authorized: true})
	l.Record(Entry{PatientID: "p1", Operation: OpRead, Authorized: true})

	got := l.Query("p1")
	require.Len(t, got, 2)
	assert.Equal(t, OpWrite, got[0].Operation)
	assert.Equal(t, OpRead, got[1].Operation)
	assert.Empty(t, l.Query("nobody"))
	assert.Equal(t, base.Add(3*time.Second), l.LastActivity())
}

func TestCapacityEvictsOldest(t *testing.T) {
	l := NewLog(Options{Capacity: 3})
	for i := 0; i < 5; i++ {
		l.Record(Entry{PatientID: fmt.Sprintf("p%d", i), Operation: OpWrite, Authorized: true})
	}
	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "p2", entries[0].PatientID)
	assert.Equal(t, "p4", entries[2].PatientID)
	require.NoError(t, l.Verify())
}

func TestVerifyDetectsTampering(t *testing.T) {
	l := NewLog(Options{})
	l.Record(Entry{PatientID: "p1", Operation: OpWrite, Authorized: true})
	l.Record(Entry{PatientID: "p1", Operation: OpRead, Authorized: true})

	entries := l.Entries()
	entries[0].Authorized = false
	require.ErrorIs(t, VerifyChain(entries), ErrChainBroken)

	entries = l.Entries()
	entries[1].PrevHash = "00"
	require.ErrorIs(t, VerifyChain(entries), ErrChainBroken)
}

func TestEntriesReturnsCopies(t *testing.T) {
	l := NewLog(Options{})
	l.Record(Entry{PatientID: "p1", Operation: OpWrite, Authorized: true})
	l.Entries()[0].PatientID = "mutated"
	l.Query("p1")[0].Actor = "mutated"
	assert.Equal(t, "p1", l.Entries()[0].PatientID)
	assert.Empty(t, l.Entries()[0].Actor)
}

func TestConcurrentRecord(t *testing.T) {
	l := NewLog(Options{Capacity: 50})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.Record(Entry{PatientID: fmt.Sprintf("p%d", i), Operation: OpRead, Authorized: true})
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
	require.NoError(t, l.Verify())
}

func TestJournalSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "journal.jsonl")
	j, err := OpenJournal(path)
	require.NoError(t, err)

	l := NewLog(Options{Capacity: 1, Sink: j})
	l.Record(Entry{PatientID: "p1", Actor: "chw", Operation: OpWrite, Authorized: true, Outcome: "stored"})
	l.Record(Entry{PatientID: "p2", Actor: "chw", Operation: OpRead, Authorized: false, Outcome: "not_found"})
	l.Record(Entry{PatientID: "p1", Actor: "chw", Operation: OpDelete, Authorized: false, Outcome: "denied"})
	require.NoError(t, j.Close())

	got, err := ReadJournal(path, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, OpWrite, got[0].Operation)
	assert.Equal(t, "stored", got[0].Outcome)
	assert.Equal(t, OpDelete, got[1].Operation)

	all, err := ReadJournal(path, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NoError(t, VerifyChain(all))

	// Reopening continues the chain from the last journaled hash.
	j, err = OpenJournal(path)
	require.NoError(t, err)
	assert.Equal(t, all[2].EntryHash, j.LastHash())
	l = NewLog(Options{Sink: j, PrevHash: j.LastHash()})
	l.Record(Entry{PatientID: "p2", Actor: "chw", Operation: OpRead, Authorized: true, Outcome: "retrieved"})
	require.NoError(t, j.Close())
	all, err = ReadJournal(path, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.NoError(t, VerifyChain(all))

	missing, err := ReadJournal(filepath.Join(t.TempDir(), "none.jsonl"), "p1")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

type failingSink struct{ calls int }

func (f *failingSink) Write(Entry) error {
	f.calls++
	return fmt.Errorf("disk full")
}

func TestSinkErrorsAreSwallowed(t *testing.T) {
	sink := &failingSink{}
	l := NewLog(Options{Sink: sink})
	e := l.Record(Entry{PatientID: "p1", Operation: OpWrite, Authorized: true})
	assert.NotEmpty(t, e.EntryHash)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, 1, l.Len())
}
