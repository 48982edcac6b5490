package vault

import "sync"

// patientLocks hands out one mutex per patient id, freeing it once nobody
// holds or waits on it.
type patientLocks struct {
	mu    sync.Mutex
	locks map[string]*patientLock
}

type patientLock struct {
	sync.Mutex
	refs int
}

func newPatientLocks() *patientLocks {
	return &patientLocks{locks: make(map[string]*patientLock)}
}

// lock blocks until id is free and returns the matching unlock.
func (p *patientLocks) lock(id string) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &patientLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}

func (p *patientLocks) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
