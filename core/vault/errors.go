package vault

import (
	"errors"
	"fmt"
)

// Kind classifies every error the vault returns.
type Kind string

const (
	KindConfiguration   Kind = "configuration"
	KindConnection      Kind = "connection"
	KindPersistence     Kind = "persistence"
	KindDecryption      Kind = "decryption"
	KindNotFound        Kind = "not_found"
	KindIntegrity       Kind = "integrity_mismatch"
	KindRemoteWrite     Kind = "remote_write"
	KindRemoteRead      Kind = "remote_read"
	KindInvalidRecord   Kind = "invalid_record"
	KindAccessDenied    Kind = "access_denied"
	KindVersionConflict Kind = "version_conflict"
)

var (
	ErrConfiguration     = errors.New("vault: not configured")
	ErrConnection        = errors.New("vault: ledger unreachable")
	ErrPersistence       = errors.New("vault: local store failure")
	ErrDecryption        = errors.New("vault: record cannot be decrypted")
	ErrNotFound          = errors.New("vault: record not found")
	ErrIntegrityMismatch = errors.New("vault: data may be corrupted")
	ErrRemoteWrite       = errors.New("vault: ledger write failed")
	ErrRemoteRead        = errors.New("vault: ledger read failed")
	ErrInvalidRecord     = errors.New("vault: invalid record")
	ErrAccessDenied      = errors.New("vault: access denied")
	ErrVersionConflict   = errors.New("vault: version conflict")
)

var sentinels = map[Kind]error{
	KindConfiguration:   ErrConfiguration,
	KindConnection:      ErrConnection,
	KindPersistence:     ErrPersistence,
	KindDecryption:      ErrDecryption,
	KindNotFound:        ErrNotFound,
	KindIntegrity:       ErrIntegrityMismatch,
	KindRemoteWrite:     ErrRemoteWrite,
	KindRemoteRead:      ErrRemoteRead,
	KindInvalidRecord:   ErrInvalidRecord,
	KindAccessDenied:    ErrAccessDenied,
	KindVersionConflict: ErrVersionConflict,
}

// Error carries the operation, patient and kind of a failure. Its message
// never includes record contents.
type Error struct {
	Op        string
	PatientID string
	Kind      Kind
	Err       error
}

func (e *Error) Error() string {
	msg := "vault: " + e.Op
	if e.PatientID != "" {
		msg += " " + e.PatientID
	}
	msg += ": " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of err, or "" if it did not come from the vault.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return ""
}

func newError(op, patientID string, kind Kind, err error) *Error {
	return &Error{Op: op, PatientID: patientID, Kind: kind, Err: err}
}

func errorf(op, patientID string, kind Kind, format string, args ...any) *Error {
	return newError(op, patientID, kind, fmt.Errorf(format, args...))
}
