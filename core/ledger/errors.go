package ledger

import "errors"

var (
	// ErrConfiguration means the gateway cannot run with its settings.
	ErrConfiguration = errors.New("ledger: invalid configuration")
	// ErrConnection means no endpoint in the pool answered a probe.
	ErrConnection = errors.New("ledger: no reachable endpoint")
	// ErrNotConnected is returned when there is no active endpoint and a
	// re-probe is not yet due.
	ErrNotConnected = errors.New("ledger: not connected")
	ErrRemoteWrite  = errors.New("ledger: remote write failed")
	ErrRemoteRead   = errors.New("ledger: remote read failed")
	// ErrNotFound means the contract holds no anchor for the record.
	ErrNotFound    = errors.New("ledger: record not anchored")
	ErrRateLimited = errors.New("ledger: write rate exceeded")
)
