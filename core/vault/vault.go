// Package vault is the patient-data vault: it redacts records to a
// disclosure tier, encrypts and hashes them, keeps them in the local store,
// mirrors their hashes to the ledger when it can, and audits every access.
//
// The local store is authoritative. Ledger failures are logged and never
// fail a call.
package vault

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tripp808/iyacare-app-sub001/core/audit"
	"github.com/Tripp808/iyacare-app-sub001/core/crypto"
	"github.com/Tripp808/iyacare-app-sub001/core/ledger"
	"github.com/Tripp808/iyacare-app-sub001/core/record"
	"github.com/Tripp808/iyacare-app-sub001/core/sanitize"
	"github.com/Tripp808/iyacare-app-sub001/core/storage"
)

// RecordStore is the local durable store.
type RecordStore interface {
	Put(env record.Envelope) error
	Get(id string) (record.Envelope, error)
	ListIDs() []string
	Len() int
	Close() error
}

// Gateway is the ledger connection.
type Gateway interface {
	Connect(ctx context.Context) error
	WriteRecord(ctx context.Context, patientID, contentHash string, tier record.Tier) (string, error)
	ReadRecord(ctx context.Context, patientID string) (ledger.Anchor, error)
	Info() ledger.Info
}

type Options struct {
	// Key is the 32-byte record encryption key.
	Key   []byte
	Store RecordStore
	// Gateway may be nil for a local-only vault.
	Gateway Gateway
	Audit   audit.AuditLogger
	Policy  *sanitize.Policy
	// CrossCheck makes Retrieve compare the local hash with the ledger anchor.
	CrossCheck bool
	Logger     zerolog.Logger
	Now        func() time.Time
}

type Vault struct {
	cipher     *crypto.Cipher
	store      RecordStore
	gateway    Gateway
	audit      audit.AuditLogger
	policy     *sanitize.Policy
	crossCheck bool
	logger     zerolog.Logger
	now        func() time.Time
	locks      *patientLocks
	closers    []func() error
}

// Metadata describes a stored record alongside its plaintext.
type Metadata struct {
	ContentHash    string       `json:"contentHash"`
	Tier           record.Tier  `json:"tier"`
	Version        uint64       `json:"version"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastModifiedAt time.Time    `json:"lastModifiedAt"`
	Network        ledger.Info  `json:"network"`
	Remote         *RemoteCheck `json:"remote,omitempty"`
}

// RemoteCheck is the outcome of comparing the local hash with the ledger.
type RemoteCheck struct {
	Anchored bool   `json:"anchored"`
	Matches  bool   `json:"matches"`
	TxID     string `json:"txId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Result struct {
	Record   record.PatientRecord `json:"record"`
	Metadata Metadata             `json:"metadata"`
}

// IntegrityReport is the outcome of VerifyIntegrity.
type IntegrityReport struct {
	PatientID    string      `json:"patientId"`
	Verified     bool        `json:"verified"`
	StoredHash   string      `json:"storedHash"`
	ComputedHash string      `json:"computedHash,omitempty"`
	Tier         record.Tier `json:"tier"`
	Version      uint64      `json:"version"`
	Reason       string      `json:"reason,omitempty"`
	CheckedAt    time.Time   `json:"checkedAt"`
}

// Err is nil for a verified record and ErrIntegrityMismatch otherwise.
func (r IntegrityReport) Err() error {
	if r.Verified {
		return nil
	}
	return errorf("verify", r.PatientID, KindIntegrity, "%s", r.Reason)
}

// Status is the read-only operator view of the vault.
type Status struct {
	Records      int                 `json:"records"`
	AuditEntries int                 `json:"auditEntries"`
	LastActivity time.Time           `json:"lastActivity"`
	Network      string              `json:"network"`
	NetworkClass ledger.NetworkClass `json:"networkClass"`
	Connected    bool                `json:"connected"`
	Endpoint     string              `json:"endpoint,omitempty"`
	LedgerWrites string              `json:"ledgerWrites,omitempty"`
	KeyID        string              `json:"keyId"`
}

// New builds a vault. The key and store are required.
func New(opts Options) (*Vault, error) {
	c, err := crypto.NewCipher(opts.Key)
	if err != nil {
		return nil, newError("new", "", KindConfiguration, err)
	}
	if opts.Store == nil {
		return nil, errorf("new", "", KindConfiguration, "no record store")
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLog(audit.Options{Logger: opts.Logger})
	}
	if opts.Policy == nil {
		opts.Policy = sanitize.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Vault{
		cipher:     c,
		store:      opts.Store,
		gateway:    opts.Gateway,
		audit:      opts.Audit,
		policy:     opts.Policy,
		crossCheck: opts.CrossCheck,
		logger:     opts.Logger.With().Str("component", "vault").Logger(),
		now:        opts.Now,
		locks:      newPatientLocks(),
	}, nil
}

// Connect attaches the vault to the ledger. ErrConnection leaves the vault
// usable in local-only mode.
func (v *Vault) Connect(ctx context.Context) error {
	if v.gateway == nil {
		return errorf("connect", "", KindConfiguration, "no ledger endpoints configured")
	}
	err := v.gateway.Connect(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrConfiguration):
		return newError("connect", "", KindConfiguration, err)
	default:
		v.logger.Warn().Err(err).Msg("continuing in local-only mode")
		return newError("connect", "", KindConnection, err)
	}
}

// Store redacts rec to tier, persists it and returns the content hash.
// Storing an id that already exists replaces its content and continues its
// version sequence.
func (v *Vault) Store(ctx context.Context, rec record.Record, tier record.Tier) (string, error) {
	const op = "store"
	actor := ActorFrom(ctx)

	normalized, err := v.normalize(rec)
	if err != nil {
		v.auditEntry(normalized.PatientID(), actor, audit.OpWrite, false, string(KindInvalidRecord))
		return "", newError(op, normalized.PatientID(), KindInvalidRecord, err)
	}
	id := normalized.PatientID()
	if !tier.Valid() {
		v.auditEntry(id, actor, audit.OpWrite, false, string(KindInvalidRecord))
		return "", errorf(op, id, KindInvalidRecord, "invalid tier %d", uint8(tier))
	}

	unlock := v.locks.lock(id)
	defer unlock()

	now := v.now().UTC()
	env := record.Envelope{PatientID: id, Tier: tier, Version: 1, CreatedAt: now, LastModifiedAt: now}
	if prev, err := v.store.Get(id); err == nil {
		env.Version = prev.Version + 1
		env.CreatedAt = prev.CreatedAt
		if !now.After(prev.LastModifiedAt) {
			env.LastModifiedAt = prev.LastModifiedAt.Add(time.Nanosecond)
		}
	}

	hash, err := v.seal(op, normalized, &env)
	if err != nil {
		v.auditEntry(id, actor, audit.OpWrite, false, string(KindOf(err)))
		return "", err
	}
	v.logger.Info().Str("patient_id", id).Stringer("tier", tier).Uint64("version", env.Version).Msg("record stored")
	v.mirror(ctx, id, hash, tier)
	v.auditEntry(id, actor, audit.OpWrite, true, "stored")
	return hash, nil
}

// Retrieve decrypts the stored record for id. There is no remote fallback:
// the ledger never holds plaintext.
func (v *Vault) Retrieve(ctx context.Context, id string) (Result, error) {
	const op = "retrieve"
	actor := ActorFrom(ctx)

	env, rec, err := v.open(op, id)
	if err != nil {
		v.auditEntry(id, actor, audit.OpRead, false, string(KindOf(err)))
		return Result{}, err
	}
	res := Result{
		Record: rec,
		Metadata: Metadata{
			ContentHash:    env.ContentHash,
			Tier:           env.Tier,
			Version:        env.Version,
			CreatedAt:      env.CreatedAt,
			LastModifiedAt: env.LastModifiedAt,
			Network:        v.networkInfo(),
		},
	}
	if v.crossCheck && v.gateway != nil {
		res.Metadata.Remote = v.remoteCheck(ctx, env)
	}
	v.auditEntry(id, actor, audit.OpRead, true, "retrieved")
	return res, nil
}

// Update merges changes over the stored record as a JSON merge patch and
// re-stores it at the same tier. A nil value deletes a field; patientId
// cannot change.
func (v *Vault) Update(ctx context.Context, id string, changes record.Record) (string, error) {
	return v.update(ctx, id, changes, 0)
}

// UpdateIfVersion is Update that fails with ErrVersionConflict unless the
// stored version is still expected.
func (v *Vault) UpdateIfVersion(ctx context.Context, id string, expected uint64, changes record.Record) (string, error) {
	if expected == 0 {
		return "", errorf("update", id, KindVersionConflict, "expected version must be >= 1")
	}
	return v.update(ctx, id, changes, expected)
}

func (v *Vault) update(ctx context.Context, id string, changes record.Record, expected uint64) (string, error) {
	const op = "update"
	actor := ActorFrom(ctx)
	fail := func(err error) (string, error) {
		v.auditEntry(id, actor, audit.OpWrite, false, string(KindOf(err)))
		return "", err
	}

	patch, err := normalizePatch(changes)
	if err != nil {
		return fail(newError(op, id, KindInvalidRecord, err))
	}
	if pid, ok := patch[record.IDField]; ok && pid != id {
		return fail(errorf(op, id, KindInvalidRecord, "%s is immutable", record.IDField))
	}

	unlock := v.locks.lock(id)
	defer unlock()

	prev, current, err := v.open(op, id)
	if err != nil {
		return fail(err)
	}
	if expected != 0 && prev.Version != expected {
		return fail(errorf(op, id, KindVersionConflict, "stored version %d, expected %d", prev.Version, expected))
	}
	merged := current.Merge(patch)
	if err := record.Validate(merged); err != nil {
		return fail(newError(op, id, KindInvalidRecord, err))
	}

	now := v.now().UTC()
	if !now.After(prev.LastModifiedAt) {
		now = prev.LastModifiedAt.Add(time.Nanosecond)
	}
	env := record.Envelope{
		PatientID:      id,
		Tier:           prev.Tier,
		Version:        prev.Version + 1,
		CreatedAt:      prev.CreatedAt,
		LastModifiedAt: now,
	}
	hash, err := v.seal(op, merged, &env)
	if err != nil {
		return fail(err)
	}
	v.logger.Info().Str("patient_id", id).Uint64("version", env.Version).Msg("record updated")
	v.mirror(ctx, id, hash, env.Tier)
	v.auditEntry(id, actor, audit.OpWrite, true, "updated")
	return hash, nil
}

// VerifyIntegrity recomputes the content hash of the stored record and
// compares it with the stored one. A mismatch is reported, never repaired.
func (v *Vault) VerifyIntegrity(ctx context.Context, id string) (IntegrityReport, error) {
	const op = "verify"
	actor := ActorFrom(ctx)

	env, err := v.store.Get(id)
	if errors.Is(err, storage.ErrCorrupt) {
		report := IntegrityReport{PatientID: id, Reason: "envelope unreadable", CheckedAt: v.now().UTC()}
		v.logger.Error().Err(err).Str("patient_id", id).Str("reason", report.Reason).Msg("integrity check failed")
		v.auditEntry(id, actor, audit.OpRead, false, string(KindIntegrity))
		return report, nil
	}
	if err != nil {
		err = v.storeError(op, id, err)
		v.auditEntry(id, actor, audit.OpRead, false, string(KindOf(err)))
		return IntegrityReport{}, err
	}
	if env.KeyID != "" && env.KeyID != v.cipher.KeyID() {
		err := errorf(op, id, KindDecryption, "sealed with key %s, vault holds %s", env.KeyID, v.cipher.KeyID())
		v.auditEntry(id, actor, audit.OpRead, false, string(KindDecryption))
		return IntegrityReport{}, err
	}

	report := IntegrityReport{
		PatientID:  id,
		StoredHash: env.ContentHash,
		Tier:       env.Tier,
		Version:    env.Version,
		CheckedAt:  v.now().UTC(),
	}
	rec, err := v.cipher.Decrypt(env.Ciphertext)
	switch {
	case err != nil:
		report.Reason = "ciphertext failed authentication"
	default:
		computed, herr := v.sealedHash(rec, env.Tier)
		if herr != nil {
			report.Reason = "record cannot be hashed"
			break
		}
		report.ComputedHash = computed
		report.Verified = computed == env.ContentHash
		if !report.Verified {
			report.Reason = "content hash mismatch"
		}
	}

	if report.Verified {
		v.auditEntry(id, actor, audit.OpRead, true, "verified")
	} else {
		v.logger.Error().Str("patient_id", id).Uint64("version", env.Version).Str("reason", report.Reason).
			Msg("integrity check failed")
		v.auditEntry(id, actor, audit.OpRead, false, string(KindIntegrity))
	}
	return report, nil
}

// RecordDeleteAttempt audits a delete request. Records are never deleted.
func (v *Vault) RecordDeleteAttempt(ctx context.Context, id string) error {
	v.auditEntry(id, ActorFrom(ctx), audit.OpDelete, false, "denied")
	return errorf("delete", id, KindAccessDenied, "records cannot be deleted")
}

// AuditTrail returns the retained access log for id, oldest first.
func (v *Vault) AuditTrail(id string) []audit.Entry {
	return v.audit.Query(id)
}

// VerifyAuditChain checks the retained audit log for tampering.
func (v *Vault) VerifyAuditChain() error {
	return v.audit.Verify()
}

func (v *Vault) ListIDs() []string {
	return v.store.ListIDs()
}

// Status is derived from in-memory state only and has no side effects.
func (v *Vault) Status() Status {
	info := v.networkInfo()
	return Status{
		Records:      v.store.Len(),
		AuditEntries: v.audit.Len(),
		LastActivity: v.audit.LastActivity(),
		Network:      info.Network,
		NetworkClass: info.Class,
		Connected:    info.Connected,
		Endpoint:     info.Endpoint,
		LedgerWrites: info.Breaker,
		KeyID:        v.cipher.KeyID(),
	}
}

// Close releases the store and anything the vault was built with.
func (v *Vault) Close() error {
	var errs []error
	if err := v.store.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range v.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v *Vault) normalize(rec record.Record) (record.PatientRecord, error) {
	normalized, err := record.New(rec)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(normalized); err != nil {
		return normalized, err
	}
	return normalized, nil
}

func normalizePatch(changes record.Record) (record.PatientRecord, error) {
	if changes == nil {
		return record.PatientRecord{}, nil
	}
	return record.New(changes)
}

// seal sanitizes rec to env.Tier, fills in the hash and ciphertext and
// persists env.
func (v *Vault) seal(op string, rec record.PatientRecord, env *record.Envelope) (string, error) {
	sanitized, err := v.policy.Sanitize(rec, env.Tier)
	if err != nil {
		return "", newError(op, env.PatientID, KindInvalidRecord, err)
	}
	hash, err := crypto.Hash(sanitized)
	if err != nil {
		return "", newError(op, env.PatientID, KindInvalidRecord, err)
	}
	ct, err := v.cipher.Encrypt(sanitized)
	if err != nil {
		return "", newError(op, env.PatientID, KindPersistence, err)
	}
	env.ContentHash = hash
	env.Ciphertext = ct
	env.KeyID = v.cipher.KeyID()
	if err := v.store.Put(*env); err != nil {
		return "", v.storeError(op, env.PatientID, err)
	}
	return hash, nil
}

func (v *Vault) sealedHash(rec record.PatientRecord, tier record.Tier) (string, error) {
	sanitized, err := v.policy.Sanitize(rec, tier)
	if err != nil {
		return "", err
	}
	return crypto.Hash(sanitized)
}

// open loads and decrypts the record for id.
func (v *Vault) open(op, id string) (record.Envelope, record.PatientRecord, error) {
	env, err := v.store.Get(id)
	if err != nil {
		return record.Envelope{}, nil, v.storeError(op, id, err)
	}
	if env.KeyID != "" && env.KeyID != v.cipher.KeyID() {
		return env, nil, errorf(op, id, KindDecryption, "sealed with key %s, vault holds %s", env.KeyID, v.cipher.KeyID())
	}
	rec, err := v.cipher.Decrypt(env.Ciphertext)
	if err != nil {
		v.logger.Warn().Str("patient_id", id).Err(err).Msg("decryption failed")
		return env, nil, newError(op, id, KindDecryption, err)
	}
	return env, rec, nil
}

func (v *Vault) storeError(op, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return newError(op, id, KindNotFound, err)
	}
	if errors.Is(err, storage.ErrCorrupt) {
		v.logger.Error().Err(err).Str("patient_id", id).Str("op", op).Msg("stored envelope unreadable")
		return newError(op, id, KindIntegrity, err)
	}
	v.logger.Error().Err(err).Str("patient_id", id).Str("op", op).Msg("local store failure")
	return newError(op, id, KindPersistence, err)
}

// mirror writes the hash to the ledger. Failures are logged and dropped.
func (v *Vault) mirror(ctx context.Context, id, hash string, tier record.Tier) {
	if v.gateway == nil {
		return
	}
	txID, err := v.gateway.WriteRecord(ctx, id, hash, tier)
	if err != nil {
		v.logger.Warn().Err(newError("store", id, KindRemoteWrite, err)).Str("patient_id", id).
			Msg("ledger write failed, record kept locally")
		return
	}
	if txID != "" {
		v.logger.Debug().Str("patient_id", id).Str("tx_id", txID).Msg("ledger write accepted")
	}
}

func (v *Vault) remoteCheck(ctx context.Context, env record.Envelope) *RemoteCheck {
	anchor, err := v.gateway.ReadRecord(ctx, env.PatientID)
	switch {
	case err == nil:
		return &RemoteCheck{
			Anchored: true,
			Matches:  anchor.ContentHash == env.ContentHash,
			TxID:     anchor.TxID,
		}
	case errors.Is(err, ledger.ErrNotFound):
		return &RemoteCheck{}
	case errors.Is(err, ledger.ErrConfiguration):
		return nil
	default:
		rerr := newError("retrieve", env.PatientID, KindRemoteRead, err)
		v.logger.Warn().Err(rerr).Str("patient_id", env.PatientID).Msg("ledger cross-check failed")
		return &RemoteCheck{Error: string(KindRemoteRead)}
	}
}

func (v *Vault) networkInfo() ledger.Info {
	if v.gateway == nil {
		return ledger.Info{}
	}
	return v.gateway.Info()
}

func (v *Vault) auditEntry(id, actor string, op audit.Operation, authorized bool, outcome string) {
	v.audit.Record(audit.Entry{
		PatientID:  id,
		Actor:      actor,
		Operation:  op,
		Authorized: authorized,
		Outcome:    outcome,
	})
}
