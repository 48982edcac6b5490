package vault

import (
	"github.com/rs/zerolog"

	"github.com/Tripp808/iyacare-app-sub001/core/audit"
	"github.com/Tripp808/iyacare-app-sub001/core/config"
	"github.com/Tripp808/iyacare-app-sub001/core/crypto"
	"github.com/Tripp808/iyacare-app-sub001/core/ledger"
	"github.com/Tripp808/iyacare-app-sub001/core/storage"
)

// FromConfig opens the store and journal named by cfg and builds a vault
// around them. The vault is not connected; call Connect.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Vault, error) {
	if err := cfg.Validate(); err != nil {
		return nil, newError("open", "", KindConfiguration, err)
	}
	key, err := crypto.ParseKey(cfg.Vault.EncryptionKey, cfg.Vault.KeySalt)
	if err != nil {
		return nil, newError("open", "", KindConfiguration, err)
	}
	class, err := ledger.ParseNetworkClass(cfg.Ledger.NetworkClass)
	if err != nil {
		return nil, newError("open", "", KindConfiguration, err)
	}

	store, err := storage.Open(cfg.StoreDir(), storage.Options{
		MaxRecords:   cfg.Storage.MaxRecords,
		MinFreeBytes: cfg.Storage.MinFreeBytes,
		Logger:       logger,
	})
	if err != nil {
		return nil, newError("open", "", KindPersistence, err)
	}
	journal, err := audit.OpenJournal(cfg.JournalPath())
	if err != nil {
		store.Close()
		return nil, newError("open", "", KindPersistence, err)
	}

	var gw Gateway
	var gateway *ledger.Gateway
	if len(cfg.Ledger.Endpoints) > 0 {
		gateway = ledger.New(ledger.Config{
			Network:         cfg.Ledger.Network,
			Class:           class,
			Endpoints:       cfg.Ledger.Endpoints,
			ContractAddress: cfg.Ledger.ContractAddress,
			WriteCredential: cfg.Ledger.WriteCredentials,
			ProbeTimeout:    cfg.Ledger.ProbeTimeout,
			RequestTimeout:  cfg.Ledger.RequestTimeout,
			ReprobeInterval: cfg.Ledger.ReprobeInterval,
			WriteRate:       cfg.Ledger.WriteRate,
			WriteBurst:      cfg.Ledger.WriteBurst,
			Logger:          logger,
		})
		gw = gateway
	}

	auditLog := audit.NewLog(audit.Options{
		Capacity: cfg.Audit.Capacity,
		Sink:     journal,
		Logger:   logger,
		PrevHash: journal.LastHash(),
	})
	v, err := New(Options{
		Key:        key,
		Store:      store,
		Gateway:    gw,
		Audit:      auditLog,
		CrossCheck: cfg.Ledger.CrossCheck,
		Logger:     logger,
	})
	if err != nil {
		journal.Close()
		store.Close()
		return nil, err
	}
	v.closers = append(v.closers, journal.Close)
	if gateway != nil {
		v.closers = append(v.closers, func() error {
			gateway.Close()
			return nil
		})
	}
	return v, nil
}
