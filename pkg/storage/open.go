package storage

import (
	"fmt"

	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/log"
)

// Open creates the KV for backend at path. A positive lruSize adds an in-memory read tier.
func Open(backend, path string, lruSize int) (KV, error) {
	var (
		kv  KV
		err error
	)
	switch backend {
	case BackendSQLite, "":
		s := NewSQLiteStore(path)
		if err = s.Init(); err == nil {
			kv = s
		}
	case BackendBadger:
		kv, err = OpenBadgerStore(path)
	case BackendMemory:
		kv = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, errors.NewStoreError("storage", "open", backend, err)
	}

	log.DatabaseLogger().Info("Key-value store opened", "backend", backend, "path", path, "lru_size", lruSize)
	if lruSize <= 0 {
		return kv, nil
	}
	cached, err := NewCachedStore(kv, lruSize)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return cached, nil
}
