package storage

import "fmt"

// Open returns the KV backend selected by cfg.Database.
func Open(cfg *Config) (KV, error) {
	switch cfg.Database.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.Database.Path)
	case BackendBadger:
		return NewBadgerStore(cfg.Database.Path)
	case BackendMemory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Database.Backend)
	}
}
