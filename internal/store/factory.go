package store

import (
	"fmt"
	"os"
	"strings"
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
	ModeRedis    = "redis"
)

func storeModeFromEnv(name, fallback string) string {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch raw {
	case "":
		return fallback
	case "mem":
		return ModeMemory
	case "local", "db":
		return ModeSQLite
	case "postgresql", "pg":
		return ModePostgres
	default:
		return raw
	}
}

// NewFromEnv wires the snapshot and history stores.
//
// SNAPSHOT_STORE: memory | sqlite | postgres | redis (default sqlite)
// HISTORY_STORE:  memory | sqlite | postgres (default: snapshot mode, or
// sqlite when snapshots live in redis)
func NewFromEnv() (SnapshotStore, HistoryStore, string, error) {
	snapMode := storeModeFromEnv("SNAPSHOT_STORE", ModeSQLite)
	histFallback := snapMode
	if snapMode == ModeRedis {
		histFallback = ModeSQLite
	}
	histMode := storeModeFromEnv("HISTORY_STORE", histFallback)

	mode := snapMode
	if histMode != snapMode {
		mode = snapMode + "+" + histMode
	}

	// A shared SQL backend serves both roles with one connection.
	if snapMode == histMode {
		switch snapMode {
		case ModeMemory:
			m := NewMemoryStore()
			return m, m, mode, nil
		case ModeSQLite:
			s, err := NewSQLiteStoreFromEnv()
			if err != nil {
				return nil, nil, mode, err
			}
			return s, s, mode, nil
		case ModePostgres:
			s, err := NewPostgresStoreFromEnv()
			if err != nil {
				return nil, nil, mode, err
			}
			return s, s, mode, nil
		}
	}

	snapshots, err := newSnapshotStore(snapMode)
	if err != nil {
		return nil, nil, mode, err
	}
	history, err := newHistoryStore(histMode)
	if err != nil {
		_ = snapshots.Close()
		return nil, nil, mode, err
	}
	return snapshots, history, mode, nil
}

func newSnapshotStore(mode string) (SnapshotStore, error) {
	switch mode {
	case ModeMemory:
		return NewMemoryStore(), nil
	case ModeSQLite:
		return NewSQLiteStoreFromEnv()
	case ModePostgres:
		return NewPostgresStoreFromEnv()
	case ModeRedis:
		return NewRedisSnapshotStoreFromEnv()
	default:
		return nil, fmt.Errorf("invalid SNAPSHOT_STORE %q", mode)
	}
}

func newHistoryStore(mode string) (HistoryStore, error) {
	switch mode {
	case ModeMemory:
		return NewMemoryStore(), nil
	case ModeSQLite:
		return NewSQLiteStoreFromEnv()
	case ModePostgres:
		return NewPostgresStoreFromEnv()
	default:
		return nil, fmt.Errorf("invalid HISTORY_STORE %q", mode)
	}
}
