package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/fib_confluence/internal/domain"
)

// Schema versions for persisted settings payloads. Bumping a version
// invalidates every stored row of that kind; old shapes are discarded, not
// patched.
const (
	visibilityConfigVersion = 2
	swingSettingsVersion    = 1
	snapshotVersion         = 1
)

const visibilityConfigKey = "visibility_config"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			payload TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			version INTEGER NOT NULL,
			payload TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (symbol, timeframe)
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) saveSetting(ctx context.Context, key string, version int, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	query := `INSERT INTO settings (key, version, payload, updated_at)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(key) DO UPDATE SET
			  version=excluded.version,
			  payload=excluded.payload,
			  updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, key, version, string(payload), time.Now())
	return err
}

// loadSetting unmarshals a stored payload into out. A missing row, a
// version mismatch, or malformed JSON all report not-found; callers
// regenerate defaults instead of patching stale shapes.
func (s *SQLiteStore) loadSetting(ctx context.Context, key string, version int, out interface{}) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT version, payload FROM settings WHERE key = ?`, key)

	var storedVersion int
	var payload string
	if err := row.Scan(&storedVersion, &payload); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	if storedVersion != version {
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, nil
	}
	return true, nil
}

// SettingsRepository implementation

func (s *SQLiteStore) SaveVisibilityConfig(ctx context.Context, cfg *domain.VisibilityConfig) error {
	return s.saveSetting(ctx, visibilityConfigKey, visibilityConfigVersion, cfg)
}

func (s *SQLiteStore) LoadVisibilityConfig(ctx context.Context) (*domain.VisibilityConfig, error) {
	var cfg domain.VisibilityConfig
	ok, err := s.loadSetting(ctx, visibilityConfigKey, visibilityConfigVersion, &cfg)
	if err != nil || !ok {
		return nil, err
	}
	return &cfg, nil
}

func swingSettingsKey(tf domain.Timeframe) string {
	return "swing_settings:" + string(tf)
}

func (s *SQLiteStore) SaveSwingSettings(ctx context.Context, settings *domain.SwingSettings) error {
	if settings.Lookback < 2 {
		settings.Lookback = 2
	}
	if settings.Lookback > 20 {
		settings.Lookback = 20
	}
	return s.saveSetting(ctx, swingSettingsKey(settings.Timeframe), swingSettingsVersion, settings)
}

func (s *SQLiteStore) LoadSwingSettings(ctx context.Context, tf domain.Timeframe) (*domain.SwingSettings, error) {
	var settings domain.SwingSettings
	ok, err := s.loadSetting(ctx, swingSettingsKey(tf), swingSettingsVersion, &settings)
	if err != nil || !ok {
		return nil, err
	}
	return &settings, nil
}

// SnapshotRepository implementation

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, symbol string, tf domain.Timeframe, candles []domain.Candle) error {
	payload, err := json.Marshal(candles)
	if err != nil {
		return err
	}
	query := `INSERT INTO snapshots (symbol, timeframe, version, payload, updated_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(symbol, timeframe) DO UPDATE SET
			  version=excluded.version,
			  payload=excluded.payload,
			  updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, symbol, string(tf), snapshotVersion, string(payload), time.Now())
	return err
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Candle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, payload FROM snapshots WHERE symbol = ? AND timeframe = ?`, symbol, string(tf))

	var version int
	var payload string
	if err := row.Scan(&version, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if version != snapshotVersion {
		return nil, nil
	}
	var candles []domain.Candle
	if err := json.Unmarshal([]byte(payload), &candles); err != nil {
		return nil, nil
	}
	return candles, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
