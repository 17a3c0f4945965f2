// Package store persists provider configs, location fixes, weather
// samples, wardrobe items, and chat history. The SQLite implementation
// uses modernc.org/sqlite (pure Go, CGo-free); Memory backs tests.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/outfitlab/outfit-gateway/internal/gateway"
	"github.com/outfitlab/outfit-gateway/internal/llm"
	"github.com/outfitlab/outfit-gateway/internal/location"
	"github.com/outfitlab/outfit-gateway/internal/wardrobe"
	"github.com/outfitlab/outfit-gateway/internal/weather"
)

// Provider credentials are stored as plaintext columns, matching the
// system this replaces; encryption at rest is left to the integrating
// system.
const schema = `
CREATE TABLE IF NOT EXISTS llm_configs (
	id          TEXT PRIMARY KEY,
	user_id     INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	api_key     TEXT NOT NULL,
	api_secret  TEXT,
	app_id      TEXT,
	api_base    TEXT,
	is_active   INTEGER NOT NULL DEFAULT 1,
	is_default  INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_llm_configs_user ON llm_configs(user_id, is_active);

CREATE TABLE IF NOT EXISTS location_fixes (
	user_id     INTEGER PRIMARY KEY,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	city        TEXT,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS weather_samples (
	city        TEXT PRIMARY KEY,
	temperature REAL NOT NULL,
	condition   TEXT NOT NULL,
	humidity    INTEGER NOT NULL,
	wind_speed  REAL NOT NULL,
	captured_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS clothing_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL,
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	seasons     TEXT,
	occasions   TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clothing_user ON clothing_items(user_id);

CREATE TABLE IF NOT EXISTS chat_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL,
	user_message TEXT NOT NULL,
	ai_response  TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'chat',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_history(user_id, created_at);
`

// SQLite implements every store contract the core consumes.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// --- llm.ConfigStore ---

func (s *SQLite) Get(ctx context.Context, id string, userID int64) (llm.Config, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, kind, api_key, COALESCE(api_secret,''), COALESCE(app_id,''),
		        COALESCE(api_base,''), is_active, is_default, created_at
		 FROM llm_configs WHERE id = ? AND user_id = ?`, id, userID)
	return scanConfig(row)
}

func (s *SQLite) FirstActive(ctx context.Context, userID int64) (llm.Config, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, kind, api_key, COALESCE(api_secret,''), COALESCE(app_id,''),
		        COALESCE(api_base,''), is_active, is_default, created_at
		 FROM llm_configs WHERE user_id = ? AND is_active = 1
		 ORDER BY is_default DESC, created_at ASC LIMIT 1`, userID)
	return scanConfig(row)
}

func (s *SQLite) ListActive(ctx context.Context, userID int64) ([]llm.Config, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, api_key, COALESCE(api_secret,''), COALESCE(app_id,''),
		        COALESCE(api_base,''), is_active, is_default, created_at
		 FROM llm_configs WHERE user_id = ? AND is_active = 1
		 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []llm.Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func (s *SQLite) Save(ctx context.Context, cfg *llm.Config) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_configs
		   (id, user_id, kind, api_key, api_secret, app_id, api_base, is_active, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kind = excluded.kind, api_key = excluded.api_key,
		   api_secret = excluded.api_secret, app_id = excluded.app_id,
		   api_base = excluded.api_base, is_active = excluded.is_active,
		   is_default = excluded.is_default`,
		cfg.ID, cfg.UserID, string(cfg.Kind), cfg.APIKey, cfg.APISecret,
		cfg.AppID, cfg.APIBase, cfg.Active, cfg.Default, cfg.CreatedAt)
	return err
}

func (s *SQLite) Delete(ctx context.Context, id string, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM llm_configs WHERE id = ? AND user_id = ?`, id, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (llm.Config, error) {
	var cfg llm.Config
	var kind string
	err := row.Scan(&cfg.ID, &cfg.UserID, &kind, &cfg.APIKey, &cfg.APISecret,
		&cfg.AppID, &cfg.APIBase, &cfg.Active, &cfg.Default, &cfg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return llm.Config{}, llm.ErrNoConfig
	}
	if err != nil {
		return llm.Config{}, err
	}
	cfg.Kind = llm.Kind(kind)
	return cfg, nil
}

// --- location.FixStore ---

func (s *SQLite) GetFix(ctx context.Context, userID int64) (location.Fix, error) {
	var fix location.Fix
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, latitude, longitude, COALESCE(city,''), updated_at
		 FROM location_fixes WHERE user_id = ?`, userID).
		Scan(&fix.UserID, &fix.Lat, &fix.Lon, &fix.City, &fix.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return location.Fix{}, location.ErrNoFix
	}
	return fix, err
}

func (s *SQLite) UpsertFix(ctx context.Context, fix location.Fix) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO location_fixes (user_id, latitude, longitude, city, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   latitude = excluded.latitude, longitude = excluded.longitude,
		   city = excluded.city, updated_at = excluded.updated_at`,
		fix.UserID, fix.Lat, fix.Lon, fix.City, fix.UpdatedAt)
	return err
}

// Fixes adapts the SQLite store to location.FixStore.
func (s *SQLite) Fixes() location.FixStore {
	return fixStore{s}
}

type fixStore struct{ s *SQLite }

func (f fixStore) Get(ctx context.Context, userID int64) (location.Fix, error) {
	return f.s.GetFix(ctx, userID)
}

func (f fixStore) Upsert(ctx context.Context, fix location.Fix) error {
	return f.s.UpsertFix(ctx, fix)
}

// --- weather.SampleStore ---

func (s *SQLite) Latest(ctx context.Context, city string) (weather.Sample, error) {
	var sample weather.Sample
	err := s.db.QueryRowContext(ctx,
		`SELECT city, temperature, condition, humidity, wind_speed, captured_at
		 FROM weather_samples WHERE city = ?`, city).
		Scan(&sample.City, &sample.TempC, &sample.Condition,
			&sample.Humidity, &sample.WindSpeed, &sample.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Sample{}, weather.ErrNoSample
	}
	return sample, err
}

func (s *SQLite) Put(ctx context.Context, sample weather.Sample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weather_samples (city, temperature, condition, humidity, wind_speed, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(city) DO UPDATE SET
		   temperature = excluded.temperature, condition = excluded.condition,
		   humidity = excluded.humidity, wind_speed = excluded.wind_speed,
		   captured_at = excluded.captured_at`,
		sample.City, sample.TempC, sample.Condition,
		sample.Humidity, sample.WindSpeed, sample.Timestamp)
	return err
}

func (s *SQLite) Evict(ctx context.Context, city string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM weather_samples WHERE city = ?`, city)
	return err
}

func (s *SQLite) PruneExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM weather_samples WHERE captured_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- gateway.WardrobeStore ---

func (s *SQLite) ItemsByUser(ctx context.Context, userID int64) ([]wardrobe.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, category, description, COALESCE(seasons,''), COALESCE(occasions,''), created_at
		 FROM clothing_items WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []wardrobe.Item
	for rows.Next() {
		var item wardrobe.Item
		var seasons, occasions string
		if err := rows.Scan(&item.ID, &item.UserID, &item.Category, &item.Description,
			&seasons, &occasions, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Seasons = decodeList(seasons)
		item.Occasions = decodeList(occasions)
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddItem inserts a clothing item; used by the analyze-and-save flow and
// by tests seeding wardrobes.
func (s *SQLite) AddItem(ctx context.Context, item *wardrobe.Item) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clothing_items (user_id, category, description, seasons, occasions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.UserID, item.Category, item.Description,
		encodeList(item.Seasons), encodeList(item.Occasions), item.CreatedAt)
	if err != nil {
		return err
	}
	item.ID, err = res.LastInsertId()
	return err
}

// Season and occasion sets travel as JSON arrays in a text column, the
// same encoding the original tables used.
func encodeList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	b, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

// --- gateway.HistoryStore ---

func (s *SQLite) SaveChat(ctx context.Context, rec *gateway.ChatRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.MessageType == "" {
		rec.MessageType = "chat"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (user_id, user_message, ai_response, message_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, rec.UserMessage, rec.AIResponse, rec.MessageType, rec.CreatedAt)
	if err != nil {
		return err
	}
	rec.ID, err = res.LastInsertId()
	return err
}

func (s *SQLite) RecentChats(ctx context.Context, userID int64, limit int) ([]gateway.ChatRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, user_message, ai_response, message_type, created_at
		 FROM chat_history WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []gateway.ChatRecord
	for rows.Next() {
		var rec gateway.ChatRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.UserMessage,
			&rec.AIResponse, &rec.MessageType, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
