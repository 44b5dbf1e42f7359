package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/churnbatch/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS churn_history (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL,
	gender                TEXT NOT NULL,
	age                   INTEGER NOT NULL,
	country               TEXT,
	subscription_type     TEXT,
	device_type           TEXT,
	listening_time        REAL,
	songs_played_per_day  INTEGER,
	skip_rate             REAL,
	ads_listened_per_week INTEGER,
	offline_listening     INTEGER,
	churn_status          TEXT NOT NULL,
	probability           REAL NOT NULL,
	frustration_index     REAL,
	ad_intensity          REAL,
	songs_per_minute      REAL,
	is_heavy_user         INTEGER,
	premium_no_offline    INTEGER,
	risk_factor           TEXT,
	retention_factor      TEXT,
	suggested_action      TEXT,
	requester_id          TEXT,
	request_ip            TEXT,
	created_at            DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_churn_history_user ON churn_history(user_id);
CREATE INDEX IF NOT EXISTS idx_churn_history_created ON churn_history(created_at);
`

const insertRecord = `INSERT INTO churn_history (
	id, user_id, gender, age, country, subscription_type, device_type,
	listening_time, songs_played_per_day, skip_rate, ads_listened_per_week, offline_listening,
	churn_status, probability, frustration_index, ad_intensity, songs_per_minute,
	is_heavy_user, premium_no_offline, risk_factor, retention_factor, suggested_action,
	requester_id, request_ip, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRecord = `SELECT
	id, user_id, gender, age, country, subscription_type, device_type,
	listening_time, songs_played_per_day, skip_rate, ads_listened_per_week, offline_listening,
	churn_status, probability, frustration_index, ad_intensity, songs_per_minute,
	is_heavy_user, premium_no_offline, risk_factor, retention_factor, suggested_action,
	requester_id, request_ip, created_at
FROM churn_history WHERE id = ?`

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. ":memory:" opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+dsnParams(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// parallel chunk transactions and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func dsnParams(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if path == ":memory:" {
		return sep + "_busy_timeout=5000"
	}
	return sep + "_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
}

// SaveAll inserts recs in one transaction.
func (s *SQLiteStore) SaveAll(ctx context.Context, recs []model.ScoredRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx, recordArgs(r)...); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveBatch inserts recs as consecutive chunk transactions.
func (s *SQLiteStore) SaveBatch(ctx context.Context, recs []model.ScoredRecord, chunkSize int) error {
	return saveChunks(ctx, recs, chunkSize, s.SaveAll)
}

// CountTotal returns the number of rows in churn_history.
func (s *SQLiteStore) CountTotal(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM churn_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Find loads one record by id.
func (s *SQLiteStore) Find(ctx context.Context, id string) (model.ScoredRecord, error) {
	var (
		rec                                   model.ScoredRecord
		in                                    model.ProfileInput
		country, subscription, device         sql.NullString
		listening, skip                       sql.NullFloat64
		songs, ads                            sql.NullInt64
		offline                               sql.NullBool
		label                                 string
		risk, retention, action, reqID, reqIP sql.NullString
	)

	err := s.db.QueryRowContext(ctx, selectRecord, id).Scan(
		&rec.ID, &in.UserID, &in.Gender, &in.Age, &country, &subscription, &device,
		&listening, &songs, &skip, &ads, &offline,
		&label, &rec.Probability, &rec.Features.FrustrationIndex, &rec.Features.AdIntensity, &rec.Features.SongsPerMinute,
		&rec.Features.IsHeavyUser, &rec.Features.PremiumNoOffline, &risk, &retention, &action,
		&reqID, &reqIP, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScoredRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.ScoredRecord{}, fmt.Errorf("find %s: %w", id, err)
	}

	in.Country, in.SubscriptionType, in.DeviceType = country.String, subscription.String, device.String
	in.ListeningTime = nullFloat(listening)
	in.SkipRate = nullFloat(skip)
	in.SongsPerDay = nullInt(songs)
	in.AdsPerWeek = nullInt(ads)
	if offline.Valid {
		in.OfflineListening = model.Ptr(offline.Bool)
	}

	if rec.Profile, err = model.NewCustomerProfile(in); err != nil {
		return model.ScoredRecord{}, fmt.Errorf("decode %s: %w", id, err)
	}
	rec.Label = model.ChurnLabel(label)
	rec.Diagnosis = model.Diagnosis{RiskFactor: risk.String, RetentionFactor: retention.String, SuggestedAction: action.String}
	rec.RequesterID, rec.RequesterIP = reqID.String, reqIP.String
	return rec, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func recordArgs(r model.ScoredRecord) []any {
	p := r.Profile
	return []any{
		r.ID, p.UserID(), p.Gender(), p.Age(), p.Country(), p.SubscriptionType(), p.DeviceType(),
		optional(p.ListeningTime()), optional(p.SongsPerDay()), optional(p.SkipRate()),
		optional(p.AdsPerWeek()), optional(p.OfflineListening()),
		string(r.Label), r.Probability, r.Features.FrustrationIndex, r.Features.AdIntensity, r.Features.SongsPerMinute,
		r.Features.IsHeavyUser, r.Features.PremiumNoOffline,
		r.Diagnosis.RiskFactor, r.Diagnosis.RetentionFactor, r.Diagnosis.SuggestedAction,
		r.RequesterID, r.RequesterIP, r.CreatedAt.UTC().Truncate(time.Millisecond),
	}
}

// optional maps an absent value to SQL NULL.
func optional[T any](v T, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Ptr(v.Float64)
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return model.Ptr(int(v.Int64))
}
