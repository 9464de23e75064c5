package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Szchiji/lunbo/internal/schedule"
	"github.com/Szchiji/lunbo/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const sentAtLayout = time.RFC3339Nano

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the sqlite-backed schedule store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const scheduleCols = `id, chat_id, text, media_url, media_kind, button_text, button_url,
	repeat_seconds, status, remove_last, pin, time_period, start_date, end_date,
	last_message_id, last_sent_at`

func (s *sqliteStore) Create(ctx context.Context, sch *schedule.Schedule) (int64, error) {
	if err := sch.Validate(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (chat_id, text, media_url, media_kind, button_text, button_url,
			repeat_seconds, status, remove_last, pin, time_period, start_date, end_date)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sch.ChatID, sch.Text, sch.MediaURL, string(sch.MediaKind), sch.ButtonText, sch.ButtonURL,
		sch.RepeatSeconds, boolInt(sch.Status), boolInt(sch.RemoveLast), boolInt(sch.Pin),
		sch.TimePeriod, sch.StartDate, sch.EndDate,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sch.ID = id
	return id, nil
}

func (s *sqliteStore) Get(ctx context.Context, id int64) (*schedule.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id)
	sch, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sch, err
}

func (s *sqliteStore) List(ctx context.Context, chatID int64) ([]*schedule.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE chat_id = ? ORDER BY id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schedule.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PatchLast(ctx context.Context, id int64, messageID int, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_message_id = ?, last_sent_at = ? WHERE id = ?`,
		messageID, sentAt.Format(sentAtLayout), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Maintain checkpoints the WAL and logs a row count. Safe to run on a cron.
func (s *sqliteStore) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return err
	}
	var total, enabled int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(status), 0) FROM schedules`).Scan(&total, &enabled); err != nil {
		return err
	}
	s.log.Debug("store maintenance", logx.Int("schedules", total), logx.Int("enabled", enabled))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*schedule.Schedule, error) {
	var (
		sch                     schedule.Schedule
		kind                    string
		status, removeLast, pin int
		lastMsgID               sql.NullInt64
		lastSentAt              sql.NullString
	)
	err := row.Scan(
		&sch.ID, &sch.ChatID, &sch.Text, &sch.MediaURL, &kind, &sch.ButtonText, &sch.ButtonURL,
		&sch.RepeatSeconds, &status, &removeLast, &pin, &sch.TimePeriod, &sch.StartDate, &sch.EndDate,
		&lastMsgID, &lastSentAt,
	)
	if err != nil {
		return nil, err
	}
	// Tolerate unknown stored kinds: dispatch falls back to sniffing.
	if mk, err := schedule.ParseMediaKind(kind); err == nil {
		sch.MediaKind = mk
	}
	sch.Status = status != 0
	sch.RemoveLast = removeLast != 0
	sch.Pin = pin != 0
	if lastMsgID.Valid {
		v := int(lastMsgID.Int64)
		sch.LastMessageID = &v
	}
	if lastSentAt.Valid && strings.TrimSpace(lastSentAt.String) != "" {
		if t, err := time.Parse(sentAtLayout, lastSentAt.String); err == nil {
			sch.LastSentAt = &t
		}
	}
	return &sch, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
