package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pauljones0/fly4deals/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	url        TEXT PRIMARY KEY,
	seq        INTEGER NOT NULL,
	title      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	content    TEXT NOT NULL,
	img_count  INTEGER NOT NULL,
	response   TEXT,
	checked    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_posts_seq ON posts(seq);
`

// An existing response is never replaced and checked never goes back to 0.
const sqliteUpsert = `
INSERT INTO posts (url, seq, title, created_at, content, img_count, response, checked)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	response = COALESCE(posts.response, excluded.response),
	checked  = MAX(posts.checked, excluded.checked)`

// SQLiteStore keeps the table in a local SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	loc  *time.Location
}

func NewSQLiteStore(path string, loc *time.Location) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteStore{conn: conn, loc: loc}, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]models.PostRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT title, created_at, url, content, img_count, response, checked
		FROM posts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var records []models.PostRecord
	for rows.Next() {
		var (
			rec      models.PostRecord
			created  string
			response sql.NullString
			checked  int
		)
		if err := rows.Scan(&rec.Title, &created, &rec.URL, &rec.Content, &rec.ImgCount, &response, &checked); err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		t, err := time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("post %s created_at: %w", rec.URL, err)
		}
		rec.CreatedAt = t.In(s.loc)
		rec.Checked = checked == 1
		if response.Valid {
			if rec.Response, err = decodeResponse(response.String); err != nil {
				return nil, fmt.Errorf("post %s: %w", rec.URL, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	return records, nil
}

// Save upserts every row in one transaction. Rows missing from records are
// left in place.
func (s *SQLiteStore) Save(ctx context.Context, records []models.PostRecord) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		var response sql.NullString
		if rec.Response != nil {
			raw, err := encodeResponse(rec.Response)
			if err != nil {
				return err
			}
			response = sql.NullString{String: raw, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			rec.URL, i, rec.Title, rec.CreatedAt.Format(time.RFC3339),
			rec.Content, rec.ImgCount, response, boolToInt(rec.Checked),
		)
		if err != nil {
			return fmt.Errorf("upserting post %s: %w", rec.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing posts: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
