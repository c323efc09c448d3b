package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/avolov/imgd/internal/imageformat"
	"github.com/avolov/imgd/internal/model"
)

// SQLiteDB implements Database backed by SQLite. Timestamps are stored as
// RFC 3339 UTC strings so lexical comparison matches chronological order.
type SQLiteDB struct {
	db *sql.DB
}

var _ Database = (*SQLiteDB)(nil)

// NewSQLiteDB opens (or creates) an SQLite database at dsn and runs
// migrations. For in-memory use pass "file:<name>?mode=memory&cache=shared".
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db, "sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) CreateImage(img *model.Image) error {
	_, err := s.db.Exec(`
		INSERT INTO images (image_identifier, computed, image_format, expires_at)
		VALUES (?, ?, ?, ?)`,
		img.Identifier.String(), boolToInt(img.Computed), img.Format,
		img.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetImage(id uuid.UUID, format imageformat.Format) (*model.Image, error) {
	row := s.db.QueryRow(`
		SELECT image_identifier, computed, image_format, expires_at
		FROM images WHERE image_identifier = ? AND image_format = ?`,
		id.String(), format,
	)
	return scanImage(row)
}

func (s *SQLiteDB) GetAnyComputed(id uuid.UUID) (*model.Image, error) {
	row := s.db.QueryRow(`
		SELECT image_identifier, computed, image_format, expires_at
		FROM images WHERE image_identifier = ? AND computed = 1
		ORDER BY expires_at ASC, image_format ASC
		LIMIT 1`,
		id.String(),
	)
	return scanImage(row)
}

func (s *SQLiteDB) MarkComputed(id uuid.UUID, format imageformat.Format) error {
	res, err := s.db.Exec(`
		UPDATE images SET computed = 1
		WHERE image_identifier = ? AND image_format = ?`,
		id.String(), format,
	)
	if err != nil {
		return fmt.Errorf("mark computed: %w", err)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteDB) ListFormats(id uuid.UUID) ([]imageformat.Format, error) {
	rows, err := s.db.Query(`
		SELECT image_format FROM images
		WHERE image_identifier = ?
		ORDER BY image_format ASC`,
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}
	defer rows.Close()

	var formats []imageformat.Format
	for rows.Next() {
		var f imageformat.Format
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan format: %w", err)
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

func (s *SQLiteDB) DeleteImage(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM images WHERE image_identifier = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteDB) DeleteExpired(now time.Time) ([]*model.Image, error) {
	cutoff := now.UTC().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT image_identifier, computed, image_format, expires_at
		FROM images WHERE expires_at <= ?`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired: %w", err)
	}
	expired, err := scanImages(rows)
	if err != nil {
		return nil, err
	}

	if len(expired) > 0 {
		if _, err := tx.Exec(`DELETE FROM images WHERE expires_at <= ?`, cutoff); err != nil {
			return nil, fmt.Errorf("delete expired: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return expired, nil
}

func (s *SQLiteDB) CountImages() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&count)
	return count, err
}

func (s *SQLiteDB) CountComputed() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM images WHERE computed = 1`).Scan(&count)
	return count, err
}

// rawDB exposes the connection for schema-level tests.
func (s *SQLiteDB) rawDB() *sql.DB { return s.db }

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanImage(row scannable) (*model.Image, error) {
	img := &model.Image{}
	var idStr, expiresStr string
	var computed int

	err := row.Scan(&idStr, &computed, &img.Format, &expiresStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan image: %w", err)
	}

	img.Identifier, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse identifier: %w", err)
	}
	img.Computed = computed != 0
	img.ExpiresAt, err = time.Parse(time.RFC3339, expiresStr)
	if err != nil {
		return nil, fmt.Errorf("parse expiry: %w", err)
	}
	return img, nil
}

func scanImages(rows *sql.Rows) ([]*model.Image, error) {
	defer rows.Close()
	var images []*model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
