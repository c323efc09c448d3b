package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avolov/imgd/internal/imageformat"
	"github.com/avolov/imgd/internal/model"
)

// PostgresDB implements Database backed by PostgreSQL via the pgx stdlib
// driver. The schema here is the canonical one; SQLite mirrors it.
type PostgresDB struct {
	db *sql.DB
}

var _ Database = (*PostgresDB)(nil)

// NewPostgresDB connects to dsn and runs migrations.
func NewPostgresDB(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := applyMigrations(db, "postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) CreateImage(img *model.Image) error {
	_, err := p.db.Exec(`
		INSERT INTO images (image_identifier, computed, image_format, expires_at)
		VALUES ($1, $2, $3, $4)`,
		img.Identifier, img.Computed, img.Format, img.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (p *PostgresDB) GetImage(id uuid.UUID, format imageformat.Format) (*model.Image, error) {
	row := p.db.QueryRow(`
		SELECT image_identifier, computed, image_format, expires_at
		FROM images WHERE image_identifier = $1 AND image_format = $2`,
		id, format,
	)
	return scanPgImage(row)
}

func (p *PostgresDB) GetAnyComputed(id uuid.UUID) (*model.Image, error) {
	row := p.db.QueryRow(`
		SELECT image_identifier, computed, image_format, expires_at
		FROM images WHERE image_identifier = $1 AND computed
		ORDER BY expires_at ASC, image_format ASC
		LIMIT 1`,
		id,
	)
	return scanPgImage(row)
}

func (p *PostgresDB) MarkComputed(id uuid.UUID, format imageformat.Format) error {
	res, err := p.db.Exec(`
		UPDATE images SET computed = TRUE
		WHERE image_identifier = $1 AND image_format = $2`,
		id, format,
	)
	if err != nil {
		return fmt.Errorf("mark computed: %w", err)
	}
	return checkRowsAffected(res)
}

func (p *PostgresDB) ListFormats(id uuid.UUID) ([]imageformat.Format, error) {
	rows, err := p.db.Query(`
		SELECT image_format FROM images
		WHERE image_identifier = $1
		ORDER BY image_format ASC`,
		id,
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

func (p *PostgresDB) DeleteImage(id uuid.UUID) error {
	res, err := p.db.Exec(`DELETE FROM images WHERE image_identifier = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return checkRowsAffected(res)
}

func (p *PostgresDB) DeleteExpired(now time.Time) ([]*model.Image, error) {
	rows, err := p.db.Query(`
		DELETE FROM images WHERE expires_at <= $1
		RETURNING image_identifier, computed, image_format, expires_at`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("delete expired: %w", err)
	}
	defer rows.Close()

	var expired []*model.Image
	for rows.Next() {
		img, err := scanPgImage(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, img)
	}
	return expired, rows.Err()
}

func (p *PostgresDB) CountImages() (int, error) {
	var count int
	err := p.db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&count)
	return count, err
}

func (p *PostgresDB) CountComputed() (int, error) {
	var count int
	err := p.db.QueryRow(`SELECT COUNT(*) FROM images WHERE computed`).Scan(&count)
	return count, err
}

func scanPgImage(row scannable) (*model.Image, error) {
	img := &model.Image{}
	err := row.Scan(&img.Identifier, &img.Computed, &img.Format, &img.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan image: %w", err)
	}
	img.ExpiresAt = img.ExpiresAt.UTC()
	return img, nil
}
