package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jaehk/yt-subtitle-analyzer/errors"
	"github.com/jaehk/yt-subtitle-analyzer/models"
)

type Repository struct {
	db *DB
}

func NewRepository(db *DB) (*Repository, error) {
	return &Repository{db: db}, nil
}

func (r *Repository) Save(ctx context.Context, transcript *models.Transcript) error {
	const op = "SQLiteRepository.Save"

	for i := 0; i < 3; i++ { // Simple retry logic
		err := r.save(ctx, transcript)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return errors.Internal(op, err, "Failed to save transcript")
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return errors.Internal(op, nil, "Failed after retries")
}

func (r *Repository) save(ctx context.Context, transcript *models.Transcript) error {
	_, err := r.db.statements.upsert.ExecContext(ctx,
		transcript.ID,
		transcript.URL,
		transcript.VideoID,
		transcript.Title,
		transcript.Language,
		string(transcript.Status),
		string(transcript.Source),
		transcript.Text,
		transcript.Summary,
		transcript.Error,
		transcript.CreatedAt,
		transcript.UpdatedAt,
	)
	return err
}

func (r *Repository) Find(ctx context.Context, id string) (*models.Transcript, error) {
	const op = "SQLiteRepository.Find"
	return r.scanRow(op, r.db.statements.get.QueryRowContext(ctx, id))
}

func (r *Repository) FindByURL(ctx context.Context, url, language string) (*models.Transcript, error) {
	const op = "SQLiteRepository.FindByURL"
	return r.scanRow(op, r.db.statements.getByURL.QueryRowContext(ctx, url, language))
}

func (r *Repository) scanRow(op string, row *sql.Row) (*models.Transcript, error) {
	transcript := &models.Transcript{}
	var status, source string

	err := row.Scan(
		&transcript.ID,
		&transcript.URL,
		&transcript.VideoID,
		&transcript.Title,
		&transcript.Language,
		&status,
		&source,
		&transcript.Text,
		&transcript.Summary,
		&transcript.Error,
		&transcript.CreatedAt,
		&transcript.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Transcript not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transcript")
	}

	transcript.Status = models.Status(status)
	transcript.Source = models.Source(source)
	return transcript, nil
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "busy")
}
