package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jaehk/yt-subtitle-analyzer/errors"
)

const (
	upsertQuery = `
        INSERT INTO transcripts (
            id, url, video_id, title, language, status,
            source, text, summary, error, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            video_id = excluded.video_id,
            title = excluded.title,
            status = excluded.status,
            source = excluded.source,
            text = excluded.text,
            summary = excluded.summary,
            error = excluded.error,
            updated_at = excluded.updated_at
    `

	getQuery = `
        SELECT id, url, video_id, title, language, status,
               source, text, summary, error, created_at, updated_at
        FROM transcripts WHERE id = ?
    `

	getByURLQuery = `
        SELECT id, url, video_id, title, language, status,
               source, text, summary, error, created_at, updated_at
        FROM transcripts WHERE url = ? AND language = ?
    `
)

type preparedStatements struct {
	upsert   *sql.Stmt
	get      *sql.Stmt
	getByURL *sql.Stmt
}

func (stmts *preparedStatements) prepare(ctx context.Context, db *sql.DB) error {
	const op = "preparedStatements.prepare"

	var err error

	if stmts.upsert, err = db.PrepareContext(ctx, upsertQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare upsert statement")
	}

	if stmts.get, err = db.PrepareContext(ctx, getQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare get statement")
	}

	if stmts.getByURL, err = db.PrepareContext(ctx, getByURLQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare getByURL statement")
	}

	return nil
}

func (stmts *preparedStatements) close() error {
	var errs []error

	statements := [...]*sql.Stmt{
		stmts.upsert,
		stmts.get,
		stmts.getByURL,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
