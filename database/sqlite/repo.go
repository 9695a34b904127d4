package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/database/internal"
	"github.com/sagarc03/hubstore/proofs"
)

type repo struct {
	db *sql.DB
	// tableName is already quoted.
	tableName string
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (proofs.Record, error) {
	var rec proofs.Record
	var idStr, createdAt, updatedAt string
	var valid int

	if err := s.Scan(&idStr, &rec.Address, &rec.Proof.Service, &rec.Proof.Identifier, &valid, &createdAt, &updatedAt); err != nil {
		return proofs.Record{}, err
	}
	rec.Proof.Valid = valid != 0

	var err error
	if rec.ID, err = uuid.Parse(idStr); err != nil {
		return proofs.Record{}, fmt.Errorf("parse uuid: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(internal.TimeLayout, createdAt); err != nil {
		return proofs.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(internal.TimeLayout, updatedAt); err != nil {
		return proofs.Record{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return rec, nil
}

func (r *repo) Proofs(ctx context.Context, address string) ([]proofs.Proof, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT service, identifier, valid FROM %s
		WHERE address = ?
		ORDER BY service, identifier`, r.tableName)

	rows, err := r.db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("proofs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []proofs.Proof
	for rows.Next() {
		var p proofs.Proof
		var valid int
		if err := rows.Scan(&p.Service, &p.Identifier, &valid); err != nil {
			return nil, fmt.Errorf("proofs: scan: %w", err)
		}
		p.Valid = valid != 0
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("proofs: rows: %w", err)
	}

	return list, nil
}

func (r *repo) Upsert(ctx context.Context, address string, p proofs.Proof) (proofs.Record, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return proofs.Record{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	checkQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id FROM %s WHERE address = ? AND service = ? AND identifier = ?`, r.tableName)
	err = tx.QueryRowContext(ctx, checkQuery, address, p.Service, p.Identifier).Scan(&existingID)
	isInsert := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isInsert {
		return proofs.Record{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	now := time.Now().UTC().Format(internal.TimeLayout)

	if isInsert {
		insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`INSERT INTO %s (id, address, service, identifier, valid, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, r.tableName)

		_, err = tx.ExecContext(ctx, insertQuery,
			uuid.NewString(), address, p.Service, p.Identifier, boolToInt(p.Valid), now, now,
		)
		if err != nil {
			return proofs.Record{}, false, fmt.Errorf("upsert: insert: %w", err)
		}
	} else {
		updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`UPDATE %s SET valid = ?, updated_at = ? WHERE id = ?`, r.tableName)

		if _, err = tx.ExecContext(ctx, updateQuery, boolToInt(p.Valid), now, existingID); err != nil {
			return proofs.Record{}, false, fmt.Errorf("upsert: update: %w", err)
		}
	}

	selectQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, address, service, identifier, valid, created_at, updated_at
		FROM %s WHERE address = ? AND service = ? AND identifier = ?`, r.tableName)
	rec, err := scanRecord(tx.QueryRowContext(ctx, selectQuery, address, p.Service, p.Identifier))
	if err != nil {
		return proofs.Record{}, false, fmt.Errorf("upsert: read back: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return proofs.Record{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	return rec, isInsert, nil
}

func (r *repo) Delete(ctx context.Context, address, service, identifier string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE address = ? AND service = ? AND identifier = ?`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, address, service, identifier)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete: %w", hubstore.ErrNotFound)
	}

	return nil
}

func (r *repo) List(ctx context.Context, q proofs.ListQuery) (proofs.ListResult, error) {
	if q.Limit <= 0 {
		return proofs.ListResult{}, fmt.Errorf("list: %w: limit must be positive", hubstore.ErrInvalidInput)
	}

	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return proofs.ListResult{}, fmt.Errorf("list: %w", err)
	}

	escapedPrefix := internal.EscapeLikePattern(q.AddressPrefix)

	var query string
	var args []any

	if q.Cursor == "" {
		query = fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT id, address, service, identifier, valid, created_at, updated_at
			FROM %s
			WHERE address LIKE ? || '%%' ESCAPE '\'
			ORDER BY created_at, id
			LIMIT ?`, r.tableName)
		args = []any{escapedPrefix, q.Limit + 1}
	} else {
		query = fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT id, address, service, identifier, valid, created_at, updated_at
			FROM %s
			WHERE address LIKE ? || '%%' ESCAPE '\' AND (created_at, id) > (?, ?)
			ORDER BY created_at, id
			LIMIT ?`, r.tableName)
		args = []any{escapedPrefix, cursor.CreatedAt.UTC().Format(internal.TimeLayout), cursor.ID, q.Limit + 1}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return proofs.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]proofs.Record, 0, q.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return proofs.ListResult{}, fmt.Errorf("list: scan: %w", err)
		}
		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		return proofs.ListResult{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > q.Limit {
		last := items[q.Limit-1]
		nextCursor = internal.EncodeCursor(last.CreatedAt, last.ID.String())
		items = items[:q.Limit]
	}

	return proofs.ListResult{Items: items, NextCursor: nextCursor}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
