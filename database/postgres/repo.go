package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/database/internal"
	"github.com/sagarc03/hubstore/proofs"
)

type repo struct {
	pool *pgxpool.Pool
	// tableName is already sanitized.
	tableName string
}

func (r *repo) Proofs(ctx context.Context, address string) ([]proofs.Proof, error) {
	query := fmt.Sprintf(`
		SELECT service, identifier, valid
		FROM %s
		WHERE address = $1
		ORDER BY service, identifier
	`, r.tableName)

	rows, err := r.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("proofs: %w", err)
	}
	defer rows.Close()

	var list []proofs.Proof
	for rows.Next() {
		var p proofs.Proof
		if err := rows.Scan(&p.Service, &p.Identifier, &p.Valid); err != nil {
			return nil, fmt.Errorf("proofs: scan: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("proofs: rows: %w", err)
	}

	return list, nil
}

func (r *repo) Upsert(ctx context.Context, address string, p proofs.Proof) (proofs.Record, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (address, service, identifier, valid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address, service, identifier) DO UPDATE
		SET valid = EXCLUDED.valid,
			updated_at = NOW()
		RETURNING id, address, service, identifier, valid, created_at, updated_at,
			(xmax = 0) AS inserted
	`, r.tableName)

	var rec proofs.Record
	var inserted bool

	err := r.pool.QueryRow(ctx, query, address, p.Service, p.Identifier, p.Valid).Scan(
		&rec.ID, &rec.Address, &rec.Proof.Service, &rec.Proof.Identifier, &rec.Proof.Valid,
		&rec.CreatedAt, &rec.UpdatedAt, &inserted,
	)
	if err != nil {
		return proofs.Record{}, false, fmt.Errorf("upsert: %w", err)
	}

	return rec, inserted, nil
}

func (r *repo) Delete(ctx context.Context, address, service, identifier string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE address = $1 AND service = $2 AND identifier = $3
	`, r.tableName)

	result, err := r.pool.Exec(ctx, query, address, service, identifier)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.RowsAffected() == 0 {
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
		query = fmt.Sprintf(`
			SELECT id, address, service, identifier, valid, created_at, updated_at
			FROM %s
			WHERE address LIKE $1 || '%%'
			ORDER BY created_at, id
			LIMIT $2
		`, r.tableName)
		args = []any{escapedPrefix, q.Limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT id, address, service, identifier, valid, created_at, updated_at
			FROM %s
			WHERE address LIKE $1 || '%%' AND (created_at, id) > ($2, $3::uuid)
			ORDER BY created_at, id
			LIMIT $4
		`, r.tableName)
		args = []any{escapedPrefix, cursor.CreatedAt, cursor.ID, q.Limit + 1}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return proofs.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	items := make([]proofs.Record, 0, q.Limit)
	for rows.Next() {
		var rec proofs.Record
		if err := rows.Scan(
			&rec.ID, &rec.Address, &rec.Proof.Service, &rec.Proof.Identifier, &rec.Proof.Valid,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
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
