package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

// profileColumns is the column list used for SELECT statements on the profiles table.
const profileColumns = `id, name, description, is_active, schema_version,
	relationships_count, created_at, updated_at`

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryListProfiles(ctx context.Context, db executor) ([]*model.Profile, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY is_active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func queryGetProfile(ctx context.Context, db executor, id string) (*model.Profile, error) {
	row := db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func queryActiveProfile(ctx context.Context, db executor) (*model.Profile, error) {
	row := db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE is_active LIMIT 1`)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

// queryCreateProfile inserts p. When p is active every other profile is
// deactivated first; db should be a transaction.
func queryCreateProfile(ctx context.Context, db executor, p *model.Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return model.Invalid("name", "profile name is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.IsActive {
		if _, err := db.ExecContext(ctx,
			`UPDATE profiles SET is_active = FALSE, updated_at = $1 WHERE is_active`, p.UpdatedAt); err != nil {
			return fmt.Errorf("deactivate profiles: %w", err)
		}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (
			id, name, description, is_active, schema_version,
			relationships_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID,
		p.Name,
		p.Description,
		p.IsActive,
		p.SchemaVersion,
		p.RelationshipsCount,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrProfileExists
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// queryDeleteProfile refuses to remove the last remaining profile.
func queryDeleteProfile(ctx context.Context, db executor, id string) error {
	var total, matching int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE id = $1) FROM profiles`, id).Scan(&total, &matching)
	if err != nil {
		return fmt.Errorf("count profiles: %w", err)
	}
	if matching == 0 {
		return store.ErrNotFound
	}
	if total <= 1 {
		return store.ErrLastProfile
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// querySetActive activates id and deactivates every other profile, or just
// clears id when active is false.
func querySetActive(ctx context.Context, db executor, id string, active bool) error {
	now := time.Now().UTC()
	if active {
		if _, err := db.ExecContext(ctx,
			`UPDATE profiles SET is_active = FALSE, updated_at = $1 WHERE is_active AND id <> $2`, now, id); err != nil {
			return fmt.Errorf("deactivate profiles: %w", err)
		}
	}
	res, err := db.ExecContext(ctx,
		`UPDATE profiles SET is_active = $1, updated_at = $2 WHERE id = $3`, active, now, id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRow(res)
}

func queryLoadStructure(ctx context.Context, db executor, id string) ([]byte, error) {
	var doc []byte
	err := db.QueryRowContext(ctx, `SELECT structure FROM profiles WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load structure: %w", err)
	}
	return doc, nil
}

func querySaveStructure(ctx context.Context, db executor, id string, st store.Structure) error {
	res, err := db.ExecContext(ctx, `
		UPDATE profiles
		SET structure = $1, schema_version = $2, relationships_count = $3, updated_at = $4
		WHERE id = $5`,
		jsonbBytes(st.Document),
		st.SchemaVersion,
		st.Relationships,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("save structure: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
