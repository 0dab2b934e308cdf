package store

import (
	"context"
	"database/sql"
	"fmt"

	"sanigraph/internal/tech"
)

// ReadSystem retrieves a stored system by ID, with its summary
// attached when one is stored. Returns sql.ErrNoRows if not found.
func (s *Store) ReadSystem(ctx context.Context, id string) (*tech.System, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.document, m.document
		FROM systems s
		LEFT JOIN summaries m ON m.system_id = s.id
		WHERE s.id = ?
	`, id)

	return scanSystemRow(row)
}

// ReadSystemByHash retrieves a stored system by structure hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSystemByHash(ctx context.Context, hash string) (*tech.System, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.document, m.document
		FROM systems s
		LEFT JOIN summaries m ON m.system_id = s.id
		WHERE s.hash = ?
	`, hash)

	return scanSystemRow(row)
}

// ReadSystems returns all stored systems synthesized from the given
// source technology, ordered deterministically: insertion order first,
// byte order of the structure hash as the tie-break.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadSystems(ctx context.Context, source string) ([]*tech.System, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.document, m.document
		FROM systems s
		LEFT JOIN summaries m ON m.system_id = s.id
		WHERE s.source = ?
		ORDER BY s.seq ASC, s.hash COLLATE BINARY ASC
	`, source)
	if err != nil {
		return nil, fmt.Errorf("query systems: %w", err)
	}
	defer rows.Close()

	return collectSystems(rows)
}

// ReadAllSystems returns every stored system with deterministic
// ordering, summaries attached where stored.
func (s *Store) ReadAllSystems(ctx context.Context) ([]*tech.System, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.document, m.document
		FROM systems s
		LEFT JOIN summaries m ON m.system_id = s.id
		ORDER BY s.seq ASC, s.hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all systems: %w", err)
	}
	defer rows.Close()

	return collectSystems(rows)
}

// CountSystems returns the number of stored systems.
func (s *Store) CountSystems(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM systems`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count systems: %w", err)
	}
	return count, nil
}

func collectSystems(rows *sql.Rows) ([]*tech.System, error) {
	var systems []*tech.System
	for rows.Next() {
		sys, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		systems = append(systems, sys)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate systems: %w", err)
	}

	// Return empty slice instead of nil
	if systems == nil {
		systems = []*tech.System{}
	}

	return systems, nil
}

// scanSystem scans a (system document, nullable summary document) row.
func scanSystem(rows *sql.Rows) (*tech.System, error) {
	var document string
	var summary sql.NullString

	if err := rows.Scan(&document, &summary); err != nil {
		return nil, fmt.Errorf("scan system: %w", err)
	}

	return buildSystem(document, summary)
}

// scanSystemRow scans a single-row query; sql.ErrNoRows passes through
// so callers can distinguish not-found.
func scanSystemRow(row *sql.Row) (*tech.System, error) {
	var document string
	var summary sql.NullString

	if err := row.Scan(&document, &summary); err != nil {
		return nil, err
	}

	return buildSystem(document, summary)
}

func buildSystem(document string, summary sql.NullString) (*tech.System, error) {
	sys, err := unmarshalSystem(document)
	if err != nil {
		return nil, err
	}
	// The stored summary wins over whatever the document carried; the
	// summaries table is the authoritative copy.
	if summary.Valid {
		res, err := unmarshalResult(summary.String)
		if err != nil {
			return nil, err
		}
		sys.Result = res
	}
	return sys, nil
}
