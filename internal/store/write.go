package store

import (
	"context"
	"fmt"

	"sanigraph/internal/tech"
)

// WriteSystem inserts a completed system into the catalog.
//
// Systems are content-addressed by structure hash. If an equivalent
// structure is already stored (under any ID), nothing is written and
// the stored system's ID is returned with inserted=false; callers must
// use the returned ID for any follow-up writes such as summaries.
// Writing the same system twice is silently idempotent.
func (s *Store) WriteSystem(ctx context.Context, sys *tech.System) (storedID string, inserted bool, err error) {
	if sys == nil || !sys.Complete {
		return "", false, fmt.Errorf("write system: only complete systems are stored")
	}
	if sys.ID == "" {
		return "", false, fmt.Errorf("write system: system has no ID")
	}
	sources := sys.Sources()
	if len(sources) == 0 {
		return "", false, fmt.Errorf("write system: system has no source stage")
	}

	hash, err := sys.StructureHash()
	if err != nil {
		return "", false, fmt.Errorf("write system: %w", err)
	}
	document, err := marshalSystem(sys)
	if err != nil {
		return "", false, fmt.Errorf("write system: %w", err)
	}

	// Insert-or-select must be atomic so concurrent writers of the
	// same structure agree on the canonical ID.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("write system: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Bare ON CONFLICT DO NOTHING covers both conflict shapes:
	// duplicate hash (same structure, fresh ID) and duplicate ID
	// (same system written twice).
	result, err := tx.ExecContext(ctx, `
		INSERT INTO systems
		(id, hash, source, size, document, schema_version, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sys.ID,
		hash,
		sources[0].Name,
		sys.Size(),
		document,
		tech.SchemaVersion,
		tech.EngineVersion,
	)
	if err != nil {
		return "", false, fmt.Errorf("write system: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("write system: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		storedID = sys.ID
		inserted = true
	} else {
		// Conflict - an equivalent structure exists, fetch its ID.
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM systems WHERE hash = ?
		`, hash).Scan(&storedID)
		if err != nil {
			return "", false, fmt.Errorf("write system: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("write system: commit: %w", err)
	}

	return storedID, inserted, nil
}

// WriteSummary stores the mass-flow summary for a stored system,
// replacing any previous summary. The system must already be stored
// (foreign key constraint).
func (s *Store) WriteSummary(ctx context.Context, systemID string, res *tech.MassflowResult) error {
	if res == nil {
		return fmt.Errorf("write summary: no result to write")
	}
	document, err := marshalResult(res)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO summaries (system_id, n, monte_carlo, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(system_id) DO UPDATE SET
			n = excluded.n,
			monte_carlo = excluded.monte_carlo,
			document = excluded.document
	`,
		systemID,
		res.N,
		boolToInt(res.MonteCarlo),
		document,
	)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SystemSink persists every emitted system; it satisfies the synthesis
// engine's result-sink contract.
type SystemSink struct {
	store *Store
	ctx   context.Context
}

// Sink returns a result sink writing through this store. The context
// applies to every write the sink performs.
func (s *Store) Sink(ctx context.Context) *SystemSink {
	return &SystemSink{store: s, ctx: ctx}
}

// Emit writes one completed system.
func (k *SystemSink) Emit(sys *tech.System) error {
	_, _, err := k.store.WriteSystem(k.ctx, sys)
	return err
}
