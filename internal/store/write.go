package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/steadyboard/internal/ir"
)

// RecordCycle appends a cycle and its changes to the log and, when the
// cycle committed, replaces the stored committed state. All of it happens
// in one transaction.
//
// Uses ON CONFLICT DO NOTHING for idempotency - recording the same seq
// twice is silently ignored. The committed state is only written for
// committed cycles, so a failed or rejected cycle can never overwrite a
// good board.
func (s *Store) RecordCycle(ctx context.Context, cycle ir.Cycle, state ir.CommittedState) error {
	vetoes, err := marshalVetoes(cycle.Vetoes)
	if err != nil {
		return fmt.Errorf("record cycle %d: %w", cycle.Seq, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record cycle %d: begin: %w", cycle.Seq, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cycles
		(seq, id, source, outcome, reason, signature, participants, pending, vetoes, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		cycle.Seq,
		cycle.ID,
		cycle.Source,
		string(cycle.Outcome),
		cycle.Reason,
		cycle.Signature,
		cycle.Participants,
		cycle.Pending,
		vetoes,
		ir.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("record cycle %d: %w", cycle.Seq, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already recorded.
		return tx.Commit()
	}

	if err := writeChanges(ctx, tx, cycle); err != nil {
		return err
	}

	if cycle.Committed() {
		if err := writeState(ctx, tx, state); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record cycle %d: commit: %w", cycle.Seq, err)
	}
	return nil
}

func writeChanges(ctx context.Context, tx *sql.Tx, cycle ir.Cycle) error {
	for i, ch := range cycle.Changes {
		detail, err := marshalChange(ch)
		if err != nil {
			return fmt.Errorf("record cycle %d: %w", cycle.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO changes (cycle_seq, idx, kind, identity, detail)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, cycle.Seq, i, string(ch.Kind), ch.Identity, detail)
		if err != nil {
			return fmt.Errorf("record cycle %d: change %d: %w", cycle.Seq, i, err)
		}
	}
	return nil
}

func writeState(ctx context.Context, tx *sql.Tx, state ir.CommittedState) error {
	data, err := marshalState(state)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO committed_state (id, seq, state, signature)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seq = excluded.seq,
			state = excluded.state,
			signature = excluded.signature
	`, state.Seq, data, state.Signature)
	if err != nil {
		return fmt.Errorf("write committed state: %w", err)
	}
	return nil
}
