package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/steadyboard/internal/ir"
)

// LoadState returns the last committed state. ok is false when nothing
// has been committed yet.
func (s *Store) LoadState(ctx context.Context) (ir.CommittedState, bool, error) {
	var data, signature string
	err := s.db.QueryRowContext(ctx,
		`SELECT state, signature FROM committed_state WHERE id = 1`,
	).Scan(&data, &signature)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.CommittedState{}, false, nil
	}
	if err != nil {
		return ir.CommittedState{}, false, fmt.Errorf("load state: %w", err)
	}

	state, err := unmarshalState(data, signature)
	if err != nil {
		return ir.CommittedState{}, false, err
	}
	return state, true, nil
}

// LastSeq returns the highest recorded cycle seq, or 0 for an empty log.
// A resumed clock starts here so seqs stay unique.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM cycles`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// CycleFilter narrows ReadCycles.
type CycleFilter struct {
	// Limit keeps only the most recent N matching cycles. 0 means all.
	Limit int

	// Outcome keeps only cycles with this outcome.
	Outcome ir.Outcome

	// Identity keeps only cycles that committed a change for this participant.
	Identity string
}

// ReadCycles returns matching cycles with their changes, ORDER BY seq ASC.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadCycles(ctx context.Context, f CycleFilter) ([]ir.Cycle, error) {
	var (
		where []string
		args  []any
	)
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if f.Identity != "" {
		where = append(where, "seq IN (SELECT cycle_seq FROM changes WHERE identity = ?)")
		args = append(args, f.Identity)
	}

	query := `SELECT seq, id, source, outcome, reason, signature, participants, pending, vetoes FROM cycles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []ir.Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	rows.Close()

	// Newest-first for LIMIT, returned oldest-first.
	for i, j := 0, len(cycles)-1; i < j; i, j = i+1, j-1 {
		cycles[i], cycles[j] = cycles[j], cycles[i]
	}

	for i := range cycles {
		changes, err := s.readChanges(ctx, cycles[i].Seq)
		if err != nil {
			return nil, err
		}
		cycles[i].Changes = changes
	}
	return cycles, nil
}

func scanCycle(rows *sql.Rows) (ir.Cycle, error) {
	var (
		c       ir.Cycle
		outcome string
		vetoes  string
	)
	err := rows.Scan(&c.Seq, &c.ID, &c.Source, &outcome, &c.Reason, &c.Signature,
		&c.Participants, &c.Pending, &vetoes)
	if err != nil {
		return ir.Cycle{}, fmt.Errorf("scan cycle: %w", err)
	}
	c.Outcome = ir.Outcome(outcome)
	if c.Vetoes, err = unmarshalVetoes(vetoes); err != nil {
		return ir.Cycle{}, fmt.Errorf("cycle %d: %w", c.Seq, err)
	}
	return c, nil
}

// readChanges returns a cycle's changes in commit order, or nil if none.
func (s *Store) readChanges(ctx context.Context, seq int64) ([]ir.Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT detail FROM changes
		WHERE cycle_seq = ?
		ORDER BY idx ASC
	`, seq)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var changes []ir.Change
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		ch, err := unmarshalChange(detail)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: %w", seq, err)
		}
		changes = append(changes, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}
