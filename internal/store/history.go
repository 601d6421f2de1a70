package store

import (
	"context"
	"time"

	"wabot/internal/domain"
)

func (s *Store) Append(ctx context.Context, ex domain.Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (request_id, sender, grp, inbound, outbound, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ex.RequestID, ex.Sender, ex.Group, ex.Inbound, ex.Outbound, ex.CreatedAt,
	)
	return err
}

// LastPairs returns up to n most recent exchanges for the (sender, group)
// key in chronological order, oldest first.
func (s *Store) LastPairs(ctx context.Context, sender, group string, n int) ([]domain.Exchange, error) {
	if n <= 0 {
		n = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, sender, grp, inbound, outbound, created_at
		 FROM history WHERE sender = ? AND grp = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, sender, group, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exs []domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		if err := rows.Scan(&ex.ID, &ex.RequestID, &ex.Sender, &ex.Group,
			&ex.Inbound, &ex.Outbound, &ex.CreatedAt); err != nil {
			return nil, err
		}
		exs = append(exs, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(exs)-1; i < j; i, j = i+1, j-1 {
		exs[i], exs[j] = exs[j], exs[i]
	}
	return exs, nil
}

// PruneHistory deletes exchanges older than the cutoff and reports how
// many rows went away.
func (s *Store) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
