package store

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) AdminIDs(ctx context.Context) ([]string, error) {
	return s.idColumn(ctx, `SELECT id FROM admins ORDER BY id`)
}

func (s *Store) IsAdmin(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM admins WHERE id = ?`, id)
}

func (s *Store) BlacklistIDs(ctx context.Context) ([]string, error) {
	return s.idColumn(ctx, `SELECT id FROM blacklist ORDER BY id`)
}

func (s *Store) IsBlacklisted(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM blacklist WHERE id = ?`, id)
}

func (s *Store) AddBlacklist(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO blacklist (id) VALUES (?)`, id)
	return err
}

func (s *Store) RemoveBlacklist(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AdminMarker(ctx context.Context) (string, error) {
	marker, err := s.Get(ctx, markerKey)
	if errors.Is(err, ErrNotFound) {
		return "admin", nil
	}
	return marker, err
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Set is last-write-wins: concurrent writers race and the later write
// sticks.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}

func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) idColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
