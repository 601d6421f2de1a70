package store

import (
	"context"
	"time"

	"wabot/internal/domain"
)

// AddReminder schedules one notification. Webhook redeliveries carry
// the same (ref_id, remind_at) pair and are ignored.
func (s *Store) AddReminder(ctx context.Context, r domain.Reminder) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminders (ref_id, send_to, title, due_at, remind_at, notified, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		r.RefID, r.SendTo, r.Title, r.DueAt, r.RemindAt, r.CreatedAt,
	)
	return err
}

func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ref_id, send_to, title, due_at, remind_at, notified, created_at
		 FROM reminders WHERE notified = 0 AND remind_at <= ?
		 ORDER BY remind_at`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rems []domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		var notified int
		if err := rows.Scan(&r.ID, &r.RefID, &r.SendTo, &r.Title,
			&r.DueAt, &r.RemindAt, &notified, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Notified = notified != 0
		rems = append(rems, r)
	}
	return rems, rows.Err()
}

// ClaimReminder flips the notified flag and reports whether this caller
// won the claim. A lost claim means another worker already sent it.
func (s *Store) ClaimReminder(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET notified = 1 WHERE id = ? AND notified = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneReminders deletes notified reminders whose slot passed before
// cutoff. Pending reminders are never touched, however old.
func (s *Store) PruneReminders(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE notified = 1 AND remind_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
