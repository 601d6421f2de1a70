package domain

import (
	"context"
	"errors"
	"time"
)

// ErrSettingNotFound is returned by SettingsStore.Get for unknown keys.
var ErrSettingNotFound = errors.New("setting not found")

// SettingsStore exposes the runtime configuration the pipeline reads on
// every message: the admin set, the blacklist, the admin marker token and
// arbitrary key/value overrides. Writes are last-write-wins; concurrent
// messages from the same sender may race and the later write sticks.
type SettingsStore interface {
	AdminIDs(ctx context.Context) ([]string, error)
	IsAdmin(ctx context.Context, id string) (bool, error)

	BlacklistIDs(ctx context.Context) ([]string, error)
	IsBlacklisted(ctx context.Context, id string) (bool, error)
	AddBlacklist(ctx context.Context, id string) error
	// RemoveBlacklist reports whether the id was actually present.
	RemoveBlacklist(ctx context.Context, id string) (bool, error)

	// AdminMarker is the token that escalates a command to the admin
	// namespace when the sender is a recognized admin.
	AdminMarker(ctx context.Context) (string, error)

	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Exchange is one persisted (inbound, outbound) conversation pair for a
// (sender, group) key. Outbound holds the full resolver response payload,
// not just the text that went out.
type Exchange struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"request_id"`
	Sender    string    `json:"sender"`
	Group     string    `json:"group"`
	Inbound   string    `json:"inbound"`
	Outbound  string    `json:"outbound"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore is append-only per (sender, group) key; appends for
// different keys never interfere.
type HistoryStore interface {
	Append(ctx context.Context, ex Exchange) error
	// LastPairs returns up to n most recent exchanges for the key in
	// chronological order, oldest first.
	LastPairs(ctx context.Context, sender, group string, n int) ([]Exchange, error)
}

// Reminder is a scheduled nudge created by the classroom flow and fired
// by the sweeper or a manual trigger.
type Reminder struct {
	ID        int64     `json:"id"`
	RefID     string    `json:"ref_id"`
	SendTo    string    `json:"send_to"`
	Title     string    `json:"title"`
	DueAt     time.Time `json:"due_at"`
	RemindAt  time.Time `json:"remind_at"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

type ReminderStore interface {
	AddReminder(ctx context.Context, r Reminder) error
	DueReminders(ctx context.Context, now time.Time) ([]Reminder, error)
	// ClaimReminder marks a reminder notified and reports whether this
	// caller won the claim; a lost claim means someone else sent it.
	ClaimReminder(ctx context.Context, id int64) (bool, error)
}
