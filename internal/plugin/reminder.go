package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"wabot/internal/domain"
)

// reminderDoc is a pushed notification from an external reminder
// service: a title plus a JSON-encoded notes field.
type reminderDoc struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
}

type reminderNotes struct {
	TimeRemaining int    `json:"time_remaining"`
	Link          string `json:"link"`
}

type reminder struct {
	gw     domain.Gateway
	store  domain.ReminderStore
	logger *slog.Logger
}

// NewReminder delivers due reminders. A document event carrying a
// payload announces that one notification; an empty one (the sweeper's
// periodic nudge) drains everything currently due. Claims make delivery
// at-most-once even when two nudges race.
func NewReminder(gw domain.Gateway, store domain.ReminderStore, logger *slog.Logger) *Plugin {
	r := &reminder{gw: gw, store: store, logger: logger}
	return &Plugin{
		Name:         "reminder",
		Tier:         domain.TierStandard,
		Internal:     true,
		Description:  "Deliver scheduled reminders.",
		DocumentType: domain.DocTypeReminder,
		Handle:       r.handle,
	}
}

func (r *reminder) handle(ctx context.Context, msg *domain.Message) (Outcome, error) {
	if len(msg.Document) > 0 && string(msg.Document) != "null" {
		return r.handlePushed(ctx, msg)
	}
	return r.drainDue(ctx)
}

func (r *reminder) handlePushed(ctx context.Context, msg *domain.Message) (Outcome, error) {
	var doc reminderDoc
	if err := json.Unmarshal(msg.Document, &doc); err != nil {
		return OutcomeHandled, fmt.Errorf("parse reminder document: %w", err)
	}
	var notes reminderNotes
	if doc.Notes != "" {
		if err := json.Unmarshal([]byte(doc.Notes), &notes); err != nil {
			r.logger.Warn("unparseable reminder notes", "err", err)
		}
	}

	text := formatCard("⏰ Reminder", []cardItem{
		{"📝 Title", doc.Title},
		{"⏳ Time remaining", renderRemaining(notes.TimeRemaining)},
		{"🔗 Link", notes.Link},
	}, "")

	if err := r.gw.SendMessage(ctx, msg.Destination(), text); err != nil {
		return OutcomeHandled, fmt.Errorf("send reminder: %w", err)
	}
	return OutcomeHandled, nil
}

func (r *reminder) drainDue(ctx context.Context) (Outcome, error) {
	due, err := r.store.DueReminders(ctx, time.Now())
	if err != nil {
		return OutcomeHandled, fmt.Errorf("query due reminders: %w", err)
	}

	for _, rem := range due {
		claimed, err := r.store.ClaimReminder(ctx, rem.ID)
		if err != nil {
			r.logger.Error("cannot claim reminder", "id", rem.ID, "err", err)
			continue
		}
		if !claimed {
			continue
		}

		offset := int(rem.DueAt.Sub(rem.RemindAt).Minutes())
		text := formatCard("⏰ Reminder", []cardItem{
			{"📝 Title", rem.Title},
			{"⏳ Time remaining", renderRemaining(offset)},
		}, "")

		if err := r.gw.SendMessage(ctx, rem.SendTo, text); err != nil {
			// The claim already burned; losing one nudge beats double-sending.
			r.logger.Error("cannot send reminder", "id", rem.ID, "err", err)
		}
	}
	return OutcomeHandled, nil
}

func renderRemaining(minutes int) string {
	if minutes <= 0 {
		return "due now"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
