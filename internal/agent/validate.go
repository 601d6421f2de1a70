package agent

import (
	"context"
	"fmt"

	"wabot/internal/domain"
)

// validate applies the access rules in fixed order; the first hit wins
// and fails the message. Runs after normalization and before
// tokenization, so the tokenizer never observes an empty group message.
// Admins bypass both the blacklist and the debug restriction.
func (l *Loop) validate(ctx context.Context, msg *domain.Message) error {
	if msg.Scope == domain.ScopeGroup && msg.RawText == "" {
		return ErrEmptyGroupMessage
	}

	admin, err := l.settings.IsAdmin(ctx, msg.Sender)
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if admin {
		return nil
	}

	listed, err := l.settings.IsBlacklisted(ctx, msg.Sender)
	if err != nil {
		return fmt.Errorf("blacklist lookup: %w", err)
	}
	if listed {
		return ErrBlacklisted
	}

	if l.debug {
		return ErrDebugRestricted
	}
	return nil
}
