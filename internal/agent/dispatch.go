package agent

import (
	"context"
	"fmt"

	"wabot/internal/domain"
	"wabot/internal/plugin"
)

// dispatch routes a tokenized message to exactly one branch: the admin
// gate, the catalog help, a registered plugin, or the not-found error.
// The plugin must live in the message's exact tier; an admin message
// never reaches a standard plugin of the same name, nor the other way
// around. Replies are written to msg.Outgoing, never sent from here.
func (l *Loop) dispatch(ctx context.Context, msg *domain.Message) error {
	marker, err := l.settings.AdminMarker(ctx)
	if err != nil {
		return fmt.Errorf("admin marker lookup: %w", err)
	}

	// The marker survived tokenization as a literal first token, so
	// escalation did not fire and the sender lacks admin rights.
	if msg.Arguments[0] == marker && msg.Tier != domain.TierAdmin {
		return ErrSenderNotAdmin
	}

	if len(msg.Arguments) == 1 && msg.Arguments[0] == "help" {
		msg.Outgoing = compactHelp(l.registry, msg.Tier, msg.Prefix(), marker)
		return nil
	}

	p, ok := l.registry.Lookup(msg.Arguments[0], msg.Tier)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, msg.Arguments[0])
	}

	outcome, err := p.Handle(ctx, msg)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", p.Name, err)
	}
	if outcome == plugin.OutcomeShowHelp {
		msg.Outgoing = pluginHelp(p, msg.Prefix(), marker)
	}
	return nil
}
