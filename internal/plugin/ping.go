package plugin

import (
	"context"

	"wabot/internal/domain"
)

// NewPing is the liveness command anyone can run.
func NewPing() *Plugin {
	return &Plugin{
		Name:        "ping",
		Tier:        domain.TierStandard,
		Description: "Check whether the bot is awake.",
		Help: []HelpEntry{
			{Description: "Check whether the bot is awake"},
		},
		Handle: func(ctx context.Context, msg *domain.Message) (Outcome, error) {
			msg.Outgoing = "pong 🏓"
			return OutcomeHandled, nil
		},
	}
}
