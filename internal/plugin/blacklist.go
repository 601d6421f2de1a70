package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"wabot/internal/domain"
)

// NewBlacklist manages the set of senders the validator drops. Admin
// senders are never blacklisted effectively; the validator checks the
// admin set first.
func NewBlacklist(settings domain.SettingsStore, logger *slog.Logger) *Plugin {
	return &Plugin{
		Name:        "blacklist",
		Tier:        domain.TierAdmin,
		Description: "Add or remove a number from the blacklist.",
		Help: []HelpEntry{
			{
				Description: "Add members to blacklist",
				Usage:       "-a <number> [number...]",
				Examples:    []string{"-a 923001234567"},
			},
			{
				Description: "Remove members from blacklist",
				Usage:       "-r <number> [number...]",
				Examples:    []string{"-r 923001234567"},
			},
			{
				Description: "Get blacklist",
				Usage:       "-g",
				Examples:    []string{"-g"},
			},
		},
		Handle: func(ctx context.Context, msg *domain.Message) (Outcome, error) {
			if len(msg.Arguments) == 1 {
				return OutcomeShowHelp, nil
			}

			fs := pflag.NewFlagSet("blacklist", pflag.ContinueOnError)
			fs.SetOutput(io.Discard)
			add := fs.StringSliceP("add", "a", nil, "add members")
			remove := fs.StringSliceP("remove", "r", nil, "remove members")
			get := fs.BoolP("get", "g", false, "get blacklist")

			if err := fs.Parse(msg.Arguments[1:]); err != nil {
				return OutcomeShowHelp, nil
			}

			// Trailing bare numbers belong to whichever list flag was given.
			extra := fs.Args()
			switch {
			case len(*remove) > 0:
				*remove = append(*remove, extra...)
			case len(*add) > 0:
				*add = append(*add, extra...)
			case len(extra) > 0:
				return OutcomeShowHelp, nil
			}

			var parts []string

			if len(*add) > 0 {
				for _, number := range *add {
					if err := settings.AddBlacklist(ctx, number); err != nil {
						return OutcomeHandled, fmt.Errorf("blacklist %s: %w", number, err)
					}
				}
				logger.Info("blacklist additions", "count", len(*add), "by", msg.Sender)
				parts = append(parts, fmt.Sprintf("*Blacklisted*: %s.", strings.Join(*add, ", ")))
			}

			if len(*remove) > 0 {
				var removed []string
				for _, number := range *remove {
					ok, err := settings.RemoveBlacklist(ctx, number)
					if err != nil {
						return OutcomeHandled, fmt.Errorf("unblacklist %s: %w", number, err)
					}
					if ok {
						removed = append(removed, number)
					} else {
						parts = append(parts, fmt.Sprintf("%s is not in blacklist.", number))
					}
				}
				if len(removed) > 0 {
					parts = append(parts, fmt.Sprintf("*Removed from blacklist*: %s.", strings.Join(removed, ", ")))
				}
			}

			if *get {
				ids, err := settings.BlacklistIDs(ctx)
				if err != nil {
					return OutcomeHandled, fmt.Errorf("read blacklist: %w", err)
				}
				parts = append(parts, "*Blacklisted*: "+strings.Join(ids, ", "))
			}

			if len(parts) == 0 {
				return OutcomeShowHelp, nil
			}
			msg.Outgoing = strings.Join(parts, "\n")
			return OutcomeHandled, nil
		},
	}
}
