package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"wabot/internal/domain"
)

// NewSettings lets admins inspect and change runtime settings. Values
// live in the settings store, so changes survive restarts and take
// effect on the next message without one.
func NewSettings(settings domain.SettingsStore, logger *slog.Logger) *Plugin {
	return &Plugin{
		Name:        "settings",
		Tier:        domain.TierAdmin,
		Description: "View and change runtime settings.",
		Help: []HelpEntry{
			{
				Description: "Change a setting",
				Usage:       "-c <key> <value>",
				Examples:    []string{"-c admin_command_prefix root"},
			},
			{
				Description: "View one setting, or all of them",
				Usage:       "-g <key>|all",
				Examples:    []string{"-g all", "-g admin_command_prefix"},
			},
		},
		Handle: func(ctx context.Context, msg *domain.Message) (Outcome, error) {
			fs := pflag.NewFlagSet("settings", pflag.ContinueOnError)
			fs.SetOutput(io.Discard)
			change := fs.StringP("change", "c", "", "change a setting")
			get := fs.StringP("get", "g", "", "view a setting")

			if err := fs.Parse(msg.Arguments[1:]); err != nil {
				return OutcomeShowHelp, nil
			}

			switch {
			case *change != "":
				rest := fs.Args()
				if len(rest) == 0 {
					return OutcomeShowHelp, nil
				}
				value := strings.Join(rest, " ")

				old, err := settings.Get(ctx, *change)
				if err != nil && !errors.Is(err, domain.ErrSettingNotFound) {
					return OutcomeHandled, fmt.Errorf("read setting %s: %w", *change, err)
				}
				if err := settings.Set(ctx, *change, value); err != nil {
					return OutcomeHandled, fmt.Errorf("write setting %s: %w", *change, err)
				}
				logger.Info("setting changed", "key", *change, "by", msg.Sender)
				msg.Outgoing = fmt.Sprintf("Setting `%s` changed from\n```%s```\nto\n```%s```", *change, old, value)

			case *get == "all":
				all, err := settings.All(ctx)
				if err != nil {
					return OutcomeHandled, fmt.Errorf("read settings: %w", err)
				}
				msg.Outgoing = fmt.Sprintf("```%s```", renderSettings(all))

			case *get != "":
				value, err := settings.Get(ctx, *get)
				if errors.Is(err, domain.ErrSettingNotFound) {
					msg.Outgoing = "Setting not recognized."
					return OutcomeHandled, nil
				}
				if err != nil {
					return OutcomeHandled, fmt.Errorf("read setting %s: %w", *get, err)
				}
				msg.Outgoing = fmt.Sprintf("Value of setting `%s` is\n```%s```", *get, value)

			default:
				if len(fs.Args()) > 0 {
					return OutcomeShowHelp, nil
				}
				msg.Outgoing = "Setting not recognized."
			}
			return OutcomeHandled, nil
		},
	}
}

func renderSettings(all map[string]string) string {
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", k, all[k])
	}
	return b.String()
}
