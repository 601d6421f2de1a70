package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-shellwords"

	"wabot/internal/domain"
)

// groupPrefixPattern is the dot-delimited namespace structure a group
// message must open with to address the bot: one or more ".segment"
// runs, each optionally preceded by a single space. Everything after the
// matched structure is the command remainder.
var groupPrefixPattern = regexp.MustCompile(`^\.(\s?\w+\.)+`)

// tokenize decides whether msg is a structured command or free-form
// chat. Group messages must carry the dot-prefix structure; the matched
// prefix is stripped and the remainder is handled exactly like a direct
// message. A remainder starting with "/" is shell-tokenized into
// Arguments, with the admin marker escalating the tier when the sender
// is a recognized admin. Any other remainder leaves Arguments nil, which
// is the chat path. RawText is rewritten to the stripped form so later
// stages see what the sender meant, not the framing.
func (l *Loop) tokenize(ctx context.Context, msg *domain.Message) error {
	text := msg.RawText

	if msg.Scope == domain.ScopeGroup {
		loc := groupPrefixPattern.FindStringIndex(text)
		if loc == nil {
			return ErrNotValid
		}
		text = strings.TrimSpace(text[loc[1]:])
		if text == "" {
			return ErrNotValid
		}
		msg.RawText = text
	}

	if !strings.HasPrefix(text, "/") {
		return nil
	}

	text = strings.TrimSpace(text[1:])
	msg.RawText = text

	args, err := shellwords.Parse(text)
	if err != nil {
		// Unbalanced quoting; not bot-directed enough to answer.
		return ErrNotValid
	}
	if allEmpty(args) {
		args = []string{"help"}
	}

	marker, err := l.settings.AdminMarker(ctx)
	if err != nil {
		return fmt.Errorf("admin marker lookup: %w", err)
	}
	if args[0] == marker {
		admin, err := l.settings.IsAdmin(ctx, msg.Sender)
		if err != nil {
			return fmt.Errorf("admin lookup: %w", err)
		}
		if admin {
			msg.Tier = domain.TierAdmin
			args = args[1:]
			if len(args) == 0 {
				args = []string{"help"}
			}
		}
	}

	msg.Arguments = args
	return nil
}

// allEmpty reports whether the token list carries no usable tokens, the
// shape produced by a bare "/" or only quoted empty strings.
func allEmpty(args []string) bool {
	for _, a := range args {
		if a != "" {
			return false
		}
	}
	return true
}
