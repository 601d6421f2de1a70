package agent

import (
	"errors"
	"fmt"
)

// Pipeline failures are fatal to the current message cycle and never
// retried. The first group drops the message without a reply: the text
// was most likely not directed at the bot, or the sender has no access.
// The second group replies with a one-line error and keeps serving.
var (
	ErrEmptyGroupMessage = errors.New("empty message in group")
	ErrNotValid          = errors.New("message not valid")
	ErrBlacklisted       = errors.New("sender blacklisted")
	ErrDebugRestricted   = errors.New("debug mode restricted to admins")

	ErrSenderNotAdmin  = errors.New("sender not admin")
	ErrCommandNotFound = errors.New("command not found")
)

// silentDrop reports whether err is one of the failures that must not
// produce a reply.
func silentDrop(err error) bool {
	return errors.Is(err, ErrEmptyGroupMessage) ||
		errors.Is(err, ErrNotValid) ||
		errors.Is(err, ErrBlacklisted) ||
		errors.Is(err, ErrDebugRestricted)
}

func notAdminReply() string {
	return "You are not an admin and cannot use admin commands."
}

func commandNotFoundReply(command, prefix string) string {
	return fmt.Sprintf("Command `%s` not found. Write `%shelp` to see available commands.", command, prefix)
}
