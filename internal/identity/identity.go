// Package identity extracts sender and group identity from the raw
// address strings the chat gateway delivers.
package identity

import (
	"regexp"
	"strings"
)

// groupSuffix marks the right-hand side of an address as a real group id.
const groupSuffix = "@g.us"

const separator = " in "

var shortIDPattern = regexp.MustCompile(`^(\d+).*[:@].*$`)

// ParseAddress splits a raw address of the form "<id>" or
// "<id> in <groupId>". The right-hand side counts as a group only when it
// carries the group suffix; otherwise the separator belonged to the
// sender's own id and the whole string is the sender.
func ParseAddress(raw string) (senderID, groupID string) {
	left, right, found := strings.Cut(raw, separator)
	if !found || !strings.HasSuffix(right, groupSuffix) {
		return raw, ""
	}
	return left, right
}

// ShortID reduces a raw platform id to its leading digit run, the stable
// key used for admin and blacklist membership and for history. Ids that
// do not match the platform shape pass through unchanged.
func ShortID(id string) string {
	if !shortIDPattern.MatchString(id) {
		return id
	}
	return shortIDPattern.ReplaceAllString(id, "$1")
}
