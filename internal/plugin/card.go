package plugin

import (
	"fmt"
	"strings"
)

// cardItem is one labeled line of a notification card. Items with empty
// values are dropped from the rendering.
type cardItem struct {
	label string
	value string
}

// formatCard renders the WhatsApp notification layout the classroom and
// reminder flows share: bold header, labeled lines, italic footer.
func formatCard(header string, items []cardItem, footer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", header)

	first := true
	for _, it := range items {
		if it.value == "" {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "*%s*: %s", it.label, it.value)
		first = false
	}

	if footer != "" {
		fmt.Fprintf(&b, "\n\n_%s_", footer)
	}
	return b.String()
}
