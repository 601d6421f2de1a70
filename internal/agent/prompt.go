package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wabot/internal/domain"
)

// responseContract tells the model the only shape the resolver accepts.
// Anything else is treated as a resolver failure and turned into an
// apology reply.
const responseContract = `You can also run bot commands on the sender's behalf. Respond ONLY with a JSON object carrying at most two optional string fields:
- "chat": a conversational reply to send to the sender.
- "console": one command line from the catalog below to run for the sender.
Most messages need only {"chat": "..."}. Include "console" only when a listed command actually serves the request. Never invent commands.`

// systemPrompt assembles the resolver's system turn: the active persona,
// the response contract, the full command catalog, and the sender's
// local clock so relative dates resolve correctly. A marker lookup
// failure degrades to the stock marker rather than failing the prompt.
func (l *Loop) systemPrompt(ctx context.Context, msg *domain.Message, now time.Time) string {
	marker, err := l.settings.AdminMarker(ctx)
	if err != nil || marker == "" {
		marker = "admin"
	}

	sections := []string{
		l.personas.Get(l.persona).System,
		responseContract,
		resolverCatalog(l.registry, marker),
	}

	zone := l.defaultZone
	if msg.Timezone != "" {
		if loc, err := time.LoadLocation(msg.Timezone); err == nil {
			zone = loc
		}
	}
	local := now.In(zone)
	clock := fmt.Sprintf("The sender's timezone is %s. The current local time is %s.",
		zone.String(), local.Format("Monday, 2 January 2006 15:04"))
	sections = append(sections, clock)

	if msg.Tag("classroom") == "1" {
		sections = append(sections, "This conversation is happening in the class group.")
	}

	return strings.Join(sections, "\n\n")
}
