// Package plugin holds the command handlers and the registry that routes
// to them. Plugins are registered once at startup and immutable afterwards.
package plugin

import (
	"context"

	"wabot/internal/domain"
)

// Outcome is what a handler reports back to the dispatcher.
type Outcome int

const (
	// OutcomeHandled means the handler finished; any reply it produced
	// is in Message.Outgoing.
	OutcomeHandled Outcome = iota
	// OutcomeShowHelp asks the dispatcher to render this plugin's
	// structured help instead. It is a control signal, not an error.
	OutcomeShowHelp
)

// HelpEntry documents one way to invoke a plugin. Usage and Examples are
// written relative to the command name; rendering prefixes the
// fully-qualified invocation path for the plugin's tier.
type HelpEntry struct {
	Description string
	Usage       string
	Examples    []string
}

// HandlerFunc runs the plugin's command against a dispatched message.
// Handlers write replies into msg.Outgoing; the dispatcher owns the send.
type HandlerFunc func(ctx context.Context, msg *domain.Message) (Outcome, error)

// Plugin is one installed command handler.
type Plugin struct {
	// Name keys the registry together with Tier; the same name may live
	// in both tiers as two distinct plugins.
	Name string
	Tier domain.Tier

	// Internal hides the plugin from generated help. It stays reachable
	// by name.
	Internal bool

	Description string

	// Help is the structured schema. Plugins without one are left out of
	// the resolver's capability listing.
	Help []HelpEntry

	// DocumentType marks a document handler: inbound events tagged with
	// this type route straight here, skipping tokenization. Document
	// handlers talk to the gateway themselves and may send more than once.
	DocumentType string

	// Preprocess runs on every inbound message before routing, in
	// name-sorted order across plugins. Hooks mutate the message, they
	// never send.
	Preprocess func(ctx context.Context, msg *domain.Message)

	Handle HandlerFunc
}
