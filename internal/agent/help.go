package agent

import (
	"fmt"
	"strings"

	"wabot/internal/domain"
	"wabot/internal/plugin"
)

// fqPath is the fully-qualified invocation path for a plugin in its
// tier, without the structural prefix: "settings" for a standard
// plugin, "admin settings" for an admin one.
func fqPath(p *plugin.Plugin, marker string) string {
	if p.Tier == domain.TierAdmin {
		return marker + " " + p.Name
	}
	return p.Name
}

// compactHelp renders the numbered catalog sent to a sender asking for
// help: one line per visible plugin of the requester's tier, plus a
// trailing synthetic help entry. Output is deterministic for a given
// registry state because the catalog iterates in sorted order.
func compactHelp(reg *plugin.Registry, tier domain.Tier, prefix, marker string) string {
	qualifier := ""
	if tier == domain.TierAdmin {
		qualifier = marker + " "
	}

	var b strings.Builder
	b.WriteString("*Available commands:*\n")
	n := 0
	for _, p := range reg.Catalog(tier) {
		n++
		fmt.Fprintf(&b, "%d. `%s%s%s`: %s\n", n, prefix, qualifier, p.Name, p.Description)
	}
	n++
	fmt.Fprintf(&b, "%d. `%s%shelp`: Show this message.\n", n, prefix, qualifier)
	return b.String()
}

// pluginHelp renders one plugin's structured help, used when its handler
// signals "show my help" instead of handling the message.
func pluginHelp(p *plugin.Plugin, prefix, marker string) string {
	fq := prefix + fqPath(p, marker)

	var b strings.Builder
	b.WriteString("*Usage:*\n")
	if len(p.Help) == 0 {
		fmt.Fprintf(&b, "- %s: `%s`\n", p.Description, fq)
		return b.String()
	}
	for _, h := range p.Help {
		fmt.Fprintf(&b, "- %s: `%s`\n", h.Description, invocation(fq, h.Usage))
		for _, ex := range h.Examples {
			fmt.Fprintf(&b, "  e.g. `%s`\n", invocation(fq, ex))
		}
	}
	return b.String()
}

// invocation joins a fully-qualified path with a usage or example
// fragment, tolerating empty fragments.
func invocation(fq, fragment string) string {
	return strings.TrimSpace(fq + " " + fragment)
}

// resolverCatalog renders the full structured catalog across every
// documented plugin of any tier. It is model-facing context only and is
// never sent to an end user. Invocation paths are bare command lines;
// prefix normalization happens when a console directive comes back.
func resolverCatalog(reg *plugin.Registry, marker string) string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, p := range reg.Documented() {
		fq := fqPath(p, marker)
		fmt.Fprintf(&b, "\n%s: %s\n", fq, p.Description)
		for _, h := range p.Help {
			fmt.Fprintf(&b, "- %s: %s\n", h.Description, invocation(fq, h.Usage))
			for _, ex := range h.Examples {
				fmt.Fprintf(&b, "  example: %s\n", invocation(fq, ex))
			}
		}
	}
	return b.String()
}
