package domain

import (
	"encoding/json"
	"time"
)

// Scope tells whether a message came from a one-to-one conversation
// or a multi-party group.
type Scope string

const (
	ScopeDirect Scope = "direct"
	ScopeGroup  Scope = "group"
)

// Tier is the privilege namespace a message (or plugin) lives in.
type Tier string

const (
	TierStandard Tier = "standard"
	TierAdmin    Tier = "admin"
)

// Media describes an inbound attachment. The dispatch core only carries
// it through; captions, not media bytes, feed the text pipeline.
type Media struct {
	Kind     string `json:"kind"` // image | video | audio | document | sticker | file
	MimeType string `json:"mime_type"`
	Path     string `json:"path"`
}

// Message is the canonical unit of work: built once per inbound event,
// mutated in place through the pipeline stages, discarded after the send.
type Message struct {
	// Raw platform identifiers. Exactly one of sender-only or
	// sender+group holds; GroupID is empty for direct messages.
	SenderID string
	GroupID  string

	// Short identifiers derived from the raw ids. These, not the raw
	// ids, are the stable keys for admin/blacklist membership and
	// conversation history.
	Sender string
	Group  string

	Scope Scope
	Tier  Tier

	// RawText is the inbound text (or media caption) with non-breaking
	// spaces normalized to plain spaces.
	RawText string

	// Arguments is set only after successful tokenization; nil means
	// free-form chat. Non-empty whenever present.
	Arguments []string

	Media        *Media
	Document     json.RawMessage
	DocumentType string

	// Timezone is an IANA zone derived from the sender's phone country,
	// empty when resolution failed.
	Timezone string

	// Outgoing is the reply text written by whichever pipeline branch
	// produced one. Exactly one outbound send happens per completed
	// cycle; the send is idempotent-trigger, not idempotent-effect.
	Outgoing string

	// Tags is scratch space for preprocess hooks to steer downstream
	// handling. Hooks mutate, they never send.
	Tags map[string]string

	RequestID  string
	Channel    string
	ReceivedAt time.Time
}

// Prefix is the command prefix the sender must use in this scope.
func (m *Message) Prefix() string {
	if m.Scope == ScopeGroup {
		return "./"
	}
	return "/"
}

// Destination is the raw id replies go to: the group when there is one,
// the sender otherwise.
func (m *Message) Destination() string {
	if m.GroupID != "" {
		return m.GroupID
	}
	return m.SenderID
}

func (m *Message) SetTag(key, value string) {
	if m.Tags == nil {
		m.Tags = make(map[string]string)
	}
	m.Tags[key] = value
}

func (m *Message) Tag(key string) string {
	return m.Tags[key]
}
