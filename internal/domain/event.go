package domain

import (
	"encoding/json"
	"time"
)

// Well-known document_type tags for non-chat webhook sources.
const (
	DocTypeClassroom = "classroom"
	DocTypeReminder  = "reminder"
)

// TextPayload is the plain-text body of a chat event.
type TextPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MediaPayload is an attachment body. The gateway stores media on shared
// disk and hands us a local path; only the caption enters the pipeline.
type MediaPayload struct {
	Caption   string `json:"caption"`
	MimeType  string `json:"mime_type"`
	MediaPath string `json:"media_path"`
}

// Event is one inbound payload as delivered by the webhook route or the
// gateway event stream. From is an address string: "<id>" or
// "<id> in <groupId>". A chat event carries Message or exactly one media
// key; a non-chat source carries Document plus DocumentType instead.
// The "document" key is overloaded by the wire format: it is a media
// attachment for chat events and an opaque payload for typed ones, so it
// stays raw until the normalizer knows which shape applies.
type Event struct {
	From         string          `json:"from"`
	Message      *TextPayload    `json:"message,omitempty"`
	Image        *MediaPayload   `json:"image,omitempty"`
	Video        *MediaPayload   `json:"video,omitempty"`
	Audio        *MediaPayload   `json:"audio,omitempty"`
	Sticker      *MediaPayload   `json:"sticker,omitempty"`
	File         *MediaPayload   `json:"file,omitempty"`
	Document     json.RawMessage `json:"document,omitempty"`
	DocumentType string          `json:"document_type,omitempty"`

	// Set by the intake layer, never decoded from the wire.
	Channel    string    `json:"-"`
	RequestID  string    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}
