package agent

import (
	"encoding/json"
	"strings"

	"wabot/internal/domain"
	"wabot/internal/identity"
)

// normalize builds the canonical Message from one inbound event. It never
// fails: identity resolution degrades to sender-only, timezone resolution
// degrades to absent, and an unrecognized body shape simply leaves the
// text empty for the validator to judge.
func normalize(ev domain.Event) *domain.Message {
	senderRaw, groupRaw := identity.ParseAddress(ev.From)

	msg := &domain.Message{
		SenderID:   senderRaw,
		Sender:     identity.ShortID(senderRaw),
		Scope:      domain.ScopeDirect,
		Tier:       domain.TierStandard,
		RequestID:  ev.RequestID,
		Channel:    ev.Channel,
		ReceivedAt: ev.ReceivedAt,
	}
	if groupRaw != "" {
		msg.GroupID = groupRaw
		msg.Group = identity.ShortID(groupRaw)
		msg.Scope = domain.ScopeGroup
	}
	msg.Timezone = identity.ZoneFor(msg.Sender)

	// A typed document has no text-derived path; it is routed by its tag
	// straight to a document handler, skipping validation and tokenization.
	if ev.DocumentType != "" {
		msg.Document = ev.Document
		msg.DocumentType = ev.DocumentType
		return msg
	}

	// Chat event: the first media body present wins and its caption is the
	// text. The "document" wire key doubles as a media attachment here.
	var docMedia *domain.MediaPayload
	if len(ev.Document) > 0 && string(ev.Document) != "null" {
		var mp domain.MediaPayload
		if err := json.Unmarshal(ev.Document, &mp); err == nil {
			docMedia = &mp
		}
	}
	for _, probe := range []struct {
		kind    string
		payload *domain.MediaPayload
	}{
		{"image", ev.Image},
		{"video", ev.Video},
		{"audio", ev.Audio},
		{"document", docMedia},
		{"sticker", ev.Sticker},
		{"file", ev.File},
	} {
		if probe.payload == nil {
			continue
		}
		msg.RawText = normalizeSpaces(probe.payload.Caption)
		msg.Media = &domain.Media{
			Kind:     probe.kind,
			MimeType: probe.payload.MimeType,
			Path:     probe.payload.MediaPath,
		}
		return msg
	}

	if ev.Message != nil {
		msg.RawText = normalizeSpaces(ev.Message.Text)
	}
	return msg
}

// normalizeSpaces replaces non-breaking spaces with ordinary ones so the
// structural prefix characters match against predictable text. Phone
// keyboards insert U+00A0 after autocompleted words.
func normalizeSpaces(s string) string {
	return strings.ReplaceAll(s, " ", " ")
}
