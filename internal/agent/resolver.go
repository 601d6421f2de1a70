package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wabot/internal/domain"
)

const apologyReply = "Sorry, I could not process that message. Please try again later."

// resolve handles free-form chat: it asks the language model to turn
// the message into a console directive, a chat reply, or both. Any
// failure degrades to an apology; the resolver never fails the process.
// The exchange is persisted unconditionally so future context windows
// see what was said, apologies included. When both fields fire, the
// console re-dispatch sends before the chat reply does.
func (l *Loop) resolve(ctx context.Context, msg *domain.Message) {
	if l.model == nil {
		msg.Outgoing = l.staticGreeting(ctx, msg)
		return
	}

	res, err := l.completeResolution(ctx, msg)
	if err != nil {
		l.logger.Warn("resolver failed",
			"request_id", msg.RequestID,
			"sender", msg.Sender,
			"error", err)
		l.resolverFails.Inc()
		res = domain.Resolution{Chat: apologyReply}
	}

	if res.Console != "" {
		l.redispatch(ctx, msg, res.Console)
	}
	if res.Chat != "" {
		if msg.Media != nil {
			res.Chat += fmt.Sprintf("\n_(attachment received: %s)_", msg.Media.MimeType)
		}
		msg.Outgoing = res.Chat
	}

	l.persistExchange(ctx, msg, res)
}

// completeResolution builds the bounded conversation context and calls
// the model under the configured timeout. History load failures degrade
// to an empty context; the current message still gets answered.
func (l *Loop) completeResolution(ctx context.Context, msg *domain.Message) (domain.Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, l.modelTimeout)
	defer cancel()

	pairs, err := l.history.LastPairs(ctx, msg.Sender, msg.Group, l.maxHistoryPairs)
	if err != nil {
		l.logger.Warn("history load failed",
			"sender", msg.Sender,
			"group", msg.Group,
			"error", err)
	}

	msgs := make([]domain.ModelMessage, 0, 2*len(pairs)+1)
	for _, ex := range pairs {
		msgs = append(msgs, domain.ModelMessage{Role: domain.RoleUser, Content: ex.Inbound})
		msgs = append(msgs, domain.ModelMessage{Role: domain.RoleAssistant, Content: ex.Outbound})
	}
	msgs = append(msgs, domain.ModelMessage{Role: domain.RoleUser, Content: msg.RawText})

	raw, err := l.model.Complete(ctx, l.systemPrompt(ctx, msg, time.Now()), msgs)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("model call: %w", err)
	}

	res, err := parseResolution(raw)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("model response: %w", err)
	}
	return res, nil
}

// redispatch runs a console directive through tokenization and dispatch
// as if the sender had typed it. The directive's own prefix picks the
// path: "/" and bare words are direct commands, a "."-rooted line is
// group-style. A directive that tokenizes to free-form chat is dropped;
// re-entering the resolver from here would loop.
func (l *Loop) redispatch(ctx context.Context, msg *domain.Message, directive string) {
	clone := consoleMessage(msg, directive)
	log := l.logger.With("request_id", msg.RequestID, "console", directive)

	if err := l.tokenize(ctx, clone); err != nil {
		log.Warn("console directive rejected", "error", err)
		return
	}
	if clone.Arguments == nil {
		log.Warn("console directive is not a command")
		return
	}

	if err := l.dispatch(ctx, clone); err != nil {
		l.commandError(clone, err, log)
	}
	if clone.Outgoing != "" {
		l.send(ctx, clone)
	}
}

// consoleMessage derives the message a console directive re-dispatches
// as. The clone keeps the sender's identity and destination but starts
// from the standard tier; escalation re-derives from the directive text.
func consoleMessage(msg *domain.Message, directive string) *domain.Message {
	clone := *msg
	clone.Arguments = nil
	clone.Outgoing = ""
	clone.Media = nil
	clone.Tier = domain.TierStandard

	text := strings.TrimSpace(directive)
	switch {
	case strings.HasPrefix(text, "/"):
		clone.Scope = domain.ScopeDirect
	case strings.HasPrefix(text, "."):
		clone.Scope = domain.ScopeGroup
	default:
		text = "/" + text
		clone.Scope = domain.ScopeDirect
	}
	clone.RawText = text
	return &clone
}

// persistExchange appends the (inbound, full response payload) tuple for
// the (sender, group) key. The payload is the final resolution as sent,
// so replayed context shows the model its own earlier answers in the
// response format.
func (l *Loop) persistExchange(ctx context.Context, msg *domain.Message, res domain.Resolution) {
	payload, err := json.Marshal(res)
	if err != nil {
		l.logger.Error("marshal resolution", "error", err)
		return
	}
	ex := domain.Exchange{
		RequestID: msg.RequestID,
		Sender:    msg.Sender,
		Group:     msg.Group,
		Inbound:   msg.RawText,
		Outbound:  string(payload),
		CreatedAt: time.Now().UTC(),
	}
	if err := l.history.Append(ctx, ex); err != nil {
		l.logger.Error("persist exchange",
			"sender", msg.Sender,
			"group", msg.Group,
			"error", err)
	}
}

// staticGreeting is the reply when no model is configured; the bot still
// points the sender at the command surface.
func (l *Loop) staticGreeting(ctx context.Context, msg *domain.Message) string {
	marker, err := l.settings.AdminMarker(ctx)
	if err != nil || marker == "" {
		marker = "admin"
	}
	p := msg.Prefix()
	return fmt.Sprintf("Hello, I am a bot. Use `%shelp` (or `%s%s help` if you are an admin) to see available commands.", p, p, marker)
}

// parseResolution extracts the structured response from model output.
// Models wrap JSON in code fences or chatter around it; the object is
// located first, then decoded strictly so an unexpected shape fails the
// resolver instead of half-applying.
func parseResolution(raw string) (domain.Resolution, error) {
	content := strings.TrimSpace(raw)

	// Strip a markdown code fence if present.
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 3 && strings.HasPrefix(lines[len(lines)-1], "```") {
			content = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	var res domain.Resolution
	if err := decodeResolution(content, &res); err == nil {
		return res, nil
	}

	// Fallback: find object boundaries within surrounding text.
	if start, end := findObjectBounds(content); start >= 0 && end > start {
		if err := decodeResolution(content[start:end], &res); err == nil {
			return res, nil
		}
	}

	return domain.Resolution{}, errors.New("no console/chat object found")
}

func decodeResolution(s string, res *domain.Resolution) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	return dec.Decode(res)
}

// findObjectBounds locates the first top-level JSON object in s.
// Returns the start index and end+1 index, or (-1, -1) if not found.
func findObjectBounds(s string) (int, int) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return -1, -1
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}
