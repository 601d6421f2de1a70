package domain

import "context"

// Gateway is the outbound side of the chat transport. Every completed
// dispatch cycle makes exactly one send call through it.
type Gateway interface {
	SendMessage(ctx context.Context, to, text string) error
	SendLink(ctx context.Context, to, caption, link string) error
	SendFile(ctx context.Context, to, path, caption string) error
	SendImage(ctx context.Context, to, path, caption string) error
	SendAudio(ctx context.Context, to, path, caption string) error
	SendVideo(ctx context.Context, to, path, caption string) error

	// SendMedia picks the variant for the attachment's mime type:
	// audio/ogg, image/jpeg and video/mp4 get their dedicated send,
	// everything else goes out as a generic file.
	SendMedia(ctx context.Context, to, path, mimeType, caption string) error
}
