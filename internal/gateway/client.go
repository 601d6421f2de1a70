package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wabot/internal/domain"
)

// Client talks to the WhatsApp HTTP gateway over its REST API. Text and
// link sends are form posts, media sends are multipart uploads with the
// attachment in a "file" field.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

var _ domain.Gateway = (*Client)(nil)

func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		logger:  logger,
	}
}

func (c *Client) SendMessage(ctx context.Context, to, text string) error {
	return c.postForm(ctx, "send/message", url.Values{
		"phone":   {to},
		"message": {strings.TrimSpace(text)},
	})
}

func (c *Client) SendLink(ctx context.Context, to, caption, link string) error {
	return c.postForm(ctx, "send/link", url.Values{
		"phone":   {to},
		"caption": {strings.TrimSpace(caption)},
		"link":    {link},
	})
}

func (c *Client) SendFile(ctx context.Context, to, path, caption string) error {
	return c.postMedia(ctx, "send/file", to, path, caption)
}

func (c *Client) SendImage(ctx context.Context, to, path, caption string) error {
	return c.postMedia(ctx, "send/image", to, path, caption)
}

func (c *Client) SendAudio(ctx context.Context, to, path, caption string) error {
	return c.postMedia(ctx, "send/audio", to, path, caption)
}

func (c *Client) SendVideo(ctx context.Context, to, path, caption string) error {
	return c.postMedia(ctx, "send/video", to, path, caption)
}

// SendMedia routes an attachment to the endpoint matching its mime type.
func (c *Client) SendMedia(ctx context.Context, to, path, mimeType, caption string) error {
	switch mimeType {
	case "audio/ogg":
		return c.SendAudio(ctx, to, path, caption)
	case "image/jpeg":
		return c.SendImage(ctx, to, path, caption)
	case "video/mp4":
		return c.SendVideo(ctx, to, path, caption)
	default:
		return c.SendFile(ctx, to, path, caption)
	}
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, endpoint)
}

func (c *Client) postMedia(ctx context.Context, endpoint, to, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("phone", to); err != nil {
		return fmt.Errorf("write form: %w", err)
	}
	if caption = strings.TrimSpace(caption); caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write form: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("write form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read media: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("write form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s %d: %s", endpoint, resp.StatusCode, string(respBody))
	}

	c.logger.Debug("gateway send ok", "endpoint", endpoint)
	return nil
}
