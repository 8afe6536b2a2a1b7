package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vmunix/cinedex/internal/nav"
)

// ErrRejected indicates the chat gateway refused a message.
var ErrRejected = errors.New("message rejected")

// Outbound message types.
const (
	MessageMenu = "menu"
	MessageText = "text"
	MessageFile = "file"
)

// Button is the wire form of a menu button. Data is the navigation token.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Message is one outbound post to the chat gateway.
type Message struct {
	Type    string     `json:"type"`
	ChatID  int64      `json:"chat_id"`
	Text    string     `json:"text,omitempty"`
	Buttons [][]Button `json:"buttons,omitempty"`
	Locator string     `json:"locator,omitempty"`
	Path    string     `json:"path,omitempty"` // local file behind a feed locator
}

// PathResolver maps locators of local files to their paths.
type PathResolver interface {
	Path(locator string) (string, bool)
}

// Client posts replies to the chat gateway. It implements bot.Messenger.
type Client struct {
	url        string
	httpClient *http.Client
	paths      PathResolver
	log        *slog.Logger
}

// NewClient creates a client posting to url.
func NewClient(url string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With("component", "webhook-client"),
	}
}

// SetPaths makes Deliver attach the local path of locators that r knows. It must be
// called before the client is used.
func (c *Client) SetPaths(r PathResolver) {
	c.paths = r
}

// SendMenu posts menu text with its buttons.
func (c *Client) SendMenu(ctx context.Context, chatID int64, menu nav.Menu) error {
	msg := Message{Type: MessageMenu, ChatID: chatID, Text: menu.Text}
	for _, row := range menu.Rows {
		out := make([]Button, len(row))
		for i, b := range row {
			out[i] = Button{Label: b.Label, Data: b.Token}
		}
		msg.Buttons = append(msg.Buttons, out)
	}
	return c.post(ctx, msg)
}

// SendText posts a plain message.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.post(ctx, Message{Type: MessageText, ChatID: chatID, Text: text})
}

// Deliver asks the gateway to forward the file at locator. Locators of watched local
// files also carry the file's path for the gateway to upload.
func (c *Client) Deliver(ctx context.Context, chatID int64, locator string) error {
	msg := Message{Type: MessageFile, ChatID: chatID, Locator: locator}
	if c.paths != nil {
		msg.Path, _ = c.paths.Path(locator)
	}
	return c.post(ctx, msg)
}

func (c *Client) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s message: %w", msg.Type, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s message: status %d: %s", ErrRejected, msg.Type, resp.StatusCode, bytes.TrimSpace(detail))
	}
	c.log.Debug("message sent", "type", msg.Type, "chat_id", msg.ChatID)
	return nil
}
