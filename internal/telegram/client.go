package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"wheel_tracker/internal/logger"
)

const defaultAPIURL = "https://api.telegram.org"

// Client talks to the Bot API for one authorised chat.
type Client struct {
	token   string
	chatID  string
	apiURL  string
	http    *http.Client
	pollGap time.Duration
}

// NewClient returns a client for token and chatID. Either being empty disables it.
func NewClient(token, chatID string) *Client {
	return &Client{
		token:   token,
		chatID:  chatID,
		apiURL:  defaultAPIURL,
		http:    &http.Client{Timeout: 90 * time.Second},
		pollGap: 5 * time.Second,
	}
}

// Enabled reports whether credentials are present.
func (c *Client) Enabled() bool {
	return c != nil && c.token != "" && c.chatID != ""
}

// Notify sends a message to the configured Telegram chat.
func (c *Client) Notify(text string) {
	if !c.Enabled() {
		log.Println("Warning: Telegram credentials missing, skipping notification")
		return
	}
	logger.Debugf("Telegram Notify: %s", text)

	payload := map[string]string{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if err := c.post("sendMessage", payload); err != nil {
		log.Printf("Telegram Alert Failed: %v", err)
	}
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
}

func (c *Client) post(method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.endpoint(method), "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %s", method, resp.Status)
	}
	return nil
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes user supplied text for legacy Markdown messages.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
