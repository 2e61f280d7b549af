package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type chatRef struct {
	ID int64 `json:"id"`
}

type userRef struct {
	Username string `json:"username"`
}

// Update represents a Telegram Update object (partial schema)
type Update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string  `json:"text"`
		Chat chatRef `json:"chat"`
		From userRef `json:"from"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string  `json:"id"`
		Data    string  `json:"data"`
		From    userRef `json:"from"`
		Message *struct {
			Chat chatRef `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

type UpdateResponse struct {
	Ok          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description"`
	ErrorCode   int      `json:"error_code"`
}

// CommandHandler processes a slash command and returns the reply text.
type CommandHandler func(command string) string

// CallbackHandler processes an inline button press and returns the reply text.
type CallbackHandler func(callbackID, data string) string

// StartListener long-polls getUpdates until ctx is cancelled.
// It runs blocking, so it should be called in a goroutine.
func (c *Client) StartListener(ctx context.Context, onCommand CommandHandler, onCallback CallbackHandler) {
	if !c.Enabled() {
		log.Println("Telegram Listener: Credentials missing, disabled.")
		return
	}
	authChatID, err := strconv.ParseInt(c.chatID, 10, 64)
	if err != nil {
		log.Printf("Telegram Listener: invalid TELEGRAM_CHAT_ID %q, disabled.", c.chatID)
		return
	}

	log.Println("Telegram Listener: Started")
	offset := 0
	for ctx.Err() == nil {
		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("Telegram Listener Error: %v", err)
			sleepCtx(ctx, c.pollGap)
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			c.dispatch(u, authChatID, onCommand, onCallback)
		}
	}
	log.Println("Telegram Listener: Stopped")
}

func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("timeout", "60")
	q.Set("allowed_updates", `["message","callback_query"]`)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result UpdateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("api error: %s (code %d)", result.Description, result.ErrorCode)
	}
	return result.Result, nil
}

// dispatch routes one update. Anything outside the authorised chat is logged and
// ignored without a reply, so the bot does not reveal itself.
func (c *Client) dispatch(u Update, authChatID int64, onCommand CommandHandler, onCallback CallbackHandler) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.Message == nil || cq.Message.Chat.ID != authChatID {
			log.Printf("⚠️ UNAUTHORIZED CALLBACK: User %s tried: %s", cq.From.Username, cq.Data)
			return
		}
		log.Printf("Callback received: %s", cq.Data)
		reply := onCallback(cq.ID, cq.Data)
		c.answerCallback(cq.ID, reply)
		c.Notify(reply)

	case u.Message != nil:
		m := u.Message
		if m.Chat.ID != authChatID {
			log.Printf("⚠️ UNAUTHORIZED CODE ACCESS ATTEMPT: User %s (ID: %d) tried: %s",
				m.From.Username, m.Chat.ID, m.Text)
			return
		}
		text := strings.TrimSpace(m.Text)
		if strings.HasPrefix(text, "/") {
			log.Printf("Command received: %s", text)
			c.Notify(onCommand(text))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
