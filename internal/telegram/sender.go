package telegram

import (
	"encoding/json"
	"log"
)

// Button represents an inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// SendInteractiveMessage sends a message with one row of inline buttons.
func (c *Client) SendInteractiveMessage(text string, buttons []Button) {
	if !c.Enabled() {
		return
	}

	keyboard := map[string]interface{}{
		"inline_keyboard": [][]Button{buttons},
	}
	keyboardJSON, _ := json.Marshal(keyboard)

	data := map[string]string{
		"chat_id":      c.chatID,
		"text":         text,
		"parse_mode":   "Markdown",
		"reply_markup": string(keyboardJSON),
	}
	if err := c.post("sendMessage", data); err != nil {
		log.Printf("Telegram Error: %v", err)
	}
}

// answerCallback stops the client-side spinner on the pressed button.
func (c *Client) answerCallback(callbackID, text string) {
	// Telegram caps callback answers at 200 characters.
	if r := []rune(text); len(r) > 190 {
		text = string(r[:190])
	}
	data := map[string]string{
		"callback_query_id": callbackID,
		"text":              text,
	}
	if err := c.post("answerCallbackQuery", data); err != nil {
		log.Printf("Telegram answerCallbackQuery failed: %v", err)
	}
}
