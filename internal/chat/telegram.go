package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmehdipour/hookrelay/internal/model"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const PlatformTelegram = "telegram"

// TelegramChatID parses a numeric chat id ("-100123") or a public username ("@builds").
func TelegramChatID(dest string) (telego.ChatID, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return telego.ChatID{}, fmt.Errorf("telegram chat id is empty")
	}
	if strings.HasPrefix(dest, "@") {
		return tu.Username(dest), nil
	}
	id, err := strconv.ParseInt(dest, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("telegram chat id %q: %w", dest, err)
	}
	return tu.ID(id), nil
}

// TelegramEncoder renders a sendMessage request body.
func TelegramEncoder(msg model.ChatMessage) ([]byte, error) {
	chatID, err := TelegramChatID(msg.Destination)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tu.Message(chatID, msg.Text))
}

// TelegramURL is the sendMessage endpoint for token.
func TelegramURL(apiBase, token string) string {
	return strings.TrimRight(apiBase, "/") + "/bot" + token + "/sendMessage"
}
