package chat

import (
	"encoding/json"

	"github.com/jmehdipour/hookrelay/internal/model"
)

const PlatformSlack = "slack"

type slackBody struct {
	Text string `json:"text"`
}

// SlackEncoder renders an incoming-webhook body. The destination channel is bound to
// the webhook URL, so msg.Destination is ignored.
func SlackEncoder(msg model.ChatMessage) ([]byte, error) {
	return json.Marshal(slackBody{Text: msg.Text})
}
