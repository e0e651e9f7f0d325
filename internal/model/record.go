package model

// Record is one dequeued queue message as seen by the notifier.
type Record struct {
	ID      string // producer-assigned message id
	Body    string
	Attempt int // redeliveries so far, 0 on first delivery
}

// ChatMessage is one delivery to a chat endpoint.
type ChatMessage struct {
	Text        string `json:"text"`
	Destination string `json:"destination,omitempty"` // chat id for telegram, unused by slack
}
