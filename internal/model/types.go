package model

import "time"

// Sender identifies which side of the conversation wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// User represents an account in the system. Records are created on the first
// request bearing an unseen email and are never mutated afterwards.
type User struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	CreationTime time.Time `json:"creationTime"`
}

// ChatMessage is one append-only row of a user's conversation log.
type ChatMessage struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CannedResponse maps a lower-cased exact-match query to a fixed reply,
// bypassing the completion provider.
type CannedResponse struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}
