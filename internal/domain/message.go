package domain

import "time"

// Comment is a threaded note on a ticket. Comments are never edited.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Author    *User
	Message   string
	CreatedAt time.Time
}

// ChatMessage is a live chat line on a ticket. Chat messages are never edited.
type ChatMessage struct {
	ID        string
	TicketID  string
	SenderID  string
	Sender    *User
	Message   string
	CreatedAt time.Time
}
