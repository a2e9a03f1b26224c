package models

import (
	"time"

	"gawangliliw/sellerhub/internal/utils"
)

// LastMessage is denormalized onto the conversation for the inbox list.
type LastMessage struct {
	MessageID utils.SixID `bson:"message_id" json:"message_id"`
	SenderID  utils.SixID `bson:"sender_id" json:"sender_id"`
	Text      string      `bson:"text" json:"text"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// Conversation is a chat between a seller and a buyer.
type Conversation struct {
	Base         `bson:",inline"`
	Participants []utils.SixID     `bson:"participants" json:"participants"`
	Names        map[string]string `bson:"names,omitempty" json:"names,omitempty"` // participant id -> display name
	LastMessage  *LastMessage      `bson:"last_message,omitempty" json:"last_message,omitempty"`
	Unread       map[string]int    `bson:"unread,omitempty" json:"unread,omitempty"` // participant id -> count
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether id takes part in the conversation.
func (c *Conversation) HasParticipant(id utils.SixID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// OtherParticipant returns the first participant that is not id.
func (c *Conversation) OtherParticipant(id utils.SixID) (utils.SixID, bool) {
	for _, p := range c.Participants {
		if p != id {
			return p, true
		}
	}
	return utils.SixID{}, false
}

// LatestActivity is the timestamp the inbox sorts by.
func (c *Conversation) LatestActivity() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

// Attachment is a file sent inside a message.
type Attachment struct {
	FileKey     string `bson:"file_key" json:"file_key"`
	FileName    string `bson:"file_name" json:"file_name"`
	ContentType string `bson:"content_type" json:"content_type"`
	URL         string `bson:"-" json:"url,omitempty"`
}

// Message is one chat line.
type Message struct {
	Base           `bson:",inline"`
	ConversationID utils.SixID  `bson:"conversation_id" json:"conversation_id"`
	SenderID       utils.SixID  `bson:"sender_id" json:"sender_id"`
	ReceiverID     utils.SixID  `bson:"receiver_id" json:"receiver_id"`
	Text           string       `bson:"text" json:"text"`
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Read           bool         `bson:"read" json:"read"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
}
