// Package telegram is a small Bot API client: long-poll updates in,
// text messages out.
package telegram

import "encoding/json"

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"`
	Username string `json:"username,omitempty"`
	Title    string `json:"title,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Message keeps the decoded fields the bot uses plus the raw JSON object as
// received, which is what gets persisted to history.
type Message struct {
	MessageID      int64    `json:"message_id"`
	Date           int64    `json:"date"`
	Chat           Chat     `json:"chat"`
	From           *User    `json:"from,omitempty"`
	Text           string   `json:"text,omitempty"`
	ReplyToMessage *Message `json:"reply_to_message,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*m = Message(decoded)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// RawJSON returns the message as received, or a re-encoding when the
// message was built locally.
func (m *Message) RawJSON() json.RawMessage {
	if m == nil {
		return nil
	}
	if len(m.Raw) > 0 {
		return m.Raw
	}
	type plain Message
	encoded, err := json.Marshal((*plain)(m))
	if err != nil {
		return nil
	}
	return encoded
}

type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// UserMessage returns the message or edited message carried by the update.
func (u Update) UserMessage() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}
