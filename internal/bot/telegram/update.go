package telegram

// Update is one inbound chat event. Exactly one of Message or Callback is
// set; the transport layer decodes its wire format into this shape before
// handing it to the router.
type Update struct {
	Message  *Message
	Callback *CallbackQuery
}

// Message is an inbound text message.
type Message struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string

	// IsReply marks the message as a direct answer to a bot-issued
	// force-reply prompt.
	IsReply bool
}

// CallbackQuery is a button click on a bot-issued keyboard.
type CallbackQuery struct {
	ID       string
	ChatID   int64
	UserID   int64
	Username string
	Data     string
}

// ChatID returns the chat the update belongs to, or 0 for an empty update.
func (u Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.ChatID
	case u.Callback != nil:
		return u.Callback.ChatID
	}
	return 0
}
