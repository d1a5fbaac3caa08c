// Package session holds the client-side chat state: the signed-in user, their
// chats and the UI selections. State changes are pure functions over State;
// Store applies them and persists the result.
package session

import (
	"strings"
	"time"

	"aichat.dev/chat-gateway/internal/utils"
)

const (
	DefaultTitle   = "New chat"
	Greeting       = "Hi! I'm your AI assistant. How can I help you today?"
	MaxTitleLength = 40

	DefaultMode     = "general"
	DefaultProvider = "groq"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	Sender   Sender `json:"sender"`
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attachment is an image picked for the next outgoing message.
type Attachment struct {
	Name    string
	DataURL string
}

// State is the whole client application state.
type State struct {
	User       *User
	Token      string
	Chats      []Chat
	ActiveID   string
	Mode       string
	Provider   string
	Attachment *Attachment
	Busy       bool
}

// Turn is one entry of the conversation sent to the chat endpoint.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newChat(id string, now time.Time) Chat {
	return Chat{
		ID:        id,
		Title:     DefaultTitle,
		CreatedAt: now,
		Messages:  []Message{{Sender: SenderBot, Text: Greeting}},
	}
}

// TitleFrom derives a chat title from a user message.
func TitleFrom(text string) string {
	t := utils.CollapseWhitespace(text)
	if t == "" {
		return DefaultTitle
	}
	return utils.Truncate(t, MaxTitleLength, "…")
}

func cloneChats(chats []Chat) []Chat {
	out := make([]Chat, len(chats))
	for i, c := range chats {
		c.Messages = append([]Message(nil), c.Messages...)
		out[i] = c
	}
	return out
}

func (s State) clone() State {
	s.Chats = cloneChats(s.Chats)
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.Attachment != nil {
		a := *s.Attachment
		s.Attachment = &a
	}
	return s
}

// Normalize makes the first chat active when ActiveID matches none.
func Normalize(s State) State {
	if len(s.Chats) == 0 {
		s.ActiveID = ""
		return s
	}
	if activeIndex(s) < 0 {
		s.ActiveID = s.Chats[0].ID
	}
	return s
}

func activeIndex(s State) int {
	for i, c := range s.Chats {
		if c.ID == s.ActiveID {
			return i
		}
	}
	return -1
}

// ActiveChat returns the active chat, if any.
func ActiveChat(s State) (Chat, bool) {
	i := activeIndex(Normalize(s))
	if i < 0 {
		return Chat{}, false
	}
	return s.Chats[i], true
}

// LoadUser enters the signed-in state with the user's persisted chats. With
// no chats a fresh one is created.
func LoadUser(s State, user User, token string, chats []Chat, id string, now time.Time) State {
	s = s.clone()
	s.User = &user
	s.Token = token
	s.Chats = cloneChats(chats)
	s.ActiveID = ""
	s.Attachment = nil
	s.Busy = false
	if len(s.Chats) == 0 {
		s.Chats = []Chat{newChat(id, now)}
	}
	return Normalize(s)
}

// Unload returns to the signed-out state. UI selections survive.
func Unload(s State) State {
	return State{Mode: s.Mode, Provider: s.Provider}
}

func NewChat(s State, id string, now time.Time) State {
	s = s.clone()
	c := newChat(id, now)
	s.Chats = append(s.Chats, c)
	s.ActiveID = c.ID
	s.Attachment = nil
	return s
}

// ClearCurrentChat resets the active chat to its greeting; the chat stays in
// the collection.
func ClearCurrentChat(s State) State {
	s = Normalize(s.clone())
	i := activeIndex(s)
	if i < 0 {
		return s
	}
	s.Chats[i].Title = DefaultTitle
	s.Chats[i].Messages = []Message{{Sender: SenderBot, Text: Greeting}}
	return s
}

func SelectChat(s State, id string) State {
	s = s.clone()
	s.ActiveID = id
	s.Attachment = nil
	return Normalize(s)
}

// AppendUserMessage appends to the active chat. The first user message with
// text also names it.
func AppendUserMessage(s State, text, imageURL string) State {
	s = Normalize(s.clone())
	i := activeIndex(s)
	if i < 0 {
		return s
	}

	chat := &s.Chats[i]
	named := false
	for _, m := range chat.Messages {
		if m.Sender == SenderUser && strings.TrimSpace(m.Text) != "" {
			named = true
			break
		}
	}
	if !named && strings.TrimSpace(text) != "" {
		chat.Title = TitleFrom(text)
	}

	chat.Messages = append(chat.Messages, Message{Sender: SenderUser, Text: text, ImageURL: imageURL})
	s.Attachment = nil
	return s
}

func AppendBotMessage(s State, text, provider, imageURL string) State {
	s = Normalize(s.clone())
	i := activeIndex(s)
	if i < 0 {
		return s
	}
	s.Chats[i].Messages = append(s.Chats[i].Messages, Message{
		Sender:   SenderBot,
		Text:     text,
		Provider: provider,
		ImageURL: imageURL,
	})
	return s
}

func SetMode(s State, mode string) State {
	s.Mode = mode
	return s
}

func SetProvider(s State, provider string) State {
	s.Provider = provider
	return s
}

func SetAttachment(s State, a *Attachment) State {
	s.Attachment = a
	return s
}

func SetBusy(s State, busy bool) State {
	s.Busy = busy
	return s
}

// Conversation maps the active chat to chat-endpoint turns, leaving out the
// greeting and generated images.
func Conversation(s State) []Turn {
	chat, ok := ActiveChat(s)
	if !ok {
		return nil
	}

	turns := make([]Turn, 0, len(chat.Messages))
	for i, m := range chat.Messages {
		if m.Sender == SenderBot && (m.ImageURL != "" || (i == 0 && m.Text == Greeting)) {
			continue
		}
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := "user"
		if m.Sender == SenderBot {
			role = "assistant"
		}
		turns = append(turns, Turn{Role: role, Content: m.Text})
	}
	return turns
}
