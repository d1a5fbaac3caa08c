package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	GuestChatsKey = "chats:guest"
	SessionKey    = "session"
)

var (
	ErrNoUser       = errors.New("no user is signed in")
	ErrBusy         = errors.New("a request is already in flight")
	ErrEmptyMessage = errors.New("message is empty")
	ErrChatNotFound = errors.New("chat not found")
)

// Storage is a durable key/value store. GetBlob returns nil, nil for a
// missing key.
type Storage interface {
	GetBlob(ctx context.Context, key string) ([]byte, error)
	PutBlob(ctx context.Context, key string, value []byte) error
	DeleteBlob(ctx context.Context, key string) error
}

// ChatsKey is the storage key of a user's chat collection.
func ChatsKey(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return GuestChatsKey
	}
	return "chats:" + email
}

type persistedSession struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Store owns the State and keeps storage in step with it: a mutation of the
// chat collection is committed in memory only after it has been persisted.
type Store struct {
	mu      sync.Mutex
	storage Storage
	state   State
	now     func() time.Time
	newID   func() string
}

func NewStore(storage Storage) *Store {
	return &Store{
		storage: storage,
		state:   State{Mode: DefaultMode, Provider: DefaultProvider},
		now:     func() time.Time { return time.Now().UTC().Round(0) },
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) loadChats(ctx context.Context, email string) ([]Chat, error) {
	data, err := s.storage.GetBlob(ctx, ChatsKey(email))
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var chats []Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	return chats, nil
}

func (s *Store) saveChats(ctx context.Context, st State) error {
	email := ""
	if st.User != nil {
		email = st.User.Email
	}
	data, err := json.Marshal(st.Chats)
	if err != nil {
		return fmt.Errorf("encode chats: %w", err)
	}
	if err := s.storage.PutBlob(ctx, ChatsKey(email), data); err != nil {
		return fmt.Errorf("save chats: %w", err)
	}
	return nil
}

// commit persists next's chats and then makes it the current state.
func (s *Store) commit(ctx context.Context, next State) error {
	if err := s.saveChats(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) enter(ctx context.Context, user User, token string) error {
	chats, err := s.loadChats(ctx, user.Email)
	if err != nil {
		return err
	}
	return s.commit(ctx, LoadUser(s.state, user, token, chats, s.newID(), s.now()))
}

// Login signs the user in, remembers the session and hydrates their chats.
func (s *Store) Login(ctx context.Context, user User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(persistedSession{User: user, Token: token})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.storage.PutBlob(ctx, SessionKey, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return s.enter(ctx, user, token)
}

// Restore signs back in from the remembered session, if there is one. It
// reports whether a session was found.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.storage.GetBlob(ctx, SessionKey)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if data == nil {
		return false, nil
	}
	var ps persistedSession
	if err := json.Unmarshal(data, &ps); err != nil {
		return false, fmt.Errorf("decode session: %w", err)
	}
	if ps.Token == "" || ps.User.Email == "" {
		return false, nil
	}
	if err := s.enter(ctx, ps.User, ps.Token); err != nil {
		return false, err
	}
	return true, nil
}

// Logout forgets the session. The user's chats stay in storage.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.DeleteBlob(ctx, SessionKey); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.state = Unload(s.state)
	return nil
}

func (s *Store) mutate(ctx context.Context, fn func(State) State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return ErrNoUser
	}
	return s.commit(ctx, fn(s.state))
}

func (s *Store) NewChat(ctx context.Context) (Chat, error) {
	id := s.newID()
	if err := s.mutate(ctx, func(st State) State { return NewChat(st, id, s.now()) }); err != nil {
		return Chat{}, err
	}
	chat, _ := ActiveChat(s.State())
	return chat, nil
}

func (s *Store) ClearCurrentChat(ctx context.Context) error {
	return s.mutate(ctx, ClearCurrentChat)
}

func (s *Store) SelectChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return ErrNoUser
	}
	for _, c := range s.state.Chats {
		if c.ID == id {
			s.state = SelectChat(s.state, id)
			return nil
		}
	}
	return ErrChatNotFound
}

// SendUserMessage appends the user's message, with the pending attachment if
// any, to the active chat.
func (s *Store) SendUserMessage(ctx context.Context, text string) (Message, error) {
	var sent Message
	err := s.mutate(ctx, func(st State) State {
		imageURL := ""
		if st.Attachment != nil {
			imageURL = st.Attachment.DataURL
		}
		if strings.TrimSpace(text) == "" && imageURL == "" {
			return st
		}
		sent = Message{Sender: SenderUser, Text: text, ImageURL: imageURL}
		return AppendUserMessage(st, text, imageURL)
	})
	if err != nil {
		return Message{}, err
	}
	if sent.Sender == "" {
		return Message{}, ErrEmptyMessage
	}
	return sent, nil
}

func (s *Store) ReceiveBotMessage(ctx context.Context, text, provider, imageURL string) error {
	return s.mutate(ctx, func(st State) State { return AppendBotMessage(st, text, provider, imageURL) })
}

// ReceiveError shows a failed request as a bot message in the active chat.
func (s *Store) ReceiveError(ctx context.Context, text string) error {
	return s.ReceiveBotMessage(ctx, "⚠️ "+text, "", "")
}

func (s *Store) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SetMode(s.state, mode)
}

func (s *Store) SetProvider(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SetProvider(s.state, provider)
}

func (s *Store) SetAttachment(a *Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SetAttachment(s.state, a)
}

// BeginRequest marks a request as in flight; a second one is refused until
// EndRequest.
func (s *Store) BeginRequest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy {
		return ErrBusy
	}
	s.state = SetBusy(s.state, true)
	return nil
}

func (s *Store) EndRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SetBusy(s.state, false)
}
