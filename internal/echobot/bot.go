// Package echobot is a small command bot answering LINE text messages
// with the reply API. It keeps the last few messages of each user in memory.
package echobot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/harun/lineapi/pkg/event"
	"github.com/harun/lineapi/pkg/messaging"
	"github.com/harun/lineapi/pkg/webhook"
	"github.com/rs/zerolog"
)

// NonTextReply answers any message that is not text
const NonTextReply = "I can only handle text messages for now."

// Defaults for Options
const (
	DefaultHistorySize = 20
	DefaultMaxUsers    = 1000
	historyShown       = 5
)

// Replier sends reply messages. *messaging.Client implements it.
type Replier interface {
	ReplyMessage(ctx context.Context, replyToken string, messages ...messaging.Message) (*messaging.SentMessages, error)
}

// Options configures a Bot
type Options struct {
	// HistorySize is the number of messages kept per user
	HistorySize int
	// MaxUsers bounds how many users have a history; the least recently
	// active user is forgotten first
	MaxUsers int
	Logger   zerolog.Logger
}

// CommandFunc answers one command. args is the text after the command word.
type CommandFunc func(userID, args string) string

// Bot answers text messages
type Bot struct {
	replier Replier
	options Options
	logger  zerolog.Logger

	mu      sync.Mutex
	history *lru.Cache[string, []string]

	exact    map[string]CommandFunc
	prefixed []prefixCommand
}

type prefixCommand struct {
	prefix string
	fn     CommandFunc
}

// New creates a bot replying through replier
func New(replier Replier, options Options) (*Bot, error) {
	if replier == nil {
		return nil, fmt.Errorf("replier is required")
	}
	if options.HistorySize <= 0 {
		options.HistorySize = DefaultHistorySize
	}
	if options.MaxUsers <= 0 {
		options.MaxUsers = DefaultMaxUsers
	}

	history, err := lru.New[string, []string](options.MaxUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}

	b := &Bot{
		replier: replier,
		options: options,
		logger:  options.Logger.With().Str("component", "echobot").Logger(),
		history: history,
		exact:   make(map[string]CommandFunc),
	}
	b.registerDefaults()

	return b, nil
}

// Register adds an exact-match command. word is matched case-insensitively
// against the whole trimmed message.
func (b *Bot) Register(word string, fn CommandFunc) {
	b.exact[strings.ToLower(word)] = fn
}

// RegisterPrefix adds a command matched by its first word, e.g. "echo"
// answers "echo hello"
func (b *Bot) RegisterPrefix(word string, fn CommandFunc) {
	b.prefixed = append(b.prefixed, prefixCommand{prefix: strings.ToLower(word) + " ", fn: fn})
}

// Handler returns the bot as a webhook handler for message events
func (b *Bot) Handler() webhook.Handler {
	return webhook.HandlerFunc(func(ctx context.Context, ev event.Event) error {
		me, ok := ev.(*event.MessageEvent)
		if !ok {
			return nil
		}
		return b.HandleMessage(ctx, me)
	})
}

// HandleMessage records a text message and replies to it. Non-text
// messages get NonTextReply. Events without a reply token are only recorded.
func (b *Bot) HandleMessage(ctx context.Context, ev *event.MessageEvent) error {
	userID := ev.Source.UserID
	if userID == "" {
		userID = ev.Source.ConversationID()
	}

	var answer string
	if text, ok := ev.Message.(*event.TextMessage); ok {
		b.logger.Info().
			Str("user_id", userID).
			Int("length", len(text.Text)).
			Msg("Text message received")

		b.remember(userID, text.Text)
		answer = b.Respond(userID, text.Text)
	} else {
		var messageType event.MessageType
		if ev.Message != nil {
			messageType = ev.Message.MessageType()
		}
		b.logger.Info().
			Str("user_id", userID).
			Str("message_type", string(messageType)).
			Msg("Non-text message received")
		answer = NonTextReply
	}

	if ev.ReplyToken == "" {
		return nil
	}
	if _, err := b.replier.ReplyMessage(ctx, ev.ReplyToken, messaging.TextMessage{Text: answer}); err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

// Respond returns the answer to text without sending it
func (b *Bot) Respond(userID, text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if fn, ok := b.exact[lower]; ok {
		return fn(userID, "")
	}
	for _, cmd := range b.prefixed {
		if strings.HasPrefix(lower, cmd.prefix) {
			// Prefixes are ASCII, so the byte offset is the same in trimmed
			return cmd.fn(userID, trimmed[len(cmd.prefix):])
		}
	}

	return fmt.Sprintf("Thanks for your message: '%s'\n💡 Try typing 'help' to see available commands!", text)
}

// History returns the messages kept for userID, oldest first
func (b *Bot) History(userID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs, _ := b.history.Peek(userID)
	return append([]string(nil), msgs...)
}

// Users returns the number of users with a history
func (b *Bot) Users() int {
	return b.history.Len()
}

func (b *Bot) remember(userID, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs, _ := b.history.Get(userID)
	msgs = append(msgs, text)
	if len(msgs) > b.options.HistorySize {
		msgs = append([]string(nil), msgs[len(msgs)-b.options.HistorySize:]...)
	}
	b.history.Add(userID, msgs)
}

func (b *Bot) clear(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.history.Peek(userID); ok {
		b.history.Add(userID, nil)
	}
}

// reverse reverses s by rune
func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func countChars(s string) int {
	return utf8.RuneCountInString(s)
}
