package echobot

import (
	"fmt"
	"strings"
)

const helpText = "🤖 Available commands:\n" +
	"• hello - Greet the bot\n" +
	"• help - Show this help message\n" +
	"• status - Check bot status\n" +
	"• history - Show your recent messages\n" +
	"• clear - Clear your message history\n" +
	"• echo <text> - Repeat your text\n" +
	"• reverse <text> - Reverse your text\n" +
	"• count <text> - Count characters and words\n" +
	"• bye - Say goodbye"

func (b *Bot) registerDefaults() {
	for _, greeting := range []string{"hello", "hi", "hey", "good morning", "good evening"} {
		b.Register(greeting, func(string, string) string {
			return "Hello! 👋 How can I help you today?"
		})
	}
	for _, farewell := range []string{"bye", "goodbye", "see you", "good night"} {
		b.Register(farewell, func(string, string) string {
			return "Goodbye! Have a great day! 🌟"
		})
	}

	b.Register("help", func(string, string) string { return helpText })
	b.Register("status", func(string, string) string { return "🟢 Bot is running perfectly!" })
	b.Register("history", b.showHistory)
	b.Register("clear", func(userID, _ string) string {
		b.clear(userID)
		return "🗑️ Message history cleared!"
	})

	b.RegisterPrefix("echo", func(_, args string) string {
		return "🔄 You said: " + args
	})
	b.RegisterPrefix("reverse", func(_, args string) string {
		return "🔄 Reversed: " + reverse(args)
	})
	b.RegisterPrefix("count", func(_, args string) string {
		return fmt.Sprintf("📊 Characters: %d, Words: %d", countChars(args), len(strings.Fields(args)))
	})
}

func (b *Bot) showHistory(userID, _ string) string {
	msgs := b.History(userID)
	if len(msgs) == 0 {
		return "📝 No message history found."
	}
	if len(msgs) > historyShown {
		msgs = msgs[len(msgs)-historyShown:]
	}

	var sb strings.Builder
	sb.WriteString("📝 Your recent messages:")
	for _, msg := range msgs {
		sb.WriteString("\n• ")
		sb.WriteString(msg)
	}
	return sb.String()
}
