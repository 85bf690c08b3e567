package telegram

import "strings"

// commandEntity returns the bot_command entity that starts the message.
func commandEntity(msg *Message) (MessageEntity, bool) {
	if msg == nil || msg.Text == "" {
		return MessageEntity{}, false
	}
	for _, e := range msg.Entities {
		if e.Type == "bot_command" && e.Offset == 0 {
			return e, true
		}
	}
	return MessageEntity{}, false
}

// ExtractCommand returns the leading command without the slash and the
// @botname suffix, lowercased. Empty when the message is not a command.
func ExtractCommand(msg *Message) string {
	e, ok := commandEntity(msg)
	if !ok {
		return ""
	}
	end := min(e.Length, len(msg.Text))
	if end < 2 {
		return ""
	}
	cmd, _, _ := strings.Cut(msg.Text[1:end], "@")
	return strings.ToLower(cmd)
}

// ExtractCommandArgs returns the whitespace-separated words after the command.
func ExtractCommandArgs(msg *Message) []string {
	e, ok := commandEntity(msg)
	if !ok || e.Length >= len(msg.Text) {
		return nil
	}
	return strings.Fields(msg.Text[e.Length:])
}

// ExtractCommandRest returns the raw text after the command with leading
// blanks trimmed. Newlines survive, so /adduser can carry a whole share.
func ExtractCommandRest(msg *Message) string {
	e, ok := commandEntity(msg)
	if !ok || e.Length >= len(msg.Text) {
		return ""
	}
	return strings.TrimLeft(msg.Text[e.Length:], " \t")
}

func IsPrivateChat(msg *Message) bool {
	return msg != nil && msg.Chat != nil && msg.Chat.Type == ChatTypePrivate
}

// IsGroupChat is true for both groups and supergroups.
func IsGroupChat(msg *Message) bool {
	if msg == nil || msg.Chat == nil {
		return false
	}
	switch msg.Chat.Type {
	case ChatTypeGroup, ChatTypeSupergroup:
		return true
	}
	return false
}
