package presenter

import (
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// INLINE KEYBOARD TYPES
// Library-agnostic keyboards. The bot converts them to Bot API markup.
// ══════════════════════════════════════════════════════════════════════════════

// InlineKeyboard represents an inline keyboard.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// InlineButton represents a single inline button.
type InlineButton struct {
	// Text is the button text.
	Text string

	// CallbackData is the callback data (for callback buttons).
	CallbackData string

	// URL is the URL to open (for URL buttons).
	URL string
}

// NewInlineKeyboard creates a new empty inline keyboard.
func NewInlineKeyboard() *InlineKeyboard {
	return &InlineKeyboard{Rows: make([][]InlineButton, 0)}
}

// AddRow adds a row of buttons.
func (k *InlineKeyboard) AddRow(buttons ...InlineButton) *InlineKeyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// CallbackButton creates a callback button.
func CallbackButton(text, callbackData string) InlineButton {
	return InlineButton{Text: text, CallbackData: callbackData}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR CONFIRMATION
// Callback data: "clear:user:<user_id>", "clear:chat:<user_id>", "clear:cancel:<user_id>".
// The user ID is the requester; only they may answer.
// ══════════════════════════════════════════════════════════════════════════════

// Callback prefixes.
const (
	CallbackClearPrefix = "clear:"

	ClearScopeUser   = "user"
	ClearScopeChat   = "chat"
	ClearScopeCancel = "cancel"
)

// ClearCallback is a decoded clear confirmation button.
type ClearCallback struct {
	Scope       string
	RequesterID int64
}

// ClearConfirmKeyboard creates the Yes / Cancel keyboard for /clear.
func ClearConfirmKeyboard(scope string, requesterID int64) *InlineKeyboard {
	id := strconv.FormatInt(requesterID, 10)
	return NewInlineKeyboard().AddRow(
		CallbackButton("Yes", CallbackClearPrefix+scope+":"+id),
		CallbackButton("Cancel", CallbackClearPrefix+ClearScopeCancel+":"+id),
	)
}

// ParseClearCallback decodes clear confirmation data.
func ParseClearCallback(data string) (ClearCallback, bool) {
	rest, ok := strings.CutPrefix(data, CallbackClearPrefix)
	if !ok {
		return ClearCallback{}, false
	}
	scope, rawID, ok := strings.Cut(rest, ":")
	if !ok {
		return ClearCallback{}, false
	}
	switch scope {
	case ClearScopeUser, ClearScopeChat, ClearScopeCancel:
	default:
		return ClearCallback{}, false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return ClearCallback{}, false
	}
	return ClearCallback{Scope: scope, RequesterID: id}, true
}
