package presenter

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATIC TEXTS
// ══════════════════════════════════════════════════════════════════════════════

// StartText is sent on /start. Plain text.
const StartText = "Welcome to the Wordle Leaderboard Bot! This bot was made to automatically keep track of your " +
	"running score average for Wordle to compare between family and friends.\n" +
	"\n" +
	"To use me, simply share your Wordle results to start tracking your averages. " +
	"Add me to a group chat to compare scores for a group. Don't worry, your stats " +
	"are synchronized across different chats!\n" +
	"\n" +
	"Use /help to see the list of available commands."

// HelpText is sent on /help. MarkdownV2.
const HelpText = "I keep track of your Wordle stats by automatically calculating your score average, " +
	"your streak, and the total number of games you have played based off your Wordle results\\.\n" +
	"\n" +
	"You can control me by using these commands:\n" +
	"\n" +
	"*Show and compare*\n" +
	"/stats \\- show your aggregated stats\n" +
	"/leaderboard \\- show a chat leaderboard sorted by lowest average\n" +
	"\n" +
	"*Change your data*\n" +
	"/clear \\- clear your user data\n" +
	"/name \\- change your display name\n" +
	"/games \\- change your total number of games played\n" +
	"/streak \\- change your current running streak\n" +
	"/average \\- change your score average\n" +
	"/adjust \\- calculate your score average using your old score average\n" +
	"\n" +
	"*Settings*\n" +
	"/toggleretroactive \\- control whether sharing older Wordle results can update your results \\(toggled OFF by default\\)\n" +
	"/togglewarning \\- control whether I tell you when an older result was ignored \\(toggled ON by default\\)\n" +
	"\n" +
	"Examples for changing your data:\n" +
	"\\- /average 4\\.5 \\(to change your average to 4\\.5\\)\n" +
	"\\- /adjust 4\\.5 20 \\(to calculate your new score average using your old average of 4\\.5 that was calculated over 20 games\\)"

// AdminHelpText lists operator commands. MarkdownV2.
const AdminHelpText = "*Admin*\n" +
	"/adduser \\<user\\_id\\> \\<name\\> \\<result\\> \\- add a result for a test account\n" +
	"/admingame \\<edition\\> \\- set the latest edition\n" +
	"/edition \\- show the latest edition\n" +
	"/purgetest \\- delete test accounts\n" +
	"/restart \\- delete everything and reset the edition"

// Plain texts.
const (
	NoDataText            = "No data recorded yet! Share your Wordle results to add yourself to the database."
	NoDataStatsSuffix     = " After being added, you will then be able to print your stats."
	NoDataBoardSuffix     = " After being added, you will then be able to print the chat's leaderboard."
	NoDataUpdateSuffix    = " After being added, you will then be able to update your user data."
	InvalidAvgText        = "Wordle score average cannot be above a value of 7.0!"
	DuplicateText         = "Today's Wordle has already been computed into your average!"
	ClearAbortedText      = "Clear aborted."
	ClearedUserText       = "Cleared user database."
	NoUserDataText        = "No user data to clear!"
	ClearedChatText       = "Cleared chat database."
	NoChatDataText        = "No chat data to clear!"
	NotYourButtonText     = "Only the person who asked can answer this."
	AdminOnlyText         = "This command is only available to bot admins."
	ChatAdminOnlyText     = "Only chat administrators can clear the chat's leaderboard."
	GroupOnlyText         = "This command only works in group chats."
	GenericErrorText      = "Something went wrong. Please try again later."
	AdjustUsageText       = "Expected two values after /adjust! e.g. /adjust 4.5 20. See /help for example explanation."
	InvalidGamesText      = "Number of games must be a whole number of at least 1!"
	NegativeValueText     = "Values cannot be negative!"
	StatTooLargeText      = "Values cannot be larger than 1000000!"
	EmptyNameText         = "Your name cannot be empty!"
	AddUserUsageText      = "Usage: /adduser <user_id> <name> <Wordle result>"
	AddUserInvalidText    = "That doesn't look like a Wordle result."
	AdminGameUsageText    = "Usage: /admingame <edition>"
	DisabledCommandText   = "This command is disabled."
	RetroactiveWarningTxt = "Your result for an older Wordle was not counted because retroactive updates are OFF. " +
		"Use /toggleretroactive to allow them, or /togglewarning to stop these messages."
)

// ══════════════════════════════════════════════════════════════════════════════
// DYNAMIC TEXTS
// ══════════════════════════════════════════════════════════════════════════════

// ExpectedValueText replies to a manual command without its argument.
func ExpectedValueText(command string) string {
	return fmt.Sprintf("Expected a value after /%s!", command)
}

// NotANumberText replies to an argument that does not parse.
func NotANumberText(command string) string {
	return fmt.Sprintf("Expected a number after /%s!", command)
}

// UpdatedText confirms a manual set. MarkdownV2.
func UpdatedText(command, value string) string {
	return Escape("Successfully updated your "+command+" to ") + Bold(value) + Escape("!")
}

// AdjustedText confirms /adjust. MarkdownV2.
func AdjustedText(games int, avg float64) string {
	return Escape("Successfully updated your games and average to ") +
		Bold(fmt.Sprint(games)) + Escape(" and ") + Bold(FormatAvg(avg)) + Escape("!")
}

// ToggledText confirms a toggle. MarkdownV2.
func ToggledText(setting string, enabled bool) string {
	state := "OFF"
	if enabled {
		state = "ON"
	}
	return Escape(setting+" is now ") + Bold(state) + Escape(".")
}

// ClearConfirmText asks for /clear confirmation. MarkdownV2.
func ClearConfirmText(mention string, chat bool) string {
	what := "your data"
	if chat {
		what = "this chat's leaderboard"
	}
	return Escape(fmt.Sprintf("Are you sure you want to delete %s, %s?", what, mention)) +
		"\n\n⚠ *WARNING:*\n " + Escape("This will cause you to ") + "*permanently*" +
		Escape(" lose "+what+"!")
}

// RateLimitedText replies to a flooding user.
func RateLimitedText(wait time.Duration) string {
	secs := int(wait.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("Too many requests! Try again in %d seconds.", secs)
}

// EditionText reports the global edition counter.
func EditionText(latest int) string {
	return fmt.Sprintf("Latest Wordle edition: %d", latest)
}

// EditionSetText confirms /admingame.
func EditionSetText(edition int) string {
	return fmt.Sprintf("Latest Wordle edition set to %d.", edition)
}

// PurgedText confirms /purgetest.
func PurgedText(n int) string {
	return fmt.Sprintf("Deleted %d test accounts.", n)
}

// RestartedText confirms /restart.
func RestartedText(n int) string {
	return fmt.Sprintf("Deleted %d players and reset the edition counter.", n)
}
