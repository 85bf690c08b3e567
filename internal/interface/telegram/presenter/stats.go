package presenter

import (
	"fmt"
	"strings"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS PRESENTER
// Карточка игрока: имя, число игр, серия и средний балл.
// ══════════════════════════════════════════════════════════════════════════════

// View - готовое сообщение для отправки.
type View struct {
	Text      string
	ParseMode string
	Keyboard  *InlineKeyboard
}

// StatsCard форматирует блок статистики в моноширинном виде.
// Огонёк добавляется, когда серия длиннее одной игры.
func StatsCard(s query.PlayerStats) string {
	streak := fmt.Sprint(s.Streak)
	if s.OnStreak {
		streak += " 🔥"
	}

	lines := []string{
		"Name: " + s.Username,
		fmt.Sprintf("# of Games : %d", s.NumGames),
		"Streak: " + streak,
		fmt.Sprintf("Avg. Score: %s/6", FormatAvg(s.ScoreAvg)),
	}
	return Code(strings.Join(lines, "\n"))
}

// FormatStats форматирует ответ на /stats.
func FormatStats(res *query.GetStatsResult) *View {
	return &View{
		Text:      Escape("Stats for ") + Bold(res.Stats.Username) + Escape(":") + "\n\n" + StatsCard(res.Stats),
		ParseMode: ParseMode,
	}
}

// FormatNewPlayer приветствует нового игрока после первого результата.
func FormatNewPlayer(s query.PlayerStats) *View {
	var sb strings.Builder
	sb.WriteString(Escape("New Wordle champion "))
	sb.WriteString(Bold(s.Username))
	sb.WriteString(Escape(" added to the leaderboard with the stats:"))
	sb.WriteString("\n\n")
	sb.WriteString(StatsCard(s))
	sb.WriteString("\n\n")
	sb.WriteString(Escape("To manually update any of these values, use /name, /games, /streak, and /average."))
	return &View{Text: sb.String(), ParseMode: ParseMode}
}
